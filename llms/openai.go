// Copyright 2025 The Narrator Kernel Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/reedkernel/narrator/internal/httpclient"
	"github.com/reedkernel/narrator/kernelerrors"
)

const openAIDefaultHost = "https://api.openai.com/v1"

// OpenAIProvider implements Provider against the OpenAI chat completions
// endpoint. The wire format is intentionally thin — the kernel's core
// depends only on the Provider interface (spec §1), not on OpenAI's full
// request/response surface.
type OpenAIProvider struct {
	id      string
	apiKey  string
	model   string
	host    string
	timeout time.Duration
	http    *httpclient.Client
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithOpenAIHost overrides the default API host (for proxies/testing).
func WithOpenAIHost(host string) OpenAIOption {
	return func(p *OpenAIProvider) { p.host = host }
}

// NewOpenAIProvider builds an OpenAIProvider registered under id, calling
// model via apiKey.
func NewOpenAIProvider(id, apiKey, model string, opts ...OpenAIOption) *OpenAIProvider {
	p := &OpenAIProvider{
		id:      id,
		apiKey:  apiKey,
		model:   model,
		host:    openAIDefaultHost,
		timeout: 60 * time.Second,
		http: httpclient.New(
			httpclient.WithHeaderParser(httpclient.ParseOpenAIRateLimitHeaders),
		),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OpenAIProvider) ID() string { return p.id }

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model          string              `json:"model"`
	Messages       []openAIChatMessage `json:"messages"`
	Temperature    float64             `json:"temperature,omitempty"`
	MaxTokens      int                 `json:"max_tokens,omitempty"`
	ResponseFormat *openAIRespFormat   `json:"response_format,omitempty"`
}

type openAIRespFormat struct {
	Type string `json:"type"`
}

type openAIChoice struct {
	Message openAIChatMessage `json:"message"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type openAIChatResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *OpenAIProvider) doChat(ctx context.Context, req Request, jsonMode bool) (Response, error) {
	return instrumentedCall(ctx, p.id, "openai", req, func(ctx context.Context) (Response, error) {
		return p.doChatOnce(ctx, req, jsonMode)
	})
}

func (p *OpenAIProvider) doChatOnce(ctx context.Context, req Request, jsonMode bool) (Response, error) {
	body := openAIChatRequest{
		Model: firstNonEmpty(req.Model, p.model),
		Messages: []openAIChatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if jsonMode {
		body.ResponseFormat = &openAIRespFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, kernelerrors.Wrap(kernelerrors.ProviderError, err, "encode openai request")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Response{}, kernelerrors.Wrap(kernelerrors.ProviderError, err, "build openai request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	if req.CorrelationID != "" {
		httpReq.Header.Set("X-Correlation-Id", req.CorrelationID)
	}

	start := time.Now()
	httpResp, err := p.http.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return Response{}, kernelerrors.Wrap(kernelerrors.ProviderUnavailable, err, "openai request failed")
	}
	defer httpResp.Body.Close()

	var parsed openAIChatResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&parsed); err != nil {
		return Response{}, kernelerrors.Wrap(kernelerrors.ProviderError, err, "decode openai response")
	}
	if parsed.Error != nil {
		return Response{}, kernelerrors.Newf(kernelerrors.ProviderError, "openai: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return Response{}, kernelerrors.New(kernelerrors.ProviderError, "openai response had no choices")
	}

	return Response{
		Text:       parsed.Choices[0].Message.Content,
		ProviderID: p.id,
		Latency:    latency,
		Usage: TokenUsage{
			Prompt:     parsed.Usage.PromptTokens,
			Completion: parsed.Usage.CompletionTokens,
			Total:      parsed.Usage.TotalTokens,
		},
	}, nil
}

func (p *OpenAIProvider) Complete(ctx context.Context, req Request) (Response, error) {
	return p.doChat(ctx, req, false)
}

func (p *OpenAIProvider) CompleteStructured(ctx context.Context, req Request, schema Schema) (Response, error) {
	resp, err := p.doChat(ctx, req, true)
	if err != nil {
		return Response{}, err
	}
	structured, err := validateStructured(resp.Text, schema)
	if err != nil {
		return Response{}, err
	}
	resp.Structured = structured
	return resp, nil
}

func (p *OpenAIProvider) HealthCheck(ctx context.Context) (HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.host+"/models", nil)
	if err != nil {
		return HealthStatus{}, kernelerrors.Wrap(kernelerrors.ProviderError, err, "build openai health check")
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	httpResp, err := p.http.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return HealthStatus{Healthy: false, Detail: err.Error(), Latency: latency}, nil
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return HealthStatus{Healthy: false, Detail: fmt.Sprintf("HTTP %d", httpResp.StatusCode), Latency: latency}, nil
	}
	return HealthStatus{Healthy: true, Latency: latency}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
