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
	"net/http"
	"time"

	"github.com/reedkernel/narrator/internal/httpclient"
	"github.com/reedkernel/narrator/kernelerrors"
)

const anthropicDefaultHost = "https://api.anthropic.com"

// AnthropicProvider implements Provider against the Anthropic messages
// endpoint.
type AnthropicProvider struct {
	id         string
	apiKey     string
	model      string
	host       string
	maxTokens  int
	timeout    time.Duration
	http       *httpclient.Client
}

// NewAnthropicProvider builds an AnthropicProvider registered under id.
func NewAnthropicProvider(id, apiKey, model string) *AnthropicProvider {
	return &AnthropicProvider{
		id:        id,
		apiKey:    apiKey,
		model:     model,
		host:      anthropicDefaultHost,
		maxTokens: 4096,
		timeout:   60 * time.Second,
		http: httpclient.New(
			httpclient.WithHeaderParser(httpclient.ParseAnthropicRateLimitHeaders),
		),
	}
}

func (p *AnthropicProvider) ID() string { return p.id }

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string              `json:"model"`
	System      string              `json:"system,omitempty"`
	Messages    []anthropicMessage  `json:"messages"`
	MaxTokens   int                 `json:"max_tokens"`
	Temperature float64             `json:"temperature,omitempty"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
	Usage   anthropicUsage          `json:"usage"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *AnthropicProvider) doMessage(ctx context.Context, req Request) (Response, error) {
	return instrumentedCall(ctx, p.id, "anthropic", req, func(ctx context.Context) (Response, error) {
		return p.doMessageOnce(ctx, req)
	})
}

func (p *AnthropicProvider) doMessageOnce(ctx context.Context, req Request) (Response, error) {
	body := anthropicRequest{
		Model:       firstNonEmpty(req.Model, p.model),
		System:      req.SystemPrompt,
		Messages:    []anthropicMessage{{Role: "user", Content: req.UserPrompt}},
		MaxTokens:   firstPositive(req.MaxTokens, p.maxTokens),
		Temperature: req.Temperature,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, kernelerrors.Wrap(kernelerrors.ProviderError, err, "encode anthropic request")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return Response{}, kernelerrors.Wrap(kernelerrors.ProviderError, err, "build anthropic request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	if req.CorrelationID != "" {
		httpReq.Header.Set("X-Correlation-Id", req.CorrelationID)
	}

	start := time.Now()
	httpResp, err := p.http.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return Response{}, kernelerrors.Wrap(kernelerrors.ProviderUnavailable, err, "anthropic request failed")
	}
	defer httpResp.Body.Close()

	var parsed anthropicResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&parsed); err != nil {
		return Response{}, kernelerrors.Wrap(kernelerrors.ProviderError, err, "decode anthropic response")
	}
	if parsed.Error != nil {
		return Response{}, kernelerrors.Newf(kernelerrors.ProviderError, "anthropic: %s", parsed.Error.Message)
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return Response{
		Text:       text,
		ProviderID: p.id,
		Latency:    latency,
		Usage: TokenUsage{
			Prompt:     parsed.Usage.InputTokens,
			Completion: parsed.Usage.OutputTokens,
			Total:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		},
	}, nil
}

func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (Response, error) {
	return p.doMessage(ctx, req)
}

func (p *AnthropicProvider) CompleteStructured(ctx context.Context, req Request, schema Schema) (Response, error) {
	resp, err := p.doMessage(ctx, req)
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

func (p *AnthropicProvider) HealthCheck(ctx context.Context) (HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	start := time.Now()
	resp, err := p.doMessage(ctx, Request{UserPrompt: "ping", MaxTokens: 1})
	latency := time.Since(start)
	if err != nil {
		return HealthStatus{Healthy: false, Detail: err.Error(), Latency: latency}, nil
	}
	_ = resp
	return HealthStatus{Healthy: true, Latency: latency}, nil
}

func firstPositive(vals ...int) int {
	for _, v := range vals {
		if v > 0 {
			return v
		}
	}
	return 0
}
