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

const ollamaDefaultHost = "http://localhost:11434"

// OllamaProvider implements Provider against a local Ollama /api/generate
// endpoint. Ollama has no API key; it is reached over plain HTTP on the
// operator's own network.
type OllamaProvider struct {
	id      string
	model   string
	host    string
	timeout time.Duration
	http    *httpclient.Client
}

// NewOllamaProvider builds an OllamaProvider registered under id.
func NewOllamaProvider(id, model string, opts ...OllamaOption) *OllamaProvider {
	p := &OllamaProvider{
		id:      id,
		model:   model,
		host:    ollamaDefaultHost,
		timeout: 120 * time.Second,
		http:    httpclient.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OllamaOption configures an OllamaProvider.
type OllamaOption func(*OllamaProvider)

// WithOllamaHost overrides the default local host.
func WithOllamaHost(host string) OllamaOption {
	return func(p *OllamaProvider) { p.host = host }
}

func (p *OllamaProvider) ID() string { return p.id }

type ollamaGenerateRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	System  string  `json:"system,omitempty"`
	Stream  bool    `json:"stream"`
	Options *ollamaOptions `json:"options,omitempty"`
	Format  string  `json:"format,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaGenerateResponse struct {
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (p *OllamaProvider) doGenerate(ctx context.Context, req Request, jsonMode bool) (Response, error) {
	return instrumentedCall(ctx, p.id, "ollama", req, func(ctx context.Context) (Response, error) {
		return p.doGenerateOnce(ctx, req, jsonMode)
	})
}

func (p *OllamaProvider) doGenerateOnce(ctx context.Context, req Request, jsonMode bool) (Response, error) {
	body := ollamaGenerateRequest{
		Model:  firstNonEmpty(req.Model, p.model),
		Prompt: req.UserPrompt,
		System: req.SystemPrompt,
		Stream: false,
		Options: &ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	}
	if jsonMode {
		body.Format = "json"
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, kernelerrors.Wrap(kernelerrors.ProviderError, err, "encode ollama request")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+"/api/generate", bytes.NewReader(payload))
	if err != nil {
		return Response{}, kernelerrors.Wrap(kernelerrors.ProviderError, err, "build ollama request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	httpResp, err := p.http.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return Response{}, kernelerrors.Wrap(kernelerrors.ProviderUnavailable, err, "ollama request failed")
	}
	defer httpResp.Body.Close()

	var parsed ollamaGenerateResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&parsed); err != nil {
		return Response{}, kernelerrors.Wrap(kernelerrors.ProviderError, err, "decode ollama response")
	}

	return Response{
		Text:       parsed.Response,
		ProviderID: p.id,
		Latency:    latency,
		Usage: TokenUsage{
			Prompt:     parsed.PromptEvalCount,
			Completion: parsed.EvalCount,
			Total:      parsed.PromptEvalCount + parsed.EvalCount,
		},
	}, nil
}

func (p *OllamaProvider) Complete(ctx context.Context, req Request) (Response, error) {
	return p.doGenerate(ctx, req, false)
}

func (p *OllamaProvider) CompleteStructured(ctx context.Context, req Request, schema Schema) (Response, error) {
	resp, err := p.doGenerate(ctx, req, true)
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

func (p *OllamaProvider) HealthCheck(ctx context.Context) (HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.host+"/api/tags", nil)
	if err != nil {
		return HealthStatus{}, kernelerrors.Wrap(kernelerrors.ProviderError, err, "build ollama health check")
	}

	httpResp, err := p.http.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return HealthStatus{Healthy: false, Detail: err.Error(), Latency: latency}, nil
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return HealthStatus{Healthy: false, Detail: "ollama not reachable", Latency: latency}, nil
	}
	return HealthStatus{Healthy: true, Latency: latency}, nil
}
