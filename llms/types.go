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

// Package llms implements the LLM Provider abstraction and Router (spec
// §4.6): a uniform async request/response surface multiplexed across
// heterogeneous concrete providers (OpenAI, Anthropic, Ollama).
//
// The concrete HTTP wire formats of each vendor are out of scope for the
// kernel proper (spec §1) — the core only depends on the Request/Response
// shapes in this file.
package llms

import "time"

// Request is a provider-agnostic completion request.
type Request struct {
	Model         string
	SystemPrompt  string
	UserPrompt    string
	Temperature   float64
	MaxTokens     int
	CorrelationID string
}

// TokenUsage reports how many tokens a completion consumed.
type TokenUsage struct {
	Prompt     int
	Completion int
	Total      int
}

// Response is a provider-agnostic completion response. Structured is nil
// unless the request went through CompleteStructured.
type Response struct {
	Text       string
	Structured map[string]any
	Usage      TokenUsage
	ProviderID string
	Latency    time.Duration
}

// SchemaFormat is the shape a CompleteStructured response must conform
// to. It mirrors the provider-agnostic structured-output configuration
// hector's LLM layer exposes (format/schema/enum), trimmed to the three
// fixed response shapes this kernel needs.
type SchemaFormat string

const (
	// FormatJSON validates that the response is a JSON object carrying
	// every key listed in Schema.Fields.
	FormatJSON SchemaFormat = "json"
	// FormatEnum validates the response is one of Enum's values.
	FormatEnum SchemaFormat = "enum"
)

// Schema describes one of the fixed structured-output shapes a
// CompleteStructured call validates against.
type Schema struct {
	Name   string // "intent", "decision", or "health_check"
	Format SchemaFormat
	// Fields lists the required top-level keys for FormatJSON. The
	// kernel's fixed schemas are shallow (one level of required keys),
	// so a full JSON Schema document is unnecessary; nested values and
	// value types are not checked.
	Fields []string
	Enum   []string
}

// IntentSchema is the structured shape the Narrator requests when
// soliciting a Character's intent (spec §4.7 step 5).
var IntentSchema = Schema{
	Name:   "intent",
	Format: FormatJSON,
	Fields: []string{"action", "parameters"},
}

// DecisionSchema is the structured shape the DM Resolver requests (spec
// §4.8): verdict, reason, and a structured outcome.
var DecisionSchema = Schema{
	Name:   "decision",
	Format: FormatJSON,
	Fields: []string{"verdict", "reason", "outcome"},
}

// HealthCheckSchema is the structured shape a provider's health check
// response conforms to.
var HealthCheckSchema = Schema{
	Name:   "health_check",
	Format: FormatJSON,
	Fields: []string{"status"},
}

// HealthStatus is the result of a provider's HealthCheck call.
type HealthStatus struct {
	Healthy bool
	Detail  string
	Latency time.Duration
}
