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

import "context"

// Provider is the capability set every concrete LLM backend implements:
// health_check, complete, complete_structured (spec §4.6), plus an
// identifier. New providers are added by implementing this interface —
// the kernel never branches on provider identity (spec §9).
type Provider interface {
	// ID returns the provider's registry identifier.
	ID() string

	// HealthCheck reports whether the provider is currently reachable.
	HealthCheck(ctx context.Context) (HealthStatus, error)

	// Complete issues a plain-text completion request.
	Complete(ctx context.Context, req Request) (Response, error)

	// CompleteStructured issues a completion request and validates the
	// response against schema, returning *kernelerrors.Error of kind
	// ProviderValidation if it does not conform — never as a transport
	// error (spec §4.6).
	CompleteStructured(ctx context.Context, req Request, schema Schema) (Response, error)
}
