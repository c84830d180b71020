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
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/reedkernel/narrator/kernelerrors"
	"github.com/reedkernel/narrator/observability"
)

// instrumentedCall wraps a provider's round trip in an OpenTelemetry span
// and the process-wide provider latency/error instruments, the same way
// the teacher's pkg/llms/openai.go and ollama.go wrap every provider call:
// tracer.Start before the request, span.RecordError/SetStatus(codes.Error)
// on failure, SetStatus(codes.Ok) on success.
func instrumentedCall(ctx context.Context, providerID, kind string, req Request, fn func(context.Context) (Response, error)) (Response, error) {
	tracer := observability.GetTracer("narrator.llm")
	ctx, span := tracer.Start(ctx, observability.SpanProviderRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrProviderID, providerID),
			attribute.String(observability.AttrProviderKind, kind),
			attribute.String("llm.model", req.Model),
		),
	)
	defer span.End()

	metrics := observability.GetGlobalMetrics()
	start := time.Now()
	resp, err := fn(ctx)
	latency := time.Since(start)
	metrics.ObserveProviderLatency(providerID, latency)
	span.SetAttributes(attribute.Int64("llm.latency_ms", latency.Milliseconds()))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		errKind, _ := kernelerrors.KindOf(err)
		metrics.IncProviderError(providerID, string(errKind))
		return Response{}, err
	}
	span.SetAttributes(
		attribute.Int("llm.tokens.prompt", resp.Usage.Prompt),
		attribute.Int("llm.tokens.completion", resp.Usage.Completion),
		attribute.Int("llm.tokens.total", resp.Usage.Total),
	)
	span.SetStatus(codes.Ok, "success")
	return resp, nil
}
