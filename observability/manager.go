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

package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Manager bundles the tracer and metrics the kernel instruments its
// provider calls and tick boundaries with.
type Manager struct {
	Tracer  trace.Tracer
	Metrics *Metrics
}

// Config is the top-level observability configuration.
type Config struct {
	Tracer TracerConfig
}

// NewManager builds a Manager from cfg, initializing tracing (or a
// no-op provider, if disabled) and a fresh Prometheus instrument set.
func NewManager(ctx context.Context, cfg Config) (*Manager, error) {
	provider, err := InitTracerProvider(ctx, cfg.Tracer)
	if err != nil {
		return nil, err
	}
	return &Manager{
		Tracer:  provider.Tracer("narrator"),
		Metrics: NewMetrics(),
	}, nil
}

// NoopManager returns a Manager with tracing and metrics collection both
// effectively disabled, for use when observability is turned off or in
// tests that do not want to exercise the real exporters.
func NoopManager() *Manager {
	ctx := context.Background()
	mgr, err := NewManager(ctx, Config{Tracer: TracerConfig{Enabled: false}})
	if err != nil {
		// InitTracerProvider with Enabled:false never errors.
		panic(err)
	}
	return mgr
}
