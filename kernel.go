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

package narrator

import (
	"github.com/reedkernel/narrator/clock"
	"github.com/reedkernel/narrator/dm"
	"github.com/reedkernel/narrator/domain"
	"github.com/reedkernel/narrator/eventlog"
	"github.com/reedkernel/narrator/interrupt"
	"github.com/reedkernel/narrator/llms"
	"github.com/reedkernel/narrator/observability"
	"github.com/reedkernel/narrator/rules"
	"github.com/reedkernel/narrator/seed"
	"github.com/reedkernel/narrator/whitelist"
)

// GranularitySteps maps a tick granularity name (year/month/day/
// immediate) to the number of ticks the Clock advances by for it (spec
// §4.7 step 1).
type GranularitySteps map[string]int64

// Config bundles the per-tick policy knobs the Kernel needs, independent
// of how they were loaded (the config package's YAML loader is the
// production source; tests construct this directly).
type Config struct {
	MaxRetries       int
	GranularitySteps GranularitySteps
	DefaultStep      int64
}

// GranularityPicker chooses which granularity (a key of
// Config.GranularitySteps) the Narrator advances by this tick. Callers
// supply their own calendar/phenology-driven policy; the Kernel only
// needs the chosen tick-step, looked up from Config.GranularitySteps.
type GranularityPicker func(world domain.WorldState) (granularity string, rationale string)

// Kernel is the Narrator Loop orchestrator (spec §4.7): it wires the
// Clock, Seed Manager, Whitelist Validator, Rule Engine, Interrupt
// Manager, Router, and DM Resolver into the per-tick adjudication
// algorithm and commits one Event per ACTIVE character to the Event Log.
type Kernel struct {
	clock      *clock.Clock
	seeds      *seed.Manager
	whitelist  *whitelist.Validator
	rules      *rules.Engine
	interrupts *interrupt.Manager
	router     *llms.Router
	resolver   *dm.Resolver
	sink       eventlog.Sink
	obs        *observability.Manager

	config          Config
	pickGranularity GranularityPicker

	world domain.WorldState
}

// KernelOption configures optional Kernel dependencies.
type KernelOption func(*Kernel)

// WithObservability attaches a non-default observability.Manager (tests
// and callers that want real tracing/metrics rather than the no-op
// default constructed by New).
func WithObservability(obs *observability.Manager) KernelOption {
	return func(k *Kernel) { k.obs = obs }
}

// WithGranularityPicker overrides the default granularity policy, which
// always picks "immediate".
func WithGranularityPicker(pick GranularityPicker) KernelOption {
	return func(k *Kernel) { k.pickGranularity = pick }
}

// New assembles a Kernel from its component dependencies and initial
// world snapshot. providerID selects which registered Router provider
// the DM Resolver calls; an empty string defers to the Router's default.
func New(
	clk *clock.Clock,
	seeds *seed.Manager,
	wl *whitelist.Validator,
	ruleEngine *rules.Engine,
	interrupts *interrupt.Manager,
	router *llms.Router,
	dmProviderID string,
	sink eventlog.Sink,
	cfg Config,
	initialWorld domain.WorldState,
	opts ...KernelOption,
) *Kernel {
	k := &Kernel{
		clock:      clk,
		seeds:      seeds,
		whitelist:  wl,
		rules:      ruleEngine,
		interrupts: interrupts,
		router:     router,
		resolver:   dm.New(router, dmProviderID),
		sink:       sink,
		obs:        observability.NoopManager(),
		config:     cfg,
		pickGranularity: func(domain.WorldState) (string, string) {
			return "immediate", "no phenology-driven granularity policy configured"
		},
		world: initialWorld,
	}
	for _, opt := range opts {
		opt(k)
	}
	observability.SetGlobalMetrics(k.obs.Metrics)
	return k
}

// World returns the Kernel's current world snapshot.
func (k *Kernel) World() domain.WorldState {
	return k.world
}
