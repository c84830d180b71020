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

// Package rules implements the Rule Engine (spec §4.4): priority-ordered
// evaluation of registered rules over a RuleContext, producing an audited
// RuleEngineResult.
package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/reedkernel/narrator/domain"
	"github.com/reedkernel/narrator/kernelerrors"
	"github.com/reedkernel/narrator/seed"
)

// Context is the input a Rule evaluates against: a world snapshot, the
// tick it belongs to, a seed handle scoped to this resolution, the
// Character the rule concerns (nil for environmental rules that are not
// character-scoped), and the effects merged by rules evaluated earlier in
// this pass — rules observe each other through this threaded accumulator.
type Context struct {
	World     *domain.WorldState
	Tick      domain.Tick
	Seed      seed.Handle
	Character *domain.Character
	Effects   map[string]any
}

// Outcome is what a single Rule reports for one Context: either a hit
// with a structured effect, or a miss with a reason.
type Outcome struct {
	Hit    bool
	Effect map[string]any
	Reason string
}

// Rule is a single world rule. ID must be stable across registrations of
// the same logical rule (it appears in every RuleExecutionRecord). An
// error returned from Evaluate aborts the whole engine Evaluate call —
// the spec requires errors never be swallowed.
type Rule interface {
	ID() string
	Evaluate(ctx Context) (Outcome, error)
}

// Tag lets a rule advertise categories (e.g. "environmental") so the
// Narrator can run a tagged subset, per spec §4.7 step 2. Rules that
// don't need tagging need not implement it.
type Tag interface {
	Tags() []string
}

type registration struct {
	rule     Rule
	priority int
	order    int
}

// Engine holds the registered rules in call order and evaluates them in
// stable (−priority, registration order) order.
type Engine struct {
	registrations []registration
}

// NewEngine constructs an empty Engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Register appends rule to the engine with the given priority (higher
// runs earlier). Registration order among equal priorities is preserved.
func (e *Engine) Register(rule Rule, priority int) {
	e.registrations = append(e.registrations, registration{
		rule:     rule,
		priority: priority,
		order:    len(e.registrations),
	})
}

// stableOrder returns the registered rules sorted by (−priority,
// registration index), i.e. highest priority first, ties broken by the
// order Register was called.
func (e *Engine) stableOrder() []registration {
	ordered := make([]registration, len(e.registrations))
	copy(ordered, e.registrations)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].priority != ordered[j].priority {
			return ordered[i].priority > ordered[j].priority
		}
		return ordered[i].order < ordered[j].order
	})
	return ordered
}

// Result is the audited outcome of one Engine.Evaluate call: the effects
// merged across every rule that hit, in stable order (last-write-wins per
// field), and one RuleExecutionRecord per rule evaluated.
type Result struct {
	Effects map[string]any
	Records []domain.RuleExecutionRecord
}

// Evaluate runs every registered rule (optionally filtered by filter,
// e.g. to the "environmental" tag) against ctx in stable order, merging
// each hit's effect into the accumulator the next rule observes via
// ctx.Effects. A rule error aborts evaluation and is returned wrapped as
// kernelerrors.RuleError; the partial Result is still returned so the
// caller can record what ran before the failure.
func (e *Engine) Evaluate(ctx Context, filter func(Rule) bool) (Result, error) {
	if ctx.Effects == nil {
		ctx.Effects = map[string]any{}
	}
	result := Result{Effects: ctx.Effects}

	for _, reg := range e.stableOrder() {
		if filter != nil && !filter(reg.rule) {
			continue
		}

		digest := contextDigest(ctx)
		runCtx := ctx
		runCtx.Effects = result.Effects

		outcome, err := reg.rule.Evaluate(runCtx)
		if err != nil {
			result.Records = append(result.Records, domain.RuleExecutionRecord{
				RuleID:            reg.rule.ID(),
				Hit:               false,
				Priority:          reg.priority,
				RegistrationOrder: reg.order,
				ContextDigest:     digest,
				Reason:            err.Error(),
			})
			return result, kernelerrors.Wrap(kernelerrors.RuleError, err,
				fmt.Sprintf("rule %q failed", reg.rule.ID()))
		}

		record := domain.RuleExecutionRecord{
			RuleID:            reg.rule.ID(),
			Hit:               outcome.Hit,
			Priority:          reg.priority,
			RegistrationOrder: reg.order,
			ContextDigest:     digest,
			Reason:            outcome.Reason,
		}

		if outcome.Hit {
			record.Effect = outcome.Effect
			for field, value := range outcome.Effect {
				result.Effects[field] = value // last-write-wins under stable order
			}
		}

		result.Records = append(result.Records, record)
	}

	return result, nil
}

// ByTag returns a filter that matches rules advertising the given tag via
// the optional Tag interface. Rules that don't implement Tag never match.
func ByTag(tag string) func(Rule) bool {
	return func(r Rule) bool {
		tagged, ok := r.(Tag)
		if !ok {
			return false
		}
		for _, t := range tagged.Tags() {
			if t == tag {
				return true
			}
		}
		return false
	}
}

// contextDigest produces a stable, short fingerprint of the context a
// rule saw, for the RuleExecutionRecord's replay-audit trail. It digests
// the tick, the character id (if any), and the world's resource/phenology
// keys — enough to detect a non-deterministic run without pinning the
// digest to map iteration order.
func contextDigest(ctx Context) string {
	h := sha256.New()
	fmt.Fprintf(h, "tick:%d", ctx.Tick)
	if ctx.Character != nil {
		fmt.Fprintf(h, "|char:%s", ctx.Character.ID)
	}
	if ctx.World != nil {
		keys := make([]string, 0, len(ctx.World.Resources))
		for k := range ctx.World.Resources {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(h, "|res:%s=%v", k, ctx.World.Resources[k])
		}
		phenologyKeys := make([]string, 0, len(ctx.World.Phenology))
		for k := range ctx.World.Phenology {
			phenologyKeys = append(phenologyKeys, k)
		}
		sort.Strings(phenologyKeys)
		for _, k := range phenologyKeys {
			fmt.Fprintf(h, "|phen:%s=%v", k, ctx.World.Phenology[k])
		}
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
