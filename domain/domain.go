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

// Package domain holds the immutable value objects shared by every
// component of the simulation kernel: ticks, characters, world snapshots,
// intents, verdicts, outcomes, events, and the rule/whitelist entities
// that describe how those are produced.
//
// Every type here is a value object: construction is the only way to
// populate it, and nothing in the kernel mutates one after it has been
// handed to another component. State progression is expressed by
// producing a new, tick-indexed version rather than editing in place.
package domain

import "fmt"

// Tick is an opaque monotonic counter. It carries no wall-clock mapping —
// see the Clock component for the invariant that it never decreases.
type Tick int64

// CharacterState is the execution-cost class of a Character for a given
// tick: it determines whether the Narrator solicits an LLM intent for it.
type CharacterState string

const (
	// StateActive characters produce intents via the LLM path.
	StateActive CharacterState = "ACTIVE"
	// StatePassive characters receive rule-only updates, no LLM call.
	StatePassive CharacterState = "PASSIVE"
	// StateDormant characters advance in time only.
	StateDormant CharacterState = "DORMANT"
)

// CharacterID identifies a Character across ticks.
type CharacterID string

// Character is an immutable snapshot of one actor in the world at a tick.
type Character struct {
	ID         CharacterID
	State      CharacterState
	Attributes map[string]any
	Visibility VisibilityScope
}

// VisibilityScope names the set of facts a Character is authorized to
// see when the Narrator builds its per-character context. The rule
// language for scoping is left to callers (spec Open Question); this is
// the identifier they key off of.
type VisibilityScope string

// WorldState is a single tick's immutable snapshot of the simulated
// world. A new WorldState is produced once per tick and never mutated.
type WorldState struct {
	Tick       Tick
	Phenology  map[string]any
	Resources  map[string]float64
	Characters map[CharacterID]Character
}

// Clone returns a deep-enough copy of the WorldState suitable for a rule
// or the Narrator to derive a next-tick snapshot from without aliasing
// the receiver's maps.
func (w WorldState) Clone() WorldState {
	phenology := make(map[string]any, len(w.Phenology))
	for k, v := range w.Phenology {
		phenology[k] = v
	}
	resources := make(map[string]float64, len(w.Resources))
	for k, v := range w.Resources {
		resources[k] = v
	}
	characters := make(map[CharacterID]Character, len(w.Characters))
	for k, v := range w.Characters {
		characters[k] = v
	}
	return WorldState{
		Tick:       w.Tick,
		Phenology:  phenology,
		Resources:  resources,
		Characters: characters,
	}
}

// Intent is an action a Character's agent wishes to perform, as produced
// by the LLM path (or synthesized as a fallback).
type Intent struct {
	Action     string
	Parameters map[string]any
	FlavorText string
	Author     CharacterID
	Attempt    int
}

// VerdictStatus is the Narrator's binary decision on an Intent.
type VerdictStatus string

const (
	// Approved intents proceed to the DM.
	Approved VerdictStatus = "APPROVED"
	// Rejected intents enter the retry sub-loop.
	Rejected VerdictStatus = "REJECTED"
)

// Verdict is the Narrator's decision on a single Intent attempt.
type Verdict struct {
	Status VerdictStatus
	Reason string
	Note   string
}

// Outcome is the DM Resolver's structured result for one approved (or
// fallback) intent.
type Outcome struct {
	Verdict         Verdict
	Result          map[string]any
	RuleTrace       []RuleExecutionRecord
	Fallback        bool
	FallbackReason  string
}

// Attempt is one entry in an Event's verdict chain: an Intent and the
// Verdict the Narrator reached for it.
type Attempt struct {
	Intent Intent
	Verdict Verdict
}

// TokenUsage reports how many LLM tokens an Event's intent solicitation
// and DM resolution together consumed. It mirrors llms.TokenUsage; it is
// duplicated here rather than imported so that domain stays a leaf
// package with no dependency on the LLM layer.
type TokenUsage struct {
	Prompt     int
	Completion int
	Total      int
}

// Event is the single, append-once record committed to the Event Log for
// one Character at one tick, regardless of how many attempts it took.
type Event struct {
	Tick        Tick
	CharacterID CharacterID
	Attempts    []Attempt
	Outcome     Outcome
	SeedLabels  []string
	TokenUsage  TokenUsage

	// Aborted marks a tick that was cut short by a rule-engine or
	// interrupt error (spec §7): the record is partial and must not be
	// treated as a normal completed Event on replay.
	Aborted bool
}

// Validate checks the structural invariants spec.md §3 assigns to Event:
// a non-empty verdict chain that ends in APPROVED or a flagged fallback.
func (e Event) Validate() error {
	if len(e.Attempts) == 0 {
		return fmt.Errorf("event for character %q has an empty verdict chain", e.CharacterID)
	}
	if e.Aborted {
		return nil
	}
	last := e.Attempts[len(e.Attempts)-1]
	if last.Verdict.Status != Approved && !e.Outcome.Fallback {
		return fmt.Errorf("event for character %q ends in %s without fallback=true", e.CharacterID, last.Verdict.Status)
	}
	if e.Outcome.Fallback && e.Outcome.FallbackReason == "" {
		return fmt.Errorf("event for character %q has fallback=true but no fallback_reason", e.CharacterID)
	}
	return nil
}

// ActionRule is one entry of the whitelist: an action name plus the
// parameter keys an Intent for it must and may carry.
type ActionRule struct {
	Action   string
	Required map[string]struct{}
	Optional map[string]struct{}
}

// RuleExecutionRecord is the Rule Engine's audit trail for a single rule
// evaluated against a RuleContext: whether it hit, at what priority and
// registration order, a digest of the context it saw, and the effect it
// produced (nil on miss).
type RuleExecutionRecord struct {
	RuleID             string
	Hit                bool
	Priority           int
	RegistrationOrder  int
	ContextDigest      string
	Reason             string
	Effect             map[string]any
}

// InterruptSignal is a structured message an interrupt rule raises while
// the Interrupt Manager polls a context.
type InterruptSignal struct {
	Kind            string
	Payload         map[string]any
	OriginatingRule string
}

// HaltTick is the InterruptSignal kind that tells the Narrator to
// truncate the remainder of the current tick's work.
const HaltTick = "HALT_TICK"
