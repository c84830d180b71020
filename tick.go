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
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/reedkernel/narrator/dm"
	"github.com/reedkernel/narrator/domain"
	"github.com/reedkernel/narrator/interrupt"
	"github.com/reedkernel/narrator/kernelerrors"
	"github.com/reedkernel/narrator/llms"
	"github.com/reedkernel/narrator/observability"
	"github.com/reedkernel/narrator/rules"
	"github.com/reedkernel/narrator/seed"
)

// tickAbortCharacterID is the sentinel CharacterID used for the partial
// Event recorded when a tick aborts at a point where the failure is not
// attributed to one character: the environmental pre-pass, and a
// rule-engine error surfacing from the concurrent ACTIVE-character
// fan-out. The passive-character loop records the failing character's
// own id instead.
const tickAbortCharacterID domain.CharacterID = "__tick__"

// TickResult summarizes one Step call: the new world snapshot, the
// granularity chosen, and every Event committed this tick (in the
// deterministic character-id commit order).
type TickResult struct {
	Tick        domain.Tick
	Granularity string
	Rationale   string
	World       domain.WorldState
	Events      []domain.Event
	Aborted     bool
}

// Step runs exactly one tick of the Narrator Loop (spec §4.7): advance,
// environmental pre-pass, partition, per-ACTIVE-character solicit /
// adjudicate / retry / fallback / DM-resolve / apply, interrupt polling,
// and a single Event append per ACTIVE character.
func (k *Kernel) Step(ctx context.Context) (result TickResult, err error) {
	start := time.Now()
	defer func() { k.obs.Metrics.ObserveTick(time.Since(start)) }()

	ctx, span := k.obs.Tracer.Start(ctx, observability.SpanTick)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "success")
		}
		span.End()
	}()

	// 1. Advance.
	granularity, rationale := k.pickGranularity(k.world)
	step, ok := k.config.GranularitySteps[granularity]
	if !ok || step <= 0 {
		step = k.config.DefaultStep
		if step <= 0 {
			step = 1
		}
	}
	tick, err := k.clock.Advance(step)
	if err != nil {
		return TickResult{}, err
	}
	span.SetAttributes(attribute.Int64(observability.AttrTick, int64(tick)))

	world := k.world
	world.Tick = tick

	// 2. Phenology & rules pre-pass (environmental rules only).
	envCtx := rules.Context{World: &world, Tick: tick, Seed: seed.NewHandle(k.seeds, fmt.Sprintf("tick:%d:environment", tick))}
	envResult, err := k.rules.Evaluate(envCtx, rules.ByTag("environmental"))
	if err != nil {
		return TickResult{}, k.appendAborted(abortedEvent(tick, tickAbortCharacterID, err), err)
	}
	world = applyEffects(world, envResult.Effects)

	// 3. Character partition.
	var active, passive, dormant []domain.Character
	for _, c := range world.Characters {
		switch c.State {
		case domain.StateActive:
			active = append(active, c)
		case domain.StatePassive:
			passive = append(passive, c)
		default:
			dormant = append(dormant, c)
		}
	}
	_ = dormant // dormant characters advance in time only; nothing further to do this tick

	// Passive characters receive rule-only updates: run the full
	// (unfiltered) rule set scoped to each, no LLM involvement.
	for _, c := range passive {
		charCtx := rules.Context{World: &world, Tick: tick, Character: &c,
			Seed: seed.NewHandle(k.seeds, fmt.Sprintf("tick:%d:char:%s", tick, c.ID))}
		passiveResult, err := k.rules.Evaluate(charCtx, nil)
		if err != nil {
			return TickResult{}, k.appendAborted(abortedEvent(tick, c.ID, err), err)
		}
		world = applyEffects(world, passiveResult.Effects)
	}

	// 4-10. ACTIVE characters: fan out concurrently (each works off an
	// immutable world snapshot), collect in stable character-id order.
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })

	results := make([]activeResult, len(active))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, c := range active {
		i, c := i, c
		group.Go(func() error {
			res, err := k.resolveCharacter(groupCtx, tick, world, c, envResult.Records)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		if kind, _ := kernelerrors.KindOf(err); kind == kernelerrors.RuleError {
			return TickResult{}, k.appendAborted(abortedEvent(tick, tickAbortCharacterID, err), err)
		}
		return TickResult{}, err
	}

	// 11. Apply outcomes to the world, in character-id order, then poll
	// interrupts for each. Both the rule-engine apply and the interrupt
	// poll run sequentially per spec's "commit order is character-id
	// order" ordering guarantee.
	events := make([]domain.Event, 0, len(active))
	aborted := false
	for _, res := range results {
		world = applyEffects(world, res.ruleEffects)
		world = applyEffects(world, res.outcome.Result)

		interruptCtx := rules.Context{World: &world, Tick: tick, Character: &res.character,
			Seed: seed.NewHandle(k.seeds, fmt.Sprintf("tick:%d:char:%s", tick, res.character.ID))}
		signals, err := k.interrupts.Poll(interruptCtx)
		if err != nil {
			return TickResult{}, k.appendAborted(abortedEvent(tick, res.character.ID, err), err)
		}

		event := domain.Event{
			Tick:        tick,
			CharacterID: res.character.ID,
			Attempts:    res.attempts,
			Outcome:     res.outcome,
			SeedLabels:  res.seedLabels,
			TokenUsage:  res.tokenUsage,
		}
		if err := event.Validate(); err != nil {
			return TickResult{}, kernelerrors.Wrap(kernelerrors.InvalidArgument, err, "event failed validation before append")
		}

		// 12. Append. A single Event per character, regardless of attempts.
		if err := k.sink.Append(event); err != nil {
			return TickResult{}, err
		}
		events = append(events, event)

		if interrupt.HasHaltTick(signals) {
			aborted = true
			break
		}
	}

	k.world = world

	return TickResult{
		Tick:        tick,
		Granularity: granularity,
		Rationale:   rationale,
		World:       world,
		Events:      events,
		Aborted:     aborted,
	}, nil
}

// activeResult is one ACTIVE character's full adjudication trail for a
// tick, produced by resolveCharacter and merged into the world/event log
// in stable character-id order by Step.
type activeResult struct {
	character   domain.Character
	attempts    []domain.Attempt
	outcome     domain.Outcome
	seedLabels  []string
	tokenUsage  domain.TokenUsage
	ruleEffects map[string]any
}

// resolveCharacter runs steps 4-10 of the Narrator Loop for a single
// ACTIVE character: visibility-scoped intent solicitation, whitelist
// validation, adjudication, the retry sub-loop, fallback, a character-
// scoped Rule Engine pass (the same evaluation passive characters receive,
// run here so an ACTIVE character's world-facing rules still fire and its
// Outcome carries a RuleTrace), deterministic DM packaging, and DM
// resolution. envRecords is the tick's environmental pre-pass audit trail
// (spec §4.7 step 2), prepended to this character's own RuleTrace since
// it applied to the world this character acted in.
func (k *Kernel) resolveCharacter(ctx context.Context, tick domain.Tick, world domain.WorldState, character domain.Character, envRecords []domain.RuleExecutionRecord) (activeResult, error) {
	handle := seed.NewHandle(k.seeds, fmt.Sprintf("tick:%d:char:%s", tick, character.ID))

	var attempts []domain.Attempt
	var seedLabels []string
	var approved *domain.Intent
	var lastReason string
	var tokenUsage domain.TokenUsage

	maxAttempts := k.config.MaxRetries + 1
	for attemptN := 1; attemptN <= maxAttempts; attemptN++ {
		label := handle.Label(fmt.Sprintf("attempt:%d", attemptN))
		seedLabels = append(seedLabels, label)

		intent, usage, err := k.solicitIntent(ctx, tick, world, character, attemptN, lastReason)
		if err != nil {
			reason := translateProviderError(err)
			attempts = append(attempts, domain.Attempt{
				Intent:  domain.Intent{Author: character.ID, Attempt: attemptN},
				Verdict: domain.Verdict{Status: domain.Rejected, Reason: reason},
			})
			lastReason = reason
			continue
		}
		tokenUsage.Prompt += usage.Prompt
		tokenUsage.Completion += usage.Completion
		tokenUsage.Total += usage.Total

		validated, valErr := k.whitelist.Validate(intent)
		if valErr != nil {
			reason := reasonCode(valErr)
			attempts = append(attempts, domain.Attempt{
				Intent:  intent,
				Verdict: domain.Verdict{Status: domain.Rejected, Reason: reason},
			})
			lastReason = reason
			if k.obs != nil && k.obs.Metrics != nil && attemptN < maxAttempts {
				k.obs.Metrics.IncRetry()
			}
			continue
		}

		attempts = append(attempts, domain.Attempt{
			Intent:  validated,
			Verdict: domain.Verdict{Status: domain.Approved},
		})
		approved = &validated
		break
	}

	fallback := false
	fallbackReason := ""
	finalIntent := domain.Intent{}
	if approved != nil {
		finalIntent = *approved
	} else {
		fallback = true
		fallbackReason = lastReason
		if k.obs != nil && k.obs.Metrics != nil {
			k.obs.Metrics.IncFallback()
		}
		finalIntent = fallbackIntentFor("default", character.ID, len(attempts)+1)
		attempts = append(attempts, domain.Attempt{
			Intent:  finalIntent,
			Verdict: domain.Verdict{Status: domain.Approved},
		})
	}

	// Character-scoped rule pass: the same unfiltered evaluation passive
	// characters receive, so an ACTIVE character's world-facing rules
	// still fire even though its intent comes from the LLM path. Its
	// effects are folded into the DM's view of the world and deferred to
	// Step's sequential apply (spec's commit-order guarantee); its
	// records become part of this character's RuleTrace.
	ruleCtx := rules.Context{World: &world, Tick: tick, Character: &character, Seed: handle}
	ruleResult, err := k.rules.Evaluate(ruleCtx, nil)
	if err != nil {
		return activeResult{}, err
	}
	worldForDM := applyEffects(world, ruleResult.Effects)

	// 9. Deterministic packaging.
	pkg := dm.Package{
		Tick:           tick,
		Character:      character,
		World:          worldForDM,
		RuleSnapshot:   ruleSnapshotID(worldForDM),
		Intent:         finalIntent,
		Fallback:       fallback,
		FallbackReason: fallbackReason,
		SubSeed:        handle.Sub("dm"),
	}

	// 10. DM resolution.
	outcome, dmUsage, err := k.resolver.Resolve(ctx, pkg)
	if err != nil {
		return activeResult{}, err
	}
	tokenUsage.Prompt += dmUsage.Prompt
	tokenUsage.Completion += dmUsage.Completion
	tokenUsage.Total += dmUsage.Total

	outcome.RuleTrace = append(append([]domain.RuleExecutionRecord{}, envRecords...), ruleResult.Records...)

	return activeResult{
		character:   character,
		attempts:    attempts,
		outcome:     outcome,
		seedLabels:  seedLabels,
		tokenUsage:  tokenUsage,
		ruleEffects: ruleResult.Effects,
	}, nil
}

// solicitIntent builds a visibility-scoped context for character and
// requests a structured intent from the Router (spec §4.7 steps 4-5).
// On attempt > 1, the prior rejection reason is fed back as context.
func (k *Kernel) solicitIntent(ctx context.Context, tick domain.Tick, world domain.WorldState, character domain.Character, attemptN int, priorReason string) (domain.Intent, llms.TokenUsage, error) {
	visible := scopeVisibility(world, character)

	worldJSON, _ := json.Marshal(visible)
	attrsJSON, _ := json.Marshal(character.Attributes)

	prompt := fmt.Sprintf("tick=%d\ncharacter_id=%s\ncharacter_attributes=%s\nvisible_world=%s\n",
		tick, character.ID, attrsJSON, worldJSON)
	if priorReason != "" {
		prompt += fmt.Sprintf("previous_attempt_rejected=true\nrejection_reason=%s\n", priorReason)
	}

	req := llms.Request{
		SystemPrompt:  intentSystemPrompt,
		UserPrompt:    prompt,
		Temperature:   0.9,
		CorrelationID: fmt.Sprintf("tick:%d:char:%s:attempt:%d", tick, character.ID, attemptN),
	}

	resp, err := k.router.CompleteStructured(ctx, "", req, llms.IntentSchema)
	if err != nil {
		return domain.Intent{}, llms.TokenUsage{}, err
	}

	action, _ := resp.Structured["action"].(string)
	flavorText, _ := resp.Structured["flavor_text"].(string)
	params, _ := resp.Structured["parameters"].(map[string]any)

	return domain.Intent{
		Action:     action,
		Parameters: params,
		FlavorText: flavorText,
		Author:     character.ID,
		Attempt:    attemptN,
	}, resp.Usage, nil
}

const intentSystemPrompt = `You play one character in a simulated world. Given the character's ` +
	`attributes and the facts currently visible to them, respond with a single JSON object ` +
	`containing "action" (a whitelisted action name), "parameters" (an object), and "flavor_text" ` +
	`(a short first-person description of the attempt).`

// translateProviderError converts a Router/provider failure into a
// REJECTED verdict's reason code (spec §5: "On timeout, the call
// surfaces provider-unavailable; the Narrator treats this as a REJECTED
// verdict with reason timeout"). Any other provider error becomes
// "provider_error".
func translateProviderError(err error) string {
	kind, _ := kernelerrors.KindOf(err)
	if kind == kernelerrors.ProviderUnavailable {
		return "timeout"
	}
	return "provider_error"
}

// reasonCode maps a whitelist validation error to its spec §4.3 reason
// code, falling back to the error's own message if it is not one of
// ours (defensive; whitelist.Validate only ever returns these kinds).
func reasonCode(err error) string {
	kind, ok := kernelerrors.KindOf(err)
	if !ok {
		return err.Error()
	}
	switch kind {
	case kernelerrors.UnknownAction:
		return "unknown_action"
	case kernelerrors.MissingParameter:
		return "missing_parameter"
	case kernelerrors.UnknownParameter:
		return "unknown_parameter"
	default:
		return string(kind)
	}
}

// scopeVisibility returns the subset of world a character's
// VisibilityScope authorizes it to see. The rule language for scoping is
// left to callers per spec's Open Question; this default implementation
// passes through global Resources and Phenology (facts with no
// per-character secrecy model) and the character's own record, plus
// every other character whose VisibilityScope matches the viewer's.
func scopeVisibility(world domain.WorldState, viewer domain.Character) domain.WorldState {
	visible := domain.WorldState{
		Tick:       world.Tick,
		Phenology:  world.Phenology,
		Resources:  world.Resources,
		Characters: map[domain.CharacterID]domain.Character{viewer.ID: viewer},
	}
	for id, c := range world.Characters {
		if id == viewer.ID {
			continue
		}
		if viewer.Visibility != "" && c.Visibility == viewer.Visibility {
			visible.Characters[id] = c
		}
	}
	return visible
}

// applyEffects folds a rule evaluation's merged effects into world,
// last-write-wins per field, writing into Resources/Phenology/Characters
// by key depending on the effect's shape. Effects are addressed by a
// "resources.<key>", "phenology.<key>", or "character.<id>.<field>" path
// so a single merged map can target any part of the snapshot.
func applyEffects(world domain.WorldState, effects map[string]any) domain.WorldState {
	if len(effects) == 0 {
		return world
	}
	next := world.Clone()
	for path, value := range effects {
		applyEffectPath(&next, path, value)
	}
	return next
}

func applyEffectPath(world *domain.WorldState, path string, value any) {
	switch {
	case strings.HasPrefix(path, "resources."):
		key := strings.TrimPrefix(path, "resources.")
		if f, ok := toFloat(value); ok {
			world.Resources[key] = f
		}
	case strings.HasPrefix(path, "phenology."):
		key := strings.TrimPrefix(path, "phenology.")
		world.Phenology[key] = value
	case strings.HasPrefix(path, "character."):
		applyCharacterEffect(world, strings.TrimPrefix(path, "character."), value)
	default:
		world.Phenology[path] = value
	}
}

// applyCharacterEffect writes a "character.<id>.<field>" effect against
// world.Characters[id]. field "state" drives the lifecycle transition
// spec.md §3 documents ("its state-mode may change each tick through rule
// outcomes"); any other field lands in the character's Attributes map.
// An id not present in world, or a malformed rest with no ".", is a no-op
// rather than an error — an effect targeting a character that left the
// world this tick should not abort the apply step.
func applyCharacterEffect(world *domain.WorldState, rest string, value any) {
	dot := strings.IndexByte(rest, '.')
	if dot < 0 {
		return
	}
	id := domain.CharacterID(rest[:dot])
	field := rest[dot+1:]

	character, ok := world.Characters[id]
	if !ok {
		return
	}

	switch field {
	case "state":
		state, ok := value.(string)
		if !ok {
			return
		}
		switch domain.CharacterState(state) {
		case domain.StateActive, domain.StatePassive, domain.StateDormant:
			character.State = domain.CharacterState(state)
		}
	default:
		attrs := make(map[string]any, len(character.Attributes)+1)
		for key, v := range character.Attributes {
			attrs[key] = v
		}
		attrs[field] = value
		character.Attributes = attrs
	}
	world.Characters[id] = character
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// abortedEvent builds the partial Event recorded when a rule-engine or
// interrupt error forces a tick to stop early (spec §7: "the Event Log
// records the partial tick with an explicit aborted: true marker"). It
// carries a single synthetic Attempt recording cause, since Event.Validate
// still requires a non-empty verdict chain even for an aborted record.
func abortedEvent(tick domain.Tick, characterID domain.CharacterID, cause error) domain.Event {
	reason := cause.Error()
	return domain.Event{
		Tick:        tick,
		CharacterID: characterID,
		Attempts: []domain.Attempt{{
			Intent:  domain.Intent{Action: "system", Author: characterID},
			Verdict: domain.Verdict{Status: domain.Rejected, Reason: reason},
		}},
		Outcome: domain.Outcome{
			Verdict: domain.Verdict{Status: domain.Rejected, Reason: reason},
		},
		Aborted: true,
	}
}

// appendAborted persists event and returns cause — the rule-engine or
// interrupt error that ended the tick — unless the append itself fails, in
// which case that IO error takes precedence (spec §7: "IO errors on the
// Event Log are fatal").
func (k *Kernel) appendAborted(event domain.Event, cause error) error {
	if err := k.sink.Append(event); err != nil {
		return err
	}
	return cause
}

// ruleSnapshotID identifies the rule state an intent was adjudicated
// under, for the DM package (spec §4.7 step 9). It digests the world's
// tick and resource/phenology keys the same way rules.contextDigest
// does, giving the DM a byte-stable reference without exposing the Rule
// Engine's internals across the package boundary.
func ruleSnapshotID(world domain.WorldState) string {
	keys := make([]string, 0, len(world.Resources)+len(world.Phenology))
	for k := range world.Resources {
		keys = append(keys, "r:"+k)
	}
	for k := range world.Phenology {
		keys = append(keys, "p:"+k)
	}
	sort.Strings(keys)
	h := sha256.New()
	fmt.Fprintf(h, "tick:%d", world.Tick)
	for _, key := range keys {
		fmt.Fprintf(h, "|%s", key)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

