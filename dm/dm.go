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

// Package dm implements the DM Resolver (spec §4.8): a stateless function
// from (character snapshot, world snapshot, rule snapshot id, sub-seed) to
// a structured Outcome, built by calling the Router with a fixed decision
// prompt and schema. It holds no state across calls beyond the Router it
// wraps.
package dm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/reedkernel/narrator/domain"
	"github.com/reedkernel/narrator/kernelerrors"
	"github.com/reedkernel/narrator/llms"
)

// Package assembles the byte-stable DM input (spec §4.7 step 9): any two
// runs with identical fields produce the same package, and therefore the
// same prompt, for the same provider.
type Package struct {
	Tick           domain.Tick
	Character      domain.Character
	World          domain.WorldState
	RuleSnapshot   string // a rule-trace digest identifying the rule state the intent was adjudicated under
	Intent         domain.Intent
	Fallback       bool
	FallbackReason string
	SubSeed        uint64
}

// Resolver wraps a Router with the fixed decision prompt/schema. It is
// stateless: Resolve never reads or writes resolver-held state, only the
// Package and Router's provider it is given.
type Resolver struct {
	router     *llms.Router
	providerID string
}

// New returns a Resolver that calls providerID through router. An empty
// providerID defers to the Router's configured default.
func New(router *llms.Router, providerID string) *Resolver {
	return &Resolver{router: router, providerID: providerID}
}

// Resolve invokes the DM: a stateless complete_structured call against the
// decision schema (spec §4.8). The response's verdict, reason, and
// outcome populate the returned domain.Outcome; token usage is attached
// separately for the caller to fold into the Event.
func (r *Resolver) Resolve(ctx context.Context, pkg Package) (domain.Outcome, llms.TokenUsage, error) {
	req := llms.Request{
		SystemPrompt:  decisionSystemPrompt,
		UserPrompt:    buildDecisionPrompt(pkg),
		Temperature:   0.7, // free-text narration is not under determinism guarantees (spec §4.8)
		CorrelationID: fmt.Sprintf("tick:%d:char:%s:dm", pkg.Tick, pkg.Character.ID),
	}

	resp, err := r.router.CompleteStructured(ctx, r.providerID, req, llms.DecisionSchema)
	if err != nil {
		return domain.Outcome{}, llms.TokenUsage{}, err
	}

	verdictRaw, _ := resp.Structured["verdict"].(string)
	reason, _ := resp.Structured["reason"].(string)

	status := domain.Rejected
	if verdictRaw == string(domain.Approved) {
		status = domain.Approved
	}

	var result map[string]any
	if outcomeField, ok := resp.Structured["outcome"]; ok {
		if err := mapstructure.Decode(outcomeField, &result); err != nil {
			return domain.Outcome{}, llms.TokenUsage{}, kernelerrors.Wrap(
				kernelerrors.ProviderValidation, err, "decode DM outcome payload")
		}
	}

	outcome := domain.Outcome{
		Verdict:        domain.Verdict{Status: status, Reason: reason},
		Result:         result,
		Fallback:       pkg.Fallback,
		FallbackReason: pkg.FallbackReason,
	}

	return outcome, resp.Usage, nil
}

const decisionSystemPrompt = `You are the narrative adjudicator for a simulated world. ` +
	`Given a character's approved or fallback action, the current world state, and the rules ` +
	`that already fired, produce a structured decision describing what happens. ` +
	`Respond only with a JSON object containing "verdict" ("APPROVED" or "REJECTED"), "reason", ` +
	`and "outcome" (an object describing the structured result of the action).`

func buildDecisionPrompt(pkg Package) string {
	attrs, _ := json.Marshal(pkg.Character.Attributes)
	params, _ := json.Marshal(pkg.Intent.Parameters)
	resources, _ := json.Marshal(pkg.World.Resources)

	prompt := fmt.Sprintf(
		"tick=%d\ncharacter_id=%s\ncharacter_attributes=%s\nrule_snapshot=%s\n"+
			"world_resources=%s\nintent_action=%s\nintent_parameters=%s\nflavor_text=%s\n",
		pkg.Tick, pkg.Character.ID, attrs, pkg.RuleSnapshot, resources,
		pkg.Intent.Action, params, pkg.Intent.FlavorText,
	)
	if pkg.Fallback {
		prompt += fmt.Sprintf("fallback=true\nfallback_reason=%s\n", pkg.FallbackReason)
	}
	return prompt
}
