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

// Package whitelist implements the Whitelist Validator (spec §4.3): a
// pure, side-effect-free static check of an Intent against a loaded
// action schema.
package whitelist

import (
	"sort"
	"strings"

	"github.com/reedkernel/narrator/domain"
	"github.com/reedkernel/narrator/kernelerrors"
)

// Validator holds the loaded action → (required, optional) mapping.
type Validator struct {
	actions map[string]domain.ActionRule
}

// New builds a Validator from a set of ActionRules. It fails loudly
// (InvalidConfig) if a rule's required and optional sets overlap, per
// spec.md §3's ActionRule invariant.
func New(rules []domain.ActionRule) (*Validator, error) {
	actions := make(map[string]domain.ActionRule, len(rules))
	for _, r := range rules {
		for key := range r.Required {
			if _, overlap := r.Optional[key]; overlap {
				return nil, kernelerrors.Newf(kernelerrors.InvalidConfig,
					"action %q: parameter %q is both required and optional", r.Action, key)
			}
		}
		actions[r.Action] = r
	}
	return &Validator{actions: actions}, nil
}

// Validate checks intent against the whitelist. Success returns the
// intent unchanged (it is a value type, so there is nothing to copy
// defensively). Failure returns an *kernelerrors.Error of kind
// UnknownAction, MissingParameter, or UnknownParameter.
func (v *Validator) Validate(intent domain.Intent) (domain.Intent, error) {
	rule, ok := v.actions[intent.Action]
	if !ok {
		return domain.Intent{}, kernelerrors.Newf(kernelerrors.UnknownAction,
			"action %q is not in the whitelist", intent.Action)
	}

	for required := range rule.Required {
		if _, present := intent.Parameters[required]; !present {
			return domain.Intent{}, kernelerrors.Newf(kernelerrors.MissingParameter,
				"action %q is missing required parameter %q", intent.Action, required)
		}
	}

	for key := range intent.Parameters {
		_, isRequired := rule.Required[key]
		_, isOptional := rule.Optional[key]
		if !isRequired && !isOptional {
			return domain.Intent{}, kernelerrors.Newf(kernelerrors.UnknownParameter,
				"action %q does not accept parameter %q", intent.Action, key)
		}
	}

	return intent, nil
}

// Actions returns the whitelisted action names in sorted order, for
// display and debugging.
func (v *Validator) Actions() []string {
	names := make([]string, 0, len(v.actions))
	for name := range v.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Rule returns the ActionRule for name, if whitelisted.
func (v *Validator) Rule(name string) (domain.ActionRule, bool) {
	r, ok := v.actions[name]
	return r, ok
}

// ParseRule builds an ActionRule from plain string slices, failing loudly
// (InvalidConfig) if required and optional overlap or either contains a
// duplicate entry — used by the YAML loader (spec §6: "Duplicated keys or
// overlapping required/optional fail loudly").
func ParseRule(action string, required, optional []string) (domain.ActionRule, error) {
	reqSet := make(map[string]struct{}, len(required))
	for _, key := range required {
		if _, dup := reqSet[key]; dup {
			return domain.ActionRule{}, kernelerrors.Newf(kernelerrors.InvalidConfig,
				"action %q: duplicate required parameter %q", action, key)
		}
		reqSet[key] = struct{}{}
	}

	optSet := make(map[string]struct{}, len(optional))
	for _, key := range optional {
		if _, dup := optSet[key]; dup {
			return domain.ActionRule{}, kernelerrors.Newf(kernelerrors.InvalidConfig,
				"action %q: duplicate optional parameter %q", action, key)
		}
		if _, overlap := reqSet[key]; overlap {
			return domain.ActionRule{}, kernelerrors.Newf(kernelerrors.InvalidConfig,
				"action %q: parameter %q is both required and optional", action, strings.TrimSpace(key))
		}
		optSet[key] = struct{}{}
	}

	return domain.ActionRule{Action: action, Required: reqSet, Optional: optSet}, nil
}
