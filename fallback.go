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

import "github.com/reedkernel/narrator/domain"

// defaultFallbackPolicy is the static table the Narrator draws a
// known-safe intent from when a character exhausts its retries (spec
// §4.7 step 8). It is kept as data, not code (spec §9): every intent
// here must already be whitelisted by the action whitelist the kernel
// is configured with, since fallback intents skip the whitelist check
// but must still make sense to the DM.
var defaultFallbackPolicy = map[string]domain.Intent{
	"default": {
		Action:     "wait",
		Parameters: map[string]any{},
		FlavorText: "pauses, uncertain how to proceed",
	},
}

// fallbackIntentFor returns the fallback intent for contextClass,
// authored by character, at the given attempt index. "default" is used
// when contextClass has no dedicated entry.
func fallbackIntentFor(contextClass string, character domain.CharacterID, attempt int) domain.Intent {
	template, ok := defaultFallbackPolicy[contextClass]
	if !ok {
		template = defaultFallbackPolicy["default"]
	}
	params := make(map[string]any, len(template.Parameters))
	for k, v := range template.Parameters {
		params[k] = v
	}
	return domain.Intent{
		Action:     template.Action,
		Parameters: params,
		FlavorText: template.FlavorText,
		Author:     character,
		Attempt:    attempt,
	}
}
