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
	"encoding/json"

	"github.com/reedkernel/narrator/kernelerrors"
)

// validateStructured parses text as the JSON object (or bare enum value)
// schema describes, failing with ProviderValidation — never a transport
// error (spec §4.6) — if it does not conform. This is the shared
// validation every concrete provider's CompleteStructured runs its raw
// text response through.
func validateStructured(text string, schema Schema) (map[string]any, error) {
	switch schema.Format {
	case FormatEnum:
		var value string
		if err := json.Unmarshal([]byte(text), &value); err != nil {
			value = text
		}
		for _, allowed := range schema.Enum {
			if value == allowed {
				return map[string]any{"value": value}, nil
			}
		}
		return nil, kernelerrors.Newf(kernelerrors.ProviderValidation,
			"%s: response %q is not one of %v", schema.Name, value, schema.Enum)

	case FormatJSON:
		var parsed map[string]any
		if err := json.Unmarshal([]byte(text), &parsed); err != nil {
			return nil, kernelerrors.Wrap(kernelerrors.ProviderValidation, err,
				schema.Name+": response is not valid JSON")
		}
		for _, field := range schema.Fields {
			if _, ok := parsed[field]; !ok {
				return nil, kernelerrors.Newf(kernelerrors.ProviderValidation,
					"%s: response is missing required field %q", schema.Name, field)
			}
		}
		return parsed, nil

	default:
		return nil, kernelerrors.Newf(kernelerrors.ProviderValidation, "unknown schema format %q", schema.Format)
	}
}
