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

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
)

var envVarPatterns = struct {
	withDefault *regexp.Regexp // ${VAR:-default}
	braced      *regexp.Regexp // ${VAR}
	simple      *regexp.Regexp // $VAR
}{
	withDefault: regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*):-(.*?)\}`),
	braced:      regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)\}`),
	simple:      regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`),
}

// expandEnvVars expands ${VAR:-default}, ${VAR}, and $VAR references in s.
// Unlike the zero-config convenience layer this kernel's ambient stack is
// adapted from, a bare ${VAR}/$VAR with no default and no value set in
// the environment fails loudly (spec §6) rather than silently expanding
// to the empty string.
func expandEnvVars(s string) (string, error) {
	if !strings.Contains(s, "$") {
		return s, nil
	}

	s = envVarPatterns.withDefault.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarPatterns.withDefault.FindStringSubmatch(match)
		if len(parts) != 3 {
			return match
		}
		if val, ok := os.LookupEnv(parts[1]); ok {
			return val
		}
		return parts[2]
	})

	var missing []string
	expandRequired := func(re *regexp.Regexp, groupIdx int) {
		s = re.ReplaceAllStringFunc(s, func(match string) string {
			parts := re.FindStringSubmatch(match)
			if len(parts) <= groupIdx {
				return match
			}
			name := parts[groupIdx]
			val, ok := os.LookupEnv(name)
			if !ok {
				missing = append(missing, name)
				return match
			}
			return val
		})
	}
	expandRequired(envVarPatterns.braced, 1)
	expandRequired(envVarPatterns.simple, 1)

	if len(missing) > 0 {
		return "", fmt.Errorf("undefined environment variable(s) referenced in config: %s", strings.Join(missing, ", "))
	}
	return s, nil
}

// expandEnvVarsInData recursively expands environment variable references
// in a raw YAML-decoded tree (map[string]any / []any / string / scalar).
func expandEnvVarsInData(data any) (any, error) {
	switch v := data.(type) {
	case string:
		return expandEnvVars(v)

	case map[string]any:
		result := make(map[string]any, len(v))
		for key, value := range v {
			expanded, err := expandEnvVarsInData(value)
			if err != nil {
				return nil, err
			}
			result[key] = expanded
		}
		return result, nil

	case []any:
		result := make([]any, len(v))
		for i, item := range v {
			expanded, err := expandEnvVarsInData(item)
			if err != nil {
				return nil, err
			}
			result[i] = expanded
		}
		return result, nil

	default:
		return v, nil
	}
}

// loadEnvFiles loads .env.local then .env into the process environment,
// in that priority order, without overwriting variables already set.
func loadEnvFiles() error {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}
