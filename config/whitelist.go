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

	"gopkg.in/yaml.v3"

	"github.com/reedkernel/narrator/domain"
	"github.com/reedkernel/narrator/kernelerrors"
	"github.com/reedkernel/narrator/whitelist"
)

type whitelistEntry struct {
	Required []string `yaml:"required"`
	Optional []string `yaml:"optional"`
}

// LoadWhitelist reads the action whitelist YAML file at path (spec §6: a
// mapping action_name → {required, optional}) into ActionRules, failing
// loudly on a duplicated top-level action key — something a plain
// map[string]whitelistEntry unmarshal would silently let the later entry
// win, so the top-level mapping is walked as a yaml.Node first.
func LoadWhitelist(path string) ([]domain.ActionRule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, kernelerrors.Wrap(kernelerrors.IOError, err, fmt.Sprintf("read whitelist %q", path))
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, kernelerrors.Wrap(kernelerrors.InvalidConfig, err, "parse whitelist YAML")
	}
	if len(doc.Content) == 0 {
		return nil, kernelerrors.New(kernelerrors.InvalidConfig, "whitelist file is empty")
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, kernelerrors.New(kernelerrors.InvalidConfig, "whitelist file must be a top-level mapping")
	}

	seen := make(map[string]struct{}, len(root.Content)/2)
	rules := make([]domain.ActionRule, 0, len(root.Content)/2)

	for i := 0; i < len(root.Content); i += 2 {
		keyNode, valueNode := root.Content[i], root.Content[i+1]
		action := keyNode.Value
		if _, dup := seen[action]; dup {
			return nil, kernelerrors.Newf(kernelerrors.InvalidConfig, "whitelist has duplicate action key %q", action)
		}
		seen[action] = struct{}{}

		var entry whitelistEntry
		if err := valueNode.Decode(&entry); err != nil {
			return nil, kernelerrors.Wrap(kernelerrors.InvalidConfig, err, fmt.Sprintf("decode whitelist entry %q", action))
		}

		rule, err := whitelist.ParseRule(action, entry.Required, entry.Optional)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	return rules, nil
}
