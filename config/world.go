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
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/reedkernel/narrator/domain"
	"github.com/reedkernel/narrator/kernelerrors"
)

// worldCharacter is the on-disk shape of one world.characters entry.
type worldCharacter struct {
	State      string         `yaml:"state"`
	Attributes map[string]any `yaml:"attributes"`
	Visibility string         `yaml:"visibility"`
}

// worldDocument is the on-disk shape of a world seed file: the initial
// snapshot a fresh kernel run starts from. Spec.md leaves the concrete
// seed format as an implementation detail (§9 Open Questions); this is
// the decision this repo makes.
type worldDocument struct {
	StartTick  int64                     `yaml:"start_tick"`
	Phenology  map[string]any            `yaml:"phenology"`
	Resources  map[string]float64        `yaml:"resources"`
	Characters map[string]worldCharacter `yaml:"characters"`
}

// LoadWorld reads a world seed file and builds the initial WorldState a
// Kernel starts from. Unknown top-level keys fail loudly, matching the
// rest of this package's config-loading contract.
func LoadWorld(path string) (domain.WorldState, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.WorldState{}, kernelerrors.Wrap(kernelerrors.IOError, err, fmt.Sprintf("read world seed %q", path))
	}

	var doc worldDocument
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return domain.WorldState{}, kernelerrors.Wrap(kernelerrors.InvalidConfig, err, "world seed has unknown or malformed keys")
	}

	world := domain.WorldState{
		Tick:       domain.Tick(doc.StartTick),
		Phenology:  doc.Phenology,
		Resources:  doc.Resources,
		Characters: make(map[domain.CharacterID]domain.Character, len(doc.Characters)),
	}
	if world.Phenology == nil {
		world.Phenology = map[string]any{}
	}
	if world.Resources == nil {
		world.Resources = map[string]float64{}
	}

	for id, c := range doc.Characters {
		state := domain.CharacterState(c.State)
		switch state {
		case domain.StateActive, domain.StatePassive, domain.StateDormant:
		default:
			return domain.WorldState{}, kernelerrors.Newf(kernelerrors.InvalidConfig,
				"world seed: character %q has unknown state %q", id, c.State)
		}
		world.Characters[domain.CharacterID(id)] = domain.Character{
			ID:         domain.CharacterID(id),
			State:      state,
			Attributes: c.Attributes,
			Visibility: domain.VisibilityScope(c.Visibility),
		}
	}

	return world, nil
}
