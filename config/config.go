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

// Package config loads the kernel's YAML configuration file (spec §6):
// clock bounds, retry/granularity policy, and the LLM provider roster.
// Loading performs ${VAR}/${VAR:-default}/$VAR environment substitution
// (missing variables without a default fail loudly) layered on top of
// .env/.env.local files, and rejects unknown top-level keys.
package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/reedkernel/narrator/kernelerrors"
)

// ClockConfig configures the Global Clock's construction.
type ClockConfig struct {
	StartTick   int64 `yaml:"start_tick"`
	DefaultStep int64 `yaml:"default_step"`
}

// NarratorConfig configures the per-tick adjudication loop.
type NarratorConfig struct {
	MaxRetries int `yaml:"max_retries"`
	// GranularitySteps maps a tick granularity name (year/month/day/
	// immediate) to the number of ticks it advances the clock by.
	GranularitySteps map[string]int64 `yaml:"granularity_steps"`
}

// ProviderConfig configures one entry of llm.providers.
type ProviderConfig struct {
	Kind      string `yaml:"kind"` // openai | anthropic | ollama
	Endpoint  string `yaml:"endpoint"`
	Model     string `yaml:"model"`
	APIKeyEnv string `yaml:"api_key_env"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

// LLMConfig configures the Router's provider roster.
type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider"`
	Providers       map[string]ProviderConfig `yaml:"providers"`
}

// Config is the top-level shape of the kernel's YAML configuration file.
type Config struct {
	Seed     uint64         `yaml:"seed"`
	Clock    ClockConfig    `yaml:"clock"`
	Narrator NarratorConfig `yaml:"narrator"`
	LLM      LLMConfig      `yaml:"llm"`
}

const (
	kindOpenAI    = "openai"
	kindAnthropic = "anthropic"
	kindOllama    = "ollama"
)

// Validate checks the structural invariants spec §6 assigns to the
// configuration file.
func (c *Config) Validate() error {
	if c.Clock.StartTick < 0 {
		return kernelerrors.New(kernelerrors.InvalidConfig, "clock.start_tick must be >= 0")
	}
	if c.Clock.DefaultStep <= 0 {
		return kernelerrors.New(kernelerrors.InvalidConfig, "clock.default_step must be > 0")
	}
	if c.Narrator.MaxRetries < 0 {
		return kernelerrors.New(kernelerrors.InvalidConfig, "narrator.max_retries must be >= 0")
	}
	for granularity, step := range c.Narrator.GranularitySteps {
		if step <= 0 {
			return kernelerrors.Newf(kernelerrors.InvalidConfig,
				"narrator.granularity_steps[%q] must be > 0", granularity)
		}
	}
	if len(c.LLM.Providers) > 0 {
		if _, ok := c.LLM.Providers[c.LLM.DefaultProvider]; c.LLM.DefaultProvider != "" && !ok {
			return kernelerrors.Newf(kernelerrors.InvalidConfig,
				"llm.default_provider %q is not in llm.providers", c.LLM.DefaultProvider)
		}
	}
	for id, p := range c.LLM.Providers {
		switch p.Kind {
		case kindOpenAI, kindAnthropic, kindOllama:
		default:
			return kernelerrors.Newf(kernelerrors.InvalidConfig,
				"llm.providers[%q].kind %q is not one of openai, anthropic, ollama", id, p.Kind)
		}
		if p.Model == "" {
			return kernelerrors.Newf(kernelerrors.InvalidConfig, "llm.providers[%q].model is required", id)
		}
	}
	return nil
}

// SetDefaults fills unset fields with the kernel's documented defaults
// (spec §9): 3 retries, and a conventional year/month/day/immediate
// granularity table when none is configured. maxRetriesSet tells
// SetDefaults whether narrator.max_retries was present in the source
// document at all — a zero value for an omitted key defaults to 3, but
// an explicit "max_retries: 0" is a legal configuration (spec §6: "integer
// ≥ 0") and must not be overwritten.
func (c *Config) SetDefaults(maxRetriesSet bool) {
	if c.Clock.DefaultStep == 0 {
		c.Clock.DefaultStep = 1
	}
	if !maxRetriesSet {
		c.Narrator.MaxRetries = 3
	}
	if c.Narrator.GranularitySteps == nil {
		c.Narrator.GranularitySteps = map[string]int64{
			"immediate": 1,
			"day":       1,
			"month":     30,
			"year":      365,
		}
	}
}

// Load reads, env-expands, and strictly decodes the YAML configuration
// file at path. It loads .env.local/.env first so ${VAR} references can
// resolve against them.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, kernelerrors.Wrap(kernelerrors.IOError, err, "load .env files")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, kernelerrors.Wrap(kernelerrors.IOError, err, fmt.Sprintf("read config %q", path))
	}

	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, kernelerrors.Wrap(kernelerrors.InvalidConfig, err, "parse config YAML")
	}

	expanded, err := expandEnvVarsInData(tree)
	if err != nil {
		return nil, kernelerrors.Wrap(kernelerrors.InvalidConfig, err, "expand environment variables")
	}

	reencoded, err := yaml.Marshal(expanded)
	if err != nil {
		return nil, kernelerrors.Wrap(kernelerrors.InvalidConfig, err, "re-encode expanded config")
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(reencoded))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, kernelerrors.Wrap(kernelerrors.InvalidConfig, err, "config has unknown or malformed keys")
	}

	cfg.SetDefaults(keyPresent(tree, "narrator", "max_retries"))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// keyPresent reports whether the dotted path of nested mapping keys was
// actually present in a YAML document decoded into map[string]any,
// distinguishing "key absent" from "key present with a zero value" —
// something decoding straight into the typed Config struct cannot do.
func keyPresent(tree map[string]any, path ...string) bool {
	node := any(tree)
	for _, key := range path {
		m, ok := node.(map[string]any)
		if !ok {
			return false
		}
		value, ok := m[key]
		if !ok {
			return false
		}
		node = value
	}
	return true
}

// ResolveAPIKey reads the API key named by the provider's api_key_env
// from the process environment, failing loudly if it is unset.
func (p ProviderConfig) ResolveAPIKey() (string, error) {
	if p.APIKeyEnv == "" {
		return "", nil
	}
	key, ok := os.LookupEnv(p.APIKeyEnv)
	if !ok {
		return "", kernelerrors.Newf(kernelerrors.InvalidConfig,
			"environment variable %q (api_key_env) is not set", p.APIKeyEnv)
	}
	return key, nil
}
