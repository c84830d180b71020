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

// Command narrator-run drives the Narrator Kernel for a fixed number of
// ticks against a config file, an action whitelist, and a world seed.
//
// Usage:
//
//	narrator-run --config config.yaml --whitelist whitelist.yaml --world world.yaml --ticks 10
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/reedkernel/narrator"
	"github.com/reedkernel/narrator/clock"
	"github.com/reedkernel/narrator/config"
	"github.com/reedkernel/narrator/domain"
	"github.com/reedkernel/narrator/eventlog"
	"github.com/reedkernel/narrator/interrupt"
	"github.com/reedkernel/narrator/kernelerrors"
	"github.com/reedkernel/narrator/llms"
	"github.com/reedkernel/narrator/logger"
	"github.com/reedkernel/narrator/observability"
	"github.com/reedkernel/narrator/rules"
	"github.com/reedkernel/narrator/seed"
	"github.com/reedkernel/narrator/whitelist"
)

// Exit codes per spec §6: 0 success, 2 configuration error, 3 provider
// unavailable at startup, 4 fatal rule-engine error, 1 any other.
const (
	exitSuccess             = 0
	exitGeneric             = 1
	exitConfigError         = 2
	exitProviderUnavailable = 3
	exitRuleEngineError     = 4
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(argv []string) int {
	fs := flag.NewFlagSet("narrator-run", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to the kernel configuration file (required)")
	whitelistPath := fs.String("whitelist", "", "path to the action whitelist file (required)")
	worldPath := fs.String("world", "", "path to the initial world seed file (required)")
	eventLogPath := fs.String("event-log", "events.jsonl", "path to the append-only event log file")
	ticks := fs.Int("ticks", 1, "number of ticks to run")
	resumeFrom := fs.Int64("resume-from", -1, "resume the clock from this tick instead of the config's start_tick, appending to an existing event log")
	logLevel := fs.String("log-level", "info", "log level (debug, info, warn, error)")

	if err := fs.Parse(argv); err != nil {
		return exitConfigError
	}
	if *configPath == "" || *whitelistPath == "" || *worldPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: narrator-run --config FILE --whitelist FILE --world FILE [--ticks N] [--resume-from TICK]")
		return exitConfigError
	}

	log := logger.Init(logger.ParseLevel(*logLevel), os.Stderr)

	exitCode, err := execute(log, *configPath, *whitelistPath, *worldPath, *eventLogPath, *ticks, *resumeFrom)
	if err != nil {
		log.Error("narrator-run failed", "error", err.Error())
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return exitCode
}

func execute(log *slog.Logger, configPath, whitelistPath, worldPath, eventLogPath string, ticks int, resumeFrom int64) (int, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return exitConfigError, err
	}

	actionRules, err := config.LoadWhitelist(whitelistPath)
	if err != nil {
		return exitConfigError, err
	}
	wl, err := whitelist.New(actionRules)
	if err != nil {
		return exitConfigError, err
	}

	world, err := config.LoadWorld(worldPath)
	if err != nil {
		return exitConfigError, err
	}

	startTick := cfg.Clock.StartTick
	if resumeFrom >= 0 {
		startTick = resumeFrom
		world.Tick = domain.Tick(resumeFrom)
	}
	clk, err := clock.New(domain.Tick(startTick))
	if err != nil {
		return exitConfigError, err
	}
	seeds := seed.NewManager(cfg.Seed)

	router := llms.NewRouter()
	for id, p := range cfg.LLM.Providers {
		provider, err := buildProvider(id, p)
		if err != nil {
			return exitConfigError, err
		}
		if err := router.Register(provider); err != nil {
			return exitConfigError, err
		}
	}
	if cfg.LLM.DefaultProvider != "" {
		if err := router.SetDefault(cfg.LLM.DefaultProvider); err != nil {
			return exitConfigError, err
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutting down")
		cancel()
	}()

	for _, status := range router.HealthCheckAll(ctx) {
		if !status.Healthy {
			return exitProviderUnavailable, kernelerrors.New(kernelerrors.ProviderUnavailable,
				"at least one configured provider failed its startup health check: "+status.Detail)
		}
	}

	sink, err := eventlog.NewFileSink(eventLogPath)
	if err != nil {
		return exitGeneric, err
	}
	defer sink.Close()

	obs, err := observability.NewManager(ctx, observability.Config{Tracer: observability.TracerConfig{Enabled: false}})
	if err != nil {
		return exitGeneric, err
	}

	kernelCfg := narrator.Config{
		MaxRetries:       cfg.Narrator.MaxRetries,
		GranularitySteps: narrator.GranularitySteps(cfg.Narrator.GranularitySteps),
		DefaultStep:      cfg.Clock.DefaultStep,
	}

	k := narrator.New(clk, seeds, wl, rules.NewEngine(), interrupt.NewManager(), router, cfg.LLM.DefaultProvider,
		sink, kernelCfg, world, narrator.WithObservability(obs))

	for i := 0; i < ticks; i++ {
		select {
		case <-ctx.Done():
			log.Info("run interrupted before completion", "ticks_completed", i)
			return exitSuccess, nil
		default:
		}

		result, err := k.Step(ctx)
		if err != nil {
			if kind, ok := kernelerrors.KindOf(err); ok && kind == kernelerrors.RuleError {
				return exitRuleEngineError, err
			}
			return exitGeneric, err
		}
		log.Info("tick complete", "tick", result.Tick, "granularity", result.Granularity, "events", len(result.Events))
		if result.Aborted {
			log.Warn("tick truncated by HALT_TICK interrupt", "tick", result.Tick)
		}
	}

	return exitSuccess, nil
}

func buildProvider(id string, p config.ProviderConfig) (llms.Provider, error) {
	apiKey, err := p.ResolveAPIKey()
	if err != nil {
		return nil, err
	}

	switch p.Kind {
	case "openai":
		opts := []llms.OpenAIOption{}
		if p.Endpoint != "" {
			opts = append(opts, llms.WithOpenAIHost(p.Endpoint))
		}
		return llms.NewOpenAIProvider(id, apiKey, p.Model, opts...), nil
	case "anthropic":
		return llms.NewAnthropicProvider(id, apiKey, p.Model), nil
	case "ollama":
		opts := []llms.OllamaOption{}
		if p.Endpoint != "" {
			opts = append(opts, llms.WithOllamaHost(p.Endpoint))
		}
		return llms.NewOllamaProvider(id, p.Model, opts...), nil
	default:
		return nil, kernelerrors.Newf(kernelerrors.InvalidConfig, "provider %q: unknown kind %q", id, p.Kind)
	}
}
