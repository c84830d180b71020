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

// Package logger configures the kernel's structured, slog-based
// diagnostic logging: level parsing and a filtering handler that only
// surfaces third-party library output at debug level, keeping the
// kernel's own tick-by-tick narration legible at info/warn. This is
// diagnostic output, distinct from the Event Log (package eventlog),
// which is the structured, durable record of simulation outcomes.
package logger

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

const narratorPackagePrefix = "github.com/reedkernel/narrator"

// ParseLevel converts a string log level (case-insensitive) to a
// slog.Level. Unrecognized values default to Warn rather than failing,
// matching the leniency of the rest of the ambient logging stack.
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// filteringHandler wraps a slog.Handler and suppresses log records whose
// call site is outside this module, unless the configured level is
// Debug or lower. This keeps third-party dependency chatter (otel SDK
// internals, for example) out of normal operation.
type filteringHandler struct {
	handler  slog.Handler
	minLevel slog.Level
}

func (h *filteringHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.handler.Enabled(ctx, level)
}

func (h *filteringHandler) Handle(ctx context.Context, record slog.Record) error {
	if h.minLevel <= slog.LevelDebug {
		return h.handler.Handle(ctx, record)
	}
	if h.isOwnPackage(record.PC) {
		return h.handler.Handle(ctx, record)
	}
	return nil
}

func (h *filteringHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &filteringHandler{handler: h.handler.WithAttrs(attrs), minLevel: h.minLevel}
}

func (h *filteringHandler) WithGroup(name string) slog.Handler {
	return &filteringHandler{handler: h.handler.WithGroup(name), minLevel: h.minLevel}
}

func (h *filteringHandler) isOwnPackage(pc uintptr) bool {
	if pc == 0 {
		return false
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return false
	}
	fullName := fn.Name()
	file, _ := fn.FileLine(pc)
	return strings.Contains(fullName, narratorPackagePrefix) || strings.Contains(file, "narrator/")
}

// Init builds and installs the process-wide default slog.Logger, writing
// to output at the given level. It returns the logger so callers that
// prefer explicit dependency injection over the global default can use
// it directly.
func Init(level slog.Level, output *os.File) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey && a.Value.String() == "WARNING" {
				return slog.String(slog.LevelKey, "WARN")
			}
			return a
		},
	}

	handler := &filteringHandler{handler: slog.NewJSONHandler(output, opts), minLevel: level}
	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
