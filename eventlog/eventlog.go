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

// Package eventlog defines the Event Log sink (spec §6): an append-only,
// never-mutated record of every tick's intents, verdicts, retries,
// fallbacks and outcomes. The interface is the contract the Narrator
// depends on; FileSink is the one production implementation, writing one
// JSON object per line.
package eventlog

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/reedkernel/narrator/domain"
	"github.com/reedkernel/narrator/kernelerrors"
)

// Sink receives Events in commit order and persists them. Implementations
// must never reorder or mutate a previously appended Event — the log is
// exclusively owned and serialized by the Narrator (spec's Ownership
// note), so a Sink itself needs no external lock beyond protecting its
// own write path from concurrent Append calls.
type Sink interface {
	// Append persists event, returning an IOError-kind error on any
	// failure. Per spec §7, IO errors on the Event Log are fatal.
	Append(event domain.Event) error
	// Close releases any resources the sink holds open.
	Close() error
}

// record is the on-disk shape of one Event Log line, matching spec §6's
// "one line per event, structured" record.
type record struct {
	Tick        domain.Tick        `json:"tick"`
	CharacterID domain.CharacterID `json:"character_id"`
	Attempts    []attemptRecord    `json:"attempts"`
	Final       finalRecord        `json:"final"`
	SeedLabels  []string           `json:"seed_labels"`
	TokenUsage  domain.TokenUsage  `json:"token_usage"`
	Aborted     bool               `json:"aborted,omitempty"`
}

type attemptRecord struct {
	Intent  domain.Intent        `json:"intent"`
	Verdict domain.VerdictStatus `json:"verdict"`
	Reason  string               `json:"reason,omitempty"`
}

type finalRecord struct {
	Intent         domain.Intent  `json:"intent"`
	Outcome        map[string]any `json:"outcome"`
	Fallback       bool           `json:"fallback"`
	FallbackReason string         `json:"fallback_reason,omitempty"`
}

func toRecord(event domain.Event) record {
	attempts := make([]attemptRecord, len(event.Attempts))
	for i, a := range event.Attempts {
		attempts[i] = attemptRecord{
			Intent:  a.Intent,
			Verdict: a.Verdict.Status,
			Reason:  a.Verdict.Reason,
		}
	}

	var finalIntent domain.Intent
	if len(event.Attempts) > 0 {
		finalIntent = event.Attempts[len(event.Attempts)-1].Intent
	}

	return record{
		Tick:        event.Tick,
		CharacterID: event.CharacterID,
		Attempts:    attempts,
		Final: finalRecord{
			Intent:         finalIntent,
			Outcome:        event.Outcome.Result,
			Fallback:       event.Outcome.Fallback,
			FallbackReason: event.Outcome.FallbackReason,
		},
		SeedLabels: event.SeedLabels,
		TokenUsage: event.TokenUsage,
		Aborted:    event.Aborted,
	}
}

// FileSink appends one JSON line per Event to an underlying file, opened
// in append-only mode. It is safe for concurrent use; Append serializes
// writes under a mutex so interleaved calls never produce a torn line.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileSink opens (creating if necessary) path for append and returns a
// FileSink writing to it. The file is never truncated: restarting the
// kernel against an existing log resumes appending after its last line.
func NewFileSink(path string) (*FileSink, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, kernelerrors.Wrap(kernelerrors.IOError, err, fmt.Sprintf("open event log %q", path))
	}
	return &FileSink{file: file, enc: json.NewEncoder(file)}, nil
}

// Append writes event as one JSON line.
func (s *FileSink) Append(event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enc.Encode(toRecord(event)); err != nil {
		return kernelerrors.Wrap(kernelerrors.IOError, err, "append event log record")
	}
	if err := s.file.Sync(); err != nil {
		return kernelerrors.Wrap(kernelerrors.IOError, err, "sync event log")
	}
	return nil
}

// Close closes the underlying file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.file.Close(); err != nil {
		return kernelerrors.Wrap(kernelerrors.IOError, err, "close event log")
	}
	return nil
}

// MemorySink accumulates Events in memory, in append order. It is grounded
// on the pack's in-memory event-log idiom (rig's EventLog) and is used by
// tests and by callers that want replay determinism checks without
// touching the filesystem.
type MemorySink struct {
	mu     sync.Mutex
	events []domain.Event
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemorySink) Close() error { return nil }

// Events returns a snapshot of every appended Event, in append order.
func (s *MemorySink) Events() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Event, len(s.events))
	copy(out, s.events)
	return out
}
