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

// Package interrupt implements the Interrupt Manager (spec §4.5): an
// ordered list of interrupt rules polled at defined points in the
// Narrator loop, whose signals may truncate the remaining tick work.
package interrupt

import (
	"fmt"

	"github.com/reedkernel/narrator/domain"
	"github.com/reedkernel/narrator/kernelerrors"
	"github.com/reedkernel/narrator/rules"
)

// Rule raises InterruptSignals when polled against a rules.Context. An
// error aborts the poll and propagates — like the Rule Engine, the
// Interrupt Manager never swallows an error.
type Rule interface {
	ID() string
	Poll(ctx rules.Context) ([]domain.InterruptSignal, error)
}

// Manager holds interrupt rules in registration order.
type Manager struct {
	registered []Rule
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Register appends rule to the manager. Interrupt rules have no priority
// — they run strictly in the order they were registered.
func (m *Manager) Register(rule Rule) {
	m.registered = append(m.registered, rule)
}

// Poll invokes every registered rule in registration order and returns
// the concatenation of their produced signals. A rule error aborts the
// poll and is returned wrapped as kernelerrors.InterruptError.
func (m *Manager) Poll(ctx rules.Context) ([]domain.InterruptSignal, error) {
	var signals []domain.InterruptSignal
	for _, rule := range m.registered {
		produced, err := rule.Poll(ctx)
		if err != nil {
			return signals, kernelerrors.Wrap(kernelerrors.InterruptError, err,
				fmt.Sprintf("interrupt rule %q failed", rule.ID()))
		}
		signals = append(signals, produced...)
	}
	return signals, nil
}

// HasHaltTick reports whether signals contains a HALT_TICK interrupt.
func HasHaltTick(signals []domain.InterruptSignal) bool {
	for _, s := range signals {
		if s.Kind == domain.HaltTick {
			return true
		}
	}
	return false
}
