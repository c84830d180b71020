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

// Package clock implements the Global Clock (spec §4.1): an opaque
// monotonic tick counter with no mapping to wall-clock time. Downstream
// phenology rules that need calendar semantics must layer above it — see
// spec §9's Open Questions.
package clock

import (
	"sync"

	"github.com/reedkernel/narrator/domain"
	"github.com/reedkernel/narrator/kernelerrors"
)

// Clock is a monotonic tick counter. The zero value is not usable; build
// one with New.
type Clock struct {
	mu  sync.Mutex
	cur domain.Tick
}

// New constructs a Clock starting at startTick. It fails with
// InvalidArgument if startTick is negative.
func New(startTick domain.Tick) (*Clock, error) {
	if startTick < 0 {
		return nil, kernelerrors.Newf(kernelerrors.InvalidArgument, "start_tick must be >= 0, got %d", startTick)
	}
	return &Clock{cur: startTick}, nil
}

// Current returns the clock's present tick.
func (c *Clock) Current() domain.Tick {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

// Advance moves the clock forward by step and returns the new tick. It
// fails with InvalidArgument if step is not positive.
func (c *Clock) Advance(step int64) (domain.Tick, error) {
	if step <= 0 {
		return 0, kernelerrors.Newf(kernelerrors.InvalidArgument, "advance step must be > 0, got %d", step)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur += domain.Tick(step)
	return c.cur, nil
}

// Peek returns what Current() would be after an Advance(step), without
// mutating the clock. It fails with InvalidArgument under the same
// condition as Advance.
func (c *Clock) Peek(step int64) (domain.Tick, error) {
	if step <= 0 {
		return 0, kernelerrors.Newf(kernelerrors.InvalidArgument, "peek step must be > 0, got %d", step)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur + domain.Tick(step), nil
}
