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

// Package seed implements the Seed Manager (spec §4.2): deterministic
// derivation of labeled 64-bit sub-seeds from a root seed, and restartable
// random streams keyed by those sub-seeds.
package seed

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
)

// Manager holds a root seed and derives deterministic sub-seeds and RNG
// streams from it. A Manager is safe for concurrent use: derivation is a
// pure function of its inputs, there is no mutable state to guard.
type Manager struct {
	root uint64
}

// NewManager builds a Manager around the given 64-bit root seed.
func NewManager(root uint64) *Manager {
	return &Manager{root: root}
}

// SubSeed deterministically derives a 64-bit value from the root seed and
// a free-form label: truncate(SHA-256(root_bytes ‖ 0x00 ‖ label), 8 bytes,
// big-endian). Two calls with the same (root, label) always agree.
func (m *Manager) SubSeed(label string) uint64 {
	var rootBytes [8]byte
	binary.BigEndian.PutUint64(rootBytes[:], m.root)

	h := sha256.New()
	h.Write(rootBytes[:])
	h.Write([]byte{0x00})
	h.Write([]byte(label))
	digest := h.Sum(nil)

	return binary.BigEndian.Uint64(digest[:8])
}

// RNG returns a freshly seeded, restartable random stream keyed by label:
// calling RNG(label) twice yields two independent *rand.Rand values that
// produce identical sequences.
func (m *Manager) RNG(label string) *rand.Rand {
	return rand.New(rand.NewSource(int64(m.SubSeed(label)))) //nolint:gosec // deterministic simulation RNG, not cryptographic
}

// Handle scopes sub-seed derivation to a single tick/character resolution
// so rules and the DM Resolver cannot reach into unrelated labels. The
// Narrator constructs one Handle per resolution with a label prefix of
// the form "tick:<n>:char:<id>".
type Handle struct {
	manager *Manager
	prefix  string
}

// NewHandle builds a Handle over manager scoped to prefix. Callers
// combine it with a purpose suffix via Sub/RNG, e.g.
// Handle{prefix: "tick:1:char:A"}.Sub("attempt:0").
func NewHandle(manager *Manager, prefix string) Handle {
	return Handle{manager: manager, prefix: prefix}
}

func (h Handle) label(purpose string) string {
	if purpose == "" {
		return h.prefix
	}
	return h.prefix + ":" + purpose
}

// Sub derives the sub-seed for this handle's prefix and the given purpose.
func (h Handle) Sub(purpose string) uint64 {
	return h.manager.SubSeed(h.label(purpose))
}

// RNG derives a restartable random stream for this handle's prefix and
// the given purpose.
func (h Handle) RNG(purpose string) *rand.Rand {
	return h.manager.RNG(h.label(purpose))
}

// Label returns the fully-qualified label a Sub/RNG call for purpose
// would use, for recording in an Event's seed_labels.
func (h Handle) Label(purpose string) string {
	return h.label(purpose)
}
