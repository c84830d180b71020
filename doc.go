// Package narrator implements a deterministic, replayable narrative
// simulation kernel. A central authority (the Narrator) drives a world
// forward tick by tick, adjudicates character intents produced by
// LLM-backed agents, and commits structured outcomes to an append-only
// event log. No human player participates; the world evolves
// autonomously under rules, phenology, and LLM-authored intents.
//
// # Components
//
// The kernel is assembled from leaf packages, each owning one concern:
//
//	clock       monotonic tick counter
//	seed        deterministic sub-seed derivation and restartable RNG streams
//	domain      immutable value objects (Character, WorldState, Intent, Event, ...)
//	whitelist   static action/parameter validation
//	rules       priority-ordered rule evaluation with an audited trail
//	interrupt   registered interrupt rules, polled at defined points
//	llms        the Provider abstraction, concrete providers, and the Router
//	dm          the stateless DM Resolver
//	eventlog    the append-only Event Log sink
//
// This package (narrator) is the orchestrator that wires those leaves
// together into the per-tick adjudication loop: Kernel.Step advances the
// clock, partitions characters by state, solicits and adjudicates
// intents, retries and falls back, invokes the DM, applies outcomes
// through the Rule Engine, polls interrupts, and appends one Event per
// ACTIVE character.
//
// # Determinism
//
// For a fixed root seed and configuration, two runs that receive
// identical provider responses produce byte-identical event logs except
// for token-usage and latency fields. Determinism holds for control flow
// and seed derivation; free-text narration from the LLM path is not
// claimed to be deterministic.
package narrator
