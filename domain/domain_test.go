package domain

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWorldState_CloneIsDeepEqualToOriginal(t *testing.T) {
	w := WorldState{
		Tick:      3,
		Phenology: map[string]any{"season": "autumn"},
		Resources: map[string]float64{"food": 4},
		Characters: map[CharacterID]Character{
			"a": {ID: "a", State: StateActive, Attributes: map[string]any{"hp": 10}},
		},
	}
	clone := w.Clone()
	if diff := cmp.Diff(w, clone); diff != "" {
		t.Fatalf("Clone produced a divergent copy before mutation (-want +got):\n%s", diff)
	}
}

func TestWorldState_CloneDoesNotAlias(t *testing.T) {
	w := WorldState{
		Tick:       1,
		Phenology:  map[string]any{"season": "spring"},
		Resources:  map[string]float64{"food": 10},
		Characters: map[CharacterID]Character{"a": {ID: "a"}},
	}
	clone := w.Clone()
	clone.Phenology["season"] = "winter"
	clone.Resources["food"] = 0
	delete(clone.Characters, "a")

	if w.Phenology["season"] != "spring" {
		t.Fatal("Clone aliased Phenology")
	}
	if w.Resources["food"] != 10 {
		t.Fatal("Clone aliased Resources")
	}
	if _, ok := w.Characters["a"]; !ok {
		t.Fatal("Clone aliased Characters")
	}
}

func TestEvent_ValidateEmptyChainFails(t *testing.T) {
	e := Event{CharacterID: "a"}
	if err := e.Validate(); err == nil {
		t.Fatal("Validate: want error for empty verdict chain")
	}
}

func TestEvent_ValidateApprovedChain(t *testing.T) {
	e := Event{
		CharacterID: "a",
		Attempts: []Attempt{
			{Intent: Intent{Action: "move"}, Verdict: Verdict{Status: Approved}},
		},
		Outcome: Outcome{Verdict: Verdict{Status: Approved}},
	}
	if err := e.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestEvent_ValidateRejectedWithoutFallbackFails(t *testing.T) {
	e := Event{
		CharacterID: "a",
		Attempts: []Attempt{
			{Intent: Intent{Action: "move"}, Verdict: Verdict{Status: Rejected, Reason: "unknown_action"}},
		},
	}
	if err := e.Validate(); err == nil {
		t.Fatal("Validate: want error for REJECTED final attempt without fallback")
	}
}

func TestEvent_ValidateFallbackRequiresReason(t *testing.T) {
	e := Event{
		CharacterID: "a",
		Attempts: []Attempt{
			{Intent: Intent{Action: "wait"}, Verdict: Verdict{Status: Approved}},
		},
		Outcome: Outcome{Fallback: true},
	}
	if err := e.Validate(); err == nil {
		t.Fatal("Validate: want error for fallback=true without fallback_reason")
	}
}

func TestEvent_ValidateAbortedSkipsChainCheck(t *testing.T) {
	e := Event{
		CharacterID: "a",
		Attempts: []Attempt{
			{Intent: Intent{Action: "move"}, Verdict: Verdict{Status: Rejected, Reason: "timeout"}},
		},
		Aborted: true,
	}
	if err := e.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}
