package rules

import (
	"errors"
	"testing"

	"github.com/reedkernel/narrator/domain"
)

type fakeRule struct {
	id     string
	tags   []string
	hit    bool
	effect map[string]any
	err    error
}

func (r *fakeRule) ID() string { return r.id }

func (r *fakeRule) Evaluate(ctx Context) (Outcome, error) {
	if r.err != nil {
		return Outcome{}, r.err
	}
	if !r.hit {
		return Outcome{Hit: false, Reason: "condition not met"}, nil
	}
	return Outcome{Hit: true, Effect: r.effect}, nil
}

func (r *fakeRule) Tags() []string { return r.tags }

func TestEngine_StableOrderByPriorityThenRegistration(t *testing.T) {
	e := NewEngine()
	var order []string
	record := func(id string) *fakeRule {
		return &fakeRule{id: id, hit: true, effect: map[string]any{id: true}}
	}

	e.Register(record("low-a"), 1)
	e.Register(record("low-b"), 1)
	e.Register(record("high"), 10)

	world := &domain.WorldState{Resources: map[string]float64{}, Phenology: map[string]any{}}
	result, err := e.Evaluate(Context{World: world}, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	for _, rec := range result.Records {
		order = append(order, rec.RuleID)
	}
	want := []string{"high", "low-a", "low-b"}
	for i, id := range want {
		if order[i] != id {
			t.Fatalf("order[%d] = %q, want %q (full order %v)", i, order[i], id, order)
		}
	}
}

func TestEngine_EffectsLastWriteWinsInStableOrder(t *testing.T) {
	e := NewEngine()
	e.Register(&fakeRule{id: "first", hit: true, effect: map[string]any{"resources.food": 1.0}}, 10)
	e.Register(&fakeRule{id: "second", hit: true, effect: map[string]any{"resources.food": 2.0}}, 5)

	world := &domain.WorldState{Resources: map[string]float64{}, Phenology: map[string]any{}}
	result, err := e.Evaluate(Context{World: world}, nil)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if result.Effects["resources.food"] != 2.0 {
		t.Fatalf("Effects[resources.food] = %v, want 2.0 (last write wins)", result.Effects["resources.food"])
	}
}

func TestEngine_ErrorAbortsEvaluation(t *testing.T) {
	e := NewEngine()
	e.Register(&fakeRule{id: "boom", err: errors.New("rule exploded")}, 10)
	e.Register(&fakeRule{id: "never-runs", hit: true}, 5)

	world := &domain.WorldState{Resources: map[string]float64{}, Phenology: map[string]any{}}
	result, err := e.Evaluate(Context{World: world}, nil)
	if err == nil {
		t.Fatal("Evaluate: want error")
	}
	if len(result.Records) != 1 {
		t.Fatalf("len(Records) = %d, want 1 (evaluation stopped at the failing rule)", len(result.Records))
	}
}

func TestEngine_ByTagFiltersToTaggedRules(t *testing.T) {
	e := NewEngine()
	e.Register(&fakeRule{id: "env", tags: []string{"environmental"}, hit: true, effect: map[string]any{"phenology.season": "spring"}}, 1)
	e.Register(&fakeRule{id: "char", hit: true, effect: map[string]any{"should-not-appear": true}}, 1)

	world := &domain.WorldState{Resources: map[string]float64{}, Phenology: map[string]any{}}
	result, err := e.Evaluate(Context{World: world}, ByTag("environmental"))
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(result.Records) != 1 || result.Records[0].RuleID != "env" {
		t.Fatalf("Records = %+v, want only env", result.Records)
	}
	if _, ok := result.Effects["should-not-appear"]; ok {
		t.Fatal("untagged rule's effect leaked through the ByTag filter")
	}
}
