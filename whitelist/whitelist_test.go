package whitelist

import (
	"testing"

	"github.com/reedkernel/narrator/domain"
	"github.com/reedkernel/narrator/kernelerrors"
)

func TestParseRule_OverlapFails(t *testing.T) {
	if _, err := ParseRule("move", []string{"destination"}, []string{"destination"}); err == nil {
		t.Fatal("ParseRule: want error for overlapping required/optional")
	}
}

func TestParseRule_DuplicateFails(t *testing.T) {
	if _, err := ParseRule("move", []string{"destination", "destination"}, nil); err == nil {
		t.Fatal("ParseRule: want error for duplicate required key")
	}
}

func TestNew_RejectsOverlappingRule(t *testing.T) {
	rule := domain.ActionRule{
		Action:   "move",
		Required: map[string]struct{}{"destination": {}},
		Optional: map[string]struct{}{"destination": {}},
	}
	if _, err := New([]domain.ActionRule{rule}); err == nil {
		t.Fatal("New: want error for overlapping rule")
	}
}

func TestValidator_Validate(t *testing.T) {
	rule, err := ParseRule("move", []string{"destination"}, []string{"speed"})
	if err != nil {
		t.Fatalf("ParseRule: %v", err)
	}
	v, err := New([]domain.ActionRule{rule})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	t.Run("unknown action", func(t *testing.T) {
		_, err := v.Validate(domain.Intent{Action: "fly"})
		if kind, _ := kernelerrors.KindOf(err); kind != kernelerrors.UnknownAction {
			t.Fatalf("kind = %v, want UnknownAction", kind)
		}
	})

	t.Run("missing required parameter", func(t *testing.T) {
		_, err := v.Validate(domain.Intent{Action: "move", Parameters: map[string]any{}})
		if kind, _ := kernelerrors.KindOf(err); kind != kernelerrors.MissingParameter {
			t.Fatalf("kind = %v, want MissingParameter", kind)
		}
	})

	t.Run("unknown parameter", func(t *testing.T) {
		_, err := v.Validate(domain.Intent{Action: "move", Parameters: map[string]any{
			"destination": "north", "teleport": true,
		}})
		if kind, _ := kernelerrors.KindOf(err); kind != kernelerrors.UnknownParameter {
			t.Fatalf("kind = %v, want UnknownParameter", kind)
		}
	})

	t.Run("valid with optional omitted", func(t *testing.T) {
		intent, err := v.Validate(domain.Intent{Action: "move", Parameters: map[string]any{"destination": "north"}})
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if intent.Action != "move" {
			t.Fatalf("Action = %q, want move", intent.Action)
		}
	})

	t.Run("valid with optional present", func(t *testing.T) {
		_, err := v.Validate(domain.Intent{Action: "move", Parameters: map[string]any{
			"destination": "north", "speed": "fast",
		}})
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}
	})
}

func TestValidator_ActionsSorted(t *testing.T) {
	ruleB, _ := ParseRule("wait", nil, nil)
	ruleA, _ := ParseRule("attack", nil, nil)
	v, err := New([]domain.ActionRule{ruleB, ruleA})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	actions := v.Actions()
	if len(actions) != 2 || actions[0] != "attack" || actions[1] != "wait" {
		t.Fatalf("Actions() = %v, want [attack wait]", actions)
	}
}
