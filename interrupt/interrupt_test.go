package interrupt

import (
	"errors"
	"testing"

	"github.com/reedkernel/narrator/domain"
	"github.com/reedkernel/narrator/rules"
)

type fakeRule struct {
	id      string
	signals []domain.InterruptSignal
	err     error
}

func (r *fakeRule) ID() string { return r.id }

func (r *fakeRule) Poll(ctx rules.Context) ([]domain.InterruptSignal, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.signals, nil
}

func TestManager_PollConcatenatesInRegistrationOrder(t *testing.T) {
	m := NewManager()
	m.Register(&fakeRule{id: "a", signals: []domain.InterruptSignal{{Kind: "NOTICE", OriginatingRule: "a"}}})
	m.Register(&fakeRule{id: "b", signals: []domain.InterruptSignal{{Kind: "NOTICE", OriginatingRule: "b"}}})

	signals, err := m.Poll(rules.Context{})
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if len(signals) != 2 {
		t.Fatalf("len(signals) = %d, want 2", len(signals))
	}
	if signals[0].OriginatingRule != "a" || signals[1].OriginatingRule != "b" {
		t.Fatalf("signals out of registration order: %+v", signals)
	}
}

func TestManager_PollErrorAborts(t *testing.T) {
	m := NewManager()
	m.Register(&fakeRule{id: "boom", err: errors.New("interrupt exploded")})
	m.Register(&fakeRule{id: "never-runs", signals: []domain.InterruptSignal{{Kind: "NOTICE"}}})

	_, err := m.Poll(rules.Context{})
	if err == nil {
		t.Fatal("Poll: want error")
	}
}

func TestHasHaltTick(t *testing.T) {
	if HasHaltTick(nil) {
		t.Fatal("HasHaltTick(nil) = true, want false")
	}
	signals := []domain.InterruptSignal{{Kind: "NOTICE"}, {Kind: domain.HaltTick}}
	if !HasHaltTick(signals) {
		t.Fatal("HasHaltTick: want true when a HALT_TICK signal is present")
	}
}
