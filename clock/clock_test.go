package clock

import "testing"

func TestNew_RejectsNegativeStart(t *testing.T) {
	if _, err := New(-1); err == nil {
		t.Fatal("New(-1): want error")
	}
}

func TestClock_AdvanceIsMonotonic(t *testing.T) {
	c, err := New(5)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Current() != 5 {
		t.Fatalf("Current() = %d, want 5", c.Current())
	}

	next, err := c.Advance(3)
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if next != 8 {
		t.Fatalf("Advance(3) = %d, want 8", next)
	}
	if c.Current() != 8 {
		t.Fatalf("Current() = %d, want 8", c.Current())
	}
}

func TestClock_AdvanceRejectsNonPositiveStep(t *testing.T) {
	c, _ := New(0)
	if _, err := c.Advance(0); err == nil {
		t.Fatal("Advance(0): want error")
	}
	if _, err := c.Advance(-1); err == nil {
		t.Fatal("Advance(-1): want error")
	}
}

func TestClock_PeekDoesNotMutate(t *testing.T) {
	c, _ := New(10)
	peeked, err := c.Peek(5)
	if err != nil {
		t.Fatalf("Peek: %v", err)
	}
	if peeked != 15 {
		t.Fatalf("Peek(5) = %d, want 15", peeked)
	}
	if c.Current() != 10 {
		t.Fatalf("Current() = %d after Peek, want unchanged 10", c.Current())
	}
}
