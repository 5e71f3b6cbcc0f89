package shutdown

import (
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestCloseRunsInReverseOrder(t *testing.T) {
	c := NewCoordinator(zap.NewNop())

	var order []string
	c.Register("a", func() error { order = append(order, "a"); return nil })
	c.Register("b", func() error { order = append(order, "b"); return nil })
	c.Register("c", func() error { order = append(order, "c"); return nil })

	c.Close()

	want := []string{"c", "b", "a"}
	if len(order) != len(want) {
		t.Fatalf("expected %d releases, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("release %d: expected %s, got %s", i, want[i], order[i])
		}
	}
}

func TestCloseRunsOnlyOnce(t *testing.T) {
	c := NewCoordinator(zap.NewNop())

	count := 0
	c.Register("a", func() error { count++; return nil })

	c.Close()
	c.Close()

	if count != 1 {
		t.Errorf("expected 1 release, got %d", count)
	}
}

func TestReleaseErrorDoesNotStopOthers(t *testing.T) {
	c := NewCoordinator(zap.NewNop())

	ran := false
	c.Register("a", func() error { ran = true; return nil })
	c.Register("b", func() error { return errors.New("boom") })

	c.Close()

	if !ran {
		t.Error("expected release after a failing one to still run")
	}
}

func TestRegisterAfterCloseRunsImmediately(t *testing.T) {
	c := NewCoordinator(zap.NewNop())
	c.Close()

	ran := false
	c.Register("late", func() error { ran = true; return nil })

	if !ran {
		t.Error("expected late registration to release immediately")
	}
}
