package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_After(t *testing.T) {
	clock := RealClock{}
	select {
	case <-clock.After(10 * time.Millisecond):
	case <-time.After(time.Second):
		t.Error("After did not fire")
	}
}

func TestMockClock_Advance(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)
	clock.Advance(time.Hour)

	if got := clock.Since(start); got != time.Hour {
		t.Errorf("got %v, want 1h", got)
	}
}

func TestMockClock_AfterAdvancesAndFires(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := NewMockClock(start)

	select {
	case fired := <-clock.After(50 * time.Millisecond):
		if !fired.Equal(start.Add(50 * time.Millisecond)) {
			t.Errorf("fired at %v", fired)
		}
	default:
		t.Fatal("mock After should fire immediately")
	}

	sleeps := clock.Sleeps()
	if len(sleeps) != 1 || sleeps[0] != 50*time.Millisecond {
		t.Errorf("unexpected sleeps: %v", sleeps)
	}
}

func TestMockClock_Set(t *testing.T) {
	clock := NewMockClock(time.Time{})
	newTime := time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)
	clock.Set(newTime)

	if !clock.Now().Equal(newTime) {
		t.Errorf("got %v, want %v", clock.Now(), newTime)
	}
}
