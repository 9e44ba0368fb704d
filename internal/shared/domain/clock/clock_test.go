package clock

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	before := time.Now().UTC().Truncate(time.Microsecond)
	got := RealClock{}.Now()
	after := time.Now().UTC()

	if got.Before(before) || got.After(after) {
		t.Errorf("RealClock.Now() = %v, want between %v and %v", got, before, after)
	}
	if got.Nanosecond()%1000 != 0 {
		t.Errorf("RealClock.Now() = %v, want microsecond precision", got)
	}
}

func TestFixedClock_Now(t *testing.T) {
	fixedTime := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	clock := FixedClock{Time: fixedTime}

	if got := clock.Now(); !got.Equal(fixedTime) {
		t.Errorf("FixedClock.Now() = %v, want %v", got, fixedTime)
	}
	if got := clock.Now(); !got.Equal(fixedTime) {
		t.Errorf("FixedClock.Now() second call = %v, want %v", got, fixedTime)
	}
}

func TestStepClock_Now(t *testing.T) {
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	clock := &StepClock{Start: start, Step: time.Second}

	first := clock.Now()
	second := clock.Now()
	third := clock.Now()

	if !first.Equal(start) {
		t.Errorf("first Now() = %v, want %v", first, start)
	}
	if !second.Equal(start.Add(time.Second)) {
		t.Errorf("second Now() = %v, want %v", second, start.Add(time.Second))
	}
	if !third.After(second) {
		t.Errorf("third Now() = %v, want after %v", third, second)
	}
}

func TestPackageLevelClock(t *testing.T) {
	t.Cleanup(Reset)

	before := time.Now().UTC()
	got := Now()
	after := time.Now().UTC()

	if got.Before(before.Add(-time.Second)) || got.After(after.Add(time.Second)) {
		t.Errorf("Now() with default clock = %v, want close to current time", got)
	}

	fixedTime := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	Set(FixedClock{Time: fixedTime})

	if got := Now(); !got.Equal(fixedTime) {
		t.Errorf("Now() with fixed clock = %v, want %v", got, fixedTime)
	}

	Reset()
	if got := Now(); got.Equal(fixedTime) {
		t.Errorf("Now() after Reset should not equal fixed time")
	}
}
