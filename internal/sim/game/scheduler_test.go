package game

import (
	"testing"
	"time"
)

func newTestScheduler() (*Scheduler, *VirtualClock) {
	clock := NewVirtualClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s := NewScheduler(clock, func(f func()) { f() })
	return s, clock
}

func TestSchedulerReplaceSupersedesOldTimer(t *testing.T) {
	s, clock := newTestScheduler()
	var fired []string

	s.Schedule("k", TimerTug, "", 2*time.Second, func(time.Time) { fired = append(fired, "old") })
	s.Schedule("k", TimerTug, "", 5*time.Second, func(time.Time) { fired = append(fired, "new") })

	clock.Advance(3 * time.Second)
	if len(fired) != 0 {
		t.Fatalf("superseded timer fired: %v", fired)
	}
	clock.Advance(3 * time.Second)
	if len(fired) != 1 || fired[0] != "new" {
		t.Fatalf("fired = %v, want [new]", fired)
	}
}

func TestSchedulerDistinctSubsCoexist(t *testing.T) {
	s, clock := newTestScheduler()
	var fired []string

	s.Schedule("k", TimerBuff, "a", time.Second, func(time.Time) { fired = append(fired, "a") })
	s.Schedule("k", TimerBuff, "b", 2*time.Second, func(time.Time) { fired = append(fired, "b") })

	clock.Advance(3 * time.Second)
	if len(fired) != 2 || fired[0] != "a" || fired[1] != "b" {
		t.Fatalf("fired = %v, want [a b] in order", fired)
	}
}

func TestSchedulerCancel(t *testing.T) {
	s, clock := newTestScheduler()
	fired := false

	s.Schedule("k", TimerDecay, "", time.Second, func(time.Time) { fired = true })
	s.Cancel("k", TimerDecay, "")
	clock.Advance(2 * time.Second)
	if fired {
		t.Fatalf("cancelled timer fired")
	}
}

func TestSchedulerCancelAllScopedToKey(t *testing.T) {
	s, clock := newTestScheduler()
	var fired []string

	s.Schedule("gone", TimerTug, "", time.Second, func(time.Time) { fired = append(fired, "gone") })
	s.Schedule("gone", TimerBuff, "x", time.Second, func(time.Time) { fired = append(fired, "gone-buff") })
	s.Schedule("kept", TimerTug, "", time.Second, func(time.Time) { fired = append(fired, "kept") })

	s.CancelAll("gone")
	clock.Advance(2 * time.Second)
	if len(fired) != 1 || fired[0] != "kept" {
		t.Fatalf("fired = %v, want [kept]", fired)
	}
}
