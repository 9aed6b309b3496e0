package game

import (
	"sync"
	"time"
)

// TimerKind distinguishes the independent timers that can exist for one
// scoped key. Scheduling a timer replaces any prior timer with the same
// (key, kind, sub) triple, so a stale handle can never fire twice.
type TimerKind int

const (
	TimerTug TimerKind = iota + 1
	TimerDecay
	TimerBuff  // sub = grant id
	TimerCharm // sub = "charm"
	TimerEvent // sub = event id
	TimerLock
)

type CancelFunc func()

// Clock abstracts time so tests can advance it deterministically.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) CancelFunc
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) CancelFunc {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}

func RealClock() Clock { return realClock{} }

type timerKey struct {
	key  string
	kind TimerKind
	sub  string
}

// Scheduler owns every pending timer, keyed by (scoped key, kind, sub).
// Fire callbacks are delivered through the run sink, which the engine wires
// to its own goroutine so callbacks never race with command handlers.
type Scheduler struct {
	clock Clock
	run   func(f func())

	mu      sync.Mutex
	seq     uint64
	active  map[timerKey]uint64
	cancels map[timerKey]CancelFunc
}

func NewScheduler(clock Clock, run func(f func())) *Scheduler {
	return &Scheduler{
		clock:   clock,
		run:     run,
		active:  map[timerKey]uint64{},
		cancels: map[timerKey]CancelFunc{},
	}
}

func (s *Scheduler) Now() time.Time { return s.clock.Now() }

// Schedule arms a timer, cancelling any prior timer for the same triple.
func (s *Scheduler) Schedule(key string, kind TimerKind, sub string, d time.Duration, fn func(now time.Time)) {
	k := timerKey{key: key, kind: kind, sub: sub}

	s.mu.Lock()
	if cancel, ok := s.cancels[k]; ok {
		cancel()
	}
	s.seq++
	seq := s.seq
	s.active[k] = seq
	s.mu.Unlock()

	cancel := s.clock.AfterFunc(d, func() {
		s.run(func() {
			s.mu.Lock()
			cur, ok := s.active[k]
			if !ok || cur != seq {
				s.mu.Unlock()
				return
			}
			delete(s.active, k)
			delete(s.cancels, k)
			s.mu.Unlock()
			fn(s.clock.Now())
		})
	})

	s.mu.Lock()
	// Only keep the cancel if this schedule is still the current one.
	if cur, ok := s.active[k]; ok && cur == seq {
		s.cancels[k] = cancel
	} else {
		cancel()
	}
	s.mu.Unlock()
}

func (s *Scheduler) Cancel(key string, kind TimerKind, sub string) {
	k := timerKey{key: key, kind: kind, sub: sub}
	s.mu.Lock()
	if cancel, ok := s.cancels[k]; ok {
		cancel()
	}
	delete(s.active, k)
	delete(s.cancels, k)
	s.mu.Unlock()
}

// CancelAll drops every pending timer for a scoped key.
func (s *Scheduler) CancelAll(key string) {
	s.mu.Lock()
	for k, cancel := range s.cancels {
		if k.key == key {
			cancel()
			delete(s.cancels, k)
		}
	}
	for k := range s.active {
		if k.key == key {
			delete(s.active, k)
		}
	}
	s.mu.Unlock()
}
