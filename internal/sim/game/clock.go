package game

import (
	"sort"
	"sync"
	"time"
)

// VirtualClock is a manually-advanced clock for tests. Advance fires due
// timers in time order on the calling goroutine.
type VirtualClock struct {
	mu     sync.Mutex
	now    time.Time
	nextID int
	timers []*virtualTimer
}

type virtualTimer struct {
	id      int
	at      time.Time
	fn      func()
	stopped bool
}

func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{now: start}
}

func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *VirtualClock) AfterFunc(d time.Duration, f func()) CancelFunc {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	t := &virtualTimer{id: c.nextID, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		t.stopped = true
	}
}

// Advance moves the clock forward, firing timers that come due in order.
func (c *VirtualClock) Advance(d time.Duration) {
	c.mu.Lock()
	deadline := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *virtualTimer
		for _, t := range c.timers {
			if t.stopped || t.at.After(deadline) {
				continue
			}
			if next == nil || t.at.Before(next.at) || (t.at.Equal(next.at) && t.id < next.id) {
				next = t
			}
		}
		if next == nil {
			c.now = deadline
			c.compactLocked()
			c.mu.Unlock()
			return
		}
		next.stopped = true
		if next.at.After(c.now) {
			c.now = next.at
		}
		c.mu.Unlock()

		next.fn()
	}
}

func (c *VirtualClock) compactLocked() {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	c.timers = live
	sort.Slice(c.timers, func(i, j int) bool { return c.timers[i].at.Before(c.timers[j].at) })
}
