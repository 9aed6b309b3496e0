package game

import (
	"fmt"
	"time"

	"reeltide.gg/internal/protocol"
)

// Session modes.
const (
	ModeStore     = "store"
	ModeInventory = "inventory"
)

// InteractionLock is the single process-wide session slot. It is
// deliberately not scoped per channel: one active session blocks store and
// inventory flows everywhere.
type InteractionLock struct {
	Holder    string // scoped key
	Username  string
	Channel   string
	Mode      string
	ExpiresAt time.Time
	Renewals  int
}

// lockHeldByOther reports a conflicting holder and the remaining session time.
func (g *Game) lockHeldByOther(key string) (time.Duration, bool) {
	if g.lock == nil || g.lock.Holder == key {
		return 0, false
	}
	remaining := g.lock.ExpiresAt.Sub(g.now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// openSession grants or refreshes the exclusive session for a player.
// Returns false when another player holds the slot.
func (g *Game) openSession(p *PlayerRecord, mode string) bool {
	if remaining, held := g.lockHeldByOther(p.Key); held {
		g.rejectLocked(p, mode, remaining)
		return false
	}
	window := g.tune.SessionWindow()
	if g.lock != nil && g.lock.Holder == p.Key {
		// Same holder: refresh expiry and mode, keep the renewal budget.
		g.lock.Mode = mode
		g.lock.ExpiresAt = g.now().Add(window)
	} else {
		g.lock = &InteractionLock{
			Holder:    p.Key,
			Username:  p.Username,
			Channel:   p.Channel,
			Mode:      mode,
			ExpiresAt: g.now().Add(window),
		}
	}
	g.sched.Schedule("global", TimerLock, "", window, func(now time.Time) {
		g.onLockExpiry()
	})
	return true
}

// renewSession extends the holder's session, up to the renewal budget. Past
// the budget the session keeps its current expiry and lapses on schedule.
func (g *Game) renewSession(key string) {
	if g.lock == nil || g.lock.Holder != key {
		return
	}
	if g.lock.Renewals >= g.tune.SessionMaxRenewals {
		return
	}
	g.lock.Renewals++
	g.lock.ExpiresAt = g.now().Add(g.tune.SessionWindow())
	g.sched.Schedule("global", TimerLock, "", g.tune.SessionWindow(), func(now time.Time) {
		g.onLockExpiry()
	})
}

// closeSession releases the slot. applyCooldown is set on natural expiry
// only; an implicit close by the holder's own non-session command skips it.
func (g *Game) closeSession(applyCooldown bool) {
	if g.lock == nil {
		return
	}
	holder := g.lock
	g.lock = nil
	g.sched.Cancel("global", TimerLock, "")
	if applyCooldown {
		g.lastCommand[holder.Holder] = g.now()
	}
}

func (g *Game) onLockExpiry() {
	if g.lock == nil {
		return
	}
	holder := g.lock
	g.closeSession(true)
	g.status(holder.Channel, fmt.Sprintf("@%s your %s session closed", holder.Username, holder.Mode), "")
	g.emit(holder.Channel, protocol.Event{"type": eventTypeForMode(holder.Mode), "locked": false, "state": nil})
}

func (g *Game) rejectLocked(p *PlayerRecord, mode string, remaining time.Duration) {
	secs := int(remaining.Round(time.Second) / time.Second)
	g.status(p.Channel, fmt.Sprintf("@%s the %s is busy, try again in %ds", p.Username, mode, secs), protocol.ErrLocked)
	g.emit(p.Channel, protocol.Event{
		"type":        eventTypeForMode(mode),
		"locked":      true,
		"remainingMs": remaining.Milliseconds(),
	})
}

func eventTypeForMode(mode string) string {
	if mode == ModeInventory {
		return protocol.TypeInventory
	}
	return protocol.TypeStore
}
