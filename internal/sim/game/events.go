package game

import (
	"fmt"
	"time"

	"reeltide.gg/internal/protocol"
)

// GlobalEvent is a mod-issued, time-boxed multiplier affecting all players.
type GlobalEvent struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"` // xp, gold, double, luck
	Magnitude  float64   `json:"magnitude"`
	TargetTier int       `json:"target_tier,omitempty"` // luck only; 0 = all tiers
	EndsAt     time.Time `json:"ends_at"`
}

// Event kinds.
const (
	EventXP     = "xp"
	EventGold   = "gold"
	EventDouble = "double"
	EventLuck   = "luck"
)

// startEvent activates a global event. Duration is defaulted when zero and
// capped at the configured maximum. Returns the event id.
func (g *Game) startEvent(kind string, magnitude float64, dur time.Duration, targetTier int) string {
	if dur <= 0 {
		dur = time.Duration(g.tune.EventDefaultMin) * time.Minute
	}
	if max := time.Duration(g.tune.EventMaxMin) * time.Minute; dur > max {
		dur = max
	}
	g.nextEventNum++
	ev := &GlobalEvent{
		ID:         fmt.Sprintf("E%04d", g.nextEventNum),
		Kind:       kind,
		Magnitude:  magnitude,
		TargetTier: targetTier,
		EndsAt:     g.now().Add(dur),
	}
	g.events[ev.ID] = ev
	g.sched.Schedule("global", TimerEvent, ev.ID, dur, func(now time.Time) {
		g.expireEvent(ev.ID)
	})
	g.broadcastEvents()
	return ev.ID
}

func (g *Game) stopEvent(id string) bool {
	if _, ok := g.events[id]; !ok {
		return false
	}
	delete(g.events, id)
	g.sched.Cancel("global", TimerEvent, id)
	g.broadcastEvents()
	return true
}

func (g *Game) expireEvent(id string) {
	if _, ok := g.events[id]; !ok {
		return
	}
	delete(g.events, id)
	g.broadcastEvents()
}

// eventBonus sums the magnitudes of active events of one additive kind.
func (g *Game) eventBonus(kind string) float64 {
	now := g.now()
	var total float64
	for _, ev := range g.events {
		if ev.Kind == kind && ev.EndsAt.After(now) {
			total += ev.Magnitude
		}
	}
	return total
}

// eventLuck splits active luck events into a global component and a single
// targeted component. When several events target different tiers, the lowest
// targeted tier wins and only magnitudes targeting it are summed.
func (g *Game) eventLuck() (global float64, targetTier int, targeted float64) {
	now := g.now()
	targetTier = -1
	for _, ev := range g.events {
		if ev.Kind != EventLuck || !ev.EndsAt.After(now) {
			continue
		}
		if ev.TargetTier <= 0 {
			global += ev.Magnitude
			continue
		}
		if targetTier == -1 || ev.TargetTier < targetTier {
			targetTier = ev.TargetTier
		}
	}
	if targetTier != -1 {
		for _, ev := range g.events {
			if ev.Kind == EventLuck && ev.EndsAt.After(now) && ev.TargetTier == targetTier {
				targeted += ev.Magnitude
			}
		}
	}
	return global, targetTier, targeted
}

// eventDoubleCount sums requested extra catches across active double events,
// clamped to the configured maximum stack.
func (g *Game) eventDoubleCount() int {
	now := g.now()
	total := 0
	for _, ev := range g.events {
		if ev.Kind == EventDouble && ev.EndsAt.After(now) {
			total += int(ev.Magnitude)
		}
	}
	if total > g.tune.DoubleMaxStack {
		total = g.tune.DoubleMaxStack
	}
	return total
}

// broadcastEvents pushes the active set to every connected channel.
func (g *Game) broadcastEvents() {
	now := g.now()
	list := []protocol.Event{}
	for _, ev := range g.events {
		if !ev.EndsAt.After(now) {
			continue
		}
		e := protocol.Event{
			"id":        ev.ID,
			"kind":      ev.Kind,
			"magnitude": ev.Magnitude,
			"endsAt":    ev.EndsAt.UnixMilli(),
		}
		if ev.TargetTier > 0 {
			e["targetTier"] = ev.TargetTier
		}
		list = append(list, e)
	}
	g.emitAll(protocol.Event{"type": protocol.TypeEvents, "events": list})
}
