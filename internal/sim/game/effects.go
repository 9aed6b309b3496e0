package game

import (
	"fmt"
	"time"

	"reeltide.gg/internal/protocol"
)

// addBuff starts one timed grant. Grants of the same kind stack additively;
// each grant expires on its own timer and removal takes only that grant.
func (g *Game) addBuff(p *PlayerRecord, kind string, magnitude float64, dur time.Duration) *BuffGrant {
	g.nextBuffNum++
	grant := &BuffGrant{
		ID:        fmt.Sprintf("B%06d", g.nextBuffNum),
		Kind:      kind,
		Magnitude: magnitude,
		ExpiresAt: g.now().Add(dur),
	}
	p.Buffs = append(p.Buffs, grant)
	g.sched.Schedule(p.Key, TimerBuff, grant.ID, dur, func(now time.Time) {
		g.removeBuffGrant(p, grant.ID)
	})
	g.emitBuffs(p)
	return grant
}

func (g *Game) removeBuffGrant(p *PlayerRecord, grantID string) {
	for i, b := range p.Buffs {
		if b.ID == grantID {
			p.Buffs = append(p.Buffs[:i], p.Buffs[i+1:]...)
			g.sched.Cancel(p.Key, TimerBuff, grantID)
			g.emitBuffs(p)
			return
		}
	}
}

// buffTotal sums all unexpired grants of a kind.
func (g *Game) buffTotal(p *PlayerRecord, kind string) float64 {
	now := g.now()
	var total float64
	for _, b := range p.Buffs {
		if b.Kind == kind && b.ExpiresAt.After(now) {
			total += b.Magnitude
		}
	}
	return total
}

// buffExpiry reports the latest expiry among unexpired grants of a kind.
func (g *Game) buffExpiry(p *PlayerRecord, kind string) (time.Time, bool) {
	now := g.now()
	var latest time.Time
	found := false
	for _, b := range p.Buffs {
		if b.Kind == kind && b.ExpiresAt.After(now) && b.ExpiresAt.After(latest) {
			latest = b.ExpiresAt
			found = true
		}
	}
	return latest, found
}

// setCharm activates an exclusive charm, cancelling any existing one first.
func (g *Game) setCharm(p *PlayerRecord, itemID string, luckBonus, xpBonus float64, dur time.Duration) {
	if p.Charm != nil {
		g.sched.Cancel(p.Key, TimerCharm, "charm")
		p.Charm = nil
	}
	p.Charm = &CharmGrant{
		ItemID:    itemID,
		LuckBonus: luckBonus,
		XPBonus:   xpBonus,
		ExpiresAt: g.now().Add(dur),
	}
	g.sched.Schedule(p.Key, TimerCharm, "charm", dur, func(now time.Time) {
		p.Charm = nil
		g.emitBuffs(p)
	})
	g.emitBuffs(p)
}

func (g *Game) charmLuck(p *PlayerRecord) float64 {
	if p.Charm != nil && p.Charm.ExpiresAt.After(g.now()) {
		return p.Charm.LuckBonus
	}
	return 0
}

func (g *Game) charmXP(p *PlayerRecord) float64 {
	if p.Charm != nil && p.Charm.ExpiresAt.After(g.now()) {
		return p.Charm.XPBonus
	}
	return 0
}

func (g *Game) emitBuffs(p *PlayerRecord) {
	now := g.now()
	buffs := []protocol.Event{}
	for _, b := range p.Buffs {
		if !b.ExpiresAt.After(now) {
			continue
		}
		buffs = append(buffs, protocol.Event{
			"kind":      b.Kind,
			"magnitude": b.Magnitude,
			"expiresAt": b.ExpiresAt.UnixMilli(),
		})
	}
	if p.Charm != nil && p.Charm.ExpiresAt.After(now) {
		buffs = append(buffs, protocol.Event{
			"kind":      "charm",
			"item":      p.Charm.ItemID,
			"expiresAt": p.Charm.ExpiresAt.UnixMilli(),
		})
	}
	g.emit(p.Channel, protocol.Event{"type": protocol.TypeBuffs, "user": p.Username, "buffs": buffs})
}
