package game

import (
	"fmt"
	"math"
	"time"

	"reeltide.gg/internal/protocol"
	"reeltide.gg/internal/sim/catalogs"
)

// handleCast starts a cast: schedules the tug at a uniform random delay and
// a fail-safe decay past the full response window, so isCasting can never
// stay stuck even if the tug timer is lost.
func (g *Game) handleCast(p *PlayerRecord) {
	if p.IsCasting {
		g.status(p.Channel, fmt.Sprintf("@%s your line is already in the water", p.Username), protocol.ErrAlreadyCasting)
		return
	}
	p.IsCasting = true
	p.HasTug = false
	g.sched.Cancel(p.Key, TimerTug, "")
	g.sched.Cancel(p.Key, TimerDecay, "")

	minD, maxD := g.tune.TugDelayRange()
	delay := minD
	if maxD > minD {
		delay = minD + time.Duration(g.rng.Int63n(int64(maxD-minD)))
	}
	g.sched.Schedule(p.Key, TimerTug, "", delay, func(now time.Time) {
		g.onTug(p)
	})
	g.sched.Schedule(p.Key, TimerDecay, "", delay+g.tune.ResponseWindow()+g.tune.SafetyBuffer(), func(now time.Time) {
		g.onDecay(p)
	})

	g.emit(p.Channel, protocol.Event{
		"type":  protocol.TypeCast,
		"user":  p.Username,
		"etaMs": delay.Milliseconds(),
	})
}

func (g *Game) onTug(p *PlayerRecord) {
	if !p.IsCasting {
		return
	}
	p.HasTug = true
	g.emit(p.Channel, protocol.Event{"type": protocol.TypeTug, "user": p.Username})
	// Replace the fail-safe with the real response window; do not stack
	// onto the original decay.
	g.sched.Schedule(p.Key, TimerDecay, "", g.tune.ResponseWindow(), func(now time.Time) {
		g.onDecay(p)
	})
}

// onDecay force-fails an unresolved cast. A reel may have just resolved the
// cast between scheduling and firing, so re-check the casting flag.
func (g *Game) onDecay(p *PlayerRecord) {
	if !p.IsCasting {
		return
	}
	g.failCatch(p)
}

func (g *Game) handleReel(p *PlayerRecord) {
	if !p.IsCasting {
		g.status(p.Channel, fmt.Sprintf("@%s cast first", p.Username), protocol.ErrNotCasting)
		return
	}
	if !p.HasTug {
		if p.StabilizerCharges > 0 {
			// A stabilizer forgives one early reel.
			p.StabilizerCharges--
		} else {
			g.failCatch(p)
			return
		}
	}
	g.resetCast(p)

	result := g.resolveCatch(p, 0)
	bonus := g.eventDoubleCount()
	if p.EchoReelCharges > 0 {
		p.EchoReelCharges--
		down := result.tierIdx - 1
		if down < 0 {
			down = 0
		}
		g.resolveCatchAt(p, down)
	}
	for i := 0; i < bonus; i++ {
		g.resolveCatch(p, 0)
	}
	g.consumeBaitUse(p)
	g.persist(p)
}

func (g *Game) resetCast(p *PlayerRecord) {
	p.IsCasting = false
	p.HasTug = false
	g.sched.Cancel(p.Key, TimerTug, "")
	g.sched.Cancel(p.Key, TimerDecay, "")
}

func (g *Game) failCatch(p *PlayerRecord) {
	g.resetCast(p)
	g.consumeBaitUse(p)
	g.emit(p.Channel, protocol.Event{
		"type":    protocol.TypeCatch,
		"user":    p.Username,
		"success": false,
	})
	g.persist(p)
}

func (g *Game) consumeBaitUse(p *PlayerRecord) {
	if p.Bait == nil {
		return
	}
	p.Bait.UsesLeft--
	if p.Bait.UsesLeft <= 0 {
		p.Bait = nil
	}
}

type catchResult struct {
	tierIdx int
	item    Item
	gold    int
	xp      int
}

// resolveCatch rolls rarity and applies rewards. minTier forces a floor on
// the rolled tier index (used by echo-reel replays and bait promotion).
func (g *Game) resolveCatch(p *PlayerRecord, minTier int) catchResult {
	biome := g.cats.Biome(p.BiomeTier)
	idx := g.rollRarity(p, biome)
	if p.Bait != nil && p.Bait.MinTier > idx {
		idx = p.Bait.MinTier
	}
	if minTier > idx {
		idx = minTier
	}
	if idx >= len(biome.Rarities) {
		idx = len(biome.Rarities) - 1
	}
	return g.applyCatch(p, biome, idx)
}

// resolveCatchAt lands a catch at an exact tier index (echo-reel bonus).
func (g *Game) resolveCatchAt(p *PlayerRecord, idx int) catchResult {
	biome := g.cats.Biome(p.BiomeTier)
	if idx >= len(biome.Rarities) {
		idx = len(biome.Rarities) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return g.applyCatch(p, biome, idx)
}

// rollRarity draws a tier index weighted by
// baseWeight x (1 + min(2, bonus) x index/(tierCount-1)).
func (g *Game) rollRarity(p *PlayerRecord, biome catalogs.BiomeDef) int {
	n := len(biome.Rarities)
	if n == 1 {
		return 0
	}
	base := g.luckBonus(p)
	globalLuck, targetTier, targetedLuck := g.eventLuck()
	base += globalLuck

	weights := make([]float64, n)
	var total float64
	for i, r := range biome.Rarities {
		bonus := base
		if targetTier != -1 && i == targetTier {
			bonus += targetedLuck
		}
		if bonus > g.tune.MaxLuckBonus {
			bonus = g.tune.MaxLuckBonus
		}
		w := r.Weight * (1 + bonus*float64(i)/float64(n-1))
		weights[i] = w
		total += w
	}
	draw := g.rng.Float64() * total
	var cum float64
	for i, w := range weights {
		cum += w
		if draw < cum {
			return i
		}
	}
	return n - 1
}

// luckBonus sums the rarity bonuses that apply to every tier.
func (g *Game) luckBonus(p *PlayerRecord) float64 {
	bonus := 0.01 * float64(p.Level-1)
	bonus += g.upgradeBonus(g.cats.Upgrades.Lure, p.LureLevel)
	bonus += g.upgradeBonus(g.cats.Upgrades.Luck, p.LuckLevel)
	if p.Bait != nil {
		bonus += p.Bait.LuckBonus
	}
	bonus += g.charmLuck(p)
	return bonus
}

func (g *Game) upgradeBonus(levels []catalogs.UpgradeLevel, level int) float64 {
	for _, l := range levels {
		if l.Level == level {
			return l.Bonus
		}
	}
	return 0
}

func (g *Game) applyCatch(p *PlayerRecord, biome catalogs.BiomeDef, idx int) catchResult {
	r := biome.Rarities[idx]

	value := r.ValueMin
	if r.ValueMax > r.ValueMin {
		value += g.rng.Intn(r.ValueMax - r.ValueMin + 1)
	}
	name := r.Name
	if names := biome.Loot[r.Name]; len(names) > 0 {
		name = names[g.rng.Intn(len(names))]
	}

	valueMult := 1.0 + g.upgradeBonus(g.cats.Upgrades.Pole, p.PoleLevel) + g.buffTotal(p, BuffValue)
	xpBoost := 1.0 + g.buffTotal(p, BuffXP) + g.charmXP(p)
	if p.Bait != nil {
		valueMult += p.Bait.ValueBonus
		xpBoost += p.Bait.XPBonus
	}

	goldMult := biome.GoldMult
	if goldMult == 0 {
		goldMult = 1
	}
	xpMult := biome.XPMult
	if xpMult == 0 {
		xpMult = 1
	}

	gold := int(math.Round((float64(g.tune.BaseGold) + float64(value)*valueMult) * goldMult * (1 + g.eventBonus(EventGold))))
	xp := int(math.Round(float64(r.XP) * xpBoost * xpMult * (1 + g.eventBonus(EventXP))))

	item := Item{
		ID:     fmt.Sprintf("%s_t%d_%s", sanitizeKeyPart(name), biome.Tier, r.Name),
		Name:   name,
		Rarity: r.Name,
		Tier:   idx,
		Value:  value,
	}

	p.Gold += gold
	reached := g.grantXP(p, xp)

	ev := protocol.Event{
		"type":       protocol.TypeCatch,
		"user":       p.Username,
		"success":    true,
		"item":       item.Name,
		"goldEarned": gold,
		"xpGained":   xp,
		"rarity":     r.Name,
	}

	if p.bagFull() {
		// No room: auto-sell the catch for its gold value.
		p.Gold += item.Value
		ev["autoSold"] = true
	} else {
		p.Inventory = append(p.Inventory, item)
	}
	g.emit(p.Channel, ev)

	if len(reached) > 0 {
		g.emit(p.Channel, protocol.Event{
			"type":     protocol.TypeLevel,
			"user":     p.Username,
			"level":    p.Level,
			"xp":       p.XP,
			"xpNeeded": p.XPNeeded,
		})
	}

	g.writeAudit(AuditEntry{
		At:     g.now(),
		Key:    p.Key,
		Action: "catch",
		Item:   item.Name,
		Gold:   gold,
		XP:     xp,
	})

	return catchResult{tierIdx: idx, item: item, gold: gold, xp: xp}
}
