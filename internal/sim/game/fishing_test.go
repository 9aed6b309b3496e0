package game

import (
	"testing"
	"time"

	"reeltide.gg/internal/protocol"
	"reeltide.gg/internal/sim/tuning"
)

// fixedDelayTune pins the tug delay so timer math is exact.
func fixedDelayTune() tuning.Tuning {
	t := tuning.Defaults()
	t.TugDelayMinMs = 3000
	t.TugDelayMaxMs = 3000
	return t
}

func TestCastTugReel(t *testing.T) {
	f := newFixture(fixedDelayTune())
	p := f.player("chan", "alice")

	g := f.g
	g.handleCast(p)
	if !p.IsCasting {
		t.Fatalf("expected casting after cast")
	}
	castEv := f.sink.last(protocol.TypeCast)
	if castEv == nil {
		t.Fatalf("no cast event")
	}
	if eta := castEv["etaMs"].(int64); eta != 3000 {
		t.Fatalf("etaMs = %d, want 3000", eta)
	}

	f.clock.Advance(3 * time.Second)
	if !p.HasTug {
		t.Fatalf("expected tug after delay")
	}
	if f.sink.last(protocol.TypeTug) == nil {
		t.Fatalf("no tug event")
	}

	g.handleReel(p)
	if p.IsCasting {
		t.Fatalf("cast not cleared after reel")
	}
	ev := f.sink.last(protocol.TypeCatch)
	if ev == nil || ev["success"] != true {
		t.Fatalf("expected successful catch, got %v", ev)
	}

	// Shallows: fixed value 10, base gold 6, fresh multipliers are all 1.
	if ev["goldEarned"].(int) != 16 {
		t.Fatalf("goldEarned = %v, want 16", ev["goldEarned"])
	}
	if ev["xpGained"].(int) != 6 {
		t.Fatalf("xpGained = %v, want 6", ev["xpGained"])
	}
	if p.Gold != 25+16 {
		t.Fatalf("gold = %d, want 41", p.Gold)
	}
	if len(p.Inventory) != 1 || p.Inventory[0].Name != "Minnow" {
		t.Fatalf("inventory = %v", p.Inventory)
	}
}

func TestReelWithoutCast(t *testing.T) {
	f := newFixture(fixedDelayTune())
	p := f.player("chan", "alice")

	f.g.handleReel(p)
	if f.sink.lastCode() != protocol.ErrNotCasting {
		t.Fatalf("code = %q, want %q", f.sink.lastCode(), protocol.ErrNotCasting)
	}
}

func TestDoubleCastRejected(t *testing.T) {
	f := newFixture(fixedDelayTune())
	p := f.player("chan", "alice")

	f.g.handleCast(p)
	f.g.handleCast(p)
	if f.sink.lastCode() != protocol.ErrAlreadyCasting {
		t.Fatalf("code = %q, want %q", f.sink.lastCode(), protocol.ErrAlreadyCasting)
	}
}

func TestEarlyReelFails(t *testing.T) {
	f := newFixture(fixedDelayTune())
	p := f.player("chan", "alice")

	f.g.handleCast(p)
	f.g.handleReel(p) // before the tug
	ev := f.sink.last(protocol.TypeCatch)
	if ev == nil || ev["success"] != false {
		t.Fatalf("expected failed catch, got %v", ev)
	}
	if p.IsCasting {
		t.Fatalf("cast not cleared after fail")
	}
}

func TestStabilizerForgivesEarlyReel(t *testing.T) {
	f := newFixture(fixedDelayTune())
	p := f.player("chan", "alice")
	p.StabilizerCharges = 1

	f.g.handleCast(p)
	f.g.handleReel(p)
	ev := f.sink.last(protocol.TypeCatch)
	if ev == nil || ev["success"] != true {
		t.Fatalf("expected stabilized catch, got %v", ev)
	}
	if p.StabilizerCharges != 0 {
		t.Fatalf("stabilizer charge not consumed")
	}
}

func TestDecayFailSafe(t *testing.T) {
	f := newFixture(fixedDelayTune())
	p := f.player("chan", "alice")

	f.g.handleCast(p)
	// Tug at 3s, response window 6s: the cast decays at 9s untouched.
	f.clock.Advance(10 * time.Second)
	ev := f.sink.last(protocol.TypeCatch)
	if ev == nil || ev["success"] != false {
		t.Fatalf("expected decay fail, got %v", ev)
	}
	if p.IsCasting {
		t.Fatalf("casting flag stuck after decay")
	}

	// The slot is reusable immediately.
	f.g.handleCast(p)
	if !p.IsCasting {
		t.Fatalf("cannot cast again after decay")
	}
}

func TestEchoReelBonusCatch(t *testing.T) {
	f := newFixture(fixedDelayTune())
	p := f.player("chan", "alice")
	p.EchoReelCharges = 1

	f.g.handleCast(p)
	f.clock.Advance(3 * time.Second)
	f.g.handleReel(p)

	if got := len(f.sink.ofType(protocol.TypeCatch)); got != 2 {
		t.Fatalf("catches = %d, want 2 (reel + echo)", got)
	}
	if p.EchoReelCharges != 0 {
		t.Fatalf("echo charge not consumed")
	}
}

func TestBagFullAutoSells(t *testing.T) {
	f := newFixture(fixedDelayTune())
	p := f.player("chan", "alice")
	p.InventoryCap = 0

	f.g.handleCast(p)
	f.clock.Advance(3 * time.Second)
	f.g.handleReel(p)

	ev := f.sink.last(protocol.TypeCatch)
	if ev["autoSold"] != true {
		t.Fatalf("expected autoSold, got %v", ev)
	}
	if len(p.Inventory) != 0 {
		t.Fatalf("item should not enter a full bag")
	}
	// 16 earned + 10 auto-sell value.
	if p.Gold != 25+16+10 {
		t.Fatalf("gold = %d, want 51", p.Gold)
	}
}

func TestBaitConsumedPerCast(t *testing.T) {
	f := newFixture(fixedDelayTune())
	p := f.player("chan", "alice")
	p.Bait = &ActiveBait{ItemID: "worm_bait", LuckBonus: 0.1, UsesLeft: 2}

	f.g.handleCast(p)
	f.g.handleReel(p) // early fail still consumes a use
	if p.Bait == nil || p.Bait.UsesLeft != 1 {
		t.Fatalf("bait uses = %v, want 1 left", p.Bait)
	}

	f.g.handleCast(p)
	f.clock.Advance(3 * time.Second)
	f.g.handleReel(p)
	if p.Bait != nil {
		t.Fatalf("bait should be exhausted")
	}
}

func TestLevelUpLoop(t *testing.T) {
	f := newFixture(fixedDelayTune())
	p := f.player("chan", "alice")

	if p.XPNeeded != 50 {
		t.Fatalf("xpNeeded = %d, want 50", p.XPNeeded)
	}
	reached := f.g.grantXP(p, 115)
	if len(reached) != 2 || p.Level != 3 {
		t.Fatalf("level = %d reached = %v, want level 3", p.Level, reached)
	}
	// 115 - 50 - 60 = 5 carried into level 3.
	if p.XP != 5 {
		t.Fatalf("xp = %d, want 5", p.XP)
	}
	if p.XPNeeded != 72 {
		t.Fatalf("xpNeeded = %d, want 72", p.XPNeeded)
	}
}

func TestXPClampAtMaxLevel(t *testing.T) {
	tune := fixedDelayTune()
	tune.MaxLevel = 2
	f := newFixture(tune)
	p := f.player("chan", "alice")

	f.g.grantXP(p, 10_000)
	if p.Level != 2 {
		t.Fatalf("level = %d, want max 2", p.Level)
	}
	if p.XP >= p.XPNeeded {
		t.Fatalf("xp %d not clamped below needed %d", p.XP, p.XPNeeded)
	}
}
