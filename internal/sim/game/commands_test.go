package game

import (
	"testing"
	"time"

	"reeltide.gg/internal/protocol"
)

func TestSellSlotAndAll(t *testing.T) {
	f := newFixture(fixedDelayTune())
	g := f.g
	p := f.player("chan", "alice")
	p.Inventory = []Item{
		{ID: "catch", Name: "Minnow", Value: 10},
		{ID: "catch", Name: "Parrotfish", Value: 20},
		{ID: "catch", Name: "Eel", Value: 30},
	}

	g.handleSell(p, []string{"2"})
	if p.Gold != 25+20 {
		t.Fatalf("gold = %d, want 45", p.Gold)
	}
	ev := f.sink.last(protocol.TypeSell)
	if ev["item"] != "Parrotfish" || ev["gold"].(int) != 20 {
		t.Fatalf("sell event = %v", ev)
	}

	g.handleSell(p, []string{"all"})
	if p.Gold != 45+40 || len(p.Inventory) != 0 {
		t.Fatalf("gold = %d inventory = %v, want 85/empty", p.Gold, p.Inventory)
	}
	ev = f.sink.last(protocol.TypeSell)
	if ev["count"].(int) != 2 {
		t.Fatalf("sell-all count = %v, want 2", ev["count"])
	}
}

func TestSellBadSlot(t *testing.T) {
	f := newFixture(fixedDelayTune())
	p := f.player("chan", "alice")

	f.g.handleSell(p, []string{"3"})
	if f.sink.lastCode() != protocol.ErrBadRequest {
		t.Fatalf("code = %q, want %q", f.sink.lastCode(), protocol.ErrBadRequest)
	}
}

func TestUseBaitArmsSlot(t *testing.T) {
	f := newFixture(fixedDelayTune())
	p := f.player("chan", "alice")
	p.Inventory = []Item{{ID: "worm_bait", Name: "Worm Bait", Value: 4}}

	f.g.handleUse(p, []string{"1"})
	if p.Bait == nil || p.Bait.ItemID != "worm_bait" || p.Bait.UsesLeft != 2 {
		t.Fatalf("bait = %+v", p.Bait)
	}
	if len(p.Inventory) != 0 {
		t.Fatalf("consumable not removed from the bag")
	}
}

func TestUseBuffAndCharm(t *testing.T) {
	f := newFixture(fixedDelayTune())
	g := f.g
	p := f.player("chan", "alice")
	p.Inventory = []Item{
		{ID: "xp_tonic", Name: "XP Tonic", Value: 15},
		{ID: "tide_charm", Name: "Tide Charm", Value: 30},
	}

	g.handleUse(p, []string{"1"})
	if got := g.buffTotal(p, BuffXP); got != 0.5 {
		t.Fatalf("xp buff = %v, want 0.5", got)
	}

	g.handleUse(p, []string{"1"}) // charm shifted into slot 1
	if p.Charm == nil || p.Charm.ItemID != "tide_charm" {
		t.Fatalf("charm = %+v", p.Charm)
	}
}

func TestUseEchoReelStacksCharges(t *testing.T) {
	f := newFixture(fixedDelayTune())
	p := f.player("chan", "alice")
	p.Inventory = []Item{
		{ID: "echo_reel", Name: "Echo Reel", Value: 60},
		{ID: "echo_reel", Name: "Echo Reel", Value: 60},
	}

	f.g.handleUse(p, []string{"1"})
	f.g.handleUse(p, []string{"1"})
	if p.EchoReelCharges != 2 {
		t.Fatalf("charges = %d, want 2", p.EchoReelCharges)
	}
}

func TestUseMaterialRejected(t *testing.T) {
	f := newFixture(fixedDelayTune())
	p := f.player("chan", "alice")
	p.Inventory = []Item{{ID: "scale_t1", Name: "Dull Scale", Value: 2}}

	f.g.handleUse(p, []string{"1"})
	if f.sink.lastCode() != protocol.ErrBadRequest {
		t.Fatalf("code = %q, want %q", f.sink.lastCode(), protocol.ErrBadRequest)
	}
	if len(p.Inventory) != 1 {
		t.Fatalf("material consumed by use")
	}
}

func TestInventoryEmitsState(t *testing.T) {
	f := newFixture(fixedDelayTune())
	p := f.player("chan", "alice")
	p.Inventory = []Item{{ID: "catch", Name: "Minnow", Rarity: "common", Value: 10}}

	f.g.handleInventory(p)
	ev := f.sink.last(protocol.TypeInventory)
	if ev == nil {
		t.Fatalf("no inventory event")
	}
	state := ev["state"].(protocol.Event)
	if state["gold"].(int) != 25 || state["biome"] != "Shallows" {
		t.Fatalf("state = %v", state)
	}
	items := state["items"].([]protocol.Event)
	if len(items) != 1 || items[0]["slot"].(int) != 1 {
		t.Fatalf("items = %v", items)
	}
}

func TestEquipRequiresOwnership(t *testing.T) {
	f := newFixture(fixedDelayTune())
	g := f.g
	p := f.player("chan", "alice")

	g.handleEquip(p, []string{"driftwood"})
	if f.sink.lastCode() != protocol.ErrNoPermission {
		t.Fatalf("code = %q, want %q", f.sink.lastCode(), protocol.ErrNoPermission)
	}

	p.OwnedSkins = append(p.OwnedSkins, "driftwood")
	g.handleEquip(p, []string{"driftwood"})
	if p.EquippedSkin != "driftwood" {
		t.Fatalf("skin not equipped")
	}
	ev := f.sink.last(protocol.TypeSkin)
	if ev["skinId"] != "driftwood" {
		t.Fatalf("skin event = %v", ev)
	}
}

func TestCooldownCommandsRetune(t *testing.T) {
	f := newFixture(fixedDelayTune())
	g := f.g
	p := f.player("chan", "mod")

	g.handleCooldown(p, []string{"30"}, false)
	if g.playerCooldown != 30*time.Second {
		t.Fatalf("player cooldown = %v, want 30s", g.playerCooldown)
	}
	g.handleCooldown(p, []string{"2"}, true)
	if g.globalCooldown != 2*time.Second {
		t.Fatalf("global cooldown = %v, want 2s", g.globalCooldown)
	}
}

func TestResetProfileWipesRecord(t *testing.T) {
	f := newFixture(fixedDelayTune())
	g := f.g
	mod := f.player("chan", "mod")
	alice := f.player("chan", "alice")
	alice.Gold = 9999

	g.handleResetProfile(mod, []string{"@alice"})
	if _, ok := g.players[ScopedKey("chan", "alice")]; ok {
		t.Fatalf("record survived the reset")
	}
	// The next ensure starts fresh.
	fresh := f.player("chan", "alice")
	if fresh.Gold != 25 || fresh.Level != 1 {
		t.Fatalf("fresh record = gold %d level %d", fresh.Gold, fresh.Level)
	}
}

func TestPrestigeLadder(t *testing.T) {
	f := newFixture(fixedDelayTune())
	g := f.g
	p := f.player("chan", "alice")

	f.sink.reset()
	g.handlePrestige(p)
	if f.sink.lastCode() != protocol.ErrFeatureLocked {
		t.Fatalf("under-level prestige code = %q, want %q", f.sink.lastCode(), protocol.ErrFeatureLocked)
	}

	p.Level = g.tune.MaxLevel
	p.PoleLevel = 2
	g.handlePrestige(p)
	if p.PrestigeCount != 1 || p.Level != 1 || p.PoleLevel != 0 {
		t.Fatalf("after prestige: count=%d level=%d pole=%d", p.PrestigeCount, p.Level, p.PoleLevel)
	}
	if !p.CraftingUnlocked || p.TradingUnlocked || p.EnchantUnlocked {
		t.Fatalf("ladder at 1: crafting=%v trading=%v enchant=%v",
			p.CraftingUnlocked, p.TradingUnlocked, p.EnchantUnlocked)
	}

	p.Level = g.tune.MaxLevel
	g.handlePrestige(p)
	p.Level = g.tune.MaxLevel
	g.handlePrestige(p)
	if p.PrestigeCount != 3 || !p.TradingUnlocked || !p.EnchantUnlocked {
		t.Fatalf("ladder at 3: count=%d trading=%v enchant=%v",
			p.PrestigeCount, p.TradingUnlocked, p.EnchantUnlocked)
	}
}
