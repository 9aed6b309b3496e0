package game

import (
	"sort"
	"time"

	"reeltide.gg/internal/protocol"
	"reeltide.gg/internal/sim/catalogs"
	"reeltide.gg/internal/sim/tuning"
)

type recorded struct {
	channel string
	ev      protocol.Event
}

type recorder struct {
	events []recorded
}

func (r *recorder) Broadcast(channel string, ev protocol.Event) {
	r.events = append(r.events, recorded{channel: channel, ev: ev})
}

func (r *recorder) BroadcastAll(ev protocol.Event) {
	r.events = append(r.events, recorded{channel: "*", ev: ev})
}

func (r *recorder) ofType(t string) []protocol.Event {
	var out []protocol.Event
	for _, e := range r.events {
		if e.ev["type"] == t {
			out = append(out, e.ev)
		}
	}
	return out
}

func (r *recorder) last(t string) protocol.Event {
	evs := r.ofType(t)
	if len(evs) == 0 {
		return nil
	}
	return evs[len(evs)-1]
}

func (r *recorder) lastCode() string {
	evs := r.ofType(protocol.TypeStatus)
	for i := len(evs) - 1; i >= 0; i-- {
		if c, ok := evs[i]["code"].(string); ok {
			return c
		}
	}
	return ""
}

func (r *recorder) reset() { r.events = nil }

func itemCatalog(defs []catalogs.ItemDef) catalogs.ItemCatalog {
	byID := map[string]catalogs.ItemDef{}
	var ids []string
	for _, d := range defs {
		byID[d.ID] = d
		ids = append(ids, d.ID)
	}
	sort.Strings(ids)
	return catalogs.ItemCatalog{ByID: byID, IDs: ids, Digest: "test"}
}

// testCats builds an in-memory content set. Biome 1 has a single fixed-value
// rarity so reward math is deterministic; biome 2 has a full ladder for
// luck-sensitive tests.
func testCats() *catalogs.Catalogs {
	return &catalogs.Catalogs{
		Items: itemCatalog([]catalogs.ItemDef{
			{ID: "worm_bait", Name: "Worm Bait", Kind: catalogs.KindConsumable, Value: 4, BaseCost: 10, Always: true,
				Effect: &catalogs.EffectDef{Kind: catalogs.EffectBait, LuckBonus: 0.1, Uses: 2}},
			{ID: "xp_tonic", Name: "XP Tonic", Kind: catalogs.KindConsumable, RarityTier: 1, Value: 15, BaseCost: 40,
				Effect: &catalogs.EffectDef{Kind: catalogs.EffectBuff, XPBonus: 0.5, DurationSec: 900}},
			{ID: "tide_charm", Name: "Tide Charm", Kind: catalogs.KindConsumable, RarityTier: 2, Value: 30, BaseCost: 80,
				Effect: &catalogs.EffectDef{Kind: catalogs.EffectCharm, LuckBonus: 0.3, XPBonus: 0.1, DurationSec: 1800}},
			{ID: "scale_t1", Name: "Dull Scale", Kind: catalogs.KindMaterial, Value: 2, BaseCost: 8},
			{ID: "scale_t2", Name: "Glimmer Scale", Kind: catalogs.KindMaterial, RarityTier: 2, Value: 6, BaseCost: 25},
			{ID: "echo_reel", Name: "Echo Reel", Kind: catalogs.KindConsumable, RarityTier: 3, Value: 60, BaseCost: 150,
				Effect: &catalogs.EffectDef{Kind: catalogs.EffectEchoReel, Charges: 1}},
			{ID: "moon_charm", Name: "Moon Charm", Kind: catalogs.KindConsumable, RarityTier: 4, Value: 90, BaseCost: 250,
				Effect: &catalogs.EffectDef{Kind: catalogs.EffectCharm, LuckBonus: 0.6, XPBonus: 0.25, DurationSec: 3600}},
		}),
		Biomes: catalogs.BiomeCatalog{
			ByTier: map[int]catalogs.BiomeDef{
				1: {
					Tier: 1, Name: "Shallows", GoldMult: 1, XPMult: 1,
					Rarities: []catalogs.RarityConfig{
						{Name: "common", Weight: 1, ValueMin: 10, ValueMax: 10, XP: 6},
					},
					Loot: map[string][]string{"common": {"Minnow"}},
				},
				2: {
					Tier: 2, Name: "Reef", GoldMult: 1.2, XPMult: 1.15,
					Rarities: []catalogs.RarityConfig{
						{Name: "common", Weight: 60, ValueMin: 8, ValueMax: 18, XP: 9},
						{Name: "rare", Weight: 30, ValueMin: 20, ValueMax: 45, XP: 26},
						{Name: "epic", Weight: 10, ValueMin: 50, ValueMax: 110, XP: 70},
					},
					Loot: map[string][]string{"common": {"Parrotfish"}},
				},
			},
			Tiers:  []int{1, 2},
			Digest: "test",
		},
		Recipes: catalogs.RecipeCatalog{
			ByID: map[string]catalogs.RecipeDef{
				"glow_bait": {ID: "glow_bait",
					Inputs:     []catalogs.MaterialCount{{Material: "scale_t1", Count: 4}},
					OutputItem: "worm_bait"},
				"refine_scales": {ID: "refine_scales",
					Inputs:          []catalogs.MaterialCount{{Material: "scale_t1", Count: 6}},
					OutputMaterials: []catalogs.MaterialCount{{Material: "scale_t2", Count: 1}}},
				"ench_deep_sight": {ID: "ench_deep_sight",
					Inputs: []catalogs.MaterialCount{{Material: "arcane", Count: 3}}},
			},
			Digest: "test",
		},
		Upgrades: catalogs.UpgradeCatalog{
			Pole: []catalogs.UpgradeLevel{
				{Level: 1, Cost: 50, Bonus: 0.1},
				{Level: 2, Cost: 140, Bonus: 0.2},
			},
			Lure: []catalogs.UpgradeLevel{
				{Level: 1, Cost: 60, Bonus: 0.05},
			},
			Luck: []catalogs.UpgradeLevel{
				{Level: 1, Cost: 80, Bonus: 0.05},
			},
			Inventory: []catalogs.UpgradeLevel{
				{Level: 1, Cost: 100},
			},
			Digest: "test",
		},
		Skins: catalogs.SkinCatalog{
			ByID: map[string]catalogs.SkinDef{
				"driftwood": {ID: "driftwood", Name: "Driftwood Pole", Cost: 150},
			},
			Digest: "test",
		},
		Version: "test-v1",
	}
}

type fixture struct {
	g     *Game
	clock *VirtualClock
	sink  *recorder
}

func newFixture(tune tuning.Tuning) *fixture {
	clock := NewVirtualClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	sink := &recorder{}
	g := newTestGame(Config{Tune: tune, Seed: 1, Clock: clock}, testCats(), nil, sink)
	return &fixture{g: g, clock: clock, sink: sink}
}

func (f *fixture) player(channel, user string) *PlayerRecord {
	return f.g.ensurePlayer(channel, user)
}

func (f *fixture) chat(channel, user, name string, args ...string) {
	f.g.Dispatch(protocol.Command{Username: user, Channel: channel, Name: name, Args: args, Origin: protocol.OriginChat})
}

func (f *fixture) panel(channel, user, name string, args ...string) {
	f.g.Dispatch(protocol.Command{Username: user, Channel: channel, Name: name, Args: args, Origin: protocol.OriginPanel})
}

func (f *fixture) mod(channel, user, name string, args ...string) {
	f.g.Dispatch(protocol.Command{Username: user, Channel: channel, Name: name, Args: args, Mod: true, Origin: protocol.OriginChat})
}
