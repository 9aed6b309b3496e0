package game

import (
	"math"
	"strings"
	"time"
)

// Item is an inventory entry: a snapshot of a caught or granted item. The
// snapshot travels with the item through trades and listings.
type Item struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Rarity string `json:"rarity"`
	Tier   int    `json:"tier"`
	Value  int    `json:"value"`
}

// PlayerRecord is the persisted per-(channel,user) snapshot. One record per
// scoped key, created on first command, mutated by handlers, persisted after
// state-changing operations.
type PlayerRecord struct {
	Key      string `json:"key"`
	Channel  string `json:"channel"`
	Username string `json:"username"`

	Gold     int `json:"gold"`
	Level    int `json:"level"`
	XP       int `json:"xp"`
	XPNeeded int `json:"xp_needed"`

	PoleLevel int `json:"pole_level"`
	LureLevel int `json:"lure_level"`
	LuckLevel int `json:"luck_level"`

	Inventory    []Item `json:"inventory"`
	InventoryCap int    `json:"inventory_cap"`

	OwnedSkins   []string `json:"owned_skins,omitempty"`
	EquippedSkin string   `json:"equipped_skin,omitempty"`

	BiomeTier int `json:"biome_tier"`

	Materials map[string]int `json:"materials,omitempty"`
	Essences  map[string]int `json:"essences,omitempty"`

	Enchantments []string `json:"enchantments,omitempty"`

	CraftingUnlocked bool `json:"crafting_unlocked,omitempty"`
	TradingUnlocked  bool `json:"trading_unlocked,omitempty"`
	EnchantUnlocked  bool `json:"enchant_unlocked,omitempty"`
	PrestigeCount    int  `json:"prestige_count,omitempty"`

	StabilizerCharges int `json:"stabilizer_charges,omitempty"`
	EchoReelCharges   int `json:"echo_reel_charges,omitempty"`
	CraftBoostCharges int `json:"craft_boost_charges,omitempty"`

	Bait *ActiveBait `json:"bait,omitempty"`

	// Transient fishing state. Not persisted: a restart drops in-flight
	// casts along with their timers.
	IsCasting bool `json:"-"`
	HasTug    bool `json:"-"`

	// Timed grants live only in memory; their timers cannot survive a
	// restart.
	Buffs []*BuffGrant `json:"-"`
	Charm *CharmGrant  `json:"-"`
}

// ActiveBait is a limited-use catch bonus from a consumed bait item.
type ActiveBait struct {
	ItemID     string  `json:"item_id"`
	MinTier    int     `json:"min_tier,omitempty"`
	LuckBonus  float64 `json:"luck_bonus,omitempty"`
	ValueBonus float64 `json:"value_bonus,omitempty"`
	XPBonus    float64 `json:"xp_bonus,omitempty"`
	UsesLeft   int     `json:"uses_left"`
}

// BuffGrant is one timed bonus grant. Several grants of the same kind may be
// active at once; their magnitudes sum.
type BuffGrant struct {
	ID        string
	Kind      string // "xp" or "value"
	Magnitude float64
	ExpiresAt time.Time
}

// CharmGrant is the exclusive charm slot; a new charm replaces the old one.
type CharmGrant struct {
	ItemID    string
	LuckBonus float64
	XPBonus   float64
	ExpiresAt time.Time
}

// Buff kinds.
const (
	BuffXP    = "xp"
	BuffValue = "value"
)

// ScopedKey builds the stable per-player identifier. All per-player state
// and timers hang off this key.
func ScopedKey(channel, username string) string {
	return sanitizeKeyPart(channel) + ":" + sanitizeKeyPart(username)
}

func sanitizeKeyPart(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (g *Game) newPlayer(key, channel, username string) *PlayerRecord {
	return &PlayerRecord{
		Key:          key,
		Channel:      channel,
		Username:     username,
		Gold:         25,
		Level:        1,
		XPNeeded:     g.xpNeededFor(1),
		InventoryCap: g.tune.InventoryCapBase,
		BiomeTier:    1,
		Materials:    map[string]int{},
		Essences:     map[string]int{},
	}
}

func (g *Game) xpNeededFor(level int) int {
	return int(math.Round(float64(g.tune.XPBase) * math.Pow(g.tune.XPGrowth, float64(level-1))))
}

// grantXP applies xp and runs the level-up loop, returning each level
// reached (empty when no level-up happened).
func (g *Game) grantXP(p *PlayerRecord, xp int) []int {
	p.XP += xp
	var reached []int
	for p.XP >= p.XPNeeded && p.Level < g.tune.MaxLevel {
		p.XP -= p.XPNeeded
		p.Level++
		p.XPNeeded = g.xpNeededFor(p.Level)
		reached = append(reached, p.Level)
	}
	if p.Level >= g.tune.MaxLevel && p.XP >= p.XPNeeded {
		p.XP = p.XPNeeded - 1
	}
	return reached
}

func (p *PlayerRecord) bagFull() bool {
	return len(p.Inventory) >= p.InventoryCap
}

// removeItem removes and returns the inventory item at idx (0-based).
func (p *PlayerRecord) removeItem(idx int) (Item, bool) {
	if idx < 0 || idx >= len(p.Inventory) {
		return Item{}, false
	}
	it := p.Inventory[idx]
	p.Inventory = append(p.Inventory[:idx], p.Inventory[idx+1:]...)
	return it, true
}

func (p *PlayerRecord) ownsSkin(id string) bool {
	for _, s := range p.OwnedSkins {
		if s == id {
			return true
		}
	}
	return false
}
