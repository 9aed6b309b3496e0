package game

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"reeltide.gg/internal/protocol"
	"reeltide.gg/internal/sim/catalogs"
)

// StoreRotation is the cached item selection, regenerated when its
// fingerprint changes or the window expires.
type StoreRotation struct {
	Items       []StoreItem
	ExpiresAt   time.Time
	Fingerprint string
}

type StoreItem struct {
	ID      string
	Name    string
	Premium bool
}

// rotationFingerprint derives the cache key from catalog version, rotation
// window start, slot configuration and the always-included set. The salt
// changes on manual refresh so a refresh survives fingerprint checks until
// the next window.
func (g *Game) rotationFingerprint(windowStart time.Time) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%d|%d|%d|%.2f|%d",
		g.cats.Version, windowStart.Unix(),
		g.tune.StoreSlots, g.tune.PremiumSlots, g.tune.PremiumFloorTier,
		g.tune.PremiumSurcharge, g.rotationSalt)
	fmt.Fprintf(h, "|%s", strings.Join(g.alwaysItemIDs(), ","))
	return hex.EncodeToString(h.Sum(nil))
}

func (g *Game) alwaysItemIDs() []string {
	var ids []string
	for _, id := range g.cats.Items.IDs {
		if g.cats.Items.ByID[id].Always {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// currentRotation returns the cached rotation, regenerating it when the
// fingerprint changed or the cached expiry has passed.
func (g *Game) currentRotation() *StoreRotation {
	now := g.now()
	windowStart := now.Truncate(g.tune.RotationWindow())
	fp := g.rotationFingerprint(windowStart)
	if g.rotation != nil && g.rotation.Fingerprint == fp && now.Before(g.rotation.ExpiresAt) {
		return g.rotation
	}
	g.rotation = g.generateRotation(fp, windowStart.Add(g.tune.RotationWindow()))
	return g.rotation
}

func (g *Game) generateRotation(fp string, expiresAt time.Time) *StoreRotation {
	rot := &StoreRotation{Fingerprint: fp, ExpiresAt: expiresAt}

	seen := map[string]bool{}
	add := func(d catalogs.ItemDef, premium bool) {
		if seen[d.ID] {
			return
		}
		seen[d.ID] = true
		rot.Items = append(rot.Items, StoreItem{ID: d.ID, Name: d.Name, Premium: premium})
	}

	// Deterministic always-included set first.
	for _, id := range g.alwaysItemIDs() {
		add(g.cats.Items.ByID[id], false)
	}

	// Random subset fills the remaining regular slots.
	var pool []catalogs.ItemDef
	for _, id := range g.cats.Items.IDs {
		d := g.cats.Items.ByID[id]
		if d.BaseCost > 0 && !d.Always {
			pool = append(pool, d)
		}
	}
	g.rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	for _, d := range pool {
		if len(rot.Items) >= g.tune.StoreSlots {
			break
		}
		add(d, false)
	}

	// Premium slots draw only from items at or above the rarity floor.
	var premiumPool []catalogs.ItemDef
	for _, id := range g.cats.Items.IDs {
		d := g.cats.Items.ByID[id]
		if d.BaseCost > 0 && d.RarityTier >= g.tune.PremiumFloorTier {
			premiumPool = append(premiumPool, d)
		}
	}
	g.rng.Shuffle(len(premiumPool), func(i, j int) { premiumPool[i], premiumPool[j] = premiumPool[j], premiumPool[i] })
	added := 0
	for _, d := range premiumPool {
		if added >= g.tune.PremiumSlots {
			break
		}
		if seen[d.ID] {
			continue
		}
		add(d, true)
		added++
	}

	return rot
}

// price computes the per-player dynamic price for a store entry.
func (g *Game) price(p *PlayerRecord, baseCost int, premium bool) int {
	tierBonus := g.tune.TierBonusStep * float64(p.BiomeTier-1)
	over := p.Level - g.tune.LevelBonusFloor
	if over < 0 {
		over = 0
	}
	levelBonus := g.tune.LevelBonusStep * float64(over)
	if levelBonus > g.tune.LevelBonusCap {
		levelBonus = g.tune.LevelBonusCap
	}
	prestigeBonus := g.tune.PrestigeBonusStep * float64(p.PrestigeCount)

	mult := 1 + tierBonus + levelBonus + prestigeBonus
	if mult > g.tune.PriceCap {
		mult = g.tune.PriceCap
	}
	surcharge := 1.0
	if premium {
		surcharge = g.tune.PremiumSurcharge
	}
	return int(math.Round(float64(baseCost) * mult * surcharge))
}

// handleStore opens a store session and emits the rotation priced for the
// caller.
func (g *Game) handleStore(p *PlayerRecord) {
	if !g.openSession(p, ModeStore) {
		return
	}
	g.emitStore(p)
}

func (g *Game) emitStore(p *PlayerRecord) {
	rot := g.currentRotation()
	items := []protocol.Event{}
	for _, si := range rot.Items {
		d := g.cats.Items.ByID[si.ID]
		items = append(items, protocol.Event{
			"id":      si.ID,
			"name":    si.Name,
			"price":   g.price(p, d.BaseCost, si.Premium),
			"premium": si.Premium,
		})
	}
	g.emit(p.Channel, protocol.Event{
		"type":      protocol.TypeStore,
		"items":     items,
		"upgrades":  g.upgradeOffers(p),
		"expiresAt": rot.ExpiresAt.UnixMilli(),
	})
}

// upgradeOffers lists the next purchasable level of each upgrade track plus
// unowned pole skins.
func (g *Game) upgradeOffers(p *PlayerRecord) []protocol.Event {
	offers := []protocol.Event{}
	track := func(name string, levels []catalogs.UpgradeLevel, cur int) {
		for _, l := range levels {
			if l.Level == cur+1 {
				offers = append(offers, protocol.Event{
					"track": name,
					"level": l.Level,
					"price": g.price(p, l.Cost, false),
				})
				return
			}
		}
	}
	track("pole", g.cats.Upgrades.Pole, p.PoleLevel)
	track("lure", g.cats.Upgrades.Lure, p.LureLevel)
	track("luck", g.cats.Upgrades.Luck, p.LuckLevel)

	if p.InventoryCap < g.tune.InventoryCapMax {
		cur := (p.InventoryCap - g.tune.InventoryCapBase) / g.tune.InventoryCapStep
		track("inventory", g.cats.Upgrades.Inventory, cur)
	}

	skinIDs := make([]string, 0, len(g.cats.Skins.ByID))
	for id := range g.cats.Skins.ByID {
		skinIDs = append(skinIDs, id)
	}
	sort.Strings(skinIDs)
	for _, id := range skinIDs {
		if p.ownsSkin(id) {
			continue
		}
		s := g.cats.Skins.ByID[id]
		offers = append(offers, protocol.Event{
			"track": "skin",
			"id":    s.ID,
			"name":  s.Name,
			"price": g.price(p, s.Cost, false),
		})
	}
	return offers
}

// handleStoreRefresh replaces the rotation contents. The per-player refresh
// cooldown is decoupled from the rotation's own expiry.
func (g *Game) handleStoreRefresh(p *PlayerRecord) {
	now := g.now()
	if last, ok := g.refreshAt[p.Key]; ok {
		nextAt := last.Add(g.tune.RefreshCooldown())
		if now.Before(nextAt) {
			wait := nextAt.Sub(now).Round(time.Minute)
			g.status(p.Channel, fmt.Sprintf("@%s store refresh available in %s", p.Username, wait), protocol.ErrCooldown)
			return
		}
	}
	g.refreshAt[p.Key] = now
	g.rotationSalt++
	windowStart := now.Truncate(g.tune.RotationWindow())
	g.rotation = g.generateRotation(g.rotationFingerprint(windowStart), windowStart.Add(g.tune.RotationWindow()))
	g.status(p.Channel, fmt.Sprintf("@%s the store restocked", p.Username), "")
	g.emitStore(p)
}

// handleBuy purchases a rotation item, an upgrade track level, or a skin.
func (g *Game) handleBuy(p *PlayerRecord, args []string) {
	if len(args) == 0 {
		g.status(p.Channel, fmt.Sprintf("@%s buy what?", p.Username), protocol.ErrBadRequest)
		return
	}
	g.renewSession(p.Key)
	target := strings.ToLower(args[0])

	switch target {
	case "pole", "lure", "luck", "inventory":
		g.buyUpgrade(p, target)
		return
	case "skin":
		if len(args) < 2 {
			g.status(p.Channel, fmt.Sprintf("@%s buy skin <id>", p.Username), protocol.ErrBadRequest)
			return
		}
		g.buySkin(p, args[1])
		return
	}

	rot := g.currentRotation()
	for _, si := range rot.Items {
		if !strings.EqualFold(si.ID, target) && !strings.EqualFold(si.Name, strings.Join(args, " ")) {
			continue
		}
		d := g.cats.Items.ByID[si.ID]
		price := g.price(p, d.BaseCost, si.Premium)
		if p.Gold < price {
			g.status(p.Channel, fmt.Sprintf("@%s not enough gold (%d needed)", p.Username, price), protocol.ErrNoGold)
			return
		}
		if d.Kind != catalogs.KindMaterial && p.bagFull() {
			g.status(p.Channel, fmt.Sprintf("@%s your bag is full", p.Username), protocol.ErrBagFull)
			return
		}
		p.Gold -= price
		if d.Kind == catalogs.KindMaterial {
			p.Materials[d.ID]++
		} else {
			p.Inventory = append(p.Inventory, Item{
				ID: d.ID, Name: d.Name, Rarity: "", Tier: d.RarityTier, Value: d.Value,
			})
		}
		g.status(p.Channel, fmt.Sprintf("@%s bought %s for %d gold", p.Username, d.Name, price), "")
		g.persist(p)
		return
	}
	g.status(p.Channel, fmt.Sprintf("@%s that item is not in the store", p.Username), protocol.ErrUnknownItem)
}

func (g *Game) buyUpgrade(p *PlayerRecord, track string) {
	var levels []catalogs.UpgradeLevel
	var cur int
	switch track {
	case "pole":
		levels, cur = g.cats.Upgrades.Pole, p.PoleLevel
	case "lure":
		levels, cur = g.cats.Upgrades.Lure, p.LureLevel
	case "luck":
		levels, cur = g.cats.Upgrades.Luck, p.LuckLevel
	case "inventory":
		if p.InventoryCap >= g.tune.InventoryCapMax {
			g.status(p.Channel, fmt.Sprintf("@%s your bag is maxed out", p.Username), protocol.ErrBadRequest)
			return
		}
		levels = g.cats.Upgrades.Inventory
		cur = (p.InventoryCap - g.tune.InventoryCapBase) / g.tune.InventoryCapStep
	}
	var next *catalogs.UpgradeLevel
	for i := range levels {
		if levels[i].Level == cur+1 {
			next = &levels[i]
			break
		}
	}
	if next == nil {
		g.status(p.Channel, fmt.Sprintf("@%s %s is already maxed", p.Username, track), protocol.ErrBadRequest)
		return
	}
	price := g.price(p, next.Cost, false)
	if p.Gold < price {
		g.status(p.Channel, fmt.Sprintf("@%s not enough gold (%d needed)", p.Username, price), protocol.ErrNoGold)
		return
	}
	p.Gold -= price
	switch track {
	case "pole":
		p.PoleLevel = next.Level
	case "lure":
		p.LureLevel = next.Level
	case "luck":
		p.LuckLevel = next.Level
	case "inventory":
		p.InventoryCap += g.tune.InventoryCapStep
		if p.InventoryCap > g.tune.InventoryCapMax {
			p.InventoryCap = g.tune.InventoryCapMax
		}
	}
	g.status(p.Channel, fmt.Sprintf("@%s upgraded %s to level %d", p.Username, track, next.Level), "")
	g.persist(p)
}

func (g *Game) buySkin(p *PlayerRecord, id string) {
	s, ok := g.cats.Skins.ByID[id]
	if !ok {
		g.status(p.Channel, fmt.Sprintf("@%s unknown skin %s", p.Username, id), protocol.ErrUnknownItem)
		return
	}
	if p.ownsSkin(id) {
		g.status(p.Channel, fmt.Sprintf("@%s you already own %s", p.Username, s.Name), protocol.ErrBadRequest)
		return
	}
	price := g.price(p, s.Cost, false)
	if p.Gold < price {
		g.status(p.Channel, fmt.Sprintf("@%s not enough gold (%d needed)", p.Username, price), protocol.ErrNoGold)
		return
	}
	p.Gold -= price
	p.OwnedSkins = append(p.OwnedSkins, id)
	g.status(p.Channel, fmt.Sprintf("@%s bought the %s skin", p.Username, s.Name), "")
	g.persist(p)
}
