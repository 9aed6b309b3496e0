package game

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"reeltide.gg/internal/protocol"
	"reeltide.gg/internal/sim/catalogs"
)

func (g *Game) handleUpgrades(p *PlayerRecord) {
	g.renewSession(p.Key)
	g.emitStore(p)
}

func (g *Game) handleSell(p *PlayerRecord, args []string) {
	if len(args) == 0 {
		g.status(p.Channel, fmt.Sprintf("@%s sell <slot> or sell all", p.Username), protocol.ErrBadRequest)
		return
	}
	g.renewSession(p.Key)

	if strings.EqualFold(args[0], "all") {
		if len(p.Inventory) == 0 {
			g.status(p.Channel, fmt.Sprintf("@%s nothing to sell", p.Username), protocol.ErrBadRequest)
			return
		}
		total := 0
		count := len(p.Inventory)
		for _, it := range p.Inventory {
			total += it.Value
		}
		p.Inventory = nil
		p.Gold += total
		g.emit(p.Channel, protocol.Event{"type": protocol.TypeSell, "gold": total, "count": count})
		g.persist(p)
		return
	}

	idx, err := strconv.Atoi(args[0])
	if err != nil {
		g.status(p.Channel, fmt.Sprintf("@%s sell <slot> or sell all", p.Username), protocol.ErrBadRequest)
		return
	}
	item, ok := p.removeItem(idx - 1)
	if !ok {
		g.status(p.Channel, fmt.Sprintf("@%s no item in slot %d", p.Username, idx), protocol.ErrBadRequest)
		return
	}
	p.Gold += item.Value
	g.emit(p.Channel, protocol.Event{"type": protocol.TypeSell, "gold": item.Value, "item": item.Name, "count": 1})
	g.persist(p)
}

// handleUse consumes an inventory item by slot and applies its effect.
func (g *Game) handleUse(p *PlayerRecord, args []string) {
	if len(args) == 0 {
		g.status(p.Channel, fmt.Sprintf("@%s use <slot>", p.Username), protocol.ErrBadRequest)
		return
	}
	g.renewSession(p.Key)

	idx, err := strconv.Atoi(args[0])
	if err != nil || idx < 1 || idx > len(p.Inventory) {
		g.status(p.Channel, fmt.Sprintf("@%s no item in slot %s", p.Username, args[0]), protocol.ErrBadRequest)
		return
	}
	item := p.Inventory[idx-1]
	def, ok := g.cats.Items.ByID[item.ID]
	if !ok || (def.Kind != catalogs.KindConsumable && def.Kind != catalogs.KindChest) {
		g.status(p.Channel, fmt.Sprintf("@%s %s cannot be used", p.Username, item.Name), protocol.ErrBadRequest)
		return
	}

	if def.Kind == catalogs.KindChest {
		p.removeItem(idx - 1)
		g.openChest(p, def)
		g.persist(p)
		return
	}

	eff := def.Effect
	if eff == nil {
		g.status(p.Channel, fmt.Sprintf("@%s %s does nothing", p.Username, item.Name), protocol.ErrBadRequest)
		return
	}

	switch eff.Kind {
	case catalogs.EffectBait:
		uses := eff.Uses
		if uses <= 0 {
			uses = 1
		}
		p.Bait = &ActiveBait{
			ItemID:     def.ID,
			MinTier:    eff.MinTier,
			LuckBonus:  eff.LuckBonus,
			ValueBonus: eff.ValueBonus,
			XPBonus:    eff.XPBonus,
			UsesLeft:   uses,
		}
		g.status(p.Channel, fmt.Sprintf("@%s baited with %s (%d uses)", p.Username, def.Name, uses), "")
	case catalogs.EffectCharm:
		g.setCharm(p, def.ID, eff.LuckBonus, eff.XPBonus, time.Duration(eff.DurationSec)*time.Second)
		g.status(p.Channel, fmt.Sprintf("@%s %s hums with power", p.Username, def.Name), "")
	case catalogs.EffectBuff:
		dur := time.Duration(eff.DurationSec) * time.Second
		if eff.XPBonus > 0 {
			g.addBuff(p, BuffXP, eff.XPBonus, dur)
		}
		if eff.ValueBonus > 0 {
			g.addBuff(p, BuffValue, eff.ValueBonus, dur)
		}
		g.status(p.Channel, fmt.Sprintf("@%s %s takes effect", p.Username, def.Name), "")
	case catalogs.EffectStabilizer:
		p.StabilizerCharges += chargeCount(eff)
		g.status(p.Channel, fmt.Sprintf("@%s stabilizer primed (%d charges)", p.Username, p.StabilizerCharges), "")
	case catalogs.EffectEchoReel:
		p.EchoReelCharges += chargeCount(eff)
		g.status(p.Channel, fmt.Sprintf("@%s echo reel primed (%d charges)", p.Username, p.EchoReelCharges), "")
	case catalogs.EffectChestUpgrade:
		if p.InventoryCap >= g.tune.InventoryCapMax {
			g.status(p.Channel, fmt.Sprintf("@%s your bag is already maxed out", p.Username), protocol.ErrBadRequest)
			return
		}
		p.InventoryCap += g.tune.InventoryCapStep
		if p.InventoryCap > g.tune.InventoryCapMax {
			p.InventoryCap = g.tune.InventoryCapMax
		}
		g.status(p.Channel, fmt.Sprintf("@%s bag expanded to %d slots", p.Username, p.InventoryCap), "")
	case catalogs.EffectBiomeKey:
		next := g.cats.NextBiomeTier(p.BiomeTier)
		if next == p.BiomeTier {
			g.status(p.Channel, fmt.Sprintf("@%s there is nowhere deeper to go", p.Username), protocol.ErrBadRequest)
			return
		}
		p.BiomeTier = next
		g.status(p.Channel, fmt.Sprintf("@%s travelled to %s", p.Username, g.cats.Biome(next).Name), "")
	case catalogs.EffectCraftBoost:
		p.CraftBoostCharges += chargeCount(eff)
		g.status(p.Channel, fmt.Sprintf("@%s craft boost primed (%d charges)", p.Username, p.CraftBoostCharges), "")
	default:
		g.status(p.Channel, fmt.Sprintf("@%s %s does nothing", p.Username, item.Name), protocol.ErrBadRequest)
		return
	}

	p.removeItem(idx - 1)
	g.persist(p)
}

func chargeCount(eff *catalogs.EffectDef) int {
	if eff.Charges > 0 {
		return eff.Charges
	}
	return 1
}

// openChest rolls materials (and occasionally an essence) from a chest.
func (g *Game) openChest(p *PlayerRecord, def catalogs.ItemDef) {
	rolls := def.RarityTier + 2
	granted := map[string]int{}
	for i := 0; i < rolls; i++ {
		if g.rng.Float64() < 0.2 {
			p.Essences[essenceArcane]++
			granted[essenceArcane+" essence"]++
			continue
		}
		mat := fmt.Sprintf("scale_t%d", 1+g.rng.Intn(def.RarityTier+1))
		p.Materials[mat]++
		granted[mat]++
	}
	parts := make([]string, 0, len(granted))
	for m, n := range granted {
		parts = append(parts, fmt.Sprintf("%dx %s", n, m))
	}
	g.status(p.Channel, fmt.Sprintf("@%s opened %s: %s", p.Username, def.Name, strings.Join(parts, ", ")), "")
}

func (g *Game) handleInventory(p *PlayerRecord) {
	if !g.openSession(p, ModeInventory) {
		return
	}
	g.emitInventory(p)
}

func (g *Game) emitInventory(p *PlayerRecord) {
	items := []protocol.Event{}
	for i, it := range p.Inventory {
		items = append(items, protocol.Event{
			"slot":   i + 1,
			"id":     it.ID,
			"name":   it.Name,
			"rarity": it.Rarity,
			"value":  it.Value,
		})
	}
	g.emit(p.Channel, protocol.Event{
		"type": protocol.TypeInventory,
		"state": protocol.Event{
			"user":      p.Username,
			"gold":      p.Gold,
			"level":     p.Level,
			"items":     items,
			"cap":       p.InventoryCap,
			"materials": p.Materials,
			"essences":  p.Essences,
			"biome":     g.cats.Biome(p.BiomeTier).Name,
			"prestige":  p.PrestigeCount,
		},
	})
}

func (g *Game) handleSave(p *PlayerRecord) {
	if err := g.flush(p); err != nil {
		g.log.Printf("save %s: %v", p.Key, err)
		g.emit(p.Channel, protocol.Event{"type": protocol.TypeSave, "ok": false, "message": "save failed, progress kept in memory"})
		return
	}
	g.emit(p.Channel, protocol.Event{"type": protocol.TypeSave, "ok": true})
}

func (g *Game) handleEquip(p *PlayerRecord, args []string) {
	if len(args) == 0 {
		g.status(p.Channel, fmt.Sprintf("@%s equip <skin>", p.Username), protocol.ErrBadRequest)
		return
	}
	g.renewSession(p.Key)
	id := args[0]
	if _, ok := g.cats.Skins.ByID[id]; !ok {
		g.status(p.Channel, fmt.Sprintf("@%s unknown skin %s", p.Username, id), protocol.ErrUnknownItem)
		return
	}
	if !p.ownsSkin(id) {
		g.status(p.Channel, fmt.Sprintf("@%s you do not own that skin", p.Username), protocol.ErrNoPermission)
		return
	}
	p.EquippedSkin = id
	g.emit(p.Channel, protocol.Event{"type": protocol.TypeSkin, "user": p.Username, "skinId": id})
	g.persist(p)
}

func (g *Game) handleLevel(p *PlayerRecord) {
	g.emit(p.Channel, protocol.Event{
		"type":     protocol.TypeLevel,
		"user":     p.Username,
		"level":    p.Level,
		"xp":       p.XP,
		"xpNeeded": p.XPNeeded,
	})
}

func (g *Game) handleTheme(p *PlayerRecord, args []string) {
	if len(args) == 0 {
		g.status(p.Channel, fmt.Sprintf("@%s theme <name>", p.Username), protocol.ErrBadRequest)
		return
	}
	g.themes[sanitizeKeyPart(p.Channel)] = args[0]
	g.emit(p.Channel, protocol.Event{"type": protocol.TypeTheme, "theme": args[0]})
}

// handleEvent starts or stops a global event (mod only; permission gated in
// Dispatch). Syntax: event <kind> <magnitude> [minutes] [tier] | event stop <id>.
func (g *Game) handleEvent(p *PlayerRecord, args []string) {
	if len(args) == 0 {
		g.status(p.Channel, fmt.Sprintf("@%s event <kind> <magnitude> [minutes] [tier] or event stop <id>", p.Username), protocol.ErrBadRequest)
		return
	}
	if strings.EqualFold(args[0], "stop") {
		if len(args) < 2 || !g.stopEvent(args[1]) {
			g.status(p.Channel, fmt.Sprintf("@%s no such event", p.Username), protocol.ErrBadRequest)
			return
		}
		g.status(p.Channel, "event stopped", "")
		return
	}

	kind := strings.ToLower(args[0])
	switch kind {
	case EventXP, EventGold, EventDouble, EventLuck:
	default:
		g.status(p.Channel, fmt.Sprintf("@%s unknown event kind %s", p.Username, args[0]), protocol.ErrBadRequest)
		return
	}
	if len(args) < 2 {
		g.status(p.Channel, fmt.Sprintf("@%s event %s <magnitude>", p.Username, kind), protocol.ErrBadRequest)
		return
	}
	mag, err := strconv.ParseFloat(args[1], 64)
	if err != nil || mag <= 0 {
		g.status(p.Channel, fmt.Sprintf("@%s bad magnitude %s", p.Username, args[1]), protocol.ErrBadRequest)
		return
	}
	var dur time.Duration
	if len(args) >= 3 {
		mins, err := strconv.Atoi(args[2])
		if err != nil || mins <= 0 {
			g.status(p.Channel, fmt.Sprintf("@%s bad duration %s", p.Username, args[2]), protocol.ErrBadRequest)
			return
		}
		dur = time.Duration(mins) * time.Minute
	}
	tier := 0
	if kind == EventLuck && len(args) >= 4 {
		t, err := strconv.Atoi(args[3])
		if err != nil || t < 0 {
			g.status(p.Channel, fmt.Sprintf("@%s bad tier %s", p.Username, args[3]), protocol.ErrBadRequest)
			return
		}
		tier = t
	}
	id := g.startEvent(kind, mag, dur, tier)
	g.status(p.Channel, fmt.Sprintf("event %s started (%s)", kind, id), "")
}

func (g *Game) handleCooldown(p *PlayerRecord, args []string, global bool) {
	if len(args) == 0 {
		g.status(p.Channel, fmt.Sprintf("@%s cooldown <seconds>", p.Username), protocol.ErrBadRequest)
		return
	}
	secs, err := strconv.Atoi(args[0])
	if err != nil || secs < 0 {
		g.status(p.Channel, fmt.Sprintf("@%s bad cooldown %s", p.Username, args[0]), protocol.ErrBadRequest)
		return
	}
	d := time.Duration(secs) * time.Second
	if global {
		g.globalCooldown = d
		g.status(p.Channel, fmt.Sprintf("global cooldown set to %ds", secs), "")
	} else {
		g.playerCooldown = d
		g.status(p.Channel, fmt.Sprintf("player cooldown set to %ds", secs), "")
	}
}

// handleResetProfile wipes a player's record. This is the only path that
// deletes a record.
func (g *Game) handleResetProfile(p *PlayerRecord, args []string) {
	if len(args) == 0 {
		g.status(p.Channel, fmt.Sprintf("@%s reset-profile <user>", p.Username), protocol.ErrBadRequest)
		return
	}
	target := strings.TrimPrefix(args[0], "@")
	key := ScopedKey(p.Channel, target)
	g.sched.CancelAll(key)
	delete(g.players, key)
	if g.store != nil {
		if err := g.store.DeletePlayer(key); err != nil {
			g.log.Printf("delete player %s: %v", key, err)
		}
	}
	g.status(p.Channel, fmt.Sprintf("profile for %s was reset", target), "")
	g.writeAudit(AuditEntry{At: g.now(), Key: key, Action: "reset_profile", Detail: "by " + p.Key})
}

// handlePanel pushes the caller's full state for the control panel UI.
func (g *Game) handlePanel(p *PlayerRecord) {
	g.emitInventory(p)
	g.emitStore(p)
	g.emitBuffs(p)
	g.broadcastEvents()
	if theme, ok := g.themes[sanitizeKeyPart(p.Channel)]; ok {
		g.emit(p.Channel, protocol.Event{"type": protocol.TypeTheme, "theme": theme})
	}
}

// handlePrestige resets progression at max level and advances the unlock
// ladder: crafting at 1, trading at 2, enchantments at 3.
func (g *Game) handlePrestige(p *PlayerRecord) {
	if p.Level < g.tune.MaxLevel {
		g.status(p.Channel,
			fmt.Sprintf("@%s prestige requires level %d (you are %d)", p.Username, g.tune.MaxLevel, p.Level),
			protocol.ErrFeatureLocked)
		return
	}
	p.PrestigeCount++
	p.Level = 1
	p.XP = 0
	p.XPNeeded = g.xpNeededFor(1)
	p.PoleLevel = 0
	p.LureLevel = 0
	p.LuckLevel = 0
	p.CraftingUnlocked = p.PrestigeCount >= 1
	p.TradingUnlocked = p.PrestigeCount >= 2
	p.EnchantUnlocked = p.PrestigeCount >= 3

	g.status(p.Channel, fmt.Sprintf("@%s prestiged! (prestige %d)", p.Username, p.PrestigeCount), "")
	g.handleLevel(p)
	g.writeAudit(AuditEntry{At: g.now(), Key: p.Key, Action: "prestige", Detail: fmt.Sprintf("count=%d", p.PrestigeCount)})
	g.persist(p)
}
