package game

import (
	"fmt"
	"strconv"
	"strings"

	"reeltide.gg/internal/protocol"
)

// handleCraft resolves a recipe. Every material cost is validated before any
// deduction; a shortfall names the specific missing material and leaves
// state untouched.
func (g *Game) handleCraft(p *PlayerRecord, args []string) {
	if !p.CraftingUnlocked {
		g.status(p.Channel, fmt.Sprintf("@%s crafting unlocks at prestige 1", p.Username), protocol.ErrFeatureLocked)
		return
	}
	if len(args) == 0 {
		g.status(p.Channel, fmt.Sprintf("@%s craft <recipe>", p.Username), protocol.ErrBadRequest)
		return
	}
	recipe, ok := g.cats.Recipes.ByID[strings.ToLower(args[0])]
	if !ok {
		g.status(p.Channel, fmt.Sprintf("@%s unknown recipe %s", p.Username, args[0]), protocol.ErrUnknownItem)
		return
	}

	// Validate everything up front.
	for _, in := range recipe.Inputs {
		if p.Materials[in.Material] < in.Count {
			short := in.Count - p.Materials[in.Material]
			g.status(p.Channel,
				fmt.Sprintf("@%s missing %d %s for %s", p.Username, short, in.Material, recipe.ID),
				protocol.ErrNoMaterials)
			return
		}
	}
	if recipe.OutputItem != "" && p.bagFull() {
		g.status(p.Channel, fmt.Sprintf("@%s your bag is full", p.Username), protocol.ErrBagFull)
		return
	}

	for _, in := range recipe.Inputs {
		p.Materials[in.Material] -= in.Count
	}
	if recipe.OutputItem != "" {
		if d, ok := g.cats.Items.ByID[recipe.OutputItem]; ok {
			p.Inventory = append(p.Inventory, Item{ID: d.ID, Name: d.Name, Tier: d.RarityTier, Value: d.Value})
		}
	}
	for _, out := range recipe.OutputMaterials {
		p.Materials[out.Material] += out.Count
	}

	g.status(p.Channel, fmt.Sprintf("@%s crafted %s", p.Username, recipe.ID), "")
	g.writeAudit(AuditEntry{At: g.now(), Key: p.Key, Action: "craft", Detail: recipe.ID})
	g.persist(p)
}

// handleDuplicate crafts a copy of an inventory item for an essence cost
// scaled by the item's tier. A primed craft-boost charge halves the cost.
func (g *Game) handleDuplicate(p *PlayerRecord, args []string) {
	if !p.CraftingUnlocked {
		g.status(p.Channel, fmt.Sprintf("@%s crafting unlocks at prestige 1", p.Username), protocol.ErrFeatureLocked)
		return
	}
	if len(args) == 0 {
		g.status(p.Channel, fmt.Sprintf("@%s duplicate <slot>", p.Username), protocol.ErrBadRequest)
		return
	}
	idx, err := strconv.Atoi(args[0])
	if err != nil || idx < 1 || idx > len(p.Inventory) {
		g.status(p.Channel, fmt.Sprintf("@%s no item in slot %s", p.Username, args[0]), protocol.ErrBadRequest)
		return
	}
	item := p.Inventory[idx-1]

	cost := item.Tier + 1
	boosted := false
	if p.CraftBoostCharges > 0 {
		cost = (cost + 1) / 2
		boosted = true
	}
	if p.Essences[essenceArcane] < cost {
		g.status(p.Channel,
			fmt.Sprintf("@%s missing %d %s essence", p.Username, cost-p.Essences[essenceArcane], essenceArcane),
			protocol.ErrNoMaterials)
		return
	}
	if p.bagFull() {
		g.status(p.Channel, fmt.Sprintf("@%s your bag is full", p.Username), protocol.ErrBagFull)
		return
	}

	p.Essences[essenceArcane] -= cost
	if boosted {
		p.CraftBoostCharges--
	}
	p.Inventory = append(p.Inventory, item)
	g.status(p.Channel, fmt.Sprintf("@%s duplicated %s", p.Username, item.Name), "")
	g.persist(p)
}

const essenceArcane = "arcane"

// handleEnchant applies an enchantment recipe (recipes prefixed "ench_",
// paid in essences carried as recipe inputs).
func (g *Game) handleEnchant(p *PlayerRecord, args []string) {
	if !p.EnchantUnlocked {
		g.status(p.Channel, fmt.Sprintf("@%s enchanting unlocks at prestige 3", p.Username), protocol.ErrFeatureLocked)
		return
	}
	if len(args) == 0 {
		g.status(p.Channel, fmt.Sprintf("@%s enchant <name>", p.Username), protocol.ErrBadRequest)
		return
	}
	id := strings.ToLower(args[0])
	if !strings.HasPrefix(id, "ench_") {
		id = "ench_" + id
	}
	recipe, ok := g.cats.Recipes.ByID[id]
	if !ok {
		g.status(p.Channel, fmt.Sprintf("@%s unknown enchantment %s", p.Username, args[0]), protocol.ErrUnknownItem)
		return
	}
	for _, e := range p.Enchantments {
		if e == recipe.ID {
			g.status(p.Channel, fmt.Sprintf("@%s already enchanted with %s", p.Username, recipe.ID), protocol.ErrBadRequest)
			return
		}
	}
	// Enchant costs are essences; validate all before deducting any.
	for _, in := range recipe.Inputs {
		if p.Essences[in.Material] < in.Count {
			short := in.Count - p.Essences[in.Material]
			g.status(p.Channel,
				fmt.Sprintf("@%s missing %d %s essence", p.Username, short, in.Material),
				protocol.ErrNoMaterials)
			return
		}
	}
	for _, in := range recipe.Inputs {
		p.Essences[in.Material] -= in.Count
	}
	p.Enchantments = append(p.Enchantments, recipe.ID)
	g.status(p.Channel, fmt.Sprintf("@%s enchanted: %s", p.Username, recipe.ID), "")
	g.persist(p)
}
