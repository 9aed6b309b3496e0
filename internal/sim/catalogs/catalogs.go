package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Catalogs is the read-only, versioned content snapshot consumed by pricing,
// crafting and biome lookups. It is never mutated after Load.
type Catalogs struct {
	Items    ItemCatalog
	Biomes   BiomeCatalog
	Recipes  RecipeCatalog
	Upgrades UpgradeCatalog
	Skins    SkinCatalog

	// Version is a digest over all loaded content, including any override
	// file. Store rotation fingerprints derive from it.
	Version string
}

type ItemCatalog struct {
	ByID   map[string]ItemDef
	IDs    []string // sorted
	Digest string
}

// Item kinds.
const (
	KindFish       = "fish"
	KindConsumable = "consumable"
	KindMaterial   = "material"
	KindChest      = "chest"
)

type ItemDef struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Kind       string     `json:"kind"`
	RarityTier int        `json:"rarity_tier"`
	Value      int        `json:"value"`
	BaseCost   int        `json:"base_cost,omitempty"`
	Always     bool       `json:"always,omitempty"`
	Effect     *EffectDef `json:"effect,omitempty"`
}

// EffectDef describes what a consumable does when used.
type EffectDef struct {
	Kind        string  `json:"kind"` // bait, charm, buff, stabilizer, echo_reel, chest_upgrade, biome_key, craft_boost
	XPBonus     float64 `json:"xp_bonus,omitempty"`
	ValueBonus  float64 `json:"value_bonus,omitempty"`
	LuckBonus   float64 `json:"luck_bonus,omitempty"`
	MinTier     int     `json:"min_tier,omitempty"`
	Uses        int     `json:"uses,omitempty"`
	DurationSec int     `json:"duration_sec,omitempty"`
	Charges     int     `json:"charges,omitempty"`
}

// Effect kinds.
const (
	EffectBait         = "bait"
	EffectCharm        = "charm"
	EffectBuff         = "buff"
	EffectStabilizer   = "stabilizer"
	EffectEchoReel     = "echo_reel"
	EffectChestUpgrade = "chest_upgrade"
	EffectBiomeKey     = "biome_key"
	EffectCraftBoost   = "craft_boost"
)

type BiomeCatalog struct {
	ByTier map[int]BiomeDef
	Tiers  []int // sorted ascending
	Digest string
}

type BiomeDef struct {
	Tier     int                 `json:"tier"`
	Name     string              `json:"name"`
	GoldMult float64             `json:"gold_mult"`
	XPMult   float64             `json:"xp_mult"`
	Rarities []RarityConfig      `json:"rarities"` // ordered common -> highest
	Loot     map[string][]string `json:"loot"`     // rarity name -> item names
}

type RarityConfig struct {
	Name     string  `json:"name"`
	Weight   float64 `json:"weight"`
	ValueMin int     `json:"value_min"`
	ValueMax int     `json:"value_max"`
	XP       int     `json:"xp"`
}

type RecipeCatalog struct {
	ByID   map[string]RecipeDef
	Digest string
}

type RecipeDef struct {
	ID              string          `json:"id"`
	Inputs          []MaterialCount `json:"inputs"`
	OutputItem      string          `json:"output_item,omitempty"`
	OutputMaterials []MaterialCount `json:"output_materials,omitempty"`
}

type MaterialCount struct {
	Material string `json:"material"`
	Count    int    `json:"count"`
}

type UpgradeCatalog struct {
	Pole      []UpgradeLevel
	Lure      []UpgradeLevel
	Luck      []UpgradeLevel
	Inventory []UpgradeLevel
	Digest    string
}

type UpgradeLevel struct {
	Level int     `json:"level"`
	Cost  int     `json:"cost"`
	Bonus float64 `json:"bonus"`
}

type SkinCatalog struct {
	ByID   map[string]SkinDef
	Digest string
}

type SkinDef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Cost int    `json:"cost"`
}

// upgradeFile is the on-disk shape of upgrades.json.
type upgradeFile struct {
	Pole      []UpgradeLevel `json:"pole"`
	Lure      []UpgradeLevel `json:"lure"`
	Luck      []UpgradeLevel `json:"luck"`
	Inventory []UpgradeLevel `json:"inventory"`
}

// overrideFile carries optional replacements for whole catalogs. A present
// key replaces the entire corresponding array; entries are never merged
// per-id. This replace-not-merge semantics is a documented contract.
type overrideFile struct {
	Items    *[]ItemDef   `json:"items,omitempty"`
	Biomes   *[]BiomeDef  `json:"biomes,omitempty"`
	Recipes  *[]RecipeDef `json:"recipes,omitempty"`
	Upgrades *upgradeFile `json:"upgrades,omitempty"`
	Skins    *[]SkinDef   `json:"skins,omitempty"`
}

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	items, raw, err := loadValidated[[]ItemDef](filepath.Join(configDir, "items.json"), schemaItems)
	if err != nil {
		return nil, err
	}
	if err := c.setItems(items, raw); err != nil {
		return nil, err
	}

	biomes, raw, err := loadValidated[[]BiomeDef](filepath.Join(configDir, "biomes.json"), schemaBiomes)
	if err != nil {
		return nil, err
	}
	if err := c.setBiomes(biomes, raw); err != nil {
		return nil, err
	}

	recipes, raw, err := loadValidated[[]RecipeDef](filepath.Join(configDir, "recipes.json"), schemaRecipes)
	if err != nil {
		return nil, err
	}
	if err := c.setRecipes(recipes, raw); err != nil {
		return nil, err
	}

	ups, raw, err := loadValidated[upgradeFile](filepath.Join(configDir, "upgrades.json"), schemaUpgrades)
	if err != nil {
		return nil, err
	}
	c.setUpgrades(ups, raw)

	skins, raw, err := loadValidated[[]SkinDef](filepath.Join(configDir, "skins.json"), schemaSkins)
	if err != nil {
		return nil, err
	}
	if err := c.setSkins(skins, raw); err != nil {
		return nil, err
	}

	if err := c.applyOverrides(filepath.Join(configDir, "overrides.json")); err != nil {
		return nil, err
	}

	c.recomputeVersion()
	return &c, nil
}

func (c *Catalogs) setItems(defs []ItemDef, raw []byte) error {
	byID := make(map[string]ItemDef, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("items: empty id")
		}
		if _, dup := byID[d.ID]; dup {
			return fmt.Errorf("items: duplicate id %s", d.ID)
		}
		byID[d.ID] = d
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	c.Items = ItemCatalog{ByID: byID, IDs: ids, Digest: sha256Hex(raw)}
	return nil
}

func (c *Catalogs) setBiomes(defs []BiomeDef, raw []byte) error {
	byTier := make(map[int]BiomeDef, len(defs))
	for _, d := range defs {
		if len(d.Rarities) == 0 {
			return fmt.Errorf("biome %q: no rarities", d.Name)
		}
		if _, dup := byTier[d.Tier]; dup {
			return fmt.Errorf("biomes: duplicate tier %d", d.Tier)
		}
		byTier[d.Tier] = d
	}
	tiers := make([]int, 0, len(byTier))
	for t := range byTier {
		tiers = append(tiers, t)
	}
	sort.Ints(tiers)
	if len(tiers) == 0 || tiers[0] != 1 {
		return fmt.Errorf("biomes: tier 1 is required")
	}
	c.Biomes = BiomeCatalog{ByTier: byTier, Tiers: tiers, Digest: sha256Hex(raw)}
	return nil
}

func (c *Catalogs) setRecipes(defs []RecipeDef, raw []byte) error {
	byID := make(map[string]RecipeDef, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("recipes: empty id")
		}
		byID[d.ID] = d
	}
	c.Recipes = RecipeCatalog{ByID: byID, Digest: sha256Hex(raw)}
	return nil
}

func (c *Catalogs) setUpgrades(u upgradeFile, raw []byte) {
	c.Upgrades = UpgradeCatalog{
		Pole:      u.Pole,
		Lure:      u.Lure,
		Luck:      u.Luck,
		Inventory: u.Inventory,
		Digest:    sha256Hex(raw),
	}
}

func (c *Catalogs) setSkins(defs []SkinDef, raw []byte) error {
	byID := make(map[string]SkinDef, len(defs))
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("skins: empty id")
		}
		byID[d.ID] = d
	}
	c.Skins = SkinCatalog{ByID: byID, Digest: sha256Hex(raw)}
	return nil
}

func (c *Catalogs) applyOverrides(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := validateJSON(raw, schemaOverrides, filepath.Base(path)); err != nil {
		return err
	}
	var ov overrideFile
	if err := json.Unmarshal(raw, &ov); err != nil {
		return fmt.Errorf("overrides.json: %w", err)
	}
	if ov.Items != nil {
		if err := c.setItems(*ov.Items, raw); err != nil {
			return fmt.Errorf("overrides.json: %w", err)
		}
	}
	if ov.Biomes != nil {
		if err := c.setBiomes(*ov.Biomes, raw); err != nil {
			return fmt.Errorf("overrides.json: %w", err)
		}
	}
	if ov.Recipes != nil {
		if err := c.setRecipes(*ov.Recipes, raw); err != nil {
			return fmt.Errorf("overrides.json: %w", err)
		}
	}
	if ov.Upgrades != nil {
		c.setUpgrades(*ov.Upgrades, raw)
	}
	if ov.Skins != nil {
		if err := c.setSkins(*ov.Skins, raw); err != nil {
			return fmt.Errorf("overrides.json: %w", err)
		}
	}
	return nil
}

func (c *Catalogs) recomputeVersion() {
	h := sha256.New()
	for _, d := range []string{c.Items.Digest, c.Biomes.Digest, c.Recipes.Digest, c.Upgrades.Digest, c.Skins.Digest} {
		h.Write([]byte(d))
		h.Write([]byte{'\n'})
	}
	c.Version = hex.EncodeToString(h.Sum(nil))
}

// Biome returns the biome at the given tier, or the lowest tier when absent.
func (c *Catalogs) Biome(tier int) BiomeDef {
	if b, ok := c.Biomes.ByTier[tier]; ok {
		return b
	}
	return c.Biomes.ByTier[c.Biomes.Tiers[0]]
}

// NextBiomeTier returns the tier after cur following strict tier adjacency,
// or cur when already at the top.
func (c *Catalogs) NextBiomeTier(cur int) int {
	for i, t := range c.Biomes.Tiers {
		if t == cur && i+1 < len(c.Biomes.Tiers) {
			return c.Biomes.Tiers[i+1]
		}
	}
	return cur
}

// PrevBiomeTier returns the tier before cur, or cur when at the bottom.
func (c *Catalogs) PrevBiomeTier(cur int) int {
	for i, t := range c.Biomes.Tiers {
		if t == cur && i > 0 {
			return c.Biomes.Tiers[i-1]
		}
	}
	return cur
}

func loadValidated[T any](path, schema string) (T, []byte, error) {
	var out T
	raw, err := os.ReadFile(path)
	if err != nil {
		return out, nil, err
	}
	if err := validateJSON(raw, schema, filepath.Base(path)); err != nil {
		return out, nil, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return out, raw, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
