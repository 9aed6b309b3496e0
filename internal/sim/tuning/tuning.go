package tuning

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	// Fishing timing.
	TugDelayMinMs    int `yaml:"tug_delay_min_ms"`
	TugDelayMaxMs    int `yaml:"tug_delay_max_ms"`
	ResponseWindowMs int `yaml:"response_window_ms"`
	SafetyBufferMs   int `yaml:"safety_buffer_ms"`

	// Rewards and leveling.
	BaseGold     int     `yaml:"base_gold"`
	XPBase       int     `yaml:"xp_base"`
	XPGrowth     float64 `yaml:"xp_growth"`
	MaxLevel     int     `yaml:"max_level"`
	MaxLuckBonus float64 `yaml:"max_luck_bonus"`

	// Inventory.
	InventoryCapBase int `yaml:"inventory_cap_base"`
	InventoryCapMax  int `yaml:"inventory_cap_max"`
	InventoryCapStep int `yaml:"inventory_cap_step"`

	// Cooldowns (seconds).
	GlobalCooldownSec  int `yaml:"global_cooldown_sec"`
	PlayerCooldownSec  int `yaml:"player_cooldown_sec"`
	RefreshCooldownSec int `yaml:"refresh_cooldown_sec"`

	// Interaction sessions.
	SessionWindowSec   int `yaml:"session_window_sec"`
	SessionMaxRenewals int `yaml:"session_max_renewals"`

	// Store rotation and pricing.
	StoreSlots        int     `yaml:"store_slots"`
	PremiumSlots      int     `yaml:"premium_slots"`
	PremiumFloorTier  int     `yaml:"premium_floor_tier"`
	PremiumSurcharge  float64 `yaml:"premium_surcharge"`
	RotationWindowMin int     `yaml:"rotation_window_min"`
	PriceCap          float64 `yaml:"price_cap"`
	TierBonusStep     float64 `yaml:"tier_bonus_step"`
	LevelBonusStep    float64 `yaml:"level_bonus_step"`
	LevelBonusFloor   int     `yaml:"level_bonus_floor"`
	LevelBonusCap     float64 `yaml:"level_bonus_cap"`
	PrestigeBonusStep float64 `yaml:"prestige_bonus_step"`

	// Global events.
	EventDefaultMin int `yaml:"event_default_min"`
	EventMaxMin     int `yaml:"event_max_min"`
	DoubleMaxStack  int `yaml:"double_max_stack"`

	// Trading board.
	ListingTTLHours int `yaml:"listing_ttl_hours"`
	BoardMaxEntries int `yaml:"board_max_entries"`
}

func Defaults() Tuning {
	return Tuning{
		TugDelayMinMs:    3000,
		TugDelayMaxMs:    12000,
		ResponseWindowMs: 6000,
		SafetyBufferMs:   2000,

		BaseGold:     6,
		XPBase:       50,
		XPGrowth:     1.2,
		MaxLevel:     40,
		MaxLuckBonus: 2,

		InventoryCapBase: 15,
		InventoryCapMax:  40,
		InventoryCapStep: 5,

		GlobalCooldownSec:  5,
		PlayerCooldownSec:  15,
		RefreshCooldownSec: 8 * 60 * 60,

		SessionWindowSec:   25,
		SessionMaxRenewals: 2,

		StoreSlots:        6,
		PremiumSlots:      2,
		PremiumFloorTier:  3,
		PremiumSurcharge:  1.5,
		RotationWindowMin: 60,
		PriceCap:          2.5,
		TierBonusStep:     0.15,
		LevelBonusStep:    0.02,
		LevelBonusFloor:   5,
		LevelBonusCap:     0.6,
		PrestigeBonusStep: 0.25,

		EventDefaultMin: 15,
		EventMaxMin:     120,
		DoubleMaxStack:  3,

		ListingTTLHours: 48,
		BoardMaxEntries: 200,
	}
}

func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) TugDelayRange() (time.Duration, time.Duration) {
	return time.Duration(t.TugDelayMinMs) * time.Millisecond, time.Duration(t.TugDelayMaxMs) * time.Millisecond
}

func (t Tuning) ResponseWindow() time.Duration {
	return time.Duration(t.ResponseWindowMs) * time.Millisecond
}

func (t Tuning) SafetyBuffer() time.Duration {
	return time.Duration(t.SafetyBufferMs) * time.Millisecond
}

func (t Tuning) SessionWindow() time.Duration {
	return time.Duration(t.SessionWindowSec) * time.Second
}

func (t Tuning) RotationWindow() time.Duration {
	return time.Duration(t.RotationWindowMin) * time.Minute
}

func (t Tuning) RefreshCooldown() time.Duration {
	return time.Duration(t.RefreshCooldownSec) * time.Second
}

func (t Tuning) ListingTTL() time.Duration {
	return time.Duration(t.ListingTTLHours) * time.Hour
}
