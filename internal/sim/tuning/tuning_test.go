package tuning

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	body := "tug_delay_min_ms: 1000\nmax_level: 10\nlisting_ttl_hours: 24\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tune, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if tune.TugDelayMinMs != 1000 || tune.MaxLevel != 10 {
		t.Fatalf("overrides not applied: %+v", tune)
	}
	// Keys absent from the file keep their defaults.
	if tune.TugDelayMaxMs != 12000 || tune.StoreSlots != 6 {
		t.Fatalf("defaults lost under overlay: %+v", tune)
	}
	if tune.ListingTTL() != 24*time.Hour {
		t.Fatalf("ListingTTL = %v, want 24h", tune.ListingTTL())
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	tune, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatalf("expected a read error for a missing file")
	}
	if tune.BaseGold != Defaults().BaseGold {
		t.Fatalf("missing file did not fall back to defaults")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("max_level: [not an int\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("malformed yaml accepted")
	}
}
