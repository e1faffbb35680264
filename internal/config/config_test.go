package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := Validate(DefaultConfig()); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad fetcher", func(c *Config) { c.Fetcher.Type = "ftp" }, "fetcher.type"},
		{"negative delay", func(c *Config) { c.Engine.RequestDelay = -time.Second }, "engine.request_delay"},
		{"negative threshold", func(c *Config) { c.Hierarchy.FamilyThreshold = -1 }, "hierarchy.family_threshold"},
		{"bad storage", func(c *Config) { c.Storage.Type = "mysql" }, "storage.type"},
		{"empty multi", func(c *Config) { c.Storage.Type = "multi" }, "storage.backends"},
		{"nested multi", func(c *Config) {
			c.Storage.Type = "multi"
			c.Storage.Backends = []string{"sqlite", "multi"}
		}, "storage.backends"},
		{"bad api url", func(c *Config) { c.Wiki.APIURL = "d6holocron.com/api.php" }, "wiki.api_url"},
		{"bad log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"plural ship type", func(c *Config) { c.Wiki.StarshipTypes["transports"] = "transports" }, "wiki.starship_types"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %q", tt.want, err.Error())
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "holocron.yaml")
	content := `
engine:
  request_delay: 1s
  limit: 5
hierarchy:
  family_threshold: 2
storage:
  type: jsonl
  path: ./out/records.jsonl
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Engine.RequestDelay != time.Second {
		t.Errorf("expected 1s delay, got %s", cfg.Engine.RequestDelay)
	}
	if cfg.Engine.Limit != 5 {
		t.Errorf("expected limit 5, got %d", cfg.Engine.Limit)
	}
	if cfg.Hierarchy.FamilyThreshold != 2 {
		t.Errorf("expected threshold 2, got %d", cfg.Hierarchy.FamilyThreshold)
	}
	if cfg.Storage.Type != "jsonl" {
		t.Errorf("expected jsonl storage, got %q", cfg.Storage.Type)
	}
	// Untouched sections keep defaults.
	if cfg.Wiki.SpeciesPage != "Races" {
		t.Errorf("expected default species page, got %q", cfg.Wiki.SpeciesPage)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("expected error for missing explicit config file")
	}
}

func TestShipType(t *testing.T) {
	w := DefaultConfig().Wiki
	tests := map[string]string{
		"starfighters": "starfighter",
		"transports":   "transport",
		"capital":      "capital",
		"walkers":      "other",
	}
	for key, want := range tests {
		if got := w.ShipType(key); got != want {
			t.Errorf("ShipType(%q): expected %q, got %q", key, want, got)
		}
	}
	for key := range w.StarshipPages {
		if !ShipTypes[w.ShipType(key)] {
			t.Errorf("category %q maps to unknown type %q", key, w.ShipType(key))
		}
	}
}
