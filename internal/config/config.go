package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for Holocron.
type Config struct {
	Wiki      WikiConfig      `mapstructure:"wiki"      yaml:"wiki"      toml:"wiki"`
	Engine    EngineConfig    `mapstructure:"engine"    yaml:"engine"    toml:"engine"`
	Fetcher   FetcherConfig   `mapstructure:"fetcher"   yaml:"fetcher"   toml:"fetcher"`
	Hierarchy HierarchyConfig `mapstructure:"hierarchy" yaml:"hierarchy" toml:"hierarchy"`
	Storage   StorageConfig   `mapstructure:"storage"   yaml:"storage"   toml:"storage"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"   toml:"logging"`
}

// WikiConfig points at the source MediaWiki installation.
type WikiConfig struct {
	APIURL      string `mapstructure:"api_url"      yaml:"api_url"      toml:"api_url"`
	BaseURL     string `mapstructure:"base_url"     yaml:"base_url"     toml:"base_url"`
	UserAgent   string `mapstructure:"user_agent"   yaml:"user_agent"   toml:"user_agent"`
	License     string `mapstructure:"license"      yaml:"license"      toml:"license"`
	SpeciesPage string `mapstructure:"species_page" yaml:"species_page" toml:"species_page"`

	// StarshipPages maps a category key to its index page.
	StarshipPages map[string]string `mapstructure:"starship_pages" yaml:"starship_pages" toml:"starship_pages"`

	// StarshipTypes maps a category key to the category stored on its
	// records (starfighter, transport, capital or other).
	StarshipTypes map[string]string `mapstructure:"starship_types" yaml:"starship_types" toml:"starship_types"`
}

// ShipTypes are the record categories a starship may carry.
var ShipTypes = map[string]bool{
	"starfighter": true, "transport": true, "capital": true, "other": true,
}

// ShipType returns the record category for a starship category key, or
// "other" when the key has no mapping.
func (w WikiConfig) ShipType(key string) string {
	if t, ok := w.StarshipTypes[key]; ok && t != "" {
		return t
	}
	return "other"
}

// EngineConfig controls the batch runner.
type EngineConfig struct {
	RequestDelay  time.Duration `mapstructure:"request_delay"  yaml:"request_delay"  toml:"request_delay"`
	Jitter        bool          `mapstructure:"jitter"         yaml:"jitter"         toml:"jitter"`
	Limit         int           `mapstructure:"limit"          yaml:"limit"          toml:"limit"`
	CheckpointDir string        `mapstructure:"checkpoint_dir" yaml:"checkpoint_dir" toml:"checkpoint_dir"`
	ArchiveDir    string        `mapstructure:"archive_dir"    yaml:"archive_dir"    toml:"archive_dir"`
	DryRun        bool          `mapstructure:"dry_run"        yaml:"dry_run"        toml:"dry_run"`
}

// FetcherConfig controls the page source.
type FetcherConfig struct {
	Type        string        `mapstructure:"type"          yaml:"type"          toml:"type"`
	Timeout     time.Duration `mapstructure:"timeout"       yaml:"timeout"       toml:"timeout"`
	MaxBodySize int64         `mapstructure:"max_body_size" yaml:"max_body_size" toml:"max_body_size"`
	Selector    string        `mapstructure:"selector"      yaml:"selector"      toml:"selector"`

	// Stealth patches headless fingerprints in browser mode. The
	// configured User-Agent is still sent.
	Stealth bool `mapstructure:"stealth" yaml:"stealth" toml:"stealth"`
}

// HierarchyConfig controls variant family detection.
type HierarchyConfig struct {
	// FamilyThreshold is the number of second-level headings a page must
	// exceed to be treated as a family page.
	FamilyThreshold int               `mapstructure:"family_threshold" yaml:"family_threshold" toml:"family_threshold"`
	ParentAliases   map[string]string `mapstructure:"parent_aliases"   yaml:"parent_aliases"   toml:"parent_aliases"`
}

// StorageConfig controls the catalog store.
type StorageConfig struct {
	Type          string   `mapstructure:"type"           yaml:"type"           toml:"type"`
	Path          string   `mapstructure:"path"           yaml:"path"           toml:"path"`
	MongoURI      string   `mapstructure:"mongo_uri"      yaml:"mongo_uri"      toml:"mongo_uri"`
	MongoDatabase string   `mapstructure:"mongo_database" yaml:"mongo_database" toml:"mongo_database"`
	Backends      []string `mapstructure:"backends"       yaml:"backends"       toml:"backends"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"  toml:"level"`
	Format string `mapstructure:"format" yaml:"format" toml:"format"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Wiki: WikiConfig{
			APIURL:      "http://d6holocron.com/wiki/api.php",
			BaseURL:     "http://d6holocron.com/wiki/",
			UserAgent:   "Star-Wars-d6-Species-Catalog/1.0 (+https://github.com/IshaanNene/Holocron)",
			License:     "CC-BY-SA 3.0",
			SpeciesPage: "Races",
			StarshipPages: map[string]string{
				"starfighters": "Starfighters",
				"transports":   "Space Transports",
				"capital":      "Capital Ships",
			},
			StarshipTypes: map[string]string{
				"starfighters": "starfighter",
				"transports":   "transport",
				"capital":      "capital",
			},
		},
		Engine: EngineConfig{
			RequestDelay:  400 * time.Millisecond,
			CheckpointDir: ".holocron/checkpoints",
			ArchiveDir:    "./data/raw",
		},
		Fetcher: FetcherConfig{
			Type:        "http",
			Timeout:     30 * time.Second,
			MaxBodySize: 10 * 1024 * 1024, // 10MB
			Selector:    "#mw-content-text",
		},
		Hierarchy: HierarchyConfig{
			FamilyThreshold: 1,
			ParentAliases: map[string]string{
				"TIE Fighter": "TIE Starfighter",
			},
		},
		Storage: StorageConfig{
			Type:          "sqlite",
			Path:          "./data/holocron.db",
			MongoURI:      "mongodb://localhost:27017",
			MongoDatabase: "holocron",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
