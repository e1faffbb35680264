package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and defaults.
// Priority (highest to lowest): env vars > config file > defaults.
// CLI flags are applied on top by the caller.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("HOLOCRON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("holocron")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".holocron"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env overrides resolve.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("wiki.api_url", cfg.Wiki.APIURL)
	v.SetDefault("wiki.base_url", cfg.Wiki.BaseURL)
	v.SetDefault("wiki.user_agent", cfg.Wiki.UserAgent)
	v.SetDefault("wiki.license", cfg.Wiki.License)
	v.SetDefault("wiki.species_page", cfg.Wiki.SpeciesPage)
	v.SetDefault("wiki.starship_pages", cfg.Wiki.StarshipPages)
	v.SetDefault("wiki.starship_types", cfg.Wiki.StarshipTypes)

	v.SetDefault("engine.request_delay", cfg.Engine.RequestDelay)
	v.SetDefault("engine.jitter", cfg.Engine.Jitter)
	v.SetDefault("engine.limit", cfg.Engine.Limit)
	v.SetDefault("engine.checkpoint_dir", cfg.Engine.CheckpointDir)
	v.SetDefault("engine.archive_dir", cfg.Engine.ArchiveDir)
	v.SetDefault("engine.dry_run", cfg.Engine.DryRun)

	v.SetDefault("fetcher.type", cfg.Fetcher.Type)
	v.SetDefault("fetcher.timeout", cfg.Fetcher.Timeout)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.selector", cfg.Fetcher.Selector)
	v.SetDefault("fetcher.stealth", cfg.Fetcher.Stealth)

	v.SetDefault("hierarchy.family_threshold", cfg.Hierarchy.FamilyThreshold)
	v.SetDefault("hierarchy.parent_aliases", cfg.Hierarchy.ParentAliases)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.path", cfg.Storage.Path)
	v.SetDefault("storage.mongo_uri", cfg.Storage.MongoURI)
	v.SetDefault("storage.mongo_database", cfg.Storage.MongoDatabase)
	v.SetDefault("storage.backends", cfg.Storage.Backends)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
}
