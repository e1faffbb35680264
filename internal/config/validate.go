package config

import (
	"fmt"
	"net/url"
)

var validStorageTypes = map[string]bool{
	"sqlite": true, "mongo": true, "jsonl": true, "multi": true,
}

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if err := ValidateURL(cfg.Wiki.APIURL); err != nil {
		return fmt.Errorf("wiki.api_url: %w", err)
	}
	if err := ValidateURL(cfg.Wiki.BaseURL); err != nil {
		return fmt.Errorf("wiki.base_url: %w", err)
	}
	if cfg.Wiki.UserAgent == "" {
		return fmt.Errorf("wiki.user_agent must not be empty")
	}

	for key, t := range cfg.Wiki.StarshipTypes {
		if !ShipTypes[t] {
			return fmt.Errorf("wiki.starship_types.%s must be starfighter, transport, capital or other, got %q", key, t)
		}
	}

	if cfg.Engine.RequestDelay < 0 {
		return fmt.Errorf("engine.request_delay must be >= 0")
	}
	if cfg.Engine.Limit < 0 {
		return fmt.Errorf("engine.limit must be >= 0, got %d", cfg.Engine.Limit)
	}

	switch cfg.Fetcher.Type {
	case "http", "browser", "archive":
	default:
		return fmt.Errorf("fetcher.type must be 'http', 'browser' or 'archive', got %q", cfg.Fetcher.Type)
	}
	if cfg.Fetcher.Timeout <= 0 {
		return fmt.Errorf("fetcher.timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.Type == "archive" && cfg.Engine.ArchiveDir == "" {
		return fmt.Errorf("engine.archive_dir is required when fetcher.type is 'archive'")
	}

	if cfg.Hierarchy.FamilyThreshold < 0 {
		return fmt.Errorf("hierarchy.family_threshold must be >= 0, got %d", cfg.Hierarchy.FamilyThreshold)
	}

	if !validStorageTypes[cfg.Storage.Type] {
		return fmt.Errorf("storage.type %q is not supported (valid: sqlite, mongo, jsonl, multi)", cfg.Storage.Type)
	}
	if cfg.Storage.Type == "multi" {
		if len(cfg.Storage.Backends) == 0 {
			return fmt.Errorf("storage.backends must list at least one backend for type 'multi'")
		}
		for _, b := range cfg.Storage.Backends {
			if b == "multi" || !validStorageTypes[b] {
				return fmt.Errorf("storage.backends: unsupported backend %q", b)
			}
		}
	}
	if cfg.Storage.Type == "mongo" && cfg.Storage.MongoURI == "" {
		return fmt.Errorf("storage.mongo_uri is required for type 'mongo'")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}

// ValidateURL checks that a URL string is an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
