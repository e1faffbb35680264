package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/Holocron/internal/config"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "holocron",
		Short: "Holocron — Star Wars d6 species and starship catalog builder",
		Long: `Holocron reads species and starship pages from the d6 Holocron wiki and
keeps a normalized, searchable catalog of them.

Each run lists an index page, fetches every linked article, extracts
its stat block, normalizes dice codes and merges the result into the
store. Re-runs update records in place and keep their slugs.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(speciesCmd())
	rootCmd.AddCommand(starshipsCmd())
	rootCmd.AddCommand(repairCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Holocron %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	var asTOML bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if asTOML {
				data, err := toml.Marshal(cfg)
				if err != nil {
					return fmt.Errorf("encode config: %w", err)
				}
				_, err = os.Stdout.Write(data)
				return err
			}

			fmt.Printf("Wiki:\n")
			fmt.Printf("  API URL:           %s\n", cfg.Wiki.APIURL)
			fmt.Printf("  Base URL:          %s\n", cfg.Wiki.BaseURL)
			fmt.Printf("  User Agent:        %s\n", cfg.Wiki.UserAgent)
			fmt.Printf("  Species Index:     %s\n", cfg.Wiki.SpeciesPage)
			for _, key := range sortedKeys(cfg.Wiki.StarshipPages) {
				fmt.Printf("  Ships (%s): %s -> %s\n", key, cfg.Wiki.StarshipPages[key], cfg.Wiki.ShipType(key))
			}
			fmt.Printf("\nEngine:\n")
			fmt.Printf("  Request Delay:     %s\n", cfg.Engine.RequestDelay)
			fmt.Printf("  Jitter:            %v\n", cfg.Engine.Jitter)
			fmt.Printf("  Limit:             %d\n", cfg.Engine.Limit)
			fmt.Printf("  Checkpoint Dir:    %s\n", cfg.Engine.CheckpointDir)
			fmt.Printf("  Archive Dir:       %s\n", cfg.Engine.ArchiveDir)
			fmt.Printf("\nFetcher:\n")
			fmt.Printf("  Type:              %s\n", cfg.Fetcher.Type)
			fmt.Printf("  Timeout:           %s\n", cfg.Fetcher.Timeout)
			fmt.Printf("  Max Body Size:     %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Printf("\nHierarchy:\n")
			fmt.Printf("  Family Threshold:  %d\n", cfg.Hierarchy.FamilyThreshold)
			fmt.Printf("  Parent Aliases:    %d configured\n", len(cfg.Hierarchy.ParentAliases))
			fmt.Printf("\nStorage:\n")
			fmt.Printf("  Type:              %s\n", cfg.Storage.Type)
			fmt.Printf("  Path:              %s\n", cfg.Storage.Path)
			if len(cfg.Storage.Backends) > 0 {
				fmt.Printf("  Backends:          %s\n", strings.Join(cfg.Storage.Backends, ", "))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asTOML, "toml", false, "dump the effective config as TOML")
	return cmd
}

// loadConfig reads and validates the config, applying overrides on top.
func loadConfig(overrides func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if overrides != nil {
		overrides(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setupLogger creates a structured logger from the logging config.
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
