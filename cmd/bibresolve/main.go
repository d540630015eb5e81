// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the bibresolve CLI.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pdiddy/bibresolve/internal/config"
	"github.com/pdiddy/bibresolve/internal/logging"
	"github.com/pdiddy/bibresolve/internal/secrets"
	"github.com/pdiddy/bibresolve/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// rootCmd is the base command for the bibresolve CLI.
var rootCmd = &cobra.Command{
	Use:   "bibresolve",
	Short: "Resolve free-text references into BibTeX",
	Long: `bibresolve turns the reference list of a converted paper into a citation
file. Each reference is looked up in a local cache and then in metadata
sources (OpenAlex, Crossref, Semantic Scholar, arXiv and, when enabled, a
scholarly search engine), normalized, given a stable citation key and written as
BibTeX or CSL-YAML in source order.

Configuration comes from bibresolve.yaml, BIBRESOLVE_* environment
variables and flags, in increasing order of precedence. Credentials can be
placed in .secrets/ (contact-email, semantic-scholar-api-key).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./bibresolve.yaml or ~/.config/bibresolve/bibresolve.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: console or json")
	rootCmd.PersistentFlags().String("cache", "", "cache file path")
	rootCmd.PersistentFlags().String("cache-backend", "", "cache backend: json, sqlite or memory")
}

// flagKeys maps command-line flags to configuration keys. Flags override
// the config file and the environment only when given explicitly.
var flagKeys = map[string]string{
	"log-level":        "log.level",
	"log-format":       "log.format",
	"cache":            "cache.path",
	"cache-backend":    "cache.backend",
	"providers":        "providers.order",
	"scholar":          "providers.scholar.enabled",
	"fast":             "scholar.fast",
	"interactive":      "scholar.interactive",
	"browser":          "scholar.browser",
	"max":              "max_entries",
	"start-from":       "start_from",
	"workers":          "workers",
	"force-refresh":    "cache.force_refresh",
	"enrich":           "enrich",
	"clean":            "clean_fields",
	"threshold":        "similarity_threshold",
	"format":           "output.format",
	"unresolved":       "output.unresolved",
	"per-entry-dir":    "output.per_entry_dir",
	"include-abstract": "output.include_abstract",
	"email":            "contact_email",
	"metrics-file":     "metrics_file",
}

// loadConfig builds the run configuration for cmd: .env, config file,
// environment, bound flags and finally .secrets/ for unset credentials.
func loadConfig(cmd *cobra.Command) (types.Config, zerolog.Logger, error) {
	_ = godotenv.Load()

	cfgFile, _ := cmd.Flags().GetString("config")
	v, err := config.New(cfgFile)
	if err != nil {
		return types.Config{}, zerolog.Nop(), err
	}
	for flag, key := range flagKeys {
		if f := cmd.Flags().Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return types.Config{}, zerolog.Nop(), fmt.Errorf("binding --%s: %w", flag, err)
			}
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return types.Config{}, zerolog.Nop(), err
	}
	log := logging.New(cfg.Log, os.Stderr)
	if used := v.ConfigFileUsed(); used != "" {
		log.Debug().Str("path", used).Msg("using config file")
	}

	s, err := secrets.Load(secrets.DefaultDir, log)
	if err != nil {
		return types.Config{}, log, err
	}
	if len(s) > 0 {
		keys := make([]string, 0, len(s))
		for k := range s {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		log.Debug().Strs("keys", keys).Msg("loaded secrets")
	}
	secrets.Apply(&cfg, s)
	if err := config.Validate(cfg); err != nil {
		return types.Config{}, log, err
	}
	return cfg, log, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
