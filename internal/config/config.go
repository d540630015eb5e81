// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config loads the run configuration from defaults, the
// bibresolve.yaml file, BIBRESOLVE_* environment variables and bound
// command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/pdiddy/bibresolve/internal/cache"
	"github.com/pdiddy/bibresolve/internal/httputil"
	"github.com/pdiddy/bibresolve/internal/provider"
	"github.com/pdiddy/bibresolve/pkg/types"
)

const (
	// EnvPrefix prefixes environment overrides: BIBRESOLVE_CACHE_PATH sets
	// cache.path.
	EnvPrefix = "BIBRESOLVE"

	// FileName is the config file name searched without extension.
	FileName = "bibresolve"
)

// Default returns the configuration used when nothing is overridden.
func Default() types.Config {
	backoff := httputil.DefaultBackoff()
	return types.Config{
		Providers: types.ProvidersConfig{
			Order: []string{
				types.ProviderOpenAlex,
				types.ProviderCrossref,
				types.ProviderSemanticScholar,
				types.ProviderArxiv,
				types.ProviderScholar,
			},
			OpenAlex:        types.ProviderConfig{Enabled: true},
			Crossref:        types.ProviderConfig{Enabled: true},
			SemanticScholar: types.ProviderConfig{Enabled: true},
			Arxiv:           types.ProviderConfig{Enabled: true},
			Scholar:         types.ProviderConfig{Enabled: false},
		},
		Scholar: types.ScholarConfig{
			MinDelay:         provider.DefaultScholarMinDelay,
			MaxDelay:         provider.DefaultScholarMaxDelay,
			FastMinDelay:     provider.FastScholarMinDelay,
			FastMaxDelay:     provider.FastScholarMaxDelay,
			ChallengeTimeout: provider.DefaultChallengeTimeout,
		},
		Cache: types.CacheConfig{
			Backend:     types.CacheJSON,
			Path:        ".bibresolve-cache.json",
			TTL:         cache.DefaultTTL,
			NegativeTTL: cache.DefaultNegativeTTL,
		},
		Retry: types.RetryConfig{
			MaxAttempts: backoff.MaxAttempts,
			BaseDelay:   backoff.Base,
			Multiplier:  backoff.Multiplier,
			MaxDelay:    backoff.Cap,
		},
		Output: types.OutputConfig{
			Format:     types.FormatBibTeX,
			Unresolved: types.UnresolvedOmit,
		},
		HTTP: types.HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "bibresolve/0.1",
		},
		Log: types.LogConfig{
			Level:  "info",
			Format: "console",
		},
		Workers:             4,
		Enrich:              true,
		CleanFields:         true,
		SimilarityThreshold: provider.DefaultThreshold,
	}
}

// SetDefaults registers Default() with v. Every key must have a default so
// that environment variables reach nested fields on Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("providers.order", d.Providers.Order)
	for _, name := range d.Providers.Order {
		pc, _ := d.Providers.Lookup(name)
		v.SetDefault("providers."+name+".enabled", pc.Enabled)
		v.SetDefault("providers."+name+".base_url", pc.BaseURL)
		v.SetDefault("providers."+name+".api_key", pc.APIKey)
	}

	v.SetDefault("scholar.min_delay", d.Scholar.MinDelay)
	v.SetDefault("scholar.max_delay", d.Scholar.MaxDelay)
	v.SetDefault("scholar.fast", d.Scholar.Fast)
	v.SetDefault("scholar.fast_min_delay", d.Scholar.FastMinDelay)
	v.SetDefault("scholar.fast_max_delay", d.Scholar.FastMaxDelay)
	v.SetDefault("scholar.interactive", d.Scholar.Interactive)
	v.SetDefault("scholar.challenge_timeout", d.Scholar.ChallengeTimeout)
	v.SetDefault("scholar.browser", d.Scholar.Browser)

	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.path", d.Cache.Path)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.negative_ttl", d.Cache.NegativeTTL)
	v.SetDefault("cache.force_refresh", d.Cache.ForceRefresh)

	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.base_delay", d.Retry.BaseDelay)
	v.SetDefault("retry.multiplier", d.Retry.Multiplier)
	v.SetDefault("retry.max_delay", d.Retry.MaxDelay)

	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.unresolved", d.Output.Unresolved)
	v.SetDefault("output.per_entry_dir", d.Output.PerEntryDir)
	v.SetDefault("output.include_abstract", d.Output.IncludeAbstract)

	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.user_agent", d.HTTP.UserAgent)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("max_entries", d.MaxEntries)
	v.SetDefault("start_from", d.StartFrom)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("enrich", d.Enrich)
	v.SetDefault("clean_fields", d.CleanFields)
	v.SetDefault("similarity_threshold", d.SimilarityThreshold)
	v.SetDefault("contact_email", d.ContactEmail)
	v.SetDefault("metrics_file", d.MetricsFile)
}

// New returns a viper instance with defaults and environment overrides
// registered and the config file read. cfgFile selects an explicit file;
// when empty, bibresolve.yaml is looked up in the working directory and
// in ~/.config/bibresolve, and its absence is not an error.
func New(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", FileName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	return v, nil
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (types.Config, error) {
	var cfg types.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return types.Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return types.Config{}, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the rules that span several
// fields.
func Validate(cfg types.Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = describe(fe)
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}

	enabled := 0
	for _, name := range cfg.Providers.Order {
		if pc, ok := cfg.Providers.Lookup(name); ok && pc.Enabled {
			enabled++
		}
	}
	if enabled == 0 {
		return errors.New("invalid config: no provider in providers.order is enabled")
	}
	if cfg.Scholar.Browser && !cfg.Providers.Scholar.Enabled {
		return errors.New("invalid config: scholar.browser requires providers.scholar.enabled")
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	if fe.Param() != "" {
		return fmt.Sprintf("%s must satisfy %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value())
	}
	return fmt.Sprintf("%s must satisfy %s (got %v)", field, fe.Tag(), fe.Value())
}
