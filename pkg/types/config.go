package types

import "time"

// Provider names accepted in ProvidersConfig.Order.
const (
	ProviderOpenAlex        = "openalex"
	ProviderCrossref        = "crossref"
	ProviderSemanticScholar = "semantic_scholar"
	ProviderScholar         = "scholar"
	ProviderArxiv           = "arxiv"
)

// HTTPConfig holds shared HTTP settings used by every network provider.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `mapstructure:"timeout" json:"timeout" yaml:"timeout" validate:"gt=0"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "bibresolve/0.1").
	UserAgent string `mapstructure:"user_agent" json:"user_agent" yaml:"user_agent" validate:"required"`
}

// ProviderConfig holds per-provider switches.
type ProviderConfig struct {
	Enabled bool `mapstructure:"enabled" json:"enabled" yaml:"enabled"`

	// BaseURL overrides the provider's public endpoint.
	BaseURL string `mapstructure:"base_url" json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`

	// APIKey is sent by providers that accept one (Semantic Scholar).
	APIKey string `mapstructure:"api_key" json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// ProvidersConfig selects and orders the lookup sources.
type ProvidersConfig struct {
	// Order is the priority order in which providers are attempted.
	Order []string `mapstructure:"order" json:"order" yaml:"order" validate:"min=1,unique,dive,oneof=openalex crossref semantic_scholar arxiv scholar"`

	OpenAlex        ProviderConfig `mapstructure:"openalex" json:"openalex" yaml:"openalex"`
	Crossref        ProviderConfig `mapstructure:"crossref" json:"crossref" yaml:"crossref"`
	SemanticScholar ProviderConfig `mapstructure:"semantic_scholar" json:"semantic_scholar" yaml:"semantic_scholar"`
	Arxiv           ProviderConfig `mapstructure:"arxiv" json:"arxiv" yaml:"arxiv"`
	Scholar         ProviderConfig `mapstructure:"scholar" json:"scholar" yaml:"scholar"`
}

// Lookup returns the settings for the named provider.
func (p ProvidersConfig) Lookup(name string) (ProviderConfig, bool) {
	switch name {
	case ProviderOpenAlex:
		return p.OpenAlex, true
	case ProviderCrossref:
		return p.Crossref, true
	case ProviderSemanticScholar:
		return p.SemanticScholar, true
	case ProviderArxiv:
		return p.Arxiv, true
	case ProviderScholar:
		return p.Scholar, true
	}
	return ProviderConfig{}, false
}

// ScholarConfig controls the scholarly-search provider's pacing and
// challenge handling.
type ScholarConfig struct {
	// MinDelay and MaxDelay bound the randomized pause between two
	// consecutive queries in the default (slow) profile.
	MinDelay time.Duration `mapstructure:"min_delay" json:"min_delay" yaml:"min_delay" validate:"gte=0"`
	MaxDelay time.Duration `mapstructure:"max_delay" json:"max_delay" yaml:"max_delay" validate:"gtefield=MinDelay"`

	// Fast selects the alternate, shorter delay profile.
	Fast         bool          `mapstructure:"fast" json:"fast" yaml:"fast"`
	FastMinDelay time.Duration `mapstructure:"fast_min_delay" json:"fast_min_delay" yaml:"fast_min_delay" validate:"gte=0"`
	FastMaxDelay time.Duration `mapstructure:"fast_max_delay" json:"fast_max_delay" yaml:"fast_max_delay" validate:"gtefield=FastMinDelay"`

	// Interactive pauses on an anti-automation challenge until the user
	// resolves it. Unattended runs report the entry as blocked instead.
	Interactive bool `mapstructure:"interactive" json:"interactive" yaml:"interactive"`

	// ChallengeTimeout bounds how long an interactive pause may last.
	ChallengeTimeout time.Duration `mapstructure:"challenge_timeout" json:"challenge_timeout" yaml:"challenge_timeout" validate:"gte=0"`

	// Browser fetches result pages through a headless Chrome session
	// instead of plain HTTP.
	Browser bool `mapstructure:"browser" json:"browser" yaml:"browser"`
}

// Cache backends.
const (
	CacheJSON   = "json"
	CacheSQLite = "sqlite"
	CacheMemory = "memory"
)

// CacheConfig locates and tunes the resolution cache.
type CacheConfig struct {
	Backend string `mapstructure:"backend" json:"backend" yaml:"backend" validate:"oneof=json sqlite memory"`

	// Path is the cache file; ignored by the memory backend.
	Path string `mapstructure:"path" json:"path" yaml:"path" validate:"required_unless=Backend memory"`

	// TTL applies to found records, NegativeTTL to not-found results.
	// Zero means the entry never expires.
	TTL         time.Duration `mapstructure:"ttl" json:"ttl" yaml:"ttl" validate:"gte=0"`
	NegativeTTL time.Duration `mapstructure:"negative_ttl" json:"negative_ttl" yaml:"negative_ttl" validate:"gte=0"`

	// ForceRefresh bypasses cache reads. Results are still written.
	ForceRefresh bool `mapstructure:"force_refresh" json:"force_refresh" yaml:"force_refresh"`
}

// RetryConfig is the backoff policy applied to rate-limited and timed-out
// provider calls.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" json:"max_attempts" yaml:"max_attempts" validate:"gte=1,lte=10"`
	BaseDelay   time.Duration `mapstructure:"base_delay" json:"base_delay" yaml:"base_delay" validate:"gte=0"`
	Multiplier  float64       `mapstructure:"multiplier" json:"multiplier" yaml:"multiplier" validate:"gte=1"`
	MaxDelay    time.Duration `mapstructure:"max_delay" json:"max_delay" yaml:"max_delay" validate:"gtefield=BaseDelay"`
}

// Output formats and unresolved-entry policies.
const (
	FormatBibTeX  = "bibtex"
	FormatCSLYAML = "csl-yaml"

	UnresolvedOmit        = "omit"
	UnresolvedPlaceholder = "placeholder"
)

// OutputConfig controls citation file generation.
type OutputConfig struct {
	Format string `mapstructure:"format" json:"format" yaml:"format" validate:"oneof=bibtex csl-yaml"`

	// Unresolved is either "omit" or "placeholder".
	Unresolved string `mapstructure:"unresolved" json:"unresolved" yaml:"unresolved" validate:"oneof=omit placeholder"`

	// PerEntryDir, when set, also receives one file per resolved entry.
	PerEntryDir string `mapstructure:"per_entry_dir" json:"per_entry_dir,omitempty" yaml:"per_entry_dir,omitempty"`

	IncludeAbstract bool `mapstructure:"include_abstract" json:"include_abstract" yaml:"include_abstract"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level  string `mapstructure:"level" json:"level" yaml:"level" validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" json:"format" yaml:"format" validate:"oneof=console json"`
}

// Config is the complete run configuration.
type Config struct {
	Providers ProvidersConfig `mapstructure:"providers" json:"providers" yaml:"providers"`
	Scholar   ScholarConfig   `mapstructure:"scholar" json:"scholar" yaml:"scholar"`
	Cache     CacheConfig     `mapstructure:"cache" json:"cache" yaml:"cache"`
	Retry     RetryConfig     `mapstructure:"retry" json:"retry" yaml:"retry"`
	Output    OutputConfig    `mapstructure:"output" json:"output" yaml:"output"`
	HTTP      HTTPConfig      `mapstructure:"http" json:"http" yaml:"http"`
	Log       LogConfig       `mapstructure:"log" json:"log" yaml:"log"`

	// MaxEntries caps the entries processed in one run; 0 means no cap.
	MaxEntries int `mapstructure:"max_entries" json:"max_entries" yaml:"max_entries" validate:"gte=0"`

	// StartFrom is the index of the first entry to process.
	StartFrom int `mapstructure:"start_from" json:"start_from" yaml:"start_from" validate:"gte=0"`

	// Workers bounds concurrent resolutions.
	Workers int `mapstructure:"workers" json:"workers" yaml:"workers" validate:"gte=1,lte=64"`

	Enrich      bool `mapstructure:"enrich" json:"enrich" yaml:"enrich"`
	CleanFields bool `mapstructure:"clean_fields" json:"clean_fields" yaml:"clean_fields"`

	// SimilarityThreshold is the minimum title similarity (0..1) for a
	// search candidate to be accepted.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" json:"similarity_threshold" yaml:"similarity_threshold" validate:"gt=0,lte=1"`

	// ContactEmail is sent to APIs that offer a polite pool.
	ContactEmail string `mapstructure:"contact_email" json:"contact_email,omitempty" yaml:"contact_email,omitempty" validate:"omitempty,email"`

	// MetricsFile, when set, receives Prometheus text-format counters at
	// the end of the run.
	MetricsFile string `mapstructure:"metrics_file" json:"metrics_file,omitempty" yaml:"metrics_file,omitempty"`
}
