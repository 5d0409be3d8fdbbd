package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v2"

	"github.com/joeychilson/sitemapgen/sitemap"
	urlutil "github.com/joeychilson/sitemapgen/url"
	"github.com/joeychilson/sitemapgen/writer"
)

const (
	DefaultAddr      = ":8080"
	DefaultOutputDir = "."
	DefaultCacheTTL  = time.Hour

	DefaultRateLimitRequests = 100
	DefaultRateLimitWindow   = time.Minute
)

// ErrSiteNotFound is returned by ForSite for a name no site carries.
var ErrSiteNotFound = errors.New("site not found")

// Config represents the top-level configuration for sitemap generation.
type Config struct {
	Default DefaultConfig `yaml:"default"`
	Sites   []SiteConfig  `yaml:"sites"`
	Server  ServerConfig  `yaml:"server"`
}

// New returns a new Config with sensible defaults.
func New() *Config {
	skip := true
	return &Config{
		Default: DefaultConfig{
			Output: OutputConfig{
				Dir:           DefaultOutputDir,
				SkipUnchanged: &skip,
			},
		},
		Sites: []SiteConfig{},
		Server: ServerConfig{
			Addr: DefaultAddr,
			RateLimit: RateLimitConfig{
				Requests: DefaultRateLimitRequests,
				Window:   DefaultRateLimitWindow,
			},
		},
	}
}

// DefaultConfig contains settings applied to every site unless overridden.
type DefaultConfig struct {
	BaseURL       string           `yaml:"base_url,omitempty"`
	TrailingSlash *bool            `yaml:"trailing_slash,omitempty"`
	Pretty        bool             `yaml:"pretty,omitempty"`
	Timezone      string           `yaml:"timezone,omitempty"`
	Defaults      sitemap.Defaults `yaml:"defaults"`
	Output        OutputConfig     `yaml:"output"`
}

// SiteConfig names one sitemap set and the settings it overrides.
type SiteConfig struct {
	Name          string            `yaml:"name"`
	Input         string            `yaml:"input,omitempty"`
	BaseURL       string            `yaml:"base_url,omitempty"`
	TrailingSlash *bool             `yaml:"trailing_slash,omitempty"`
	Pretty        *bool             `yaml:"pretty,omitempty"`
	Timezone      string            `yaml:"timezone,omitempty"`
	Defaults      *sitemap.Defaults `yaml:"defaults,omitempty"`
	Output        *OutputConfig     `yaml:"output,omitempty"`
}

// OutputConfig defines where and how sitemap files are written.
type OutputConfig struct {
	Dir             string      `yaml:"dir,omitempty"`
	Gzip            *bool       `yaml:"gzip,omitempty"`
	SkipUnchanged   *bool       `yaml:"skip_unchanged,omitempty"`
	Concurrency     int         `yaml:"concurrency,omitempty"`
	WritesPerSecond float64     `yaml:"writes_per_second,omitempty"`
	Retry           RetryConfig `yaml:"retry"`
}

// GzipEnabled returns whether files are gzip compressed (default: false)
func (o *OutputConfig) GzipEnabled() bool {
	return o.Gzip != nil && *o.Gzip
}

// SkipUnchangedEnabled returns whether identical files are left untouched (default: false)
func (o *OutputConfig) SkipUnchangedEnabled() bool {
	return o.SkipUnchanged != nil && *o.SkipUnchanged
}

// GetDir returns the output directory with a default of the working directory
func (o *OutputConfig) GetDir() string {
	if o.Dir != "" {
		return o.Dir
	}
	return DefaultOutputDir
}

// RetryConfig controls retries of failed file writes.
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries,omitempty"`
	InitialDelay time.Duration `yaml:"initial_delay,omitempty"`
	MaxDelay     time.Duration `yaml:"max_delay,omitempty"`
	Multiplier   float64       `yaml:"multiplier,omitempty"`
}

// IsEnabled returns true if retries are configured
func (r *RetryConfig) IsEnabled() bool {
	return r.MaxRetries > 0
}

// GetMaxRetries returns the max retries with a default of 0 (no retries)
func (r *RetryConfig) GetMaxRetries() int {
	if r.MaxRetries < 0 {
		return 0
	}
	return r.MaxRetries
}

// GetInitialDelay returns the initial delay with a default of 100 milliseconds
func (r *RetryConfig) GetInitialDelay() time.Duration {
	if r.InitialDelay > 0 {
		return r.InitialDelay
	}
	return 100 * time.Millisecond
}

// GetMaxDelay returns the max delay with a default of 5 seconds
func (r *RetryConfig) GetMaxDelay() time.Duration {
	if r.MaxDelay > 0 {
		return r.MaxDelay
	}
	return 5 * time.Second
}

// GetMultiplier returns the backoff multiplier with a default of 2.0
func (r *RetryConfig) GetMultiplier() float64 {
	if r.Multiplier > 0 {
		return r.Multiplier
	}
	return 2.0
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string          `yaml:"addr,omitempty"`
	RateLimit      RateLimitConfig `yaml:"rate_limit"`
	Cache          CacheConfig     `yaml:"cache"`
	MaxConnections int             `yaml:"max_connections,omitempty"`
	MaxEntries     int             `yaml:"max_entries,omitempty"`
}

// GetAddr returns the listen address with a default of :8080
func (s *ServerConfig) GetAddr() string {
	if s.Addr != "" {
		return s.Addr
	}
	return DefaultAddr
}

// RateLimitConfig limits API requests per client over a window. Setting
// requests to 0 turns limiting off.
type RateLimitConfig struct {
	Requests int           `yaml:"requests,omitempty"`
	Window   time.Duration `yaml:"window,omitempty"`
}

// IsEnabled returns true if rate limiting is configured
func (r *RateLimitConfig) IsEnabled() bool {
	return r.Requests > 0 && r.Window > 0
}

// CacheConfig defines how long generated documents are kept.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl,omitempty"`
}

// GetTTL returns the document TTL with a default of one hour
func (c *CacheConfig) GetTTL() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return DefaultCacheTTL
}

// ResolvedConfig is the final merged configuration for a single site.
type ResolvedConfig struct {
	Name          string
	Input         string
	BaseURL       string
	TrailingSlash *bool
	Pretty        bool
	Location      *time.Location
	Defaults      sitemap.Defaults
	Output        OutputConfig
}

// SitemapOptions returns the generation options for the site.
func (r ResolvedConfig) SitemapOptions() sitemap.Options {
	return sitemap.Options{
		BaseURL:       r.BaseURL,
		TrailingSlash: sitemap.TrailingSlashFromBool(r.TrailingSlash),
		Defaults:      r.Defaults,
		Pretty:        r.Pretty,
		Location:      r.Location,
	}
}

// WriterOptions returns the output options for the site.
func (r ResolvedConfig) WriterOptions() writer.Options {
	return writer.Options{
		Gzip:            r.Output.GzipEnabled(),
		SkipUnchanged:   r.Output.SkipUnchangedEnabled(),
		Concurrency:     r.Output.Concurrency,
		WritesPerSecond: r.Output.WritesPerSecond,
	}
}

// ForSite returns the default settings merged with the overrides of the named
// site. An empty name returns the defaults alone.
func (c *Config) ForSite(name string) (ResolvedConfig, error) {
	resolved := ResolvedConfig{
		BaseURL:       c.Default.BaseURL,
		TrailingSlash: c.Default.TrailingSlash,
		Pretty:        c.Default.Pretty,
		Defaults:      c.Default.Defaults,
		Output:        c.Default.Output,
	}
	timezone := c.Default.Timezone

	if name != "" {
		site, ok := c.site(name)
		if !ok {
			return ResolvedConfig{}, fmt.Errorf("%w: %s", ErrSiteNotFound, name)
		}
		resolved.Name = site.Name
		resolved.Input = site.Input
		if site.BaseURL != "" {
			resolved.BaseURL = site.BaseURL
		}
		if site.TrailingSlash != nil {
			resolved.TrailingSlash = site.TrailingSlash
		}
		if site.Pretty != nil {
			resolved.Pretty = *site.Pretty
		}
		if site.Timezone != "" {
			timezone = site.Timezone
		}
		if site.Defaults != nil {
			resolved.Defaults = mergeDefaults(resolved.Defaults, *site.Defaults)
		}
		if site.Output != nil {
			resolved.Output = mergeOutput(resolved.Output, *site.Output)
		}
	}

	loc, err := loadLocation(timezone)
	if err != nil {
		return ResolvedConfig{}, err
	}
	resolved.Location = loc
	return resolved, nil
}

func (c *Config) site(name string) (SiteConfig, bool) {
	for _, site := range c.Sites {
		if site.Name == name {
			return site, true
		}
	}
	return SiteConfig{}, false
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := New()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for errors and conflicts
func (c *Config) Validate() error {
	if err := validateBaseURL("default", c.Default.BaseURL); err != nil {
		return err
	}
	if err := validateTimezone("default", c.Default.Timezone); err != nil {
		return err
	}
	if err := validateDefaults("default", c.Default.Defaults); err != nil {
		return err
	}
	if err := validateOutput("default", c.Default.Output); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Sites))
	for i, site := range c.Sites {
		if site.Name == "" {
			return fmt.Errorf("sites[%d]: name cannot be empty", i)
		}
		if seen[site.Name] {
			return fmt.Errorf("sites[%d]: duplicate site name %q", i, site.Name)
		}
		seen[site.Name] = true

		siteCtx := fmt.Sprintf("sites[%d](%s)", i, site.Name)

		if err := validateBaseURL(siteCtx, site.BaseURL); err != nil {
			return err
		}
		if err := validateTimezone(siteCtx, site.Timezone); err != nil {
			return err
		}
		if site.Defaults != nil {
			if err := validateDefaults(siteCtx, *site.Defaults); err != nil {
				return err
			}
		}
		if site.Output != nil {
			if err := validateOutput(siteCtx, *site.Output); err != nil {
				return err
			}
		}
	}

	return c.validateServer()
}

func (c *Config) validateServer() error {
	s := c.Server
	if s.RateLimit.Requests < 0 {
		return fmt.Errorf("server.rate_limit: 'requests' must be >= 0")
	}
	if s.RateLimit.Window < 0 {
		return fmt.Errorf("server.rate_limit: 'window' must be >= 0")
	}
	if s.RateLimit.Requests > 0 && s.RateLimit.Window == 0 {
		return fmt.Errorf("server.rate_limit: 'requests' requires 'window'")
	}
	if s.Cache.TTL < 0 {
		return fmt.Errorf("server.cache: 'ttl' must be >= 0")
	}
	if s.MaxConnections < 0 {
		return fmt.Errorf("server: 'max_connections' must be >= 0")
	}
	if s.MaxEntries < 0 {
		return fmt.Errorf("server: 'max_entries' must be >= 0")
	}
	return nil
}

func validateBaseURL(ctx, baseURL string) error {
	if baseURL == "" {
		return nil
	}
	if err := urlutil.ValidateBaseURL(baseURL); err != nil {
		return fmt.Errorf("%s: invalid 'base_url' %q: %w", ctx, baseURL, err)
	}
	return nil
}

func validateTimezone(ctx, name string) error {
	if _, err := loadLocation(name); err != nil {
		return fmt.Errorf("%s: %w", ctx, err)
	}
	return nil
}

func validateDefaults(ctx string, d sitemap.Defaults) error {
	e := sitemap.Entry{LastMod: d.LastMod, Priority: d.Priority, ChangeFreq: d.ChangeFreq}
	if err := e.Validate(); err != nil {
		return fmt.Errorf("%s.defaults: %w", ctx, err)
	}
	return nil
}

func validateOutput(ctx string, o OutputConfig) error {
	if o.Concurrency < 0 {
		return fmt.Errorf("%s.output: 'concurrency' must be >= 0", ctx)
	}
	if o.WritesPerSecond < 0 {
		return fmt.Errorf("%s.output: 'writes_per_second' must be >= 0", ctx)
	}
	if o.Retry.MaxRetries < 0 {
		return fmt.Errorf("%s.output.retry: 'max_retries' must be >= 0", ctx)
	}
	if o.Retry.InitialDelay < 0 || o.Retry.MaxDelay < 0 {
		return fmt.Errorf("%s.output.retry: delays must be >= 0", ctx)
	}
	if o.Retry.Multiplier < 0 {
		return fmt.Errorf("%s.output.retry: 'multiplier' must be >= 0", ctx)
	}
	return nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid 'timezone' %q: %w", name, err)
	}
	return loc, nil
}

func mergeDefaults(base, override sitemap.Defaults) sitemap.Defaults {
	result := base

	if override.LastMod.IsPresent() {
		result.LastMod = override.LastMod
	}

	if override.Priority.IsPresent() {
		result.Priority = override.Priority
	}

	if override.ChangeFreq.IsPresent() {
		result.ChangeFreq = override.ChangeFreq
	}

	return result
}

func mergeOutput(base, override OutputConfig) OutputConfig {
	result := base

	if override.Dir != "" {
		result.Dir = override.Dir
	}

	if override.Gzip != nil {
		result.Gzip = override.Gzip
	}

	if override.SkipUnchanged != nil {
		result.SkipUnchanged = override.SkipUnchanged
	}

	if override.Concurrency > 0 {
		result.Concurrency = override.Concurrency
	}

	if override.WritesPerSecond > 0 {
		result.WritesPerSecond = override.WritesPerSecond
	}

	if override.Retry.MaxRetries > 0 {
		result.Retry.MaxRetries = override.Retry.MaxRetries
	}

	if override.Retry.InitialDelay > 0 {
		result.Retry.InitialDelay = override.Retry.InitialDelay
	}

	if override.Retry.MaxDelay > 0 {
		result.Retry.MaxDelay = override.Retry.MaxDelay
	}

	if override.Retry.Multiplier > 0 {
		result.Retry.Multiplier = override.Retry.Multiplier
	}

	return result
}
