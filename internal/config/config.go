package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-bookdl/internal/fileutil"
	"github.com/alnah/go-bookdl/internal/yamlutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// DefaultName is the config file looked up when none is given.
const DefaultName = "bookdl"

// Field limits.
const (
	MaxURLLength  = 2048
	MaxCodeLength = 50
	MaxPathLength = 4096
	MaxWorkers    = 32
	MaxAttempts   = 10
)

// Config holds the persistent run configuration. Credentials are never
// read from or written to a file.
type Config struct {
	Platform    PlatformConfig    `yaml:"platform"`
	Institution InstitutionConfig `yaml:"institution"`
	Fetch       FetchConfig       `yaml:"fetch"`
	Render      RenderConfig      `yaml:"render"`
	Output      OutputConfig      `yaml:"output"`
}

// PlatformConfig overrides the reading platform endpoints.
type PlatformConfig struct {
	BaseURL        string `yaml:"baseURL"`
	LoginPath      string `yaml:"loginPath"`
	CookieDomain   string `yaml:"cookieDomain"`
	SocketEndpoint string `yaml:"socketEndpoint"`
	UserAgent      string `yaml:"userAgent"`
	FirefoxProfile string `yaml:"firefoxProfile"` // cookies.sqlite path, empty = auto-detect
}

// InstitutionConfig overrides the institutional login endpoints.
type InstitutionConfig struct {
	GateURL       string `yaml:"gateURL"`
	ProxyURL      string `yaml:"proxyURL"`
	PlatformURL   string `yaml:"platformURL"`
	Institute     string `yaml:"institute"`
	CallingSystem string `yaml:"callingSystem"`
}

// FetchConfig tunes page downloads. Durations use Go syntax ("500ms").
type FetchConfig struct {
	Workers  int    `yaml:"workers"` // 0 = derived from GOMAXPROCS
	Attempts int    `yaml:"attempts"`
	Delay    string `yaml:"delay"`
	MaxDelay string `yaml:"maxDelay"`
	Timeout  string `yaml:"timeout"` // per socket reply
}

// RenderConfig tunes the headless browser.
type RenderConfig struct {
	Timeout      string `yaml:"timeout"` // per page
	Attempts     int    `yaml:"attempts"`
	IdleTime     string `yaml:"idleTime"`
	SettleDelay  string `yaml:"settleDelay"`
	SkipFontWait bool   `yaml:"skipFontWait"`
}

// OutputConfig defines where and how the book is written.
type OutputConfig struct {
	Dir         string `yaml:"dir"`    // empty = current directory
	Format      string `yaml:"format"` // "pdf" or "html"
	Keep        bool   `yaml:"keep"`
	NoCover     bool   `yaml:"noCover"`
	InfoPage    bool   `yaml:"infoPage"`
	TemplateDir string `yaml:"templateDir"` // info page template overrides
}

// FetchDurations returns the parsed fetch durations; zero means unset.
// Values are assumed valid (see Validate).
func (c *Config) FetchDurations() (delay, maxDelay, timeout time.Duration) {
	delay, _ = parseDuration(c.Fetch.Delay)
	maxDelay, _ = parseDuration(c.Fetch.MaxDelay)
	timeout, _ = parseDuration(c.Fetch.Timeout)
	return delay, maxDelay, timeout
}

// RenderDurations returns the parsed render durations; zero means unset.
func (c *Config) RenderDurations() (timeout, idle, settle time.Duration) {
	timeout, _ = parseDuration(c.Render.Timeout)
	idle, _ = parseDuration(c.Render.IdleTime)
	settle, _ = parseDuration(c.Render.SettleDelay)
	return timeout, idle, settle
}

// Validate checks value ranges, formats and field lengths. Called by
// LoadConfig, available to callers building a Config by hand.
func (c *Config) Validate() error {
	urls := []struct{ name, value string }{
		{"platform.baseURL", c.Platform.BaseURL},
		{"platform.socketEndpoint", c.Platform.SocketEndpoint},
		{"institution.gateURL", c.Institution.GateURL},
		{"institution.proxyURL", c.Institution.ProxyURL},
		{"institution.platformURL", c.Institution.PlatformURL},
	}
	for _, u := range urls {
		if err := validateURL(u.name, u.value); err != nil {
			return err
		}
	}

	fields := []struct {
		name, value string
		max         int
	}{
		{"platform.loginPath", c.Platform.LoginPath, MaxURLLength},
		{"platform.cookieDomain", c.Platform.CookieDomain, MaxURLLength},
		{"platform.userAgent", c.Platform.UserAgent, MaxURLLength},
		{"platform.firefoxProfile", c.Platform.FirefoxProfile, MaxPathLength},
		{"institution.institute", c.Institution.Institute, MaxCodeLength},
		{"institution.callingSystem", c.Institution.CallingSystem, MaxCodeLength},
		{"output.dir", c.Output.Dir, MaxPathLength},
		{"output.templateDir", c.Output.TemplateDir, MaxPathLength},
	}
	for _, f := range fields {
		if err := validateFieldLength(f.name, f.value, f.max); err != nil {
			return err
		}
	}

	if c.Fetch.Workers < 0 || c.Fetch.Workers > MaxWorkers {
		return fmt.Errorf("%w: fetch.workers must be between 0 and %d, got %d", ErrInvalidValue, MaxWorkers, c.Fetch.Workers)
	}
	if c.Fetch.Attempts < 0 || c.Fetch.Attempts > MaxAttempts {
		return fmt.Errorf("%w: fetch.attempts must be between 0 and %d, got %d", ErrInvalidValue, MaxAttempts, c.Fetch.Attempts)
	}
	if c.Render.Attempts < 0 || c.Render.Attempts > MaxAttempts {
		return fmt.Errorf("%w: render.attempts must be between 0 and %d, got %d", ErrInvalidValue, MaxAttempts, c.Render.Attempts)
	}

	durations := []struct{ name, value string }{
		{"fetch.delay", c.Fetch.Delay},
		{"fetch.maxDelay", c.Fetch.MaxDelay},
		{"fetch.timeout", c.Fetch.Timeout},
		{"render.timeout", c.Render.Timeout},
		{"render.idleTime", c.Render.IdleTime},
		{"render.settleDelay", c.Render.SettleDelay},
	}
	for _, d := range durations {
		if _, err := parseDuration(d.value); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidValue, d.name, err)
		}
	}

	switch strings.ToLower(c.Output.Format) {
	case "", "pdf", "html":
	default:
		return fmt.Errorf("%w: output.format must be pdf or html, got %q", ErrInvalidValue, c.Output.Format)
	}
	return nil
}

// parseDuration accepts "" as zero and rejects negative values.
func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %s", s)
	}
	return d, nil
}

func validateURL(fieldName, value string) error {
	if value == "" {
		return nil
	}
	if err := validateFieldLength(fieldName, value, MaxURLLength); err != nil {
		return err
	}
	u, err := url.Parse(value)
	if err != nil || !fileutil.IsURL(value) || u.Host == "" {
		return fmt.Errorf("%w: %s must be an http(s) URL, got %q", ErrInvalidValue, fieldName, value)
	}
	return nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// DefaultConfig returns an empty configuration; every zero value means
// "use the library default".
func DefaultConfig() *Config {
	return &Config{}
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if isFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) // #nosec G304 -- config path is user-provided
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yamlutil.UnmarshalStrict(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigParse, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadDefault loads the DefaultName config when one exists and returns
// DefaultConfig otherwise. Parse and validation errors are still reported.
func LoadDefault() (*Config, error) {
	cfg, err := LoadConfig(DefaultName)
	if errors.Is(err, ErrConfigNotFound) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

// SearchPaths lists the locations tried for a config name, in order.
func SearchPaths(name string) []string {
	extensions := []string{".yaml", ".yml"}
	paths := make([]string, 0, len(extensions)*2)
	for _, ext := range extensions {
		paths = append(paths, name+ext)
	}
	if userConfigDir, err := os.UserConfigDir(); err == nil {
		for _, ext := range extensions {
			paths = append(paths, filepath.Join(userConfigDir, "go-bookdl", name+ext))
		}
	}
	return paths
}

// isFilePath returns true if the string looks like a file path.
func isFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}

// resolveConfigPath searches for a config file by name: current directory
// first, then ~/.config/go-bookdl/, .yaml before .yml.
func resolveConfigPath(name string) (string, error) {
	tried := SearchPaths(name)
	for _, p := range tried {
		if fileutil.FileExists(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(tried, ", "))
}
