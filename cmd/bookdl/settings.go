package main

import (
	"io"
	"log/slog"

	"github.com/alnah/go-bookdl"
	"github.com/alnah/go-bookdl/internal/config"
)

// settings is the merged configuration of one command: config file, then
// environment, then flags.
type settings struct {
	cfg         *config.Config
	env         *envConfig
	logger      *slog.Logger
	quiet       bool
	stderr      io.Writer
	interactive bool
}

// loadSettings loads the config named by --config, BOOKDL_CONFIG or the
// default search, and applies the environment. An explicitly named config
// must exist; the default one is optional.
func loadSettings(f commonFlags, env *Environment) (*settings, error) {
	warnUnknownEnvVars(env.Environ(), env.Stderr)
	ec := loadEnvConfig(env.Getenv, env.Stderr)

	name := f.config
	if name == "" {
		name = ec.ConfigPath
	}
	var cfg *config.Config
	var err error
	if name != "" {
		cfg, err = config.LoadConfig(name)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return nil, err
	}
	applyEnvConfig(ec, cfg)

	return &settings{
		cfg:         cfg,
		env:         ec,
		logger:      newLogger(env.Stderr, f.quiet, f.verbose),
		quiet:       f.quiet,
		stderr:      env.Stderr,
		interactive: env.Interactive && !f.quiet && !f.verbose,
	}, nil
}

// mergeBookFlags applies the flags that were set; Validate checks them.
func (s *settings) mergeBookFlags(f bookFlags) {
	if f.output != "" {
		s.cfg.Output.Dir = f.output
	}
	if f.format != "" {
		s.cfg.Output.Format = f.format
	}
	if f.noCover {
		s.cfg.Output.NoCover = true
	}
	if f.infoPage {
		s.cfg.Output.InfoPage = true
	}
	if f.timeout != "" {
		s.cfg.Render.Timeout = f.timeout
	}
}

// progress returns the progress display; it stays silent unless stderr is
// an interactive terminal and neither -q nor -v is set.
func (s *settings) progress() *barProgress {
	return newBarProgress(s.stderr, s.interactive)
}

// options translates the configuration into library options. Zero values
// keep the library defaults.
func (s *settings) options(progress bookdl.Progress) []bookdl.Option {
	c := s.cfg
	opts := []bookdl.Option{
		bookdl.WithLogger(s.logger),
		bookdl.WithSocketEndpoint(c.Platform.SocketEndpoint),
		bookdl.WithUserAgent(c.Platform.UserAgent),
		bookdl.WithFirefoxStore(c.Platform.FirefoxProfile),
		bookdl.WithWorkers(c.Fetch.Workers),
		bookdl.WithTemplateDir(c.Output.TemplateDir),
	}
	if progress != nil {
		opts = append(opts, bookdl.WithProgress(progress))
	}

	if p, ok := platformOverride(c.Platform); ok {
		opts = append(opts, bookdl.WithPlatform(p))
	}
	if i, ok := institutionOverride(c.Institution); ok {
		opts = append(opts, bookdl.WithInstitution(i))
	}

	delay, maxDelay, fetchTimeout := c.FetchDurations()
	opts = append(opts,
		bookdl.WithFetchRetry(uint(max(c.Fetch.Attempts, 0)), delay, maxDelay),
		bookdl.WithFetchTimeout(fetchTimeout),
	)

	renderTimeout, idle, settle := c.RenderDurations()
	opts = append(opts,
		bookdl.WithRenderTimeout(renderTimeout),
		bookdl.WithRenderAttempts(uint(max(c.Render.Attempts, 0))),
	)
	if idle > 0 || settle > 0 || c.Render.SkipFontWait {
		opts = append(opts, bookdl.WithSettle(!c.Render.SkipFontWait, idle, settle))
	}
	return opts
}

// platformOverride fills the default platform with the configured fields.
func platformOverride(c config.PlatformConfig) (bookdl.Platform, bool) {
	if c.BaseURL == "" && c.LoginPath == "" && c.CookieDomain == "" {
		return bookdl.Platform{}, false
	}
	p := bookdl.DefaultPlatform()
	if c.BaseURL != "" {
		p.BaseURL = c.BaseURL
	}
	if c.LoginPath != "" {
		p.LoginPath = c.LoginPath
	}
	if c.CookieDomain != "" {
		p.CookieDomain = c.CookieDomain
	}
	return p, true
}

// institutionOverride fills the default institution with the configured
// fields.
func institutionOverride(c config.InstitutionConfig) (bookdl.Institution, bool) {
	if c == (config.InstitutionConfig{}) {
		return bookdl.Institution{}, false
	}
	i := bookdl.DefaultInstitution()
	if c.GateURL != "" {
		i.GateURL = c.GateURL
	}
	if c.ProxyURL != "" {
		i.ProxyURL = c.ProxyURL
	}
	if c.PlatformURL != "" {
		i.PlatformURL = c.PlatformURL
	}
	if c.Institute != "" {
		i.Institute = c.Institute
	}
	if c.CallingSystem != "" {
		i.CallingSystem = c.CallingSystem
	}
	return i, true
}
