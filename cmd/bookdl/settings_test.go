package main

// Notes:
// - options() returns opaque closures; its effect on the pipeline is covered
//   by the bookdl package. Here we check the config translation helpers and
//   flag precedence.

import (
	"bytes"
	"testing"

	"github.com/alnah/go-bookdl"
	"github.com/alnah/go-bookdl/internal/config"
)

// ---------------------------------------------------------------------------
// TestPlatformOverride - Partial endpoint overrides
// ---------------------------------------------------------------------------

func TestPlatformOverride(t *testing.T) {
	t.Parallel()

	if _, ok := platformOverride(config.PlatformConfig{UserAgent: "ua"}); ok {
		t.Error("non-endpoint fields should not override the platform")
	}

	p, ok := platformOverride(config.PlatformConfig{BaseURL: "https://mirror.example"})
	if !ok {
		t.Fatal("BaseURL should override the platform")
	}
	def := bookdl.DefaultPlatform()
	if p.BaseURL != "https://mirror.example" {
		t.Errorf("BaseURL = %q", p.BaseURL)
	}
	if p.LoginPath != def.LoginPath || p.CookieDomain != def.CookieDomain {
		t.Errorf("unset fields should keep defaults, got %+v", p)
	}
}

// ---------------------------------------------------------------------------
// TestInstitutionOverride - Partial gateway overrides
// ---------------------------------------------------------------------------

func TestInstitutionOverride(t *testing.T) {
	t.Parallel()

	if _, ok := institutionOverride(config.InstitutionConfig{}); ok {
		t.Error("empty config should not override the institution")
	}

	i, ok := institutionOverride(config.InstitutionConfig{Institute: "LIB01"})
	if !ok {
		t.Fatal("Institute should override the institution")
	}
	def := bookdl.DefaultInstitution()
	if i.Institute != "LIB01" {
		t.Errorf("Institute = %q, want LIB01", i.Institute)
	}
	if i.GateURL != def.GateURL || i.CallingSystem != def.CallingSystem {
		t.Errorf("unset fields should keep defaults, got %+v", i)
	}
}

// ---------------------------------------------------------------------------
// TestMergeBookFlags - Flags override config only when set
// ---------------------------------------------------------------------------

func TestMergeBookFlags(t *testing.T) {
	t.Parallel()

	newSettings := func() *settings {
		cfg := config.DefaultConfig()
		cfg.Output.Dir = "config-dir"
		cfg.Output.Format = "pdf"
		cfg.Render.Timeout = "10s"
		return &settings{cfg: cfg}
	}

	t.Run("unset flags keep config", func(t *testing.T) {
		t.Parallel()
		s := newSettings()
		s.mergeBookFlags(bookFlags{})
		if s.cfg.Output.Dir != "config-dir" || s.cfg.Output.Format != "pdf" || s.cfg.Render.Timeout != "10s" {
			t.Errorf("config changed: %+v %+v", s.cfg.Output, s.cfg.Render)
		}
	})

	t.Run("set flags win", func(t *testing.T) {
		t.Parallel()
		s := newSettings()
		s.mergeBookFlags(bookFlags{output: "flag-dir", format: "html", noCover: true, infoPage: true, timeout: "1m"})
		o := s.cfg.Output
		if o.Dir != "flag-dir" || o.Format != "html" || !o.NoCover || !o.InfoPage || s.cfg.Render.Timeout != "1m" {
			t.Errorf("flags not applied: %+v %+v", o, s.cfg.Render)
		}
	})
}

// ---------------------------------------------------------------------------
// TestOptions - Optional settings add options only when configured
// ---------------------------------------------------------------------------

func TestOptions(t *testing.T) {
	t.Parallel()

	base := &settings{cfg: config.DefaultConfig(), logger: newLogger(&bytes.Buffer{}, false, false)}
	n := len(base.options(nil))

	full := &settings{cfg: config.DefaultConfig(), logger: base.logger}
	full.cfg.Platform.BaseURL = "https://mirror.example"
	full.cfg.Institution.Institute = "LIB01"
	full.cfg.Render.IdleTime = "1s"
	got := len(full.options(newBarProgress(&bytes.Buffer{}, false)))

	// progress, platform, institution and settle
	if got != n+4 {
		t.Errorf("options with overrides = %d, want %d", got, n+4)
	}
}

// ---------------------------------------------------------------------------
// TestNewLogger - Level follows -q and -v
// ---------------------------------------------------------------------------

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		quiet, verbose bool
		logInfo        bool
		logDebug       bool
	}{
		{"default", false, false, true, false},
		{"quiet", true, false, false, false},
		{"verbose", false, true, true, true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var buf bytes.Buffer
			l := newLogger(&buf, tt.quiet, tt.verbose)
			l.Info("info-line")
			l.Debug("debug-line")
			if got := bytes.Contains(buf.Bytes(), []byte("info-line")); got != tt.logInfo {
				t.Errorf("info logged = %v, want %v", got, tt.logInfo)
			}
			if got := bytes.Contains(buf.Bytes(), []byte("debug-line")); got != tt.logDebug {
				t.Errorf("debug logged = %v, want %v", got, tt.logDebug)
			}
		})
	}
}
