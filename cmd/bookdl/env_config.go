package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/go-bookdl/internal/config"
)

// envConfig holds configuration from environment variables.
type envConfig struct {
	ConfigPath string        // BOOKDL_CONFIG: config file name or path
	Username   string        // BOOKDL_USERNAME
	Password   string        // BOOKDL_PASSWORD
	OutputDir  string        // BOOKDL_OUTPUT_DIR
	Workers    int           // BOOKDL_WORKERS
	Timeout    time.Duration // BOOKDL_TIMEOUT: per-page render deadline
	Format     string        // BOOKDL_FORMAT: pdf or html
}

// knownEnvVars lists valid BOOKDL_* environment variables.
var knownEnvVars = map[string]bool{
	"BOOKDL_CONFIG":     true,
	"BOOKDL_USERNAME":   true,
	"BOOKDL_PASSWORD":   true,
	"BOOKDL_OUTPUT_DIR": true,
	"BOOKDL_WORKERS":    true,
	"BOOKDL_TIMEOUT":    true,
	"BOOKDL_FORMAT":     true,
	"BOOKDL_CONTAINER":  true,
}

// loadEnvConfig reads the BOOKDL_* variables. Malformed numbers and
// durations are reported to w and ignored.
func loadEnvConfig(getenv func(string) string, w io.Writer) *envConfig {
	cfg := &envConfig{
		ConfigPath: getenv("BOOKDL_CONFIG"),
		Username:   getenv("BOOKDL_USERNAME"),
		Password:   getenv("BOOKDL_PASSWORD"),
		OutputDir:  getenv("BOOKDL_OUTPUT_DIR"),
		Format:     getenv("BOOKDL_FORMAT"),
	}

	if v := getenv("BOOKDL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Timeout = d
		} else {
			fmt.Fprintf(w, "warning: ignoring BOOKDL_TIMEOUT=%q (want a duration like 45s)\n", v)
		}
	}
	if v := getenv("BOOKDL_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		} else {
			fmt.Fprintf(w, "warning: ignoring BOOKDL_WORKERS=%q (want a positive integer)\n", v)
		}
	}
	return cfg
}

// warnUnknownEnvVars warns about unrecognized BOOKDL_* variables, which
// are usually typos.
func warnUnknownEnvVars(environ []string, w io.Writer) {
	for _, env := range environ {
		if !strings.HasPrefix(env, "BOOKDL_") {
			continue
		}
		name, _, _ := strings.Cut(env, "=")
		if !knownEnvVars[name] {
			fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
		}
	}
}

// applyEnvConfig fills config values the file left empty.
// Precedence: flags > env > config file > defaults; flags are merged later.
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.OutputDir != "" && cfg.Output.Dir == "" {
		cfg.Output.Dir = env.OutputDir
	}
	if env.Format != "" && cfg.Output.Format == "" {
		cfg.Output.Format = env.Format
	}
	if env.Workers > 0 && cfg.Fetch.Workers == 0 {
		cfg.Fetch.Workers = env.Workers
	}
	if env.Timeout > 0 && cfg.Render.Timeout == "" {
		cfg.Render.Timeout = env.Timeout.String()
	}
}
