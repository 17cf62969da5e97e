package main

// Notes:
// - runDoctor is tested with injected probes so results do not depend on
//   the machine running the tests.
// - runDoctorCmd --json is run once against the real system and only its
//   structure is checked, the same way a user would script it.

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/alnah/go-bookdl/internal/cookiestore"
)

// fakeBrowser returns a path that exists on disk.
func fakeBrowser(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chromium")
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func readyProbes(t *testing.T) doctorProbes {
	browser := fakeBrowser(t)
	tmp := t.TempDir()
	return doctorProbes{
		lookChrome:   func() (string, bool) { return browser, true },
		chromeVer:    func(string) (string, error) { return "Chromium 130.0", nil },
		firefoxStore: func() (string, error) { return "/home/u/.mozilla/firefox/p/cookies.sqlite", nil },
		tempDir:      func() string { return tmp },
		dockerEnv:    filepath.Join(tmp, ".dockerenv"),
	}
}

// ---------------------------------------------------------------------------
// TestRunDoctor - Status from probe results
// ---------------------------------------------------------------------------

func TestRunDoctor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		vars       map[string]string
		mutate     func(p *doctorProbes)
		wantStatus string
		wantIssue  string
	}{
		{
			name:       "all present",
			wantStatus: statusReady,
		},
		{
			name:       "no browser",
			mutate:     func(p *doctorProbes) { p.lookChrome = func() (string, bool) { return "", false } },
			wantStatus: statusErrors,
			wantIssue:  "Chrome/Chromium not found",
		},
		{
			name:       "browser override missing",
			vars:       map[string]string{"ROD_BROWSER_BIN": "/nonexistent/chrome"},
			wantStatus: statusErrors,
			wantIssue:  "Chrome not found at /nonexistent/chrome",
		},
		{
			name:       "version unavailable",
			mutate:     func(p *doctorProbes) { p.chromeVer = func(string) (string, error) { return "", errors.New("exit 1") } },
			wantStatus: statusWarnings,
			wantIssue:  "Could not get Chrome version",
		},
		{
			name: "no firefox profile",
			mutate: func(p *doctorProbes) {
				p.firefoxStore = func() (string, error) { return "", cookiestore.ErrNoProfile }
			},
			wantStatus: statusWarnings,
			wantIssue:  "No Firefox profile found",
		},
		{
			name:       "container without no-sandbox",
			vars:       map[string]string{"BOOKDL_CONTAINER": "1"},
			wantStatus: statusWarnings,
			wantIssue:  "ROD_NO_SANDBOX",
		},
		{
			name:       "container with no-sandbox",
			vars:       map[string]string{"BOOKDL_CONTAINER": "1", "ROD_NO_SANDBOX": "1"},
			wantStatus: statusReady,
		},
		{
			name:       "temp dir not writable",
			mutate:     func(p *doctorProbes) { p.tempDir = func() string { return "/nonexistent/tmp" } },
			wantStatus: statusErrors,
			wantIssue:  "Temp directory not writable",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			probes := readyProbes(t)
			if tt.mutate != nil {
				tt.mutate(&probes)
			}

			r := runDoctor(mapEnv(tt.vars), probes)

			if r.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q (warnings %v, errors %v)", r.Status, tt.wantStatus, r.Warnings, r.Errors)
			}
			issues := strings.Join(append(r.Warnings, r.Errors...), "\n")
			if tt.wantIssue != "" && !strings.Contains(issues, tt.wantIssue) {
				t.Errorf("issues = %q, want substring %q", issues, tt.wantIssue)
			}
			if r.Env.OS != runtime.GOOS {
				t.Errorf("Env.OS = %q, want %q", r.Env.OS, runtime.GOOS)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// TestPrintDoctorResult - Human-readable report
// ---------------------------------------------------------------------------

func TestPrintDoctorResult(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	r := runDoctor(mapEnv(nil), readyProbes(t))
	printDoctorResult(&buf, r)

	out := buf.String()
	for _, want := range []string{
		"bookdl doctor",
		"[OK] Version: Chromium 130.0",
		"[OK] Cookie store: /home/u/.mozilla/firefox/p/cookies.sqlite",
		"[OK] Temp directory: writable",
		"Status: Ready to download",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

// ---------------------------------------------------------------------------
// TestRunDoctorCmd_JSONOutput - Verifies JSON output format and structure
// ---------------------------------------------------------------------------

func TestRunDoctorCmd_JSONOutput(t *testing.T) {
	t.Parallel()

	var stdout, stderr bytes.Buffer
	env := &Environment{Stdout: &stdout, Stderr: &stderr, Getenv: mapEnv(nil)}

	exitCode := runDoctorCmd([]string{"--json"}, env)

	var result doctorResult
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		t.Fatalf("Invalid JSON output: %v\nOutput was: %s", err, stdout.String())
	}
	if result.Env.OS == "" || result.Env.Arch == "" {
		t.Error("JSON should contain OS and Arch")
	}

	valid := map[string]bool{statusReady: true, statusWarnings: true, statusErrors: true}
	if !valid[result.Status] {
		t.Errorf("Invalid status %q", result.Status)
	}
	if (result.Status == statusErrors) != (exitCode == ExitGeneral) {
		t.Errorf("exit code %d inconsistent with status %q", exitCode, result.Status)
	}
}
