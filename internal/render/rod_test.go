//go:build unix

package render

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alnah/go-bookdl/internal/fetch"
)

// hangingBrowser writes an executable that never announces a DevTools URL.
func hangingBrowser(t *testing.T) string {
	t.Helper()
	bin := filepath.Join(t.TempDir(), "chrome")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\nexec sleep 30\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return bin
}

func TestRodEngine_LaunchHonorsPageTimeout(t *testing.T) {
	t.Setenv("ROD_BROWSER_BIN", hangingBrowser(t))

	engine := NewRodEngine()
	t.Cleanup(func() { _ = engine.Close() })
	r := NewRenderer(engine, testDir(t), WithTimeout(300*time.Millisecond), WithAttempts(1))

	start := time.Now()
	_, err := r.Render(context.Background(), fetch.FetchedPage{Index: 0, Number: 1, Content: "<p>one</p>"}, testAssets)
	if !errors.Is(err, ErrRenderTimeout) {
		t.Fatalf("Render() error = %v, want ErrRenderTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Render() took %v with a hanging browser", elapsed)
	}
}

func TestRodEngine_OpenCanceledDuringLaunch(t *testing.T) {
	t.Setenv("ROD_BROWSER_BIN", hangingBrowser(t))

	engine := NewRodEngine()
	t.Cleanup(func() { _ = engine.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	start := time.Now()
	_, err := engine.Open(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Open() error = %v, want context.Canceled", err)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Open() took %v after cancel", elapsed)
	}
}
