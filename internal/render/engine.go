// Package render turns fetched page fragments into single-page PDFs by
// loading them in a headless browser.
package render

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors.
var (
	ErrRenderTimeout = errors.New("page render timed out")
	ErrEngineCrashed = errors.New("render engine unavailable")
	ErrCapture       = errors.New("page capture failed")
)

// PageError reports the page a render failure belongs to.
type PageError struct {
	Index int
	Err   error
}

func (e *PageError) Error() string { return fmt.Sprintf("page %d: %v", e.Index, e.Err) }
func (e *PageError) Unwrap() error { return e.Err }

// Engine is a long-lived rendering backend. Each Open yields an isolated
// surface; Close releases the backend itself.
type Engine interface {
	Open(ctx context.Context) (Surface, error)
	Close() error
}

// Surface is one isolated browsing context holding a single document.
type Surface interface {
	Load(ctx context.Context, url string) error
	AwaitSettled(ctx context.Context) error
	Capture(ctx context.Context) ([]byte, error)
	Close() error
}

// Settle controls when a loaded page is considered fully rendered.
type Settle struct {
	// WaitFonts waits for document.fonts.ready after the load event.
	WaitFonts bool
	// IdleTime, when positive, additionally waits until no network request
	// has been in flight for that long.
	IdleTime time.Duration
	// Delay is a fixed pause after the other conditions.
	Delay time.Duration
}

// DefaultSettle waits for fonts and a short network quiet period.
var DefaultSettle = Settle{WaitFonts: true, IdleTime: 200 * time.Millisecond}

// A4 paper in inches.
const (
	a4WidthInches  = 8.27
	a4HeightInches = 11.69
)
