package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/alnah/go-bookdl/internal/process"
)

// Compile-time interface checks
var (
	_ Engine  = (*RodEngine)(nil)
	_ Surface = (*rodSurface)(nil)
)

// RodEngine drives one headless Chrome through go-rod. The browser is
// launched on the first Open and reused; every surface lives in its own
// incognito context.
type RodEngine struct {
	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
	settle   Settle
	logger   *slog.Logger
}

// EngineOption configures a RodEngine.
type EngineOption func(*RodEngine)

// WithSettle sets the settle heuristic.
func WithSettle(s Settle) EngineOption {
	return func(e *RodEngine) { e.settle = s }
}

// WithEngineLogger sets the logger.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *RodEngine) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewRodEngine creates an engine. Nothing is launched until Open.
func NewRodEngine(opts ...EngineOption) *RodEngine {
	e := &RodEngine{
		settle: DefaultSettle,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ensureBrowser lazily launches and connects to the browser. ctx bounds
// the launch only; the connection outlives it. Callers hold e.mu.
func (e *RodEngine) ensureBrowser(ctx context.Context) error {
	if e.browser != nil {
		return nil
	}

	l := launcher.New().Context(ctx)

	// Use pre-installed browser if specified (Docker/containerized environments)
	if bin := os.Getenv("ROD_BROWSER_BIN"); bin != "" {
		l = l.Bin(bin)
	}

	// NoSandbox required for CI and containerized environments
	if os.Getenv("CI") == "true" || os.Getenv("ROD_BROWSER_BIN") != "" || os.Getenv("ROD_NO_SANDBOX") != "" {
		l = l.NoSandbox(true)
	}
	u, err := l.Launch()
	if err != nil {
		e.kill(l)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("launching browser: %w", ctxErr)
		}
		return fmt.Errorf("%w: launching browser: %v", ErrEngineCrashed, err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		e.kill(l)
		return fmt.Errorf("%w: connecting to browser: %v", ErrEngineCrashed, err)
	}
	e.launcher = l
	e.browser = browser
	e.logger.Debug("browser launched", "pid", l.PID())
	return nil
}

// Open creates a fresh incognito page.
func (e *RodEngine) Open(ctx context.Context) (Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ensureBrowser(ctx); err != nil {
		return nil, err
	}

	incognito, err := e.browser.Context(ctx).Incognito()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("creating incognito context: %w", ctxErr)
		}
		// The browser is gone; drop it so the next Open relaunches.
		_ = e.shutdown()
		return nil, fmt.Errorf("%w: %v", ErrEngineCrashed, err)
	}
	// Detach from ctx so Close still works once the page deadline fired.
	incognito = incognito.Context(context.Background())
	page, err := incognito.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("creating page: %w", ctxErr)
		}
		return nil, fmt.Errorf("%w: creating page: %v", ErrEngineCrashed, err)
	}
	return &rodSurface{context: incognito, page: page.Context(context.Background()), settle: e.settle}, nil
}

// Close shuts the browser down and kills its process tree.
func (e *RodEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shutdown()
}

func (e *RodEngine) shutdown() error {
	var err error
	if e.browser != nil {
		err = e.browser.Close()
		e.browser = nil
	}
	if e.launcher != nil {
		e.kill(e.launcher)
		e.launcher = nil
	}
	return err
}

func (e *RodEngine) kill(l *launcher.Launcher) {
	if l.PID() == 0 {
		return
	}
	process.KillTree(l.PID())
	l.Kill()
	l.Cleanup()
}

// rodSurface is one incognito page.
type rodSurface struct {
	context *rod.Browser
	page    *rod.Page
	settle  Settle
}

func (s *rodSurface) Load(ctx context.Context, url string) error {
	if err := s.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("loading %s: %w", url, err)
	}
	return nil
}

// AwaitSettled waits for the load event, then web fonts, then a quiet
// network, then the fixed delay.
func (s *rodSurface) AwaitSettled(ctx context.Context) error {
	p := s.page.Context(ctx)
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("waiting for load: %w", err)
	}
	if s.settle.WaitFonts {
		if _, err := p.Eval(`() => document.fonts.ready.then(() => true)`); err != nil {
			return fmt.Errorf("waiting for fonts: %w", err)
		}
	}
	if s.settle.IdleTime > 0 {
		p.WaitRequestIdle(s.settle.IdleTime, nil, nil, nil)()
	}
	if s.settle.Delay > 0 {
		select {
		case <-time.After(s.settle.Delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

// Capture prints the first page only, on A4 with no margins.
func (s *rodSurface) Capture(ctx context.Context) ([]byte, error) {
	reader, err := s.page.Context(ctx).PDF(&proto.PagePrintToPDF{
		PaperWidth:      floatPtr(a4WidthInches),
		PaperHeight:     floatPtr(a4HeightInches),
		MarginTop:       floatPtr(0),
		MarginBottom:    floatPtr(0),
		MarginLeft:      floatPtr(0),
		MarginRight:     floatPtr(0),
		PrintBackground: true,
		PageRanges:      "1",
	})
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading PDF stream: %w", err)
	}
	return data, nil
}

func (s *rodSurface) Close() error {
	_ = s.page.Close()
	return s.context.Close()
}

// floatPtr returns a pointer to a float64 value.
func floatPtr(v float64) *float64 {
	return &v
}
