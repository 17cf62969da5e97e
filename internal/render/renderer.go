package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/alnah/go-bookdl/internal/fetch"
	"github.com/alnah/go-bookdl/internal/fileutil"
	"github.com/alnah/go-bookdl/internal/workdir"
)

// Defaults for Renderer.
const (
	DefaultTimeout  = 30 * time.Second
	DefaultAttempts = 2
	retryDelay      = 250 * time.Millisecond
)

// Artifact is the single-page PDF rendered for one page.
type Artifact struct {
	Index int
	Path  string
}

// Renderer renders pages one at a time against a shared Engine.
type Renderer struct {
	mu       sync.Mutex
	engine   Engine
	dir      *workdir.Dir
	timeout  time.Duration
	attempts uint
	logger   *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithTimeout sets the per-page deadline.
func WithTimeout(d time.Duration) Option {
	return func(r *Renderer) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithAttempts sets how many times a page is tried before giving up.
func WithAttempts(n uint) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.attempts = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRenderer creates a Renderer writing into dir.
func NewRenderer(engine Engine, dir *workdir.Dir, opts ...Option) *Renderer {
	r := &Renderer{
		engine:   engine,
		dir:      dir,
		timeout:  DefaultTimeout,
		attempts: DefaultAttempts,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render composes the page with the book assets, loads it in a fresh
// surface and captures a one-page PDF.
func (r *Renderer) Render(ctx context.Context, page fetch.FetchedPage, assets fetch.BookAssets) (Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	htmlPath := r.dir.RenderHTMLPath(page.Number)
	if err := fileutil.WriteFile(htmlPath, []byte(ComposePage(page.Content, assets)), 0o644); err != nil {
		return Artifact{}, &PageError{Index: page.Index, Err: fmt.Errorf("%w: %v", ErrCapture, err)}
	}
	target, err := fileURL(htmlPath)
	if err != nil {
		return Artifact{}, &PageError{Index: page.Index, Err: fmt.Errorf("%w: %v", ErrCapture, err)}
	}

	var pdf []byte
	err = retry.Do(
		func() error {
			var err error
			pdf, err = r.renderOnce(ctx, target)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(r.attempts),
		retry.Delay(retryDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			r.logger.Warn("retrying render", "page", page.Index, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return Artifact{}, &PageError{Index: page.Index, Err: err}
	}

	pdfPath := r.dir.RenderPDFPath(page.Number)
	if err := fileutil.WriteFile(pdfPath, pdf, 0o644); err != nil {
		return Artifact{}, &PageError{Index: page.Index, Err: fmt.Errorf("%w: %v", ErrCapture, err)}
	}
	r.logger.Debug("rendered page", "page", page.Index, "path", pdfPath)
	return Artifact{Index: page.Index, Path: pdfPath}, nil
}

// renderOnce runs one attempt under the per-page deadline.
func (r *Renderer) renderOnce(ctx context.Context, target string) ([]byte, error) {
	pctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	surface, err := r.engine.Open(pctx)
	if err != nil {
		return nil, classify(ctx, pctx, err, ErrEngineCrashed)
	}
	defer surface.Close()

	if err := surface.Load(pctx, target); err != nil {
		return nil, classify(ctx, pctx, err, ErrEngineCrashed)
	}
	if err := surface.AwaitSettled(pctx); err != nil {
		return nil, classify(ctx, pctx, err, ErrEngineCrashed)
	}
	pdf, err := surface.Capture(pctx)
	if err != nil {
		return nil, classify(ctx, pctx, err, ErrCapture)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		return nil, fmt.Errorf("%w: output is not a PDF", ErrCapture)
	}
	return pdf, nil
}

// classify maps a failure to a render sentinel. A page deadline that fired
// while the run is still alive is a timeout.
func classify(parent, page context.Context, err, fallback error) error {
	if errors.Is(err, ErrEngineCrashed) || errors.Is(err, ErrCapture) || errors.Is(err, ErrRenderTimeout) {
		return err
	}
	if parent.Err() == nil && errors.Is(page.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrRenderTimeout, err)
	}
	return fmt.Errorf("%w: %v", fallback, err)
}

func fileURL(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	if !strings.HasPrefix(u.Path, "/") {
		u.Path = "/" + u.Path
	}
	return u.String(), nil
}

// ComposePage builds the standalone document rendered for one page: the
// book's fonts and stylesheet in the head and the page fragment as body.
func ComposePage(content string, assets fetch.BookAssets) string {
	var b strings.Builder
	b.Grow(len(content) + len(assets.Fonts) + len(assets.Stylesheet) + 256)
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="UTF-8">`)
	b.WriteString(`<style>@page{size:A4;margin:0}html,body{margin:0;padding:0}</style>`)
	b.WriteString("<style>")
	b.WriteString(assets.Fonts)
	b.WriteString("</style><style>")
	b.WriteString(assets.Stylesheet)
	b.WriteString("</style></head><body>")
	b.WriteString(content)
	b.WriteString("</body></html>")
	return b.String()
}
