// Package fetch downloads a book's pages, shared assets and cover, with
// bounded concurrency and retries, and persists them to the working
// directory.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-bookdl/internal/metadata"
	"github.com/alnah/go-bookdl/internal/socketio"
	"github.com/alnah/go-bookdl/internal/workdir"
)

// Sentinel errors.
var (
	ErrPageFetchFailed = errors.New("page fetch failed")
	ErrPageDenied      = errors.New("platform refused the page")
	ErrAssets          = errors.New("fetching book assets failed")
	ErrCover           = errors.New("fetching cover failed")
	ErrNetwork         = errors.New("page service unreachable")
)

// PageError reports the page a fetch failure belongs to.
type PageError struct {
	Index int
	Err   error
}

func (e *PageError) Error() string { return fmt.Sprintf("page %d: %v", e.Index, e.Err) }
func (e *PageError) Unwrap() error { return e.Err }

// FetchedPage is the raw content of one page.
type FetchedPage struct {
	Index   int
	Number  int
	Content string
	Path    string
}

// BookAssets are fetched once per book and shared by every page.
type BookAssets struct {
	Stylesheet string
	Fonts      string
}

// Conn is one connection to the page service.
type Conn interface {
	Page(ctx context.Context, bookID, number int) (string, error)
	Stylesheet(ctx context.Context, bookID int) (string, error)
	Fonts(ctx context.Context, bookID int) (string, error)
	Close() error
}

// Dialer opens connections to the page service.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// Retry configures the backoff applied to transient failures.
type Retry struct {
	Attempts uint
	Delay    time.Duration
	MaxDelay time.Duration
}

// DefaultRetry is applied when no policy is configured.
var DefaultRetry = Retry{Attempts: 3, Delay: 500 * time.Millisecond, MaxDelay: 5 * time.Second}

// Fetcher downloads pages through a pool of connections.
type Fetcher struct {
	pool    *connPool
	dir     *workdir.Dir
	workers int
	retry   Retry
	http    *resty.Client
	cover   time.Duration
	logger  *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithWorkers sets the number of concurrent page fetches, and so the
// number of connections.
func WithWorkers(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.workers = n
		}
	}
}

// WithRetry sets the retry policy. Zero fields keep their defaults.
func WithRetry(r Retry) Option {
	return func(f *Fetcher) {
		if r.Attempts > 0 {
			f.retry.Attempts = r.Attempts
		}
		if r.Delay > 0 {
			f.retry.Delay = r.Delay
		}
		if r.MaxDelay > 0 {
			f.retry.MaxDelay = r.MaxDelay
		}
	}
}

// WithHTTPClient sets the client used for the cover download.
func WithHTTPClient(c *resty.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.http = c
		}
	}
}

// WithCoverTimeout bounds the cover download.
func WithCoverTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.cover = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// DefaultCoverTimeout bounds the cover download when no timeout is set.
const DefaultCoverTimeout = 10 * time.Second

// New creates a Fetcher persisting into dir.
func New(dialer Dialer, dir *workdir.Dir, opts ...Option) *Fetcher {
	f := &Fetcher{
		dir:     dir,
		workers: 1,
		retry:   DefaultRetry,
		http:    resty.New(),
		cover:   DefaultCoverTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.pool = newConnPool(f.workers, dialer.Dial)
	return f
}

// Workers returns the configured concurrency.
func (f *Fetcher) Workers() int { return f.workers }

// Close closes every pooled connection.
func (f *Fetcher) Close() error {
	return f.pool.Close()
}

// FetchPage downloads and persists one page, retrying transient failures.
func (f *Fetcher) FetchPage(ctx context.Context, loc metadata.PageLocator) (FetchedPage, error) {
	var content string
	err := f.withConn(ctx, "page", loc.Index, func(c Conn) error {
		var err error
		content, err = c.Page(ctx, loc.BookID, loc.Number)
		return err
	})
	if err != nil {
		if ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", ErrPageFetchFailed, err)
		}
		return FetchedPage{}, &PageError{Index: loc.Index, Err: err}
	}

	path, err := f.dir.WritePage(loc.Number, content)
	if err != nil {
		return FetchedPage{}, &PageError{Index: loc.Index, Err: fmt.Errorf("%w: %w", ErrPageFetchFailed, err)}
	}
	f.logger.Debug("fetched page", "page", loc.Index, "number", loc.Number, "bytes", len(content))
	return FetchedPage{Index: loc.Index, Number: loc.Number, Content: content, Path: path}, nil
}

// FetchAll fetches every locator with bounded concurrency and hands each
// page to deliver as soon as it is persisted. deliver is called from worker
// goroutines. The first failure cancels the remaining fetches.
func (f *Fetcher) FetchAll(ctx context.Context, locs []metadata.PageLocator, deliver func(FetchedPage)) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)

	for _, loc := range locs {
		loc := loc
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			page, err := f.FetchPage(gctx, loc)
			if err != nil {
				return err
			}
			deliver(page)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// FetchAssets downloads the book stylesheet and fonts and persists them.
func (f *Fetcher) FetchAssets(ctx context.Context, bookID int) (BookAssets, error) {
	var assets BookAssets
	err := f.withConn(ctx, "assets", -1, func(c Conn) error {
		fonts, err := c.Fonts(ctx, bookID)
		if err != nil {
			return err
		}
		style, err := c.Stylesheet(ctx, bookID)
		if err != nil {
			return err
		}
		assets = BookAssets{Stylesheet: style, Fonts: fonts}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return BookAssets{}, err
		}
		return BookAssets{}, fmt.Errorf("%w: %w", ErrAssets, err)
	}

	if err := f.dir.WriteText(workdir.FontsFile, assets.Fonts); err != nil {
		return BookAssets{}, fmt.Errorf("%w: %v", ErrAssets, err)
	}
	if err := f.dir.WriteText(workdir.StyleFile, assets.Stylesheet); err != nil {
		return BookAssets{}, fmt.Errorf("%w: %v", ErrAssets, err)
	}
	return assets, nil
}

// withConn runs op on a pooled connection, retrying with exponential
// backoff. Connections that fail are discarded; refusals are final and
// wrap ErrPageDenied, anything else left after the last attempt wraps
// ErrNetwork.
func (f *Fetcher) withConn(ctx context.Context, what string, index int, op func(Conn) error) error {
	err := retry.Do(
		func() error {
			c, err := f.pool.Acquire(ctx)
			if err != nil {
				return err
			}
			err = op(c)
			denied := errors.Is(err, socketio.ErrDenied) || errors.Is(err, ErrPageDenied)
			f.pool.Release(c, err != nil && !denied)
			if denied {
				return retry.Unrecoverable(fmt.Errorf("%w: %w", ErrPageDenied, err))
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(f.retry.Attempts),
		retry.Delay(f.retry.Delay),
		retry.MaxDelay(f.retry.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			f.logger.Warn("retrying "+what, "page", index, "attempt", n+1, "error", err)
		}),
	)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, ErrPageDenied) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}
