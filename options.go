package bookdl

import (
	"context"
	"log/slog"
	"time"

	"github.com/alnah/go-bookdl/internal/fetch"
	"github.com/alnah/go-bookdl/internal/metadata"
	"github.com/alnah/go-bookdl/internal/render"
	"github.com/alnah/go-bookdl/internal/session"
)

// Authenticator establishes sessions.
type Authenticator interface {
	Authenticate(ctx context.Context, strategy Strategy, creds Credentials) (*session.Session, error)
}

// Resolver resolves a book URL to its metadata and page sequence.
type Resolver interface {
	Resolve(ctx context.Context, s *session.Session, bookURL string) (metadata.BookMetadata, []metadata.PageLocator, error)
}

// downloaderConfig holds settings applied when building the default stages.
type downloaderConfig struct {
	platform       Platform
	institution    Institution
	socketEndpoint string
	userAgent      string
	firefoxStore   string
	httpTimeout    time.Duration
	fetchTimeout   time.Duration
	workers        int
	retry          fetch.Retry
	renderTimeout  time.Duration
	renderAttempts uint
	settle         render.Settle
	templateDir    string
}

// Option configures a Downloader.
type Option func(*Downloader)

// WithLogger sets the logger shared by every stage.
func WithLogger(l *slog.Logger) Option {
	return func(d *Downloader) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithPlatform overrides the reading platform endpoints.
func WithPlatform(p Platform) Option {
	return func(d *Downloader) { d.cfg.platform = p }
}

// WithInstitution overrides the institutional login endpoints.
func WithInstitution(i Institution) Option {
	return func(d *Downloader) { d.cfg.institution = i }
}

// WithSocketEndpoint overrides the page service endpoint.
func WithSocketEndpoint(url string) Option {
	return func(d *Downloader) { d.cfg.socketEndpoint = url }
}

// WithUserAgent sets the User-Agent sent to the platform.
func WithUserAgent(ua string) Option {
	return func(d *Downloader) { d.cfg.userAgent = ua }
}

// WithFirefoxStore reads imported cookies from this cookies.sqlite instead of
// the most recently used profile.
func WithFirefoxStore(path string) Option {
	return func(d *Downloader) { d.cfg.firefoxStore = path }
}

// WithHTTPTimeout sets the per-request timeout for login and metadata.
func WithHTTPTimeout(t time.Duration) Option {
	return func(d *Downloader) {
		if t > 0 {
			d.cfg.httpTimeout = t
		}
	}
}

// WithWorkers sets the number of concurrent page fetches.
// Zero derives it from GOMAXPROCS (see ResolveWorkers).
func WithWorkers(n int) Option {
	return func(d *Downloader) { d.cfg.workers = n }
}

// WithFetchRetry sets the retry policy for page fetches. Zero values keep
// the defaults.
func WithFetchRetry(attempts uint, delay, maxDelay time.Duration) Option {
	return func(d *Downloader) {
		d.cfg.retry = fetch.Retry{Attempts: attempts, Delay: delay, MaxDelay: maxDelay}
	}
}

// WithFetchTimeout bounds the wait for each page service reply.
func WithFetchTimeout(t time.Duration) Option {
	return func(d *Downloader) {
		if t > 0 {
			d.cfg.fetchTimeout = t
		}
	}
}

// WithRenderTimeout sets the per-page render deadline.
func WithRenderTimeout(t time.Duration) Option {
	return func(d *Downloader) {
		if t > 0 {
			d.cfg.renderTimeout = t
		}
	}
}

// WithRenderAttempts sets how many times a page render is tried.
func WithRenderAttempts(n uint) Option {
	return func(d *Downloader) {
		if n > 0 {
			d.cfg.renderAttempts = n
		}
	}
}

// WithSettle sets when a loaded page counts as rendered: after web fonts
// (waitFonts), a network quiet period (idle) and a fixed delay. A zero idle
// keeps the default quiet period.
func WithSettle(waitFonts bool, idle, delay time.Duration) Option {
	return func(d *Downloader) {
		if idle <= 0 {
			idle = render.DefaultSettle.IdleTime
		}
		d.cfg.settle = render.Settle{WaitFonts: waitFonts, IdleTime: idle, Delay: delay}
	}
}

// WithTemplateDir overrides the information page templates.
func WithTemplateDir(dir string) Option {
	return func(d *Downloader) { d.cfg.templateDir = dir }
}

// WithProgress reports stage progress.
func WithProgress(p Progress) Option {
	return func(d *Downloader) {
		if p != nil {
			d.progress = p
		}
	}
}

// WithAuthenticator replaces the session stage.
func WithAuthenticator(a Authenticator) Option {
	return func(d *Downloader) { d.auth = a }
}

// WithResolver replaces the metadata stage.
func WithResolver(r Resolver) Option {
	return func(d *Downloader) { d.resolver = r }
}

// WithDialer replaces the page service transport.
func WithDialer(dial func(*session.Session) fetch.Dialer) Option {
	return func(d *Downloader) { d.dial = dial }
}

// WithEngine replaces the render engine. newEngine is called once per
// conversion and the engine is closed when it ends.
func WithEngine(newEngine func() render.Engine) Option {
	return func(d *Downloader) { d.newEngine = newEngine }
}
