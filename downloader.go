package bookdl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-bookdl/internal/assemble"
	"github.com/alnah/go-bookdl/internal/cookiestore"
	"github.com/alnah/go-bookdl/internal/fetch"
	"github.com/alnah/go-bookdl/internal/fileutil"
	"github.com/alnah/go-bookdl/internal/infopage"
	"github.com/alnah/go-bookdl/internal/metadata"
	"github.com/alnah/go-bookdl/internal/render"
	"github.com/alnah/go-bookdl/internal/session"
	"github.com/alnah/go-bookdl/internal/workdir"
)

// Compile-time interface implementation checks.
var (
	_ Authenticator        = (*session.Authenticator)(nil)
	_ Resolver             = (*metadata.Resolver)(nil)
	_ session.CookieSource = (*cookiestore.Firefox)(nil)
	_ fetch.Dialer         = (*fetch.SocketDialer)(nil)
	_ render.Engine        = (*render.RodEngine)(nil)
)

// Downloader runs the book pipeline: authenticate, resolve, fetch, render
// and assemble. Create it with NewDownloader. A Downloader holds
// configuration only and may run several books one after another.
type Downloader struct {
	cfg       downloaderConfig
	logger    *slog.Logger
	progress  Progress
	auth      Authenticator
	resolver  Resolver
	dial      func(*session.Session) fetch.Dialer
	newEngine func() render.Engine
	info      *infopage.Builder
}

// NewDownloader creates a Downloader. Stages not replaced by options use
// the production implementations: the platform's HTTP endpoints, the
// socket.io page service and a headless Chrome.
func NewDownloader(opts ...Option) (*Downloader, error) {
	d := &Downloader{
		cfg: downloaderConfig{
			renderTimeout:  render.DefaultTimeout,
			renderAttempts: render.DefaultAttempts,
			settle:         render.DefaultSettle,
		},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		progress: noProgress{},
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.auth == nil {
		authOpts := []session.Option{
			session.WithCookieSource(&cookiestore.Firefox{Store: d.cfg.firefoxStore}),
			session.WithTimeout(d.cfg.httpTimeout),
			session.WithUserAgent(d.cfg.userAgent),
			session.WithLogger(d.logger),
		}
		if d.cfg.platform != (Platform{}) {
			authOpts = append(authOpts, session.WithPlatform(d.cfg.platform))
		}
		if d.cfg.institution != (Institution{}) {
			authOpts = append(authOpts, session.WithInstitution(d.cfg.institution))
		}
		d.auth = session.NewAuthenticator(authOpts...)
	}
	if d.resolver == nil {
		d.resolver = metadata.NewResolver(d.logger)
	}
	if d.dial == nil {
		endpoint, timeout, logger := d.cfg.socketEndpoint, d.cfg.fetchTimeout, d.logger
		d.dial = func(s *session.Session) fetch.Dialer {
			return fetch.NewSocketDialer(s, endpoint, timeout, logger)
		}
	}
	if d.newEngine == nil {
		settle, logger := d.cfg.settle, d.logger
		d.newEngine = func() render.Engine {
			return render.NewRodEngine(render.WithSettle(settle), render.WithEngineLogger(logger))
		}
	}

	info, err := infopage.NewBuilder(d.cfg.templateDir)
	if err != nil {
		return nil, err
	}
	d.info = info
	return d, nil
}

// Query authenticates and resolves the book without fetching any page.
func (d *Downloader) Query(ctx context.Context, req Request) (meta BookMetadata, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StageError{Stage: StageInternal, Page: -1, Err: fmt.Errorf("internal error: %v", r)}
		}
	}()

	if err := validateBookURL(req.BookURL); err != nil {
		return BookMetadata{}, stageError(StageValidate, err)
	}
	s, err := d.auth.Authenticate(ctx, req.Strategy, req.Credentials)
	if err != nil {
		return BookMetadata{}, stageError(StageAuth, err)
	}
	if !s.Valid() {
		return BookMetadata{}, stageError(StageAuth, ErrInvalidSession)
	}
	meta, _, err = d.resolver.Resolve(ctx, s, req.BookURL)
	if err != nil {
		return BookMetadata{}, stageError(StageResolve, err)
	}
	return meta, nil
}

// Download retrieves one book and writes it as a single document in
// req.OutputDir. Sources go to "<author> - <title>/" next to the output and
// are removed after a successful conversion unless req.Keep is set. With
// req.NoConvert the run stops once every page is on disk.
//
// Every failure is a *StageError. No partial output document is left behind.
func (d *Downloader) Download(ctx context.Context, req Request) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StageError{Stage: StageInternal, Page: -1, Err: fmt.Errorf("internal error: %v", r)}
		}
	}()

	format, err := validateRequest(req)
	if err != nil {
		return nil, stageError(StageValidate, err)
	}

	s, err := d.auth.Authenticate(ctx, req.Strategy, req.Credentials)
	if err != nil {
		return nil, stageError(StageAuth, err)
	}
	if !s.Valid() {
		return nil, stageError(StageAuth, ErrInvalidSession)
	}
	d.logger.Debug("authenticated", "strategy", s.Identity())

	meta, locs, err := d.resolver.Resolve(ctx, s, req.BookURL)
	if err != nil {
		return nil, stageError(StageResolve, err)
	}
	if req.MaxPages > 0 && req.MaxPages < len(locs) {
		locs = locs[:req.MaxPages]
	}
	d.logger.Info("resolved book", "book", meta.Title, "author", meta.Author, "pages", len(locs), "total", meta.Pages)

	wd, created, err := d.workDir(req.OutputDir, meta)
	if err != nil {
		return nil, stageError(StageFetch, err)
	}
	defer func() {
		if err == nil || !created || req.Keep || req.NoConvert {
			return
		}
		if rmErr := wd.Remove(); rmErr != nil {
			d.logger.Warn("removing working directory", "path", wd.Root, "error", rmErr)
		}
	}()

	fetcher := fetch.New(d.dial(s), wd,
		fetch.WithWorkers(ResolveWorkers(d.cfg.workers)),
		fetch.WithRetry(d.cfg.retry),
		fetch.WithHTTPClient(s.Client()),
		fetch.WithLogger(d.logger),
	)
	defer func() {
		if cerr := fetcher.Close(); cerr != nil {
			d.logger.Debug("closing page service connections", "error", cerr)
		}
	}()

	assets, err := fetcher.FetchAssets(ctx, meta.ID)
	if err != nil {
		return nil, stageError(StageFetch, err)
	}

	var cover *fetch.Cover
	if !req.NoCover {
		cover, err = fetcher.FetchCover(ctx, meta.CoverURL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, stageError(StageFetch, ctxErr)
			}
			d.logger.Warn("skipping cover", "error", err)
			cover = nil
		}
	}

	fetchAll := func(ctx context.Context, deliver func(fetch.FetchedPage)) error {
		if err := fetcher.FetchAll(ctx, locs, deliver); err != nil {
			return err
		}
		return wd.WriteManifest(meta.Raw, len(locs))
	}

	res = &Result{WorkDir: wd.Root, Book: meta, Pages: len(locs)}

	if req.NoConvert {
		d.progress.Start(StageFetch, len(locs))
		err := fetchAll(ctx, func(fetch.FetchedPage) { d.progress.Advance(StageFetch) })
		if err != nil {
			return nil, stageError(StageFetch, err)
		}
		d.progress.Done(StageFetch)
		d.logger.Info("downloaded book", "book", meta.Title, "path", wd.Root)
		return res, nil
	}

	ext := format.Ext()
	out := filepath.Join(req.OutputDir, fileutil.BookFileName(meta.Author, meta.Title, meta.SluggedTitle, ext))
	doc, err := d.build(ctx, job{
		dir:     wd,
		meta:    meta,
		total:   len(locs),
		produce: fetchAll,
		assets:  assets,
		cover:   cover,
		format:  format,
		info:    req.InfoPage,
		out:     out,
	})
	if err != nil {
		return nil, err
	}
	res.Document = doc

	if cerr := assemble.Cleanup(wd.Root, doc.Path, req.Keep); cerr != nil {
		d.logger.Warn("keeping working directory", "path", wd.Root, "error", cerr)
	} else if !req.Keep {
		res.WorkDir = ""
	}

	d.logger.Info("wrote book", "book", meta.Title, "path", doc.Path, "pages", doc.Pages)
	return res, nil
}

// Convert assembles a directory left by an earlier Download run with
// NoConvert or Keep. The sources are never removed.
func (d *Downloader) Convert(ctx context.Context, req ConvertRequest) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StageError{Stage: StageInternal, Page: -1, Err: fmt.Errorf("internal error: %v", r)}
		}
	}()

	if req.Dir == "" {
		return nil, stageError(StageValidate, ErrEmptySourceDir)
	}
	format, err := ParseFormat(string(req.Format))
	if err != nil {
		return nil, stageError(StageValidate, err)
	}
	wd, err := workdir.Open(req.Dir)
	if err != nil {
		return nil, stageError(StageValidate, err)
	}

	data, err := wd.ReadManifest()
	if err != nil {
		return nil, stageError(StageResolve, err)
	}
	raw, err := metadata.DecodeRecord(data)
	if err != nil {
		return nil, stageError(StageResolve, fmt.Errorf("%w: %v", workdir.ErrManifest, err))
	}
	meta, err := metadata.FromRecord(raw)
	if err != nil {
		return nil, stageError(StageResolve, err)
	}

	total, ok := metadata.IntField(raw, workdir.PagesDownloadedKey)
	if !ok {
		total = wd.CountPages()
		d.logger.Debug("manifest has no page count, counted pages on disk", "pages", total)
	}
	if total <= 0 {
		return nil, stageError(StageResolve, fmt.Errorf("%w: no pages in %s", workdir.ErrManifest, wd.Root))
	}

	assets := fetch.BookAssets{
		Stylesheet: d.readAsset(wd, workdir.StyleFile),
		Fonts:      d.readAsset(wd, workdir.FontsFile),
	}

	var cover *fetch.Cover
	if !req.NoCover {
		cover = d.readCover(wd)
	}

	out := req.Output
	if out == "" {
		out = filepath.Join(req.OutputDir, fileutil.BookFileName(meta.Author, meta.Title, meta.SluggedTitle, format.Ext()))
	}

	readPages := func(ctx context.Context, deliver func(fetch.FetchedPage)) error {
		for i := 0; i < total; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			content, err := wd.ReadPage(i + 1)
			if err != nil {
				return &fetch.PageError{Index: i, Err: err}
			}
			deliver(fetch.FetchedPage{Index: i, Number: i + 1, Content: content, Path: wd.PagePath(i + 1)})
		}
		return nil
	}

	doc, err := d.build(ctx, job{
		dir:     wd,
		meta:    meta,
		total:   total,
		produce: readPages,
		assets:  assets,
		cover:   cover,
		format:  format,
		info:    req.InfoPage,
		out:     out,
	})
	if err != nil {
		return nil, err
	}

	d.logger.Info("wrote book", "book", meta.Title, "path", doc.Path, "pages", doc.Pages)
	return &Result{Document: doc, WorkDir: wd.Root, Book: meta, Pages: total}, nil
}

// job is one conversion: pages come from produce, in any order, and are
// rendered and assembled in index order.
type job struct {
	dir     *workdir.Dir
	meta    BookMetadata
	total   int
	produce func(ctx context.Context, deliver func(fetch.FetchedPage)) error
	assets  fetch.BookAssets
	cover   *fetch.Cover
	format  Format
	info    bool
	out     string
}

// build runs produce and the renderer concurrently. The renderer takes
// pages from the arena strictly in index order, so rendering starts as soon
// as page 0 arrives. The first failure on either side cancels the other.
func (d *Downloader) build(ctx context.Context, j job) (Document, error) {
	var renderer *render.Renderer
	if j.format == FormatPDF {
		engine := d.newEngine()
		defer func() {
			if err := engine.Close(); err != nil {
				d.logger.Warn("closing render engine", "error", err)
			}
		}()
		renderer = render.NewRenderer(engine, j.dir,
			render.WithTimeout(d.cfg.renderTimeout),
			render.WithAttempts(d.cfg.renderAttempts),
			render.WithLogger(d.logger),
		)
	}

	arena := fetch.NewArena(j.total)
	pages := make([]fetch.FetchedPage, 0, j.total)
	artifacts := make([]render.Artifact, 0, j.total)

	d.progress.Start(StageFetch, j.total)
	if renderer != nil {
		d.progress.Start(StageRender, j.total)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := j.produce(gctx, func(p fetch.FetchedPage) {
			arena.Put(p)
			d.progress.Advance(StageFetch)
		})
		if err != nil {
			return stageError(StageFetch, err)
		}
		d.progress.Done(StageFetch)
		return nil
	})
	g.Go(func() error {
		for i := 0; i < j.total; i++ {
			page, err := arena.Wait(gctx, i)
			if err != nil {
				return stageError(StageFetch, err)
			}
			if renderer == nil {
				pages = append(pages, page)
				continue
			}
			art, err := renderer.Render(gctx, page, j.assets)
			if err != nil {
				return stageError(StageRender, err)
			}
			artifacts = append(artifacts, art)
			d.progress.Advance(StageRender)
		}
		if renderer != nil {
			d.progress.Done(StageRender)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return Document{}, err
	}

	var info assemble.Info
	if j.info {
		info = d.infoPage(ctx, j, renderer)
	}

	asm := assemble.New(assemble.WithInfo(info), assemble.WithLogger(d.logger))
	d.progress.Start(StageAssemble, 1)
	var doc Document
	var err error
	switch j.format {
	case FormatHTML:
		doc, err = asm.AssembleHTML(ctx, j.cover, pages, j.assets, j.meta.Title, j.out)
	default:
		doc, err = asm.AssemblePDF(ctx, j.cover, artifacts, j.out)
	}
	if err != nil {
		return Document{}, stageError(StageAssemble, err)
	}
	d.progress.Advance(StageAssemble)
	d.progress.Done(StageAssemble)
	return doc, nil
}

// infoPage builds the information page. It is optional: failures are
// logged and the book is assembled without it.
func (d *Downloader) infoPage(ctx context.Context, j job, renderer *render.Renderer) assemble.Info {
	frag, err := d.info.Fragment(ctx, j.meta)
	if err != nil {
		d.logger.Warn("skipping information page", "error", err)
		return assemble.Info{}
	}
	if renderer == nil {
		return assemble.Info{HTML: frag}
	}
	art, err := renderer.Render(ctx, fetch.FetchedPage{Index: -1, Number: 0, Content: frag}, fetch.BookAssets{})
	if err != nil {
		d.logger.Warn("skipping information page", "error", err)
		return assemble.Info{}
	}
	return assemble.Info{PDF: art.Path}
}

// workDir picks "<outputDir>/<author> - <title>". A directory of that name
// is reused when it is empty or holds an earlier download of a book;
// otherwise a fresh uniquely named directory is created beside it. created
// reports whether this run made the directory.
func (d *Downloader) workDir(outputDir string, meta BookMetadata) (wd *workdir.Dir, created bool, err error) {
	root := filepath.Join(outputDir, fileutil.BookBaseName(meta.Author, meta.Title, meta.SluggedTitle))
	if !fileutil.DirExists(root) {
		wd, err = workdir.At(root)
		return wd, err == nil, err
	}
	if reusable(root) {
		return &workdir.Dir{Root: root}, false, nil
	}
	parent := outputDir
	if parent == "" {
		parent = "."
	}
	d.logger.Warn("directory exists and is not a book download, using a new one", "path", root)
	wd, err = workdir.Create(parent)
	return wd, err == nil, err
}

func reusable(root string) bool {
	if fileutil.FileExists(filepath.Join(root, workdir.ManifestFile)) {
		return true
	}
	entries, err := os.ReadDir(root)
	return err == nil && len(entries) == 0
}

// readAsset loads a stored stylesheet. Pages still convert without it, so
// a missing file is only a warning.
func (d *Downloader) readAsset(wd *workdir.Dir, name string) string {
	s, err := wd.ReadText(name)
	if err != nil {
		d.logger.Warn("missing book asset, pages may render without styling", "file", name, "error", err)
		return ""
	}
	return s
}

func (d *Downloader) readCover(wd *workdir.Dir) *fetch.Cover {
	path := wd.CoverPath()
	if path == "" {
		d.logger.Debug("no cover in source directory", "path", wd.Root)
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		d.logger.Warn("skipping cover", "path", path, "error", err)
		return nil
	}
	return &fetch.Cover{Path: path, Data: data}
}

func validateRequest(req Request) (Format, error) {
	if err := validateBookURL(req.BookURL); err != nil {
		return "", err
	}
	if req.MaxPages < 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidPageCount, req.MaxPages)
	}
	return ParseFormat(string(req.Format))
}

func validateBookURL(u string) error {
	if u == "" {
		return ErrEmptyBookURL
	}
	if !fileutil.IsURL(u) {
		return fmt.Errorf("%w: %q", ErrInvalidBookURL, u)
	}
	return nil
}

// IsCanceled reports whether err comes from a canceled or expired context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
