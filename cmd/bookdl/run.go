package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/alnah/go-bookdl"
	"github.com/alnah/go-bookdl/internal/fileutil"
	"github.com/alnah/go-bookdl/internal/metadata"
)

// Sentinel errors for CLI operations.
var (
	ErrMissingURL         = errors.New("missing book URL")
	ErrMissingDir         = errors.New("missing source directory")
	ErrTooManyArgs        = errors.New("too many arguments")
	ErrMissingCredentials = errors.New("username and password are required")
	ErrConflictingAuth    = errors.New("--firefox-cookies and --institution are mutually exclusive")
)

// run dispatches to a command and returns the process exit code.
// A first argument that is a URL runs the download command.
func run(ctx context.Context, args []string, env *Environment) int {
	if len(args) == 0 {
		printUsage(env.Stderr)
		return ExitUsage
	}

	cmd, rest := args[0], args[1:]
	if fileutil.IsURL(cmd) {
		cmd, rest = "download", args
	}

	var err error
	switch cmd {
	case "download":
		err = runDownload(ctx, rest, env)
	case "query":
		err = runQuery(ctx, rest, env)
	case "convert":
		err = runConvert(ctx, rest, env)
	case "doctor":
		return runDoctorCmd(rest, env)
	case "version", "--version":
		fmt.Fprintf(env.Stdout, "bookdl %s\n", Version)
		return ExitSuccess
	case "help", "-h", "--help":
		return runHelp(rest, env)
	default:
		fmt.Fprintf(env.Stderr, "Unknown command: %s\n", cmd)
		printUsage(env.Stderr)
		return ExitUsage
	}

	if errors.Is(err, flag.ErrHelp) {
		return ExitSuccess
	}
	if err != nil {
		fmt.Fprintf(env.Stderr, "error: %v%s\n", err, hintFor(err))
		return exitCodeFor(err)
	}
	return ExitSuccess
}

func runDownload(ctx context.Context, args []string, env *Environment) error {
	f, pos, err := parseDownloadFlags(args, env.Stderr)
	if err != nil {
		return err
	}
	bookURL, err := singleArg(pos, ErrMissingURL)
	if err != nil {
		return err
	}

	s, err := loadSettings(f.common, env)
	if err != nil {
		return err
	}
	s.mergeBookFlags(f.book)
	if f.workers != 0 {
		s.cfg.Fetch.Workers = f.workers
	}
	if f.keep {
		s.cfg.Output.Keep = true
	}
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	if f.pageCount < 0 {
		return fmt.Errorf("%w: --page-count must be positive, got %d", ErrUsage, f.pageCount)
	}

	strategy, creds, err := resolveAuth(f.auth, s.env)
	if err != nil {
		return err
	}
	format, err := bookdl.ParseFormat(s.cfg.Output.Format)
	if err != nil {
		return err
	}

	progress := s.progress()
	d, err := env.NewDownloader(s.options(progress)...)
	if err != nil {
		return err
	}
	res, err := d.Download(ctx, bookdl.Request{
		BookURL:     bookURL,
		Strategy:    strategy,
		Credentials: creds,
		Format:      format,
		OutputDir:   s.cfg.Output.Dir,
		MaxPages:    f.pageCount,
		NoCover:     s.cfg.Output.NoCover,
		InfoPage:    s.cfg.Output.InfoPage,
		NoConvert:   f.noConvert,
		Keep:        s.cfg.Output.Keep,
	})
	progress.Close()
	if err != nil {
		return err
	}

	if !s.quiet {
		printResult(env.Stdout, res)
	}
	return nil
}

func runQuery(ctx context.Context, args []string, env *Environment) error {
	f, pos, err := parseQueryFlags(args, env.Stderr)
	if err != nil {
		return err
	}
	bookURL, err := singleArg(pos, ErrMissingURL)
	if err != nil {
		return err
	}
	s, err := loadSettings(f.common, env)
	if err != nil {
		return err
	}
	strategy, creds, err := resolveAuth(f.auth, s.env)
	if err != nil {
		return err
	}

	d, err := env.NewDownloader(s.options(nil)...)
	if err != nil {
		return err
	}
	meta, err := d.Query(ctx, bookdl.Request{BookURL: bookURL, Strategy: strategy, Credentials: creds})
	if err != nil {
		return err
	}
	if !f.yaml {
		fmt.Fprint(env.Stdout, metadata.Describe(meta))
		return nil
	}
	out, err := metadata.DescribeYAML(meta)
	if err != nil {
		return err
	}
	_, err = env.Stdout.Write(out)
	return err
}

func runConvert(ctx context.Context, args []string, env *Environment) error {
	f, pos, err := parseConvertFlags(args, env.Stderr)
	if err != nil {
		return err
	}
	dir, err := singleArg(pos, ErrMissingDir)
	if err != nil {
		return err
	}

	s, err := loadSettings(f.common, env)
	if err != nil {
		return err
	}
	// -o names the output file here, not a directory.
	output := f.book.output
	f.book.output = ""
	s.mergeBookFlags(f.book)
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	format, err := bookdl.ParseFormat(s.cfg.Output.Format)
	if err != nil {
		return err
	}

	progress := s.progress()
	d, err := env.NewDownloader(s.options(progress)...)
	if err != nil {
		return err
	}
	res, err := d.Convert(ctx, bookdl.ConvertRequest{
		Dir:       dir,
		Output:    output,
		OutputDir: s.cfg.Output.Dir,
		Format:    format,
		NoCover:   s.cfg.Output.NoCover,
		InfoPage:  s.cfg.Output.InfoPage,
	})
	progress.Close()
	if err != nil {
		return err
	}

	if !s.quiet {
		printResult(env.Stdout, res)
	}
	return nil
}

// singleArg returns the only positional argument.
func singleArg(pos []string, missing error) (string, error) {
	switch len(pos) {
	case 0:
		return "", fmt.Errorf("%w: %w", ErrUsage, missing)
	case 1:
		return pos[0], nil
	default:
		return "", fmt.Errorf("%w: %w: %s", ErrUsage, ErrTooManyArgs, strings.Join(pos[1:], " "))
	}
}

// resolveAuth picks the strategy from the flags. Credentials come from the
// flags first, then from BOOKDL_USERNAME and BOOKDL_PASSWORD.
func resolveAuth(f authFlags, env *envConfig) (bookdl.Strategy, bookdl.Credentials, error) {
	if f.firefoxCookies && f.institution {
		return 0, bookdl.Credentials{}, fmt.Errorf("%w: %w", ErrUsage, ErrConflictingAuth)
	}
	if f.firefoxCookies {
		return bookdl.CookieImport, bookdl.Credentials{}, nil
	}

	creds := bookdl.Credentials{Username: f.username, Password: f.password}
	if creds.Username == "" {
		creds.Username = env.Username
	}
	if creds.Password == "" {
		creds.Password = env.Password
	}
	if creds.Username == "" || creds.Password == "" {
		return 0, bookdl.Credentials{}, fmt.Errorf("%w: %w (or use --firefox-cookies)", ErrUsage, ErrMissingCredentials)
	}

	if f.institution {
		return bookdl.InstitutionalLogin, creds, nil
	}
	return bookdl.CredentialLogin, creds, nil
}

func printResult(w io.Writer, res *bookdl.Result) {
	if res.Document.Path != "" {
		fmt.Fprintf(w, "%s (%d pages)\n", res.Document.Path, res.Document.Pages)
	}
	if res.WorkDir != "" {
		fmt.Fprintf(w, "sources kept in %s\n", res.WorkDir)
	}
}

// newLogger builds the stderr logger: Debug with -v, Error with -q.
func newLogger(w io.Writer, quiet, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case verbose:
		level = slog.LevelDebug
	case quiet:
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
