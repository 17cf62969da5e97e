package main

import (
	"errors"
	"fmt"
	"io"

	flag "github.com/spf13/pflag"
)

// ErrUsage marks command-line mistakes; it maps to ExitUsage.
var ErrUsage = errors.New("usage error")

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// authFlags selects and parameterizes the login strategy.
type authFlags struct {
	username       string
	password       string
	firefoxCookies bool
	institution    bool
}

// bookFlags shape the output document.
type bookFlags struct {
	output   string
	format   string
	noCover  bool
	infoPage bool
	timeout  string
}

// downloadFlags holds all flags for the download command.
type downloadFlags struct {
	common    commonFlags
	auth      authFlags
	book      bookFlags
	pageCount int
	noConvert bool
	keep      bool
	workers   int
}

// queryFlags holds all flags for the query command.
type queryFlags struct {
	common commonFlags
	auth   authFlags
	yaml   bool
}

// convertFlags holds all flags for the convert command.
type convertFlags struct {
	common commonFlags
	book   bookFlags
}

func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show debug logs")
}

func addAuthFlags(fs *flag.FlagSet, f *authFlags) {
	fs.StringVarP(&f.username, "username", "u", "", "platform or library username")
	fs.StringVarP(&f.password, "password", "p", "", "platform or library password")
	fs.BoolVar(&f.firefoxCookies, "firefox-cookies", false, "reuse the Firefox session")
	fs.BoolVar(&f.institution, "institution", false, "log in through the institutional gateway")
}

func addBookFlags(fs *flag.FlagSet, f *bookFlags, outputUsage string) {
	fs.StringVarP(&f.output, "output", "o", "", outputUsage)
	fs.StringVar(&f.format, "format", "", "output format: pdf, html")
	fs.BoolVar(&f.noCover, "no-cover", false, "leave out the cover")
	fs.BoolVar(&f.infoPage, "info-page", false, "add a book information page after the cover")
	fs.StringVarP(&f.timeout, "timeout", "t", "", "per-page render timeout (e.g., 30s, 2m)")
}

func parseDownloadFlags(args []string, usage io.Writer) (*downloadFlags, []string, error) {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	f := &downloadFlags{}

	addCommonFlags(fs, &f.common)
	addAuthFlags(fs, &f.auth)
	addBookFlags(fs, &f.book, "output directory")
	fs.IntVar(&f.pageCount, "page-count", 0, "download at most N pages (0 = all)")
	fs.BoolVar(&f.noConvert, "no-convert", false, "download sources only, keep them for 'convert'")
	fs.BoolVar(&f.keep, "keep", false, "keep the downloaded sources after converting")
	fs.IntVarP(&f.workers, "workers", "w", 0, "concurrent page downloads (0 = auto)")

	fs.SetOutput(usage)
	fs.Usage = func() { printDownloadUsage(usage) }
	if err := parseFlagSet(fs, args); err != nil {
		return nil, nil, err
	}
	return f, fs.Args(), nil
}

func parseQueryFlags(args []string, usage io.Writer) (*queryFlags, []string, error) {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	f := &queryFlags{}

	addCommonFlags(fs, &f.common)
	addAuthFlags(fs, &f.auth)
	fs.BoolVar(&f.yaml, "yaml", false, "print the metadata as YAML")

	fs.SetOutput(usage)
	fs.Usage = func() { printQueryUsage(usage) }
	if err := parseFlagSet(fs, args); err != nil {
		return nil, nil, err
	}
	return f, fs.Args(), nil
}

func parseConvertFlags(args []string, usage io.Writer) (*convertFlags, []string, error) {
	fs := flag.NewFlagSet("convert", flag.ContinueOnError)
	f := &convertFlags{}

	addCommonFlags(fs, &f.common)
	addBookFlags(fs, &f.book, "output file")

	fs.SetOutput(usage)
	fs.Usage = func() { printConvertUsage(usage) }
	if err := parseFlagSet(fs, args); err != nil {
		return nil, nil, err
	}
	return f, fs.Args(), nil
}

// parseFlagSet parses args, marking parse failures as usage errors.
// flag.ErrHelp passes through so -h exits successfully.
func parseFlagSet(fs *flag.FlagSet, args []string) error {
	err := fs.Parse(args)
	if err == nil || errors.Is(err, flag.ErrHelp) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUsage, err)
}
