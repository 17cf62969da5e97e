package main

import (
	"context"
	"io"
	"os"

	"github.com/alnah/go-bookdl"
)

// Downloader is the library surface used by the commands.
type Downloader interface {
	Download(ctx context.Context, req bookdl.Request) (*bookdl.Result, error)
	Query(ctx context.Context, req bookdl.Request) (bookdl.BookMetadata, error)
	Convert(ctx context.Context, req bookdl.ConvertRequest) (*bookdl.Result, error)
}

// Compile-time interface implementation check.
var _ Downloader = (*bookdl.Downloader)(nil)

// Environment holds injectable dependencies for testability.
type Environment struct {
	Stdout  io.Writer
	Stderr  io.Writer
	Getenv  func(string) string
	Environ func() []string
	// Interactive enables progress bars; false for pipes and tests.
	Interactive bool
	// NewDownloader builds the pipeline from the resolved options.
	NewDownloader func(opts ...bookdl.Option) (Downloader, error)
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Getenv:      os.Getenv,
		Environ:     os.Environ,
		Interactive: isTerminal(os.Stderr),
		NewDownloader: func(opts ...bookdl.Option) (Downloader, error) {
			return bookdl.NewDownloader(opts...)
		},
	}
}

// isTerminal reports whether f is a character device.
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
