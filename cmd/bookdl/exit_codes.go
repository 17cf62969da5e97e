package main

import (
	"errors"

	"github.com/alnah/go-bookdl"
	"github.com/alnah/go-bookdl/internal/config"
	"github.com/alnah/go-bookdl/internal/infopage"
)

// Exit codes for the bookdl CLI.
// Follows Unix conventions: 0=success, 1=general, 2=usage, and custom codes < 126.
const (
	ExitSuccess = 0 // Book written or command succeeded
	ExitGeneral = 1 // General/unexpected error
	ExitUsage   = 2 // Invalid flags, config, or request
	ExitAuth    = 3 // Login, cookies, SSO or book access refused
	ExitNetwork = 4 // Platform unreachable or page fetch exhausted
	ExitRender  = 5 // Browser, render or assembly failure
)

// exitCodeFor returns the appropriate exit code for an error.
// It uses errors.Is to check wrapped errors, so callers must use fmt.Errorf("%w", err).
func exitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Usage/config/validation errors (exit 2)
	if errors.Is(err, ErrUsage) ||
		errors.Is(err, config.ErrConfigNotFound) ||
		errors.Is(err, config.ErrEmptyConfigName) ||
		errors.Is(err, config.ErrConfigParse) ||
		errors.Is(err, config.ErrFieldTooLong) ||
		errors.Is(err, config.ErrInvalidValue) ||
		errors.Is(err, infopage.ErrInvalidTemplateDir) ||
		errors.Is(err, infopage.ErrTemplateRead) ||
		errors.Is(err, bookdl.ErrEmptyBookURL) ||
		errors.Is(err, bookdl.ErrInvalidBookURL) ||
		errors.Is(err, bookdl.ErrEmptySourceDir) ||
		errors.Is(err, bookdl.ErrInvalidPageCount) ||
		errors.Is(err, bookdl.ErrUnknownFormat) ||
		errors.Is(err, bookdl.ErrNoManifest) ||
		errors.Is(err, bookdl.ErrMissingPage) {
		return ExitUsage
	}

	// Authentication and authorization (exit 3)
	if errors.Is(err, bookdl.ErrInvalidCredentials) ||
		errors.Is(err, bookdl.ErrNoCookiesFound) ||
		errors.Is(err, bookdl.ErrSSOHandshakeFailed) ||
		errors.Is(err, bookdl.ErrInvalidSession) ||
		errors.Is(err, bookdl.ErrUnauthorized) ||
		errors.Is(err, bookdl.ErrPageDenied) {
		return ExitAuth
	}

	// Network (exit 4)
	if bookdl.IsNetwork(err) ||
		errors.Is(err, bookdl.ErrPageFetchFailed) {
		return ExitNetwork
	}

	// Rendering and assembly (exit 5)
	if errors.Is(err, bookdl.ErrRenderTimeout) ||
		errors.Is(err, bookdl.ErrEngineCrashed) ||
		errors.Is(err, bookdl.ErrCapture) ||
		errors.Is(err, bookdl.ErrIncompleteSequence) ||
		errors.Is(err, bookdl.ErrMerge) {
		return ExitRender
	}

	return ExitGeneral
}
