package main

import (
	"errors"
	"os"

	"github.com/alnah/go-bookdl"
	"github.com/alnah/go-bookdl/internal/config"
	"github.com/alnah/go-bookdl/internal/hints"
)

// hintFor returns the actionable hints for err, or "".
func hintFor(err error) string {
	switch {
	case errors.Is(err, config.ErrConfigNotFound):
		return hints.ForConfigNotFound(config.SearchPaths(config.DefaultName))
	case errors.Is(err, bookdl.ErrInvalidCredentials):
		return hints.ForInvalidCredentials()
	case errors.Is(err, bookdl.ErrNoCookiesFound):
		return hints.ForNoCookies(bookdl.DefaultPlatform().CookieDomain)
	case errors.Is(err, bookdl.ErrSSOHandshakeFailed):
		return hints.ForSSOHandshake()
	case errors.Is(err, bookdl.ErrUnauthorized), errors.Is(err, bookdl.ErrPageDenied):
		return hints.ForUnauthorized()
	case bookdl.IsNetwork(err), errors.Is(err, bookdl.ErrPageFetchFailed):
		return hints.ForNetwork()
	case errors.Is(err, bookdl.ErrEngineCrashed):
		return hints.ForBrowserConnect()
	case errors.Is(err, bookdl.ErrRenderTimeout):
		return hints.ForRenderTimeout()
	case errors.Is(err, os.ErrPermission):
		return hints.ForOutputDirectory()
	}
	return ""
}
