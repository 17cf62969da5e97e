// Package hints provides actionable error hints for common failure scenarios.
// Hints are formatted consistently as "\n  hint: <text>" for appending to error messages.
package hints

import (
	"os"
	"strings"

	"github.com/alnah/go-bookdl/internal/fileutil"
)

// IsInContainer detects if running inside a Docker container or similar.
// Checks for /.dockerenv file which Docker creates automatically.
var IsInContainer = func() bool {
	return fileutil.FileExists("/.dockerenv")
}

// ForBrowserConnect returns hints for browser launch or connection errors.
// Detects CI/Docker environment and suggests relevant environment variables.
func ForBrowserConnect() string {
	var hints []string

	inCI := os.Getenv("CI") != "" ||
		os.Getenv("GITHUB_ACTIONS") != "" ||
		os.Getenv("GITLAB_CI") != "" ||
		os.Getenv("JENKINS_URL") != ""

	if (inCI || IsInContainer()) && os.Getenv("ROD_NO_SANDBOX") != "1" {
		hints = append(hints, "set ROD_NO_SANDBOX=1 for Docker/CI")
	}

	if os.Getenv("ROD_BROWSER_BIN") == "" {
		hints = append(hints, "set ROD_BROWSER_BIN to use custom Chrome")
	}

	return formatHints(hints)
}

// ForRenderTimeout returns a hint about raising the per-page deadline.
func ForRenderTimeout() string {
	return format("for heavy pages, raise --timeout or render.timeout in the config")
}

// ForInvalidCredentials returns a hint for rejected logins.
func ForInvalidCredentials() string {
	return format("check --username/--password or BOOKDL_USERNAME/BOOKDL_PASSWORD")
}

// ForNoCookies returns hints when no usable browser session was found.
func ForNoCookies(domain string) string {
	return formatHints([]string{
		"log in to " + domain + " in Firefox first",
		"or point platform.firefoxProfile at a cookies.sqlite file",
	})
}

// ForSSOHandshake returns a hint for failed institutional logins.
func ForSSOHandshake() string {
	return format("check your library card credentials and the institution section of the config")
}

// ForUnauthorized returns a hint when the account cannot open the book.
func ForUnauthorized() string {
	return format("this account has no access to the book; try --institution or --firefox-cookies")
}

// ForNetwork returns a hint for transport failures.
func ForNetwork() string {
	return format("check your connection; transient failures are retried, see fetch.attempts")
}

// ForConfigNotFound returns hints for config file not found errors.
// Suggests --config flag and creating a config in ~/.config/go-bookdl/.
func ForConfigNotFound(searchedPaths []string) string {
	hint := "use --config /path/to/file.yaml"

	for _, p := range searchedPaths {
		if strings.Contains(p, "go-bookdl") {
			hint += " or create " + p
			break
		}
	}

	return format(hint)
}

// ForOutputDirectory returns hints for output directory creation errors.
func ForOutputDirectory() string {
	return format("check parent directory exists and is writable")
}

// format creates a single hint string with consistent formatting.
func format(hint string) string {
	if hint == "" {
		return ""
	}
	return "\n  hint: " + hint
}

// formatHints joins multiple hints with consistent formatting.
func formatHints(hints []string) string {
	if len(hints) == 0 {
		return ""
	}
	return format(strings.Join(hints, "; "))
}
