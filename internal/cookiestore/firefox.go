// Package cookiestore reads cookies out of a local Firefox profile so a
// session established in the browser can be reused.
package cookiestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Sentinel errors.
var (
	ErrNoProfile = errors.New("no firefox profile with a cookie store found")
	ErrReadStore = errors.New("reading firefox cookie store")
)

const cookieDB = "cookies.sqlite"

// Firefox reads cookies from the most recently used Firefox profile.
// It implements session.CookieSource.
type Firefox struct {
	// Roots are directories holding profile directories. Defaults to the
	// platform's standard locations.
	Roots []string
	// Store, when set, is used instead of searching Roots.
	Store string
	// Now is used to drop expired cookies. Defaults to time.Now.
	Now func() time.Time
}

// Cookies returns the unexpired cookies whose host matches domain or one of
// its subdomains.
func (f *Firefox) Cookies(ctx context.Context, domain string) ([]*http.Cookie, error) {
	store := f.Store
	if store == "" {
		var err error
		store, err = FindStore(f.roots())
		if err != nil {
			return nil, err
		}
	}

	// Firefox keeps the database locked while running, so read a copy.
	tmp, err := snapshot(store)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadStore, err)
	}
	defer os.RemoveAll(tmp)

	db, err := sql.Open("sqlite", filepath.Join(tmp, cookieDB))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadStore, err)
	}
	defer db.Close()

	cookies, err := query(ctx, db, domain, f.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadStore, err)
	}
	return cookies, nil
}

func (f *Firefox) roots() []string {
	if len(f.Roots) > 0 {
		return f.Roots
	}
	return DefaultRoots()
}

func (f *Firefox) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

// DefaultRoots returns the directories where Firefox keeps its profiles on
// the current platform.
func DefaultRoots() []string {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	switch runtime.GOOS {
	case "darwin":
		return []string{filepath.Join(home, "Library", "Application Support", "Firefox", "Profiles")}
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return []string{filepath.Join(appData, "Mozilla", "Firefox", "Profiles")}
	default:
		return []string{
			filepath.Join(home, ".mozilla", "firefox"),
			filepath.Join(home, "snap", "firefox", "common", ".mozilla", "firefox"),
			filepath.Join(home, ".var", "app", "org.mozilla.firefox", ".mozilla", "firefox"),
		}
	}
}

// FindStore returns the most recently modified cookies.sqlite found one
// level below any of roots.
func FindStore(roots []string) (string, error) {
	var (
		best    string
		bestMod time.Time
	)
	for _, root := range roots {
		matches, err := filepath.Glob(filepath.Join(root, "*", cookieDB))
		if err != nil {
			continue
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			if best == "" || info.ModTime().After(bestMod) {
				best, bestMod = m, info.ModTime()
			}
		}
	}
	if best == "" {
		return "", ErrNoProfile
	}
	return best, nil
}

// snapshot copies the store and its write-ahead log into a temp directory.
func snapshot(store string) (string, error) {
	dir, err := os.MkdirTemp("", "bookdl-cookies-*")
	if err != nil {
		return "", err
	}
	if err := copyFile(store, filepath.Join(dir, cookieDB)); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if _, err := os.Stat(store + suffix); err == nil {
			if err := copyFile(store+suffix, filepath.Join(dir, cookieDB+suffix)); err != nil {
				os.RemoveAll(dir)
				return "", err
			}
		}
	}
	return dir, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

const cookieQuery = `SELECT name, value, host, path, expiry, isSecure, isHttpOnly
FROM moz_cookies WHERE host = ? OR host LIKE ?`

func query(ctx context.Context, db *sql.DB, domain string, now time.Time) ([]*http.Cookie, error) {
	domain = strings.TrimPrefix(domain, ".")
	rows, err := db.QueryContext(ctx, cookieQuery, domain, "%."+domain)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cookies []*http.Cookie
	for rows.Next() {
		var (
			name, value, host, path string
			expiry                  int64
			secure, httpOnly        int
		)
		if err := rows.Scan(&name, &value, &host, &path, &expiry, &secure, &httpOnly); err != nil {
			return nil, err
		}
		exp := expiryTime(expiry)
		if !exp.IsZero() && exp.Before(now) {
			continue
		}
		cookies = append(cookies, &http.Cookie{
			Name:     name,
			Value:    value,
			Domain:   host,
			Path:     path,
			Expires:  exp,
			Secure:   secure != 0,
			HttpOnly: httpOnly != 0,
		})
	}
	return cookies, rows.Err()
}

// expiryTime converts a moz_cookies expiry. Newer Firefox versions store
// milliseconds instead of seconds.
func expiryTime(v int64) time.Time {
	switch {
	case v <= 0:
		return time.Time{}
	case v > 1e12:
		return time.UnixMilli(v)
	default:
		return time.Unix(v, 0)
	}
}
