// Package fileutil provides file and path helpers shared by the pipeline
// stages and the CLI.
package fileutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Sentinel errors for file utility operations.
var (
	ErrEmptyName     = errors.New("file name cannot be empty")
	ErrPathTraversal = errors.New("name contains path separator or null byte")
)

// forbiddenChars are the characters stripped from derived file names.
// The set is the union of what Windows and common filesystems reject.
var forbiddenChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// SanitizeName removes characters that cannot appear in a file name and
// trims surrounding whitespace and dots. Returns "" when nothing is left.
//
// Examples:
//   - `Jan Kowalski - Fizyka: tom 1` -> `Jan Kowalski - Fizyka tom 1`
//   - `A/B "C"` -> `AB C`
func SanitizeName(s string) string {
	s = forbiddenChars.ReplaceAllString(s, "")
	return strings.Trim(strings.TrimSpace(s), ". ")
}

// BookBaseName builds "<author> - <title>" with unsafe characters removed.
// Falls back to fallback when both author and title are empty.
func BookBaseName(author, title, fallback string) string {
	base := SanitizeName(author + " - " + title)
	if base == "" || base == "-" {
		base = SanitizeName(fallback)
	}
	if base == "" {
		base = "book"
	}
	return base
}

// BookFileName is BookBaseName with an extension.
func BookFileName(author, title, fallback, ext string) string {
	return BookBaseName(author, title, fallback) + "." + strings.TrimPrefix(ext, ".")
}

// ValidateName checks that name is a single path element.
func ValidateName(name string) error {
	if name == "" {
		return ErrEmptyName
	}
	if name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") {
		return ErrPathTraversal
	}
	return nil
}

// FileExists returns true if the path exists and is a regular file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirExists returns true if the path exists and is a directory.
func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// IsURL returns true if the string looks like an http(s) URL.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// IsInside reports whether path is dir itself or lies below it.
// Both paths are made absolute first; "book" is not inside "book-2".
func IsInside(dir, path string) (bool, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return false, fmt.Errorf("resolving %s: %w", dir, err)
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("resolving %s: %w", path, err)
	}
	rel, err := filepath.Rel(absDir, absPath)
	if err != nil {
		return false, nil
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))), nil
}

// WriteFile writes data to path through a temp file in the same directory
// and renames it into place, so readers never observe a partial file.
// Missing parent directories are created.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		cleanup()
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return fmt.Errorf("renaming into place: %w", err)
	}
	return nil
}
