// Package workdir owns the on-disk layout of a book download: fetched
// pages, shared assets, the cover, the manifest and per-page render output.
//
//	<root>/
//	  manifest.json
//	  style.css
//	  fonts.css
//	  cover.jpg (or cover.png)
//	  pages/<n>.html
//	  render/<n>.html, render/<n>.pdf
package workdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"github.com/alnah/go-bookdl/internal/fileutil"
)

// File names inside a working directory.
const (
	ManifestFile = "manifest.json"
	StyleFile    = "style.css"
	FontsFile    = "fonts.css"
	CoverFile    = "cover.jpg"
	CoverPNGFile = "cover.png"
	PagesDir     = "pages"
	RenderDir    = "render"
)

// PagesDownloadedKey records how many pages were fetched.
const PagesDownloadedKey = "num_pages_downloaded"

// Sentinel errors.
var (
	ErrNoManifest  = errors.New("manifest.json not found")
	ErrManifest    = errors.New("invalid manifest")
	ErrMissingPage = errors.New("page missing from source directory")
)

// Dir is a book working directory.
type Dir struct {
	Root string
}

// Create makes a fresh, uniquely named working directory under parent.
// An empty parent means the system temp directory.
func Create(parent string) (*Dir, error) {
	if parent == "" {
		parent = os.TempDir()
	}
	root := filepath.Join(parent, "bookdl-"+uuid.NewString())
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating working directory: %w", err)
	}
	return &Dir{Root: root}, nil
}

// At uses root as the working directory, creating it when missing.
func At(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating working directory: %w", err)
	}
	return &Dir{Root: root}, nil
}

// Open uses an existing working directory, as left by an earlier download.
func Open(root string) (*Dir, error) {
	if !fileutil.DirExists(root) {
		return nil, fmt.Errorf("source directory not found: %s", root)
	}
	return &Dir{Root: root}, nil
}

func (d *Dir) Path(name string) string { return filepath.Join(d.Root, name) }

// PagePath returns the location of a fetched page by 1-based number.
func (d *Dir) PagePath(number int) string {
	return filepath.Join(d.Root, PagesDir, strconv.Itoa(number)+".html")
}

// RenderHTMLPath returns the standalone document rendered for a page.
func (d *Dir) RenderHTMLPath(number int) string {
	return filepath.Join(d.Root, RenderDir, strconv.Itoa(number)+".html")
}

// RenderPDFPath returns the single-page PDF captured for a page.
func (d *Dir) RenderPDFPath(number int) string {
	return filepath.Join(d.Root, RenderDir, strconv.Itoa(number)+".pdf")
}

// WritePage persists a page fragment and returns its path.
func (d *Dir) WritePage(number int, content string) (string, error) {
	path := d.PagePath(number)
	if err := fileutil.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing page %d: %w", number, err)
	}
	return path, nil
}

// ReadPage loads a persisted page fragment. A page that was never written
// wraps ErrMissingPage.
func (d *Dir) ReadPage(number int) (string, error) {
	data, err := os.ReadFile(d.PagePath(number))
	if errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: page %d in %s", ErrMissingPage, number, d.Root)
	}
	if err != nil {
		return "", fmt.Errorf("reading page %d: %w", number, err)
	}
	return string(data), nil
}

// WriteText writes a text file at the root of the directory. name must be
// a single path element.
func (d *Dir) WriteText(name, content string) error {
	if err := fileutil.ValidateName(name); err != nil {
		return fmt.Errorf("writing %q: %w", name, err)
	}
	if err := fileutil.WriteFile(d.Path(name), []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

// ReadText reads a text file at the root of the directory. A missing file
// yields an empty string and os.ErrNotExist.
func (d *Dir) ReadText(name string) (string, error) {
	if err := fileutil.ValidateName(name); err != nil {
		return "", fmt.Errorf("reading %q: %w", name, err)
	}
	data, err := os.ReadFile(d.Path(name))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CoverPath returns the stored cover image, or "" when there is none.
func (d *Dir) CoverPath() string {
	for _, name := range []string{CoverFile, CoverPNGFile} {
		if p := d.Path(name); fileutil.FileExists(p) {
			return p
		}
	}
	return ""
}

// WriteManifest stores the platform record with the number of downloaded
// pages.
func (d *Dir) WriteManifest(record map[string]any, pages int) error {
	out := make(map[string]any, len(record)+1)
	for k, v := range record {
		out[k] = v
	}
	out[PagesDownloadedKey] = pages

	data, err := json.MarshalIndent(out, "", "    ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrManifest, err)
	}
	if err := fileutil.WriteFile(d.Path(ManifestFile), data, 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// ReadManifest returns the raw manifest bytes.
func (d *Dir) ReadManifest() ([]byte, error) {
	data, err := os.ReadFile(d.Path(ManifestFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w in %s", ErrNoManifest, d.Root)
	}
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	return data, nil
}

// CountPages returns how many consecutive pages, starting at 1, exist on
// disk. Used when a manifest does not record the count.
func (d *Dir) CountPages() int {
	n := 0
	for fileutil.FileExists(d.PagePath(n + 1)) {
		n++
	}
	return n
}

// Remove deletes the working directory.
func (d *Dir) Remove() error {
	return os.RemoveAll(d.Root)
}
