// Package metadata resolves a book's identity and page sequence from its
// page on the reading platform.
package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/alnah/go-bookdl/internal/yamlutil"
)

// Sentinel errors.
var (
	ErrUnauthorized       = errors.New("not authorized to read this book")
	ErrNotFound           = errors.New("book not found")
	ErrMetadataIncomplete = errors.New("book metadata incomplete")
	ErrNetwork            = errors.New("network error")
)

// Defaults applied when optional fields are missing.
const (
	DefaultAuthor      = "Unknown Author"
	DefaultTitle       = "Untitled"
	DefaultPublisher   = "Unknown Publisher"
	DefaultSlug        = "untitled"
	DefaultDescription = "No description available."
)

// Entry is one table-of-contents line.
type Entry struct {
	Title string
	Page  int // 1-based page number, 0 when unknown
	Level int // nesting depth, 0 for top level
}

// BookMetadata is the resolved identity of a book.
type BookMetadata struct {
	ID           int
	Title        string
	Author       string
	Publisher    string
	ISBN         string
	Pages        int
	Description  string
	CoverURL     string
	SluggedTitle string
	Contents     []Entry
	// Raw is the platform's record, kept verbatim for the manifest.
	Raw map[string]any
}

// PageLocator addresses one page of a book.
type PageLocator struct {
	Index  int // 0-based position in the output
	Number int // 1-based page number on the platform
	BookID int
}

// Locators returns the ordered page locators for meta, truncated to max
// pages when max > 0.
func Locators(meta BookMetadata, max int) []PageLocator {
	n := meta.Pages
	if max > 0 && max < n {
		n = max
	}
	if n < 0 {
		n = 0
	}
	locs := make([]PageLocator, n)
	for i := range locs {
		locs[i] = PageLocator{Index: i, Number: i + 1, BookID: meta.ID}
	}
	return locs
}

// FromRecord builds BookMetadata from the platform's book record. The book
// index and page count are required; everything else is defaulted.
func FromRecord(raw map[string]any) (BookMetadata, error) {
	id, ok := IntField(raw, "index")
	if !ok {
		return BookMetadata{}, fmt.Errorf("%w: missing or invalid book index", ErrMetadataIncomplete)
	}
	pages, ok := IntField(raw, "pages")
	if !ok || pages <= 0 {
		return BookMetadata{}, fmt.Errorf("%w: missing or invalid page count", ErrMetadataIncomplete)
	}

	meta := BookMetadata{
		ID:           id,
		Pages:        pages,
		Title:        stringField(raw, "title", DefaultTitle),
		Author:       stringField(raw, "author", DefaultAuthor),
		Publisher:    stringField(raw, "redaction", DefaultPublisher),
		ISBN:         stringField(raw, "isbn", ""),
		Description:  stringField(raw, "review", DefaultDescription),
		SluggedTitle: stringField(raw, "slugged_title", DefaultSlug),
		CoverURL:     coverURL(raw),
		Contents:     contents(raw),
		Raw:          raw,
	}
	return meta, nil
}

// summary is the machine-readable form printed by DescribeYAML.
type summary struct {
	ID          int            `yaml:"id"`
	Title       string         `yaml:"title"`
	Author      string         `yaml:"author"`
	Publisher   string         `yaml:"publisher"`
	ISBN        string         `yaml:"isbn,omitempty"`
	Pages       int            `yaml:"pages"`
	Description string         `yaml:"description"`
	CoverURL    string         `yaml:"cover_url,omitempty"`
	Slug        string         `yaml:"slug"`
	Contents    []summaryEntry `yaml:"contents,omitempty"`
}

type summaryEntry struct {
	Title string `yaml:"title"`
	Page  int    `yaml:"page,omitempty"`
	Level int    `yaml:"level"`
}

// DescribeYAML renders meta as a YAML document.
func DescribeYAML(meta BookMetadata) ([]byte, error) {
	doc := summary{
		ID:          meta.ID,
		Title:       meta.Title,
		Author:      meta.Author,
		Publisher:   meta.Publisher,
		ISBN:        meta.ISBN,
		Pages:       meta.Pages,
		Description: meta.Description,
		CoverURL:    meta.CoverURL,
		Slug:        meta.SluggedTitle,
	}
	for _, e := range meta.Contents {
		doc.Contents = append(doc.Contents, summaryEntry(e))
	}
	return yamlutil.Marshal(doc)
}

// Describe renders a human-readable summary of meta.
func Describe(meta BookMetadata) string {
	var b strings.Builder
	sep := strings.Repeat("-", 20)
	b.WriteString(sep + "\n")
	fmt.Fprintf(&b, "Author:      %s\n", meta.Author)
	fmt.Fprintf(&b, "Title:       %s\n", meta.Title)
	fmt.Fprintf(&b, "Publisher:   %s\n", meta.Publisher)
	if meta.ISBN != "" {
		fmt.Fprintf(&b, "ISBN:        %s\n", meta.ISBN)
	}
	fmt.Fprintf(&b, "Pages:       %d\n", meta.Pages)
	fmt.Fprintf(&b, "Book ID:     %d\n", meta.ID)
	fmt.Fprintf(&b, "Description: %s\n", meta.Description)
	cover := meta.CoverURL
	if cover == "" {
		cover = "none"
	}
	fmt.Fprintf(&b, "Cover URL:   %s\n", cover)
	if len(meta.Contents) > 0 {
		b.WriteString("Contents:\n")
		for _, e := range meta.Contents {
			indent := strings.Repeat("  ", e.Level+1)
			if e.Page > 0 {
				fmt.Fprintf(&b, "%s%s (p. %d)\n", indent, e.Title, e.Page)
			} else {
				fmt.Fprintf(&b, "%s%s\n", indent, e.Title)
			}
		}
	}
	b.WriteString(sep + "\n")
	return b.String()
}

// IntField reads key from raw, accepting JSON numbers and numeric strings.
func IntField(raw map[string]any, key string) (int, bool) {
	switch v := raw[key].(type) {
	case json.Number:
		n, err := strconv.Atoi(v.String())
		if err != nil {
			f, ferr := v.Float64()
			if ferr != nil || f != float64(int(f)) {
				return 0, false
			}
			return int(f), true
		}
		return n, true
	case float64:
		if v != float64(int(v)) {
			return 0, false
		}
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func stringField(raw map[string]any, key, def string) string {
	switch v := raw[key].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	case json.Number:
		return v.String()
	}
	return def
}

func coverURL(raw map[string]any) string {
	covers, ok := raw["covers"].([]any)
	if !ok || len(covers) == 0 {
		return ""
	}
	first, ok := covers[0].(map[string]any)
	if !ok {
		return ""
	}
	return stringField(first, "jpg_location", "")
}

// contents reads the optional table of contents. Entries may be nested
// under "children"; malformed entries are skipped.
func contents(raw map[string]any) []Entry {
	for _, key := range []string{"contents", "toc", "table_of_contents"} {
		if list, ok := raw[key].([]any); ok {
			var out []Entry
			appendEntries(&out, list, 0)
			return out
		}
	}
	return nil
}

func appendEntries(out *[]Entry, list []any, level int) {
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		title := stringField(m, "title", stringField(m, "name", ""))
		if title != "" {
			page, _ := IntField(m, "page")
			*out = append(*out, Entry{Title: title, Page: page, Level: level})
		}
		if children, ok := m["children"].([]any); ok {
			appendEntries(out, children, level+1)
		}
	}
}
