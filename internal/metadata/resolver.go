package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/alnah/go-bookdl/internal/session"
)

const (
	stateSelector = "script#app-libra-2-state"
	detailsKey    = "DETAILS_CACHE_KEY"
)

// Resolver fetches a book page and extracts its metadata.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver creates a Resolver. A nil logger discards output.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{logger: logger}
}

// Resolve fetches bookURL with the session and returns the book metadata and
// the full page sequence.
func (r *Resolver) Resolve(ctx context.Context, s *session.Session, bookURL string) (BookMetadata, []PageLocator, error) {
	res, err := s.Client().R().SetContext(ctx).Get(bookURL)
	if err != nil {
		return BookMetadata{}, nil, fmt.Errorf("%w: fetching book page: %v", ErrNetwork, err)
	}
	switch code := res.StatusCode(); {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return BookMetadata{}, nil, fmt.Errorf("%w: status %d", ErrUnauthorized, code)
	case code == http.StatusNotFound:
		return BookMetadata{}, nil, fmt.Errorf("%w: %s", ErrNotFound, bookURL)
	case code >= 500:
		return BookMetadata{}, nil, fmt.Errorf("%w: book page returned status %d", ErrNetwork, code)
	case code >= 400:
		return BookMetadata{}, nil, fmt.Errorf("%w: book page returned status %d", ErrNotFound, code)
	}

	meta, err := Parse(res.Body())
	if err != nil {
		return BookMetadata{}, nil, err
	}
	r.logger.Debug("resolved book", "book", meta.ID, "title", meta.Title, "pages", meta.Pages)
	return meta, Locators(meta, 0), nil
}

// Parse extracts BookMetadata from the HTML of a book page. The platform
// embeds its application state as JSON with quotes escaped as "&q;".
func Parse(page []byte) (BookMetadata, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return BookMetadata{}, fmt.Errorf("%w: parsing book page: %v", ErrNotFound, err)
	}
	script := doc.Find(stateSelector).First()
	if script.Length() == 0 {
		return BookMetadata{}, fmt.Errorf("%w: page has no application state", ErrNotFound)
	}
	state := strings.ReplaceAll(script.Text(), "&q;", `"`)

	var root map[string]json.RawMessage
	if err := json.Unmarshal([]byte(state), &root); err != nil {
		return BookMetadata{}, fmt.Errorf("%w: decoding application state: %v", ErrNotFound, err)
	}
	details, ok := root[detailsKey]
	if !ok || string(details) == "null" {
		return BookMetadata{}, fmt.Errorf("%w: application state has no book details", ErrNotFound)
	}

	record, err := DecodeRecord(details)
	if err != nil {
		return BookMetadata{}, fmt.Errorf("%w: decoding book details: %v", ErrMetadataIncomplete, err)
	}
	return FromRecord(record)
}

// DecodeRecord decodes a JSON book record, keeping numbers exact.
func DecodeRecord(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var record map[string]any
	if err := dec.Decode(&record); err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("record is not an object")
	}
	return record, nil
}
