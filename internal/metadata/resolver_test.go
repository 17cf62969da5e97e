package metadata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alnah/go-bookdl/internal/session"
)

// statePage wraps details in the platform's escaped application state.
func statePage(details string) string {
	state := fmt.Sprintf(`{"OTHER_KEY":{"x":1},"DETAILS_CACHE_KEY":%s}`, details)
	escaped := strings.ReplaceAll(state, `"`, "&q;")
	return `<!doctype html><html><head><title>Book</title></head><body>` +
		`<app-root></app-root>` +
		`<script id="app-libra-2-state" type="application/json">` + escaped + `</script>` +
		`</body></html>`
}

const fullDetails = `{
	"index": 12345,
	"title": "Mechanika ogólna",
	"author": "Jan Kowalski",
	"redaction": "PWN",
	"isbn": "978-83-01-00000-0",
	"pages": "312",
	"slugged_title": "mechanika-ogolna",
	"review": "Podręcznik.",
	"covers": [{"jpg_location": "https://cdn.example/cover.jpg"}],
	"contents": [
		{"title": "Wstęp", "page": 1},
		{"title": "Statyka", "page": "9", "children": [{"title": "Siły", "page": 11}]}
	]
}`

func TestParse_FullRecord(t *testing.T) {
	t.Parallel()

	meta, err := Parse([]byte(statePage(fullDetails)))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if meta.ID != 12345 {
		t.Errorf("ID = %d, want 12345", meta.ID)
	}
	if meta.Pages != 312 {
		t.Errorf("Pages = %d, want 312 (numeric string)", meta.Pages)
	}
	if meta.Title != "Mechanika ogólna" || meta.Author != "Jan Kowalski" || meta.Publisher != "PWN" {
		t.Errorf("identity = %q/%q/%q", meta.Title, meta.Author, meta.Publisher)
	}
	if meta.CoverURL != "https://cdn.example/cover.jpg" {
		t.Errorf("CoverURL = %q", meta.CoverURL)
	}
	want := []Entry{
		{Title: "Wstęp", Page: 1, Level: 0},
		{Title: "Statyka", Page: 9, Level: 0},
		{Title: "Siły", Page: 11, Level: 1},
	}
	if len(meta.Contents) != len(want) {
		t.Fatalf("Contents = %+v, want %+v", meta.Contents, want)
	}
	for i := range want {
		if meta.Contents[i] != want[i] {
			t.Errorf("Contents[%d] = %+v, want %+v", i, meta.Contents[i], want[i])
		}
	}
	if meta.Raw["slugged_title"] != "mechanika-ogolna" {
		t.Errorf("Raw not preserved: %v", meta.Raw["slugged_title"])
	}
}

func TestParse_DefaultsOptionalFields(t *testing.T) {
	t.Parallel()

	meta, err := Parse([]byte(statePage(`{"index": 7, "pages": 5}`)))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if meta.Author != DefaultAuthor || meta.Title != DefaultTitle || meta.Publisher != DefaultPublisher {
		t.Errorf("defaults not applied: %+v", meta)
	}
	if meta.ISBN != "" || meta.CoverURL != "" || meta.Contents != nil {
		t.Errorf("optional fields should be empty: %+v", meta)
	}
	if meta.Description != DefaultDescription || meta.SluggedTitle != DefaultSlug {
		t.Errorf("description/slug defaults not applied: %+v", meta)
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		page    string
		wantErr error
	}{
		{
			name:    "no state script",
			page:    "<html><body>Zaloguj się</body></html>",
			wantErr: ErrNotFound,
		},
		{
			name:    "state without details",
			page:    `<script id="app-libra-2-state">{&q;OTHER&q;:1}</script>`,
			wantErr: ErrNotFound,
		},
		{
			name:    "malformed state",
			page:    `<script id="app-libra-2-state">{not json</script>`,
			wantErr: ErrNotFound,
		},
		{
			name:    "missing page count",
			page:    statePage(`{"index": 1, "title": "T"}`),
			wantErr: ErrMetadataIncomplete,
		},
		{
			name:    "unparsable page count",
			page:    statePage(`{"index": 1, "pages": "N/A"}`),
			wantErr: ErrMetadataIncomplete,
		},
		{
			name:    "missing book index",
			page:    statePage(`{"pages": 10}`),
			wantErr: ErrMetadataIncomplete,
		},
		{
			name:    "details is not an object",
			page:    statePage(`[1,2]`),
			wantErr: ErrMetadataIncomplete,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.page))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLocators(t *testing.T) {
	t.Parallel()

	meta := BookMetadata{ID: 9, Pages: 5}

	tests := []struct {
		name string
		max  int
		want int
	}{
		{"no limit", 0, 5},
		{"limit below total", 3, 3},
		{"limit above total", 50, 5},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			locs := Locators(meta, tt.max)
			if len(locs) != tt.want {
				t.Fatalf("len = %d, want %d", len(locs), tt.want)
			}
			for i, l := range locs {
				if l.Index != i || l.Number != i+1 || l.BookID != 9 {
					t.Errorf("locs[%d] = %+v", i, l)
				}
			}
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/book/ok", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err != nil || c.Value != "s1" {
			http.Error(w, "login required", http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, statePage(fullDetails))
	})
	mux.HandleFunc("/book/forbidden", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no", http.StatusForbidden)
	})
	mux.HandleFunc("/book/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "oops", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s, err := session.New(srv.URL, "key", session.CookieImport, []*http.Cookie{{Name: "session", Value: "s1"}})
	if err != nil {
		t.Fatalf("session.New() error = %v", err)
	}
	r := NewResolver(nil)

	t.Run("resolves metadata and locators", func(t *testing.T) {
		meta, locs, err := r.Resolve(context.Background(), s, srv.URL+"/book/ok")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if meta.ID != 12345 || len(locs) != 312 {
			t.Errorf("got id=%d locators=%d", meta.ID, len(locs))
		}
	})

	tests := []struct {
		path    string
		wantErr error
	}{
		{"/book/forbidden", ErrUnauthorized},
		{"/book/missing", ErrNotFound},
		{"/book/broken", ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			_, _, err := r.Resolve(context.Background(), s, srv.URL+tt.path)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Resolve() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	meta, err := Parse([]byte(statePage(fullDetails)))
	if err != nil {
		t.Fatal(err)
	}
	out := Describe(meta)
	for _, want := range []string{
		"Author:      Jan Kowalski",
		"Title:       Mechanika ogólna",
		"Pages:       312",
		"Cover URL:   https://cdn.example/cover.jpg",
		"    Siły (p. 11)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Describe() missing %q in:\n%s", want, out)
		}
	}
}

func TestDescribeYAML(t *testing.T) {
	t.Parallel()

	meta, err := Parse([]byte(statePage(fullDetails)))
	if err != nil {
		t.Fatal(err)
	}
	out, err := DescribeYAML(meta)
	if err != nil {
		t.Fatalf("DescribeYAML() error = %v", err)
	}
	for _, want := range []string{
		"author: Jan Kowalski",
		"pages: 312",
		"cover_url: https://cdn.example/cover.jpg",
		"title: Siły",
		"page: 11",
	} {
		if !strings.Contains(string(out), want) {
			t.Errorf("DescribeYAML() missing %q in:\n%s", want, out)
		}
	}

	bare, err := DescribeYAML(BookMetadata{ID: 1, Title: "T"})
	if err != nil {
		t.Fatal(err)
	}
	for _, absent := range []string{"isbn:", "cover_url:", "contents:"} {
		if strings.Contains(string(bare), absent) {
			t.Errorf("DescribeYAML() of a bare book has %q:\n%s", absent, bare)
		}
	}
}
