package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "Jan Kowalski - Fizyka", "Jan Kowalski - Fizyka"},
		{"colon removed", "Fizyka: tom 1", "Fizyka tom 1"},
		{"quotes and slashes", `A/B "C"`, "AB C"},
		{"all forbidden", `<>:"/\|?*`, ""},
		{"trailing dots trimmed", "  Title.. ", "Title"},
		{"control characters", "a\tb\nc", "abc"},
		{"unicode kept", "Żółć – gęślą jaźń", "Żółć – gęślą jaźń"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := SanitizeName(tt.in); got != tt.want {
				t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestBookFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		author, title  string
		fallback, ext  string
		want           string
	}{
		{"author and title", "Jan Nowak", "Analiza", "analiza", "pdf", "Jan Nowak - Analiza.pdf"},
		{"ext with dot", "A", "B", "", ".html", "A - B.html"},
		{"empty falls back", "", "", "slugged-title", "pdf", "slugged-title.pdf"},
		{"nothing usable", "", "", "", "pdf", "book.pdf"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := BookFileName(tt.author, tt.title, tt.fallback, tt.ext)
			if got != tt.want {
				t.Errorf("BookFileName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBookBaseName(t *testing.T) {
	t.Parallel()

	if got := BookBaseName("Jan Nowak", "Fizyka: tom 1", ""); got != "Jan Nowak - Fizyka tom 1" {
		t.Errorf("BookBaseName() = %q", got)
	}
	if got := BookBaseName("", "", "fizyka"); got != "fizyka" {
		t.Errorf("BookBaseName() fallback = %q", got)
	}
}

func TestValidateName(t *testing.T) {
	t.Parallel()

	if err := ValidateName("1.html"); err != nil {
		t.Errorf("ValidateName(1.html) = %v", err)
	}
	if err := ValidateName(""); !errors.Is(err, ErrEmptyName) {
		t.Errorf("ValidateName(\"\") = %v, want ErrEmptyName", err)
	}
	for _, name := range []string{"../x", "a\\b", "..", "."} {
		if err := ValidateName(name); !errors.Is(err, ErrPathTraversal) {
			t.Errorf("ValidateName(%q) = %v, want ErrPathTraversal", name, err)
		}
	}
}

func TestIsInside(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name string
		path string
		want bool
	}{
		{"same dir", dir, true},
		{"child", filepath.Join(dir, "out.pdf"), true},
		{"sibling with prefix", dir + "-2", false},
		{"parent", filepath.Dir(dir), false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := IsInside(dir, tt.path)
			if err != nil {
				t.Fatalf("IsInside() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsInside(%q, %q) = %v, want %v", dir, tt.path, got, tt.want)
			}
		})
	}
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "manifest.json")
	if err := WriteFile(path, []byte(`{"a":1}`), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("content = %q", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}
}

func TestWriteFile_CreatesParents(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "pages", "1.html")
	if err := WriteFile(path, []byte("<p>1</p>"), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	if !FileExists(path) {
		t.Error("file not created")
	}
}

func TestFileAndDirExists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	if !FileExists(file) || FileExists(dir) {
		t.Error("FileExists mismatch")
	}
	if !DirExists(dir) || DirExists(file) {
		t.Error("DirExists mismatch")
	}
	if !IsURL("https://libra.ibuk.pl/") || IsURL("libra.ibuk.pl") {
		t.Error("IsURL mismatch")
	}
}
