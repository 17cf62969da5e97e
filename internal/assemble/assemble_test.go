package assemble

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/alnah/go-bookdl/internal/fetch"
	"github.com/alnah/go-bookdl/internal/render"
)

func TestMain(m *testing.M) {
	api.DisableConfigDir()
	os.Exit(m.Run())
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func testImage(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 20, 28))
	for y := 0; y < 28; y++ {
		for x := 0; x < 20; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// pagePDF writes a one-page PDF standing in for a rendered artifact.
func pagePDF(t *testing.T, dir string, index int) render.Artifact {
	t.Helper()
	pngPath := filepath.Join(dir, "page.png")
	var buf bytes.Buffer
	if err := png.Encode(&buf, testImage(color.RGBA{R: uint8(index * 40), A: 255})); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(pngPath, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "render", string(rune('a'+index))+".pdf")
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := api.ImportImagesFile([]string{pngPath}, out, nil, nil); err != nil {
		t.Fatalf("creating fixture PDF: %v", err)
	}
	return render.Artifact{Index: index, Path: out}
}

func artifacts(t *testing.T, dir string, n int) []render.Artifact {
	t.Helper()
	arts := make([]render.Artifact, n)
	for i := range arts {
		arts[i] = pagePDF(t, dir, i)
	}
	return arts
}

func jpegCover(t *testing.T, dir string) *fetch.Cover {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, testImage(color.RGBA{B: 200, A: 255}), nil); err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(dir, "cover.jpg")
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return &fetch.Cover{Path: p, Data: buf.Bytes()}
}

func unitNames(units []Unit) string {
	names := make([]string, len(units))
	for i, u := range units {
		names[i] = u.String()
	}
	return strings.Join(names, ",")
}

// ---------------------------------------------------------------------------
// Sequence
// ---------------------------------------------------------------------------

func TestCheckSequence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		indices []int
		missing int
		dup     bool
		wantErr bool
	}{
		{name: "empty", indices: nil},
		{name: "ordered", indices: []int{0, 1, 2}},
		{name: "shuffled", indices: []int{2, 0, 1}},
		{name: "missing 3 of 10", indices: []int{0, 1, 2, 4, 5, 6, 7, 8, 9}, missing: 3, wantErr: true},
		{name: "missing first", indices: []int{1, 2}, missing: 0, wantErr: true},
		{name: "duplicate", indices: []int{0, 1, 1}, missing: 1, dup: true, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := CheckSequence(tt.indices)
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("CheckSequence() error = %v", err)
				}
				return
			}
			if !errors.Is(err, ErrIncompleteSequence) {
				t.Fatalf("error = %v, want ErrIncompleteSequence", err)
			}
			var se *SequenceError
			if !errors.As(err, &se) {
				t.Fatalf("error %T is not a SequenceError", err)
			}
			if se.Index != tt.missing || se.Duplicate != tt.dup {
				t.Errorf("SequenceError = %+v, want index %d dup %v", se, tt.missing, tt.dup)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{in: "pdf", want: FormatPDF},
		{in: " HTML ", want: FormatHTML},
		{in: "", want: FormatPDF},
		{in: "epub", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownFormat) {
				t.Errorf("ParseFormat(%q) error = %v, want ErrUnknownFormat", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// PDF
// ---------------------------------------------------------------------------

func TestAssemblePDF(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		pages     int
		withCover bool
		wantUnits string
	}{
		{name: "cover and pages", pages: 3, withCover: true, wantUnits: "cover,0,1,2"},
		{name: "pages only", pages: 3, wantUnits: "0,1,2"},
		{name: "single page", pages: 1, wantUnits: "0"},
		{name: "cover only", pages: 0, withCover: true, wantUnits: "cover"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			arts := artifacts(t, dir, tt.pages)
			var cover *fetch.Cover
			if tt.withCover {
				cover = jpegCover(t, dir)
			}
			out := filepath.Join(dir, "out", "book.pdf")

			doc, err := New().AssemblePDF(context.Background(), cover, arts, out)
			if err != nil {
				t.Fatalf("AssemblePDF() error = %v", err)
			}
			if got := unitNames(doc.Units); got != tt.wantUnits {
				t.Errorf("units = %s, want %s", got, tt.wantUnits)
			}
			n, err := api.PageCountFile(out)
			if err != nil {
				t.Fatal(err)
			}
			if n != len(doc.Units) || doc.Pages != n {
				t.Errorf("page count = %d, doc.Pages = %d, units = %d", n, doc.Pages, len(doc.Units))
			}
			if _, err := os.Stat(out + ".part"); !os.IsNotExist(err) {
				t.Error("temporary output left behind")
			}
		})
	}
}

func TestAssemblePDF_OrdersByIndex(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	arts := artifacts(t, dir, 3)
	arts[0], arts[2] = arts[2], arts[0]

	doc, err := New().AssemblePDF(context.Background(), nil, arts, filepath.Join(dir, "book.pdf"))
	if err != nil {
		t.Fatalf("AssemblePDF() error = %v", err)
	}
	if got := unitNames(doc.Units); got != "0,1,2" {
		t.Errorf("units = %s, want 0,1,2", got)
	}
}

func TestAssemblePDF_MissingIndex(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	arts := artifacts(t, dir, 4)
	arts = append(arts[:2], arts[3:]...)
	out := filepath.Join(dir, "book.pdf")

	_, err := New().AssemblePDF(context.Background(), nil, arts, out)
	var se *SequenceError
	if !errors.As(err, &se) || se.Index != 2 {
		t.Fatalf("error = %v, want missing page 2", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("no output may be written for an incomplete sequence")
	}
}

func TestAssemblePDF_BrokenCoverIsSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	arts := artifacts(t, dir, 2)
	coverPath := filepath.Join(dir, "cover.jpg")
	if err := os.WriteFile(coverPath, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	doc, err := New().AssemblePDF(context.Background(), &fetch.Cover{Path: coverPath}, arts, filepath.Join(dir, "book.pdf"))
	if err != nil {
		t.Fatalf("AssemblePDF() error = %v", err)
	}
	if got := unitNames(doc.Units); got != "0,1" {
		t.Errorf("units = %s, want 0,1", got)
	}
}

func TestAssemblePDF_InfoPage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	info := pagePDF(t, t.TempDir(), 9)
	arts := artifacts(t, dir, 1)

	doc, err := New(WithInfo(Info{PDF: info.Path})).AssemblePDF(context.Background(), jpegCover(t, dir), arts, filepath.Join(dir, "book.pdf"))
	if err != nil {
		t.Fatalf("AssemblePDF() error = %v", err)
	}
	if got := unitNames(doc.Units); got != "cover,info,0" {
		t.Errorf("units = %s, want cover,info,0", got)
	}
	if doc.Pages != 3 {
		t.Errorf("Pages = %d, want 3", doc.Pages)
	}
}

func TestAssemblePDF_CorruptArtifact(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	arts := artifacts(t, dir, 2)
	if err := os.WriteFile(arts[1].Path, []byte("%PDF-1.7 garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "book.pdf")

	if _, err := New().AssemblePDF(context.Background(), nil, arts, out); !errors.Is(err, ErrMerge) {
		t.Fatalf("error = %v, want ErrMerge", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("no output may be written when merging fails")
	}
}

func TestAssemblePDF_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().AssemblePDF(ctx, nil, nil, filepath.Join(t.TempDir(), "x.pdf")); !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

// ---------------------------------------------------------------------------
// HTML
// ---------------------------------------------------------------------------

func TestAssembleHTML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	pages := []fetch.FetchedPage{
		{Index: 1, Number: 2, Content: `<p>second<span class="s5"> </span>page</p>`},
		{Index: 0, Number: 1, Content: `<p>first</p>`},
	}
	assets := fetch.BookAssets{Stylesheet: ".s5{width:4px}", Fonts: "@font-face{}"}
	out := filepath.Join(dir, "book.html")

	a := New(WithInfo(Info{HTML: `<section class="bookdl-info">about</section>`}))
	doc, err := a.AssembleHTML(context.Background(), jpegCover(t, dir), pages, assets, "Pan & Tadeusz", out)
	if err != nil {
		t.Fatalf("AssembleHTML() error = %v", err)
	}
	if got := unitNames(doc.Units); got != "cover,info,0,1" {
		t.Errorf("units = %s", got)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)

	wantHead := `<!DOCTYPE html><html><head><title>Pan &amp; Tadeusz</title><meta charset="UTF-8"><style>.s5{width:4px}</style><style>@font-face{}</style></head><body>`
	if !strings.HasPrefix(got, wantHead) {
		t.Errorf("head = %.200s", got)
	}
	if !strings.Contains(got, `src="data:image/jpeg;base64,`) {
		t.Error("cover should be inlined as a data URI")
	}
	if !strings.Contains(got, "<p>second page</p>") {
		t.Error("spacer span should become a space")
	}

	order := []string{"bookdl-cover", "bookdl-info", "<p>first</p>", "second"}
	last := -1
	for _, s := range order {
		i := strings.Index(got, s)
		if i <= last {
			t.Fatalf("%q out of order in output", s)
		}
		last = i
	}
}

func TestAssembleHTML_MissingIndex(t *testing.T) {
	t.Parallel()

	pages := []fetch.FetchedPage{{Index: 0}, {Index: 2}}
	out := filepath.Join(t.TempDir(), "book.html")
	if _, err := New().AssembleHTML(context.Background(), nil, pages, fetch.BookAssets{}, "t", out); !errors.Is(err, ErrIncompleteSequence) {
		t.Fatalf("error = %v, want ErrIncompleteSequence", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("no output may be written for an incomplete sequence")
	}
}

func TestCleanPage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: `a<span></span>b`, want: "a b"},
		{in: `a<span class="s5">  </span>b`, want: "a b"},
		{in: `a<span style="width:3px">` + "\n" + `</span>b`, want: "a b"},
		{in: `<span>kept</span>`, want: `<span>kept</span>`},
		{in: `no spans`, want: `no spans`},
	}
	for _, tt := range tests {
		if got := CleanPage(tt.in); got != tt.want {
			t.Errorf("CleanPage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Cleanup
// ---------------------------------------------------------------------------

func TestCleanup(t *testing.T) {
	t.Parallel()

	newWorkdir := func(t *testing.T) string {
		t.Helper()
		dir := filepath.Join(t.TempDir(), "bookdl-x")
		if err := os.MkdirAll(filepath.Join(dir, "pages"), 0o755); err != nil {
			t.Fatal(err)
		}
		return dir
	}

	t.Run("removes intermediates", func(t *testing.T) {
		t.Parallel()
		dir := newWorkdir(t)
		if err := Cleanup(dir, filepath.Join(t.TempDir(), "book.pdf"), false); err != nil {
			t.Fatalf("Cleanup() error = %v", err)
		}
		if _, err := os.Stat(dir); !os.IsNotExist(err) {
			t.Error("working directory should be gone")
		}
	})

	t.Run("retain keeps intermediates", func(t *testing.T) {
		t.Parallel()
		dir := newWorkdir(t)
		if err := Cleanup(dir, "", true); err != nil {
			t.Fatalf("Cleanup() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(dir, "pages")); err != nil {
			t.Error("working directory should be kept")
		}
	})

	t.Run("refuses when output is inside", func(t *testing.T) {
		t.Parallel()
		dir := newWorkdir(t)
		err := Cleanup(dir, filepath.Join(dir, "book.pdf"), false)
		if !errors.Is(err, ErrCleanupRefused) {
			t.Fatalf("error = %v, want ErrCleanupRefused", err)
		}
		if _, err := os.Stat(dir); err != nil {
			t.Error("working directory should be kept")
		}
	})

	t.Run("sibling with shared prefix is not inside", func(t *testing.T) {
		t.Parallel()
		dir := newWorkdir(t)
		if err := Cleanup(dir, dir+".pdf", false); err != nil {
			t.Fatalf("Cleanup() error = %v", err)
		}
	})
}
