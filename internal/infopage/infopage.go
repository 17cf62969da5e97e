// Package infopage builds the optional book information page: metadata and
// contents written as Markdown, then converted to an HTML fragment.
package infopage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/alnah/go-bookdl/internal/metadata"
)

// ErrBuild indicates the information page could not be produced.
var ErrBuild = errors.New("building information page failed")

// DateLayout formats the retrieval date.
const DateLayout = "2006-01-02"

// maxContents caps the contents list; the page is captured as a single sheet.
const maxContents = 40

// Builder renders information pages.
type Builder struct {
	md    goldmark.Markdown
	tmpl  *template.Template
	style string
	now   func() time.Time
}

// Option configures a Builder.
type Option func(*Builder)

// WithClock sets the time source for the retrieval date.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// NewBuilder loads the templates, preferring files from customDir when it
// is set, and prepares the Markdown converter.
func NewBuilder(customDir string, opts ...Option) (*Builder, error) {
	loader, err := newLoader(customDir)
	if err != nil {
		return nil, err
	}
	text, err := loader.load(templateFile)
	if err != nil {
		return nil, err
	}
	style, err := loader.load(styleFile)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New(templateFile).Funcs(template.FuncMap{
		"md":     escapeMarkdown,
		"indent": func(level int) string { return strings.Repeat("  ", level) },
	}).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrBuild, templateFile, err)
	}

	b := &Builder{
		md: goldmark.New(
			goldmark.WithExtensions(extension.Table),
			goldmark.WithRendererOptions(html.WithXHTML()),
		),
		tmpl:  tmpl,
		style: style,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// view is the data handed to the Markdown template.
type view struct {
	metadata.BookMetadata
	Retrieved string
}

// Markdown returns the page source for meta.
func (b *Builder) Markdown(meta metadata.BookMetadata) (string, error) {
	v := view{BookMetadata: meta, Retrieved: b.now().Format(DateLayout)}
	v.Description = plainText(meta.Description)
	if len(v.Contents) > maxContents {
		v.Contents = v.Contents[:maxContents]
	}

	var buf bytes.Buffer
	if err := b.tmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBuild, err)
	}
	return buf.String(), nil
}

// Fragment returns the page as a self-styled HTML section, usable both as a
// rendered page body and inline in an HTML book.
func (b *Builder) Fragment(ctx context.Context, meta metadata.BookMetadata) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	src, err := b.Markdown(meta)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	out.WriteString(`<section class="bookdl-info"><style>`)
	out.WriteString(b.style)
	out.WriteString("</style>")
	if err := b.md.Convert([]byte(src), &out); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBuild, err)
	}
	out.WriteString("</section>")
	return out.String(), nil
}

// plainText strips markup; platform descriptions often carry HTML.
func plainText(s string) string {
	if !strings.Contains(s, "<") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", `*`, `\*`, `_`, `\_`, `[`, `\[`, `]`, `\]`,
	`|`, `\|`, `<`, `&lt;`, `>`, `&gt;`, `#`, `\#`,
)

// escapeMarkdown keeps metadata text literal and on one line.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(strings.Join(strings.Fields(s), " "))
}
