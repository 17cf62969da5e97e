package assemble

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"net/http"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/alnah/go-bookdl/internal/fetch"
	"github.com/alnah/go-bookdl/internal/fileutil"
)

// emptySpan matches spacer spans; the platform lays words out with them.
var emptySpan = regexp.MustCompile(`<span[^>]*>\s*</span>`)

// CleanPage replaces empty spacer spans with a single space so words do not
// run together once the platform layout is gone.
func CleanPage(content string) string {
	return emptySpan.ReplaceAllString(content, " ")
}

// AssembleHTML writes one standalone document: title, charset, stylesheet
// and fonts in the head, then the cover, the info page and every page in
// index order.
func (a *Assembler) AssembleHTML(ctx context.Context, cover *fetch.Cover, pages []fetch.FetchedPage, assets fetch.BookAssets, title, out string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	ordered := slices.Clone(pages)
	slices.SortFunc(ordered, func(x, y fetch.FetchedPage) int { return x.Index - y.Index })
	indices := make([]int, len(ordered))
	for i, p := range ordered {
		indices[i] = p.Index
	}
	if err := CheckSequence(indices); err != nil {
		return Document{}, err
	}

	var b strings.Builder
	var units []Unit
	b.WriteString("<!DOCTYPE html><html><head><title>")
	b.WriteString(html.EscapeString(title))
	b.WriteString(`</title><meta charset="UTF-8"><style>`)
	b.WriteString(assets.Stylesheet)
	b.WriteString("</style><style>")
	b.WriteString(assets.Fonts)
	b.WriteString("</style></head><body>")

	if cover != nil {
		if src, err := coverDataURI(cover); err != nil {
			a.logger.Warn("skipping cover", "error", err)
		} else {
			fmt.Fprintf(&b, `<section class="bookdl-cover"><img alt="%s" src="%s" style="max-width:100%%"></section>`, html.EscapeString(title), src)
			units = append(units, Unit{Kind: UnitCover, Index: -1})
		}
	}
	if a.info.HTML != "" {
		b.WriteString(a.info.HTML)
		units = append(units, Unit{Kind: UnitInfo, Index: -1})
	}
	for _, p := range ordered {
		if err := ctx.Err(); err != nil {
			return Document{}, err
		}
		fmt.Fprintf(&b, `<section class="bookdl-page" data-page="%d">`, p.Number)
		b.WriteString(CleanPage(p.Content))
		b.WriteString("</section>")
		units = append(units, Unit{Kind: UnitPage, Index: p.Index})
	}
	b.WriteString("</body></html>")

	if err := fileutil.WriteFile(out, []byte(b.String()), 0o644); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMerge, err)
	}
	a.logger.Debug("assembled html", "path", out, "pages", len(ordered))
	return Document{Path: out, Format: FormatHTML, Units: units, Pages: len(units)}, nil
}

func coverDataURI(cover *fetch.Cover) (string, error) {
	data := cover.Data
	if len(data) == 0 {
		var err error
		if data, err = os.ReadFile(cover.Path); err != nil {
			return "", err
		}
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return "", fmt.Errorf("cover is %s, not an image", mime)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
