package assemble

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/alnah/go-bookdl/internal/fetch"
	"github.com/alnah/go-bookdl/internal/render"
)

// AssemblePDF merges cover, info page and artifacts, in index order, into
// out. The output is written to a temporary file and renamed into place once
// its page count has been verified.
func (a *Assembler) AssemblePDF(ctx context.Context, cover *fetch.Cover, artifacts []render.Artifact, out string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	ordered := slices.Clone(artifacts)
	slices.SortFunc(ordered, func(x, y render.Artifact) int { return x.Index - y.Index })
	indices := make([]int, len(ordered))
	for i, art := range ordered {
		indices[i] = art.Index
	}
	if err := CheckSequence(indices); err != nil {
		return Document{}, err
	}

	var inFiles []string
	var units []Unit
	if cover != nil {
		if p, err := a.coverPDF(cover); err != nil {
			a.logger.Warn("skipping cover", "error", err)
		} else {
			inFiles = append(inFiles, p)
			units = append(units, Unit{Kind: UnitCover, Index: -1})
		}
	}
	if a.info.PDF != "" {
		inFiles = append(inFiles, a.info.PDF)
		units = append(units, Unit{Kind: UnitInfo, Index: -1})
	}
	for _, art := range ordered {
		inFiles = append(inFiles, art.Path)
		units = append(units, Unit{Kind: UnitPage, Index: art.Index})
	}
	if len(inFiles) == 0 {
		return Document{}, fmt.Errorf("%w: nothing to assemble", ErrMerge)
	}

	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMerge, err)
	}
	tmp := out + ".part"
	defer func() { _ = os.Remove(tmp) }()

	if err := a.merge(inFiles, tmp); err != nil {
		return Document{}, err
	}

	n, err := api.PageCountFile(tmp)
	if err != nil {
		return Document{}, fmt.Errorf("%w: counting pages: %v", ErrMerge, err)
	}
	if n != len(inFiles) {
		return Document{}, fmt.Errorf("%w: merged %d pages, expected %d", ErrMerge, n, len(inFiles))
	}
	if err := os.Rename(tmp, out); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMerge, err)
	}

	a.logger.Debug("assembled pdf", "path", out, "pages", n)
	return Document{Path: out, Format: FormatPDF, Units: units, Pages: n}, nil
}

func (a *Assembler) merge(inFiles []string, out string) error {
	if len(inFiles) == 1 {
		if err := copyFile(inFiles[0], out); err != nil {
			return fmt.Errorf("%w: %v", ErrMerge, err)
		}
		return nil
	}
	if err := api.MergeCreateFile(inFiles, out, false, a.conf); err != nil {
		return fmt.Errorf("%w: %v", ErrMerge, err)
	}
	return nil
}

// coverPDF converts the cover image to a one-page PDF next to it.
func (a *Assembler) coverPDF(cover *fetch.Cover) (string, error) {
	if cover.Path == "" {
		return "", errors.New("cover has no file")
	}
	p := strings.TrimSuffix(cover.Path, filepath.Ext(cover.Path)) + ".pdf"
	// Importing into an existing file appends pages.
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	if err := api.ImportImagesFile([]string{cover.Path}, p, nil, a.conf); err != nil {
		return "", fmt.Errorf("converting cover: %w", err)
	}
	return p, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 -- artifact path
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(dst) // #nosec G304 -- output path
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
