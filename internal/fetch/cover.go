package fetch

import (
	"context"
	"fmt"
	"net/http"

	"github.com/alnah/go-bookdl/internal/workdir"
)

// Cover is the book cover image.
type Cover struct {
	Path string
	Data []byte
}

// FetchCover downloads the cover once, without retries, and persists it.
// The caller decides whether a failure matters; it never affects pages.
func (f *Fetcher) FetchCover(ctx context.Context, coverURL string) (*Cover, error) {
	if coverURL == "" {
		return nil, fmt.Errorf("%w: book has no cover", ErrCover)
	}
	ctx, cancel := context.WithTimeout(ctx, f.cover)
	defer cancel()

	res, err := f.http.R().SetContext(ctx).Get(coverURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCover, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("%w: status %d", ErrCover, res.StatusCode())
	}
	data := res.Body()

	name, ok := coverFileName(data)
	if !ok {
		return nil, fmt.Errorf("%w: unsupported image type %s", ErrCover, http.DetectContentType(data))
	}
	if err := f.dir.WriteText(name, string(data)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCover, err)
	}
	f.logger.Debug("fetched cover", "bytes", len(data))
	return &Cover{Path: f.dir.Path(name), Data: data}, nil
}

// coverFileName picks the file name matching the image format.
func coverFileName(data []byte) (string, bool) {
	switch http.DetectContentType(data) {
	case "image/jpeg":
		return workdir.CoverFile, true
	case "image/png":
		return workdir.CoverPNGFile, true
	default:
		return "", false
	}
}
