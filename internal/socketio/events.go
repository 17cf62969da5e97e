package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrDenied is returned when the platform refuses to serve a page.
var ErrDenied = errors.New("platform refused the request")

// Reply is the body of every book event reply.
type Reply struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	HTML    string `json:"html"`
}

// pageRequest mirrors what the platform's reader sends. Both spellings of
// the page number are expected.
type pageRequest struct {
	BookID      int     `json:"bookId"`
	Compressed  int     `json:"compressed"`
	Format      string  `json:"format"`
	Pagenumber  int     `json:"pagenumber"`
	FontSize    float64 `json:"fontSize"`
	PageNumber  int     `json:"pageNumber"`
	Compression int     `json:"compression"`
	Type        string  `json:"type"`
	Width       int     `json:"width"`
}

type cssRequest struct {
	BookID   int     `json:"bookId"`
	Width    int     `json:"width"`
	FontSize float64 `json:"fontSize"`
}

type fontRequest struct {
	BookID int `json:"bookId"`
}

// Page fetches the HTML fragment of a 1-based page number.
func (c *Conn) Page(ctx context.Context, bookID, number int) (string, error) {
	reply, err := c.request(ctx, "page", pageRequest{
		BookID:      bookID,
		Compressed:  10,
		Format:      "html",
		Pagenumber:  number,
		FontSize:    12,
		PageNumber:  number,
		Compression: 10,
		Type:        "standard",
		Width:       716,
	})
	if err != nil {
		return "", err
	}
	return reply.HTML, nil
}

// Stylesheet fetches the book's stylesheet.
func (c *Conn) Stylesheet(ctx context.Context, bookID int) (string, error) {
	reply, err := c.request(ctx, "css", cssRequest{BookID: bookID, Width: 839, FontSize: 15.04})
	if err != nil {
		return "", err
	}
	return reply.HTML, nil
}

// Fonts fetches the book's @font-face rules. The platform emits
// "src: url(...); format(...)", which browsers reject; the stray semicolon
// is removed.
func (c *Conn) Fonts(ctx context.Context, bookID int) (string, error) {
	reply, err := c.request(ctx, "font", fontRequest{BookID: bookID})
	if err != nil {
		return "", err
	}
	return NormalizeFonts(reply.HTML), nil
}

// NormalizeFonts fixes the font-face rules served by the platform.
func NormalizeFonts(css string) string {
	return strings.ReplaceAll(css, "; format", " format")
}

func (c *Conn) request(ctx context.Context, event string, payload any) (Reply, error) {
	data, err := c.Emit(ctx, event, payload)
	if err != nil {
		return Reply{}, err
	}
	var reply Reply
	if err := json.Unmarshal(data, &reply); err != nil {
		return Reply{}, fmt.Errorf("%w: decoding %s reply: %v", ErrProtocol, event, err)
	}
	if reply.Error {
		msg := reply.Message
		if msg == "" {
			msg = "error fetching " + event
		}
		return Reply{}, fmt.Errorf("%w: %s", ErrDenied, msg)
	}
	return reply, nil
}
