package fetch

import (
	"context"
	"log/slog"
	"time"

	"github.com/alnah/go-bookdl/internal/session"
	"github.com/alnah/go-bookdl/internal/socketio"
)

// SocketDialer dials the platform's socket.io page service with a session.
type SocketDialer struct {
	dialer *socketio.Dialer
	apiKey string
}

// NewSocketDialer creates a Dialer for endpoint. An empty endpoint selects
// socketio.DefaultEndpoint.
func NewSocketDialer(s *session.Session, endpoint string, timeout time.Duration, logger *slog.Logger) *SocketDialer {
	return &SocketDialer{
		dialer: &socketio.Dialer{
			Endpoint: endpoint,
			HTTP:     s.Client(),
			Timeout:  timeout,
			Logger:   logger,
			Cookies:  s.CookieHeader,
		},
		apiKey: s.APIKey(),
	}
}

// Dial opens a new connection.
func (d *SocketDialer) Dial(ctx context.Context) (Conn, error) {
	c, err := d.dialer.Dial(ctx, d.apiKey)
	if err != nil {
		return nil, err
	}
	return c, nil
}
