// Package socketio is a minimal socket.io (engine.io v4) client for the
// reading platform's page service: a polling handshake, an upgrade to
// websocket, then request/reply events on a single namespace.
package socketio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gorilla/websocket"
)

// Sentinel errors.
var (
	ErrHandshake = errors.New("socket.io handshake failed")
	ErrProtocol  = errors.New("unexpected socket.io frame")
	ErrClosed    = errors.New("socket.io connection closed")
)

// DefaultEndpoint is the platform's page service.
const DefaultEndpoint = "https://libra23.ibuk.pl/socket.io/"

// DefaultNamespace is the namespace carrying book events.
const DefaultNamespace = "/books"

// engine.io packet types.
const (
	pktOpen    = "0"
	pktClose   = "1"
	pktPing    = "2"
	pktPong    = "3"
	pktMessage = "4"
	pktUpgrade = "5"
)

// socket.io packet types, carried inside an engine.io message.
const (
	sioConnect    = pktMessage + "0"
	sioDisconnect = pktMessage + "1"
	sioEvent      = pktMessage + "2"
)

// Dialer opens connections to the page service.
type Dialer struct {
	Endpoint  string        // polling endpoint, http(s)
	Namespace string        // socket.io namespace
	HTTP      *resty.Client // carries the platform cookies for the handshake
	Timeout   time.Duration // handshake and per-reply read timeout
	Logger    *slog.Logger

	// Cookies renders the Cookie header sent with the websocket upgrade
	// for the polling endpoint. Nil sends none.
	Cookies func(u *url.URL) string

	ids yeast
}

// upgradeHeader carries the session cookies onto the websocket upgrade.
func (d *Dialer) upgradeHeader(endpoint string) http.Header {
	if d.Cookies == nil {
		return nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil
	}
	cookie := d.Cookies(u)
	if cookie == "" {
		return nil
	}
	return http.Header{"Cookie": []string{cookie}}
}

type openPacket struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"`
	PingTimeout  int      `json:"pingTimeout"`
}

// Dial performs the polling handshake, upgrades to websocket and joins the
// namespace. It returns once the server has signalled it is ready.
func (d *Dialer) Dial(ctx context.Context, apiKey string) (*Conn, error) {
	endpoint := d.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	ns := d.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	client := d.HTTP
	if client == nil {
		client = resty.New()
	}

	sid, err := d.handshake(ctx, client, endpoint, apiKey)
	if err != nil {
		return nil, err
	}

	wsURL, err := websocketURL(endpoint, apiKey, sid)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
		Proxy:            http.ProxyFromEnvironment,
	}
	ws, res, err := dialer.DialContext(ctx, wsURL, d.upgradeHeader(endpoint))
	if err != nil {
		if res != nil {
			return nil, fmt.Errorf("%w: websocket upgrade returned status %d", ErrHandshake, res.StatusCode)
		}
		return nil, fmt.Errorf("%w: %v", ErrHandshake, err)
	}

	c := &Conn{
		ws:      ws,
		prefix:  nsPrefix(ns),
		timeout: timeout,
		logger:  logger,
	}
	if err := c.hello(ctx); err != nil {
		ws.Close()
		return nil, err
	}
	logger.Debug("socket.io connected", "sid", sid)
	return c, nil
}

// handshake opens an engine.io session over HTTP polling and returns its id.
func (d *Dialer) handshake(ctx context.Context, client *resty.Client, endpoint, apiKey string) (string, error) {
	res, err := client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"apiKey":    apiKey,
			"isServer":  "0",
			"EIO":       "4",
			"transport": "polling",
			"t":         d.ids.next(),
		}).
		Get(endpoint)
	if err != nil {
		return "", fmt.Errorf("%w: polling request: %v", ErrHandshake, err)
	}
	if res.IsError() {
		return "", fmt.Errorf("%w: polling request returned status %d", ErrHandshake, res.StatusCode())
	}

	// A polling payload may batch packets separated by the record separator.
	body := res.String()
	if i := strings.IndexByte(body, 0x1e); i >= 0 {
		body = body[:i]
	}
	if !strings.HasPrefix(body, pktOpen) {
		return "", fmt.Errorf("%w: expected open packet, got %q", ErrHandshake, truncate(body))
	}
	var open openPacket
	if err := json.Unmarshal([]byte(body[1:]), &open); err != nil {
		return "", fmt.Errorf("%w: decoding open packet: %v", ErrHandshake, err)
	}
	if open.SID == "" {
		return "", fmt.Errorf("%w: open packet has no sid", ErrHandshake)
	}
	return open.SID, nil
}

func websocketURL(endpoint, apiKey, sid string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	case "http", "ws":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	q := url.Values{}
	q.Set("apiKey", apiKey)
	q.Set("isServer", "0")
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	q.Set("sid", sid)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func nsPrefix(ns string) string {
	if ns == "" || ns == "/" {
		return ""
	}
	if !strings.HasPrefix(ns, "/") {
		ns = "/" + ns
	}
	return ns + ","
}

// Conn is one upgraded socket.io connection. Requests are serialized: each
// Emit waits for its reply before the next is sent.
type Conn struct {
	mu      sync.Mutex
	ws      *websocket.Conn
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
	closed  bool
}

// hello completes the upgrade and joins the namespace.
func (c *Conn) hello(ctx context.Context) error {
	stop := c.watch(ctx)
	defer stop()

	if err := c.write(pktPing + "probe"); err != nil {
		return fmt.Errorf("%w: sending probe: %v", ErrHandshake, err)
	}
	msg, err := c.read()
	if err != nil {
		return fmt.Errorf("%w: awaiting probe: %v", ErrHandshake, err)
	}
	if msg != pktPong+"probe" {
		c.logger.Warn("unexpected probe reply", "frame", truncate(msg))
	}
	if err := c.write(pktUpgrade); err != nil {
		return fmt.Errorf("%w: sending upgrade: %v", ErrHandshake, err)
	}
	if err := c.write(sioConnect + c.prefix); err != nil {
		return fmt.Errorf("%w: joining namespace: %v", ErrHandshake, err)
	}

	// Wait for the namespace ack, then the server's "ready" event.
	acked := false
	for {
		msg, err := c.read()
		if err != nil {
			return fmt.Errorf("%w: awaiting namespace: %v", ErrHandshake, err)
		}
		switch {
		case msg == pktPing:
			if err := c.write(pktPong); err != nil {
				return fmt.Errorf("%w: %v", ErrHandshake, err)
			}
		case strings.HasPrefix(msg, sioConnect+c.prefix):
			acked = true
		case strings.HasPrefix(msg, sioDisconnect+c.prefix), strings.HasPrefix(msg, pktMessage+"4"+c.prefix):
			return fmt.Errorf("%w: namespace refused: %s", ErrHandshake, truncate(msg))
		case strings.HasPrefix(msg, sioEvent+c.prefix):
			name, _, err := decodeEvent(strings.TrimPrefix(msg, sioEvent+c.prefix))
			if err == nil && name == "ready" {
				if !acked {
					c.logger.Debug("ready before namespace ack")
				}
				return nil
			}
			c.logger.Debug("ignoring event before ready", "frame", truncate(msg))
		default:
			c.logger.Debug("ignoring frame before ready", "frame", truncate(msg))
		}
	}
}

// Emit sends event with payload (marshalled to a JSON string, as the
// platform expects) and returns the raw payload of the next event the
// server sends on the namespace.
func (c *Conn) Emit(ctx context.Context, event string, payload any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", event, err)
	}
	frame, err := json.Marshal([]any{event, string(body)})
	if err != nil {
		return nil, fmt.Errorf("encoding %s frame: %w", event, err)
	}

	stop := c.watch(ctx)
	defer stop()

	if err := c.write(sioEvent + c.prefix + string(frame)); err != nil {
		return nil, c.fail(ctx, err)
	}
	for {
		msg, err := c.read()
		if err != nil {
			return nil, c.fail(ctx, err)
		}
		switch {
		case msg == pktPing:
			if err := c.write(pktPong); err != nil {
				return nil, c.fail(ctx, err)
			}
		case msg == pktClose, strings.HasPrefix(msg, sioDisconnect+c.prefix):
			c.closed = true
			return nil, ErrClosed
		case strings.HasPrefix(msg, sioEvent+c.prefix):
			_, data, err := decodeEvent(strings.TrimPrefix(msg, sioEvent+c.prefix))
			if err != nil {
				return nil, err
			}
			return data, nil
		default:
			c.logger.Debug("ignoring frame", "frame", truncate(msg))
		}
	}
}

// Close closes the underlying websocket.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return c.ws.Close()
}

// watch interrupts blocked reads and writes when ctx is done. The
// connection is unusable afterwards.
func (c *Conn) watch(ctx context.Context) func() bool {
	return context.AfterFunc(ctx, func() {
		_ = c.ws.NetConn().Close()
	})
}

// fail marks the connection unusable and prefers the context error.
func (c *Conn) fail(ctx context.Context, err error) error {
	c.closed = true
	_ = c.ws.Close()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return fmt.Errorf("%w: %v", ErrProtocol, err)
}

func (c *Conn) write(msg string) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.timeout))
	return c.ws.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (c *Conn) read() (string, error) {
	_ = c.ws.SetReadDeadline(time.Now().Add(c.timeout))
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeEvent splits an event array ["name", payload]. The platform sends
// the payload as a JSON-encoded string; plain JSON values are accepted too.
func decodeEvent(body string) (string, json.RawMessage, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(body), &parts); err != nil {
		return "", nil, fmt.Errorf("%w: decoding event: %v", ErrProtocol, err)
	}
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("%w: empty event", ErrProtocol)
	}
	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return "", nil, fmt.Errorf("%w: event name: %v", ErrProtocol, err)
	}
	if len(parts) < 2 {
		return name, nil, nil
	}
	data := parts[1]
	var inner string
	if err := json.Unmarshal(data, &inner); err == nil {
		data = json.RawMessage(inner)
	}
	return name, data, nil
}

func truncate(s string) string {
	const max = 120
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
