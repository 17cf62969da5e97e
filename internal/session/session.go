// Package session establishes an authenticated session against the reading
// platform using one of three strategies: credential login, cookies imported
// from a local browser, or an institutional single-sign-on handshake.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Sentinel errors for authentication failures.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoCookiesFound     = errors.New("no session cookies found for platform")
	ErrSSOHandshakeFailed = errors.New("institutional login handshake failed")
	ErrNetwork            = errors.New("network error")
	ErrUnknownStrategy    = errors.New("unknown authentication strategy")
	ErrInvalidSession     = errors.New("session carries no API key")
)

// APIKeyCookie is the cookie the platform uses to carry the API key that
// the page transport presents on every request.
const APIKeyCookie = "ilApiKey"

// Strategy selects how a session is established. Exactly one is active per run.
type Strategy int

const (
	CredentialLogin Strategy = iota
	CookieImport
	InstitutionalLogin
)

func (s Strategy) String() string {
	switch s {
	case CredentialLogin:
		return "credentials"
	case CookieImport:
		return "cookies"
	case InstitutionalLogin:
		return "institution"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// Credentials are the username and password for CredentialLogin and
// InstitutionalLogin. CookieImport ignores them.
type Credentials struct {
	Username string
	Password string
}

// Session is an authenticated context: an HTTP client carrying the
// platform cookies plus the API key extracted from them. It is created by
// Authenticator and read-shared by every fetch worker; nothing mutates it
// after Authenticate returns.
type Session struct {
	client   *resty.Client
	jar      http.CookieJar
	base     *url.URL
	apiKey   string
	identity Strategy
}

// Valid reports whether the session carries an API key.
func (s *Session) Valid() bool {
	return s != nil && s.apiKey != ""
}

// APIKey returns the platform API key.
func (s *Session) APIKey() string { return s.apiKey }

// Identity returns the strategy that minted the session.
func (s *Session) Identity() Strategy { return s.identity }

// Client returns the HTTP client bound to the session's cookie jar.
func (s *Session) Client() *resty.Client { return s.client }

// BaseURL returns the platform root the session was established against.
func (s *Session) BaseURL() *url.URL { return s.base }

// Cookies returns the cookies the session would send to u.
func (s *Session) Cookies(u *url.URL) []*http.Cookie {
	return s.jar.Cookies(u)
}

// CookieHeader renders the cookies for u as a Cookie header value.
func (s *Session) CookieHeader(u *url.URL) string {
	cookies := s.Cookies(u)
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

// New wraps an existing API key and cookie set into a Session.
// Used by tests and by callers that already hold a key.
func New(baseURL, apiKey string, identity Strategy, cookies []*http.Cookie) (*Session, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client, jar, err := newClient(baseURL, defaultUserAgent, defaultTimeout)
	if err != nil {
		return nil, err
	}
	jar.SetCookies(base, scopeCookies(base, cookies))
	return &Session{
		client:   client,
		jar:      jar,
		base:     base,
		apiKey:   apiKey,
		identity: identity,
	}, nil
}

const (
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"
	defaultTimeout   = 30 * time.Second
)

// newClient creates a resty client with a fresh cookie jar.
func newClient(baseURL, userAgent string, timeout time.Duration) (*resty.Client, *cookiejar.Jar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetCookieJar(jar)
	client.SetHeader("User-Agent", userAgent)
	client.SetTimeout(timeout)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	return client, jar, nil
}

// scopeCookies rewrites imported cookies so the jar accepts them for base.
// Cookies whose domain does not cover base are narrowed to a host-only
// cookie; the jar would otherwise drop them.
func scopeCookies(base *url.URL, cookies []*http.Cookie) []*http.Cookie {
	host := base.Hostname()
	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		cc := *c
		domain := strings.TrimPrefix(cc.Domain, ".")
		if domain != "" && host != domain && !strings.HasSuffix(host, "."+domain) {
			cc.Domain = ""
		}
		if cc.Path == "" {
			cc.Path = "/"
		}
		out = append(out, &cc)
	}
	return out
}

// findCookie returns the value of the first cookie called name that the jar
// would send to any of urls.
func findCookie(jar http.CookieJar, name string, urls ...*url.URL) string {
	for _, u := range urls {
		if u == nil {
			continue
		}
		for _, c := range jar.Cookies(u) {
			if c.Name == name && c.Value != "" {
				return c.Value
			}
		}
	}
	return ""
}
