package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"time"

	"github.com/go-resty/resty/v2"
)

// Platform describes the reading platform's endpoints.
type Platform struct {
	BaseURL      string // e.g. https://libra.ibuk.pl
	LoginPath    string // credential login endpoint, relative to BaseURL
	CookieDomain string // domain whose cookies are imported from the browser
}

// Institution describes the institutional identity provider and the
// proxy that fronts the platform for its members.
type Institution struct {
	GateURL       string // PDS login form target
	ProxyURL      string // proxy endpoint that accepts the PDS handle
	PlatformURL   string // platform root as seen through the proxy
	Institute     string // institute code submitted with the form
	CallingSystem string
}

// DefaultPlatform returns the libra.ibuk.pl endpoints.
func DefaultPlatform() Platform {
	return Platform{
		BaseURL:      "https://libra.ibuk.pl",
		LoginPath:    "/credentials/login-bsr",
		CookieDomain: "libra.ibuk.pl",
	}
}

// DefaultInstitution returns the Warsaw University of Technology library
// gateway, the institution the platform's SSO flow was built against.
func DefaultInstitution() Institution {
	return Institution{
		GateURL:       "https://gate.bg.pw.edu.pl/pds",
		ProxyURL:      "http://eczyt.bg.pw.edu.pl/pds/x",
		PlatformURL:   "http://eczyt.bg.pw.edu.pl/han/ibuk/https/libra.ibuk.pl/",
		Institute:     "WTU50",
		CallingSystem: "han",
	}
}

// CookieSource reads cookies for a domain from a local browser profile.
type CookieSource interface {
	Cookies(ctx context.Context, domain string) ([]*http.Cookie, error)
}

// Authenticator mints Sessions. It holds configuration only and is safe to
// reuse.
type Authenticator struct {
	platform    Platform
	institution Institution
	cookies     CookieSource
	userAgent   string
	timeout     time.Duration
	logger      *slog.Logger
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithPlatform overrides the platform endpoints.
func WithPlatform(p Platform) Option {
	return func(a *Authenticator) { a.platform = p }
}

// WithInstitution overrides the institutional login endpoints.
func WithInstitution(i Institution) Option {
	return func(a *Authenticator) { a.institution = i }
}

// WithCookieSource sets the browser cookie reader used by CookieImport.
func WithCookieSource(src CookieSource) Option {
	return func(a *Authenticator) { a.cookies = src }
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent sent with every request.
func WithUserAgent(ua string) Option {
	return func(a *Authenticator) {
		if ua != "" {
			a.userAgent = ua
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Authenticator) {
		if l != nil {
			a.logger = l
		}
	}
}

// NewAuthenticator creates an Authenticator for the default platform.
func NewAuthenticator(opts ...Option) *Authenticator {
	a := &Authenticator{
		platform:    DefaultPlatform(),
		institution: DefaultInstitution(),
		userAgent:   defaultUserAgent,
		timeout:     defaultTimeout,
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate establishes a session with the given strategy. The returned
// session is ready for metadata resolution without further negotiation.
func (a *Authenticator) Authenticate(ctx context.Context, strategy Strategy, creds Credentials) (*Session, error) {
	base, err := url.Parse(a.platform.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing platform URL: %w", err)
	}
	client, jar, err := newClient(a.platform.BaseURL, a.userAgent, a.timeout)
	if err != nil {
		return nil, err
	}
	s := &Session{client: client, jar: jar, base: base, identity: strategy}

	a.logger.Debug("authenticating", "strategy", strategy.String())

	switch strategy {
	case CredentialLogin:
		err = a.loginCredentials(ctx, s, creds)
	case CookieImport:
		err = a.importCookies(ctx, s)
	case InstitutionalLogin:
		err = a.loginInstitution(ctx, s, creds)
	default:
		err = fmt.Errorf("%w: %d", ErrUnknownStrategy, int(strategy))
	}
	if err != nil {
		return nil, err
	}

	a.logger.Info("authenticated", "strategy", strategy.String())
	return s, nil
}

// loginCredentials submits the username and password as JSON to the login
// endpoint; the platform answers with the API key cookie.
func (a *Authenticator) loginCredentials(ctx context.Context, s *Session, creds Credentials) error {
	if creds.Username == "" || creds.Password == "" {
		return fmt.Errorf("%w: username and password are required", ErrInvalidCredentials)
	}

	res, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"email":    creds.Username,
			"password": creds.Password,
		}).
		Post(a.platform.LoginPath)
	if err != nil {
		return fmt.Errorf("%w: login request: %v", ErrNetwork, err)
	}
	switch code := res.StatusCode(); {
	case code == http.StatusBadRequest, code == http.StatusUnauthorized,
		code == http.StatusForbidden, code == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: login rejected with status %d", ErrInvalidCredentials, code)
	case code >= 500:
		return fmt.Errorf("%w: login returned status %d", ErrNetwork, code)
	case code >= 400:
		return fmt.Errorf("%w: login returned status %d", ErrInvalidCredentials, code)
	}

	key, err := a.apiKeyFromJar(ctx, s, s.base)
	if err != nil {
		return err
	}
	if key == "" {
		return fmt.Errorf("%w: platform issued no %s cookie", ErrInvalidCredentials, APIKeyCookie)
	}
	s.apiKey = key
	return nil
}

// importCookies loads the platform cookies from the local browser. The API
// key cookie is kept aside as the session key; the others go into the jar.
func (a *Authenticator) importCookies(ctx context.Context, s *Session) error {
	if a.cookies == nil {
		return fmt.Errorf("%w: no cookie source configured", ErrNoCookiesFound)
	}
	cookies, err := a.cookies.Cookies(ctx, a.platform.CookieDomain)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoCookiesFound, err)
	}

	var key string
	rest := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == APIKeyCookie {
			key = c.Value
			continue
		}
		rest = append(rest, c)
	}
	if key == "" {
		return fmt.Errorf("%w: no %s cookie for %s", ErrNoCookiesFound, APIKeyCookie, a.platform.CookieDomain)
	}

	s.jar.SetCookies(s.base, scopeCookies(s.base, rest))
	s.apiKey = key
	a.logger.Debug("imported browser cookies", "count", len(cookies))
	return nil
}

var pdsHandlePattern = regexp.MustCompile(`PDS_HANDLE\s*=\s*(\d+)`)

// loginInstitution performs the SSO handshake: credentials go to the
// institution's gate, which answers with a PDS handle; the handle is
// presented to the proxy, which then mints a platform session reachable
// through the proxied platform URL.
func (a *Authenticator) loginInstitution(ctx context.Context, s *Session, creds Credentials) error {
	if creds.Username == "" || creds.Password == "" {
		return fmt.Errorf("%w: username and password are required", ErrInvalidCredentials)
	}
	inst := a.institution

	// Step 1: gate login.
	res, err := s.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"func":             "login",
			"calling_system":   inst.CallingSystem,
			"term1":            "short",
			"url":              inst.ProxyURL,
			"selfreg":          "",
			"bor_id":           creds.Username,
			"bor_verification": creds.Password,
			"institute":        inst.Institute,
		}).
		Post(inst.GateURL)
	if err != nil {
		return fmt.Errorf("%w: gate request: %v", ErrNetwork, err)
	}
	if err := expectHandshakeStatus("gate", res); err != nil {
		return err
	}
	m := pdsHandlePattern.FindStringSubmatch(res.String())
	if m == nil {
		return fmt.Errorf("%w: gate returned no PDS handle", ErrSSOHandshakeFailed)
	}
	handle := m[1]
	a.logger.Debug("institution gate accepted credentials")

	// Step 2: hand the PDS handle back to the proxy.
	res, err = s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"selfreg":          "",
			"bor_id":           creds.Username,
			"bor_verification": creds.Password,
			"institute":        inst.Institute,
			"pds_handle":       handle,
		}).
		Get(inst.ProxyURL)
	if err != nil {
		return fmt.Errorf("%w: proxy request: %v", ErrNetwork, err)
	}
	if err := expectHandshakeStatus("proxy", res); err != nil {
		return err
	}

	// Step 3: open the platform through the proxy to mint the session.
	res, err = s.client.R().SetContext(ctx).Get(inst.PlatformURL)
	if err != nil {
		return fmt.Errorf("%w: proxied platform request: %v", ErrNetwork, err)
	}
	if err := expectHandshakeStatus("platform", res); err != nil {
		return err
	}

	proxied, _ := url.Parse(inst.PlatformURL)
	key := findCookie(s.jar, APIKeyCookie, s.base, proxied)
	if key == "" {
		key, err = a.apiKeyFromJar(ctx, s, proxied)
		if err != nil {
			return err
		}
	}
	if key == "" {
		return fmt.Errorf("%w: no %s cookie after redirect back", ErrSSOHandshakeFailed, APIKeyCookie)
	}
	s.apiKey = key
	return nil
}

// expectHandshakeStatus accepts 2xx and 3xx responses.
func expectHandshakeStatus(step string, res *resty.Response) error {
	if code := res.StatusCode(); code < 200 || code >= 400 {
		return fmt.Errorf("%w: %s step returned status %d", ErrSSOHandshakeFailed, step, code)
	}
	return nil
}

// apiKeyFromJar looks up the API key cookie, visiting the platform root
// once when the jar does not have it yet.
func (a *Authenticator) apiKeyFromJar(ctx context.Context, s *Session, extra *url.URL) (string, error) {
	if key := findCookie(s.jar, APIKeyCookie, s.base, extra); key != "" {
		return key, nil
	}
	res, err := s.client.R().SetContext(ctx).Get("/")
	if err != nil {
		return "", fmt.Errorf("%w: platform root: %v", ErrNetwork, err)
	}
	if res.StatusCode() >= 500 {
		return "", fmt.Errorf("%w: platform root returned status %d", ErrNetwork, res.StatusCode())
	}
	return findCookie(s.jar, APIKeyCookie, s.base, extra), nil
}
