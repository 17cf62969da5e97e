package fetch

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/alnah/go-bookdl/internal/session"
)

func TestNewSocketDialer_CarriesSession(t *testing.T) {
	t.Parallel()

	s, err := session.New("https://libra.example", "api-key", session.CookieImport, []*http.Cookie{
		{Name: "PHPSESSID", Value: "abc"},
	})
	if err != nil {
		t.Fatal(err)
	}

	d := NewSocketDialer(s, "https://libra.example/socket.io/", time.Second, nil)
	if d.apiKey != "api-key" {
		t.Errorf("apiKey = %q", d.apiKey)
	}
	if d.dialer.HTTP != s.Client() {
		t.Error("handshake does not use the session client")
	}
	u, _ := url.Parse("https://libra.example/socket.io/")
	if got := d.dialer.Cookies(u); got != "PHPSESSID=abc" {
		t.Errorf("upgrade cookies = %q, want PHPSESSID=abc", got)
	}
}
