package signup

import (
	"strings"
	"time"

	"github.com/goliatone/go-router"
)

// CookieWriter is the subset of router.Context used to write cookies
type CookieWriter interface {
	Cookie(cookie *router.Cookie)
}

// Cookies writes the session cookie and short lived flow cookies. Every
// cookie is HttpOnly and SameSite=Lax, Secure follows configuration.
type Cookies struct {
	SessionName string
	SessionTTL  time.Duration
	Secure      bool
	Now         func() time.Time
}

// NewCookies builds a Cookies from Config and the token lifetime
func NewCookies(cfg Config, sessionTTL time.Duration) *Cookies {
	name := cfg.GetSessionCookieName()
	if name == "" {
		name = DefaultSessionCookieName
	}
	return &Cookies{
		SessionName: name,
		SessionTTL:  sessionTTL,
		Secure:      cfg.GetSecureCookies(),
		Now:         time.Now,
	}
}

// SetSession sets the signed session token
func (c *Cookies) SetSession(ctx CookieWriter, token string) {
	c.Set(ctx, c.SessionName, token, c.SessionTTL)
}

// ClearSession expires the session cookie
func (c *Cookies) ClearSession(ctx CookieWriter) {
	c.Clear(ctx, c.SessionName)
}

// Set writes a cookie valid for ttl
func (c *Cookies) Set(ctx CookieWriter, name, value string, ttl time.Duration) {
	ctx.Cookie(&router.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  c.now().Add(ttl),
		HTTPOnly: true,
		Secure:   c.Secure,
		SameSite: "Lax",
	})
}

// Clear expires a cookie
func (c *Cookies) Clear(ctx CookieWriter, name string) {
	ctx.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  c.now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   c.Secure,
		SameSite: "Lax",
	})
}

func (c *Cookies) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// RequestOrigin derives scheme://host for the request. X-Forwarded-Host
// and X-Forwarded-Proto are only read when trustProxy is set.
// fallbackScheme is used when no forwarded scheme applies.
func RequestOrigin(req RequestReader, fallbackScheme string, trustProxy bool) string {
	var host, scheme string
	if trustProxy {
		host = firstHeaderValue(req.Header("X-Forwarded-Host"))
		scheme = strings.ToLower(firstHeaderValue(req.Header("X-Forwarded-Proto")))
	}
	if host == "" {
		host = strings.TrimSpace(req.Header("Host"))
	}
	if host == "" {
		return ""
	}

	if scheme == "" {
		scheme = fallbackScheme
	}
	if scheme == "" {
		scheme = "http"
	}

	return scheme + "://" + host
}

func firstHeaderValue(value string) string {
	first, _, _ := strings.Cut(value, ",")
	return strings.TrimSpace(first)
}
