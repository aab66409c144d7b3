package signup

import (
	"context"
	"fmt"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the process wide options the session and signup
// services are built from. It is read only after startup.
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetAudience() []string
	GetSessionCookieName() string
	GetSecureCookies() bool
	GetAppURL() string
	GetWebsiteURL() string
	GetAllowedRedirectOrigins() []string
	GetTokenPepper() string
	IsProduction() bool
}

// RequestReader is the subset of a request the session resolver needs.
// router.Context satisfies it.
type RequestReader interface {
	Header(key string) string
	Cookies(key string, defaultValue ...string) string
}

// Message is an outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Mailer delivers outbound email. Implementations live in the mailer package.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// PasswordHasher hashes and compares passwords
type PasswordHasher interface {
	HashPassword(password string) (string, error)
	ComparePasswordAndHash(password, hash string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] SIGNUP "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] SIGNUP "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] SIGNUP "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// DefaultLogger returns the stdout logger used when none is configured.
func DefaultLogger() Logger {
	return defLogger{}
}
