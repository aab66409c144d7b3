package social

import (
	"crypto/subtle"
	"fmt"
	"net/url"
	"strings"
	"time"

	signup "github.com/goliatone/go-signup"
)

const (
	// StateBytes is the entropy of the CSRF state value
	StateBytes = 24
	// FlowCookieTTL bounds how long a started flow may take
	FlowCookieTTL = 10 * time.Minute
	// DefaultCookiePrefix namespaces the flow cookies
	DefaultCookiePrefix = "signup"
)

// FlowCookies names the two cookies scoped to a single login attempt.
type FlowCookies struct {
	State string
	Next  string
}

// NewFlowCookies returns "<prefix>_<provider>_oauth_state" and
// "<prefix>_<provider>_oauth_next".
func NewFlowCookies(prefix, provider string) FlowCookies {
	if prefix == "" {
		prefix = DefaultCookiePrefix
	}
	return FlowCookies{
		State: fmt.Sprintf("%s_%s_oauth_state", prefix, provider),
		Next:  fmt.Sprintf("%s_%s_oauth_next", prefix, provider),
	}
}

// Names returns both cookie names
func (f FlowCookies) Names() []string {
	return []string{f.State, f.Next}
}

// NewState returns a random CSRF state value
func NewState() (string, error) {
	return signup.RandomHex(StateBytes)
}

// StatesMatch compares the callback state with the stored one. Empty
// values never match.
func StatesMatch(stored, received string) bool {
	if stored == "" || received == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(received)) == 1
}

// EncodeNext escapes the next target for cookie storage
func EncodeNext(next string) string {
	return url.QueryEscape(next)
}

// DecodeNext reverses EncodeNext, falling back to "/".
func DecodeNext(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "/"
	}
	decoded, err := url.QueryUnescape(raw)
	if err != nil {
		return "/"
	}
	return decoded
}
