package signup

import (
	"net/url"
	"strings"
)

// RedirectSanitizer guards every caller supplied "next" destination.
type RedirectSanitizer struct {
	origins []string
}

// NewRedirectSanitizer builds a sanitizer trusting the given origins in
// addition to the request origin. Entries that do not parse are ignored.
func NewRedirectSanitizer(allowed ...string) *RedirectSanitizer {
	rs := &RedirectSanitizer{}
	for _, candidate := range allowed {
		if origin, ok := parseOrigin(candidate); ok {
			rs.origins = append(rs.origins, origin)
		}
	}
	return rs
}

// NewRedirectSanitizerFromConfig trusts the app URL, the website URL
// and any extra configured origins.
func NewRedirectSanitizerFromConfig(cfg Config) *RedirectSanitizer {
	allowed := []string{cfg.GetAppURL(), cfg.GetWebsiteURL()}
	allowed = append(allowed, cfg.GetAllowedRedirectOrigins()...)
	return NewRedirectSanitizer(allowed...)
}

// Sanitize returns candidate when it is a relative path or an absolute
// URL on a trusted origin, otherwise "/". Candidates carrying control
// characters are rejected outright.
func (rs *RedirectSanitizer) Sanitize(candidate, requestOrigin string) string {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" || hasControlChar(candidate) {
		return "/"
	}

	if isRelativePath(candidate) {
		return candidate
	}

	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		return "/"
	}

	origin, ok := originOf(u)
	if !ok {
		return "/"
	}

	if !rs.allowed(origin, requestOrigin) {
		return "/"
	}

	return u.String()
}

func (rs *RedirectSanitizer) allowed(origin, requestOrigin string) bool {
	if ro, ok := parseOrigin(requestOrigin); ok && ro == origin {
		return true
	}
	for _, o := range rs.origins {
		if o == origin {
			return true
		}
	}
	return false
}

// isRelativePath accepts same origin paths. "//host" and "/\host" are
// read by browsers as network paths so they go through the allow-list.
func isRelativePath(candidate string) bool {
	if !strings.HasPrefix(candidate, "/") {
		return false
	}
	if len(candidate) > 1 && (candidate[1] == '/' || candidate[1] == '\\') {
		return false
	}
	return true
}

// hasControlChar reports ASCII control characters. Browsers drop tab, CR
// and LF from URLs, so "/\t/host" would become a network path.
func hasControlChar(s string) bool {
	return strings.IndexFunc(s, func(r rune) bool {
		return r < 0x20 || r == 0x7f
	}) >= 0
}

func parseOrigin(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	return originOf(u)
}

func originOf(u *url.URL) (string, bool) {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}

	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}

	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}

	origin := scheme + "://" + host
	if port != "" {
		origin += ":" + port
	}
	return origin, true
}
