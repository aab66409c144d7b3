package signup

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// DefaultSessionCookieName is used when the config does not name one
const DefaultSessionCookieName = "app_session"

// Resolution is the outcome of ResolveAndPromote.
type Resolution struct {
	Claims SessionClaims
	// Promoted is true when a pending session was upgraded to an app
	// session. The caller must re-sign and re-set the session cookie.
	Promoted bool
}

// Resolver extracts the session from a request.
type Resolver struct {
	authority      *TokenAuthority
	pendingSignups PendingSignups
	appUsers       AppUsers
	cookieName     string
	logger         Logger
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger
func WithResolverLogger(logger Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSessionCookieName overrides DefaultSessionCookieName
func WithSessionCookieName(name string) ResolverOption {
	return func(r *Resolver) {
		if name != "" {
			r.cookieName = name
		}
	}
}

// NewResolver builds a Resolver. repos may be nil when promotion is
// not needed.
func NewResolver(authority *TokenAuthority, repos RepositoryManager, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		authority:  authority,
		cookieName: DefaultSessionCookieName,
		logger:     defLogger{},
	}

	if repos != nil {
		r.pendingSignups = repos.PendingSignups()
		r.appUsers = repos.AppUsers()
	}

	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}

	return r
}

// CookieName returns the name of the session cookie
func (r *Resolver) CookieName() string {
	return r.cookieName
}

// ResolveFromRequest checks the bearer header first and falls back to the
// session cookie when the header is absent or does not verify.
func (r *Resolver) ResolveFromRequest(req RequestReader) (SessionClaims, bool) {
	if token, ok := BearerToken(req.Header("Authorization")); ok {
		if claims, ok := r.authority.Verify(token); ok {
			return claims, true
		}
	}

	cookie := strings.TrimSpace(req.Cookies(r.cookieName))
	if cookie == "" {
		return nil, false
	}

	return r.authority.Verify(cookie)
}

// ResolveAndPromote resolves the request and upgrades a pending session
// whose signup has been activated.
func (r *Resolver) ResolveAndPromote(ctx context.Context, req RequestReader) (Resolution, bool) {
	claims, ok := r.ResolveFromRequest(req)
	if !ok {
		return Resolution{}, false
	}

	if promoted, ok := r.Promote(ctx, claims); ok {
		return Resolution{Claims: promoted, Promoted: true}, true
	}

	return Resolution{Claims: claims}, true
}

// Promote returns app claims for a pending session whose signup is
// activated and has a matching active app user. Lookup failures are not
// errors, the bool is false and the caller keeps the original claims.
func (r *Resolver) Promote(ctx context.Context, claims SessionClaims) (AppClaims, bool) {
	pending, ok := claims.(PendingClaims)
	if !ok {
		return AppClaims{}, false
	}

	if r.pendingSignups == nil || r.appUsers == nil {
		return AppClaims{}, false
	}

	id, err := uuid.Parse(pending.PendingSignupID)
	if err != nil {
		return AppClaims{}, false
	}

	record, err := r.pendingSignups.GetByID(ctx, id)
	if err != nil {
		if !IsNotFound(err) {
			r.logger.Debug("promotion lookup for pending signup %s failed: %s", id, err)
		}
		return AppClaims{}, false
	}

	if !record.IsActivated() {
		return AppClaims{}, false
	}

	email := record.Email
	if email == "" {
		email = pending.Email
	}

	user, err := r.appUsers.LatestActiveByClientAndEmail(ctx, record.ClientID, email)
	if err != nil {
		if !IsNotFound(err) {
			r.logger.Debug("promotion lookup for app user of %s failed: %s", id, err)
		}
		return AppClaims{}, false
	}

	return user.Claims(), true
}

// BearerToken extracts the value of a "Bearer" Authorization header. The
// scheme is case insensitive and the value must be non empty.
func BearerToken(header string) (string, bool) {
	scheme, value, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	return value, true
}
