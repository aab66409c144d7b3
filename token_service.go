package signup

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// DefaultTokenExpiration is the session lifetime in hours
const DefaultTokenExpiration = 24 * 7

// sessionJWTClaims is the wire shape of a session token.
type sessionJWTClaims struct {
	jwt.RegisteredClaims
	SessionType     SessionType `json:"session_type"`
	Email           string      `json:"email,omitempty"`
	UserID          string      `json:"user_id,omitempty"`
	ClientID        string      `json:"client_id,omitempty"`
	Role            string      `json:"role,omitempty"`
	PendingSignupID string      `json:"pending_signup_id,omitempty"`
}

// TokenAuthority signs and verifies session tokens with a server held key.
type TokenAuthority struct {
	signingKey []byte
	ttl        time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	now        func() time.Time
	logger     Logger
}

// TokenAuthorityOption configures a TokenAuthority
type TokenAuthorityOption func(*TokenAuthority)

// WithTokenClock overrides the clock used to stamp and check expiration.
func WithTokenClock(now func() time.Time) TokenAuthorityOption {
	return func(ta *TokenAuthority) {
		if now != nil {
			ta.now = now
		}
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenAuthorityOption {
	return func(ta *TokenAuthority) {
		if logger != nil {
			ta.logger = logger
		}
	}
}

// NewTokenAuthority creates a TokenAuthority. tokenExpiration is in hours,
// zero or negative uses DefaultTokenExpiration.
func NewTokenAuthority(signingKey []byte, tokenExpiration int, issuer string, audience jwt.ClaimStrings, opts ...TokenAuthorityOption) *TokenAuthority {
	if tokenExpiration <= 0 {
		tokenExpiration = DefaultTokenExpiration
	}

	ta := &TokenAuthority{
		signingKey: signingKey,
		ttl:        time.Duration(tokenExpiration) * time.Hour,
		issuer:     issuer,
		audience:   audience,
		now:        time.Now,
		logger:     defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(ta)
		}
	}

	return ta
}

// NewTokenAuthorityFromConfig builds a TokenAuthority from Config.
func NewTokenAuthorityFromConfig(cfg Config, opts ...TokenAuthorityOption) *TokenAuthority {
	return NewTokenAuthority(
		[]byte(cfg.GetSigningKey()),
		cfg.GetTokenExpiration(),
		cfg.GetIssuer(),
		cfg.GetAudience(),
		opts...,
	)
}

// TTL returns the session lifetime, used for cookie expiration.
func (ta *TokenAuthority) TTL() time.Duration {
	return ta.ttl
}

// Sign serializes claims into a signed token.
func (ta *TokenAuthority) Sign(claims SessionClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	now := ta.now()
	wire := &sessionJWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    ta.issuer,
			Subject:   claims.Subject(),
			Audience:  ta.audience,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ta.ttl)),
		},
	}

	switch c := claims.(type) {
	case AppClaims:
		if !c.complete() {
			return "", errors.New("app claims are incomplete", errors.CategoryInternal)
		}
		wire.SessionType = SessionTypeApp
		wire.Email = c.Email
		wire.UserID = c.UserID
		wire.ClientID = c.ClientID
		wire.Role = c.Role
	case PendingClaims:
		if !c.complete() {
			return "", errors.New("pending claims are incomplete", errors.CategoryInternal)
		}
		wire.SessionType = SessionTypePending
		wire.Email = c.Email
		wire.PendingSignupID = c.PendingSignupID
	default:
		return "", errors.New(fmt.Sprintf("unsupported session claims %T", claims), errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, wire)

	signedString, err := token.SignedString(ta.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign session token")
	}

	return signedString, nil
}

// Verify checks signature, expiration and claim shape. Any failure
// returns false; callers treat it the same as "not logged in".
func (ta *TokenAuthority) Verify(tokenString string) (SessionClaims, bool) {
	if tokenString == "" {
		return nil, false
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ta.now),
	}
	if ta.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ta.issuer))
	}
	if len(ta.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ta.audience...))
	}

	wire := &sessionJWTClaims{}
	token, err := jwt.ParseWithClaims(tokenString, wire, func(t *jwt.Token) (any, error) {
		return ta.signingKey, nil
	}, parserOptions...)
	if err != nil {
		ta.logger.Debug("session token rejected: %s", err)
		return nil, false
	}

	if !token.Valid {
		return nil, false
	}

	return wire.toSessionClaims()
}

func (w *sessionJWTClaims) toSessionClaims() (SessionClaims, bool) {
	switch w.SessionType {
	case SessionTypeApp:
		if w.PendingSignupID != "" {
			return nil, false
		}
		c := AppClaims{
			Email:    w.Email,
			UserID:   w.UserID,
			ClientID: w.ClientID,
			Role:     w.Role,
		}
		if !c.complete() || w.Subject != c.UserID {
			return nil, false
		}
		return c, true
	case SessionTypePending:
		if w.UserID != "" || w.ClientID != "" || w.Role != "" {
			return nil, false
		}
		c := PendingClaims{
			Email:           w.Email,
			PendingSignupID: w.PendingSignupID,
		}
		if !c.complete() || w.Subject != c.PendingSignupID {
			return nil, false
		}
		return c, true
	default:
		return nil, false
	}
}
