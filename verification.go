package signup

import (
	"context"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	// VerificationTokenTTL is how long an emailed link stays valid
	VerificationTokenTTL = 24 * time.Hour
	// VerificationTokenBytes is the entropy of a raw token
	VerificationTokenBytes = 32
	// VerifyEmailPath is the route that redeems tokens
	VerifyEmailPath = "/api/auth/verify-email"
)

// Verifier issues and redeems email verification tokens. Only the hash
// of a token is stored, the raw value goes out in the email link.
type Verifier struct {
	repos       RepositoryManager
	mailer      Mailer
	sanitizer   *RedirectSanitizer
	websiteURL  string
	pepper      string
	productName string
	ttl         time.Duration
	now         func() time.Time
	logger      Logger
}

// VerifierOption configures a Verifier
type VerifierOption func(*Verifier)

// WithVerifierClock overrides the clock
func WithVerifierClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// WithVerifierLogger sets the logger
func WithVerifierLogger(logger Logger) VerifierOption {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithVerifierProductName sets the name used in email copy
func WithVerifierProductName(name string) VerifierOption {
	return func(v *Verifier) {
		if name != "" {
			v.productName = name
		}
	}
}

// NewVerifier creates a Verifier
func NewVerifier(repos RepositoryManager, mailer Mailer, cfg Config, opts ...VerifierOption) *Verifier {
	website := strings.TrimRight(strings.TrimSpace(cfg.GetWebsiteURL()), "/")
	if website == "" {
		website = "http://localhost:3000"
	}

	v := &Verifier{
		repos:       repos,
		mailer:      mailer,
		sanitizer:   NewRedirectSanitizerFromConfig(cfg),
		websiteURL:  website,
		pepper:      cfg.GetTokenPepper(),
		productName: "App",
		ttl:         VerificationTokenTTL,
		now:         time.Now,
		logger:      defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}

	return v
}

// Issue replaces any unused token for the signup with a new one, emails
// the verification link and returns it. nextPath is checked against the
// configured origins and requestOrigin.
func (v *Verifier) Issue(ctx context.Context, pendingSignupID uuid.UUID, email, nextPath, requestOrigin string) (string, error) {
	raw, err := RandomHex(VerificationTokenBytes)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate verification token")
	}

	now := v.now().UTC()
	record := &EmailVerificationToken{
		PendingSignupID: pendingSignupID,
		TokenHash:       HashToken(raw, v.pepper),
		ExpiresAt:       now.Add(v.ttl),
		CreatedAt:       &now,
	}

	err = v.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := v.repos.VerificationTokens().DeleteUnusedTx(ctx, tx, pendingSignupID); err != nil {
			return err
		}
		_, err := v.repos.VerificationTokens().CreateTx(ctx, tx, record)
		return err
	})
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create email verification token").
			WithMetadata(map[string]any{
				"pending_signup_id": pendingSignupID.String(),
			})
	}

	verificationURL := v.verificationURL(raw, nextPath, requestOrigin)

	if v.mailer != nil {
		msg := buildVerificationMessage(email, v.productName, verificationURL, v.ttl)
		if err := v.mailer.Send(ctx, msg); err != nil {
			return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to send verification email").
				WithTextCode(TextCodeVerificationDelivery)
		}
	}

	v.logger.Debug("verification token issued for pending signup %s", pendingSignupID)

	return verificationURL, nil
}

func (v *Verifier) verificationURL(raw, nextPath, requestOrigin string) string {
	u, err := url.Parse(v.websiteURL + VerifyEmailPath)
	if err != nil {
		u = &url.URL{Path: VerifyEmailPath}
	}

	q := u.Query()
	q.Set("token", raw)
	if strings.TrimSpace(nextPath) != "" {
		q.Set("next", v.sanitizer.Sanitize(nextPath, requestOrigin))
	}
	u.RawQuery = q.Encode()

	return u.String()
}

// Redeem consumes a raw token and stamps the signup's email as verified.
// The returned row reflects the state after redemption.
func (v *Verifier) Redeem(ctx context.Context, token string) (*PendingSignup, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrVerificationTokenMissing
	}

	var pending *PendingSignup
	tokenHash := HashToken(token, v.pepper)

	err := v.repos.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		now := v.now().UTC()

		record, err := v.repos.VerificationTokens().GetByHashTx(ctx, tx, tokenHash)
		if err != nil {
			if IsNotFound(err) {
				return ErrVerificationTokenInvalid
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load email verification token")
		}

		if record.UsedAt != nil {
			return ErrVerificationTokenUsed
		}

		if !now.Before(record.ExpiresAt) {
			return ErrVerificationTokenExpired
		}

		pending, err = v.repos.PendingSignups().GetByIDTx(ctx, tx, record.PendingSignupID)
		if err != nil {
			if IsNotFound(err) {
				return ErrSignupNotFound
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load pending signup")
		}

		if pending.Status == ExpiredStatus {
			return ErrSignupExpired
		}

		marked, err := v.repos.VerificationTokens().MarkUsedTx(ctx, tx, record.ID, now)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark verification token as used")
		}
		if !marked {
			return ErrVerificationTokenUsed
		}

		stamped, err := v.repos.PendingSignups().MarkEmailVerifiedTx(ctx, tx, pending.ID, now)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to mark pending signup as verified")
		}
		if stamped {
			pending.EmailVerifiedAt = &now
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return pending, nil
}
