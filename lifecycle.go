package signup

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

const (
	// MinPasswordLength is the shortest accepted password
	MinPasswordLength = 8
	// MinCompanyNameLength and MaxCompanyNameLength bound company names after trimming
	MinCompanyNameLength = 2
	MaxCompanyNameLength = 80
)

// RegisterMessage is a registration request
type RegisterMessage struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	CompanyName string `json:"companyName"`
	Next        string `json:"next"`
	// Origin is the request origin Next was checked against.
	Origin string `json:"-"`
}

func (e RegisterMessage) Type() string { return "signup.register" }

// Validate checks email shape and password length
func (e RegisterMessage) Validate() error {
	if err := validation.Validate(NormalizeEmail(e.Email), validation.Required, is.Email); err != nil {
		return ErrInvalidEmail
	}
	if err := validation.Validate(e.Password, validation.Required, validation.RuneLength(MinPasswordLength, 0)); err != nil {
		return ErrPasswordTooShort
	}
	return nil
}

// RegistrationResult is returned by Register. VerificationURL carries the
// raw token and must only be echoed outside production.
type RegistrationResult struct {
	PendingSignupID uuid.UUID
	Email           string
	VerificationURL string
}

// Profile is the account view for either session variant
type Profile struct {
	SessionType     SessionType
	Email           string
	UserID          string
	ClientID        string
	Role            string
	PendingSignupID string
	CompanyName     string
	EmailVerified   bool
}

// Lifecycle owns registration and the pending signup state machine.
type Lifecycle struct {
	repos    RepositoryManager
	verifier *Verifier
	hasher   PasswordHasher
	logger   Logger
	now      func() time.Time
}

// LifecycleOption configures a Lifecycle
type LifecycleOption func(*Lifecycle)

// WithLifecycleHasher overrides the bcrypt hasher
func WithLifecycleHasher(hasher PasswordHasher) LifecycleOption {
	return func(l *Lifecycle) {
		if hasher != nil {
			l.hasher = hasher
		}
	}
}

// WithLifecycleLogger sets the logger
func WithLifecycleLogger(logger Logger) LifecycleOption {
	return func(l *Lifecycle) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithLifecycleClock overrides the clock
func WithLifecycleClock(now func() time.Time) LifecycleOption {
	return func(l *Lifecycle) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLifecycle creates a Lifecycle
func NewLifecycle(repos RepositoryManager, verifier *Verifier, opts ...LifecycleOption) *Lifecycle {
	l := &Lifecycle{
		repos:    repos,
		verifier: verifier,
		hasher:   BcryptHasher{},
		logger:   defLogger{},
		now:      time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}

	return l
}

// Register creates or refreshes the pending signup for an email and
// sends a verification link.
func (l *Lifecycle) Register(ctx context.Context, msg RegisterMessage) (*RegistrationResult, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during registration",
		)
	default:
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	email := NormalizeEmail(msg.Email)

	if _, err := l.repos.AppUsers().LatestActiveByEmail(ctx, email); err == nil {
		return nil, ErrEmailAlreadyExists
	} else if !IsNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check existing app user").
			WithTextCode(TextCodeRegistrationFailed)
	}

	hash, err := l.hasher.HashPassword(msg.Password)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password").
			WithTextCode(TextCodeRegistrationFailed)
	}

	record, applied, err := l.repos.PendingSignups().UpsertForRegistration(ctx, &PendingSignup{
		Email:        email,
		PasswordHash: hash,
		CompanyName:  strings.TrimSpace(msg.CompanyName),
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create pending signup").
			WithTextCode(TextCodeRegistrationFailed)
	}

	if !applied {
		return nil, l.registrationConflict(ctx, email)
	}

	verificationURL, err := l.verifier.Issue(ctx, record.ID, record.Email, msg.Next, msg.Origin)
	if err != nil {
		return nil, err
	}

	l.logger.Info("pending signup %s registered", record.ID)

	return &RegistrationResult{
		PendingSignupID: record.ID,
		Email:           record.Email,
		VerificationURL: verificationURL,
	}, nil
}

func (l *Lifecycle) registrationConflict(ctx context.Context, email string) error {
	existing, err := l.repos.PendingSignups().LatestByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			return ErrAccountAwaitingVerification
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load pending signup").
			WithTextCode(TextCodeRegistrationFailed)
	}

	if existing.Status == ActivatedStatus {
		return ErrAccountAlreadyActivated
	}
	return ErrAccountAwaitingVerification
}

// ValidateCompanyName trims name and checks its length
func ValidateCompanyName(name string) (string, error) {
	name = strings.TrimSpace(name)
	err := validation.Validate(name,
		validation.Required,
		validation.RuneLength(MinCompanyNameLength, MaxCompanyNameLength),
	)
	if err != nil {
		return "", ErrCompanyNameLength
	}
	return name, nil
}

// UpdateCompanyName writes the client name for app sessions and the
// pending signup company name for pending sessions.
func (l *Lifecycle) UpdateCompanyName(ctx context.Context, claims SessionClaims, name string) (string, error) {
	name, err := ValidateCompanyName(name)
	if err != nil {
		return "", err
	}

	switch c := claims.(type) {
	case AppClaims:
		id, err := uuid.Parse(c.ClientID)
		if err != nil {
			return "", ErrUnauthorized
		}
		if err := l.repos.Clients().UpdateName(ctx, id, name); err != nil {
			return "", wrapProfileError(err, "failed to update client name")
		}
	case PendingClaims:
		id, err := uuid.Parse(c.PendingSignupID)
		if err != nil {
			return "", ErrUnauthorized
		}
		if err := l.repos.PendingSignups().UpdateCompanyName(ctx, id, name); err != nil {
			return "", wrapProfileError(err, "failed to update company name")
		}
	default:
		return "", ErrUnauthorized
	}

	return name, nil
}

// Profile loads the account view for the session
func (l *Lifecycle) Profile(ctx context.Context, claims SessionClaims) (*Profile, error) {
	switch c := claims.(type) {
	case AppClaims:
		profile := &Profile{
			SessionType: SessionTypeApp,
			Email:       c.Email,
			UserID:      c.UserID,
			ClientID:    c.ClientID,
			Role:        c.Role,
		}
		id, err := uuid.Parse(c.ClientID)
		if err != nil {
			return nil, ErrUnauthorized
		}
		client, err := l.repos.Clients().GetByID(ctx, id)
		if err != nil && !IsNotFound(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load client")
		}
		if client != nil {
			profile.CompanyName = client.Name
		}
		return profile, nil
	case PendingClaims:
		profile := &Profile{
			SessionType:     SessionTypePending,
			Email:           c.Email,
			PendingSignupID: c.PendingSignupID,
		}
		id, err := uuid.Parse(c.PendingSignupID)
		if err != nil {
			return nil, ErrUnauthorized
		}
		record, err := l.repos.PendingSignups().GetByID(ctx, id)
		if err != nil && !IsNotFound(err) {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load pending signup")
		}
		if record != nil {
			profile.CompanyName = record.CompanyName
			profile.EmailVerified = record.EmailVerified()
		}
		return profile, nil
	default:
		return nil, ErrUnauthorized
	}
}

// ExpireStale marks pending signups older than maxAge as expired.
func (l *Lifecycle) ExpireStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := l.now().Add(-maxAge)
	n, err := l.repos.PendingSignups().ExpireStale(ctx, cutoff)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to expire stale pending signups")
	}
	if n > 0 {
		l.logger.Info("expired %d pending signups created before %s", n, cutoff.Format(time.RFC3339))
	}
	return n, nil
}

func wrapProfileError(err error, msg string) error {
	if IsNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryNotFound, "account not found").
			WithTextCode(TextCodeProfileUpdateRejected)
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg)
}
