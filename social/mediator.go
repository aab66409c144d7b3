package social

import (
	"context"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	signup "github.com/goliatone/go-signup"
)

const (
	// DefaultProviderTimeout bounds each call to the provider
	DefaultProviderTimeout = 10 * time.Second
	// DefaultOnboardingPath collects a company name before continuing
	DefaultOnboardingPath = "/onboarding/account-name"
)

// BeginResult is what the start endpoint needs to redirect the user agent
type BeginResult struct {
	State   string
	Next    string
	AuthURL string
}

// CallbackInput carries the callback query and the flow cookies.
type CallbackInput struct {
	State         string
	Code          string
	ProviderError string
	StoredState   string
	StoredNext    string
	RequestOrigin string
}

// Completion is a successful callback
type Completion struct {
	Claims          signup.SessionClaims
	SessionToken    string
	RedirectTo      string
	NeedsOnboarding bool
}

// Mediator runs the authorization code flow for one provider:
// validate, exchange, fetch, reconcile, redirect.
type Mediator struct {
	provider       Provider
	reconciler     *Reconciler
	tokens         *signup.TokenAuthority
	sanitizer      *signup.RedirectSanitizer
	onboardingPath string
	timeout        time.Duration
	logger         signup.Logger
}

// MediatorOption configures a Mediator
type MediatorOption func(*Mediator)

// WithProviderTimeout overrides DefaultProviderTimeout
func WithProviderTimeout(timeout time.Duration) MediatorOption {
	return func(m *Mediator) {
		if timeout > 0 {
			m.timeout = timeout
		}
	}
}

// WithOnboardingPath overrides DefaultOnboardingPath
func WithOnboardingPath(path string) MediatorOption {
	return func(m *Mediator) {
		if path != "" {
			m.onboardingPath = path
		}
	}
}

// WithMediatorLogger sets the logger
func WithMediatorLogger(logger signup.Logger) MediatorOption {
	return func(m *Mediator) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMediator creates a Mediator
func NewMediator(provider Provider, reconciler *Reconciler, tokens *signup.TokenAuthority, sanitizer *signup.RedirectSanitizer, opts ...MediatorOption) *Mediator {
	if sanitizer == nil {
		sanitizer = signup.NewRedirectSanitizer()
	}

	m := &Mediator{
		provider:       provider,
		reconciler:     reconciler,
		tokens:         tokens,
		sanitizer:      sanitizer,
		onboardingPath: DefaultOnboardingPath,
		timeout:        DefaultProviderTimeout,
		logger:         signup.DefaultLogger(),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}

	return m
}

// ProviderName returns the name of the wrapped provider
func (m *Mediator) ProviderName() string {
	return m.provider.Name()
}

// Begin creates the CSRF state and the authorization URL.
func (m *Mediator) Begin(requestOrigin, next string) (*BeginResult, error) {
	state, err := NewState()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate oauth state")
	}

	return &BeginResult{
		State:   state,
		Next:    m.sanitizer.Sanitize(next, requestOrigin),
		AuthURL: m.provider.AuthCodeURL(state, WithPrompt("select_account")),
	}, nil
}

// Complete handles the provider callback. Each step runs only if the
// previous one succeeded and any failure ends the attempt.
func (m *Mediator) Complete(ctx context.Context, in CallbackInput) (*Completion, error) {
	next := m.sanitizer.Sanitize(in.StoredNext, in.RequestOrigin)

	state := strings.TrimSpace(in.State)
	code := strings.TrimSpace(in.Code)

	if in.ProviderError != "" && code == "" {
		return nil, ErrProviderDenied
	}

	if state == "" || code == "" {
		return nil, ErrMissingStateOrCode
	}

	if !StatesMatch(in.StoredState, state) {
		return nil, ErrStateMismatch
	}

	token, err := m.exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	profile, err := m.userInfo(ctx, token)
	if err != nil {
		return nil, err
	}

	rec, err := m.reconciler.Reconcile(ctx, profile)
	if err != nil {
		return nil, wrapProviderError(ErrReconcileFailed, m.provider.Name(), err, false)
	}

	sessionToken, err := m.tokens.Sign(rec.Claims)
	if err != nil {
		return nil, wrapProviderError(ErrReconcileFailed, m.provider.Name(), err, false)
	}

	redirectTo := next
	if rec.NeedsOnboarding {
		redirectTo = m.onboardingPath + "?next=" + url.QueryEscape(next)
	}

	m.logger.Debug("%s login completed as %s session", m.provider.Name(), rec.Claims.SessionType())

	return &Completion{
		Claims:          rec.Claims,
		SessionToken:    sessionToken,
		RedirectTo:      redirectTo,
		NeedsOnboarding: rec.NeedsOnboarding,
	}, nil
}

func (m *Mediator) exchange(ctx context.Context, code string) (*Token, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	token, err := m.provider.Exchange(ctx, code)
	if err != nil {
		return nil, wrapProviderError(ErrTokenExchangeFailed, m.provider.Name(), err, true)
	}
	if token == nil || token.AccessToken == "" {
		return nil, ErrTokenExchangeFailed
	}
	return token, nil
}

func (m *Mediator) userInfo(ctx context.Context, token *Token) (*Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	profile, err := m.provider.UserInfo(ctx, token)
	if err != nil {
		return nil, wrapProviderError(ErrUserInfoFailed, m.provider.Name(), err, false)
	}
	if profile == nil || strings.TrimSpace(profile.Email) == "" || strings.TrimSpace(profile.ProviderUserID) == "" {
		return nil, ErrUserInfoFailed
	}
	if !profile.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	return profile, nil
}
