package social

import "github.com/goliatone/go-errors"

const (
	TextCodeMissingStateOrCode = "social_missing_state_or_code"
	TextCodeStateMismatch      = "social_state_mismatch"
	TextCodeProviderDenied     = "social_provider_denied"
	TextCodeTokenExchangeFail  = "social_token_exchange_failed"
	TextCodeUserInfoFail       = "social_user_info_failed"
	TextCodeEmailNotVerified   = "social_email_not_verified"
	TextCodeReconcileFail      = "social_reconcile_failed"
)

// ErrMissingStateOrCode is returned when the callback lacks state or code.
var ErrMissingStateOrCode = errors.New("Missing OAuth state or code.", errors.CategoryBadInput).
	WithTextCode(TextCodeMissingStateOrCode).
	WithCode(errors.CodeBadRequest)

// ErrStateMismatch is returned when the callback state does not equal
// the state stored at flow start.
var ErrStateMismatch = errors.New("OAuth state mismatch.", errors.CategoryBadInput).
	WithTextCode(TextCodeStateMismatch).
	WithCode(errors.CodeBadRequest)

// ErrProviderDenied is returned when the provider redirects back with an error.
var ErrProviderDenied = errors.New("Sign in was cancelled or denied.", errors.CategoryAuth).
	WithTextCode(TextCodeProviderDenied).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExchangeFailed is returned when a provider token exchange fails.
var ErrTokenExchangeFailed = errors.New("Token exchange failed.", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExchangeFail).
	WithCode(errors.CodeUnauthorized)

// ErrUserInfoFailed is returned when the profile cannot be fetched or
// lacks an email or subject.
var ErrUserInfoFailed = errors.New("Failed to load user profile.", errors.CategoryAuth).
	WithTextCode(TextCodeUserInfoFail).
	WithCode(errors.CodeUnauthorized)

// ErrEmailNotVerified is returned when a provider email is not verified.
var ErrEmailNotVerified = errors.New("Account email is not verified.", errors.CategoryAuth).
	WithTextCode(TextCodeEmailNotVerified).
	WithCode(errors.CodeForbidden)

// ErrReconcileFailed is returned when the identity cannot be matched or
// stored.
var ErrReconcileFailed = errors.New("Unable to complete sign in.", errors.CategoryInternal).
	WithTextCode(TextCodeReconcileFail).
	WithCode(errors.CodeInternal)
