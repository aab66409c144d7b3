package signup

import (
	"net/http"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

const (
	TextCodeInvalidEmail          = "signup_invalid_email"
	TextCodePasswordTooShort      = "signup_password_too_short"
	TextCodeEmailExists           = "signup_email_exists"
	TextCodeAccountActivated      = "signup_account_activated"
	TextCodeAwaitingVerification  = "signup_awaiting_verification"
	TextCodeCompanyNameLength     = "signup_company_name_length"
	TextCodeTokenMissing          = "verification_token_missing"
	TextCodeTokenInvalid          = "verification_token_invalid"
	TextCodeTokenUsed             = "verification_token_used"
	TextCodeTokenExpired          = "verification_token_expired"
	TextCodeSignupExpired         = "signup_expired"
	TextCodeSignupNotFound        = "signup_not_found"
	TextCodeUnauthorized          = "unauthorized"
	TextCodeRecordNotFound        = "record_not_found"
	TextCodeRegistrationFailed    = "signup_registration_failed"
	TextCodeVerificationDelivery  = "verification_delivery_failed"
	TextCodeProfileUpdateRejected = "profile_update_rejected"
	TextCodeInvalidRole           = "app_user_invalid_role"
)

// ErrInvalidEmail is returned when the email does not look like an address.
var ErrInvalidEmail = errors.New("Invalid email.", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidEmail).
	WithCode(errors.CodeBadRequest)

// ErrPasswordTooShort is returned for passwords under MinPasswordLength.
var ErrPasswordTooShort = errors.New("Password must be at least 8 characters.", errors.CategoryValidation).
	WithTextCode(TextCodePasswordTooShort).
	WithCode(errors.CodeBadRequest)

// ErrEmailAlreadyExists is returned when an active app user owns the email.
var ErrEmailAlreadyExists = errors.New("Email already exists.", errors.CategoryConflict).
	WithTextCode(TextCodeEmailExists).
	WithCode(errors.CodeConflict)

// ErrAccountAlreadyActivated is returned when registering an email whose
// pending signup was already activated.
var ErrAccountAlreadyActivated = errors.New("Account already activated. Please log in.", errors.CategoryConflict).
	WithTextCode(TextCodeAccountActivated).
	WithCode(errors.CodeConflict)

// ErrAccountAwaitingVerification is returned when registering an email whose
// pending signup already has a verified email.
var ErrAccountAwaitingVerification = errors.New("Account already registered. Please verify or log in.", errors.CategoryConflict).
	WithTextCode(TextCodeAwaitingVerification).
	WithCode(errors.CodeConflict)

// ErrInvalidRole is returned when an app user is stored with an unknown role.
var ErrInvalidRole = errors.New("Invalid role.", errors.CategoryValidation).
	WithTextCode(TextCodeInvalidRole).
	WithCode(errors.CodeBadRequest)

// ErrCompanyNameLength is returned when a company name is outside 2..80 chars.
var ErrCompanyNameLength = errors.New("Account name must be between 2 and 80 characters.", errors.CategoryValidation).
	WithTextCode(TextCodeCompanyNameLength).
	WithCode(errors.CodeBadRequest)

var ErrVerificationTokenMissing = errors.New("Missing verification token.", errors.CategoryBadInput).
	WithTextCode(TextCodeTokenMissing).
	WithCode(errors.CodeBadRequest)

var ErrVerificationTokenInvalid = errors.New("Invalid verification token.", errors.CategoryConflict).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(errors.CodeBadRequest)

var ErrVerificationTokenUsed = errors.New("Verification token has already been used.", errors.CategoryConflict).
	WithTextCode(TextCodeTokenUsed).
	WithCode(errors.CodeConflict)

var ErrVerificationTokenExpired = errors.New("Verification token has expired.", errors.CategoryConflict).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeConflict)

// ErrSignupExpired is returned when redeeming a token for an expired signup.
var ErrSignupExpired = errors.New("This signup has expired. Please register again.", errors.CategoryConflict).
	WithTextCode(TextCodeSignupExpired).
	WithCode(errors.CodeConflict)

var ErrSignupNotFound = errors.New("Pending signup not found.", errors.CategoryNotFound).
	WithTextCode(TextCodeSignupNotFound).
	WithCode(errors.CodeNotFound)

// ErrUnauthorized is the only error surfaced for absent, malformed or
// expired sessions.
var ErrUnauthorized = errors.New("Unauthorized.", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(errors.CodeUnauthorized)

// ErrRecordNotFound is returned by repositories when no row matches.
var ErrRecordNotFound = errors.New("record not found", errors.CategoryNotFound).
	WithTextCode(TextCodeRecordNotFound).
	WithCode(errors.CodeNotFound)

// IsNotFound reports whether err is a not found error from a repository.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrRecordNotFound) || errors.IsNotFound(err) || repository.IsRecordNotFound(err)
}

// HTTPStatus maps an error to the status code returned to callers.
func HTTPStatus(err error) int {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return http.StatusInternalServerError
	}

	switch richErr.Category {
	case errors.CategoryValidation, errors.CategoryBadInput:
		return http.StatusBadRequest
	case errors.CategoryConflict:
		if richErr.Code == errors.CodeBadRequest {
			return http.StatusBadRequest
		}
		return http.StatusConflict
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show an end user. Internal
// failures collapse to fallback so store or provider details never leak.
func PublicMessage(err error, fallback string) string {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return fallback
	}
	if HTTPStatus(err) == http.StatusInternalServerError {
		return fallback
	}
	return richErr.Message
}
