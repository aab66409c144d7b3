package signup

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PendingSignupStatus is the state of a registration in progress
type PendingSignupStatus = string

const (
	// PendingStatus is waiting for verification or activation
	PendingStatus PendingSignupStatus = "pending"
	// ActivatedStatus has a client and app user
	ActivatedStatus PendingSignupStatus = "activated"
	// ExpiredStatus was swept by housekeeping, reversible to pending
	ExpiredStatus PendingSignupStatus = "expired"
)

// PendingSignup is a registration that has not finished activation.
type PendingSignup struct {
	bun.BaseModel       `bun:"table:pending_signups,alias:ps"`
	ID                  uuid.UUID           `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Email               string              `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash        string              `bun:"password_hash,notnull" json:"-"`
	CompanyName         string              `bun:"company_name,nullzero" json:"company_name,omitempty"`
	Status              PendingSignupStatus `bun:"status,notnull" json:"status,omitempty"`
	EmailVerifiedAt     *time.Time          `bun:"email_verified_at,nullzero" json:"email_verified_at,omitempty"`
	ClientID            uuid.UUID           `bun:"client_id,nullzero,type:uuid" json:"client_id,omitempty"`
	ActivationSessionID string              `bun:"activation_session_id,nullzero" json:"activation_session_id,omitempty"`
	CreatedAt           *time.Time          `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt           *time.Time          `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// EmailVerified reports whether the email was proven
func (p *PendingSignup) EmailVerified() bool {
	return p != nil && p.EmailVerifiedAt != nil
}

// IsActivated reports whether the external activation landed
func (p *PendingSignup) IsActivated() bool {
	return p != nil && p.Status == ActivatedStatus && p.ClientID != uuid.Nil
}

// AppUser is an activated identity scoped to one client.
type AppUser struct {
	bun.BaseModel `bun:"table:app_users,alias:au"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	ClientID      uuid.UUID  `bun:"client_id,notnull,type:uuid" json:"client_id,omitempty"`
	Email         string     `bun:"email,notnull" json:"email,omitempty"`
	Role          UserRole   `bun:"role,notnull" json:"role,omitempty"`
	IsActive      bool       `bun:"is_active,notnull" json:"is_active"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Claims returns the app session for this user
func (u *AppUser) Claims() AppClaims {
	return AppClaims{
		Email:    u.Email,
		UserID:   u.ID.String(),
		ClientID: u.ClientID.String(),
		Role:     u.Role,
	}
}

// Client is a tenant account.
type Client struct {
	bun.BaseModel `bun:"table:clients,alias:cl"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Name          string     `bun:"name,nullzero" json:"name,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// EmailVerificationToken stores the hash of a single use token.
type EmailVerificationToken struct {
	bun.BaseModel   `bun:"table:pending_signup_email_tokens,alias:pet"`
	ID              uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	PendingSignupID uuid.UUID  `bun:"pending_signup_id,notnull,type:uuid" json:"pending_signup_id,omitempty"`
	TokenHash       string     `bun:"token_hash,notnull,unique" json:"-"`
	ExpiresAt       time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	UsedAt          *time.Time `bun:"used_at,nullzero" json:"used_at,omitempty"`
	CreatedAt       *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// Redeemable reports whether the token can still be used at now
func (t *EmailVerificationToken) Redeemable(now time.Time) bool {
	return t.UsedAt == nil && now.Before(t.ExpiresAt)
}
