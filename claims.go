package signup

// SessionType discriminates the two session claim shapes.
type SessionType string

const (
	// SessionTypeApp is a fully activated identity scoped to one client
	SessionTypeApp SessionType = "app"
	// SessionTypePending is a registrant that has not completed activation
	SessionTypePending SessionType = "pending"
)

// SessionClaims is the identity carried by a session token. The only
// implementations are AppClaims and PendingClaims; consumers should
// type switch on the concrete value:
//
//	switch c := claims.(type) {
//	case AppClaims:
//	case PendingClaims:
//	}
type SessionClaims interface {
	SessionType() SessionType
	GetEmail() string
	// Subject is the id the token is issued for.
	Subject() string
	sessionClaims()
}

// AppClaims identify an activated app user.
type AppClaims struct {
	Email    string `json:"email"`
	UserID   string `json:"user_id"`
	ClientID string `json:"client_id"`
	Role     string `json:"role"`
}

func (AppClaims) SessionType() SessionType { return SessionTypeApp }
func (c AppClaims) GetEmail() string      { return c.Email }
func (c AppClaims) Subject() string       { return c.UserID }
func (AppClaims) sessionClaims()          {}

// PendingClaims identify a pending signup.
type PendingClaims struct {
	Email           string `json:"email"`
	PendingSignupID string `json:"pending_signup_id"`
}

func (PendingClaims) SessionType() SessionType { return SessionTypePending }
func (c PendingClaims) GetEmail() string      { return c.Email }
func (c PendingClaims) Subject() string       { return c.PendingSignupID }
func (PendingClaims) sessionClaims()          {}

var (
	_ SessionClaims = AppClaims{}
	_ SessionClaims = PendingClaims{}
)

func (c AppClaims) complete() bool {
	return c.Email != "" && c.UserID != "" && c.ClientID != "" && c.Role != ""
}

func (c PendingClaims) complete() bool {
	return c.Email != "" && c.PendingSignupID != ""
}
