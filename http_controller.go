package signup

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RegisterRoutes mounts the signup, verification, session and profile
// endpoints.
func RegisterRoutes[T any](app router.Router[T], controller *HTTPController) {
	promote := NewSessionMiddleware(SessionMiddlewareConfig{
		ContextKey: controller.ContextKey,
		Promote:    true,
		Resolver:   controller.Resolver,
		Tokens:     controller.Tokens,
		Cookies:    controller.Cookies,
		Logger:     controller.Logger,
	})

	session := NewSessionMiddleware(SessionMiddlewareConfig{
		ContextKey: controller.ContextKey,
		Resolver:   controller.Resolver,
		Logger:     controller.Logger,
	})

	app.Post(controller.Routes.Register, controller.Register).
		SetName("signup.register.post")

	app.Get(controller.Routes.VerifyEmail, controller.VerifyEmail).
		SetName("signup.verify-email.get")

	app.Post(controller.Routes.Logout, controller.LogoutPost).
		SetName("signup.logout.post")
	app.Get(controller.Routes.Logout, controller.LogoutGet).
		SetName("signup.logout.get")

	app.Get(controller.Routes.Me, promote(controller.Me)).
		SetName("signup.me.get")

	app.Patch(controller.Routes.Profile, session(controller.UpdateProfile)).
		SetName("signup.profile.patch")
}

// HTTPRoutes are the paths the controller serves and redirects to
type HTTPRoutes struct {
	Register    string
	VerifyEmail string
	Logout      string
	Me          string
	Profile     string
	Login       string
}

// HTTPController serves the JSON and redirect endpoints
type HTTPController struct {
	Debug      bool
	Production bool
	ContextKey string
	// FallbackScheme is used for the request origin when no proxy header says otherwise.
	FallbackScheme string
	// TrustProxyHeaders reads X-Forwarded-Host and X-Forwarded-Proto.
	TrustProxyHeaders bool
	Logger         Logger
	Routes         *HTTPRoutes
	Lifecycle      *Lifecycle
	Verifier       *Verifier
	Resolver       *Resolver
	Tokens         *TokenAuthority
	Cookies        *Cookies
	Sanitizer      *RedirectSanitizer
}

// HTTPControllerOption configures the controller
type HTTPControllerOption func(*HTTPController) *HTTPController

// NewHTTPController creates the controller, it panics when a
// collaborator is missing.
func NewHTTPController(opts ...HTTPControllerOption) *HTTPController {
	c := &HTTPController{
		Logger:         defLogger{},
		ContextKey:     DefaultSessionContextKey,
		FallbackScheme: "http",
		Routes: &HTTPRoutes{
			Register:    "/api/auth/register",
			VerifyEmail: VerifyEmailPath,
			Logout:      "/api/auth/logout",
			Me:          "/api/me",
			Profile:     "/api/account/profile",
			Login:       "/login",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Lifecycle == nil {
		panic("Missing Lifecycle in signup controller...")
	}

	if c.Verifier == nil {
		panic("Missing Verifier in signup controller...")
	}

	if c.Resolver == nil || c.Tokens == nil || c.Cookies == nil {
		panic("Missing session collaborators in signup controller...")
	}

	if c.Sanitizer == nil {
		c.Sanitizer = NewRedirectSanitizer()
	}

	return c
}

// RegisterPayload is the registration request body
type RegisterPayload struct {
	Email       string `form:"email" json:"email"`
	Password    string `form:"password" json:"password"`
	CompanyName string `form:"companyName" json:"companyName"`
	Next        string `form:"next" json:"next"`
}

// Register creates a pending signup and sends the verification email
func (c *HTTPController) Register(ctx router.Context) error {
	payload := new(RegisterPayload)
	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "Invalid request body.",
		})
	}

	origin := c.origin(ctx)
	next := c.Sanitizer.Sanitize(payload.Next, origin)

	res, err := c.Lifecycle.Register(ctx.Context(), RegisterMessage{
		Email:       payload.Email,
		Password:    payload.Password,
		CompanyName: payload.CompanyName,
		Next:        next,
		Origin:      origin,
	})
	if err != nil {
		return c.writeError(ctx, "register", err, "Registration failed.")
	}

	body := map[string]any{
		"ok":                          true,
		"requires_email_verification": true,
		"message":                     "Please check your inbox and verify your email before logging in.",
	}
	if !c.Production {
		body["dev_verification_url"] = res.VerificationURL
	}

	return ctx.JSON(router.StatusOK, body)
}

// VerifyEmail redeems the token. A still pending signup gets a pending
// session and goes to next, an activated one is sent to log in.
func (c *HTTPController) VerifyEmail(ctx router.Context) error {
	token := strings.TrimSpace(ctx.Query("token"))
	next := c.Sanitizer.Sanitize(ctx.Query("next"), c.origin(ctx))

	if token == "" {
		return c.redirectLogin(ctx, url.Values{"error": {ErrVerificationTokenMissing.Message}})
	}

	pending, err := c.Verifier.Redeem(ctx.Context(), token)
	if err != nil {
		if HTTPStatus(err) >= http.StatusInternalServerError {
			c.Logger.Error("verify email failed: %s", err)
		}
		return c.redirectLogin(ctx, url.Values{"error": {PublicMessage(err, "Unable to verify email.")}})
	}

	if pending.Status != PendingStatus {
		return c.redirectLogin(ctx, url.Values{"verified": {"1"}})
	}

	sessionToken, err := c.Tokens.Sign(PendingClaims{
		Email:           pending.Email,
		PendingSignupID: pending.ID.String(),
	})
	if err != nil {
		c.Logger.Error("verify email sign session: %s", err)
		return c.redirectLogin(ctx, url.Values{"error": {"Unable to verify email."}})
	}

	c.Cookies.SetSession(ctx, sessionToken)
	return ctx.Redirect(next, http.StatusTemporaryRedirect)
}

// LogoutPost clears the session for programmatic callers
func (c *HTTPController) LogoutPost(ctx router.Context) error {
	c.Cookies.ClearSession(ctx)
	return ctx.JSON(router.StatusOK, map[string]any{"ok": true})
}

// LogoutGet clears the session and redirects to the sanitized next
func (c *HTTPController) LogoutGet(ctx router.Context) error {
	next := c.Sanitizer.Sanitize(ctx.Query("next"), c.origin(ctx))
	c.Cookies.ClearSession(ctx)
	return ctx.Redirect(next, http.StatusTemporaryRedirect)
}

// Me returns the profile for the current session, promoting activated
// pending sessions.
func (c *HTTPController) Me(ctx router.Context) error {
	claims, ok := c.session(ctx, true)
	if !ok {
		return c.unauthorized(ctx)
	}

	profile, err := c.Lifecycle.Profile(ctx.Context(), claims)
	if err != nil {
		return c.writeError(ctx, "me", err, "Unable to load profile.")
	}

	body := map[string]any{
		"session_type": profile.SessionType,
		"email":        profile.Email,
		"company_name": nullable(profile.CompanyName),
		"account_name": nullable(profile.CompanyName),
	}

	switch profile.SessionType {
	case SessionTypeApp:
		body["user_id"] = profile.UserID
		body["client_id"] = profile.ClientID
		body["role"] = profile.Role
	case SessionTypePending:
		body["pending_signup_id"] = profile.PendingSignupID
		body["email_verified"] = profile.EmailVerified
	}

	return ctx.JSON(router.StatusOK, body)
}

// ProfilePayload is the account profile update body
type ProfilePayload struct {
	AccountName string `form:"accountName" json:"accountName"`
}

// UpdateProfile sets the account name for either session variant
func (c *HTTPController) UpdateProfile(ctx router.Context) error {
	claims, ok := c.session(ctx, false)
	if !ok {
		return c.unauthorized(ctx)
	}

	payload := new(ProfilePayload)
	if err := ctx.Bind(payload); err != nil {
		return ctx.JSON(router.StatusBadRequest, map[string]any{
			"error": "Invalid request body.",
		})
	}

	name, err := c.Lifecycle.UpdateCompanyName(ctx.Context(), claims, payload.AccountName)
	if err != nil {
		return c.writeError(ctx, "update profile", err, "Failed to update account profile.")
	}

	return ctx.JSON(router.StatusOK, map[string]any{
		"ok":           true,
		"account_name": name,
	})
}

// session returns the claims a session middleware stored, or resolves
// the request directly when the handler is mounted without one.
func (c *HTTPController) session(ctx router.Context, promote bool) (SessionClaims, bool) {
	if claims, ok := SessionFromLocals(ctx, c.ContextKey); ok {
		return claims, true
	}

	if !promote {
		return c.Resolver.ResolveFromRequest(ctx)
	}

	res, ok := c.Resolver.ResolveAndPromote(ctx.Context(), ctx)
	if !ok {
		return nil, false
	}

	if res.Promoted {
		if token, err := c.Tokens.Sign(res.Claims); err == nil {
			c.Cookies.SetSession(ctx, token)
		} else {
			c.Logger.Error("failed to reissue promoted session: %s", err)
		}
	}

	return res.Claims, true
}

func (c *HTTPController) origin(ctx router.Context) string {
	return RequestOrigin(ctx, c.FallbackScheme, c.TrustProxyHeaders)
}

func (c *HTTPController) redirectLogin(ctx router.Context, params url.Values) error {
	return ctx.Redirect(LoginURL(c.Routes.Login, params), http.StatusTemporaryRedirect)
}

func (c *HTTPController) unauthorized(ctx router.Context) error {
	return ctx.JSON(router.StatusUnauthorized, map[string]any{
		"error": ErrUnauthorized.Message,
	})
}

func (c *HTTPController) writeError(ctx router.Context, op string, err error, fallback string) error {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		c.Logger.Error("%s failed: %s", op, err)
		if c.Debug {
			c.Logger.Debug("%s error detail: %s", op, print.MaybePrettyJSON(err))
		}
	}
	return ctx.JSON(status, map[string]any{
		"error": PublicMessage(err, fallback),
	})
}

// LoginURL appends params to the login path
func LoginURL(loginPath string, params url.Values) string {
	if loginPath == "" {
		loginPath = "/login"
	}
	if len(params) == 0 {
		return loginPath
	}
	sep := "?"
	if strings.Contains(loginPath, "?") {
		sep = "&"
	}
	return loginPath + sep + params.Encode()
}

func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
