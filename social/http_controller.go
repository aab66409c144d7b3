package social

import (
	"net/http"
	"net/url"
	"strings"

	signup "github.com/goliatone/go-signup"
	"github.com/goliatone/go-router"
)

// RouteRegistrar captures the router methods used by the controller.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// HTTPConfig configures the HTTP controller.
type HTTPConfig struct {
	// PathPrefix for routes (default: "/api/auth")
	PathPrefix string

	// CookiePrefix namespaces the flow cookies (default: "signup")
	CookiePrefix string

	// LoginPath receives failed attempts as ?error=<message> (default: "/login")
	LoginPath string

	// FallbackScheme is used for the request origin when no proxy header is present
	FallbackScheme string

	// TrustProxyHeaders reads X-Forwarded-Host and X-Forwarded-Proto
	TrustProxyHeaders bool

	// ErrorHandler handles errors (optional)
	ErrorHandler func(ctx router.Context, err error) error
}

// HTTPController serves the start and callback endpoints for one provider.
type HTTPController struct {
	mediator *Mediator
	cookies  *signup.Cookies
	flow     FlowCookies
	config   HTTPConfig
	logger   signup.Logger
}

// NewHTTPController creates a new social auth HTTP controller.
func NewHTTPController(mediator *Mediator, cookies *signup.Cookies, cfg HTTPConfig) *HTTPController {
	if mediator == nil {
		panic("Missing Mediator in social controller...")
	}
	if cookies == nil {
		panic("Missing Cookies in social controller...")
	}
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = "/api/auth"
	}
	if cfg.LoginPath == "" {
		cfg.LoginPath = "/login"
	}
	if cfg.FallbackScheme == "" {
		cfg.FallbackScheme = "http"
	}

	return &HTTPController{
		mediator: mediator,
		cookies:  cookies,
		flow:     NewFlowCookies(cfg.CookiePrefix, mediator.ProviderName()),
		config:   cfg,
		logger:   mediator.logger,
	}
}

// StartPath is where the flow begins
func (c *HTTPController) StartPath() string {
	return strings.TrimRight(c.config.PathPrefix, "/") + "/" + c.mediator.ProviderName() + "/start"
}

// CallbackPath is the redirect URI registered with the provider
func (c *HTTPController) CallbackPath() string {
	return strings.TrimRight(c.config.PathPrefix, "/") + "/" + c.mediator.ProviderName() + "/callback"
}

// RegisterRoutes registers the start and callback routes.
func (c *HTTPController) RegisterRoutes(group RouteRegistrar) {
	group.Get(c.StartPath(), c.Start).
		SetName("social." + c.mediator.ProviderName() + ".start")
	group.Get(c.CallbackPath(), c.Callback).
		SetName("social." + c.mediator.ProviderName() + ".callback")
}

// Start stores state and next in flow cookies and redirects to the provider.
func (c *HTTPController) Start(ctx router.Context) error {
	begin, err := c.mediator.Begin(c.origin(ctx), ctx.Query("next"))
	if err != nil {
		c.logger.Error("%s start failed: %s", c.mediator.ProviderName(), err)
		return ctx.JSON(http.StatusInternalServerError, map[string]any{
			"error": signup.PublicMessage(err, "Unable to start sign in."),
		})
	}

	c.cookies.Set(ctx, c.flow.State, begin.State, FlowCookieTTL)
	c.cookies.Set(ctx, c.flow.Next, EncodeNext(begin.Next), FlowCookieTTL)

	return ctx.Redirect(begin.AuthURL, http.StatusTemporaryRedirect)
}

// Callback completes the flow. Flow cookies are cleared on every outcome.
func (c *HTTPController) Callback(ctx router.Context) error {
	in := CallbackInput{
		State:         ctx.Query("state"),
		Code:          ctx.Query("code"),
		ProviderError: ctx.Query("error"),
		StoredState:   ctx.Cookies(c.flow.State),
		StoredNext:    DecodeNext(ctx.Cookies(c.flow.Next)),
		RequestOrigin: c.origin(ctx),
	}

	for _, name := range c.flow.Names() {
		c.cookies.Clear(ctx, name)
	}

	completion, err := c.mediator.Complete(ctx.Context(), in)
	if err != nil {
		return c.handleError(ctx, err)
	}

	c.cookies.SetSession(ctx, completion.SessionToken)

	return ctx.Redirect(completion.RedirectTo, http.StatusTemporaryRedirect)
}

func (c *HTTPController) origin(ctx router.Context) string {
	return signup.RequestOrigin(ctx, c.config.FallbackScheme, c.config.TrustProxyHeaders)
}

func (c *HTTPController) handleError(ctx router.Context, err error) error {
	if signup.HTTPStatus(err) >= http.StatusInternalServerError {
		c.logger.Error("%s callback failed: %s", c.mediator.ProviderName(), err)
	} else {
		c.logger.Debug("%s callback rejected: %s", c.mediator.ProviderName(), err)
	}

	if c.config.ErrorHandler != nil {
		return c.config.ErrorHandler(ctx, err)
	}

	msg := signup.PublicMessage(err, ErrReconcileFailed.Message)
	redirectURL := signup.LoginURL(c.config.LoginPath, url.Values{"error": {msg}})
	return ctx.Redirect(redirectURL, http.StatusTemporaryRedirect)
}
