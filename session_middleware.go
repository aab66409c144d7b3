package signup

import (
	"github.com/goliatone/go-router"
)

// DefaultSessionContextKey is the Locals key holding SessionClaims
const DefaultSessionContextKey = "session"

// SessionMiddlewareConfig configures NewSessionMiddleware
type SessionMiddlewareConfig struct {
	Filter         func(router.Context) bool
	SuccessHandler router.HandlerFunc
	ErrorHandler   router.ErrorHandler
	ContextKey     string
	// Promote upgrades activated pending sessions and reissues the cookie.
	Promote bool
	// Optional lets requests without a session through untouched.
	Optional bool
	Resolver *Resolver
	Tokens   *TokenAuthority
	Cookies  *Cookies
	Logger   Logger
}

// NewSessionMiddleware resolves the request session and stores it in
// Locals under ContextKey and in the request context.
func NewSessionMiddleware(config ...SessionMiddlewareConfig) router.MiddlewareFunc {
	cfg := getDefaultSessionMiddlewareConfig(config...)
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return hf(ctx)
			}

			var claims SessionClaims
			var ok bool

			if cfg.Promote {
				var res Resolution
				res, ok = cfg.Resolver.ResolveAndPromote(ctx.Context(), ctx)
				claims = res.Claims
				if ok && res.Promoted {
					reissueSession(ctx, cfg, claims)
				}
			} else {
				claims, ok = cfg.Resolver.ResolveFromRequest(ctx)
			}

			if !ok {
				if cfg.Optional {
					return hf(ctx)
				}
				return cfg.ErrorHandler(ctx, ErrUnauthorized)
			}

			ctx.Locals(cfg.ContextKey, claims)
			ctx.SetContext(WithSession(ctx.Context(), claims))

			if cfg.SuccessHandler != nil {
				if err := cfg.SuccessHandler(ctx); err != nil {
					return err
				}
			}

			return hf(ctx)
		}
	}
}

func reissueSession(ctx router.Context, cfg SessionMiddlewareConfig, claims SessionClaims) {
	if cfg.Tokens == nil || cfg.Cookies == nil {
		return
	}
	token, err := cfg.Tokens.Sign(claims)
	if err != nil {
		cfg.Logger.Error("failed to reissue promoted session: %s", err)
		return
	}
	cfg.Cookies.SetSession(ctx, token)
}

func getDefaultSessionMiddlewareConfig(config ...SessionMiddlewareConfig) (cfg SessionMiddlewareConfig) {
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Resolver == nil {
		panic("SIGNUP: session middleware configuration: Resolver is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultSessionContextKey
	}

	if cfg.Logger == nil {
		cfg.Logger = defLogger{}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c router.Context, err error) error {
			return c.JSON(router.StatusUnauthorized, map[string]any{
				"error": ErrUnauthorized.Message,
			})
		}
	}

	return cfg
}
