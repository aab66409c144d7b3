package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	signup "github.com/goliatone/go-signup"
	"github.com/goliatone/go-signup/config"
	"github.com/goliatone/go-signup/mailer"
	"github.com/goliatone/go-signup/social"
	"github.com/goliatone/go-signup/social/providers/google"
	"github.com/goliatone/go-router"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
)

type App struct {
	config *config.BaseConfig
	db     *bun.DB
	repos  signup.RepositoryManager
	srv    router.Server[*fiber.App]
	cron   *cron.Cron
	logger *logrus.Logger
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to start")
	}

	go func() {
		app.logger.Infof("listening on %s", cfg.Address)
		if err := app.srv.Serve(cfg.Address); err != nil {
			app.logger.WithError(err).Error("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	app.Shutdown()
}

// NewApp wires the services, routes and background jobs.
func NewApp(ctx context.Context, cfg *config.BaseConfig) (*App, error) {
	app := &App{
		config: cfg,
		logger: newLogger(cfg.Debug),
	}

	db, err := openDB(ctx, cfg.DatabaseURL, cfg.Debug)
	if err != nil {
		return nil, err
	}
	app.db = db
	app.repos = signup.NewRepositoryManager(db)
	if err := app.repos.Validate(); err != nil {
		return nil, err
	}

	tokens := signup.NewTokenAuthorityFromConfig(cfg, signup.WithTokenLogger(named(app.logger, "tokens")))
	cookies := signup.NewCookies(cfg, tokens.TTL())
	sanitizer := signup.NewRedirectSanitizerFromConfig(cfg)

	mail, err := app.mailer()
	if err != nil {
		return nil, err
	}

	verifier := signup.NewVerifier(app.repos, mail, cfg,
		signup.WithVerifierLogger(named(app.logger, "verifier")),
		signup.WithVerifierProductName(cfg.ProductName),
	)
	lifecycle := signup.NewLifecycle(app.repos, verifier,
		signup.WithLifecycleLogger(named(app.logger, "lifecycle")),
	)
	resolver := signup.NewResolver(tokens, app.repos,
		signup.WithResolverLogger(named(app.logger, "resolver")),
		signup.WithSessionCookieName(cookies.SessionName),
	)

	controller := signup.NewHTTPController(func(c *signup.HTTPController) *signup.HTTPController {
		c.Debug = cfg.Debug
		c.Production = cfg.IsProduction()
		c.Logger = named(app.logger, "http")
		c.Lifecycle = lifecycle
		c.Verifier = verifier
		c.Resolver = resolver
		c.Tokens = tokens
		c.Cookies = cookies
		c.Sanitizer = sanitizer
		c.TrustProxyHeaders = cfg.TrustProxyHeaders
		if cfg.GetSecureCookies() {
			c.FallbackScheme = "https"
		}
		return c
	})

	app.srv = router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:  true,
			StrictRouting: false,
		}))
	})

	signup.RegisterRoutes(app.srv.Router(), controller)

	if cfg.Google.Enabled() {
		app.registerGoogle(cfg, tokens, cookies, sanitizer)
	}

	if err := app.scheduleExpiry(lifecycle); err != nil {
		return nil, err
	}

	return app, nil
}

// mailer only falls back to the log mailer outside production when no
// relay host is set. A partial relay configuration fails startup.
func (a *App) mailer() (signup.Mailer, error) {
	if a.config.SMTP.Host == "" && !a.config.IsProduction() {
		a.logger.Warn("no SMTP relay configured, verification emails are recorded but not delivered")
		return mailer.NewLog(named(a.logger, "mailer")), nil
	}

	m, err := mailer.NewSMTP(a.config.SMTP)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (a *App) registerGoogle(cfg *config.BaseConfig, tokens *signup.TokenAuthority, cookies *signup.Cookies, sanitizer *signup.RedirectSanitizer) {
	httpCfg := social.HTTPConfig{
		CookiePrefix:      cfg.CookiePrefix,
		TrustProxyHeaders: cfg.TrustProxyHeaders,
	}
	if cfg.GetSecureCookies() {
		httpCfg.FallbackScheme = "https"
	}

	callbackURL := cfg.Google.CallbackURL
	if callbackURL == "" {
		callbackURL = cfg.GetAppURL() + "/api/auth/google/callback"
	}

	provider := google.New(google.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		CallbackURL:  callbackURL,
	})

	reconciler := social.NewReconciler(a.repos, social.WithReconcilerLogger(named(a.logger, "social")))
	mediator := social.NewMediator(provider, reconciler, tokens, sanitizer,
		social.WithMediatorLogger(named(a.logger, "social")),
	)

	social.NewHTTPController(mediator, cookies, httpCfg).RegisterRoutes(a.srv.Router())
}

func (a *App) scheduleExpiry(lifecycle *signup.Lifecycle) error {
	maxAge := time.Duration(a.config.PendingSignupMaxAge) * time.Hour

	a.cron = cron.New()
	_, err := a.cron.AddFunc(a.config.ExpireSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := lifecycle.ExpireStale(ctx, maxAge); err != nil {
			a.logger.WithError(err).Error("failed to expire pending signups")
		}
	})
	if err != nil {
		return err
	}

	a.cron.Start()
	return nil
}

// Shutdown stops the scheduler, the server and the database in that order.
func (a *App) Shutdown() {
	a.logger.Info("shutting down")

	if a.cron != nil {
		<-a.cron.Stop().Done()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.srv != nil {
		if err := a.srv.Shutdown(ctx); err != nil {
			a.logger.WithError(err).Error("server shutdown")
		}
	}

	if a.db != nil {
		_ = a.db.Close()
	}
}
