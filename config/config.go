package config

import (
	"os"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	signup "github.com/goliatone/go-signup"
	"github.com/goliatone/go-signup/mailer"
	"gopkg.in/yaml.v3"
)

// Google holds the OAuth client registered with Google.
type Google struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	CallbackURL  string `yaml:"callback_url"`
}

// Enabled reports whether Google sign in is configured
func (g Google) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// BaseConfig is the service configuration. It implements signup.Config.
type BaseConfig struct {
	Environment            string   `yaml:"environment"`
	Address                string   `yaml:"address"`
	DatabaseURL            string   `yaml:"database_url"`
	SigningKey             string   `yaml:"signing_key"`
	TokenExpiration        int      `yaml:"token_expiration"`
	Issuer                 string   `yaml:"issuer"`
	Audience               []string `yaml:"audience"`
	SessionCookieName      string   `yaml:"session_cookie_name"`
	SecureCookies          *bool    `yaml:"secure_cookies"`
	CookiePrefix           string   `yaml:"cookie_prefix"`
	AppURL                 string   `yaml:"app_url"`
	WebsiteURL             string   `yaml:"website_url"`
	AllowedRedirectOrigins []string `yaml:"allowed_redirect_origins"`
	TokenPepper            string   `yaml:"token_pepper"`
	ProductName            string   `yaml:"product_name"`
	// PendingSignupMaxAge is the age in hours after which unverified
	// pending signups are expired.
	PendingSignupMaxAge int    `yaml:"pending_signup_max_age"`
	ExpireSchedule      string `yaml:"expire_schedule"`
	Debug               bool   `yaml:"debug"`
	// TrustProxyHeaders honors X-Forwarded-Host and X-Forwarded-Proto.
	// Only enable it behind a proxy that overwrites them.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers"`

	Google Google             `yaml:"google"`
	SMTP   mailer.SMTPConfig `yaml:"smtp"`
}

// Defaults returns a development configuration
func Defaults() *BaseConfig {
	return &BaseConfig{
		Environment:         "development",
		Address:             ":8080",
		DatabaseURL:         "file:signup.db?cache=shared",
		TokenExpiration:     signup.DefaultTokenExpiration,
		Issuer:              "signup",
		SessionCookieName:   signup.DefaultSessionCookieName,
		CookiePrefix:        "signup",
		AppURL:              "http://localhost:5173",
		WebsiteURL:          "http://localhost:3000",
		ProductName:         "App",
		PendingSignupMaxAge: 24 * 30,
		ExpireSchedule:      "@hourly",
	}
}

// Load reads the YAML file at path, when it exists, on top of Defaults
// and then applies environment overrides.
func Load(path string) (*BaseConfig, error) {
	cfg := Defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(raw, cfg); err != nil {
				return nil, errors.Wrap(err, errors.CategoryValidation, "invalid configuration file").
					WithMetadata(map[string]any{"path": path})
			}
		case !os.IsNotExist(err):
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to read configuration file")
		}
	}

	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *BaseConfig) applyEnv(lookup func(string) (string, bool)) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	list := func(key string, dst *[]string) {
		if v, ok := lookup(key); ok {
			*dst = splitList(v)
		}
	}

	str("ENVIRONMENT", &c.Environment)
	str("ADDRESS", &c.Address)
	str("DATABASE_URL", &c.DatabaseURL)
	str("JWT_SECRET", &c.SigningKey)
	num("TOKEN_EXPIRATION_HOURS", &c.TokenExpiration)
	str("JWT_ISSUER", &c.Issuer)
	list("JWT_AUDIENCE", &c.Audience)
	str("SESSION_COOKIE_NAME", &c.SessionCookieName)
	str("COOKIE_PREFIX", &c.CookiePrefix)
	str("APP_URL", &c.AppURL)
	str("WEBSITE_URL", &c.WebsiteURL)
	list("ALLOWED_REDIRECT_ORIGINS", &c.AllowedRedirectOrigins)
	str("TOKEN_PEPPER", &c.TokenPepper)
	str("PRODUCT_NAME", &c.ProductName)
	num("PENDING_SIGNUP_MAX_AGE_HOURS", &c.PendingSignupMaxAge)
	str("EXPIRE_SCHEDULE", &c.ExpireSchedule)

	str("GOOGLE_CLIENT_ID", &c.Google.ClientID)
	str("GOOGLE_CLIENT_SECRET", &c.Google.ClientSecret)
	str("GOOGLE_CALLBACK_URL", &c.Google.CallbackURL)

	str("SMTP_HOST", &c.SMTP.Host)
	num("SMTP_PORT", &c.SMTP.Port)
	str("SMTP_USERNAME", &c.SMTP.Username)
	str("SMTP_PASSWORD", &c.SMTP.Password)
	str("SMTP_FROM", &c.SMTP.From)

	if v, ok := lookup("SECURE_COOKIES"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.SecureCookies = &b
		}
	}
	if v, ok := lookup("TRUST_PROXY_HEADERS"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.TrustProxyHeaders = b
		}
	}
	if v, ok := lookup("DEBUG"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Debug = b
		}
	}
}

// Validate checks required fields
func (c *BaseConfig) Validate() error {
	err := validation.ValidateStruct(c,
		validation.Field(&c.SigningKey, validation.Required, validation.Length(32, 0)),
		validation.Field(&c.TokenExpiration, validation.Min(1)),
		validation.Field(&c.DatabaseURL, validation.Required),
		validation.Field(&c.AppURL, validation.Required, is.URL),
		validation.Field(&c.WebsiteURL, validation.Required, is.URL),
		validation.Field(&c.PendingSignupMaxAge, validation.Min(1)),
	)
	if err != nil {
		return errors.Wrap(err, errors.CategoryValidation, "invalid configuration")
	}

	if c.IsProduction() && c.TokenPepper == "" {
		return errors.New("token pepper is required in production", errors.CategoryValidation)
	}

	if c.IsProduction() {
		if err := c.SMTP.Validate(); err != nil {
			return errors.Wrap(err, errors.CategoryValidation, "smtp relay is required in production")
		}
	}

	return nil
}

func (c *BaseConfig) GetSigningKey() string {
	return c.SigningKey
}

func (c *BaseConfig) GetTokenExpiration() int {
	return c.TokenExpiration
}

func (c *BaseConfig) GetIssuer() string {
	return c.Issuer
}

func (c *BaseConfig) GetAudience() []string {
	return c.Audience
}

func (c *BaseConfig) GetSessionCookieName() string {
	return c.SessionCookieName
}

// GetSecureCookies defaults to true in production
func (c *BaseConfig) GetSecureCookies() bool {
	if c.SecureCookies != nil {
		return *c.SecureCookies
	}
	return c.IsProduction()
}

func (c *BaseConfig) GetAppURL() string {
	return c.AppURL
}

func (c *BaseConfig) GetWebsiteURL() string {
	return c.WebsiteURL
}

func (c *BaseConfig) GetAllowedRedirectOrigins() []string {
	return c.AllowedRedirectOrigins
}

func (c *BaseConfig) GetTokenPepper() string {
	return c.TokenPepper
}

func (c *BaseConfig) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func splitList(v string) []string {
	out := []string{}
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var _ signup.Config = (*BaseConfig)(nil)
