package signup_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	signup "github.com/goliatone/go-signup"
	"github.com/goliatone/go-router"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"golang.org/x/crypto/bcrypt"
)

const testSigningKey = "test-signing-key-0123456789abcdef"

type testConfig struct {
	signingKey string
	tokenExp   int
	issuer     string
	audience   []string
	cookieName string
	secure     bool
	appURL     string
	websiteURL string
	origins    []string
	pepper     string
	production bool
}

func newTestConfig() *testConfig {
	return &testConfig{
		signingKey: testSigningKey,
		tokenExp:   24,
		issuer:     "signup-test",
		audience:   []string{"app"},
		appURL:     "https://app.example.com",
		websiteURL: "https://www.example.com",
		pepper:     "pepper",
	}
}

func (c *testConfig) GetSigningKey() string               { return c.signingKey }
func (c *testConfig) GetTokenExpiration() int             { return c.tokenExp }
func (c *testConfig) GetIssuer() string                   { return c.issuer }
func (c *testConfig) GetAudience() []string               { return c.audience }
func (c *testConfig) GetSessionCookieName() string        { return c.cookieName }
func (c *testConfig) GetSecureCookies() bool              { return c.secure }
func (c *testConfig) GetAppURL() string                   { return c.appURL }
func (c *testConfig) GetWebsiteURL() string               { return c.websiteURL }
func (c *testConfig) GetAllowedRedirectOrigins() []string { return c.origins }
func (c *testConfig) GetTokenPepper() string              { return c.pepper }
func (c *testConfig) IsProduction() bool                  { return c.production }

// fastHasher keeps bcrypt cost at the minimum so tests stay quick.
var fastHasher = signup.BcryptHasher{Cost: bcrypt.MinCost}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

type recordingMailer struct {
	mu   sync.Mutex
	sent []signup.Message
	err  error
}

func (m *recordingMailer) Send(_ context.Context, msg signup.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) last() signup.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return signup.Message{}
	}
	return m.sent[len(m.sent)-1]
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db, err := signup.OpenDB(context.Background(), signup.PersistenceConfig{
		Driver: "sqlite3",
		Server: ":memory:",
	}, sqldb, sqlitedialect.New())
	require.NoError(t, err)

	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fixture struct {
	cfg       *testConfig
	db        *bun.DB
	repos     signup.RepositoryManager
	mailer    *recordingMailer
	tokens    *signup.TokenAuthority
	verifier  *signup.Verifier
	lifecycle *signup.Lifecycle
	resolver  *signup.Resolver
	now       time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		cfg:    newTestConfig(),
		db:     setupTestDB(t),
		mailer: &recordingMailer{},
		now:    time.Now().UTC(),
	}
	f.repos = signup.NewRepositoryManager(f.db)
	f.tokens = signup.NewTokenAuthorityFromConfig(f.cfg, signup.WithTokenLogger(nopLogger{}))
	f.verifier = signup.NewVerifier(f.repos, f.mailer, f.cfg,
		signup.WithVerifierLogger(nopLogger{}),
		signup.WithVerifierClock(f.clock),
	)
	f.lifecycle = signup.NewLifecycle(f.repos, f.verifier,
		signup.WithLifecycleHasher(fastHasher),
		signup.WithLifecycleLogger(nopLogger{}),
		signup.WithLifecycleClock(f.clock),
	)
	f.resolver = signup.NewResolver(f.tokens, f.repos, signup.WithResolverLogger(nopLogger{}))
	return f
}

func (f *fixture) clock() time.Time {
	return f.now
}

// activate turns a pending signup into a client with an owner app user.
func (f *fixture) activate(t *testing.T, pending *signup.PendingSignup) *signup.AppUser {
	t.Helper()
	ctx := context.Background()

	client, err := f.repos.Clients().Create(ctx, &signup.Client{Name: pending.CompanyName})
	require.NoError(t, err)

	user, err := f.repos.AppUsers().Create(ctx, &signup.AppUser{
		ClientID: client.ID,
		Email:    pending.Email,
		Role:     signup.RoleOwner,
		IsActive: true,
	})
	require.NoError(t, err)

	require.NoError(t, f.repos.PendingSignups().Activate(ctx, pending.ID, client.ID, "cs_test"))
	return user
}

// testContext serves headers, cookies, locals and the request context
// from plain fields and delegates the rest to the router mock.
type testContext struct {
	*router.MockContext
	headers map[string]string
	cookies map[string]string
	locals  map[any]any
	std     context.Context
	written []*router.Cookie
}

func newTestContext() *testContext {
	ctx := &testContext{
		MockContext: router.NewMockContext(),
		headers:     map[string]string{},
		cookies:     map[string]string{},
		locals:      map[any]any{},
		std:         context.Background(),
	}
	ctx.On("Cookie", mock.Anything).Run(func(args mock.Arguments) {
		if c, ok := args.Get(0).(*router.Cookie); ok {
			ctx.written = append(ctx.written, c)
		}
	}).Return().Maybe()
	return ctx
}

func (c *testContext) Header(key string) string {
	return c.headers[key]
}

func (c *testContext) Cookies(key string, defaultValue ...string) string {
	if v, ok := c.cookies[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}

func (c *testContext) Locals(key any, value ...any) any {
	if len(value) > 0 {
		c.locals[key] = value[0]
		return value[0]
	}
	return c.locals[key]
}

func (c *testContext) Context() context.Context {
	return c.std
}

func (c *testContext) SetContext(ctx context.Context) {
	c.std = ctx
}

func (c *testContext) cookie(name string) *router.Cookie {
	for i := len(c.written) - 1; i >= 0; i-- {
		if c.written[i].Name == name {
			return c.written[i]
		}
	}
	return nil
}

// stubRequest is a bare signup.RequestReader.
type stubRequest struct {
	headers map[string]string
	cookies map[string]string
}

func (r stubRequest) Header(key string) string {
	return r.headers[key]
}

func (r stubRequest) Cookies(key string, defaultValue ...string) string {
	if v, ok := r.cookies[key]; ok {
		return v
	}
	if len(defaultValue) > 0 {
		return defaultValue[0]
	}
	return ""
}
