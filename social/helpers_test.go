package social_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	signup "github.com/goliatone/go-signup"
	"github.com/goliatone/go-signup/social"
	"github.com/goliatone/go-router"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"golang.org/x/crypto/bcrypt"
)

const testSigningKey = "social-test-signing-key-0123456789"

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

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

// stubProvider answers Exchange and UserInfo from fields.
type stubProvider struct {
	mu sync.Mutex

	token      *social.Token
	exchErr    error
	profile    *social.Profile
	profileErr error

	codes []string
}

func newStubProvider(email string) *stubProvider {
	return &stubProvider{
		token: &social.Token{AccessToken: "access", TokenType: "Bearer"},
		profile: &social.Profile{
			Provider:       "stub",
			ProviderUserID: "sub-1",
			Email:          email,
			EmailVerified:  true,
		},
	}
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) AuthCodeURL(state string, opts ...social.AuthCodeOption) string {
	cfg := social.ApplyAuthCodeOptions(nil, opts...)
	return "https://idp.example.com/auth?state=" + state + "&prompt=" + cfg.Prompt
}

func (p *stubProvider) Exchange(_ context.Context, code string) (*social.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.codes = append(p.codes, code)
	if p.exchErr != nil {
		return nil, p.exchErr
	}
	return p.token, nil
}

func (p *stubProvider) UserInfo(context.Context, *social.Token) (*social.Profile, error) {
	if p.profileErr != nil {
		return nil, p.profileErr
	}
	return p.profile, nil
}

func (p *stubProvider) exchanged() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.codes)
}

type fixture struct {
	db       *bun.DB
	repos    signup.RepositoryManager
	tokens   *signup.TokenAuthority
	provider *stubProvider
	mediator *social.Mediator
	now      time.Time
}

func newFixture(t *testing.T, email string) *fixture {
	t.Helper()

	f := &fixture{
		db:       setupTestDB(t),
		provider: newStubProvider(email),
		now:      time.Now().UTC(),
	}
	f.repos = signup.NewRepositoryManager(f.db)
	f.tokens = signup.NewTokenAuthority([]byte(testSigningKey), 24, "signup-test", []string{"app"},
		signup.WithTokenLogger(nopLogger{}),
	)

	reconciler := social.NewReconciler(f.repos,
		social.WithReconcilerHasher(signup.BcryptHasher{Cost: bcrypt.MinCost}),
		social.WithReconcilerClock(func() time.Time { return f.now }),
		social.WithReconcilerLogger(nopLogger{}),
	)
	sanitizer := signup.NewRedirectSanitizer("https://app.example.com")
	f.mediator = social.NewMediator(f.provider, reconciler, f.tokens, sanitizer,
		social.WithMediatorLogger(nopLogger{}),
	)
	return f
}

// createAppUser stores an active owner for email under a fresh client.
func (f *fixture) createAppUser(t *testing.T, email string) *signup.AppUser {
	t.Helper()
	ctx := context.Background()

	client, err := f.repos.Clients().Create(ctx, &signup.Client{Name: "Acme"})
	require.NoError(t, err)

	user, err := f.repos.AppUsers().Create(ctx, &signup.AppUser{
		ClientID: client.ID,
		Email:    email,
		Role:     signup.RoleOwner,
		IsActive: true,
	})
	require.NoError(t, err)
	return user
}

// testContext serves headers, cookies and the request context from
// plain fields and delegates the rest to the router mock.
type testContext struct {
	*router.MockContext
	headers map[string]string
	cookies map[string]string
	written []*router.Cookie
}

func newTestContext() *testContext {
	ctx := &testContext{
		MockContext: router.NewMockContext(),
		headers:     map[string]string{"Host": "app.example.com", "X-Forwarded-Proto": "https"},
		cookies:     map[string]string{},
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

func (c *testContext) Context() context.Context {
	return context.Background()
}

func (c *testContext) cookie(name string) *router.Cookie {
	for i := len(c.written) - 1; i >= 0; i-- {
		if c.written[i].Name == name {
			return c.written[i]
		}
	}
	return nil
}
