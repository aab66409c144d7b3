package signup_test

import (
	"context"
	"testing"
	"time"

	"github.com/goliatone/go-repository-bun"
	signup "github.com/goliatone/go-signup"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func TestPendingSignupsRepository_Upsert(t *testing.T) {
	db := setupTestDB(t)
	repo := signup.NewPendingSignupsRepository(db)
	ctx := context.Background()

	first, applied, err := repo.UpsertForRegistration(ctx, &signup.PendingSignup{
		Email:        "Upsert@Example.com",
		PasswordHash: "hash-1",
	})
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, "upsert@example.com", first.Email)
	assert.Equal(t, signup.PendingStatus, first.Status)
	assert.Empty(t, first.CompanyName)

	second, applied, err := repo.UpsertForRegistration(ctx, &signup.PendingSignup{
		Email:        "upsert@example.com",
		PasswordHash: "hash-2",
		CompanyName:  "Acme",
	})
	require.NoError(t, err)
	assert.False(t, applied, "pending rows are not overwritten")
	assert.Nil(t, second)

	stored, err := repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash-1", stored.PasswordHash)
	assert.Empty(t, stored.CompanyName)

	err = signup.NewRepositoryManager(db).RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := repo.MarkEmailVerifiedTx(ctx, tx, first.ID, time.Now())
		return err
	})
	require.NoError(t, err)

	third, applied, err := repo.UpsertForRegistration(ctx, &signup.PendingSignup{
		Email:        "upsert@example.com",
		PasswordHash: "hash-3",
	})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Nil(t, third)

	stored, err = repo.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "hash-1", stored.PasswordHash, "verified rows are not overwritten")
}

func TestPendingSignupsRepository_MarkEmailVerifiedOnce(t *testing.T) {
	db := setupTestDB(t)
	repo := signup.NewPendingSignupsRepository(db)
	ctx := context.Background()

	record, err := repo.Create(ctx, &signup.PendingSignup{
		Email:        "once@example.com",
		PasswordHash: "hash",
		Status:       signup.PendingStatus,
	})
	require.NoError(t, err)

	stamped, err := repo.MarkEmailVerifiedTx(ctx, db, record.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, stamped)

	stamped, err = repo.MarkEmailVerifiedTx(ctx, db, record.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, stamped)
}

func TestPendingSignupsRepository_ActivateAndReactivate(t *testing.T) {
	db := setupTestDB(t)
	repo := signup.NewPendingSignupsRepository(db)
	ctx := context.Background()

	record, err := repo.Create(ctx, &signup.PendingSignup{
		Email:        "activate@example.com",
		PasswordHash: "hash",
		Status:       signup.PendingStatus,
	})
	require.NoError(t, err)

	clientID := uuid.New()
	require.NoError(t, repo.Activate(ctx, record.ID, clientID, "cs_123"))

	stored, err := repo.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActivated())
	assert.Equal(t, clientID, stored.ClientID)
	assert.Equal(t, "cs_123", stored.ActivationSessionID)

	err = repo.Activate(ctx, record.ID, uuid.New(), "")
	assert.True(t, signup.IsNotFound(err), "activation only moves pending rows")

	revived, err := repo.ReactivateTx(ctx, db, record.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, revived, "only expired rows are reactivated")
}

func TestPendingSignupsRepository_LatestByEmailAndUpdate(t *testing.T) {
	db := setupTestDB(t)
	repo := signup.NewPendingSignupsRepository(db)
	ctx := context.Background()

	_, err := repo.LatestByEmail(ctx, "missing@example.com")
	assert.True(t, signup.IsNotFound(err))

	record, err := repo.Create(ctx, &signup.PendingSignup{
		Email:        "Latest@Example.com",
		PasswordHash: "hash",
		Status:       signup.PendingStatus,
	})
	require.NoError(t, err)

	found, err := repo.LatestByEmail(ctx, "LATEST@example.com")
	require.NoError(t, err)
	assert.Equal(t, record.ID, found.ID)

	require.NoError(t, repo.UpdateCompanyName(ctx, record.ID, "Renamed"))
	found, err = repo.GetByID(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", found.CompanyName)

	err = repo.UpdateCompanyName(ctx, uuid.New(), "Nobody")
	assert.True(t, signup.IsNotFound(err))
}

func TestAppUsersRepository_LatestActive(t *testing.T) {
	db := setupTestDB(t)
	repos := signup.NewRepositoryManager(db)
	ctx := context.Background()

	client, err := repos.Clients().Create(ctx, &signup.Client{Name: "Acme"})
	require.NoError(t, err)

	_, err = repos.AppUsers().Create(ctx, &signup.AppUser{
		ClientID: client.ID,
		Email:    "member@example.com",
		IsActive: false,
	})
	require.NoError(t, err)

	_, err = repos.AppUsers().LatestActiveByEmail(ctx, "member@example.com")
	assert.True(t, signup.IsNotFound(err), "inactive users are ignored")

	active, err := repos.AppUsers().Create(ctx, &signup.AppUser{
		ClientID: client.ID,
		Email:    "Member@Example.com",
		IsActive: true,
	})
	require.NoError(t, err)
	assert.Equal(t, signup.RoleMember, active.Role)

	found, err := repos.AppUsers().LatestActiveByEmail(ctx, "MEMBER@example.com")
	require.NoError(t, err)
	assert.Equal(t, active.ID, found.ID)

	found, err = repos.AppUsers().LatestActiveByClientAndEmail(ctx, client.ID, "member@example.com")
	require.NoError(t, err)
	assert.Equal(t, active.ID, found.ID)

	_, err = repos.AppUsers().LatestActiveByClientAndEmail(ctx, uuid.New(), "member@example.com")
	assert.True(t, signup.IsNotFound(err))
}

func TestRepositoryManager_Validate(t *testing.T) {
	repos := signup.NewRepositoryManager(setupTestDB(t))
	assert.NoError(t, repos.Validate())
	assert.NotPanics(t, repos.MustValidate)
}

func TestRepositories_NotFoundAndReturning(t *testing.T) {
	db := setupTestDB(t)
	repos := signup.NewRepositoryManager(db)
	ctx := context.Background()

	_, err := repos.PendingSignups().GetByID(ctx, uuid.New())
	assert.True(t, signup.IsNotFound(err))
	assert.ErrorIs(t, err, signup.ErrRecordNotFound)

	_, err = repos.PendingSignups().LatestByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, signup.ErrRecordNotFound)

	_, err = repos.Clients().GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, signup.ErrRecordNotFound)

	_, err = repos.VerificationTokens().GetByHashTx(ctx, db, "missing")
	assert.ErrorIs(t, err, signup.ErrRecordNotFound)

	assert.True(t, signup.IsNotFound(repository.NewRecordNotFound()))

	record, applied, err := repos.PendingSignups().UpsertForRegistration(ctx, &signup.PendingSignup{
		Email:        "Returning@Example.com",
		PasswordHash: "hash",
		CompanyName:  "  Acme ",
	})
	require.NoError(t, err)
	require.True(t, applied)
	assert.NotEqual(t, uuid.Nil, record.ID)
	assert.Equal(t, "returning@example.com", record.Email)
	assert.Equal(t, "Acme", record.CompanyName)
	assert.Equal(t, signup.PendingStatus, record.Status)
	assert.NotNil(t, record.CreatedAt)

	client, err := repos.Clients().Create(ctx, &signup.Client{Name: "Acme"})
	require.NoError(t, err)
	stored, err := repos.Clients().GetByID(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme", stored.Name)
}

func TestPendingSignupsRepository_InsertIfAbsent(t *testing.T) {
	db := setupTestDB(t)
	repo := signup.NewPendingSignupsRepository(db)
	ctx := context.Background()
	now := time.Now().UTC()

	inserted, err := repo.InsertIfAbsentTx(ctx, db, &signup.PendingSignup{
		Email:           "Social@Example.com",
		PasswordHash:    "hash-1",
		EmailVerifiedAt: &now,
	})
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.InsertIfAbsentTx(ctx, db, &signup.PendingSignup{
		Email:        "social@example.com",
		PasswordHash: "hash-2",
	})
	require.NoError(t, err, "a duplicate email is not a unique violation")
	assert.False(t, inserted)

	stored, err := repo.LatestByEmail(ctx, "social@example.com")
	require.NoError(t, err)
	assert.Equal(t, "hash-1", stored.PasswordHash)
	assert.True(t, stored.EmailVerified())
	assert.Equal(t, signup.PendingStatus, stored.Status)
}
