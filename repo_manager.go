package signup

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	PendingSignups() PendingSignups
	AppUsers() AppUsers
	Clients() Clients
	VerificationTokens() VerificationTokens
}

type mngr struct {
	db                 *bun.DB
	pendingSignups     PendingSignups
	appUsers           AppUsers
	clients            Clients
	verificationTokens VerificationTokens
}

// NewRepositoryManager wires every repository against db
func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:                 db,
		pendingSignups:     NewPendingSignupsRepository(db),
		appUsers:           NewAppUsersRepository(db),
		clients:            NewClientsRepository(db),
		verificationTokens: NewVerificationTokensRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.pendingSignups == nil {
		return errors.New("repository pendingSignups should be initialized")
	}

	if m.appUsers == nil {
		return errors.New("repository appUsers should be initialized")
	}

	if m.clients == nil {
		return errors.New("repository clients should be initialized")
	}

	if m.verificationTokens == nil {
		return errors.New("repository verificationTokens should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) PendingSignups() PendingSignups {
	return m.pendingSignups
}

func (m mngr) AppUsers() AppUsers {
	return m.appUsers
}

func (m mngr) Clients() Clients {
	return m.clients
}

func (m mngr) VerificationTokens() VerificationTokens {
	return m.verificationTokens
}
