package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-repository-bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Staff() StaffMembers
	OneTimeTokens() OneTimeTokens
}

type mngr struct {
	db            *bun.DB
	users         Users
	staff         StaffMembers
	oneTimeTokens OneTimeTokens
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:            db,
		users:         NewUsersRepository(db),
		staff:         NewStaffRepository(db),
		oneTimeTokens: NewOneTimeTokensRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.staff == nil {
		return errors.New("repository staff should be initialized")
	}

	if m.oneTimeTokens == nil {
		return errors.New("repository oneTimeTokens should be initialized")
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

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Staff() StaffMembers {
	return m.staff
}

func (m mngr) OneTimeTokens() OneTimeTokens {
	return m.oneTimeTokens
}
