package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var ResetStaffPasswordSQL = `UPDATE "staff" AS "stf"
SET
	"password_hash" = ?,
	"token_version" = "token_version" + 1,
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"stf"."deleted_at" IS NULL
AND (
	"stf"."id" = ?
) RETURNING *;`

var VerifyStaffEmailSQL = `UPDATE "staff" AS "stf"
SET
	"is_email_verified" = TRUE,
	"updated_at" = CURRENT_TIMESTAMP
WHERE
	"stf"."deleted_at" IS NULL
AND (
	"stf"."id" = ?
) RETURNING *;`

// StaffMembers mirrors the Users repository over the staff table. The two
// stay separate on purpose: disjoint ID spaces, independent uniqueness
// constraints, no shared rows.
type StaffMembers interface {
	repository.Repository[*Staff]

	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Staff, error)
	GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*Staff, error)

	TouchLastLogin(ctx context.Context, id uuid.UUID) error
	TouchLastLoginTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error

	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error

	MarkEmailVerified(ctx context.Context, id uuid.UUID) error
	MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
}

type staffMembers struct {
	repository.Repository[*Staff]
	db *bun.DB
}

var _ StaffMembers = (*staffMembers)(nil)

func NewStaffRepository(db *bun.DB) StaffMembers {
	repo := repository.NewRepository[*Staff](db, repository.ModelHandlers[*Staff]{
		NewRecord: func() *Staff { return &Staff{} },
		GetID: func(s *Staff) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *Staff, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &staffMembers{
		Repository: repo,
		db:         db,
	}
}

func (a *staffMembers) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*Staff, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

func (a *staffMembers) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*Staff, error) {
	record := &Staff{}
	err := selectByIdentifier(ctx, tx, record, identifier, criteria...)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (a *staffMembers) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	return a.TouchLastLoginTx(ctx, a.db, id)
}

func (a *staffMembers) TouchLastLoginTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	now := time.Now()
	_, err := tx.NewRaw(`
		UPDATE "staff" AS "stf"
		SET
			"last_login_at" = ?,
			"updated_at" = ?
		WHERE
			("stf".id = ?)
			AND "stf"."deleted_at" IS NULL;
	`, now, now, id).Exec(ctx)

	return err
}

func (a *staffMembers) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.ResetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *staffMembers) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, ResetStaffPasswordSQL, passwordHash, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *staffMembers) MarkEmailVerified(ctx context.Context, id uuid.UUID) error {
	return a.MarkEmailVerifiedTx(ctx, a.db, id)
}

func (a *staffMembers) MarkEmailVerifiedTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	res, err := a.Repository.RawTx(ctx, tx, VerifyStaffEmailSQL, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}
