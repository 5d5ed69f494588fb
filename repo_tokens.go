package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ConsumeOneTimeTokenSQL flips an unexpired, unused token to used in a
// single conditional update. Concurrent consumers race on the same row; the
// store serializes the update so exactly one caller gets the row back.
var ConsumeOneTimeTokenSQL = `UPDATE "one_time_tokens" AS "ott"
SET
	"used" = TRUE,
	"used_at" = ?
WHERE
	"ott"."token" = ?
AND "ott"."purpose" = ?
AND "ott"."used" = FALSE
AND "ott"."expires_at" > ?
RETURNING *;`

// InvalidatePriorTokensSQL marks every outstanding unused token of an owner
// as used, closing its validity window without deleting the audit trail.
var InvalidatePriorTokensSQL = `UPDATE "one_time_tokens" AS "ott"
SET
	"used" = TRUE,
	"used_at" = ?
WHERE
	"ott"."owner_kind" = ?
AND "ott"."owner_id" = ?
AND "ott"."purpose" = ?
AND "ott"."used" = FALSE;`

type OneTimeTokens interface {
	repository.Repository[*OneTimeToken]

	Issue(ctx context.Context, kind PrincipalKind, ownerID uuid.UUID, purpose string, ttl time.Duration) (*OneTimeToken, error)
	IssueTx(ctx context.Context, tx bun.IDB, kind PrincipalKind, ownerID uuid.UUID, purpose string, ttl time.Duration) (*OneTimeToken, error)
	Consume(ctx context.Context, token, purpose string) (*OneTimeToken, error)
	ConsumeTx(ctx context.Context, tx bun.IDB, token, purpose string) (*OneTimeToken, error)
	InvalidatePrior(ctx context.Context, kind PrincipalKind, ownerID uuid.UUID, purpose string) error
	InvalidatePriorTx(ctx context.Context, tx bun.IDB, kind PrincipalKind, ownerID uuid.UUID, purpose string) error
}

type oneTimeTokens struct {
	repository.Repository[*OneTimeToken]
	db *bun.DB
}

var _ OneTimeTokens = (*oneTimeTokens)(nil)

func NewOneTimeTokensRepository(db *bun.DB) OneTimeTokens {
	repo := repository.NewRepository[*OneTimeToken](db, repository.ModelHandlers[*OneTimeToken]{
		NewRecord: func() *OneTimeToken { return &OneTimeToken{} },
		GetID: func(t *OneTimeToken) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *OneTimeToken, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
		GetIdentifier: func() string {
			return "token"
		},
	})

	return &oneTimeTokens{
		Repository: repo,
		db:         db,
	}
}

func (a *oneTimeTokens) Issue(ctx context.Context, kind PrincipalKind, ownerID uuid.UUID, purpose string, ttl time.Duration) (*OneTimeToken, error) {
	return a.IssueTx(ctx, a.db, kind, ownerID, purpose, ttl)
}

func (a *oneTimeTokens) IssueTx(ctx context.Context, tx bun.IDB, kind PrincipalKind, ownerID uuid.UUID, purpose string, ttl time.Duration) (*OneTimeToken, error) {
	// Re-verification must not leave multiple live tokens behind; only the
	// password reset flow tolerates parallel outstanding tokens.
	if purpose == OneTimePurposeEmailVerification {
		if err := a.InvalidatePriorTx(ctx, tx, kind, ownerID, purpose); err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to supersede prior verification tokens")
		}
	}

	value, err := newOneTimeTokenValue()
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to generate one-time token")
	}

	record := &OneTimeToken{
		ID:        uuid.New(),
		Token:     value,
		OwnerKind: kind,
		OwnerID:   ownerID,
		Purpose:   purpose,
		ExpiresAt: time.Now().Add(ttl),
	}

	return a.Repository.CreateTx(ctx, tx, record)
}

func (a *oneTimeTokens) Consume(ctx context.Context, token, purpose string) (*OneTimeToken, error) {
	return a.ConsumeTx(ctx, a.db, token, purpose)
}

func (a *oneTimeTokens) ConsumeTx(ctx context.Context, tx bun.IDB, token, purpose string) (*OneTimeToken, error) {
	now := time.Now()
	res, err := a.Repository.RawTx(ctx, tx, ConsumeOneTimeTokenSQL, now, token, purpose, now)
	if err != nil {
		return nil, err
	}

	// Zero rows means unknown, expired, or already used; callers get the
	// same error for all three.
	if len(res) == 0 {
		return nil, ErrOneTimeTokenInvalid
	}

	return res[0], nil
}

func (a *oneTimeTokens) InvalidatePrior(ctx context.Context, kind PrincipalKind, ownerID uuid.UUID, purpose string) error {
	return a.InvalidatePriorTx(ctx, a.db, kind, ownerID, purpose)
}

func (a *oneTimeTokens) InvalidatePriorTx(ctx context.Context, tx bun.IDB, kind PrincipalKind, ownerID uuid.UUID, purpose string) error {
	_, err := tx.NewRaw(InvalidatePriorTokensSQL, time.Now(), kind, ownerID, purpose).Exec(ctx)
	return err
}

// newOneTimeTokenValue returns a 32-byte random value, URL-safe encoded so
// it can travel in links without escaping.
func newOneTimeTokenValue() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
