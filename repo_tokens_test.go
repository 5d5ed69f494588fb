package auth_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	auth "github.com/odelora/go-auth"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	sqliteCreateUsers = `CREATE TABLE users (
    id TEXT NOT NULL PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    is_email_verified BOOLEAN NOT NULL DEFAULT FALSE,
    token_version INTEGER NOT NULL DEFAULT 0,
    last_login_at TIMESTAMP,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP,
    deleted_at TIMESTAMP
);`

	sqliteCreateStaff = `CREATE TABLE staff (
    id TEXT NOT NULL PRIMARY KEY,
    username TEXT NOT NULL UNIQUE,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    is_email_verified BOOLEAN NOT NULL DEFAULT FALSE,
    is_admin BOOLEAN NOT NULL DEFAULT FALSE,
    token_version INTEGER NOT NULL DEFAULT 0,
    last_login_at TIMESTAMP,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP,
    deleted_at TIMESTAMP
);`

	sqliteCreateOneTimeTokens = `CREATE TABLE one_time_tokens (
    id TEXT NOT NULL PRIMARY KEY,
    token TEXT NOT NULL UNIQUE,
    owner_kind TEXT NOT NULL,
    owner_id TEXT NOT NULL,
    purpose TEXT NOT NULL,
    expires_at TIMESTAMP NOT NULL,
    used BOOLEAN NOT NULL DEFAULT FALSE,
    used_at TIMESTAMP,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = db.Exec(sqliteCreateUsers)
	require.NoError(t, err)
	_, err = db.Exec(sqliteCreateStaff)
	require.NoError(t, err)
	_, err = db.Exec(sqliteCreateOneTimeTokens)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})

	return db
}

func TestOneTimeTokensConsumeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewOneTimeTokensRepository(setupTestDB(t))
	ownerID := uuid.New()

	issued, err := repo.Issue(ctx, auth.KindUser, ownerID, auth.OneTimePurposePasswordReset, time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, issued.Token)
	require.False(t, issued.Used)

	consumed, err := repo.Consume(ctx, issued.Token, auth.OneTimePurposePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, issued.ID, consumed.ID)
	assert.Equal(t, auth.KindUser, consumed.OwnerKind)
	assert.Equal(t, ownerID, consumed.OwnerID)
	assert.True(t, consumed.Used)
	require.NotNil(t, consumed.UsedAt)

	_, err = repo.Consume(ctx, issued.Token, auth.OneTimePurposePasswordReset)
	assert.ErrorIs(t, err, auth.ErrOneTimeTokenInvalid)
}

func TestOneTimeTokensConcurrentConsumeHasOneWinner(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewOneTimeTokensRepository(setupTestDB(t))

	issued, err := repo.Issue(ctx, auth.KindUser, uuid.New(), auth.OneTimePurposePasswordReset, time.Hour)
	require.NoError(t, err)

	const callers = 8

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
		losers  int
	)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := repo.Consume(ctx, issued.Token, auth.OneTimePurposePasswordReset)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				winners++
			default:
				losers++
				assert.ErrorIs(t, err, auth.ErrOneTimeTokenInvalid)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, callers-1, losers)
}

func TestOneTimeTokensConsumeChecksExpiryAndPurpose(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewOneTimeTokensRepository(setupTestDB(t))
	ownerID := uuid.New()

	t.Run("expired token is rejected", func(t *testing.T) {
		expired, err := repo.Issue(ctx, auth.KindUser, ownerID, auth.OneTimePurposePasswordReset, -time.Minute)
		require.NoError(t, err)

		_, err = repo.Consume(ctx, expired.Token, auth.OneTimePurposePasswordReset)
		assert.ErrorIs(t, err, auth.ErrOneTimeTokenInvalid)
	})

	t.Run("purpose namespaces never cross", func(t *testing.T) {
		issued, err := repo.Issue(ctx, auth.KindUser, ownerID, auth.OneTimePurposeEmailVerification, time.Hour)
		require.NoError(t, err)

		_, err = repo.Consume(ctx, issued.Token, auth.OneTimePurposePasswordReset)
		assert.ErrorIs(t, err, auth.ErrOneTimeTokenInvalid)

		consumed, err := repo.Consume(ctx, issued.Token, auth.OneTimePurposeEmailVerification)
		require.NoError(t, err)
		assert.Equal(t, issued.ID, consumed.ID)
	})

	t.Run("unknown token is rejected", func(t *testing.T) {
		_, err := repo.Consume(ctx, "no-such-token", auth.OneTimePurposePasswordReset)
		assert.ErrorIs(t, err, auth.ErrOneTimeTokenInvalid)
	})
}

func TestOneTimeTokensIssueSupersedesPriorVerification(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewOneTimeTokensRepository(setupTestDB(t))
	ownerID := uuid.New()

	first, err := repo.Issue(ctx, auth.KindUser, ownerID, auth.OneTimePurposeEmailVerification, time.Hour)
	require.NoError(t, err)

	second, err := repo.Issue(ctx, auth.KindUser, ownerID, auth.OneTimePurposeEmailVerification, time.Hour)
	require.NoError(t, err)
	require.NotEqual(t, first.Token, second.Token)

	// Only the latest verification link may still work.
	_, err = repo.Consume(ctx, first.Token, auth.OneTimePurposeEmailVerification)
	assert.ErrorIs(t, err, auth.ErrOneTimeTokenInvalid)

	consumed, err := repo.Consume(ctx, second.Token, auth.OneTimePurposeEmailVerification)
	require.NoError(t, err)
	assert.Equal(t, second.ID, consumed.ID)
}

func TestOneTimeTokensIssueLeavesOtherOwnersAlone(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewOneTimeTokensRepository(setupTestDB(t))

	mine, err := repo.Issue(ctx, auth.KindUser, uuid.New(), auth.OneTimePurposeEmailVerification, time.Hour)
	require.NoError(t, err)

	_, err = repo.Issue(ctx, auth.KindUser, uuid.New(), auth.OneTimePurposeEmailVerification, time.Hour)
	require.NoError(t, err)

	_, err = repo.Consume(ctx, mine.Token, auth.OneTimePurposeEmailVerification)
	assert.NoError(t, err)
}

func TestOneTimeTokensInvalidatePrior(t *testing.T) {
	ctx := context.Background()
	repo := auth.NewOneTimeTokensRepository(setupTestDB(t))
	ownerID := uuid.New()

	// Reset tokens tolerate parallel issuance, so closing the window is an
	// explicit call rather than an Issue side effect.
	first, err := repo.Issue(ctx, auth.KindUser, ownerID, auth.OneTimePurposePasswordReset, time.Hour)
	require.NoError(t, err)

	second, err := repo.Issue(ctx, auth.KindUser, ownerID, auth.OneTimePurposePasswordReset, time.Hour)
	require.NoError(t, err)

	require.NoError(t, repo.InvalidatePrior(ctx, auth.KindUser, ownerID, auth.OneTimePurposePasswordReset))

	_, err = repo.Consume(ctx, first.Token, auth.OneTimePurposePasswordReset)
	assert.ErrorIs(t, err, auth.ErrOneTimeTokenInvalid)
	_, err = repo.Consume(ctx, second.Token, auth.OneTimePurposePasswordReset)
	assert.ErrorIs(t, err, auth.ErrOneTimeTokenInvalid)
}
