package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds auth options
type Config interface {
	GetSigningKey() string
	GetIssuer() string
	GetAudience() []string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetVerificationTokenTTL() time.Duration
	GetResetTokenTTL() time.Duration
	GetAuthScheme() string
	GetContextKey() string
	// GetRevocationFailOpen controls what token verification does when the
	// revocation store is unreachable: true treats the token as not revoked,
	// false (default) fails the request with AuthServiceUnavailable. Logout
	// always fails open regardless.
	GetRevocationFailOpen() bool
}

// PrincipalStore is the credential-store adapter the SessionManager consumes.
// The backing tables are external; implementations must be safe for
// concurrent use and honor context deadlines.
type PrincipalStore interface {
	// FindByIdentifier resolves a principal by username or email within one
	// kind's table.
	FindByIdentifier(ctx context.Context, kind PrincipalKind, identifier string) (Principal, error)
	FindByID(ctx context.Context, kind PrincipalKind, id uuid.UUID) (Principal, error)
	FindByEmail(ctx context.Context, kind PrincipalKind, email string) (Principal, error)
	TouchLastLogin(ctx context.Context, kind PrincipalKind, id uuid.UUID) error
	// ResetPassword swaps the hash and increments token_version in a single
	// statement so every outstanding token goes stale atomically.
	ResetPassword(ctx context.Context, kind PrincipalKind, id uuid.UUID, passwordHash string) error
	MarkEmailVerified(ctx context.Context, kind PrincipalKind, id uuid.UUID) error
}

// OneTimeTokenLedger issues and consumes single-use tokens.
type OneTimeTokenLedger interface {
	// Issue creates a fresh token. For email verification it supersedes all
	// prior unused tokens of the owner first, so only one validity window is
	// ever open.
	Issue(ctx context.Context, kind PrincipalKind, ownerID uuid.UUID, purpose string, ttl time.Duration) (*OneTimeToken, error)
	// Consume atomically flips an unexpired, unused token to used. Under
	// concurrent calls exactly one caller wins; the rest get
	// ErrOneTimeTokenInvalid.
	Consume(ctx context.Context, token, purpose string) (*OneTimeToken, error)
	InvalidatePrior(ctx context.Context, kind PrincipalKind, ownerID uuid.UUID, purpose string) error
}

// RevocationStore is the external TTL-capable denylist keyed by jti.
// Absence of an entry is the default (open) state.
type RevocationStore interface {
	// Revoke is idempotent; the entry self-expires at until.
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Mailer delivers out-of-band tokens. Calls are best-effort and
// fire-and-forget from the SessionManager's perspective; failures never roll
// back the operation that triggered them.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, principal PrincipalSummary, token string) error
	SendPasswordResetEmail(ctx context.Context, principal PrincipalSummary, token string) error
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

var _ jwt.Claims = (*SessionClaims)(nil)
