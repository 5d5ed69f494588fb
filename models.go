package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PrincipalKind discriminates the two identity tables. The ID spaces are
// disjoint; a kind always travels with the ID.
type PrincipalKind = string

const (
	// KindUser is the default, public-facing identity table.
	KindUser PrincipalKind = "user"
	// KindStaff is the back-office identity table.
	KindStaff PrincipalKind = "staff"
)

// IsValidKind checks the kind against the two known identity tables.
func IsValidKind(kind PrincipalKind) bool {
	return kind == KindUser || kind == KindStaff
}

// User is the public identity model.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	IsActive      bool       `bun:"is_active,notnull,default:true" json:"is_active,omitempty"`
	EmailVerified bool       `bun:"is_email_verified,notnull,default:false" json:"is_email_verified,omitempty"`
	TokenVersion  uint       `bun:"token_version,notnull,default:0" json:"-"`
	LastLoginAt   *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Staff is the back-office identity model. Same shape as User plus the
// admin flag; lives in its own table with its own ID space.
type Staff struct {
	bun.BaseModel `bun:"table:staff,alias:stf"`
	ID            uuid.UUID  `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Username      string     `bun:"username,notnull,unique" json:"username,omitempty"`
	Email         string     `bun:"email,notnull,unique" json:"email,omitempty"`
	PasswordHash  string     `bun:"password_hash,notnull" json:"-"`
	IsActive      bool       `bun:"is_active,notnull,default:true" json:"is_active,omitempty"`
	EmailVerified bool       `bun:"is_email_verified,notnull,default:false" json:"is_email_verified,omitempty"`
	IsAdmin       bool       `bun:"is_admin,notnull,default:false" json:"is_admin,omitempty"`
	TokenVersion  uint       `bun:"token_version,notnull,default:0" json:"-"`
	LastLoginAt   *time.Time `bun:"last_login_at,nullzero" json:"last_login_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
	DeletedAt     *time.Time `bun:"deleted_at,soft_delete,nullzero" json:"deleted_at,omitempty"`
}

// Principal is the by-value tagged union both identity tables resolve into.
// All cross-entity references carry (Kind, ID); nothing holds a back
// reference to the originating row.
type Principal struct {
	ID            uuid.UUID
	Kind          PrincipalKind
	Username      string
	Email         string
	PasswordHash  string
	IsActive      bool
	EmailVerified bool
	IsAdmin       bool
	TokenVersion  uint
	LastLoginAt   *time.Time
}

// PrincipalSummary is the redacted identity payload returned to clients.
// It never carries the password hash.
type PrincipalSummary struct {
	ID            string        `json:"id"`
	Kind          PrincipalKind `json:"kind"`
	Username      string        `json:"username"`
	Email         string        `json:"email"`
	IsAdmin       bool          `json:"is_admin,omitempty"`
	EmailVerified bool          `json:"is_email_verified"`
	LastLoginAt   *time.Time    `json:"last_login_at,omitempty"`
}

// Summary redacts the principal for client responses.
func (p Principal) Summary() PrincipalSummary {
	return PrincipalSummary{
		ID:            p.ID.String(),
		Kind:          p.Kind,
		Username:      p.Username,
		Email:         p.Email,
		IsAdmin:       p.IsAdmin,
		EmailVerified: p.EmailVerified,
		LastLoginAt:   p.LastLoginAt,
	}
}

// PrincipalFromUser adapts a user row into the shared Principal shape.
func PrincipalFromUser(u *User) Principal {
	if u == nil {
		return Principal{}
	}
	return Principal{
		ID:            u.ID,
		Kind:          KindUser,
		Username:      u.Username,
		Email:         u.Email,
		PasswordHash:  u.PasswordHash,
		IsActive:      u.IsActive,
		EmailVerified: u.EmailVerified,
		IsAdmin:       false,
		TokenVersion:  u.TokenVersion,
		LastLoginAt:   u.LastLoginAt,
	}
}

// PrincipalFromStaff adapts a staff row into the shared Principal shape.
func PrincipalFromStaff(s *Staff) Principal {
	if s == nil {
		return Principal{}
	}
	return Principal{
		ID:            s.ID,
		Kind:          KindStaff,
		Username:      s.Username,
		Email:         s.Email,
		PasswordHash:  s.PasswordHash,
		IsActive:      s.IsActive,
		EmailVerified: s.EmailVerified,
		IsAdmin:       s.IsAdmin,
		TokenVersion:  s.TokenVersion,
		LastLoginAt:   s.LastLoginAt,
	}
}

// One-time token namespaces. Structurally identical, logically separate: a
// token issued for one purpose can never be consumed under the other.
const (
	OneTimePurposeEmailVerification = "email_verification"
	OneTimePurposePasswordReset     = "password_reset"
)

// OneTimeToken is a single-use, expiring opaque credential for email
// verification and password reset flows.
//
// Lifecycle: Issued -> Used (terminal) | Expired (terminal, checked at
// consumption time). Nothing transitions back out of Used or Expired.
type OneTimeToken struct {
	bun.BaseModel `bun:"table:one_time_tokens,alias:ott"`
	ID            uuid.UUID     `bun:"id,pk,nullzero,type:uuid" json:"id,omitempty"`
	Token         string        `bun:"token,notnull,unique" json:"-"`
	OwnerKind     PrincipalKind `bun:"owner_kind,notnull" json:"owner_kind,omitempty"`
	OwnerID       uuid.UUID     `bun:"owner_id,notnull,type:uuid" json:"owner_id,omitempty"`
	Purpose       string        `bun:"purpose,notnull" json:"purpose,omitempty"`
	ExpiresAt     time.Time     `bun:"expires_at,notnull" json:"expires_at,omitempty"`
	Used          bool          `bun:"used,notnull,default:false" json:"used,omitempty"`
	UsedAt        *time.Time    `bun:"used_at,nullzero" json:"used_at,omitempty"`
	CreatedAt     *time.Time    `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// IsExpired reports whether the token is past its validity window.
func (t *OneTimeToken) IsExpired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
