package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenPurpose separates the two bearer token families. Verification rejects
// a token whose purpose does not match what the endpoint expects, so access
// and refresh tokens are never interchangeable even though they share the
// signing mechanism.
type TokenPurpose string

const (
	// PurposeAccess marks short-lived tokens accepted by protected endpoints.
	PurposeAccess TokenPurpose = "access"
	// PurposeRefresh marks longer-lived tokens accepted only by the refresh
	// endpoint.
	PurposeRefresh TokenPurpose = "refresh"
)

// SessionClaims is the claim set embedded in every bearer token. Tokens are
// never persisted; the claims are the whole session state.
type SessionClaims struct {
	jwt.RegisteredClaims
	Kind         PrincipalKind `json:"knd,omitempty"`
	Admin        bool          `json:"adm,omitempty"`
	TokenVersion uint          `json:"tkv"`
	Purpose      TokenPurpose  `json:"prp,omitempty"`
}

// SubjectID returns the principal ID carried in the subject claim.
func (c *SessionClaims) SubjectID() string {
	return c.RegisteredClaims.Subject
}

// SubjectUUID parses the subject claim into a UUID.
func (c *SessionClaims) SubjectUUID() (uuid.UUID, error) {
	return uuid.Parse(c.RegisteredClaims.Subject)
}

// JTI returns the unique token identifier used as the revocation key.
func (c *SessionClaims) JTI() string {
	return c.RegisteredClaims.ID
}

// Expires returns the expiration time, zero if unset.
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedTime returns the issuance time, zero if unset.
func (c *SessionClaims) IssuedTime() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}

// ensureTokenID assigns a jti when the claims do not carry one yet. Every
// issued token must have one or revocation has nothing to key on.
func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims.ID == "" {
		claims.ID = uuid.New().String()
	}
}
