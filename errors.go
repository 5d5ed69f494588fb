package auth

import (
	"net/http"
	"strings"

	"github.com/goliatone/go-errors"
)

// Stable machine-readable codes exposed to clients as the `type` field of
// every error response. Handlers and middleware rely on these staying fixed.
const (
	TextCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	TextCodeAccountDisabled      = "ACCOUNT_DISABLED"
	TextCodeEmailNotVerified     = "EMAIL_NOT_VERIFIED"
	TextCodeTokenMalformed       = "TOKEN_MALFORMED"
	TextCodeTokenExpired         = "TOKEN_EXPIRED"
	TextCodeTokenPurposeMismatch = "TOKEN_PURPOSE_MISMATCH"
	TextCodeTokenStale           = "TOKEN_STALE"
	TextCodeTokenRevoked         = "TOKEN_REVOKED"
	TextCodeOneTimeTokenInvalid  = "INVALID_OR_EXPIRED_TOKEN"
	TextCodeIdentityNotFound     = "IDENTITY_NOT_FOUND"
	TextCodeServiceUnavailable   = "AUTH_SERVICE_UNAVAILABLE"
	TextCodeEmptyPassword        = "EMPTY_PASSWORD"
	TextCodeWeakPassword         = "WEAK_PASSWORD"
)

// ErrInvalidCredentials covers both unknown identity and wrong password so
// responses never reveal which identifiers exist.
var ErrInvalidCredentials = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrAccountDisabled is returned when the principal exists but is inactive.
var ErrAccountDisabled = errors.New("account is disabled", errors.CategoryAuthz).
	WithTextCode(TextCodeAccountDisabled).
	WithCode(errors.CodeForbidden)

// ErrEmailNotVerified blocks user logins until the address is confirmed.
var ErrEmailNotVerified = errors.New("email address has not been verified", errors.CategoryAuthz).
	WithTextCode(TextCodeEmailNotVerified).
	WithCode(errors.CodeForbidden)

// ErrTokenMalformed is returned for tokens that fail to parse or whose
// signature does not verify.
var ErrTokenMalformed = errors.New("token is malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned for structurally valid tokens past their expiry.
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenPurposeMismatch rejects access tokens presented where a refresh
// token is expected and vice versa.
var ErrTokenPurposeMismatch = errors.New("token purpose does not match", errors.CategoryAuth).
	WithTextCode(TextCodeTokenPurposeMismatch).
	WithCode(errors.CodeUnauthorized)

// ErrTokenStale is returned when the embedded tokenVersion no longer matches
// the principal's current value, e.g. after a password change.
var ErrTokenStale = errors.New("token was invalidated by a credential change", errors.CategoryAuth).
	WithTextCode(TextCodeTokenStale).
	WithCode(errors.CodeUnauthorized)

// ErrTokenRevoked is returned for tokens whose jti is present in the
// revocation store.
var ErrTokenRevoked = errors.New("token has been revoked", errors.CategoryAuth).
	WithTextCode(TextCodeTokenRevoked).
	WithCode(errors.CodeUnauthorized)

// ErrOneTimeTokenInvalid covers unknown, expired, and already-used one-time
// tokens without distinguishing between them.
var ErrOneTimeTokenInvalid = errors.New("invalid or expired token", errors.CategoryBadInput).
	WithTextCode(TextCodeOneTimeTokenInvalid).
	WithCode(errors.CodeBadRequest)

// ErrIdentityNotFound is returned when a token's subject no longer exists.
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithTextCode(TextCodeIdentityNotFound).
	WithCode(errors.CodeNotFound)

// ErrAuthServiceUnavailable surfaces revocation-store outages on the
// verification path when fail-open is not configured.
var ErrAuthServiceUnavailable = errors.New("authentication service unavailable", errors.CategoryOperation).
	WithTextCode(TextCodeServiceUnavailable).
	WithCode(http.StatusServiceUnavailable)

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(errors.CodeBadRequest)

// IsTokenExpiredError will check for expired tokens, including errors coming
// from the underlying JWT library rather than our own taxonomy.
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	if richErr, ok := asRichError(err); ok && richErr.TextCode == TextCodeTokenExpired {
		return true
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for malformed token errors.
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	if richErr, ok := asRichError(err); ok && richErr.TextCode == TextCodeTokenMalformed {
		return true
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

func asRichError(err error) (*errors.Error, bool) {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr, true
	}
	return nil, false
}
