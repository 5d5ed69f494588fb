// Package auth implements credential verification and the full session
// lifecycle over two disjoint identity tables (users and staff).
//
// Tokens:
//   - Bearer tokens are stateless HS256 JWTs carrying the principal kind,
//     admin flag, tokenVersion, and a purpose claim (access | refresh). The
//     two purposes share the signing mechanism but are never interchangeable.
//   - Bulk invalidation is stateless: password resets bump the principal's
//     token_version in the same statement that swaps the hash, and refresh
//     plus protected-endpoint verification re-read the current value, so
//     every outstanding token goes stale without a session table.
//   - Targeted invalidation (logout, forced deactivation) goes through a
//     narrow TTL-bounded revocation store keyed by jti; entries self-expire
//     with the token, so the store never grows unbounded.
//
// One-time tokens:
//   - Email verification and password reset use opaque single-use tokens
//     stored relationally. Consumption is one conditional UPDATE, so under
//     concurrent presentation exactly one caller wins.
//
// SessionManager composes the pieces into Login, Refresh, Logout,
// ForgotPassword, ResetPassword, VerifyEmail, and Authenticate. Storage and
// delivery sit behind small interfaces (PrincipalStore, OneTimeTokenLedger,
// RevocationStore, Mailer), with bun-backed and Redis-backed implementations
// included.
package auth
