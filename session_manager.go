package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-errors"
)

// opTimeout bounds every store round trip made by a single operation.
const opTimeout = time.Second * 10

// mailTimeout bounds fire-and-forget delivery attempts.
const mailTimeout = time.Second * 15

// LoginResult is what a successful login hands back to the transport layer.
type LoginResult struct {
	Tokens    TokenPair        `json:"tokens"`
	Principal PrincipalSummary `json:"principal"`
}

// SessionManager orchestrates credential verification, token issuance, and
// the session lifecycle across both identity tables. It owns no storage of
// its own: principals, one-time tokens, and revocations all live behind the
// narrow store interfaces, so the manager can be exercised end to end with
// in-memory fakes.
type SessionManager struct {
	principals PrincipalStore
	ledger     OneTimeTokenLedger
	tokens     TokenService
	revocation RevocationStore
	mailer     Mailer
	activity   ActivitySink
	logger     Logger
	cfg        Config
}

// NewSessionManager wires the session lifecycle orchestrator.
func NewSessionManager(cfg Config, principals PrincipalStore, ledger OneTimeTokenLedger, revocation RevocationStore) *SessionManager {
	logger := defLogger{}
	return &SessionManager{
		principals: principals,
		ledger:     ledger,
		tokens:     NewTokenService(cfg, logger),
		revocation: revocation,
		mailer:     noopMailer{},
		activity:   noopActivitySink{},
		logger:     logger,
		cfg:        cfg,
	}
}

func (s *SessionManager) WithLogger(logger Logger) *SessionManager {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithTokenService overrides the default HS256 token service.
func (s *SessionManager) WithTokenService(ts TokenService) *SessionManager {
	if ts != nil {
		s.tokens = ts
	}
	return s
}

// WithMailer configures out-of-band token delivery.
func (s *SessionManager) WithMailer(mailer Mailer) *SessionManager {
	s.mailer = normalizeMailer(mailer)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *SessionManager) WithActivitySink(sink ActivitySink) *SessionManager {
	s.activity = normalizeActivitySink(sink)
	return s
}

// TokenService returns the token codec used by this manager.
func (s *SessionManager) TokenService() TokenService {
	return s.tokens
}

// Login resolves an identity by username or email across both tables (users
// first, staff second), verifies the password, and issues a fresh token pair.
// Unknown identity and wrong password produce the same error so responses
// never reveal which identifiers exist.
func (s *SessionManager) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	principal, err := s.resolveIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			// Burn a bcrypt comparison so unknown identifiers cost the same
			// as wrong passwords.
			_ = ComparePasswordAndHash(password, RandomPasswordHash())
			s.emitEvent(ctx, ActivityEventLoginFailure, ActorRef{Type: "unknown"}, "", map[string]any{
				"identifier": identifier,
				"reason":     TextCodeInvalidCredentials,
			})
			return LoginResult{}, ErrInvalidCredentials
		}
		s.logger.Error("Login identity lookup failed: %v", err)
		return LoginResult{}, err
	}

	if err := ComparePasswordAndHash(password, principal.PasswordHash); err != nil {
		s.emitEvent(ctx, ActivityEventLoginFailure, actorFromPrincipal(principal), principal.ID.String(), map[string]any{
			"reason": TextCodeInvalidCredentials,
		})
		return LoginResult{}, ErrInvalidCredentials
	}

	if !principal.IsActive {
		s.emitEvent(ctx, ActivityEventLoginFailure, actorFromPrincipal(principal), principal.ID.String(), map[string]any{
			"reason": TextCodeAccountDisabled,
		})
		return LoginResult{}, ErrAccountDisabled
	}

	if principal.Kind == KindUser && !principal.EmailVerified {
		s.dispatchVerificationEmail(principal)
		s.emitEvent(ctx, ActivityEventLoginFailure, actorFromPrincipal(principal), principal.ID.String(), map[string]any{
			"reason": TextCodeEmailNotVerified,
		})
		return LoginResult{}, ErrEmailNotVerified
	}

	pair, err := s.tokens.IssuePair(principal)
	if err != nil {
		s.logger.Error("Login token issuance failed: %v", err)
		return LoginResult{}, errors.Wrap(err, errors.CategoryInternal, "failed to issue session tokens")
	}

	if err := s.principals.TouchLastLogin(ctx, principal.Kind, principal.ID); err != nil {
		// Tokens are already out; a stale lastLoginAt is not worth failing
		// the login over.
		s.logger.Warn("Login could not update last_login_at: %v", err)
	}

	s.emitEvent(ctx, ActivityEventLoginSuccess, actorFromPrincipal(principal), principal.ID.String(), nil)

	return LoginResult{
		Tokens:    pair,
		Principal: principal.Summary(),
	}, nil
}

// Refresh rotates a refresh token into a new access+refresh pair. The
// principal row is re-read on every call so a tokenVersion bump anywhere
// takes effect immediately; stale or disabled presentations additionally
// revoke the presented jti.
func (s *SessionManager) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	claims, err := s.tokens.Verify(refreshToken, PurposeRefresh)
	if err != nil {
		return TokenPair{}, err
	}

	subjectID, err := claims.SubjectUUID()
	if err != nil {
		return TokenPair{}, ErrTokenMalformed
	}

	principal, err := s.principals.FindByID(ctx, claims.Kind, subjectID)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return TokenPair{}, ErrIdentityNotFound
		}
		s.logger.Error("Refresh principal reload failed: %v", err)
		return TokenPair{}, err
	}

	if !principal.IsActive {
		s.revokeBestEffort(ctx, claims)
		s.emitEvent(ctx, ActivityEventRefreshFailure, actorFromPrincipal(principal), principal.ID.String(), map[string]any{
			"reason": TextCodeAccountDisabled,
		})
		return TokenPair{}, ErrAccountDisabled
	}

	if claims.TokenVersion != principal.TokenVersion {
		s.revokeBestEffort(ctx, claims)
		s.emitEvent(ctx, ActivityEventRefreshFailure, actorFromPrincipal(principal), principal.ID.String(), map[string]any{
			"reason":          TextCodeTokenStale,
			"claim_version":   claims.TokenVersion,
			"current_version": principal.TokenVersion,
		})
		return TokenPair{}, ErrTokenStale
	}

	pair, err := s.tokens.IssuePair(principal)
	if err != nil {
		s.logger.Error("Refresh token issuance failed: %v", err)
		return TokenPair{}, errors.Wrap(err, errors.CategoryInternal, "failed to rotate session tokens")
	}

	s.emitEvent(ctx, ActivityEventRefreshSuccess, actorFromPrincipal(principal), principal.ID.String(), nil)

	return pair, nil
}

// Logout revokes the presented access token's jti best-effort. It never
// returns an error: revocation failures are logged, and an invalid or expired
// token is treated the same as a valid one so the endpoint leaks nothing.
func (s *SessionManager) Logout(ctx context.Context, accessToken string) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	claims, err := s.tokens.Verify(accessToken, PurposeAccess)
	if err != nil {
		s.logger.Debug("Logout ignoring unverifiable token: %v", err)
		return
	}

	if err := s.revocation.Revoke(ctx, claims.JTI(), claims.Expires()); err != nil {
		s.logger.Error("Logout revocation write failed, jti %s: %v", claims.JTI(), err)
	}

	s.emitEvent(ctx, ActivityEventLogout, ActorRef{ID: claims.SubjectID(), Kind: claims.Kind}, claims.SubjectID(), nil)
}

// ForgotPassword issues a password-reset token and dispatches it by email.
// The caller always gets a nil error whether or not the address exists, so
// the endpoint cannot be used to enumerate accounts.
func (s *SessionManager) ForgotPassword(ctx context.Context, kind PrincipalKind, email string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if !IsValidKind(string(kind)) {
		kind = KindUser
	}

	principal, err := s.principals.FindByEmail(ctx, kind, email)
	if err != nil {
		if !errors.Is(err, ErrIdentityNotFound) {
			s.logger.Error("ForgotPassword lookup failed: %v", err)
		}
		return nil
	}

	token, err := s.ledger.Issue(ctx, principal.Kind, principal.ID, OneTimePurposePasswordReset, s.cfg.GetResetTokenTTL())
	if err != nil {
		s.logger.Error("ForgotPassword could not issue reset token: %v", err)
		return nil
	}

	s.dispatchMail(principal.Summary(), token.Token, s.mailer.SendPasswordResetEmail)

	s.emitEvent(ctx, ActivityEventPasswordResetRequest, actorFromPrincipal(principal), principal.ID.String(), nil)

	return nil
}

// ResetPassword consumes a reset token and swaps the owner's password. The
// strength policy runs before the token is consumed so a weak password does
// not burn the single use. The credential store bumps tokenVersion in the
// same statement, which turns every outstanding session stale.
func (s *SessionManager) ResetPassword(ctx context.Context, token, newPassword string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := ValidatePasswordStrength(newPassword); err != nil {
		return err
	}

	record, err := s.ledger.Consume(ctx, token, OneTimePurposePasswordReset)
	if err != nil {
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	if err := s.principals.ResetPassword(ctx, record.OwnerKind, record.OwnerID, hash); err != nil {
		s.logger.Error("ResetPassword persist failed, owner %s: %v", record.OwnerID, err)
		return err
	}

	s.emitEvent(ctx, ActivityEventPasswordResetSuccess, ActorRef{ID: record.OwnerID.String(), Kind: record.OwnerKind}, record.OwnerID.String(), nil)

	return nil
}

// VerifyEmail consumes a verification token and flips the owner's
// emailVerified flag.
func (s *SessionManager) VerifyEmail(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	record, err := s.ledger.Consume(ctx, token, OneTimePurposeEmailVerification)
	if err != nil {
		return err
	}

	if err := s.principals.MarkEmailVerified(ctx, record.OwnerKind, record.OwnerID); err != nil {
		s.logger.Error("VerifyEmail persist failed, owner %s: %v", record.OwnerID, err)
		return err
	}

	s.emitEvent(ctx, ActivityEventEmailVerified, ActorRef{ID: record.OwnerID.String(), Kind: record.OwnerKind}, record.OwnerID.String(), nil)

	return nil
}

// Authenticate runs the protected-endpoint verification pipeline: signature,
// expiry, and purpose first, then the revocation denylist, then the live
// tokenVersion. The order matters: a malformed token must never hit the
// revocation store, and a revoked token must never hit the credential store.
func (s *SessionManager) Authenticate(ctx context.Context, accessToken string) (*SessionClaims, Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	claims, err := s.tokens.Verify(accessToken, PurposeAccess)
	if err != nil {
		return nil, Principal{}, err
	}

	revoked, err := s.revocation.IsRevoked(ctx, claims.JTI())
	if err != nil {
		if s.cfg.GetRevocationFailOpen() {
			s.logger.Warn("Authenticate revocation check failed, continuing fail-open: %v", err)
		} else {
			s.logger.Error("Authenticate revocation check failed: %v", err)
			return nil, Principal{}, ErrAuthServiceUnavailable
		}
	}
	if revoked {
		return nil, Principal{}, ErrTokenRevoked
	}

	subjectID, err := claims.SubjectUUID()
	if err != nil {
		return nil, Principal{}, ErrTokenMalformed
	}

	principal, err := s.principals.FindByID(ctx, claims.Kind, subjectID)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return nil, Principal{}, ErrIdentityNotFound
		}
		s.logger.Error("Authenticate principal reload failed: %v", err)
		return nil, Principal{}, err
	}

	if !principal.IsActive {
		s.revokeBestEffort(ctx, claims)
		return nil, Principal{}, ErrAccountDisabled
	}

	if claims.TokenVersion != principal.TokenVersion {
		return nil, Principal{}, ErrTokenStale
	}

	return claims, principal, nil
}

// resolveIdentifier tries the users table first, then staff. Identifiers are
// unique within each table but not across them; when both tables match, the
// user wins because user is the default role.
func (s *SessionManager) resolveIdentifier(ctx context.Context, identifier string) (Principal, error) {
	principal, err := s.principals.FindByIdentifier(ctx, KindUser, identifier)
	if err == nil {
		return principal, nil
	}
	if !errors.Is(err, ErrIdentityNotFound) {
		return Principal{}, err
	}
	return s.principals.FindByIdentifier(ctx, KindStaff, identifier)
}

// dispatchVerificationEmail issues a fresh verification token, superseding
// any prior unused ones, and sends it without blocking the caller.
func (s *SessionManager) dispatchVerificationEmail(principal Principal) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	token, err := s.ledger.Issue(ctx, principal.Kind, principal.ID, OneTimePurposeEmailVerification, s.cfg.GetVerificationTokenTTL())
	if err != nil {
		s.logger.Error("could not issue verification token for %s: %v", principal.ID, err)
		return
	}

	s.dispatchMail(principal.Summary(), token.Token, s.mailer.SendVerificationEmail)
}

type mailFunc func(ctx context.Context, principal PrincipalSummary, token string) error

// dispatchMail delivers on a detached goroutine with its own deadline so a
// slow transport never stretches the request, and a failed delivery never
// rolls back the operation that triggered it.
func (s *SessionManager) dispatchMail(principal PrincipalSummary, token string, send mailFunc) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mailTimeout)
		defer cancel()

		if err := send(ctx, principal, token); err != nil {
			s.logger.Error("mail delivery to %s failed: %v", principal.Email, err)
		}
	}()
}

func (s *SessionManager) revokeBestEffort(ctx context.Context, claims *SessionClaims) {
	if err := s.revocation.Revoke(ctx, claims.JTI(), claims.Expires()); err != nil {
		s.logger.Error("could not revoke jti %s: %v", claims.JTI(), err)
	}
}

func (s *SessionManager) emitEvent(ctx context.Context, eventType ActivityEventType, actor ActorRef, principalID string, metadata map[string]any) {
	event := ActivityEvent{
		EventType:   eventType,
		Actor:       actor,
		PrincipalID: principalID,
		Metadata:    metadata,
		OccurredAt:  time.Now(),
	}
	if err := s.activity.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink rejected %s event: %v", eventType, err)
	}
}

func actorFromPrincipal(p Principal) ActorRef {
	return ActorRef{
		ID:   p.ID.String(),
		Kind: p.Kind,
		Type: string(p.Kind),
	}
}
