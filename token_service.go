package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// TokenService signs and verifies bearer tokens. Verification is pure: no
// I/O happens here. Revocation and tokenVersion checks are layered on top by
// the SessionManager so the codec stays stateless and testable on its own.
type TokenService interface {
	IssuePair(principal Principal) (TokenPair, error)
	Mint(principal Principal, purpose TokenPurpose, opts MintOptions) (string, time.Time, error)
	Verify(raw string, expected TokenPurpose) (*SessionClaims, error)
}

// TokenPair bundles a freshly issued access+refresh token set.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// MintOptions controls how Mint issues a single token.
type MintOptions struct {
	// TTL overrides the configured expiration for the purpose. Zero uses the
	// service defaults.
	TTL time.Duration
	// IssuedAt overrides the issuance time. Zero uses time.Now().
	IssuedAt time.Time
	// JTI overrides the generated token identifier if provided.
	JTI string
}

// TokenServiceImpl implements the TokenService interface with HS256 and a
// server-held secret.
type TokenServiceImpl struct {
	signingKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	audience   jwt.ClaimStrings
	logger     Logger
}

// NewTokenService creates a new TokenService instance from the shared Config.
func NewTokenService(cfg Config, logger Logger) *TokenServiceImpl {
	if logger == nil {
		logger = defLogger{}
	}
	return &TokenServiceImpl{
		signingKey: []byte(cfg.GetSigningKey()),
		accessTTL:  cfg.GetAccessTokenTTL(),
		refreshTTL: cfg.GetRefreshTokenTTL(),
		issuer:     cfg.GetIssuer(),
		audience:   cfg.GetAudience(),
		logger:     logger,
	}
}

// IssuePair mints the access+refresh pair for a principal, embedding the
// principal's current tokenVersion in both.
func (ts *TokenServiceImpl) IssuePair(principal Principal) (TokenPair, error) {
	access, accessExp, err := ts.Mint(principal, PurposeAccess, MintOptions{})
	if err != nil {
		return TokenPair{}, err
	}

	refresh, refreshExp, err := ts.Mint(principal, PurposeRefresh, MintOptions{})
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Mint issues a single signed token for the given purpose.
func (ts *TokenServiceImpl) Mint(principal Principal, purpose TokenPurpose, opts MintOptions) (string, time.Time, error) {
	if purpose != PurposeAccess && purpose != PurposeRefresh {
		return "", time.Time{}, errors.New("unknown token purpose", errors.CategoryBadInput).
			WithMetadata(map[string]any{"purpose": string(purpose)})
	}

	ttl := opts.TTL
	if ttl == 0 {
		ttl = ts.accessTTL
		if purpose == PurposeRefresh {
			ttl = ts.refreshTTL
		}
	}

	issuedAt := opts.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}
	expiresAt := issuedAt.Add(ttl)

	var aud jwt.ClaimStrings
	if len(ts.audience) > 0 {
		aud = make(jwt.ClaimStrings, len(ts.audience))
		copy(aud, ts.audience)
	}

	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   principal.ID.String(),
			Audience:  aud,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        opts.JTI,
		},
		Kind:         principal.Kind,
		Admin:        principal.IsAdmin,
		TokenVersion: principal.TokenVersion,
		Purpose:      purpose,
	}

	ensureTokenID(&claims.RegisteredClaims)

	signed, err := ts.signClaims(claims)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}

func (ts *TokenServiceImpl) signClaims(claims *SessionClaims) (string, error) {
	if claims == nil {
		return "", errors.New("claims must not be nil", errors.CategoryInternal)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign token")
	}

	return signedString, nil
}

// Verify checks signature, expiry, and purpose, returning structured claims.
// It performs no I/O; callers must still run revocation and tokenVersion
// checks where the pipeline requires them.
func (ts *TokenServiceImpl) Verify(raw string, expected TokenPurpose) (*SessionClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(raw, &SessionClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService verify encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, errors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).
			WithTextCode(ErrTokenMalformed.TextCode).
			WithCode(errors.CodeUnauthorized)
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		ts.logger.Error("TokenService verify could not decode claims")
		return nil, ErrTokenMalformed
	}

	if claims.Purpose != expected {
		return nil, ErrTokenPurposeMismatch
	}

	return claims, nil
}
