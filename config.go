package auth

import "time"

// StaticConfig is a plain-struct Config for embedding apps and tests.
// Zero values fall back to sane defaults through the getters.
type StaticConfig struct {
	SigningKey           string
	Issuer               string
	Audience             []string
	AccessTokenTTL       time.Duration
	RefreshTokenTTL      time.Duration
	VerificationTokenTTL time.Duration
	ResetTokenTTL        time.Duration
	AuthScheme           string
	ContextKey           string
	RevocationFailOpen   bool
}

var _ Config = (*StaticConfig)(nil)

func (c *StaticConfig) GetSigningKey() string { return c.SigningKey }

func (c *StaticConfig) GetIssuer() string { return c.Issuer }

func (c *StaticConfig) GetAudience() []string { return c.Audience }

func (c *StaticConfig) GetAccessTokenTTL() time.Duration {
	if c.AccessTokenTTL <= 0 {
		return 2 * time.Hour
	}
	return c.AccessTokenTTL
}

func (c *StaticConfig) GetRefreshTokenTTL() time.Duration {
	if c.RefreshTokenTTL <= 0 {
		return 30 * 24 * time.Hour
	}
	return c.RefreshTokenTTL
}

func (c *StaticConfig) GetVerificationTokenTTL() time.Duration {
	if c.VerificationTokenTTL <= 0 {
		return 24 * time.Hour
	}
	return c.VerificationTokenTTL
}

func (c *StaticConfig) GetResetTokenTTL() time.Duration {
	if c.ResetTokenTTL <= 0 {
		return 2 * time.Hour
	}
	return c.ResetTokenTTL
}

func (c *StaticConfig) GetAuthScheme() string {
	if c.AuthScheme == "" {
		return "Bearer"
	}
	return c.AuthScheme
}

func (c *StaticConfig) GetContextKey() string {
	if c.ContextKey == "" {
		return "user"
	}
	return c.ContextKey
}

func (c *StaticConfig) GetRevocationFailOpen() bool { return c.RevocationFailOpen }
