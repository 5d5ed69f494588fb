package auth_test

import (
	"context"
	"testing"

	auth "github.com/odelora/go-auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaimsContextRoundtrip(t *testing.T) {
	claims := &auth.SessionClaims{Kind: auth.KindUser, TokenVersion: 2}

	ctx := auth.WithClaimsContext(context.Background(), claims)

	got, ok := auth.GetClaims(ctx)
	require.True(t, ok)
	assert.Equal(t, claims, got)

	_, ok = auth.GetClaims(context.Background())
	assert.False(t, ok)
}

func TestPrincipalContextRoundtrip(t *testing.T) {
	summary := testUserPrincipal().Summary()

	ctx := auth.WithPrincipalContext(context.Background(), summary)

	got, ok := auth.GetPrincipal(ctx)
	require.True(t, ok)
	assert.Equal(t, summary, got)

	_, ok = auth.GetPrincipal(context.Background())
	assert.False(t, ok)
}

func TestIsAdminContext(t *testing.T) {
	admin := auth.WithClaimsContext(context.Background(), &auth.SessionClaims{
		Kind:  auth.KindStaff,
		Admin: true,
	})
	assert.True(t, auth.IsAdminContext(admin))

	staff := auth.WithClaimsContext(context.Background(), &auth.SessionClaims{
		Kind: auth.KindStaff,
	})
	assert.False(t, auth.IsAdminContext(staff))

	user := auth.WithClaimsContext(context.Background(), &auth.SessionClaims{
		Kind:  auth.KindUser,
		Admin: true,
	})
	assert.False(t, auth.IsAdminContext(user))

	assert.False(t, auth.IsAdminContext(context.Background()))
}
