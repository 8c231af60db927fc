package claims

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camly-social/camly-idp/internal/identity"
)

func TestFilter(t *testing.T) {
	got := Filter([]string{"openid", "bogus", "wallet", "profile"}, nil)
	assert.Equal(t, []string{"openid", "wallet", "profile"}, got)

	got = Filter([]string{"openid", "wallet"}, []string{"openid", "profile"})
	assert.Equal(t, []string{"openid"}, got)

	assert.Nil(t, Filter([]string{"bogus", "other"}, nil))
}

func TestFromScopesGating(t *testing.T) {
	store := identity.NewStaticStore(identity.Profile{
		UserID:        "u1",
		DisplayName:   "Ana",
		AvatarURL:     "https://cdn.camly.social/a/u1.png",
		Email:         "ana@example.com",
		WalletAddress: "0xabc",
		CamlyBalance:  1500,
	})
	ctx := context.Background()

	// profile only: name/picture, never email or wallet
	c, err := FromScopes(ctx, store, "u1", []string{"openid", "profile"})
	require.NoError(t, err)
	assert.Equal(t, "Ana", c["name"])
	assert.Equal(t, "https://cdn.camly.social/a/u1.png", c["picture"])
	assert.NotContains(t, c, "email")
	assert.NotContains(t, c, "wallet_address")
	assert.NotContains(t, c, "camly_balance")

	c, err = FromScopes(ctx, store, "u1", []string{"openid", "email"})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", c["email"])
	assert.Equal(t, true, c["email_verified"])
	assert.NotContains(t, c, "name")

	c, err = FromScopes(ctx, store, "u1", []string{"openid", "wallet"})
	require.NoError(t, err)
	assert.Equal(t, "0xabc", c["wallet_address"])
	assert.EqualValues(t, 1500, c["camly_balance"])
}

func TestFromScopesOpenIDOnlySkipsLookup(t *testing.T) {
	// empty store: a lookup would fail, openid alone must not need one
	store := identity.NewStaticStore()
	c, err := FromScopes(context.Background(), store, "u1", []string{"openid"})
	require.NoError(t, err)
	assert.Empty(t, c)
}

func TestFromScopesFailsClosed(t *testing.T) {
	store := identity.NewStaticStore()
	_, err := FromScopes(context.Background(), store, "ghost", []string{"openid", "profile"})
	assert.ErrorIs(t, err, identity.ErrUserNotFound)
}
