package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camly-social/camly-idp/internal/domain/repository"
)

func TestCodeSingleUse(t *testing.T) {
	ctx := context.Background()
	s := New()

	err := s.Codes().Create(ctx, repository.CreateAuthorizationCodeInput{
		Code:            "abc",
		ClientID:        "camly-web",
		UserID:          "u1",
		RedirectURI:     "https://app.camly.social/cb",
		Scope:           "openid profile",
		CodeChallenge:   "challenge",
		ChallengeMethod: "S256",
		TTL:             time.Minute,
	})
	require.NoError(t, err)

	require.NoError(t, s.Codes().MarkUsed(ctx, "abc"))
	assert.ErrorIs(t, s.Codes().MarkUsed(ctx, "abc"), repository.ErrAlreadyUsed)

	// the record is still readable after consumption
	ac, err := s.Codes().Get(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, ac.Used)

	_, err = s.Codes().Get(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestCodeMarkUsedRace(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Codes().Create(ctx, repository.CreateAuthorizationCodeInput{
		Code: "race", ClientID: "c", UserID: "u", RedirectURI: "https://x/cb",
		Scope: "openid", CodeChallenge: "ch", ChallengeMethod: "S256", TTL: time.Minute,
	}))

	const n = 32
	var wg sync.WaitGroup
	wins := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Codes().MarkUsed(ctx, "race") == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners int
	for range wins {
		winners++
	}
	assert.Equal(t, 1, winners, "exactly one goroutine may consume a code")
}

func TestRefreshTokenRevocation(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Tokens().Create(ctx, repository.CreateRefreshTokenInput{
		TokenHash: "h1", ClientID: "c", UserID: "u", Scope: "openid",
		FamilyID: "fam", TTL: time.Hour,
	})
	require.NoError(t, err)
	_, err = s.Tokens().Create(ctx, repository.CreateRefreshTokenInput{
		TokenHash: "h2", ClientID: "c", UserID: "u", Scope: "openid",
		FamilyID: "fam", TTL: time.Hour,
	})
	require.NoError(t, err)

	require.NoError(t, s.Tokens().Revoke(ctx, "h1"))
	assert.ErrorIs(t, s.Tokens().Revoke(ctx, "h1"), repository.ErrAlreadyUsed)

	// family revocation only touches live members
	n, err := s.Tokens().RevokeFamily(ctx, "fam")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	rt, err := s.Tokens().GetByHash(ctx, "h2")
	require.NoError(t, err)
	assert.True(t, rt.Revoked)
	require.NotNil(t, rt.RevokedAt)
}

func TestTokenFamilyAssignedWhenEmpty(t *testing.T) {
	ctx := context.Background()
	s := New()
	_, err := s.Tokens().Create(ctx, repository.CreateRefreshTokenInput{
		TokenHash: "h", ClientID: "c", UserID: "u", Scope: "openid", TTL: time.Hour,
	})
	require.NoError(t, err)
	rt, err := s.Tokens().GetByHash(ctx, "h")
	require.NoError(t, err)
	assert.NotEmpty(t, rt.FamilyID)
}

func TestDeleteExpired(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Codes().Create(ctx, repository.CreateAuthorizationCodeInput{
		Code: "old", ClientID: "c", UserID: "u", RedirectURI: "https://x/cb",
		Scope: "openid", CodeChallenge: "ch", ChallengeMethod: "S256", TTL: -time.Minute,
	}))
	require.NoError(t, s.Codes().Create(ctx, repository.CreateAuthorizationCodeInput{
		Code: "fresh", ClientID: "c", UserID: "u", RedirectURI: "https://x/cb",
		Scope: "openid", CodeChallenge: "ch", ChallengeMethod: "S256", TTL: time.Minute,
	}))

	n, err := s.Codes().DeleteExpired(ctx, time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = s.Codes().Get(ctx, "old")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.Codes().Get(ctx, "fresh")
	assert.NoError(t, err)
}

func TestClientLookup(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.SeedClient(repository.Client{
		ClientID:     "camly-web",
		Name:         "Camly Web",
		Type:         repository.ClientTypePublic,
		RedirectURIs: []string{"https://app.camly.social/cb"},
		Scopes:       []string{"openid", "profile"},
		Active:       true,
	})
	s.SeedClient(repository.Client{ClientID: "disabled", Active: false})

	c, err := s.Clients().Get(ctx, "camly-web")
	require.NoError(t, err)
	assert.Equal(t, "Camly Web", c.Name)

	_, err = s.Clients().Get(ctx, "disabled")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestConsentUpsert(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Consents().Upsert(ctx, "u1", "c1", []string{"openid"}))
	c, err := s.Consents().Get(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.True(t, c.Covers([]string{"openid"}))
	assert.False(t, c.Covers([]string{"openid", "wallet"}))

	require.NoError(t, s.Consents().Upsert(ctx, "u1", "c1", []string{"openid", "wallet"}))
	c, err = s.Consents().Get(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.True(t, c.Covers([]string{"openid", "wallet"}))
}
