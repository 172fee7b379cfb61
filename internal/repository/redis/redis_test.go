package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := NewClient(context.Background(), mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestUserTokenLifecycle(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()
	repo := &UserRepository{Client: client}

	_, err := repo.GetUserToken(ctx, 1)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	require.NoError(t, repo.AddUserToken(ctx, 1, "tok"))
	tok, err := repo.GetUserToken(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)

	mr.FastForward(20 * time.Minute)
	require.NoError(t, repo.ExtendUserToken(ctx, 1))
	mr.FastForward(20 * time.Minute)
	_, err = repo.GetUserToken(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteUserToken(ctx, 1))
	_, err = repo.GetUserToken(ctx, 1)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestEmailCodeTwoPhase(t *testing.T) {
	mr, client := newTestClient(t)
	ctx := context.Background()
	repo := &EmailRepository{Client: client}

	assert.ErrorIs(t, repo.Confirm(ctx, ScopeRegister, "a@city.ac.uk"), ErrCodeConfirmedFailed)

	require.NoError(t, repo.SavePending(ctx, ScopeRegister, "a@city.ac.uk", "123456"))
	_, err := repo.GetConfirmed(ctx, ScopeRegister, "a@city.ac.uk")
	assert.ErrorIs(t, err, ErrEmailNotFound)

	require.NoError(t, repo.Confirm(ctx, ScopeRegister, "a@city.ac.uk"))
	assert.False(t, mr.Exists(codeKey(ScopeRegister, PendingSuffix, "a@city.ac.uk")))

	code, err := repo.GetConfirmed(ctx, ScopeRegister, "a@city.ac.uk")
	require.NoError(t, err)
	assert.Equal(t, "123456", code)

	_, err = repo.GetConfirmed(ctx, ScopeReset, "a@city.ac.uk")
	assert.ErrorIs(t, err, ErrEmailNotFound)

	mr.FastForward(DefaultEmailCodeTTL + time.Second)
	_, err = repo.GetConfirmed(ctx, ScopeRegister, "a@city.ac.uk")
	assert.ErrorIs(t, err, ErrEmailNotFound)
}
