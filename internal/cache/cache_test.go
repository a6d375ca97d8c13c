package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "carepulse/internal/common/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

type dashboard struct {
	Pending int `json:"pending"`
}

func TestViewCache_SetGetRevalidate(t *testing.T) {
	mr, client := newMiniredis(t)
	c := NewViewCache(client, time.Minute)
	ctx := context.Background()

	var got dashboard
	hit, err := c.Get(ctx, "/admin", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	stored, err := c.SetIfCurrent(ctx, "/admin", 0, dashboard{Pending: 3})
	require.NoError(t, err)
	assert.True(t, stored)
	assert.True(t, mr.Exists("view:/admin"))
	assert.Equal(t, time.Minute, mr.TTL("view:/admin"))

	hit, err = c.Get(ctx, "/admin", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 3, got.Pending)

	require.NoError(t, c.Revalidate(ctx, "/admin", "/never-cached"))
	assert.False(t, mr.Exists("view:/admin"))

	hit, err = c.Get(ctx, "/admin", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	gen, err := c.Generation(ctx, "/admin")
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)
}

func TestViewCache_StaleGenerationIsNotStored(t *testing.T) {
	mr, client := newMiniredis(t)
	c := NewViewCache(client, time.Minute)
	ctx := context.Background()

	gen, err := c.Generation(ctx, "/admin")
	require.NoError(t, err)
	assert.Zero(t, gen)

	// A write lands while the page is being computed from gen.
	require.NoError(t, c.Revalidate(ctx, "/admin"))

	stored, err := c.SetIfCurrent(ctx, "/admin", gen, dashboard{Pending: 1})
	require.NoError(t, err)
	assert.False(t, stored)
	assert.False(t, mr.Exists("view:/admin"))

	gen, err = c.Generation(ctx, "/admin")
	require.NoError(t, err)
	stored, err = c.SetIfCurrent(ctx, "/admin", gen, dashboard{Pending: 2})
	require.NoError(t, err)
	assert.True(t, stored)

	var got dashboard
	hit, err := c.Get(ctx, "/admin", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 2, got.Pending)
}

func TestViewCache_NoTTL(t *testing.T) {
	mr, client := newMiniredis(t)
	c := NewViewCache(client, 0)

	stored, err := c.SetIfCurrent(context.Background(), "/admin", 0, dashboard{Pending: 1})
	require.NoError(t, err)
	assert.True(t, stored)
	assert.Zero(t, mr.TTL("view:/admin"))
}

func TestViewCache_CorruptEntry(t *testing.T) {
	mr, client := newMiniredis(t)
	c := NewViewCache(client, time.Minute)
	require.NoError(t, mr.Set("view:/admin", "{not json"))

	var got dashboard
	_, err := c.Get(context.Background(), "/admin", &got)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeCacheFailed))
}

func TestViewCache_RedisErrors(t *testing.T) {
	mr, client := newMiniredis(t)
	c := NewViewCache(client, time.Minute)
	ctx := context.Background()
	mr.SetError("LOADING")

	err := c.Revalidate(ctx, "/admin")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeCacheFailed))

	_, err = c.Generation(ctx, "/admin")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeCacheFailed))

	_, err = c.SetIfCurrent(ctx, "/admin", 0, dashboard{})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeCacheFailed))
}

func TestViewCache_RevalidateNothing(t *testing.T) {
	client, mock := redismock.NewClientMock()
	c := NewViewCache(client, time.Minute)

	assert.NoError(t, c.Revalidate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionLocks(t *testing.T) {
	mr, client := newMiniredis(t)
	locks := NewSubmissionLocks(client, 30*time.Second)
	ctx := context.Background()

	ok, err := locks.TryAcquire(ctx, "token-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = locks.TryAcquire(ctx, "token-1")
	require.NoError(t, err)
	assert.False(t, ok, "second acquire of a held token must fail")

	ok, err = locks.TryAcquire(ctx, "token-2")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, locks.Release(ctx, "token-1"))
	ok, err = locks.TryAcquire(ctx, "token-1")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(31 * time.Second)
	ok, err = locks.TryAcquire(ctx, "token-2")
	require.NoError(t, err)
	assert.True(t, ok, "expired lock is free again")
}

func TestSubmissionLocks_RedisDown(t *testing.T) {
	client, mock := redismock.NewClientMock()
	locks := NewSubmissionLocks(client, 30*time.Second)

	mock.ExpectSetNX("submission:token-1", 1, 30*time.Second).SetErr(errors.New("connection refused"))

	ok, err := locks.TryAcquire(context.Background(), "token-1")
	assert.False(t, ok)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeCacheFailed))
	assert.NoError(t, mock.ExpectationsWereMet())
}
