package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreFromClient(rdb, zap.NewNop(), 0)
	t.Cleanup(s.Stop)
	return s, mr
}

func TestRedisStore_SaveAndList(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Save(ctx, newRecord("a", now.Add(-time.Minute), time.Time{})))
	require.NoError(t, s.Save(ctx, newRecord("b", now, time.Time{})))

	records, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "b", records[0].ID)
	assert.Equal(t, "a", records[1].ID)
}

func TestRedisStore_ExpiredRecordsPruned(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Save(ctx, newRecord("short", now, now.Add(time.Minute))))
	require.NoError(t, s.Save(ctx, newRecord("long", now.Add(-time.Second), now.Add(time.Hour))))

	mr.FastForward(2 * time.Minute)

	records, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "long", records[0].ID)

	members, err := mr.ZMembers(indexKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"long"}, members)
}

func TestRedisStore_Cleanup(t *testing.T) {
	s, mr := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Save(ctx, newRecord("a", now, now.Add(time.Minute))))
	require.NoError(t, s.Save(ctx, newRecord("b", now, time.Time{})))
	mr.FastForward(2 * time.Minute)

	require.NoError(t, s.Cleanup(ctx))

	members, err := mr.ZMembers(indexKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, members)
}

func TestRedisStore_Delete(t *testing.T) {
	s, _ := newTestRedisStore(t)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, newRecord("a", time.Now(), time.Time{})))
	require.NoError(t, s.Delete(ctx, "a"))
	assert.ErrorIs(t, s.Delete(ctx, "a"), ErrNotFound)
}
