package redis

import (
	"context"
	"testing"

	"authsvc/internal/storage"
	"authsvc/internal/storage/storagetest"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) (*Storage, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewWithClient(client, "test"), mr
}

func TestStorage(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storagetest.Store {
		s, _ := newTestStorage(t)
		return s
	})
}

func TestStorage_KeyLayout(t *testing.T) {
	s, mr := newTestStorage(t)
	ctx := context.Background()

	id, err := s.SaveUser(ctx, "a@x.com", []byte("pass"))
	require.NoError(t, err)
	require.NoError(t, s.SwapRefreshHash(ctx, id, nil, []byte("rt")))

	got, err := mr.Get("test:email:a@x.com")
	require.NoError(t, err)
	assert.Equal(t, "1", got)
	assert.Equal(t, "a@x.com", mr.HGet("test:user:1", "email"))
	assert.Equal(t, "rt", mr.HGet("test:user:1", "refresh_hash"))

	require.NoError(t, s.ClearRefreshHash(ctx, id))
	assert.True(t, mr.Exists("test:user:1"))
	assert.Empty(t, mr.HGet("test:user:1", "refresh_hash"))
}

func TestStorage_Unavailable(t *testing.T) {
	s, mr := newTestStorage(t)
	mr.Close()

	_, err := s.SaveUser(context.Background(), "a@x.com", []byte("pass"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrUserExists)

	_, err = s.User(context.Background(), "a@x.com")
	require.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrUserNotFound)
}
