// Package storagetest holds the behaviour every user store backend must share.
package storagetest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"authsvc/internal/domain/models"
	"authsvc/internal/storage"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type Store interface {
	SaveUser(ctx context.Context, email string, passHash []byte) (int64, error)
	User(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, userID int64) (models.User, error)
	SwapRefreshHash(ctx context.Context, userID int64, expected, next []byte) error
	ClearRefreshHash(ctx context.Context, userID int64) error
}

// Run executes the shared suite. newStore must return an empty, ready store.
func Run(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()

	t.Run("SaveAndFind", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		email := gofakeit.Email()

		id, err := s.SaveUser(ctx, email, []byte("pass-hash"))
		require.NoError(t, err)
		assert.Positive(t, id)

		byEmail, err := s.User(ctx, email)
		require.NoError(t, err)
		assert.Equal(t, id, byEmail.ID)
		assert.Equal(t, email, byEmail.Email)
		assert.Equal(t, []byte("pass-hash"), byEmail.PassHash)
		assert.False(t, byEmail.HasSession())

		byID, err := s.UserByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, byEmail, byID)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		email := gofakeit.Email()

		id, err := s.SaveUser(ctx, email, []byte("first"))
		require.NoError(t, err)

		_, err = s.SaveUser(ctx, email, []byte("second"))
		require.ErrorIs(t, err, storage.ErrUserExists)

		u, err := s.User(ctx, email)
		require.NoError(t, err)
		assert.Equal(t, id, u.ID)
		assert.Equal(t, []byte("first"), u.PassHash)
	})

	t.Run("NotFound", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.User(ctx, gofakeit.Email())
		require.ErrorIs(t, err, storage.ErrUserNotFound)

		_, err = s.UserByID(ctx, 424242)
		require.ErrorIs(t, err, storage.ErrUserNotFound)

		err = s.SwapRefreshHash(ctx, 424242, nil, []byte("h"))
		require.ErrorIs(t, err, storage.ErrUserNotFound)

		require.NoError(t, s.ClearRefreshHash(ctx, 424242))
	})

	t.Run("SwapRefreshHash", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.SaveUser(ctx, gofakeit.Email(), []byte("pass"))
		require.NoError(t, err)

		require.NoError(t, s.SwapRefreshHash(ctx, id, nil, []byte("h1")))
		assertRefreshHash(t, s, id, []byte("h1"))

		err = s.SwapRefreshHash(ctx, id, nil, []byte("h2"))
		require.ErrorIs(t, err, storage.ErrRefreshHashMismatch)

		err = s.SwapRefreshHash(ctx, id, []byte("stale"), []byte("h2"))
		require.ErrorIs(t, err, storage.ErrRefreshHashMismatch)
		assertRefreshHash(t, s, id, []byte("h1"))

		require.NoError(t, s.SwapRefreshHash(ctx, id, []byte("h1"), []byte("h2")))
		assertRefreshHash(t, s, id, []byte("h2"))
	})

	t.Run("ClearRefreshHash", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.SaveUser(ctx, gofakeit.Email(), []byte("pass"))
		require.NoError(t, err)
		require.NoError(t, s.SwapRefreshHash(ctx, id, nil, []byte("h1")))

		require.NoError(t, s.ClearRefreshHash(ctx, id))
		assertRefreshHash(t, s, id, nil)

		require.NoError(t, s.ClearRefreshHash(ctx, id))
		assertRefreshHash(t, s, id, nil)

		err = s.SwapRefreshHash(ctx, id, []byte("h1"), []byte("h2"))
		require.ErrorIs(t, err, storage.ErrRefreshHashMismatch)

		require.NoError(t, s.SwapRefreshHash(ctx, id, nil, []byte("h3")))
		assertRefreshHash(t, s, id, []byte("h3"))
	})

	t.Run("ConcurrentSwapSingleWinner", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		id, err := s.SaveUser(ctx, gofakeit.Email(), []byte("pass"))
		require.NoError(t, err)
		require.NoError(t, s.SwapRefreshHash(ctx, id, nil, []byte("base")))

		const workers = 8
		var (
			wg   sync.WaitGroup
			wins atomic.Int32
		)
		for i := range workers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				next := []byte{'n', byte('a' + i)}
				if err := s.SwapRefreshHash(ctx, id, []byte("base"), next); err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), wins.Load())
	})
}

func assertRefreshHash(t *testing.T, s Store, id int64, want []byte) {
	t.Helper()

	u, err := s.UserByID(context.Background(), id)
	require.NoError(t, err)

	if want == nil {
		assert.False(t, u.HasSession())
		return
	}
	assert.Equal(t, want, u.RefreshHash)
}
