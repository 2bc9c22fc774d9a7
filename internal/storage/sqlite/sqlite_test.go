package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"authsvc/internal/storage"
	"authsvc/internal/storage/migrator"
	"authsvc/internal/storage/storagetest"

	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	path := filepath.Join(t.TempDir(), "auth.db")

	_, err := migrator.Up(storage.DriverSQLite, path)
	require.NoError(t, err)

	s, err := New(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestStorage(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storagetest.Store {
		return newTestStorage(t)
	})
}

func TestStorage_NoSchema(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = s.SaveUser(context.Background(), "a@x.com", []byte("hash"))
	require.Error(t, err)
	require.NotErrorIs(t, err, storage.ErrUserExists)
}
