// Package memory is a process-local user store. It is used by tests and by
// the "memory" storage driver for local experiments; nothing survives a
// restart.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"authsvc/internal/domain/models"
	"authsvc/internal/storage"
)

type Storage struct {
	mu      sync.Mutex
	lastID  int64
	byID    map[int64]*models.User
	byEmail map[string]int64
}

func New() *Storage {
	return &Storage{
		byID:    make(map[int64]*models.User),
		byEmail: make(map[string]int64),
	}
}

func (s *Storage) SaveUser(_ context.Context, email string, passHash []byte) (int64, error) {
	const op = "storage.memory.SaveUser"

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok {
		return 0, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
	}

	s.lastID++
	s.byID[s.lastID] = &models.User{
		ID:       s.lastID,
		Email:    email,
		PassHash: bytes.Clone(passHash),
	}
	s.byEmail[email] = s.lastID

	return s.lastID, nil
}

func (s *Storage) User(_ context.Context, email string) (models.User, error) {
	const op = "storage.memory.User"

	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email]
	if !ok {
		return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	return copyUser(s.byID[id]), nil
}

func (s *Storage) UserByID(_ context.Context, userID int64) (models.User, error) {
	const op = "storage.memory.UserByID"

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	return copyUser(u), nil
}

func (s *Storage) SwapRefreshHash(_ context.Context, userID int64, expected, next []byte) error {
	const op = "storage.memory.SwapRefreshHash"

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.byID[userID]
	if !ok {
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	}

	if !bytes.Equal(u.RefreshHash, expected) {
		return fmt.Errorf("%s: %w", op, storage.ErrRefreshHashMismatch)
	}

	u.RefreshHash = bytes.Clone(next)

	return nil
}

func (s *Storage) ClearRefreshHash(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.byID[userID]; ok {
		u.RefreshHash = nil
	}

	return nil
}

func copyUser(u *models.User) models.User {
	return models.User{
		ID:          u.ID,
		Email:       u.Email,
		PassHash:    bytes.Clone(u.PassHash),
		RefreshHash: bytes.Clone(u.RefreshHash),
	}
}
