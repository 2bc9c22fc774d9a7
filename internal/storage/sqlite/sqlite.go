package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"authsvc/internal/domain/models"
	"authsvc/internal/storage"

	"github.com/mattn/go-sqlite3"
)

type Storage struct {
	db *sql.DB
}

// New returns a new instance of the Storage.
func New(storagePath string) (*Storage, error) {
	const op = "storage.sqlite.New"

	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// One connection serializes writers so concurrent updates never see
	// SQLITE_BUSY; the conditional UPDATE still decides who wins.
	db.SetMaxOpenConns(1)

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) SaveUser(ctx context.Context, email string, passHash []byte) (int64, error) {
	const op = "storage.sqlite.SaveUser"

	stmt, err := s.db.PrepareContext(ctx, "INSERT INTO users (email, pass_hash) VALUES (?, ?)")
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer stmt.Close()

	result, err := stmt.ExecContext(ctx, email, passHash)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return 0, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) User(ctx context.Context, email string) (models.User, error) {
	const op = "storage.sqlite.User"

	row := s.db.QueryRowContext(ctx, "SELECT id, email, pass_hash, refresh_hash FROM users WHERE email = ?", email)

	user, err := scanUser(row)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *Storage) UserByID(ctx context.Context, userID int64) (models.User, error) {
	const op = "storage.sqlite.UserByID"

	row := s.db.QueryRowContext(ctx, "SELECT id, email, pass_hash, refresh_hash FROM users WHERE id = ?", userID)

	user, err := scanUser(row)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

// SwapRefreshHash sets refresh_hash to next only if it currently equals
// expected (NULL when expected is nil). IS compares NULLs as equal.
func (s *Storage) SwapRefreshHash(ctx context.Context, userID int64, expected, next []byte) error {
	const op = "storage.sqlite.SwapRefreshHash"

	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET refresh_hash = ? WHERE id = ? AND refresh_hash IS ?",
		nullable(next), userID, nullable(expected),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 1 {
		return nil
	}

	return fmt.Errorf("%s: %w", op, s.missReason(ctx, userID))
}

func (s *Storage) ClearRefreshHash(ctx context.Context, userID int64) error {
	const op = "storage.sqlite.ClearRefreshHash"

	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET refresh_hash = NULL WHERE id = ? AND refresh_hash IS NOT NULL",
		userID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// missReason tells a missing user apart from a lost compare-and-set.
func (s *Storage) missReason(ctx context.Context, userID int64) error {
	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)", userID).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return storage.ErrUserNotFound
	}

	return storage.ErrRefreshHashMismatch
}

func scanUser(row *sql.Row) (models.User, error) {
	var user models.User

	err := row.Scan(&user.ID, &user.Email, &user.PassHash, &user.RefreshHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}
		return models.User{}, err
	}

	return user, nil
}

func nullable(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}
