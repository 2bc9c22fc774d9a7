// Package redis keeps users in Redis hashes. Writes that must be atomic run
// as Lua scripts so a compare-and-set never spans two round trips.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"authsvc/internal/domain/models"
	"authsvc/internal/storage"

	"github.com/redis/go-redis/v9"
)

const (
	fieldEmail       = "email"
	fieldPassHash    = "pass_hash"
	fieldRefreshHash = "refresh_hash"
)

const saveUserScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
local id = redis.call("INCR", KEYS[2])
redis.call("HSET", ARGV[3] .. id, "email", ARGV[1], "pass_hash", ARGV[2])
redis.call("SET", KEYS[1], id)
return id
`

const swapRefreshScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
local current = redis.call("HGET", KEYS[1], "refresh_hash")
if not current then
  current = ""
end
if current ~= ARGV[1] then
  return 0
end
redis.call("HSET", KEYS[1], "refresh_hash", ARGV[2])
return 1
`

var (
	saveUserLua    = redis.NewScript(saveUserScript)
	swapRefreshLua = redis.NewScript(swapRefreshScript)
)

type Storage struct {
	client redis.UniversalClient
	prefix string
}

func New(ctx context.Context, addr, prefix string) (*Storage, error) {
	const op = "storage.redis.New"

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: ping: %w", op, err)
	}

	return NewWithClient(client, prefix), nil
}

func NewWithClient(client redis.UniversalClient, prefix string) *Storage {
	if prefix == "" {
		prefix = "authsvc"
	}
	return &Storage{client: client, prefix: prefix}
}

func (s *Storage) Close() error {
	return s.client.Close()
}

func (s *Storage) SaveUser(ctx context.Context, email string, passHash []byte) (int64, error) {
	const op = "storage.redis.SaveUser"

	id, err := saveUserLua.Run(ctx, s.client,
		[]string{s.emailKey(email), s.seqKey()},
		email, passHash, s.userKeyPrefix(),
	).Int64()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if id == 0 {
		return 0, fmt.Errorf("%s: %w", op, storage.ErrUserExists)
	}

	return id, nil
}

func (s *Storage) User(ctx context.Context, email string) (models.User, error) {
	const op = "storage.redis.User"

	id, err := s.client.Get(ctx, s.emailKey(email)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return models.User{}, fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
		}
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.load(ctx, id)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *Storage) UserByID(ctx context.Context, userID int64) (models.User, error) {
	const op = "storage.redis.UserByID"

	user, err := s.load(ctx, userID)
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}

func (s *Storage) SwapRefreshHash(ctx context.Context, userID int64, expected, next []byte) error {
	const op = "storage.redis.SwapRefreshHash"

	res, err := swapRefreshLua.Run(ctx, s.client,
		[]string{s.userKey(userID)},
		expected, next,
	).Int64()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	switch res {
	case 1:
		return nil
	case -1:
		return fmt.Errorf("%s: %w", op, storage.ErrUserNotFound)
	default:
		return fmt.Errorf("%s: %w", op, storage.ErrRefreshHashMismatch)
	}
}

func (s *Storage) ClearRefreshHash(ctx context.Context, userID int64) error {
	const op = "storage.redis.ClearRefreshHash"

	if err := s.client.HDel(ctx, s.userKey(userID), fieldRefreshHash).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) load(ctx context.Context, userID int64) (models.User, error) {
	fields, err := s.client.HGetAll(ctx, s.userKey(userID)).Result()
	if err != nil {
		return models.User{}, err
	}
	if len(fields) == 0 {
		return models.User{}, storage.ErrUserNotFound
	}

	user := models.User{
		ID:       userID,
		Email:    fields[fieldEmail],
		PassHash: []byte(fields[fieldPassHash]),
	}
	if rh, ok := fields[fieldRefreshHash]; ok && rh != "" {
		user.RefreshHash = []byte(rh)
	}

	return user, nil
}

func (s *Storage) seqKey() string {
	return s.prefix + ":users:seq"
}

func (s *Storage) emailKey(email string) string {
	return s.prefix + ":email:" + email
}

func (s *Storage) userKeyPrefix() string {
	return s.prefix + ":user:"
}

func (s *Storage) userKey(userID int64) string {
	return s.userKeyPrefix() + strconv.FormatInt(userID, 10)
}
