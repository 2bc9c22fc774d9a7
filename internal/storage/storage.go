package storage

import "errors"

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
	// ErrRefreshHashMismatch is returned by a compare-and-set when the stored
	// refresh hash no longer equals the expected value.
	ErrRefreshHashMismatch = errors.New("refresh hash mismatch")
)

// Driver names accepted in configuration.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongoDB  = "mongodb"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)
