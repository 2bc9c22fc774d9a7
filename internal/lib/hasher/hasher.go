// Package hasher provides salted one-way hashing for passwords and refresh
// tokens.
package hasher

import (
	"errors"
	"fmt"
)

const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

var (
	ErrEmptySecret      = errors.New("secret is empty")
	ErrSecretTooLong    = errors.New("secret is too long")
	ErrUnknownAlgorithm = errors.New("unknown hashing algorithm")
)

// Hasher hashes secrets and verifies them against stored hashes.
//
// Verify never fails loudly: a malformed stored hash simply does not match.
type Hasher interface {
	Hash(secret string) ([]byte, error)
	Verify(secret string, hash []byte) bool
}

// Options selects and tunes a Hasher.
type Options struct {
	Algorithm  string
	BcryptCost int
	Argon2     Argon2Params
	// Prehash only affects bcrypt, see NewBcrypt.
	Prehash bool
}

func New(opts Options) (Hasher, error) {
	var (
		h   Hasher
		err error
	)

	switch opts.Algorithm {
	case AlgorithmBcrypt:
		h, err = NewBcrypt(opts.BcryptCost, opts.Prehash)
	case AlgorithmArgon2id:
		h, err = NewArgon2(opts.Argon2)
	default:
		err = fmt.Errorf("hasher.New: %w: %q", ErrUnknownAlgorithm, opts.Algorithm)
	}
	if err != nil {
		return nil, err
	}

	return h, nil
}
