package hasher

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores everything past this many bytes of input.
const bcryptMaxInput = 72

type Bcrypt struct {
	cost    int
	prehash bool
}

// NewBcrypt returns a bcrypt hasher with the given cost. With prehash set the
// secret is reduced with SHA-256 first, so inputs longer than 72 bytes (JWTs)
// keep all of their entropy.
func NewBcrypt(cost int, prehash bool) (*Bcrypt, error) {
	const op = "hasher.NewBcrypt"

	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("%s: cost %d out of range [%d, %d]", op, cost, bcrypt.MinCost, bcrypt.MaxCost)
	}

	return &Bcrypt{cost: cost, prehash: prehash}, nil
}

func (b *Bcrypt) Hash(secret string) ([]byte, error) {
	const op = "hasher.Bcrypt.Hash"

	if secret == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptySecret)
	}

	input := b.input(secret)
	if len(input) > bcryptMaxInput {
		return nil, fmt.Errorf("%s: %w", op, ErrSecretTooLong)
	}

	hash, err := bcrypt.GenerateFromPassword(input, b.cost)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return hash, nil
}

func (b *Bcrypt) Verify(secret string, hash []byte) bool {
	if secret == "" || len(hash) == 0 {
		return false
	}

	return bcrypt.CompareHashAndPassword(hash, b.input(secret)) == nil
}

func (b *Bcrypt) input(secret string) []byte {
	if !b.prehash {
		return []byte(secret)
	}

	sum := sha256.Sum256([]byte(secret))
	return []byte(base64.RawStdEncoding.EncodeToString(sum[:]))
}
