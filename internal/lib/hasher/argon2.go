package hasher

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minArgon2Memory  uint32 = 8 * 1024
	maxArgon2Memory  uint32 = 4 * 1024 * 1024
	minArgon2Length  uint32 = 16
	maxArgon2Time    uint32 = 64
	argon2Identifier        = "argon2id"
)

var errMalformedHash = errors.New("malformed argon2id hash")

// Argon2Params are the tunables of argon2id. Memory is in KiB.
type Argon2Params struct {
	Memory     uint32
	Time       uint32
	Threads    uint8
	SaltLength uint32
	KeyLength  uint32
}

type Argon2 struct {
	params Argon2Params
}

type phc struct {
	memory  uint32
	time    uint32
	threads uint8
	salt    []byte
	key     []byte
}

func NewArgon2(params Argon2Params) (*Argon2, error) {
	const op = "hasher.NewArgon2"

	switch {
	case params.Memory < minArgon2Memory || params.Memory > maxArgon2Memory:
		return nil, fmt.Errorf("%s: memory must be within [%d, %d] KiB", op, minArgon2Memory, maxArgon2Memory)
	case params.Time == 0 || params.Time > maxArgon2Time:
		return nil, fmt.Errorf("%s: time must be within [1, %d]", op, maxArgon2Time)
	case params.Threads == 0:
		return nil, fmt.Errorf("%s: threads must be positive", op)
	case params.SaltLength < minArgon2Length:
		return nil, fmt.Errorf("%s: salt length must be at least %d", op, minArgon2Length)
	case params.KeyLength < minArgon2Length:
		return nil, fmt.Errorf("%s: key length must be at least %d", op, minArgon2Length)
	}

	return &Argon2{params: params}, nil
}

// Hash returns the hash in PHC string form, e.g.
// $argon2id$v=19$m=65536,t=1,p=2$<salt>$<key>.
func (a *Argon2) Hash(secret string) ([]byte, error) {
	const op = "hasher.Argon2.Hash"

	if secret == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptySecret)
	}

	salt := make([]byte, a.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("%s: salt: %w", op, err)
	}

	key := argon2.IDKey([]byte(secret), salt, a.params.Time, a.params.Memory, a.params.Threads, a.params.KeyLength)

	encoded := fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Identifier,
		argon2.Version,
		a.params.Memory,
		a.params.Time,
		a.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)

	return []byte(encoded), nil
}

func (a *Argon2) Verify(secret string, hash []byte) bool {
	if secret == "" || len(hash) == 0 {
		return false
	}

	parsed, err := parsePHC(string(hash))
	if err != nil {
		return false
	}

	computed := argon2.IDKey([]byte(secret), parsed.salt, parsed.time, parsed.memory, parsed.threads, uint32(len(parsed.key)))

	return subtle.ConstantTimeCompare(computed, parsed.key) == 1
}

func parsePHC(encoded string) (*phc, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != argon2Identifier {
		return nil, errMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, errMalformedHash
	}

	var p phc
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return nil, errMalformedHash
	}
	// Stored parameters drive the work done in Verify; refuse absurd values.
	if p.memory < minArgon2Memory || p.memory > maxArgon2Memory || p.time == 0 || p.time > maxArgon2Time || p.threads == 0 {
		return nil, errMalformedHash
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(p.salt) < int(minArgon2Length) {
		return nil, errMalformedHash
	}
	if p.key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil || len(p.key) < int(minArgon2Length) {
		return nil, errMalformedHash
	}

	return &p, nil
}
