package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// ErrMalformedHash is returned when a stored hash is not a valid
// Argon2id PHC string.
var ErrMalformedHash = errors.New("malformed password hash")

// Argon2id parameters — OWASP 2025 recommendation.
const (
	hashIterations  = 3
	hashMemoryKiB   = 64 * 1024
	hashParallelism = 1
	hashKeyLen      = 32
	hashSaltLen     = 16
)

// HashPassword derives an Argon2id hash of the password and encodes it as
// a PHC string: $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
func HashPassword(password string) (string, error) {
	salt := make([]byte, hashSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt,
		hashIterations, hashMemoryKiB, hashParallelism, hashKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, hashMemoryKiB, hashIterations, hashParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword reports whether the password matches the stored PHC hash.
// The comparison is constant-time; the parameters come from the hash
// itself so old hashes keep verifying after a parameter bump.
func VerifyPassword(password, stored string) (bool, error) {
	salt, want, iterations, memory, parallelism, err := decodePHC(stored)
	if err != nil {
		return false, err
	}

	got := argon2.IDKey([]byte(password), salt,
		iterations, memory, parallelism, uint32(len(want))) //nolint:gosec // G115: key length always fits uint32

	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

// decodePHC splits an Argon2id PHC string into its salt, key, and
// derivation parameters.
func decodePHC(stored string) (salt, key []byte, iterations, memory uint32, parallelism uint8, err error) {
	parts := strings.Split(stored, "$")
	if len(parts) != 6 { //nolint:mnd // PHC format has exactly 6 $-delimited parts
		err = ErrMalformedHash
		return
	}
	if parts[1] != "argon2id" {
		err = fmt.Errorf("%w: unsupported algorithm %q", ErrMalformedHash, parts[1])
		return
	}

	var version int
	if _, scanErr := fmt.Sscanf(parts[2], "v=%d", &version); scanErr != nil {
		err = fmt.Errorf("%w: parsing version: %w", ErrMalformedHash, scanErr)
		return
	}
	if _, scanErr := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); scanErr != nil {
		err = fmt.Errorf("%w: parsing parameters: %w", ErrMalformedHash, scanErr)
		return
	}

	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		err = fmt.Errorf("%w: decoding salt: %w", ErrMalformedHash, err)
		return
	}
	if key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		err = fmt.Errorf("%w: decoding key: %w", ErrMalformedHash, err)
		return
	}
	return
}
