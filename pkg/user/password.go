package user

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argon2id parameters. The encoded hash carries them, so they can be raised
// later without invalidating existing hashes.
const (
	argonMemory      = 4096
	argonIterations  = 3
	argonParallelism = 6
	argonSaltLength  = 16
	argonKeyLength   = 32
)

// HashPassword derives an argon2id hash from the plaintext with a fresh
// random salt. The result encodes the parameters, salt, and hash in a single
// string suitable for storage.
func HashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)

	return fmt.Sprintf("d%d$%d$%d$%s$%s",
		argonMemory, argonIterations, argonParallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(hash)), nil
}

// VerifyPassword reports whether the plaintext matches an encoded hash
// produced by HashPassword. The parameters are read back from the hash
// itself, and the comparison is constant-time.
func VerifyPassword(password, encodedHash string) (bool, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 5 {
		return false, fmt.Errorf("invalid hash format")
	}

	var m uint32
	if _, err := fmt.Sscanf(parts[0], "d%d", &m); err != nil {
		return false, fmt.Errorf("failed to parse memory parameter: %w", err)
	}

	var i uint32
	if _, err := fmt.Sscanf(parts[1], "%d", &i); err != nil {
		return false, fmt.Errorf("failed to parse iterations parameter: %w", err)
	}

	var p uint32
	if _, err := fmt.Sscanf(parts[2], "%d", &p); err != nil {
		return false, fmt.Errorf("failed to parse parallelism parameter: %w", err)
	}
	if p > 255 {
		return false, fmt.Errorf("parallelism parameter too large: %d (max 255)", p)
	}

	salt, err := base64.StdEncoding.DecodeString(parts[3])
	if err != nil {
		return false, fmt.Errorf("failed to decode salt: %w", err)
	}

	decodedHash, err := base64.StdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("failed to decode hash: %w", err)
	}

	computedHash := argon2.IDKey([]byte(password), salt, i, m, uint8(p), uint32(len(decodedHash)))

	return subtle.ConstantTimeCompare(decodedHash, computedHash) == 1, nil
}
