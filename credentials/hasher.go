// Package credentials hashes and verifies user secrets. Verification is
// algorithm-aware: it dispatches on the stored hash's format marker, so a
// type can carry argon2id and legacy bcrypt hashes side by side.
//
// Comparison is constant-time. Nothing in this package ever logs or returns
// the presented secret.
package credentials

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

const (
	argon2Marker = "$argon2id$"

	minMemoryKB   uint32 = 8 * 1024
	minSaltLength uint32 = 16
	minKeyLength  uint32 = 16
)

// ErrUnknownFormat reports a stored hash in no recognized encoding. It means
// operator-level data corruption or misconfiguration, never a wrong secret.
var ErrUnknownFormat = errors.New("credentials: unrecognized hash format")

// Config holds the argon2id parameters used when producing new hashes.
// Verification reads parameters from the stored hash instead.
type Config struct {
	Memory      uint32 // KB
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig returns moderate argon2id parameters suitable for
// interactive authentication.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Hasher produces argon2id hashes and verifies argon2id or bcrypt hashes.
// Safe for concurrent use.
type Hasher struct {
	config Config
}

// New validates the configuration and returns a Hasher.
func New(cfg Config) (*Hasher, error) {
	if cfg.Memory < minMemoryKB {
		return nil, errors.New("credentials: memory must be >= 8192 KB")
	}
	if cfg.Time < 1 {
		return nil, errors.New("credentials: time must be >= 1")
	}
	if cfg.Parallelism < 1 {
		return nil, errors.New("credentials: parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength {
		return nil, errors.New("credentials: salt length must be >= 16")
	}
	if cfg.KeyLength < minKeyLength {
		return nil, errors.New("credentials: key length must be >= 16")
	}
	return &Hasher{config: cfg}, nil
}

// Hash derives an argon2id hash of secret in PHC string format.
func (h *Hasher) Hash(secret string) (string, error) {
	salt := make([]byte, h.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(secret), salt, h.config.Time, h.config.Memory, h.config.Parallelism, h.config.KeyLength)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.config.Memory,
		h.config.Time,
		h.config.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// Verify compares secret against a stored hash, dispatching on the hash's
// format. A wrong secret returns (false, nil); an unparseable or unknown
// hash returns an error.
func (h *Hasher) Verify(secret, stored string) (bool, error) {
	switch {
	case strings.HasPrefix(stored, argon2Marker):
		return verifyArgon2(secret, stored)
	case strings.HasPrefix(stored, "$2a$"), strings.HasPrefix(stored, "$2b$"), strings.HasPrefix(stored, "$2y$"):
		err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(secret))
		if err == nil {
			return true, nil
		}
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrUnknownFormat, err)
	default:
		return false, ErrUnknownFormat
	}
}

func verifyArgon2(secret, stored string) (bool, error) {
	// $argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>
	parts := strings.Split(stored, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrUnknownFormat
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, ErrUnknownFormat
	}

	var memory, timeCost uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &timeCost, &parallelism); err != nil {
		return false, ErrUnknownFormat
	}
	if memory == 0 || timeCost == 0 || parallelism == 0 {
		return false, ErrUnknownFormat
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, ErrUnknownFormat
	}
	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return false, ErrUnknownFormat
	}

	computed := argon2.IDKey([]byte(secret), salt, timeCost, memory, parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(computed, key) == 1, nil
}
