// Package token implements the stateless confirmation-token codec: compact,
// signed, single-string tokens carrying a subject identity, a workflow
// namespace, an expiry, and an arbitrary payload map.
//
// The codec holds no per-token state. Single-use semantics come from the
// workflow layer clearing the stored token on confirm; the codec only
// guarantees integrity, subject binding, and expiry.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const minKeyBytes = 32

// Verification failures. The classification is deliberately coarse: callers
// learn invalid vs expired and nothing finer.
var (
	// ErrInvalid reports a token that failed signature, subject, or
	// namespace checks.
	ErrInvalid = errors.New("confirmation token invalid")
	// ErrExpired reports a token that passed every check except expiry.
	ErrExpired = errors.New("confirmation token expired")
)

// Config holds the process-wide signing material. The key is injected once
// at startup and never rotated at runtime.
type Config struct {
	// SigningKey is the HMAC-SHA256 key. At least 32 bytes.
	SigningKey []byte
	// Issuer is stamped into and required from every token when non-empty.
	Issuer string
	// Leeway tolerates clock skew between issuing and verifying hosts.
	Leeway time.Duration
}

// Codec signs and verifies confirmation tokens. Safe for concurrent use;
// all state is read-only after New.
type Codec struct {
	config Config
}

type confirmClaims struct {
	Workflow string            `json:"wf"`
	Payload  map[string]string `json:"pl,omitempty"`
	jwt.RegisteredClaims
}

// New validates the configuration and returns a Codec.
func New(cfg Config) (*Codec, error) {
	if len(cfg.SigningKey) < minKeyBytes {
		return nil, errors.New("token: signing key must be at least 32 bytes")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("token: invalid leeway configuration")
	}
	return &Codec{config: cfg}, nil
}

// Issue mints a signed token for subject within the given workflow
// namespace, expiring after ttl. The payload map is embedded verbatim.
// Expiry resolution is whole seconds.
func (c *Codec) Issue(subject, workflow string, ttl time.Duration, payload map[string]string) (string, error) {
	if subject == "" || workflow == "" {
		return "", errors.New("token: subject and workflow are required")
	}

	now := time.Now()
	claims := confirmClaims{
		Workflow: workflow,
		Payload:  payload,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    c.config.Issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.config.SigningKey)
}

// Verify checks raw against the signing key, the expected subject, and the
// workflow namespace. On success it returns the embedded payload.
//
// Subject and namespace mismatches return [ErrInvalid] even when the token
// is also expired: a token minted for someone else is never merely
// "expired".
func (c *Codec) Verify(raw, subject, workflow string) (map[string]string, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	claims := &confirmClaims{}
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return c.config.SigningKey, nil
	})

	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		// Signature held; decide between invalid and expired by binding.
		if claims.Subject != subject || claims.Workflow != workflow {
			return nil, ErrInvalid
		}
		return nil, ErrExpired
	default:
		return nil, ErrInvalid
	}

	if claims.Subject != subject || claims.Workflow != workflow {
		return nil, ErrInvalid
	}

	if claims.Payload == nil {
		return map[string]string{}, nil
	}
	return claims.Payload, nil
}
