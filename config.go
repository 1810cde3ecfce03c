package unitecms

import (
	"fmt"
	"time"

	"github.com/svirmi/unite-cms/credentials"
)

// TokenConfig controls the signed confirmation tokens.
type TokenConfig struct {
	// SigningKey is the HMAC key. Minimum 32 bytes.
	SigningKey []byte
	// Issuer, when set, is stamped into and required on every token.
	Issuer string
	// Leeway tolerates small clock skew during verification.
	Leeway time.Duration
}

// WorkflowConfig holds the per-workflow knobs shared by all confirmation
// flows.
type WorkflowConfig struct {
	Enabled  bool
	TokenTTL time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking when the buffer is full.
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
	// LatencyHistograms additionally records operation latency buckets.
	LatencyHistograms bool
}

// Config is the full engine configuration tree.
type Config struct {
	Token         TokenConfig
	EmailChange   WorkflowConfig
	PasswordReset WorkflowConfig
	Hasher        credentials.Config
	Audit         AuditConfig
	Metrics       MetricsConfig
}

func defaultConfig() *Config {
	return &Config{
		Token: TokenConfig{
			Leeway: 30 * time.Second,
		},
		EmailChange: WorkflowConfig{
			Enabled:  true,
			TokenTTL: 24 * time.Hour,
		},
		PasswordReset: WorkflowConfig{
			Enabled:  true,
			TokenTTL: time.Hour,
		},
		Hasher: credentials.DefaultConfig(),
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(c *Config) *Config {
	cp := *c
	if c.Token.SigningKey != nil {
		cp.Token.SigningKey = make([]byte, len(c.Token.SigningKey))
		copy(cp.Token.SigningKey, c.Token.SigningKey)
	}
	return &cp
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if len(c.Token.SigningKey) < 32 {
		return fmt.Errorf("config: token signing key must be at least 32 bytes, got %d", len(c.Token.SigningKey))
	}
	if c.Token.Leeway < 0 {
		return fmt.Errorf("config: token leeway must not be negative")
	}
	if c.EmailChange.Enabled && c.EmailChange.TokenTTL <= 0 {
		return fmt.Errorf("config: email change token TTL must be positive")
	}
	if c.PasswordReset.Enabled && c.PasswordReset.TokenTTL <= 0 {
		return fmt.Errorf("config: password reset token TTL must be positive")
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return fmt.Errorf("config: audit buffer size must be positive")
	}
	return nil
}
