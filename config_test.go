package unitecms

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"short signing key", func(c *Config) { c.Token.SigningKey = []byte("short") }},
		{"negative leeway", func(c *Config) { c.Token.Leeway = -time.Second }},
		{"zero email change TTL", func(c *Config) { c.EmailChange.TokenTTL = 0 }},
		{"zero reset TTL", func(c *Config) { c.PasswordReset.TokenTTL = 0 }},
		{"zero audit buffer", func(c *Config) { c.Audit.BufferSize = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.Token.SigningKey = testSigningKey
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestConfigValidateDisabledWorkflowSkipsTTLCheck(t *testing.T) {
	cfg := defaultConfig()
	cfg.Token.SigningKey = testSigningKey
	cfg.EmailChange = WorkflowConfig{Enabled: false, TokenTTL: 0}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestBuilderMissingCollaborators(t *testing.T) {
	base := func() *Builder {
		return New().
			WithSigningKey(testSigningKey).
			WithSchema(testSchema(t)).
			WithUserRepository(newMemoryRepo()).
			WithNotificationSender(newMockSender()).
			WithFieldValidator(mockValidator{})
	}

	if _, err := base().Build(); err != nil {
		t.Fatalf("complete builder failed: %v", err)
	}

	cases := []struct {
		name  string
		strip func(*Builder) *Builder
	}{
		{"schema", func(b *Builder) *Builder { b.schema = nil; return b }},
		{"repository", func(b *Builder) *Builder { b.users = nil; return b }},
		{"validator", func(b *Builder) *Builder { b.validator = nil; return b }},
		{"sender", func(b *Builder) *Builder { b.sender = nil; return b }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tc.strip(base()).Build(); err == nil {
				t.Fatal("expected build error")
			}
		})
	}
}

func TestBuilderSenderOptionalWhenWorkflowsDisabled(t *testing.T) {
	cfg := *defaultConfig()
	cfg.Token.SigningKey = testSigningKey
	cfg.EmailChange.Enabled = false
	cfg.PasswordReset.Enabled = false

	engine, err := New().
		WithConfig(cfg).
		WithSchema(testSchema(t)).
		WithUserRepository(newMemoryRepo()).
		WithFieldValidator(mockValidator{}).
		Build()
	if err != nil {
		t.Fatalf("build without sender: %v", err)
	}
	defer engine.Close()

	err = engine.RequestEmailChange(memberCtx("u-1"), "x@example.com")
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("disabled workflow = %v, want ErrNotConfigured", err)
	}
}

func TestEngineNotReadyAfterClose(t *testing.T) {
	te := newTestEngine(t)
	te.addMember("u-1", "member@example.com", "")
	te.engine.Close()

	if err := te.engine.RequestEmailChange(memberCtx("u-1"), "x@example.com"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("request after close = %v, want ErrEngineNotReady", err)
	}
	if _, err := te.engine.VerifyCredentials(context.Background(), "Member", "a", "b"); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("verify after close = %v, want ErrEngineNotReady", err)
	}
}

func TestWithSigningKeyOrderIndependent(t *testing.T) {
	cfg := *defaultConfig() // carries no signing key

	cases := map[string]func() *Builder{
		"key then config": func() *Builder {
			return New().WithSigningKey(testSigningKey).WithConfig(cfg)
		},
		"config then key": func() *Builder {
			return New().WithConfig(cfg).WithSigningKey(testSigningKey)
		},
	}
	for name, builder := range cases {
		t.Run(name, func(t *testing.T) {
			engine, err := builder().
				WithSchema(testSchema(t)).
				WithUserRepository(newMemoryRepo()).
				WithNotificationSender(newMockSender()).
				WithFieldValidator(mockValidator{}).
				Build()
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			engine.Close()
		})
	}
}

func TestWithConfigClones(t *testing.T) {
	cfg := *defaultConfig()
	cfg.Token.SigningKey = append([]byte(nil), testSigningKey...)

	b := New().WithConfig(cfg)
	cfg.Token.SigningKey[0] ^= 0xff

	if b.config.Token.SigningKey[0] == cfg.Token.SigningKey[0] {
		t.Fatal("builder shares the caller's signing key slice")
	}
}
