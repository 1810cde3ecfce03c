package unitecms

import (
	"errors"
	"strings"
	"testing"
)

func TestPasswordResetRoundTrip(t *testing.T) {
	te := newTestEngine(t)
	te.addMember("u-1", "member@example.com", "")
	ctx := memberCtx("u-1")

	if err := te.engine.RequestPasswordReset(ctx); err != nil {
		t.Fatalf("request: %v", err)
	}

	n := te.sender.last(t)
	if n.Target != "member@example.com" {
		t.Fatalf("notification target = %q", n.Target)
	}
	if n.NewValue != "" {
		t.Fatalf("reset notification carries a pending value: %q", n.NewValue)
	}
	if !strings.HasPrefix(n.ConfirmURL, "https://example.com/reset/") {
		t.Fatalf("confirm URL = %q", n.ConfirmURL)
	}

	if err := te.engine.ConfirmPasswordReset(ctx, n.Token, "correct horse battery"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	stored := te.repo.get("Member", "u-1")
	hash := stored.StringField("password")
	if hash == "" || hash == "correct horse battery" {
		t.Fatalf("stored credential is not a hash: %q", hash)
	}
	if stored.Token(workflowKindPasswordReset) != "" {
		t.Fatal("token not cleared after confirm")
	}

	// the new secret verifies through the credential path
	ok, err := te.engine.VerifyCredentials(ctx, "Member", "member@example.com", "correct horse battery")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("new secret does not verify")
	}
}

func TestPasswordResetIndependentOfEmailChange(t *testing.T) {
	te := newTestEngine(t)
	te.addMember("u-1", "member@example.com", "")
	ctx := memberCtx("u-1")

	if err := te.engine.RequestEmailChange(ctx, "new@example.com"); err != nil {
		t.Fatalf("email change request: %v", err)
	}

	// a pending email change does not block a reset; the flows have
	// separate token slots
	if err := te.engine.RequestPasswordReset(ctx); err != nil {
		t.Fatalf("reset request: %v", err)
	}

	stored := te.repo.get("Member", "u-1")
	if stored.Token(workflowKindEmailChange) == "" || stored.Token(workflowKindPasswordReset) == "" {
		t.Fatal("expected both token slots populated")
	}
}

func TestPasswordResetTokenNotValidForEmailChange(t *testing.T) {
	te := newTestEngine(t)
	te.addMember("u-1", "member@example.com", "")
	ctx := memberCtx("u-1")

	if err := te.engine.RequestPasswordReset(ctx); err != nil {
		t.Fatalf("request: %v", err)
	}
	resetToken := te.sender.last(t).Token

	err := te.engine.ConfirmEmailChange(ctx, resetToken)
	if !errors.Is(err, ErrNoPendingToken) && !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("cross-workflow confirm = %v, want rejection", err)
	}
}

func TestConfirmPasswordResetEmptySecret(t *testing.T) {
	te := newTestEngine(t)
	te.addMember("u-1", "member@example.com", "")
	ctx := memberCtx("u-1")

	if err := te.engine.RequestPasswordReset(ctx); err != nil {
		t.Fatalf("request: %v", err)
	}
	tok := te.sender.last(t).Token

	err := te.engine.ConfirmPasswordReset(ctx, tok, "")
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("err = %v, want ErrValidationFailed", err)
	}

	// rejection leaves the token pending; a valid retry still works
	if err := te.engine.ConfirmPasswordReset(ctx, tok, "better secret"); err != nil {
		t.Fatalf("retry confirm: %v", err)
	}
}

func TestRequestPasswordResetAlreadyPending(t *testing.T) {
	te := newTestEngine(t)
	te.addMember("u-1", "member@example.com", "")
	ctx := memberCtx("u-1")

	if err := te.engine.RequestPasswordReset(ctx); err != nil {
		t.Fatalf("first request: %v", err)
	}
	err := te.engine.RequestPasswordReset(ctx)
	if !errors.Is(err, ErrChangeAlreadyPending) {
		t.Fatalf("second request = %v, want ErrChangeAlreadyPending", err)
	}
}

func TestRequestPasswordResetNotConfigured(t *testing.T) {
	te := newTestEngine(t)
	te.repo.add(&User{Type: "Visitor", ID: "v-1", Fields: map[string]any{"email": "v@example.com"}})

	err := te.engine.RequestPasswordReset(WithCurrentUser(memberCtx("v-1"), "Visitor", "v-1"))
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestRequestPasswordResetNoDeliveryAddress(t *testing.T) {
	te := newTestEngine(t)
	te.repo.add(&User{Type: "Member", ID: "u-1", Fields: map[string]any{}})

	err := te.engine.RequestPasswordReset(memberCtx("u-1"))
	if !errors.Is(err, ErrValidationFailed) {
		t.Fatalf("err = %v, want ErrValidationFailed", err)
	}
	if te.sender.count() != 0 {
		t.Fatal("notification sent without a delivery address")
	}
}

func TestPasswordResetDisabled(t *testing.T) {
	te := newTestEngineWithConfig(t, func(cfg *Config) {
		cfg.PasswordReset.Enabled = false
	})
	te.addMember("u-1", "member@example.com", "")

	err := te.engine.RequestPasswordReset(memberCtx("u-1"))
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}
