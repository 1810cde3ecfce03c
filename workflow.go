package unitecms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/svirmi/unite-cms/schema"
)

const (
	workflowKindEmailChange   = "email_change"
	workflowKindPasswordReset = "password_reset"
)

// resolvedPolicy is a workflow's directive configuration bound to one user
// type.
type resolvedPolicy struct {
	// deliveryField holds the notification address.
	deliveryField string
	// mutateField is the field the confirm step writes.
	mutateField string
	// confirmURL renders a token into the directive's URL template.
	confirmURL func(token string) string
}

// workflowSpec describes one two-phase confirmation flow. The generic
// request and confirm paths in engine_confirmation.go run every flow; a
// spec fills in the parts that differ.
type workflowSpec struct {
	kind           string
	ttl            time.Duration
	requestEvent   string
	confirmEvent   string
	requestedID    MetricID
	pendingID      MetricID
	confirmedID    MetricID
	rejectedID     MetricID
	resolvePolicy  func(ix *schema.Index, typeName string) (resolvedPolicy, error)
	// precheck rejects requests that would change nothing. Runs before the
	// pending-token check.
	precheck func(u *User, pol resolvedPolicy, args map[string]string) error
	// validateRequest dry-runs field validation and builds the token
	// payload.
	validateRequest func(ctx context.Context, e *Engine, u *User, pol resolvedPolicy, args map[string]string) (map[string]string, error)
	// notificationValue extracts the pending value the notification may
	// show, or "".
	notificationValue func(payload map[string]string) string
	// apply performs the confirmed mutation. The caller clears the token
	// and persists afterwards.
	apply func(ctx context.Context, e *Engine, u *User, pol resolvedPolicy, payload, args map[string]string) error
}

const payloadKeyEmail = "email"

func emailChangeWorkflow(cfg WorkflowConfig) *workflowSpec {
	return &workflowSpec{
		kind:         workflowKindEmailChange,
		ttl:          cfg.TokenTTL,
		requestEvent: auditEventEmailChangeRequest,
		confirmEvent: auditEventEmailChangeConfirm,
		requestedID:  MetricEmailChangeRequested,
		pendingID:    MetricEmailChangePending,
		confirmedID:  MetricEmailChangeConfirmed,
		rejectedID:   MetricEmailChangeRejected,

		resolvePolicy: func(ix *schema.Index, typeName string) (resolvedPolicy, error) {
			p, err := ix.EmailChangePolicy(typeName)
			if err != nil {
				return resolvedPolicy{}, err
			}
			return resolvedPolicy{
				deliveryField: p.EmailField,
				mutateField:   p.EmailField,
				confirmURL:    p.ConfirmURL,
			}, nil
		},

		precheck: func(u *User, pol resolvedPolicy, args map[string]string) error {
			if args[payloadKeyEmail] == u.StringField(pol.mutateField) {
				return ErrNoChange
			}
			return nil
		},

		validateRequest: func(ctx context.Context, e *Engine, u *User, pol resolvedPolicy, args map[string]string) (map[string]string, error) {
			newEmail := args[payloadKeyEmail]
			if newEmail == "" {
				return nil, errors.Join(ErrValidationFailed, &FieldError{
					Field:   pol.mutateField,
					Rule:    "required",
					Message: "new email address must not be empty",
				})
			}
			if err := e.validator.Validate(ctx, u, pol.mutateField, newEmail, false); err != nil {
				return nil, errors.Join(ErrValidationFailed, err)
			}
			return map[string]string{payloadKeyEmail: newEmail}, nil
		},

		notificationValue: func(payload map[string]string) string {
			return payload[payloadKeyEmail]
		},

		apply: func(ctx context.Context, e *Engine, u *User, pol resolvedPolicy, payload, _ map[string]string) error {
			newEmail := payload[payloadKeyEmail]
			if newEmail == "" {
				return fmt.Errorf("%w: token payload carries no email", ErrTokenInvalid)
			}
			// validator writes the field on success
			if err := e.validator.Validate(ctx, u, pol.mutateField, newEmail, true); err != nil {
				return errors.Join(ErrValidationFailed, err)
			}
			return nil
		},
	}
}

const argKeySecret = "secret"

func passwordResetWorkflow(cfg WorkflowConfig) *workflowSpec {
	return &workflowSpec{
		kind:         workflowKindPasswordReset,
		ttl:          cfg.TokenTTL,
		requestEvent: auditEventPasswordResetRequest,
		confirmEvent: auditEventPasswordResetConfirm,
		requestedID:  MetricPasswordResetRequested,
		pendingID:    MetricPasswordResetPending,
		confirmedID:  MetricPasswordResetConfirmed,
		rejectedID:   MetricPasswordResetRejected,

		resolvePolicy: func(ix *schema.Index, typeName string) (resolvedPolicy, error) {
			p, err := ix.PasswordResetPolicy(typeName)
			if err != nil {
				return resolvedPolicy{}, err
			}
			return resolvedPolicy{
				deliveryField: p.EmailField,
				mutateField:   p.PasswordField,
				confirmURL:    p.ConfirmURL,
			}, nil
		},

		// a reset request is never a no-op
		precheck: nil,

		validateRequest: func(_ context.Context, _ *Engine, u *User, pol resolvedPolicy, _ map[string]string) (map[string]string, error) {
			if u.StringField(pol.deliveryField) == "" {
				return nil, errors.Join(ErrValidationFailed, &FieldError{
					Field:   pol.deliveryField,
					Rule:    "required",
					Message: "user has no delivery address on record",
				})
			}
			// the new secret arrives at confirm time; the token binds only
			// subject and workflow
			return map[string]string{}, nil
		},

		notificationValue: func(map[string]string) string { return "" },

		apply: func(ctx context.Context, e *Engine, u *User, pol resolvedPolicy, _, args map[string]string) error {
			secret := args[argKeySecret]
			if secret == "" {
				return errors.Join(ErrValidationFailed, &FieldError{
					Field:   pol.mutateField,
					Rule:    "required",
					Message: "new password must not be empty",
				})
			}
			if err := e.validator.Validate(ctx, u, pol.mutateField, secret, false); err != nil {
				return errors.Join(ErrValidationFailed, err)
			}
			hash, err := e.hasher.Hash(secret)
			if err != nil {
				return fmt.Errorf("hash new password: %w", err)
			}
			u.SetField(pol.mutateField, hash)
			return nil
		},
	}
}
