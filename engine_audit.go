package unitecms

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventEmailChangeRequest   = "email_change_request"
	auditEventEmailChangeConfirm   = "email_change_confirm"
	auditEventPasswordResetRequest = "password_reset_request"
	auditEventPasswordResetConfirm = "password_reset_confirm"
	auditEventCredentialCheck      = "credential_check"
)

// AuditErrorCode is the coarse error classification stamped into audit
// events. It never carries user input.
type AuditErrorCode string

const (
	auditErrUnauthenticated AuditErrorCode = "unauthenticated"
	auditErrNotConfigured   AuditErrorCode = "not_configured"
	auditErrNoChange        AuditErrorCode = "no_change"
	auditErrAlreadyPending  AuditErrorCode = "already_pending"
	auditErrValidation      AuditErrorCode = "validation_failed"
	auditErrDelivery        AuditErrorCode = "delivery_failed"
	auditErrNoPendingToken  AuditErrorCode = "no_pending_token"
	auditErrTokenInvalid    AuditErrorCode = "token_invalid"
	auditErrTokenExpired    AuditErrorCode = "token_expired"
	auditErrNotApplicable   AuditErrorCode = "not_applicable"
	auditErrUserNotFound    AuditErrorCode = "user_not_found"
	auditErrUnavailable     AuditErrorCode = "backend_unavailable"
	auditErrInternal        AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userType string,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		UserType:  userType,
		UserID:    userID,
		TenantID:  tenantIDFromContext(ctx),
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnauthenticated):
		return auditErrUnauthenticated
	case errors.Is(err, ErrNotConfigured):
		return auditErrNotConfigured
	case errors.Is(err, ErrNoChange):
		return auditErrNoChange
	case errors.Is(err, ErrChangeAlreadyPending),
		errors.Is(err, ErrPersistConflict):
		return auditErrAlreadyPending
	case errors.Is(err, ErrValidationFailed):
		return auditErrValidation
	case errors.Is(err, ErrDeliveryFailed):
		return auditErrDelivery
	case errors.Is(err, ErrNoPendingToken):
		return auditErrNoPendingToken
	case errors.Is(err, ErrTokenInvalid):
		return auditErrTokenInvalid
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrAuthNotApplicable):
		return auditErrNotApplicable
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
