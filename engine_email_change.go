package unitecms

import "context"

// RequestEmailChange starts an email change for the authenticated user.
// On success a confirmation token good for the configured TTL is stored on
// the user and delivered to the current address's configured channel.
//
// Returns ErrUnauthenticated without an authenticated user,
// ErrNotConfigured when the user's type carries no usable emailChange
// directive, ErrNoChange when newEmail equals the current address,
// ErrChangeAlreadyPending when a live token exists (or a concurrent request
// won), ErrValidationFailed when newEmail fails field validation, and
// ErrDeliveryFailed when the notification could not be delivered; in the
// delivery case the token is already persisted and stays confirmable.
func (e *Engine) RequestEmailChange(ctx context.Context, newEmail string) error {
	wf, err := e.workflow(workflowKindEmailChange)
	if err != nil {
		return err
	}
	return e.requestConfirmation(ctx, wf, map[string]string{payloadKeyEmail: newEmail})
}

// ConfirmEmailChange completes a pending email change. The presented token
// must match the stored one and verify for the caller; the new address is
// then validated again and written.
//
// Returns ErrNoPendingToken when nothing is pending, ErrTokenInvalid on
// mismatch or a token bound to another user or workflow, ErrTokenExpired
// when the pending token's lifetime has passed, and ErrValidationFailed
// when the address no longer passes validation.
func (e *Engine) ConfirmEmailChange(ctx context.Context, presentedToken string) error {
	wf, err := e.workflow(workflowKindEmailChange)
	if err != nil {
		return err
	}
	return e.confirmConfirmation(ctx, wf, presentedToken, nil)
}
