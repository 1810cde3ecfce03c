package unitecms

import "context"

// RequestPasswordReset starts a password reset for the authenticated user.
// A confirmation token is stored on the user and delivered to the address
// named by the passwordReset directive. The new secret is not part of the
// request; it arrives at confirm time.
func (e *Engine) RequestPasswordReset(ctx context.Context) error {
	wf, err := e.workflow(workflowKindPasswordReset)
	if err != nil {
		return err
	}
	return e.requestConfirmation(ctx, wf, nil)
}

// ConfirmPasswordReset completes a pending reset: the presented token must
// match and verify, newSecret must pass field validation, and the stored
// credential is replaced with its hash. The raw secret is never persisted
// or logged.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, presentedToken, newSecret string) error {
	wf, err := e.workflow(workflowKindPasswordReset)
	if err != nil {
		return err
	}
	return e.confirmConfirmation(ctx, wf, presentedToken, map[string]string{argKeySecret: newSecret})
}
