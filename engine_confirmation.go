package unitecms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/svirmi/unite-cms/token"
)

// requestConfirmation runs the request half of a confirmation workflow:
// resolve the policy for the caller's type, check for a live pending token,
// validate the requested change, then issue, persist, and deliver a new
// token. The persisted token is the single source of truth; at most one
// per user and workflow is live at a time.
func (e *Engine) requestConfirmation(ctx context.Context, wf *workflowSpec, args map[string]string) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	e.metricInc(wf.requestedID)

	u, err := e.loadAuthenticated(ctx)
	if err != nil {
		e.metricInc(wf.rejectedID)
		e.emitAudit(ctx, wf.requestEvent, false, "", "", err, nil)
		return err
	}

	fail := func(err error) error {
		e.metricInc(wf.rejectedID)
		e.emitAudit(ctx, wf.requestEvent, false, u.Type, u.ID, err, nil)
		return err
	}

	pol, err := wf.resolvePolicy(e.schema, u.Type)
	if err != nil {
		e.logMisconfiguration(wf.kind, u.Type, err)
		return fail(ErrNotConfigured)
	}

	if wf.precheck != nil {
		if err := wf.precheck(u, pol, args); err != nil {
			return fail(err)
		}
	}

	// a stored token that no longer verifies is dead weight and may be
	// replaced; only a live one blocks a new request
	if stored := u.Token(wf.kind); stored != "" {
		if _, verr := e.tokens.Verify(stored, u.Subject(), wf.kind); verr == nil {
			return fail(ErrChangeAlreadyPending)
		}
	}

	payload, err := wf.validateRequest(ctx, e, u, pol, args)
	if err != nil {
		if errors.Is(err, ErrValidationFailed) {
			e.metricInc(MetricValidationFailure)
		}
		return fail(err)
	}

	tok, err := e.tokens.Issue(u.Subject(), wf.kind, wf.ttl, payload)
	if err != nil {
		return fail(fmt.Errorf("issue confirmation token: %w", err))
	}

	u.SetToken(wf.kind, tok)
	if err := e.users.Persist(ctx, u, ChangeUpdate); err != nil {
		if errors.Is(err, ErrPersistConflict) {
			// a concurrent request won the race; its token stands
			e.metricInc(MetricPersistConflict)
			return fail(ErrChangeAlreadyPending)
		}
		return fail(fmt.Errorf("persist pending token: %w", err))
	}
	e.metricInc(wf.pendingID)

	n, err := e.sender.Send(ctx, Notification{
		Target:     u.StringField(pol.deliveryField),
		Token:      tok,
		ConfirmURL: pol.confirmURL(tok),
		NewValue:   wf.notificationValue(payload),
	})
	if err != nil || n < 1 {
		// the token stays persisted and remains confirmable until it
		// expires; a later request may replace it once it does
		e.metricInc(MetricDeliveryFailure)
		e.emitAudit(ctx, wf.requestEvent, false, u.Type, u.ID, ErrDeliveryFailed, func() map[string]string {
			return map[string]string{"deliveries": fmt.Sprint(n)}
		})
		return ErrDeliveryFailed
	}

	e.emitAudit(ctx, wf.requestEvent, true, u.Type, u.ID, nil, func() map[string]string {
		return map[string]string{"deliveries": fmt.Sprint(n)}
	})
	return nil
}

// confirmConfirmation runs the confirm half: the presented token must
// byte-match the stored one and verify against the caller's subject and the
// workflow namespace before the mutation is applied and the token cleared.
func (e *Engine) confirmConfirmation(ctx context.Context, wf *workflowSpec, presented string, args map[string]string) error {
	if err := e.checkReady(); err != nil {
		return err
	}
	start := time.Now()

	u, err := e.loadAuthenticated(ctx)
	if err != nil {
		e.metricInc(wf.rejectedID)
		e.emitAudit(ctx, wf.confirmEvent, false, "", "", err, nil)
		return err
	}

	fail := func(err error) error {
		e.metricInc(wf.rejectedID)
		e.emitAudit(ctx, wf.confirmEvent, false, u.Type, u.ID, err, nil)
		return err
	}

	pol, err := wf.resolvePolicy(e.schema, u.Type)
	if err != nil {
		e.logMisconfiguration(wf.kind, u.Type, err)
		return fail(ErrNotConfigured)
	}

	stored := u.Token(wf.kind)
	if stored == "" {
		return fail(ErrNoPendingToken)
	}
	if presented != stored {
		e.metricInc(MetricTokenRejected)
		return fail(ErrTokenInvalid)
	}

	payload, err := e.tokens.Verify(presented, u.Subject(), wf.kind)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrExpired):
			e.metricInc(MetricTokenExpired)
			return fail(ErrTokenExpired)
		default:
			e.metricInc(MetricTokenRejected)
			return fail(ErrTokenInvalid)
		}
	}

	if err := wf.apply(ctx, e, u, pol, payload, args); err != nil {
		if errors.Is(err, ErrValidationFailed) {
			e.metricInc(MetricValidationFailure)
		}
		return fail(err)
	}

	u.ClearToken(wf.kind)
	if err := e.users.Persist(ctx, u, ChangeUpdate); err != nil {
		if errors.Is(err, ErrPersistConflict) {
			e.metricInc(MetricPersistConflict)
		}
		return fail(fmt.Errorf("persist confirmed change: %w", err))
	}

	e.metricInc(wf.confirmedID)
	e.metrics.Observe(MetricConfirmLatency, time.Since(start))
	e.emitAudit(ctx, wf.confirmEvent, true, u.Type, u.ID, nil, nil)
	return nil
}

func (e *Engine) workflow(kind string) (*workflowSpec, error) {
	wf, ok := e.workflows[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s workflow disabled", ErrNotConfigured, kind)
	}
	return wf, nil
}
