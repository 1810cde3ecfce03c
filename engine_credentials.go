package unitecms

import (
	"context"
	"fmt"
)

// VerifyCredentials checks a presented secret against the stored credential
// of the user identified by (typeName, identifier). The credential field is
// selected by the type's passwordAuth directive and the comparison runs in
// constant time.
//
// It returns (true, nil) on a match and (false, nil) on a mismatch, an
// unknown user, or an empty stored credential; the three are deliberately
// indistinguishable. ErrAuthNotApplicable means the type carries no usable
// passwordAuth directive and the caller must treat the outcome as
// undetermined, not failed. The presented secret is never logged or echoed
// back.
func (e *Engine) VerifyCredentials(ctx context.Context, typeName, identifier, secret string) (bool, error) {
	if err := e.checkReady(); err != nil {
		return false, err
	}

	pol, err := e.schema.PasswordPolicy(typeName)
	if err != nil {
		e.logMisconfiguration("credential_check", typeName, err)
		e.metricInc(MetricCredentialCheckNotApplicable)
		e.emitAudit(ctx, auditEventCredentialCheck, false, typeName, "", ErrAuthNotApplicable, nil)
		return false, ErrAuthNotApplicable
	}

	u, err := e.users.Load(ctx, typeName, identifier)
	if err != nil {
		e.metricInc(MetricCredentialCheckFailure)
		e.emitAudit(ctx, auditEventCredentialCheck, false, typeName, "", err, nil)
		return false, fmt.Errorf("load user: %w", err)
	}
	if u == nil {
		e.metricInc(MetricCredentialCheckFailure)
		e.emitAudit(ctx, auditEventCredentialCheck, false, typeName, "", ErrUserNotFound, nil)
		return false, nil
	}

	stored := u.StringField(pol.PasswordField)
	if stored == "" {
		e.metricInc(MetricCredentialCheckFailure)
		e.emitAudit(ctx, auditEventCredentialCheck, false, u.Type, u.ID, nil, nil)
		return false, nil
	}

	ok, err := e.hasher.Verify(secret, stored)
	if err != nil {
		e.metricInc(MetricCredentialCheckFailure)
		e.emitAudit(ctx, auditEventCredentialCheck, false, u.Type, u.ID, err, nil)
		return false, fmt.Errorf("verify credential: %w", err)
	}

	if ok {
		e.metricInc(MetricCredentialCheckSuccess)
	} else {
		e.metricInc(MetricCredentialCheckFailure)
	}
	e.emitAudit(ctx, auditEventCredentialCheck, ok, u.Type, u.ID, nil, nil)
	return ok, nil
}
