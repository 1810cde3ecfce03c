package unitecms

import "context"

type clientIPContextKey struct{}
type tenantIDContextKey struct{}
type currentUserContextKey struct{}

type currentUserRef struct {
	typeName string
	id       string
}

// WithCurrentUser marks ctx as authenticated as the given user. The shipped
// repositories resolve LoadCurrent from it; hosts with their own session
// layer may ignore it.
func WithCurrentUser(ctx context.Context, typeName, id string) context.Context {
	return context.WithValue(ctx, currentUserContextKey{}, currentUserRef{typeName: typeName, id: id})
}

// CurrentUserFromContext returns the authenticated user reference set by
// WithCurrentUser, or ok=false when the context is anonymous.
func CurrentUserFromContext(ctx context.Context) (typeName, id string, ok bool) {
	if ctx == nil {
		return "", "", false
	}
	ref, ok := ctx.Value(currentUserContextKey{}).(currentUserRef)
	if !ok || ref.typeName == "" || ref.id == "" {
		return "", "", false
	}
	return ref.typeName, ref.id, true
}

// WithClientIP attaches the caller's IP address to ctx. It shows up in
// audit events for workflow and credential operations.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithTenantID attaches a tenant identifier to ctx. Audit events carry it
// so one sink can serve several tenants. When unset, the default tenant
// "0" is used.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantIDContextKey{}, tenantID)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func tenantIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return "0"
	}

	tenantID, _ := ctx.Value(tenantIDContextKey{}).(string)
	if tenantID == "" {
		return "0"
	}

	return tenantID
}
