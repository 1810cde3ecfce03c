package unitecms

import "errors"

var (
	// ErrEngineNotReady is returned when the engine is used before Build
	// completed or after Close.
	ErrEngineNotReady = errors.New("engine not ready")

	// ErrUnauthenticated is returned when a workflow operation is invoked
	// without an authenticated user in scope.
	ErrUnauthenticated = errors.New("no authenticated user")

	// ErrNotConfigured is returned when the user's type does not carry the
	// directive required by the requested workflow, or carries it with an
	// unusable configuration.
	ErrNotConfigured = errors.New("workflow not configured for user type")

	// ErrNoChange is returned when a request would not change anything,
	// e.g. an email change to the address already on record.
	ErrNoChange = errors.New("requested value equals current value")

	// ErrChangeAlreadyPending is returned when a live confirmation token
	// already exists for the workflow, or when a concurrent request won
	// the persistence race.
	ErrChangeAlreadyPending = errors.New("change already pending confirmation")

	// ErrValidationFailed wraps field validation failures. The underlying
	// *FieldError (or validator error) is joined and reachable via
	// errors.As.
	ErrValidationFailed = errors.New("field validation failed")

	// ErrDeliveryFailed is returned when the notification carrying the
	// confirmation token could not be delivered. The token remains
	// persisted and stays confirmable until it expires.
	ErrDeliveryFailed = errors.New("notification delivery failed")

	// ErrNoPendingToken is returned by confirm operations when the user
	// has no stored token for the workflow.
	ErrNoPendingToken = errors.New("no pending confirmation token")

	// ErrTokenInvalid is returned when a presented token does not match
	// the stored one, fails signature verification, or is bound to a
	// different subject or workflow.
	ErrTokenInvalid = errors.New("confirmation token invalid")

	// ErrTokenExpired is returned when a presented token matched and
	// verified but its lifetime has passed.
	ErrTokenExpired = errors.New("confirmation token expired")

	// ErrAuthNotApplicable is returned by credential verification when the
	// user type carries no password directive. Callers must treat it as
	// "undetermined", not as a failed check.
	ErrAuthNotApplicable = errors.New("credential verification not applicable")

	// ErrUserNotFound is returned by stores when a load by identifier
	// matches no user.
	ErrUserNotFound = errors.New("user not found")

	// ErrPersistConflict is returned by UserRepository implementations
	// when a compare-and-swap persist lost against a concurrent writer.
	ErrPersistConflict = errors.New("concurrent modification detected")

	// ErrStoreUnavailable is returned by stores on backend failures.
	ErrStoreUnavailable = errors.New("user store unavailable")
)
