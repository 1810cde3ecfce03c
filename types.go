package unitecms

import (
	"context"
	"fmt"
)

// ChangeKind tells a repository whether a persist creates a new user or
// updates an existing one.
type ChangeKind string

const (
	ChangeCreate ChangeKind = "create"
	ChangeUpdate ChangeKind = "update"
)

// User is the engine's view of a stored account: a dynamic field bag shaped
// by the schema, one token slot per workflow kind, and a version counter the
// repository uses for compare-and-swap persistence.
type User struct {
	Type    string
	ID      string
	Fields  map[string]any
	Tokens  map[string]string
	Version uint64
}

// Subject returns the stable identity string tokens are bound to.
func (u *User) Subject() string {
	return u.Type + "/" + u.ID
}

func (u *User) Field(name string) any {
	if u.Fields == nil {
		return nil
	}
	return u.Fields[name]
}

// StringField returns the named field coerced to string, or "" when the
// field is absent or not a string.
func (u *User) StringField(name string) string {
	s, _ := u.Field(name).(string)
	return s
}

func (u *User) SetField(name string, value any) {
	if u.Fields == nil {
		u.Fields = make(map[string]any)
	}
	u.Fields[name] = value
}

// Token returns the stored confirmation token for a workflow kind, or "".
func (u *User) Token(kind string) string {
	if u.Tokens == nil {
		return ""
	}
	return u.Tokens[kind]
}

func (u *User) SetToken(kind, tok string) {
	if u.Tokens == nil {
		u.Tokens = make(map[string]string)
	}
	u.Tokens[kind] = tok
}

func (u *User) ClearToken(kind string) {
	delete(u.Tokens, kind)
}

// Clone returns a deep copy. Stores hand out clones so callers can mutate
// freely before persisting.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := &User{Type: u.Type, ID: u.ID, Version: u.Version}
	if u.Fields != nil {
		c.Fields = make(map[string]any, len(u.Fields))
		for k, v := range u.Fields {
			c.Fields[k] = v
		}
	}
	if u.Tokens != nil {
		c.Tokens = make(map[string]string, len(u.Tokens))
		for k, v := range u.Tokens {
			c.Tokens[k] = v
		}
	}
	return c
}

// UserRepository loads and persists users. Persist must detect concurrent
// modification of the same user (version compare-and-swap or equivalent)
// and return ErrPersistConflict for the loser; the engine relies on this to
// keep at most one live confirmation token per workflow.
type UserRepository interface {
	// LoadCurrent resolves the authenticated user for the request context.
	// It returns (nil, nil) when the context carries no authenticated user.
	LoadCurrent(ctx context.Context) (*User, error)

	// Load fetches a user by type and identifier. It returns (nil, nil)
	// when no such user exists.
	Load(ctx context.Context, typeName, identifier string) (*User, error)

	// Persist writes the user back. Implementations must return
	// ErrPersistConflict when the stored version no longer matches
	// user.Version, and bump the version on success.
	Persist(ctx context.Context, user *User, kind ChangeKind) error
}

// Notification is the message handed to a NotificationSender when a
// confirmation token is issued.
type Notification struct {
	// Target is the delivery address read from the user's configured field.
	Target string
	// Token is the raw confirmation token.
	Token string
	// ConfirmURL is Token rendered into the directive's URL template.
	ConfirmURL string
	// NewValue is the pending value, when the workflow has one (the new
	// email address for email changes; empty for password resets).
	NewValue string
}

// NotificationSender delivers confirmation notifications. It reports how
// many messages were sent; zero with a nil error still counts as a
// delivery failure.
type NotificationSender interface {
	Send(ctx context.Context, n Notification) (int, error)
}

// FieldValidator checks a candidate value against the field's schema
// constraints. When persist is true a passing value is also written onto
// the user; when false the check is a dry run.
type FieldValidator interface {
	Validate(ctx context.Context, user *User, field string, value any, persist bool) error
}

// FieldError is a structured validation failure for a single field.
type FieldError struct {
	Field   string
	Rule    string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %s (%s)", e.Field, e.Message, e.Rule)
}
