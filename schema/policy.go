package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Directive names the engine resolves policies from.
const (
	DirectiveEmailChange   = "emailChange"
	DirectivePasswordAuth  = "passwordAuth"
	DirectivePasswordReset = "passwordReset"
)

// Resolution failures. All of them mean "no policy" to the workflow layer;
// the wrapped detail exists for operator diagnostics only and must never be
// surfaced to untrusted callers.
var (
	// ErrTypeUnknown reports a lookup against a type the schema does not declare.
	ErrTypeUnknown = errors.New("unknown user type")
	// ErrNotDirected reports a type that carries no instance of the requested directive.
	ErrNotDirected = errors.New("type not configured for directive")
	// ErrArgMissing reports a directive instance missing a required argument.
	ErrArgMissing = errors.New("directive argument missing")
	// ErrFieldMissing reports a directive argument naming a field the type does not have.
	ErrFieldMissing = errors.New("directive references missing field")
	// ErrFieldKind reports a referenced field of the wrong semantic kind.
	ErrFieldKind = errors.New("directive references field of wrong kind")
)

// EmailChangePolicy is the validated configuration of the emailChange
// directive: which field holds the address and where the confirmation link
// points.
type EmailChangePolicy struct {
	EmailField string
	ChangeURL  string
}

// ConfirmURL renders the change URL with the issued token substituted for
// the {token} placeholder.
func (p EmailChangePolicy) ConfirmURL(token string) string {
	return strings.ReplaceAll(p.ChangeURL, "{token}", token)
}

// PasswordPolicy is the validated configuration of the passwordAuth
// directive: which field holds the credential hash.
type PasswordPolicy struct {
	PasswordField string
}

// PasswordResetPolicy is the validated configuration of the passwordReset
// directive.
type PasswordResetPolicy struct {
	EmailField    string
	PasswordField string
	ResetURL      string
}

// ConfirmURL renders the reset URL with the issued token substituted for
// the {token} placeholder.
func (p PasswordResetPolicy) ConfirmURL(token string) string {
	return strings.ReplaceAll(p.ResetURL, "{token}", token)
}

// EmailChangePolicy resolves the emailChange policy for a type. The
// referenced field must exist and be of kind email.
func (ix *Index) EmailChangePolicy(typeName string) (EmailChangePolicy, error) {
	t, d, err := ix.directive(typeName, DirectiveEmailChange)
	if err != nil {
		return EmailChangePolicy{}, err
	}

	emailField, err := requireArg(t, d, "emailField")
	if err != nil {
		return EmailChangePolicy{}, err
	}
	if err := requireFieldKind(t, d, emailField, KindEmail); err != nil {
		return EmailChangePolicy{}, err
	}

	changeURL, err := requireArg(t, d, "changeUrl")
	if err != nil {
		return EmailChangePolicy{}, err
	}

	return EmailChangePolicy{EmailField: emailField, ChangeURL: changeURL}, nil
}

// PasswordPolicy resolves the passwordAuth policy for a type. The referenced
// field must exist; its kind is not constrained so hosts can migrate legacy
// credential columns.
func (ix *Index) PasswordPolicy(typeName string) (PasswordPolicy, error) {
	t, d, err := ix.directive(typeName, DirectivePasswordAuth)
	if err != nil {
		return PasswordPolicy{}, err
	}

	passwordField, err := requireArg(t, d, "passwordField")
	if err != nil {
		return PasswordPolicy{}, err
	}
	if _, ok := t.Field(passwordField); !ok {
		return PasswordPolicy{}, fieldErr(t, d, passwordField, ErrFieldMissing)
	}

	return PasswordPolicy{PasswordField: passwordField}, nil
}

// PasswordResetPolicy resolves the passwordReset policy for a type. The
// email field must be of kind email; the password field must exist.
func (ix *Index) PasswordResetPolicy(typeName string) (PasswordResetPolicy, error) {
	t, d, err := ix.directive(typeName, DirectivePasswordReset)
	if err != nil {
		return PasswordResetPolicy{}, err
	}

	emailField, err := requireArg(t, d, "emailField")
	if err != nil {
		return PasswordResetPolicy{}, err
	}
	if err := requireFieldKind(t, d, emailField, KindEmail); err != nil {
		return PasswordResetPolicy{}, err
	}

	passwordField, err := requireArg(t, d, "passwordField")
	if err != nil {
		return PasswordResetPolicy{}, err
	}
	if _, ok := t.Field(passwordField); !ok {
		return PasswordResetPolicy{}, fieldErr(t, d, passwordField, ErrFieldMissing)
	}

	resetURL, err := requireArg(t, d, "resetUrl")
	if err != nil {
		return PasswordResetPolicy{}, err
	}

	return PasswordResetPolicy{
		EmailField:    emailField,
		PasswordField: passwordField,
		ResetURL:      resetURL,
	}, nil
}

func (ix *Index) directive(typeName, directiveName string) (*UserType, Directive, error) {
	t, ok := ix.UserType(typeName)
	if !ok {
		return nil, Directive{}, fmt.Errorf("schema: %w: %q", ErrTypeUnknown, typeName)
	}
	d, ok := t.Directive(directiveName)
	if !ok {
		return nil, Directive{}, fmt.Errorf("schema: %w: type %q, directive %q", ErrNotDirected, typeName, directiveName)
	}
	return t, d, nil
}

func requireArg(t *UserType, d Directive, arg string) (string, error) {
	v := d.Args[arg]
	if v == "" {
		return "", fmt.Errorf("schema: %w: type %q, directive %q, argument %q", ErrArgMissing, t.Name(), d.Name, arg)
	}
	return v, nil
}

func requireFieldKind(t *UserType, d Directive, fieldName string, kind FieldKind) error {
	f, ok := t.Field(fieldName)
	if !ok {
		return fieldErr(t, d, fieldName, ErrFieldMissing)
	}
	if f.Kind != kind {
		return fmt.Errorf("schema: %w: type %q, directive %q, field %q is %q, want %q",
			ErrFieldKind, t.Name(), d.Name, fieldName, f.Kind, kind)
	}
	return nil
}

func fieldErr(t *UserType, d Directive, fieldName string, sentinel error) error {
	return fmt.Errorf("schema: %w: type %q, directive %q, field %q", sentinel, t.Name(), d.Name, fieldName)
}
