package unitecms

import (
	"fmt"

	"github.com/svirmi/unite-cms/credentials"
	"github.com/svirmi/unite-cms/schema"
	"github.com/svirmi/unite-cms/token"
)

// Builder assembles an Engine from a configuration and its collaborators.
// The zero value is not usable; start with New.
type Builder struct {
	config     *Config
	signingKey []byte
	schema     *schema.Index
	users      UserRepository
	sender     NotificationSender
	validator  FieldValidator
	auditSink  AuditSink
}

func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the default configuration. The config is cloned; later
// mutation of cfg does not affect the built engine.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(&cfg)
	return b
}

// WithSigningKey sets the token signing key. It is kept aside and merged at
// Build, so the order relative to WithConfig does not matter; an explicit
// key always wins over the config's.
func (b *Builder) WithSigningKey(key []byte) *Builder {
	b.signingKey = append([]byte(nil), key...)
	return b
}

// WithSchema sets the validated schema index policies are resolved from.
func (b *Builder) WithSchema(ix *schema.Index) *Builder {
	b.schema = ix
	return b
}

func (b *Builder) WithUserRepository(r UserRepository) *Builder {
	b.users = r
	return b
}

func (b *Builder) WithNotificationSender(s NotificationSender) *Builder {
	b.sender = s
	return b
}

func (b *Builder) WithFieldValidator(v FieldValidator) *Builder {
	b.validator = v
	return b
}

// WithAuditSink sets the destination for audit events. Without one, events
// are discarded.
func (b *Builder) WithAuditSink(s AuditSink) *Builder {
	b.auditSink = s
	return b
}

// Build validates the configuration and wiring and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.signingKey != nil {
		b.config.Token.SigningKey = b.signingKey
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.schema == nil {
		return nil, fmt.Errorf("build: schema index is required")
	}
	if b.users == nil {
		return nil, fmt.Errorf("build: user repository is required")
	}
	if b.validator == nil {
		return nil, fmt.Errorf("build: field validator is required")
	}
	if b.sender == nil && (b.config.EmailChange.Enabled || b.config.PasswordReset.Enabled) {
		return nil, fmt.Errorf("build: notification sender is required when a confirmation workflow is enabled")
	}

	codec, err := token.New(token.Config{
		SigningKey: b.config.Token.SigningKey,
		Issuer:     b.config.Token.Issuer,
		Leeway:     b.config.Token.Leeway,
	})
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}

	hasher, err := credentials.New(b.config.Hasher)
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}

	e := &Engine{
		config:    b.config,
		schema:    b.schema,
		tokens:    codec,
		hasher:    hasher,
		users:     b.users,
		sender:    b.sender,
		validator: b.validator,
		audit:     newAuditDispatcher(b.config.Audit, b.auditSink),
		metrics:   NewMetrics(b.config.Metrics),
	}
	e.workflows = map[string]*workflowSpec{}
	if b.config.EmailChange.Enabled {
		e.workflows[workflowKindEmailChange] = emailChangeWorkflow(b.config.EmailChange)
	}
	if b.config.PasswordReset.Enabled {
		e.workflows[workflowKindPasswordReset] = passwordResetWorkflow(b.config.PasswordReset)
	}

	e.ready.Store(true)
	return e, nil
}
