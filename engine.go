package unitecms

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/svirmi/unite-cms/credentials"
	"github.com/svirmi/unite-cms/schema"
	"github.com/svirmi/unite-cms/token"
)

// Engine drives the identity workflows over a schema, a user repository,
// and a notification channel. Build one with a Builder; a built Engine is
// safe for concurrent use.
type Engine struct {
	config    *Config
	schema    *schema.Index
	tokens    *token.Codec
	hasher    *credentials.Hasher
	users     UserRepository
	sender    NotificationSender
	validator FieldValidator
	audit     *auditDispatcher
	metrics   *Metrics
	workflows map[string]*workflowSpec
	ready     atomic.Bool
}

// Close flushes and stops the audit dispatcher. The engine must not be used
// afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.ready.Store(false)
	e.audit.Close()
}

// Schema returns the schema index the engine resolves policies from.
func (e *Engine) Schema() *schema.Index {
	return e.schema
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// Metrics exposes the live counters, e.g. for a Prometheus exporter.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// AuditDropped reports how many audit events were dropped because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	return e.audit.Dropped()
}

func (e *Engine) checkReady() error {
	if e == nil || !e.ready.Load() {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	e.metrics.Inc(id)
}

// loadAuthenticated resolves the caller's user or fails with
// ErrUnauthenticated.
func (e *Engine) loadAuthenticated(ctx context.Context) (*User, error) {
	u, err := e.users.LoadCurrent(ctx)
	if err != nil {
		return nil, fmt.Errorf("load current user: %w", err)
	}
	if u == nil {
		return nil, ErrUnauthenticated
	}
	return u, nil
}

// logMisconfiguration reports unusable directive configurations to the
// operator log. Callers still return ErrNotConfigured to the user.
func (e *Engine) logMisconfiguration(kind, typeName string, err error) {
	if errors.Is(err, schema.ErrNotDirected) || errors.Is(err, schema.ErrTypeUnknown) {
		// absence of the directive is a normal state, not operator error
		return
	}
	log.Printf("unitecms: %s workflow unusable for type %q: %v", kind, typeName, err)
}
