// Package prometheus exposes engine counters as Prometheus metrics. The
// exporter is a prometheus.Collector that reads a fresh snapshot on every
// scrape, so it needs no synchronization with the engine's hot path.
package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	unitecms "github.com/svirmi/unite-cms"
)

type metricsSource interface {
	MetricsSnapshot() unitecms.MetricsSnapshot
	AuditDropped() uint64
}

type counterDef struct {
	id   unitecms.MetricID
	name string
	help string
}

var counterDefs = []counterDef{
	{unitecms.MetricEmailChangeRequested, "unitecms_email_change_requested_total", "Email change requests received."},
	{unitecms.MetricEmailChangePending, "unitecms_email_change_pending_total", "Email change tokens issued and persisted."},
	{unitecms.MetricEmailChangeConfirmed, "unitecms_email_change_confirmed_total", "Email changes confirmed and applied."},
	{unitecms.MetricEmailChangeRejected, "unitecms_email_change_rejected_total", "Email change operations rejected."},
	{unitecms.MetricPasswordResetRequested, "unitecms_password_reset_requested_total", "Password reset requests received."},
	{unitecms.MetricPasswordResetPending, "unitecms_password_reset_pending_total", "Password reset tokens issued and persisted."},
	{unitecms.MetricPasswordResetConfirmed, "unitecms_password_reset_confirmed_total", "Password resets confirmed and applied."},
	{unitecms.MetricPasswordResetRejected, "unitecms_password_reset_rejected_total", "Password reset operations rejected."},
	{unitecms.MetricCredentialCheckSuccess, "unitecms_credential_check_success_total", "Credential checks that matched."},
	{unitecms.MetricCredentialCheckFailure, "unitecms_credential_check_failure_total", "Credential checks that did not match."},
	{unitecms.MetricCredentialCheckNotApplicable, "unitecms_credential_check_not_applicable_total", "Credential checks against types without a password policy."},
	{unitecms.MetricDeliveryFailure, "unitecms_delivery_failure_total", "Confirmation notifications that could not be delivered."},
	{unitecms.MetricTokenRejected, "unitecms_token_rejected_total", "Presented tokens rejected as invalid."},
	{unitecms.MetricTokenExpired, "unitecms_token_expired_total", "Presented tokens rejected as expired."},
	{unitecms.MetricValidationFailure, "unitecms_validation_failure_total", "Field validation failures across workflows."},
	{unitecms.MetricPersistConflict, "unitecms_persist_conflict_total", "Lost compare-and-swap persists."},
}

// confirm-latency bucket upper bounds in seconds, matching the engine's
// millisecond buckets
var latencyBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// Exporter adapts an Engine (or any snapshot source) to the Prometheus
// collector interface.
var _ prometheus.Collector = (*Exporter)(nil)

type Exporter struct {
	source      metricsSource
	descs       map[unitecms.MetricID]*prometheus.Desc
	latencyDesc *prometheus.Desc
	droppedDesc *prometheus.Desc
}

func NewExporter(engine *unitecms.Engine) *Exporter {
	return NewExporterFromSource(engine)
}

// NewExporterFromSource builds an Exporter over a custom snapshot source,
// e.g. a wrapper aggregating several engines.
func NewExporterFromSource(source metricsSource) *Exporter {
	descs := make(map[unitecms.MetricID]*prometheus.Desc, len(counterDefs))
	for _, def := range counterDefs {
		descs[def.id] = prometheus.NewDesc(def.name, def.help, nil, nil)
	}
	return &Exporter{
		source: source,
		descs:  descs,
		latencyDesc: prometheus.NewDesc(
			"unitecms_confirm_latency_seconds",
			"Latency of confirm operations.",
			nil, nil,
		),
		droppedDesc: prometheus.NewDesc(
			"unitecms_audit_dropped_total",
			"Audit events dropped due to dispatcher backpressure.",
			nil, nil,
		),
	}
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, desc := range e.descs {
		ch <- desc
	}
	ch <- e.latencyDesc
	ch <- e.droppedDesc
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	if e == nil || e.source == nil {
		return
	}
	snapshot := e.source.MetricsSnapshot()

	for _, def := range counterDefs {
		ch <- prometheus.MustNewConstMetric(
			e.descs[def.id],
			prometheus.CounterValue,
			float64(snapshot.Counters[def.id]),
		)
	}

	if raw, ok := snapshot.Histograms[unitecms.MetricConfirmLatency]; ok {
		buckets := make(map[float64]uint64, len(latencyBounds))
		var cumulative uint64
		for i, bound := range latencyBounds {
			if i < len(raw) {
				cumulative += raw[i]
			}
			buckets[bound] = cumulative
		}
		var count uint64
		for _, v := range raw {
			count += v
		}
		// per-operation durations are not tracked, only bucket counts
		ch <- prometheus.MustNewConstHistogram(e.latencyDesc, count, 0, buckets)
	}

	ch <- prometheus.MustNewConstMetric(
		e.droppedDesc,
		prometheus.CounterValue,
		float64(e.source.AuditDropped()),
	)
}

// Handler returns an http.Handler serving this exporter from a private
// registry.
func (e *Exporter) Handler() http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(e)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
