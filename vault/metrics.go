package vault

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "pinvault"

// Collector is a prometheus.Collector for vault authentication and
// decryption outcomes.
type Collector struct {
	verifications   *prometheus.CounterVec
	lockouts        prometheus.Counter
	locks           *prometheus.CounterVec
	decryptFailures prometheus.Counter
	keysCreated     prometheus.Counter
}

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		verifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "verifications_total",
				Help:      "PIN and biometric verifications by outcome.",
			}, []string{"outcome"},
		),
		lockouts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "lockouts_total",
				Help:      "The number of lockouts entered after repeated failures.",
			},
		),
		locks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "locks_total",
				Help:      "Transitions to the locked state by reason.",
			}, []string{"reason"},
		),
		decryptFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "decrypt_failures_total",
				Help:      "Payloads that failed authentication.",
			},
		),
		keysCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "keys_created_total",
				Help:      "Encryption keys generated and persisted.",
			},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.verifications.Describe(ch)
	c.lockouts.Describe(ch)
	c.locks.Describe(ch)
	c.decryptFailures.Describe(ch)
	c.keysCreated.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.verifications.Collect(ch)
	c.lockouts.Collect(ch)
	c.locks.Collect(ch)
	c.decryptFailures.Collect(ch)
	c.keysCreated.Collect(ch)
}

// recordEvent maps an audit event onto the counters. A nil Collector is a no-op.
func (c *Collector) recordEvent(event AuditEvent, attrs []slog.Attr) {
	if c == nil {
		return
	}
	switch event {
	case AuditVerifySuccess:
		c.verifications.WithLabelValues("success").Inc()
	case AuditVerifyFailure:
		c.verifications.WithLabelValues("failure").Inc()
	case AuditVerifyLockedOut:
		c.verifications.WithLabelValues("locked_out").Inc()
	case AuditBiometricAccepted:
		c.verifications.WithLabelValues("biometric").Inc()
	case AuditLockoutStarted:
		c.lockouts.Inc()
	case AuditLocked:
		c.locks.WithLabelValues(attrValue(attrs, "reason")).Inc()
	case AuditDecryptFailed:
		c.decryptFailures.Inc()
	case AuditKeyCreated:
		c.keysCreated.Inc()
	}
}

func attrValue(attrs []slog.Attr, key string) string {
	for _, a := range attrs {
		if a.Key == key {
			return a.Value.String()
		}
	}
	return "unknown"
}
