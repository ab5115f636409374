// Package metrics exposes prometheus collectors for the mutation engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "impactline",
		Name:      "mutations_total",
		Help:      "Accepted mutations by entity and action.",
	}, []string{"entity", "action"})

	mutationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "impactline",
		Name:      "mutation_duration_seconds",
		Help:      "Time spent applying a mutation intent.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"entity", "intent"})

	validationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "impactline",
		Name:      "validation_failures_total",
		Help:      "Mutations rejected by the ontology.",
	}, []string{"entity"})

	auditWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "impactline",
		Name:      "audit_write_failures_total",
		Help:      "Audit appends that failed and were propagated.",
	})

	auditReadFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "impactline",
		Name:      "audit_read_failures_total",
		Help:      "Audit reads that failed and returned an empty result.",
	}, []string{"projection"})

	objectivesAutoCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "impactline",
		Name:      "objectives_auto_created_total",
		Help:      "Objective stubs created for unknown references.",
	})
)

func Mutation(entity, action string) {
	mutationsTotal.WithLabelValues(entity, action).Inc()
}

func ObserveIntent(entity, intent string, started time.Time) {
	mutationDuration.WithLabelValues(entity, intent).Observe(time.Since(started).Seconds())
}

func ValidationFailure(entity string) {
	validationFailures.WithLabelValues(entity).Inc()
}

func AuditWriteFailure() { auditWriteFailures.Inc() }

func AuditReadFailure(projection string) {
	auditReadFailures.WithLabelValues(projection).Inc()
}

func ObjectiveAutoCreated() { objectivesAutoCreated.Inc() }
