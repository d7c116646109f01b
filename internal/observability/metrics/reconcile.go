package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/lot-photo-reconciler/internal/core/domain"
)

// ReconcileMetrics records engine outcomes. It satisfies
// ports.ReconcileObserver.
type ReconcileMetrics struct {
	service string

	embeddingCalls *prometheus.CounterVec
	scansTotal     *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	assigned       *prometheus.HistogramVec
	orphans        *prometheus.HistogramVec
	corrections    *prometheus.CounterVec
	reassignments  *prometheus.CounterVec
}

func NewReconcileMetrics(service string, reg prometheus.Registerer) *ReconcileMetrics {
	embeddingCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "requests_total",
			Help:      "Embedding provider calls by kind and status.",
		},
		[]string{"service", "kind", "status"},
	)
	scansTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "runs_total",
			Help:      "Completed reconciliations by scoring mode.",
		},
		[]string{"service", "mode"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "duration_seconds",
			Help:      "Reconciliation duration in seconds by scoring mode.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"service", "mode"},
	)
	imageBuckets := []float64{0, 1, 2, 4, 8, 16, 32, 64, 128}
	assigned := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "assigned_images",
			Help:      "Images placed in a group per reconciliation.",
			Buckets:   imageBuckets,
		},
		[]string{"service"},
	)
	orphans := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "orphan_images",
			Help:      "Images left for manual review per reconciliation.",
			Buckets:   imageBuckets,
		},
		[]string{"service"},
	)
	corrections := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "role_corrections_total",
			Help:      "Cross-check role corrections applied.",
		},
		[]string{"service"},
	)
	reassignments := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "orphan_reassignments_total",
			Help:      "Orphans placed by the relaxed second pass.",
		},
		[]string{"service"},
	)

	reg.MustRegister(embeddingCalls, scansTotal, duration, assigned, orphans, corrections, reassignments)

	return &ReconcileMetrics{
		service:        service,
		embeddingCalls: embeddingCalls,
		scansTotal:     scansTotal,
		duration:       duration,
		assigned:       assigned,
		orphans:        orphans,
		corrections:    corrections,
		reassignments:  reassignments,
	}
}

func (m *ReconcileMetrics) ObserveEmbedding(kind string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.embeddingCalls.WithLabelValues(m.service, kind, status).Inc()
}

func (m *ReconcileMetrics) ObserveReconcile(mode domain.ScoringMode, duration time.Duration, assigned, orphans, corrections, reassignments int) {
	m.scansTotal.WithLabelValues(m.service, string(mode)).Inc()
	m.duration.WithLabelValues(m.service, string(mode)).Observe(duration.Seconds())
	m.assigned.WithLabelValues(m.service).Observe(float64(assigned))
	m.orphans.WithLabelValues(m.service).Observe(float64(orphans))
	m.corrections.WithLabelValues(m.service).Add(float64(corrections))
	m.reassignments.WithLabelValues(m.service).Add(float64(reassignments))
}
