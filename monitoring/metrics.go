// Package monitoring exposes Prometheus metrics for the matching and
// settlement core. Collectors are registered once at package load via
// promauto and served on the default registry.
package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	settlements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlements_total",
			Help: "Settlement attempts by outcome",
		},
		[]string{"outcome"},
	)

	matchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "match_attempts_total",
			Help: "Matching attempts by direction and outcome",
		},
		[]string{"direction", "outcome"},
	)

	sweepProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_processed_total",
			Help: "Records processed per sweep run",
		},
		[]string{"sweep"},
	)

	gatewayCalls = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_call_duration_seconds",
			Help:    "Payment gateway call latency",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"operation", "status"},
	)

	disputesOpened = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "disputes_opened_total",
			Help: "Disputes opened by reason",
		},
		[]string{"reason"},
	)
)

// Settlement outcomes.
const (
	OutcomeCommitted      = "committed"
	OutcomeConflict       = "conflict"
	OutcomeGatewayError   = "gateway_error"
	OutcomeReconciliation = "reconciliation"
	OutcomeRejected       = "rejected"
)

func TrackSettlement(outcome string) {
	settlements.WithLabelValues(outcome).Inc()
}

// TrackMatchAttempt records one selector invocation. Direction is
// "forward" or "reverse"; outcome is "matched", "no_candidate" or
// "failed".
func TrackMatchAttempt(direction, outcome string) {
	matchAttempts.WithLabelValues(direction, outcome).Inc()
}

func TrackSweep(sweep string, processed int) {
	sweepProcessed.WithLabelValues(sweep).Add(float64(processed))
}

func ObserveGatewayCall(operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	gatewayCalls.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}

func TrackDisputeOpened(reason string) {
	disputesOpened.WithLabelValues(reason).Inc()
}
