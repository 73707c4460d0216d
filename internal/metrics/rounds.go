package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rps_rounds_total",
			Help: "Rounds played, by result from the player's side",
		},
		[]string{"result"},
	)

	resetsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rps_session_resets_total",
			Help: "Session resets",
		},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rps_operation_duration_ms",
			Help:    "Round service operation duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		},
		[]string{"operation", "status"},
	)
)

func RecordRound(result string) {
	roundsTotal.WithLabelValues(result).Inc()
}

func RecordReset() {
	resetsTotal.Inc()
}

// ObserveOperation records how long op took; status is "ok" or "error".
func ObserveOperation(op string, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	operationDuration.WithLabelValues(op, status).Observe(float64(time.Since(started).Microseconds()) / 1000)
}
