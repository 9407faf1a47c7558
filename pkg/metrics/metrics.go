// Package metrics provides Prometheus metrics for the gofsh server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transfer directions.
const (
	Upload   = "upload"
	Download = "download"
)

// Command results.
const (
	ResultOK  = "ok"
	ResultErr = "error"
)

var (
	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gofsh_sessions_active",
			Help: "Number of connected sessions",
		},
	)

	sessionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gofsh_sessions_total",
			Help: "Total number of accepted sessions",
		},
	)

	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gofsh_commands_total",
			Help: "Total number of commands executed",
		},
		[]string{"verb", "result"},
	)

	commandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gofsh_command_duration_seconds",
			Help:    "Command execution time in seconds, transfers included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"verb"},
	)

	transferBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gofsh_transfer_bytes_total",
			Help: "Total payload bytes moved over the transfer channel",
		},
		[]string{"direction"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SessionOpened records an accepted session.
func SessionOpened() {
	sessionsTotal.Inc()
	sessionsActive.Inc()
}

// SessionClosed records a finished session.
func SessionClosed() {
	sessionsActive.Dec()
}

// RecordCommand records one executed command.
func RecordCommand(verb string, ok bool, duration time.Duration) {
	result := ResultOK
	if !ok {
		result = ResultErr
	}
	commandsTotal.WithLabelValues(verb, result).Inc()
	commandDuration.WithLabelValues(verb).Observe(duration.Seconds())
}

// RecordTransfer records payload bytes in the given direction.
func RecordTransfer(direction string, bytes int64) {
	if bytes > 0 {
		transferBytes.WithLabelValues(direction).Add(float64(bytes))
	}
}
