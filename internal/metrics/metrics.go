// Package metrics exposes dictionary load metrics to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Load outcomes used as the status label.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds the collectors for one registry.
type Metrics struct {
	// LoadsTotal counts dictionary loads by dictionary, path (local or remote) and status.
	LoadsTotal *prometheus.CounterVec
	// LoadDuration is the time taken by a full load, including the swap.
	LoadDuration *prometheus.HistogramVec
	// RowsLoaded is the number of rows in the last successful snapshot.
	RowsLoaded *prometheus.GaugeVec
	// LastSuccess is the unix time of the last successful load.
	LastSuccess *prometheus.GaugeVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		LoadsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leapdict_loads_total",
				Help: "Total number of dictionary loads",
			},
			[]string{"dictionary", "path", "status"},
		),
		LoadDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leapdict_load_duration_seconds",
				Help:    "Dictionary load latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"dictionary"},
		),
		RowsLoaded: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "leapdict_rows",
				Help: "Number of rows in the current dictionary snapshot",
			},
			[]string{"dictionary"},
		),
		LastSuccess: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "leapdict_last_success_timestamp_seconds",
				Help: "Unix time of the last successful dictionary load",
			},
			[]string{"dictionary"},
		),
	}
}

// ObserveLoad records one load attempt. A nil receiver is a no-op.
func (m *Metrics) ObserveLoad(dictionary, path string, rows int, took time.Duration, err error) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.LoadsTotal.WithLabelValues(dictionary, path, status).Inc()
	m.LoadDuration.WithLabelValues(dictionary).Observe(took.Seconds())
	if err == nil {
		m.RowsLoaded.WithLabelValues(dictionary).Set(float64(rows))
		m.LastSuccess.WithLabelValues(dictionary).SetToCurrentTime()
	}
}

// Handler returns the HTTP handler for /metrics.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
