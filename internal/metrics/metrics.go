// Package metrics records transfer, handshake and journal activity in
// Prometheus and serves it over HTTP.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/twrkit/pkg/transfer"
)

// Metrics holds all Prometheus metrics for twrkit.
type Metrics struct {
	TransfersTotal    *prometheus.CounterVec
	TransferDuration  *prometheus.HistogramVec
	TransfersInFlight prometheus.Gauge
	BytesUploaded     prometheus.Counter
	BytesDownloaded   prometheus.Counter
	HandshakeSteps    *prometheus.CounterVec
	SharesTotal       *prometheus.CounterVec
	CommentsCollected prometheus.Counter
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TransfersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "twrkit",
				Name:      "transfers_total",
				Help:      "Finished transfers by method, host and status",
			},
			[]string{"method", "host", "status"},
		),
		TransferDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "twrkit",
				Name:      "transfer_duration_seconds",
				Help:      "Transfer latency histogram",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
			},
			[]string{"method", "host"},
		),
		TransfersInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "twrkit",
				Name:      "transfers_in_flight",
				Help:      "Transfers started and not yet finished",
			},
		),
		BytesUploaded: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "twrkit",
				Name:      "uploaded_bytes_total",
				Help:      "Request body bytes sent",
			},
		),
		BytesDownloaded: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "twrkit",
				Name:      "downloaded_bytes_total",
				Help:      "Response body bytes received",
			},
		),
		HandshakeSteps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "twrkit",
				Name:      "handshake_steps_total",
				Help:      "OAuth handshake steps by step and outcome",
			},
			[]string{"step", "outcome"},
		),
		SharesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "twrkit",
				Name:      "journal_shares_total",
				Help:      "Journal entries shared by outcome",
			},
			[]string{"outcome"},
		),
		CommentsCollected: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "twrkit",
				Name:      "journal_comments_total",
				Help:      "Replies stored as journal comments",
			},
		),
	}
}

// TransferStarted implements transfer.Observer.
func (m *Metrics) TransferStarted(method string) {
	m.TransfersInFlight.Inc()
}

// TransferFinished implements transfer.Observer.
func (m *Metrics) TransferFinished(method, host string, statusCode int, err error, duration time.Duration, bytesUp, bytesDown int64) {
	m.TransfersInFlight.Dec()
	m.TransfersTotal.WithLabelValues(method, host, statusLabel(statusCode, err)).Inc()
	m.TransferDuration.WithLabelValues(method, host).Observe(duration.Seconds())
	if bytesUp > 0 {
		m.BytesUploaded.Add(float64(bytesUp))
	}
	if bytesDown > 0 {
		m.BytesDownloaded.Add(float64(bytesDown))
	}
}

// HandshakeStep implements handshake.Observer.
func (m *Metrics) HandshakeStep(step string, err error) {
	m.HandshakeSteps.WithLabelValues(step, outcome(err)).Inc()
}

// ShareFinished implements journal.Observer.
func (m *Metrics) ShareFinished(err error) {
	m.SharesTotal.WithLabelValues(outcome(err)).Inc()
}

// CommentsAdded implements journal.Observer.
func (m *Metrics) CommentsAdded(n int) {
	if n > 0 {
		m.CommentsCollected.Add(float64(n))
	}
}

func statusLabel(statusCode int, err error) string {
	if transfer.IsTransport(err) || statusCode == 0 {
		return "transport_error"
	}
	return strconv.Itoa(statusCode)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
