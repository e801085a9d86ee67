package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the server
type Metrics struct {
	// Session metrics
	activeSessions        prometheus.Gauge
	authenticatedSessions prometheus.Gauge
	sessionsCreated       prometheus.Counter
	sessionsDisconnected  prometheus.Counter
	sessionTakeovers      prometheus.Counter

	// Frame metrics
	framesReceived *prometheus.CounterVec // by frame kind
	framesSent     *prometheus.CounterVec // by frame kind

	// Broadcast metrics
	globalBroadcasts prometheus.Counter
	broadcastFanout  prometheus.Histogram

	// Storage metrics
	storeErrors *prometheus.CounterVec // by operation
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		activeSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "messenger_active_sessions",
				Help: "Current number of connected sessions",
			},
		),
		authenticatedSessions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "messenger_authenticated_sessions",
				Help: "Current number of sessions bound to a user",
			},
		),
		sessionsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "messenger_sessions_created_total",
				Help: "Total number of sessions created",
			},
		),
		sessionsDisconnected: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "messenger_sessions_disconnected_total",
				Help: "Total number of sessions disconnected",
			},
		),
		sessionTakeovers: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "messenger_session_takeovers_total",
				Help: "Total number of logins that displaced an earlier session",
			},
		),
		framesReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messenger_frames_received_total",
				Help: "Total number of frames received from clients by kind",
			},
			[]string{"kind"},
		),
		framesSent: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messenger_frames_sent_total",
				Help: "Total number of frames sent to clients by kind",
			},
			[]string{"kind"},
		),
		globalBroadcasts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "messenger_global_broadcasts_total",
				Help: "Total number of global messages broadcast (unique messages, not deliveries)",
			},
		),
		broadcastFanout: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "messenger_broadcast_fanout",
				Help:    "Number of clients that received each broadcast message",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
		),
		storeErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "messenger_store_errors_total",
				Help: "Total number of persistence failures by operation",
			},
			[]string{"operation"},
		),
	}
}

// RecordActiveSessions updates the active session count
func (m *Metrics) RecordActiveSessions(count int) {
	m.activeSessions.Set(float64(count))
}

// RecordAuthenticatedSessions updates the authenticated session count
func (m *Metrics) RecordAuthenticatedSessions(count int) {
	m.authenticatedSessions.Set(float64(count))
}

// RecordSessionCreated increments the session creation counter
func (m *Metrics) RecordSessionCreated() {
	m.sessionsCreated.Inc()
}

// RecordSessionDisconnected increments the session disconnection counter
func (m *Metrics) RecordSessionDisconnected() {
	m.sessionsDisconnected.Inc()
}

// RecordSessionTakeover increments the takeover counter
func (m *Metrics) RecordSessionTakeover() {
	m.sessionTakeovers.Inc()
}

// RecordFrameReceived increments the received counter for a frame kind
func (m *Metrics) RecordFrameReceived(kind string) {
	m.framesReceived.WithLabelValues(kind).Inc()
}

// RecordFrameSent increments the sent counter for a frame kind
func (m *Metrics) RecordFrameSent(kind string) {
	m.framesSent.WithLabelValues(kind).Inc()
}

// RecordGlobalBroadcast records one global message and its fanout
func (m *Metrics) RecordGlobalBroadcast(recipientCount int) {
	m.globalBroadcasts.Inc()
	m.broadcastFanout.Observe(float64(recipientCount))
}

// RecordStoreError increments the persistence failure counter for an operation
func (m *Metrics) RecordStoreError(operation string) {
	m.storeErrors.WithLabelValues(operation).Inc()
}
