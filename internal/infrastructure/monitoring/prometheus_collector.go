package monitoring

import (
	"time"

	"deskrelay/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Sessions
	authAttempts    *prometheus.CounterVec
	sessionsActive  *prometheus.GaugeVec
	sessionDuration *prometheus.HistogramVec
	bytesSent       *prometheus.CounterVec

	// Capture pipeline
	framesCaptured prometheus.Counter
	framesEncoded  prometheus.Counter
	framesDropped  *prometheus.CounterVec
	captureRetries prometheus.Counter
	framesSkipped  prometheus.Counter
	encodeDuration prometheus.Histogram
	frameBytes     prometheus.Gauge

	// Input
	controlEvents  *prometheus.CounterVec
	controlIgnored *prometheus.CounterVec
	injectErrors   prometheus.Counter

	// Relay
	relayDelivered prometheus.Counter
	relayDropped   prometheus.Counter
	relayPeers     prometheus.Gauge
}

// NewPrometheusCollector registers all metrics on reg. Pass
// prometheus.DefaultRegisterer to expose them through promhttp.Handler.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		authAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "deskrelay_auth_attempts_total",
			Help: "Authentication attempts by outcome",
		}, []string{"outcome"}),

		sessionsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "deskrelay_sessions_active",
			Help: "Authenticated sessions currently open",
		}, []string{"role"}),

		sessionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deskrelay_session_duration_seconds",
			Help:    "Lifetime of authenticated sessions",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"role"}),

		bytesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "deskrelay_bytes_sent_total",
			Help: "Payload bytes written to peers",
		}, []string{"role"}),

		framesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "deskrelay_frames_captured_total",
			Help: "Raw frames acquired from the display",
		}),

		framesEncoded: factory.NewCounter(prometheus.CounterOpts{
			Name: "deskrelay_frames_encoded_total",
			Help: "Frames compressed and published",
		}),

		framesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "deskrelay_frames_dropped_total",
			Help: "Frames dropped by the capture pipeline",
		}, []string{"reason"}),

		captureRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "deskrelay_capture_retries_total",
			Help: "Capture attempts that found no frame ready",
		}),

		framesSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "deskrelay_frames_skipped_total",
			Help: "Frames skipped by lagging subscribers",
		}),

		encodeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "deskrelay_frame_encode_duration_seconds",
			Help:    "Time spent repacking, scaling and compressing a frame",
			Buckets: []float64{0.001, 0.005, 0.01, 0.02, 0.033, 0.05, 0.1, 0.25},
		}),

		frameBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "deskrelay_frame_bytes",
			Help: "Size of the most recently encoded frame",
		}),

		controlEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "deskrelay_control_events_total",
			Help: "Control events dispatched to the injector",
		}, []string{"kind"}),

		controlIgnored: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "deskrelay_control_ignored_total",
			Help: "Control messages ignored",
		}, []string{"reason"}),

		injectErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "deskrelay_injection_errors_total",
			Help: "Errors returned by the input injector",
		}),

		relayDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "deskrelay_relay_delivered_total",
			Help: "Messages enqueued for relay peers",
		}),

		relayDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "deskrelay_relay_dropped_total",
			Help: "Messages dropped because a peer queue was full or closed",
		}),

		relayPeers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "deskrelay_relay_peers",
			Help: "Peers registered on the relay hub",
		}),
	}
}

func (p *PrometheusCollector) RecordAuth(success bool) {
	outcome := "rejected"
	if success {
		outcome = "accepted"
	}
	p.authAttempts.WithLabelValues(outcome).Inc()
}

func (p *PrometheusCollector) RecordSessionOpened(role domain.Role) {
	p.sessionsActive.WithLabelValues(string(role)).Inc()
}

func (p *PrometheusCollector) RecordSessionClosed(role domain.Role, duration time.Duration) {
	p.sessionsActive.WithLabelValues(string(role)).Dec()
	p.sessionDuration.WithLabelValues(string(role)).Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordBytesSent(role domain.Role, n int) {
	p.bytesSent.WithLabelValues(string(role)).Add(float64(n))
}

func (p *PrometheusCollector) RecordFrameCaptured() {
	p.framesCaptured.Inc()
}

func (p *PrometheusCollector) RecordFrameEncoded(size int, duration time.Duration) {
	p.framesEncoded.Inc()
	p.frameBytes.Set(float64(size))
	p.encodeDuration.Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordFrameDropped(reason string) {
	p.framesDropped.WithLabelValues(reason).Inc()
}

func (p *PrometheusCollector) RecordCaptureRetry() {
	p.captureRetries.Inc()
}

func (p *PrometheusCollector) RecordFramesSkipped(n int) {
	p.framesSkipped.Add(float64(n))
}

func (p *PrometheusCollector) RecordControlEvent(kind domain.EventKind) {
	p.controlEvents.WithLabelValues(kind.String()).Inc()
}

func (p *PrometheusCollector) RecordControlIgnored(reason string) {
	p.controlIgnored.WithLabelValues(reason).Inc()
}

func (p *PrometheusCollector) RecordInjectionError() {
	p.injectErrors.Inc()
}

func (p *PrometheusCollector) RecordRelayFanout(delivered, dropped int) {
	p.relayDelivered.Add(float64(delivered))
	p.relayDropped.Add(float64(dropped))
}

func (p *PrometheusCollector) SetRelayPeers(n int) {
	p.relayPeers.Set(float64(n))
}
