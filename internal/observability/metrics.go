package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Session metrics
	activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dictation_gateway_active_sessions",
		Help: "Number of active dictation sessions",
	})

	totalSessions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dictation_gateway_sessions_total",
		Help: "Total number of dictation sessions by mode",
	}, []string{"mode"}) // mode: "streaming" or "batch"

	sessionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dictation_gateway_session_duration_seconds",
		Help:    "Duration of dictation sessions in seconds",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	fallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dictation_gateway_fallbacks_total",
		Help: "Total number of sessions degraded to the batch path",
	}, []string{"trigger"}) // trigger: "dial", "init", or "transport"

	finalizeTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dictation_gateway_finalize_timeouts_total",
		Help: "Sessions whose result was synthesized after the finalize timeout",
	})

	// STT metrics
	sttRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dictation_gateway_stt_requests_total",
		Help: "Total number of STT requests",
	}, []string{"status"})

	sttLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dictation_gateway_stt_latency_seconds",
		Help:    "STT processing latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// Note drafting metrics
	noteGenRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dictation_gateway_notegen_requests_total",
		Help: "Total number of note drafting requests",
	}, []string{"status"})

	noteGenLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dictation_gateway_notegen_latency_seconds",
		Help:    "Note drafting latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0},
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dictation_gateway_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dictation_gateway_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dictation_gateway_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})

	// Audio metrics
	audioBytesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dictation_gateway_audio_bytes_total",
		Help: "Total audio bytes processed",
	}, []string{"direction"}) // direction: "in" or "out"

	framesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dictation_gateway_frames_dropped_total",
		Help: "Audio frames dropped because the transport was not ready",
	})
)

// SessionMetrics tracks metrics for a single dictation session
type SessionMetrics struct {
	sessionID        string
	startTime        time.Time
	sttStartTime     time.Time
	noteGenStartTime time.Time
	mu               sync.Mutex
}

// NewSessionMetrics creates a new metrics tracker for a session
func NewSessionMetrics(sessionID string) *SessionMetrics {
	return &SessionMetrics{
		sessionID: sessionID,
		startTime: time.Now(),
	}
}

// RecordSessionStart records the start of a session
func (m *SessionMetrics) RecordSessionStart(mode string) {
	activeSessions.Inc()
	totalSessions.WithLabelValues(mode).Inc()
}

// RecordSessionEnd records the end of a session
func (m *SessionMetrics) RecordSessionEnd() {
	activeSessions.Dec()
	sessionDuration.Observe(time.Since(m.startTime).Seconds())
}

// RecordFallback records a degradation to the batch path
func (m *SessionMetrics) RecordFallback(trigger string) {
	fallbacksTotal.WithLabelValues(trigger).Inc()
}

// RecordFinalizeTimeout records a result synthesized without a final message
func (m *SessionMetrics) RecordFinalizeTimeout() {
	finalizeTimeouts.Inc()
}

// RecordSTTStart records the start of STT processing
func (m *SessionMetrics) RecordSTTStart() {
	m.mu.Lock()
	m.sttStartTime = time.Now()
	m.mu.Unlock()
}

// RecordSTTEnd records the end of STT processing
func (m *SessionMetrics) RecordSTTEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.sttStartTime.IsZero() {
		sttLatency.Observe(time.Since(m.sttStartTime).Seconds())
	}

	status := "success"
	if !success {
		status = "error"
	}
	sttRequests.WithLabelValues(status).Inc()
}

// RecordNoteGenStart records the start of a note drafting request
func (m *SessionMetrics) RecordNoteGenStart() {
	m.mu.Lock()
	m.noteGenStartTime = time.Now()
	m.mu.Unlock()
}

// RecordNoteGenEnd records the end of a note drafting request
func (m *SessionMetrics) RecordNoteGenEnd(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.noteGenStartTime.IsZero() {
		noteGenLatency.Observe(time.Since(m.noteGenStartTime).Seconds())
	}

	status := "success"
	if !success {
		status = "error"
	}
	noteGenRequests.WithLabelValues(status).Inc()
}

// RecordError records an error
func (m *SessionMetrics) RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordAudioBytes records audio bytes processed
func (m *SessionMetrics) RecordAudioBytes(direction string, bytes int64) {
	audioBytesProcessed.WithLabelValues(direction).Add(float64(bytes))
}

// RecordFrameDropped records an audio frame dropped while the transport was not ready
func (m *SessionMetrics) RecordFrameDropped() {
	framesDropped.Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
