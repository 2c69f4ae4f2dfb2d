package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Capture outcomes used as metric labels
const (
	OutcomeClip          = "clip"
	OutcomeNoSpeech      = "no_speech"
	OutcomeNoValidSpeech = "no_valid_speech"
	OutcomeAborted       = "aborted"
	OutcomeDeviceFailure = "device_failure"
	OutcomeError         = "error"
)

var (
	// Capture metrics
	activeCaptures = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voice_capture_active_captures",
		Help: "Number of captures in progress",
	})

	capturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_capture_captures_total",
		Help: "Total number of captures by outcome",
	}, []string{"outcome"})

	captureLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_capture_capture_latency_seconds",
		Help:    "Wall-clock time from capture start to result",
		Buckets: []float64{0.5, 1, 2, 5, 10, 15, 30, 60},
	})

	clipDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_capture_clip_duration_seconds",
		Help:    "Duration of accepted clips in seconds",
		Buckets: []float64{0.5, 1, 2, 3, 5, 7.5, 10},
	})

	ceilingStops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_capture_ceiling_stops_total",
		Help: "Captures stopped by the recording ceiling",
	})

	// Audio metrics
	framesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_capture_frames_processed_total",
		Help: "Total audio frames classified",
	})

	framesLost = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voice_capture_frames_lost_total",
		Help: "Total audio frames dropped before classification",
	})

	// Transcription metrics
	transcriptionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_capture_transcription_requests_total",
		Help: "Total number of transcription requests",
	}, []string{"status"})

	transcriptionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voice_capture_transcription_latency_seconds",
		Help:    "Transcription latency in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0},
	})

	// Error metrics
	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_capture_errors_total",
		Help: "Total number of errors",
	}, []string{"type", "component"})

	// Circuit breaker metrics
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "voice_capture_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	}, []string{"service"})

	circuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voice_capture_circuit_breaker_failures_total",
		Help: "Total circuit breaker failures",
	}, []string{"service"})
)

// CaptureMetrics tracks metrics for a single capture call.
// It is owned by the capture loop and not safe for concurrent use.
type CaptureMetrics struct {
	captureID string
	startTime time.Time
	frames    int64
	lost      int64
}

// NewCaptureMetrics creates a new metrics tracker for a capture
func NewCaptureMetrics(captureID string) *CaptureMetrics {
	return &CaptureMetrics{
		captureID: captureID,
		startTime: time.Now(),
	}
}

// RecordCaptureStart records the start of a capture
func (m *CaptureMetrics) RecordCaptureStart() {
	activeCaptures.Inc()
}

// RecordFrame records one classified frame and the frames dropped before it
func (m *CaptureMetrics) RecordFrame(lost int) {
	m.frames++
	framesProcessed.Inc()
	if lost > 0 {
		m.lost += int64(lost)
		framesLost.Add(float64(lost))
	}
}

// ReconcileLost raises the lost count to the source's own total and returns the
// frames no delivered frame had reported
func (m *CaptureMetrics) ReconcileLost(total int64) int64 {
	unseen := total - m.lost
	if unseen <= 0 {
		return 0
	}
	m.lost = total
	framesLost.Add(float64(unseen))
	return unseen
}

// RecordCeilingStop records a capture stopped by the recording ceiling
func (m *CaptureMetrics) RecordCeilingStop() {
	ceilingStops.Inc()
}

// RecordCaptureEnd records the outcome of a capture. clip is zero unless a clip was accepted.
func (m *CaptureMetrics) RecordCaptureEnd(outcome string, clip time.Duration) {
	activeCaptures.Dec()
	capturesTotal.WithLabelValues(outcome).Inc()
	captureLatency.Observe(time.Since(m.startTime).Seconds())
	if clip > 0 {
		clipDuration.Observe(clip.Seconds())
	}
}

// Frames returns the number of frames recorded
func (m *CaptureMetrics) Frames() int64 {
	return m.frames
}

// Lost returns the number of lost frames recorded
func (m *CaptureMetrics) Lost() int64 {
	return m.lost
}

// Elapsed returns the time since the capture started
func (m *CaptureMetrics) Elapsed() time.Duration {
	return time.Since(m.startTime)
}

// RecordTranscription records a finished transcription request
func RecordTranscription(success bool, latency time.Duration) {
	transcriptionLatency.Observe(latency.Seconds())

	status := "success"
	if !success {
		status = "error"
	}
	transcriptionRequests.WithLabelValues(status).Inc()
}

// RecordError records an error
func RecordError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}

// UpdateCircuitBreakerState updates circuit breaker state metric
func UpdateCircuitBreakerState(service string, state int) {
	circuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// IncrementCircuitBreakerFailures increments circuit breaker failure counter
func IncrementCircuitBreakerFailures(service string) {
	circuitBreakerFailures.WithLabelValues(service).Inc()
}
