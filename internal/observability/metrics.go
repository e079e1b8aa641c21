package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cadview",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cadview",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
	sceneUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cadview",
			Subsystem: "scene",
			Name:      "updates_total",
			Help:      "Scene updates by outcome.",
		},
		[]string{"source", "outcome"},
	)
	sceneUpdateDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cadview",
			Subsystem: "scene",
			Name:      "update_duration_seconds",
			Help:      "Scene update duration in seconds, parse through render.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source", "outcome"},
	)
	fieldErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cadview",
			Subsystem: "scene",
			Name:      "field_errors_total",
			Help:      "Buffer decode and reference errors absorbed during updates.",
		},
		[]string{"kind"},
	)
	frameBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cadview",
			Subsystem: "transport",
			Name:      "frame_bytes",
			Help:      "Size of runtime frames received, by transport.",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 10),
		},
		[]string{"transport"},
	)
	runtimeMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cadview",
			Subsystem: "runtime",
			Name:      "messages_total",
			Help:      "Runtime output messages by kind and whether they were dispatched.",
		},
		[]string{"kind", "dispatched"},
	)
)

// Update outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeParseError  = "parse_error"
	OutcomeRenderError = "render_error"
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			sceneUpdates, sceneUpdateDuration,
			fieldErrors, runtimeMessages, frameBytes,
		)
	})
}

func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(method, path, statusLabel).Observe(duration.Seconds())
}

func RecordSceneUpdate(source, outcome string, duration time.Duration) {
	RegisterMetrics()
	sceneUpdates.WithLabelValues(source, outcome).Inc()
	sceneUpdateDuration.WithLabelValues(source, outcome).Observe(duration.Seconds())
}

func RecordFieldErrors(buffer, reference int) {
	RegisterMetrics()
	if buffer > 0 {
		fieldErrors.WithLabelValues("buffer").Add(float64(buffer))
	}
	if reference > 0 {
		fieldErrors.WithLabelValues("reference").Add(float64(reference))
	}
}

func RecordRuntimeMessage(kind string, dispatched bool) {
	RegisterMetrics()
	runtimeMessages.WithLabelValues(kind, strconv.FormatBool(dispatched)).Inc()
}

func RecordFrame(transport string, size int) {
	RegisterMetrics()
	frameBytes.WithLabelValues(transport).Observe(float64(size))
}
