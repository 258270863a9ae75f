// Package metrics exposes Prometheus instrumentation for the streaming
// pipeline. Counters are registered on a dedicated registry so library
// consumers can mount them wherever they serve /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the registry all client metrics are registered on.
var Registry = prometheus.NewRegistry()

var (
	// FramesDecoded counts well-formed SSE frames handed to the interpreter.
	FramesDecoded = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: "lucent",
		Subsystem: "deepsearch",
		Name:      "frames_decoded_total",
		Help:      "Well-formed SSE frames decoded from research streams.",
	})

	// FramesMalformed counts frames skipped because their JSON payload
	// failed to parse. These are non-fatal.
	FramesMalformed = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: "lucent",
		Subsystem: "deepsearch",
		Name:      "frames_malformed_total",
		Help:      "SSE frames skipped due to malformed JSON payloads.",
	})

	// FramesUnknownType counts frames quarantined because their type tag
	// is outside the supported event set.
	FramesUnknownType = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: "lucent",
		Subsystem: "deepsearch",
		Name:      "frames_unknown_type_total",
		Help:      "SSE frames quarantined due to an unknown event type tag.",
	})

	// SessionsStarted counts deep-research sessions opened.
	SessionsStarted = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: "lucent",
		Subsystem: "deepsearch",
		Name:      "sessions_started_total",
		Help:      "Deep-research sessions started.",
	})

	// SessionsCompleted counts sessions that reached the complete state.
	SessionsCompleted = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: "lucent",
		Subsystem: "deepsearch",
		Name:      "sessions_completed_total",
		Help:      "Deep-research sessions that completed and reconciled.",
	})

	// SessionsFailed counts sessions that ended in a transport or
	// mid-stream error.
	SessionsFailed = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: "lucent",
		Subsystem: "deepsearch",
		Name:      "sessions_failed_total",
		Help:      "Deep-research sessions terminated by an error.",
	})

	// ReloadFailures counts authoritative reloads that failed after a
	// completed stream. The session still ends; local state is kept.
	ReloadFailures = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: "lucent",
		Subsystem: "deepsearch",
		Name:      "reload_failures_total",
		Help:      "Post-completion chat reloads that failed.",
	})

	// ActiveSessions tracks currently active deep-research sessions.
	ActiveSessions = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Namespace: "lucent",
		Subsystem: "deepsearch",
		Name:      "active_sessions",
		Help:      "Deep-research sessions currently active.",
	})
)
