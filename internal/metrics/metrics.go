// Package metrics exposes the session's prometheus counters. All methods
// are safe on a nil *Metrics so components can run without a registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "markerplace"

// Metrics holds the counters for one process.
type Metrics struct {
	registry *prometheus.Registry

	framesProcessed   prometheus.Counter
	framesDropped     prometheus.Counter
	recognitionErrors *prometheus.CounterVec
	markersResolved   *prometheus.CounterVec
	placements        *prometheus.CounterVec
	placementErrors   prometheus.Counter
	transitions       *prometheus.CounterVec
	anchorEvents      *prometheus.CounterVec
	placedObjects     prometheus.Gauge
	trackedAnchors    prometheus.Gauge
}

// New creates Metrics on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		framesProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_processed_total",
			Help:      "Camera frames handled by the session event loop.",
		}),
		framesDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_ignored_total",
			Help:      "Frames ignored because the session was interrupted or failed.",
		}),
		recognitionErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_errors_total",
			Help:      "Frames skipped because marker recognition failed.",
		}, []string{"kind"}),
		markersResolved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "markers_resolved_total",
			Help:      "Markers resolved onto a plane, by payload.",
		}, []string{"payload"}),
		placements: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "placements_total",
			Help:      "Objects placed, by source and model.",
		}, []string{"source", "model"}),
		placementErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "placement_errors_total",
			Help:      "Placements skipped because the model could not be loaded or attached.",
		}),
		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Session phase transitions, by destination phase.",
		}, []string{"phase"}),
		anchorEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "anchor_events_total",
			Help:      "Anchor events from the tracking runtime, by event and kind.",
		}, []string{"event", "kind"}),
		placedObjects: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "placed_objects",
			Help:      "Objects currently placed in the scene.",
		}),
		trackedAnchors: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_anchors",
			Help:      "Anchors currently in the registry.",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) FrameProcessed() {
	if m != nil {
		m.framesProcessed.Inc()
	}
}

func (m *Metrics) FrameIgnored() {
	if m != nil {
		m.framesDropped.Inc()
	}
}

// RecognitionError counts a skipped frame. kind is "unexpected_result" or
// "recognizer".
func (m *Metrics) RecognitionError(kind string) {
	if m != nil {
		m.recognitionErrors.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) MarkerResolved(payload string) {
	if m != nil {
		m.markersResolved.WithLabelValues(payload).Inc()
	}
}

func (m *Metrics) Placed(source, model string) {
	if m != nil {
		m.placements.WithLabelValues(source, model).Inc()
	}
}

func (m *Metrics) PlacementFailed() {
	if m != nil {
		m.placementErrors.Inc()
	}
}

func (m *Metrics) Transition(phase string) {
	if m != nil {
		m.transitions.WithLabelValues(phase).Inc()
	}
}

func (m *Metrics) AnchorEvent(event, kind string) {
	if m != nil {
		m.anchorEvents.WithLabelValues(event, kind).Inc()
	}
}

// SetSceneSize records the current number of placed objects and tracked
// anchors.
func (m *Metrics) SetSceneSize(placed, anchors int) {
	if m != nil {
		m.placedObjects.Set(float64(placed))
		m.trackedAnchors.Set(float64(anchors))
	}
}
