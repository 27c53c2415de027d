// Package metrics provides Prometheus instruments for the kiosk pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics of the kiosk. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Cycles          prometheus.Counter
	Detections      *prometheus.CounterVec
	Matches         *prometheus.CounterVec
	Liveness        *prometheus.CounterVec
	Phase           *prometheus.GaugeVec
	Resets          *prometheus.CounterVec
	Punches         *prometheus.CounterVec
	FrameErrors     prometheus.Counter
	VisionLatency   *prometheus.HistogramVec
	GalleryEntries  prometheus.Gauge
	GalleryReloads  *prometheus.CounterVec
	StatusListeners prometheus.Gauge
}

// New creates a registry with the kiosk metrics plus the Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Cycles: factory.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_cycles_total",
			Help: "Total number of processed frame cycles",
		}),

		Detections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_detections_total",
			Help: "Sampled detection cycles by result",
		}, []string{"result"}), // result: "found", "missed", "error"

		Matches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_matches_total",
			Help: "Identity match attempts by reason",
		}, []string{"reason"}),

		Liveness: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_liveness_checks_total",
			Help: "Liveness evaluations by result",
		}, []string{"result"}), // result: "pass", "exempt", "disabled", "pending"

		Phase: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kiosk_phase",
			Help: "Current session phase (1 for the active phase)",
		}, []string{"phase"}),

		Resets: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_resets_total",
			Help: "Session resets by cause",
		}, []string{"cause"}),

		Punches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_punches_total",
			Help: "Punch actions by recorded status",
		}, []string{"status"}),

		FrameErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_frame_errors_total",
			Help: "Cycles skipped because no frame was available",
		}),

		VisionLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kiosk_vision_request_duration_seconds",
			Help:    "Duration of vision sidecar calls by operation",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"op"}), // op: "locate", "encode", "landmarks"

		GalleryEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kiosk_gallery_entries",
			Help: "Number of identities in the active gallery snapshot",
		}),

		GalleryReloads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_gallery_reloads_total",
			Help: "Gallery reloads by result",
		}, []string{"result"}),

		StatusListeners: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kiosk_status_listeners",
			Help: "Connected status event streams",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// IncrementCycles counts a processed frame cycle.
func (m *Metrics) IncrementCycles() {
	if m != nil {
		m.Cycles.Inc()
	}
}

// IncrementDetection records the result of a sampled detection cycle.
func (m *Metrics) IncrementDetection(result string) {
	if m != nil {
		m.Detections.WithLabelValues(result).Inc()
	}
}

// IncrementMatch records a match attempt.
func (m *Metrics) IncrementMatch(reason string) {
	if m != nil {
		m.Matches.WithLabelValues(reason).Inc()
	}
}

// IncrementLiveness records a liveness evaluation.
func (m *Metrics) IncrementLiveness(result string) {
	if m != nil {
		m.Liveness.WithLabelValues(result).Inc()
	}
}

// SetPhase marks phase as the active one among phases.
func (m *Metrics) SetPhase(phase string, phases []string) {
	if m == nil {
		return
	}
	for _, p := range phases {
		v := 0.0
		if p == phase {
			v = 1
		}
		m.Phase.WithLabelValues(p).Set(v)
	}
}

// IncrementReset records a session reset.
func (m *Metrics) IncrementReset(cause string) {
	if m != nil {
		m.Resets.WithLabelValues(cause).Inc()
	}
}

// IncrementPunch records a punch outcome.
func (m *Metrics) IncrementPunch(status string) {
	if m != nil {
		m.Punches.WithLabelValues(status).Inc()
	}
}

// IncrementFrameErrors counts a cycle without a frame.
func (m *Metrics) IncrementFrameErrors() {
	if m != nil {
		m.FrameErrors.Inc()
	}
}

// ObserveVision records the duration of a vision sidecar call.
func (m *Metrics) ObserveVision(op string, d time.Duration) {
	if m != nil {
		m.VisionLatency.WithLabelValues(op).Observe(d.Seconds())
	}
}

// ObserveGalleryReload records a reload attempt and the resulting gallery size.
func (m *Metrics) ObserveGalleryReload(entries int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.GalleryReloads.WithLabelValues("error").Inc()
		return
	}
	m.GalleryReloads.WithLabelValues("ok").Inc()
	m.GalleryEntries.Set(float64(entries))
}

// AddStatusListener adjusts the connected status stream gauge.
func (m *Metrics) AddStatusListener(delta int) {
	if m != nil {
		m.StatusListeners.Add(float64(delta))
	}
}
