package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/raysh454/hunter/internal/model"
)

// Metrics mirrors the persisted counters and tracks in-flight work.
type Metrics struct {
	events        *prometheus.CounterVec
	inFlight      prometheus.Gauge
	assetDuration *prometheus.HistogramVec
	phase         *prometheus.GaugeVec
}

// NewMetrics registers the pipeline collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hunter",
			Subsystem: "pipeline",
			Name:      "events_total",
			Help:      "Pipeline events by counter name.",
		}, []string{"counter"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hunter",
			Subsystem: "pipeline",
			Name:      "assets_in_flight",
			Help:      "Assets currently being processed.",
		}),
		assetDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hunter",
			Subsystem: "pipeline",
			Name:      "asset_duration_seconds",
			Help:      "Time to process one asset, by outcome.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"outcome"}),
		phase: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "hunter",
			Subsystem: "pipeline",
			Name:      "phase",
			Help:      "1 for the driver's current phase.",
		}, []string{"phase"}),
	}
	reg.MustRegister(m.events, m.inFlight, m.assetDuration, m.phase)
	for _, name := range model.CounterNames {
		m.events.WithLabelValues(name)
	}
	m.setPhase(model.PhaseIdle)
	return m
}

func (m *Metrics) inc(counter string) {
	if m != nil {
		m.events.WithLabelValues(counter).Inc()
	}
}

func (m *Metrics) setPhase(p model.CyclePhase) {
	if m == nil {
		return
	}
	for _, ph := range []model.CyclePhase{model.PhaseIdle, model.PhaseDiscovering, model.PhaseScanning} {
		v := 0.0
		if ph == p {
			v = 1
		}
		m.phase.WithLabelValues(string(ph)).Set(v)
	}
}

func (m *Metrics) assetStarted() {
	if m != nil {
		m.inFlight.Inc()
	}
}

func (m *Metrics) assetFinished(outcome string, seconds float64) {
	if m != nil {
		m.inFlight.Dec()
		m.assetDuration.WithLabelValues(outcome).Observe(seconds)
	}
}
