package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the backend counters. Each instance owns its registry so
// tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	Registrations *prometheus.CounterVec
	Verifications *prometheus.CounterVec
	Uploads       *prometheus.CounterVec
	OCRDuration   prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_registrations_total",
			Help: "Registration submissions by outcome",
		}, []string{"outcome"}),
		Verifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_id_verifications_total",
			Help: "ID name checks by result",
		}, []string{"result"}),
		Uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_image_uploads_total",
			Help: "Single image uploads by outcome",
		}, []string{"outcome"}),
		OCRDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "intake_ocr_duration_seconds",
			Help:    "Latency of OCR provider calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 16},
		}),
	}
}

// Recording methods are no-ops on a nil *Metrics.

func (m *Metrics) Registration(outcome string) {
	if m != nil {
		m.Registrations.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) Verification(result string) {
	if m != nil {
		m.Verifications.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) Upload(outcome string) {
	if m != nil {
		m.Uploads.WithLabelValues(outcome).Inc()
	}
}

// ObserveOCR records one provider call latency.
func (m *Metrics) ObserveOCR(d time.Duration) {
	if m != nil {
		m.OCRDuration.Observe(d.Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
