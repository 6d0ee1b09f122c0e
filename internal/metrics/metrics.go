// Package metrics exposes prediction counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Skufu/GlucoRisk/internal/predictor"
)

// Metrics implements predictor.Observer.
type Metrics struct {
	registry    *prometheus.Registry
	predictions *prometheus.CounterVec
	probability prometheus.Histogram
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		predictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "glucorisk_predictions_total",
			Help: "Predictions served, by mode, source and risk tier.",
		}, []string{"mode", "source", "tier"}),
		probability: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "glucorisk_prediction_probability",
			Help:    "Distribution of predicted diabetes probability (percent).",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
	}
	reg.MustRegister(m.predictions, m.probability)
	return m
}

func (m *Metrics) Observe(r predictor.Result) {
	m.predictions.WithLabelValues(string(r.Mode), string(r.Source), r.Tier.String()).Inc()
	m.probability.Observe(r.Probability)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
