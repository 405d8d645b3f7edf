package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var histogramBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60}

// Metrics holds the server's collectors on a private registry
type Metrics struct {
	Registry *prometheus.Registry

	deliveries    *prometheus.CounterVec
	commentWrites *prometheus.CounterVec
	duration      prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deplostatus",
			Name:      "webhook_deliveries_total",
			Help:      "Webhook deliveries by event and outcome",
		}, []string{"event", "outcome"}),
		commentWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "deplostatus",
			Name:      "comment_writes_total",
			Help:      "Comments created or updated on GitHub",
		}, []string{"operation"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "deplostatus",
			Name:      "delivery_duration_seconds",
			Help:      "Time spent processing a webhook delivery",
			Buckets:   histogramBuckets,
		}),
	}

	m.Registry.MustRegister(m.deliveries, m.commentWrites, m.duration)
	return m
}

// Handler exposes the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

func (m *Metrics) recordDelivery(event, outcome string, elapsed time.Duration) {
	m.deliveries.With(prometheus.Labels{"event": event, "outcome": outcome}).Inc()
	m.duration.Observe(elapsed.Seconds())
}

func (m *Metrics) recordWrite(operation string) {
	m.commentWrites.With(prometheus.Labels{"operation": operation}).Inc()
}
