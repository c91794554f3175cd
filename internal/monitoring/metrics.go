package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const namespace = "encounter"

// Metrics regroupe les collecteurs Prometheus du service
type Metrics struct {
	registry  *prometheus.Registry
	Encounter *EncounterMetrics
	HTTP      *HTTPMetrics
}

// NewMetrics crée une nouvelle instance de metrics avec son propre registry
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry:  registry,
		Encounter: NewEncounterMetrics(registry),
		HTTP:      NewHTTPMetrics(registry),
	}

	logrus.Info("Prometheus metrics initialized")
	return m
}

// Registry expose le registry (tests, collecteurs additionnels)
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler retourne le handler Prometheus
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// HTTPMetrics métriques des requêtes HTTP
type HTTPMetrics struct {
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	ResponseSize      *prometheus.HistogramVec
	ActiveConnections prometheus.Gauge
}

// NewHTTPMetrics enregistre les métriques HTTP dans reg
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	factory := promauto.With(reg)

	return &HTTPMetrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_response_size_bytes",
				Help:      "HTTP response size in bytes",
				Buckets:   []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "endpoint"},
		),
		ActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_active_connections",
				Help:      "Number of in-flight HTTP requests",
			},
		),
	}
}

// ObserveRequest enregistre une requête terminée
func (m *HTTPMetrics) ObserveRequest(method, endpoint, statusCode string, duration time.Duration, size int) {
	if m == nil {
		return
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	m.RequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.RequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	if size > 0 {
		m.ResponseSize.WithLabelValues(method, endpoint).Observe(float64(size))
	}
}
