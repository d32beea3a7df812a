// Package telemetry exposes Prometheus collectors for the application service.
package telemetry

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	scrapesTotal               *prometheus.CounterVec
	applicationsCreatedTotal   *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"method", "route"},
		)

		scrapesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scrapes_total",
				Help: "Total number of scrape requests, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		applicationsCreatedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "applications_created_total",
				Help: "Total number of applications created, labeled by source.",
			},
			[]string{"source"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveScrape increments the scrape counter for the given outcome.
// Successful scrapes record "success", failures record the error kind.
func ObserveScrape(outcome string) {
	scrapesTotal.WithLabelValues(outcome).Inc()
}

// ObserveApplicationCreated increments the application counter for the given source.
func ObserveApplicationCreated(source string) {
	applicationsCreatedTotal.WithLabelValues(source).Inc()
}
