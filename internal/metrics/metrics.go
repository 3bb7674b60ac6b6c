// Package metrics exposes Prometheus collectors for the dashboard and the
// batch jobs that feed it.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector of a process.
type Registry struct {
	reg *prometheus.Registry

	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	RateLimited      prometheus.Counter
	SummaryCacheHits *prometheus.CounterVec
	Reloads          *prometheus.CounterVec
	WSClients        prometheus.Gauge
	DatasetRows      prometheus.Gauge
	AggregationRuns  *prometheus.CounterVec
}

// New registers a fresh set of collectors, including the Go runtime and
// process collectors.
func New() *Registry {
	reg := prometheus.NewRegistry()
	r := &Registry{
		reg: reg,
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carsales",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "method", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "carsales",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "carsales",
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
		SummaryCacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carsales",
			Name:      "summary_cache_lookups_total",
			Help:      "Dashboard summary cache lookups by result.",
		}, []string{"result"}),
		Reloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carsales",
			Name:      "dataset_reloads_total",
			Help:      "Dashboard data source reloads by outcome.",
		}, []string{"outcome"}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "carsales",
			Name:      "websocket_clients",
			Help:      "Connected reload notification clients.",
		}),
		DatasetRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "carsales",
			Name:      "dataset_rows",
			Help:      "Sales rows held by the dashboard data source.",
		}),
		AggregationRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carsales",
			Name:      "aggregation_runs_total",
			Help:      "Aggregation runs by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		r.HTTPRequests, r.HTTPDuration, r.RateLimited, r.SummaryCacheHits,
		r.Reloads, r.WSClients, r.DatasetRows, r.AggregationRuns,
	)
	return r
}

// RecordAggregation counts one aggregation run by outcome.
func (r *Registry) RecordAggregation(outcome string) {
	r.AggregationRuns.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

// Gatherer exposes the underlying registry, e.g. for tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}
