package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "luxe_portal"

// Metrics groups the collectors the portal records into.
type Metrics struct {
	registry *prometheus.Registry

	upstreamDuration  *prometheus.HistogramVec
	validationFailure *prometheus.CounterVec
	requests          *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	registerCollector(reg, prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	registerCollector(reg, prometheus.NewGoCollector())

	m := &Metrics{
		registry: reg,
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of calls to the remote patient API.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "code"}),
		validationFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Form fields rejected by client-side validation.",
		}, []string{"form", "field"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Requests served by the portal.",
		}, []string{"method", "route", "code"}),
	}
	registerCollector(reg, m.upstreamDuration)
	registerCollector(reg, m.validationFailure)
	registerCollector(reg, m.requests)
	return m
}

func registerCollector(reg prometheus.Registerer, c prometheus.Collector) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return
		}
		panic(err)
	}
}

// ObserveUpstream records one remote API call. code is 0 when no response
// was received.
func (m *Metrics) ObserveUpstream(operation string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(operation, strconv.Itoa(code)).Observe(d.Seconds())
}

func (m *Metrics) ValidationFailed(form, field string) {
	if m == nil {
		return
	}
	m.validationFailure.WithLabelValues(form, field).Inc()
}

func (m *Metrics) RequestServed(method, route string, code int) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
