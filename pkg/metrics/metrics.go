package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tinylink"

// Redirect outcomes.
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeExpired  = "expired"
	OutcomeError    = "error"
)

type Metrics struct {
	LinksCreated        *prometheus.CounterVec
	Redirects           *prometheus.CounterVec
	ClicksRecorded      prometheus.Counter
	ClickRecordFailures prometheus.Counter
	CacheLookups        *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New registers every collector on reg. Tests pass prometheus.NewRegistry().
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LinksCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_created_total",
			Help:      "Short links created, by allocation path (auto or custom).",
		}, []string{"path"}),
		Redirects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirects_total",
			Help:      "Slug resolutions, by outcome.",
		}, []string{"outcome"}),
		ClicksRecorded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_recorded_total",
			Help:      "Click events persisted.",
		}),
		ClickRecordFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "click_record_failures_total",
			Help:      "Click events dropped because the write failed.",
		}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Link cache lookups, by result (hit, miss, error).",
		}, []string{"result"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		gatherer: reg,
	}
}

// NewWithRuntime also registers the Go runtime and process collectors.
func NewWithRuntime(reg *prometheus.Registry) *Metrics {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Instrument records request latency labelled with the chi route pattern,
// so /{slug} stays one series no matter how many slugs exist.
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.RequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(time.Since(start).Seconds())
	})
}
