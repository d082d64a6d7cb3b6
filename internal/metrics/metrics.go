// Package metrics holds the Prometheus instruments for the progress service.
//
// Exposed at GET /metrics:
//
//	progress_flushes_total{trigger,result}     counter
//	progress_rejected_inputs_total             counter
//	progress_active_sessions                   gauge
//	progress_http_requests_total               counter
//	progress_http_request_duration_seconds     histogram
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Flush triggers.
const (
	TriggerTick   = "tick"
	TriggerEnd    = "end"
	TriggerDirect = "direct"
)

// Flush results.
const (
	ResultOK    = "ok"
	ResultError = "error"
	ResultStale = "stale"
)

// Flushes counts progress writes by what caused them and whether they landed.
var Flushes = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "progress_flushes_total",
	Help: "Progress writes by trigger and result.",
}, []string{"trigger", "result"})

// RejectedInputs counts progress reports refused at the call boundary.
var RejectedInputs = promauto.NewCounter(prometheus.CounterOpts{
	Name: "progress_rejected_inputs_total",
	Help: "Progress reports rejected as invalid input.",
})

// ActiveSessions is the number of live playback sessions held by this process.
var ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "progress_active_sessions",
	Help: "Live playback sessions.",
})

var httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "progress_http_requests_total",
	Help: "Total HTTP requests handled.",
}, []string{"method", "route", "status"})

var httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "progress_http_request_duration_seconds",
	Help:    "HTTP request latency in seconds.",
	Buckets: prometheus.DefBuckets,
}, []string{"method", "route"})

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request counts and latency labelled by chi route pattern,
// which keeps session and title ids out of the label set.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
