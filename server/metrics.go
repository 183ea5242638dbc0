package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	commute "github.com/m1ckyb/CommuteCompute-sub001"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commute_http_requests_total",
		Help: "HTTP requests by path and status code.",
	}, []string{"path", "code"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "commute_http_request_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	})

	plansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commute_plans_total",
		Help: "Planned journeys by status kind and data source.",
	}, []string{"status", "source"})

	renderFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "commute_render_failures_total",
		Help: "Frames that could not be rasterized.",
	})
)

func observePlan(journey commute.Journey) {
	plansTotal.WithLabelValues(string(journey.Status), string(journey.DataSource)).Inc()
}

func observeRenderFailure() {
	renderFailures.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		requestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(recorder.status)).Inc()
		requestDuration.Observe(time.Since(start).Seconds())
	})
}
