package observability

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"flightbook/internal/domain"
)

const namespace = "flightbook"

// The flight API is slow enough that the default buckets top out too early.
var backendBuckets = prometheus.ExponentialBuckets(0.05, 2, 10) // 50ms .. 25.6s

var (
	httpRequests = counter("http_requests_total", "Requests served, by route and status.",
		"route", "method", "status")
	httpDuration = histogram("http_request_duration_seconds", "Time spent serving a request.",
		prometheus.DefBuckets, "route", "method")

	backendRequests = counter("external_requests_total", "Calls made to upstream services.",
		"service", "endpoint", "status")
	backendDuration = histogram("external_request_duration_seconds", "Upstream call latency.",
		backendBuckets, "service", "endpoint")

	// event is one of hit, miss, set or del
	cacheEvents = counter("cache_events_total", "Cache and offer slot traffic.", "cache", "event")
	// outcome is one of committed, discarded or skipped
	locationLookups = counter("location_lookups_total", "Debounced location lookups by outcome.", "outcome")
)

func counter(name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: name, Help: help}, labels)
}

func histogram(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: name, Help: help, Buckets: buckets,
	}, labels)
}

// InitRegistry returns a registry carrying the app collectors plus the Go
// runtime and process collectors.
func InitRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests, httpDuration,
		backendRequests, backendDuration,
		cacheEvents, locationLookups,
	)
	return reg
}

func MetricsHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Serve exposes reg on its own listener in the background. An empty addr
// disables it.
func Serve(addr string, reg *prometheus.Registry) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("addr", addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
}

func ObserveHTTP(route, method string, status int, dur time.Duration) {
	httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(route, method).Observe(dur.Seconds())
}

// ObserveExternal records one upstream call. status 0 means no response.
func ObserveExternal(service, endpoint string, status int, dur time.Duration) {
	backendRequests.WithLabelValues(service, endpoint, strconv.Itoa(status)).Inc()
	backendDuration.WithLabelValues(service, endpoint).Observe(dur.Seconds())
}

func ObserveCache(cache, event string) {
	cacheEvents.WithLabelValues(cache, event).Inc()
}

func ObserveLookup(outcome string) {
	locationLookups.WithLabelValues(outcome).Inc()
}

// LabelErr buckets err into a small fixed set so it can be used as a log
// field or label value.
func LabelErr(err error) string {
	var apiErr *domain.APIError
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &apiErr):
		if apiErr.Status >= 500 {
			return "upstream_5xx"
		}
		return "upstream_4xx"
	default:
		return "other"
	}
}
