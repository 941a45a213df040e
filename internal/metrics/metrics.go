package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	schedulerStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "schedctl",
			Subsystem: "scheduler",
			Name:      "starts_total",
			Help:      "Start requests by result (started, already_running, failed).",
		}, []string{"result"},
	)
	schedulerStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "schedctl",
			Subsystem: "scheduler",
			Name:      "stops_total",
			Help:      "Stop requests by result (ok, failed).",
		}, []string{"result"},
	)
	schedulerStartDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "schedctl",
			Subsystem: "scheduler",
			Name:      "start_duration_seconds",
			Help:      "Time from spawn to the confirming liveness probe.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"},
	)
	probes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "schedctl",
			Subsystem: "scheduler",
			Name:      "probes_total",
			Help:      "Liveness probes by outcome (alive, dead).",
		}, []string{"outcome"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "schedctl",
			Subsystem: "scheduler",
			Name:      "state_transitions_total",
			Help:      "Number of lifecycle state transitions.",
		}, []string{"from", "to"},
	)
	currentState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "schedctl",
			Subsystem: "scheduler",
			Name:      "current_state",
			Help:      "Current lifecycle state (1 = active state, 0 = inactive).",
		}, []string{"state"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "schedctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "schedctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{schedulerStarts, schedulerStops, schedulerStartDuration, probes, stateTransitions, currentState, httpRequests, httpDuration}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncStart(result string) {
	if regOK.Load() {
		schedulerStarts.WithLabelValues(result).Inc()
	}
}

func IncStop(result string) {
	if regOK.Load() {
		schedulerStops.WithLabelValues(result).Inc()
	}
}

func ObserveStartDuration(mode string, d time.Duration) {
	if regOK.Load() {
		schedulerStartDuration.WithLabelValues(mode).Observe(d.Seconds())
	}
}

func ObserveProbe(alive bool) {
	if !regOK.Load() {
		return
	}
	if alive {
		probes.WithLabelValues("alive").Inc()
	} else {
		probes.WithLabelValues("dead").Inc()
	}
}

// RecordStateTransition counts from->to and flips the current_state gauge.
func RecordStateTransition(from, to string) {
	if !regOK.Load() || from == to {
		return
	}
	stateTransitions.WithLabelValues(from, to).Inc()
	currentState.WithLabelValues(from).Set(0)
	currentState.WithLabelValues(to).Set(1)
}

// GinMiddleware records request count and latency per matched route.
// Unmatched routes are labelled "unmatched" to keep cardinality bounded.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if !regOK.Load() {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		httpRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
