// Package metrics provides Prometheus instrumentation for the game engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TicksTotal counts simulation ticks.
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "idle_ticks_total",
		Help: "Total number of simulation ticks",
	})

	// TickLatency observes how long one tick transition takes.
	TickLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "idle_tick_latency_seconds",
		Help:    "Tick transition latency in seconds",
		Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
	})

	// IntentsTotal counts player intents by kind and result.
	IntentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "idle_intents_total",
		Help: "Player intents by kind and result (applied/rejected)",
	}, []string{"intent", "result"})

	// BoostersBought counts booster purchases by booster and source
	// (manual, auto, token).
	BoostersBought = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "idle_boosters_acquired_total",
		Help: "Boosters acquired by booster id and source",
	}, []string{"booster", "source"})

	// TokensTotal counts bonus token lifecycle events
	// (spawned, collected, auto_collected, expired).
	TokensTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "idle_tokens_total",
		Help: "Bonus token lifecycle events",
	}, []string{"event"})

	// SpinsTotal counts roulette spins by multiplier.
	SpinsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "idle_gamble_spins_total",
		Help: "Roulette spins by drawn multiplier",
	}, []string{"multiplier"})

	// SavesTotal counts persistence flushes by result.
	SavesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "idle_saves_total",
		Help: "State saves by result",
	}, []string{"result"})

	// NewsRequests counts flavor-text fetches by outcome.
	NewsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "idle_news_requests_total",
		Help: "Flavor-text generator calls by outcome",
	}, []string{"outcome"})

	// ActiveSessions tracks the number of running game sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "idle_active_sessions",
		Help: "Number of running game sessions",
	})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "idle_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "idle_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "idle_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Result labels an intent outcome.
func Result(err error) string {
	if err != nil {
		return "rejected"
	}
	return "applied"
}

// Multiplier formats a roulette multiplier as a label.
func Multiplier(m int) string {
	return strconv.Itoa(m)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				path = p
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
