package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codeshare",
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests received",
	}, []string{"method", "path", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "codeshare",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	httpInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "codeshare",
		Name:      "http_in_flight_requests",
		Help:      "Current number of in-flight HTTP requests",
	})

	// ConnectedClients is the number of live WebSocket connections.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "codeshare",
		Name:      "connected_clients",
		Help:      "Current number of connected WebSocket clients",
	})

	// TrackedRooms is the number of rooms with in-memory presence state.
	TrackedRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "codeshare",
		Name:      "tracked_rooms",
		Help:      "Current number of rooms tracked in memory",
	})

	// WSEvents counts inbound client events by type.
	WSEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codeshare",
		Name:      "ws_events_total",
		Help:      "Total number of WebSocket events received, by type",
	}, []string{"type"})

	// StoreFailures counts failed document store calls by operation.
	StoreFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "codeshare",
		Name:      "store_failures_total",
		Help:      "Total number of failed document store calls, by operation",
	}, []string{"op"})

	// ReapedRooms counts presence entries evicted by the idle room reaper.
	ReapedRooms = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "codeshare",
		Name:      "reaped_rooms_total",
		Help:      "Total number of idle room entries reaped",
	})
)

type responseRecorder struct {
	http.ResponseWriter
	status int
}

func (r *responseRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *responseRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack must pass through so the WebSocket upgrade works behind the
// middleware.
func (r *responseRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := r.ResponseWriter.(http.Hijacker); ok {
		return h.Hijack()
	}
	return nil, nil, fmt.Errorf("metrics: underlying ResponseWriter does not support hijacking")
}

// Middleware records request metrics with Prometheus labels.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()

			httpInFlight.Inc()
			defer httpInFlight.Dec()

			next.ServeHTTP(rec, r)

			labels := prometheus.Labels{
				"method": r.Method,
				"path":   r.URL.Path,
				"status": strconv.Itoa(rec.status),
			}
			httpRequests.With(labels).Inc()
			httpLatency.With(labels).Observe(time.Since(start).Seconds())
		})
	}
}

// Handler exposes the default Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
