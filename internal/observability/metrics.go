package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "graphctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total status API requests.",
		},
		[]string{"service", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "graphctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Status API request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path", "status"},
	)
	dispatchCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "graphctl",
			Subsystem: "dispatch",
			Name:      "commands_total",
			Help:      "Commands dispatched to the host context.",
		},
		[]string{"action", "status", "kind"},
	)
	dispatchTimeouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "graphctl",
			Subsystem: "dispatch",
			Name:      "timeouts_total",
			Help:      "Handoffs abandoned after the dispatch timeout.",
		},
		[]string{"action"},
	)
	dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "graphctl",
			Subsystem: "dispatch",
			Name:      "duration_seconds",
			Help:      "Time from receipt to response per command.",
			Buckets:   []float64{.001, .005, .025, .1, .5, 1, 5, 25},
		},
		[]string{"action", "status"},
	)
	listenerConnections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "graphctl",
			Subsystem: "listener",
			Name:      "connections_total",
			Help:      "Client connections by how they ended.",
		},
		[]string{"result"},
	)
	listenerRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "graphctl",
			Subsystem: "listener",
			Name:      "frames_rejected_total",
			Help:      "Frames refused by the listener.",
		},
		[]string{"reason"},
	)
	listenerActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "graphctl",
			Subsystem: "listener",
			Name:      "active_clients",
			Help:      "Clients currently being served.",
		},
	)
	hostloopPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "graphctl",
			Subsystem: "hostloop",
			Name:      "pending_tasks",
			Help:      "Tasks waiting for the exclusive host context.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			dispatchCommands, dispatchTimeouts, dispatchDuration,
			listenerConnections, listenerRejected, listenerActive,
			hostloopPending,
		)
	})
}

func RecordHTTPRequest(service, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(service, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(service, method, path, statusLabel).Observe(duration.Seconds())
}

// RecordCommand counts one dispatched command. kind is empty for successes.
func RecordCommand(action, status, kind string, duration time.Duration) {
	RegisterMetrics()
	dispatchCommands.WithLabelValues(action, status, kind).Inc()
	dispatchDuration.WithLabelValues(action, status).Observe(duration.Seconds())
}

func RecordConnection(result string) {
	RegisterMetrics()
	listenerConnections.WithLabelValues(result).Inc()
}

func RecordDispatchTimeout(action string) {
	RegisterMetrics()
	dispatchTimeouts.WithLabelValues(action).Inc()
}

func RecordFrameRejected(reason string) {
	RegisterMetrics()
	listenerRejected.WithLabelValues(reason).Inc()
}

func SetActiveClients(n int) {
	RegisterMetrics()
	listenerActive.Set(float64(n))
}

func SetHostloopPending(n int) {
	RegisterMetrics()
	hostloopPending.Set(float64(n))
}
