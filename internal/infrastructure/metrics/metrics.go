package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Grant scout metrics - using explicit registration
var (
	// HTTP request counters
	RequestsTotal *prometheus.CounterVec

	// Tool call counters and durations (HTTP and MCP alike)
	ToolCallsTotal *prometheus.CounterVec
	ToolDuration   *prometheus.HistogramVec

	// Search outcomes (completed, timed_out, failed, degraded)
	SearchOutcomesTotal *prometheus.CounterVec

	// Records merged into the store from web results
	MergedRecordsTotal *prometheus.CounterVec

	// Information source latency (generative, per site)
	SourceLatency *prometheus.HistogramVec

	// Circuit breaker state gauge
	CircuitBreakerState *prometheus.GaugeVec

	// Scraper page cache lookups
	PageCacheLookups *prometheus.CounterVec
)

// init creates and registers all metrics with the default registry
func init() {
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "grants",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	ToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "grants",
			Name:      "tool_calls_total",
			Help:      "Total operation invocations",
		},
		[]string{"tool_name", "transport", "status"},
	)

	ToolDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "grants",
			Name:      "tool_duration_seconds",
			Help:      "Operation duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"tool_name", "transport"},
	)

	SearchOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "grants",
			Name:      "search_outcomes_total",
			Help:      "Search workflow outcomes",
		},
		[]string{"outcome"},
	)

	MergedRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "grants",
			Name:      "merged_records_total",
			Help:      "Web records merged into the working set",
		},
		[]string{"action"},
	)

	SourceLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "jan",
			Subsystem: "grants",
			Name:      "source_latency_seconds",
			Help:      "Information source response time in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"source", "status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "jan",
			Subsystem: "grants",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 0.5=half-open, 1=open)",
		},
		[]string{"provider"},
	)

	PageCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jan",
			Subsystem: "grants",
			Name:      "page_cache_lookups_total",
			Help:      "Scraper page cache lookups",
		},
		[]string{"result"},
	)

	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(ToolCallsTotal)
	prometheus.MustRegister(ToolDuration)
	prometheus.MustRegister(SearchOutcomesTotal)
	prometheus.MustRegister(MergedRecordsTotal)
	prometheus.MustRegister(SourceLatency)
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(PageCacheLookups)
}

var inFlightOnce sync.Once

// RegisterSearchesInFlight exposes the number of searches holding an
// admission slot. Only the first registration takes effect.
func RegisterSearchesInFlight(inFlight func() float64) {
	inFlightOnce.Do(func() {
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "jan",
				Subsystem: "grants",
				Name:      "searches_in_flight",
				Help:      "Searches currently holding an admission slot",
			},
			inFlight,
		))
	})
}

// RecordRequest records an HTTP request
func RecordRequest(method, status string) {
	RequestsTotal.WithLabelValues(method, status).Inc()
}

// RecordToolCall records an operation invocation
func RecordToolCall(toolName, transport, status string, durationSec float64) {
	if transport == "" {
		transport = "unknown"
	}
	if status == "" {
		status = "unknown"
	}
	ToolCallsTotal.WithLabelValues(toolName, transport, status).Inc()
	ToolDuration.WithLabelValues(toolName, transport).Observe(durationSec)
}

// RecordSearchOutcome counts a finished search
func RecordSearchOutcome(outcome string) {
	SearchOutcomesTotal.WithLabelValues(outcome).Inc()
}

// RecordMerge counts web records that updated a stored record or were appended
func RecordMerge(action string, n int) {
	if n <= 0 {
		return
	}
	MergedRecordsTotal.WithLabelValues(action).Add(float64(n))
}

// RecordSourceLatency records information source response time
func RecordSourceLatency(source, status string, durationSec float64) {
	SourceLatency.WithLabelValues(source, status).Observe(durationSec)
}

// SetCircuitBreakerState sets the circuit breaker state
func SetCircuitBreakerState(provider string, state string) {
	var val float64
	switch state {
	case "closed":
		val = 0.0
	case "half-open":
		val = 0.5
	case "open":
		val = 1.0
	}
	CircuitBreakerState.WithLabelValues(provider).Set(val)
}

// RecordPageCacheLookup records a scraper page cache hit or miss
func RecordPageCacheLookup(hit bool) {
	if hit {
		PageCacheLookups.WithLabelValues("hit").Inc()
		return
	}
	PageCacheLookups.WithLabelValues("miss").Inc()
}
