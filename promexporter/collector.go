// Package promexporter exposes the client, pool and circuit breaker stats as
// Prometheus metrics.
package promexporter

import (
	"net/http"

	"github.com/pior/riak"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"
)

// StatsSource is implemented by *riak.Client.
type StatsSource interface {
	Stats() riak.ClientStats
	AllNodeStats() []riak.NodeStats
}

// Collector reads the stats on every scrape.
type Collector struct {
	source StatsSource

	operations *prometheus.Desc
	fetchHits  *prometheus.Desc
	errors     *prometheus.Desc

	poolConnections *prometheus.Desc
	poolCreated     *prometheus.Desc
	poolDestroyed   *prometheus.Desc
	poolAcquires    *prometheus.Desc
	poolWaits       *prometheus.Desc
	poolWaitSeconds *prometheus.Desc
	poolErrors      *prometheus.Desc

	circuitState    *prometheus.Desc
	circuitRequests *prometheus.Desc
	circuitFailures *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector creates a collector for source. Metric names are prefixed
// with namespace, "riak" when empty.
func NewCollector(source StatsSource, namespace string) *Collector {
	if namespace == "" {
		namespace = "riak"
	}
	name := func(n string) string { return prometheus.BuildFQName(namespace, "", n) }

	return &Collector{
		source: source,

		operations: prometheus.NewDesc(name("operations_total"),
			"Total number of client operations", []string{"op"}, nil),
		fetchHits: prometheus.NewDesc(name("fetch_hits_total"),
			"Fetch operations that found the key", nil, nil),
		errors: prometheus.NewDesc(name("errors_total"),
			"Total number of failed client operations", nil, nil),

		poolConnections: prometheus.NewDesc(name("pool_connections"),
			"Connection pool statistics", []string{"server", "state"}, nil),
		poolCreated: prometheus.NewDesc(name("pool_connections_created_total"),
			"Total connections created", []string{"server"}, nil),
		poolDestroyed: prometheus.NewDesc(name("pool_connections_destroyed_total"),
			"Total connections destroyed", []string{"server"}, nil),
		poolAcquires: prometheus.NewDesc(name("pool_acquires_total"),
			"Total connection acquire attempts", []string{"server"}, nil),
		poolWaits: prometheus.NewDesc(name("pool_acquire_waits_total"),
			"Acquires that had to wait for a connection", []string{"server"}, nil),
		poolWaitSeconds: prometheus.NewDesc(name("pool_acquire_wait_seconds_total"),
			"Total time spent waiting for a connection", []string{"server"}, nil),
		poolErrors: prometheus.NewDesc(name("pool_acquire_errors_total"),
			"Total connection acquire errors", []string{"server"}, nil),

		circuitState: prometheus.NewDesc(name("circuit_breaker_state"),
			"Circuit breaker state (0=closed, 1=half-open, 2=open)", []string{"server"}, nil),
		circuitRequests: prometheus.NewDesc(name("circuit_breaker_requests"),
			"Number of requests tracked by circuit breaker", []string{"server"}, nil),
		circuitFailures: prometheus.NewDesc(name("circuit_breaker_failures"),
			"Circuit breaker failure counts", []string{"server", "type"}, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.operations
	ch <- c.fetchHits
	ch <- c.errors
	ch <- c.poolConnections
	ch <- c.poolCreated
	ch <- c.poolDestroyed
	ch <- c.poolAcquires
	ch <- c.poolWaits
	ch <- c.poolWaitSeconds
	ch <- c.poolErrors
	ch <- c.circuitState
	ch <- c.circuitRequests
	ch <- c.circuitFailures
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	stats := c.source.Stats()

	counter := func(desc *prometheus.Desc, v uint64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(desc *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v, labels...)
	}

	counter(c.operations, stats.Fetches, "fetch")
	counter(c.operations, stats.Stores, "store")
	counter(c.operations, stats.Deletes, "delete")
	counter(c.operations, stats.Lists, "list")
	counter(c.operations, stats.Pings, "ping")
	counter(c.fetchHits, stats.FetchHits)
	counter(c.errors, stats.Errors)

	for _, node := range c.source.AllNodeStats() {
		ps := node.PoolStats
		gauge(c.poolConnections, float64(ps.TotalConns), node.Addr, "total")
		gauge(c.poolConnections, float64(ps.ActiveConns), node.Addr, "active")
		gauge(c.poolConnections, float64(ps.IdleConns), node.Addr, "idle")
		counter(c.poolCreated, ps.CreatedConns, node.Addr)
		counter(c.poolDestroyed, ps.DestroyedConns, node.Addr)
		counter(c.poolAcquires, ps.AcquireCount, node.Addr)
		counter(c.poolWaits, ps.AcquireWaitCount, node.Addr)
		ch <- prometheus.MustNewConstMetric(c.poolWaitSeconds, prometheus.CounterValue,
			float64(ps.AcquireWaitTimeNs)/1e9, node.Addr)
		counter(c.poolErrors, ps.AcquireErrors, node.Addr)

		gauge(c.circuitState, circuitStateValue(node.CircuitBreakerState), node.Addr)
		gauge(c.circuitRequests, float64(node.CircuitBreakerCounts.Requests), node.Addr)
		gauge(c.circuitFailures, float64(node.CircuitBreakerCounts.TotalFailures), node.Addr, "total")
		gauge(c.circuitFailures, float64(node.CircuitBreakerCounts.ConsecutiveFailures), node.Addr, "consecutive")
	}
}

func circuitStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Handler returns an HTTP handler serving the metrics of source on a
// dedicated registry.
func Handler(source StatsSource) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(NewCollector(source, ""))
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
