// internal/utils/metrics/collector.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "bettingpool"

// Collector owns a private registry so several collectors can coexist.
// A nil *Collector records nothing.
type Collector struct {
	registry          *prometheus.Registry
	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	rpcLatency        *prometheus.HistogramVec
	rpcErrors         *prometheus.CounterVec
}

// NewCollector creates and registers the metric set.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Operations by outcome and failure kind",
			},
			[]string{"operation", "status", "kind"},
		),
		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Wall time from request to result",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"operation"},
		),
		rpcLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_latency_seconds",
				Help:      "RPC request latency in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
			},
			[]string{"method"},
		),
		rpcErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rpc_errors_total",
				Help:      "Failed RPC requests",
			},
			[]string{"method"},
		),
	}
	c.registry.MustRegister(c.operations, c.operationDuration, c.rpcLatency, c.rpcErrors)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// RecordOperation counts one finished operation. kind is empty on success.
func (c *Collector) RecordOperation(operation string, ok bool, kind string, duration time.Duration) {
	if c == nil {
		return
	}
	status := "success"
	if !ok {
		status = "failed"
	}
	c.operations.WithLabelValues(operation, status, kind).Inc()
	c.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRPC observes one RPC round trip.
func (c *Collector) RecordRPC(method string, duration time.Duration, err error) {
	if c == nil {
		return
	}
	c.rpcLatency.WithLabelValues(method).Observe(duration.Seconds())
	if err != nil {
		c.rpcErrors.WithLabelValues(method).Inc()
	}
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, c.registry)
}

// Reset clears all series.
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.operations.Reset()
	c.operationDuration.Reset()
	c.rpcLatency.Reset()
	c.rpcErrors.Reset()
}
