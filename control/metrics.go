// File: control/metrics.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Port statistics registry for scheduler-side monitoring, with a
// Prometheus collector over the same sources. Ports register once at
// wiring time; collection reads their atomic counters without touching
// producer state.

package control

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/flowport/api"
)

// StatsSource is the narrow surface a port exposes for monitoring.
type StatsSource interface {
	Name() string
	Stats() api.PortStats
}

// MetricsRegistry tracks registered ports and snapshots their counters.
type MetricsRegistry struct {
	mu      sync.RWMutex
	sources []StatsSource
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{}
}

// Register adds a port to the registry.
func (mr *MetricsRegistry) Register(s StatsSource) {
	mr.mu.Lock()
	mr.sources = append(mr.sources, s)
	mr.mu.Unlock()
}

// Snapshot returns the latest counters keyed by port name.
func (mr *MetricsRegistry) Snapshot() map[string]api.PortStats {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]api.PortStats, len(mr.sources))
	for _, s := range mr.sources {
		out[s.Name()] = s.Stats()
	}
	return out
}

var (
	descElements = prometheus.NewDesc("flowport_total_elements",
		"Cumulative elements forwarded per output port.", []string{"port"}, nil)
	descBuffers = prometheus.NewDesc("flowport_total_buffers",
		"Cumulative buffer-forward events per output port.", []string{"port"}, nil)
	descLabels = prometheus.NewDesc("flowport_total_labels",
		"Cumulative labels posted per output port.", []string{"port"}, nil)
	descMessages = prometheus.NewDesc("flowport_total_messages",
		"Cumulative messages posted per output port.", []string{"port"}, nil)
)

// Collector adapts a MetricsRegistry to prometheus.Collector.
type Collector struct {
	registry *MetricsRegistry
}

// NewCollector builds a collector over a registry.
func NewCollector(registry *MetricsRegistry) *Collector {
	return &Collector{registry: registry}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- descElements
	ch <- descBuffers
	ch <- descLabels
	ch <- descMessages
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for name, stats := range c.registry.Snapshot() {
		ch <- prometheus.MustNewConstMetric(descElements, prometheus.CounterValue, float64(stats.TotalElements), name)
		ch <- prometheus.MustNewConstMetric(descBuffers, prometheus.CounterValue, float64(stats.TotalBuffers), name)
		ch <- prometheus.MustNewConstMetric(descLabels, prometheus.CounterValue, float64(stats.TotalLabels), name)
		ch <- prometheus.MustNewConstMetric(descMessages, prometheus.CounterValue, float64(stats.TotalMessages), name)
	}
}

var _ prometheus.Collector = (*Collector)(nil)
