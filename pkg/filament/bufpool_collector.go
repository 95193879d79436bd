package filament

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// PoolCollector exposes a BufferPool's counters as prometheus metrics,
// labelled by size class. It holds no state of its own: Collect snapshots
// the pool's atomics, so registering one collector per pool is enough.
//
// Nothing is registered globally; callers opt in:
//
//	registry.MustRegister(filament.NewPoolCollector(pool))
type PoolCollector struct {
	pool *BufferPool

	gets     *prometheus.Desc
	puts     *prometheus.Desc
	hits     *prometheus.Desc
	misses   *prometheus.Desc
	discards *prometheus.Desc
}

// NewPoolCollector creates a collector over pool.
func NewPoolCollector(pool *BufferPool) *PoolCollector {
	labels := []string{"size"}
	return &PoolCollector{
		pool: pool,
		gets: prometheus.NewDesc(
			"filament_buffer_pool_gets_total",
			"Total buffer Get operations", labels, nil),
		puts: prometheus.NewDesc(
			"filament_buffer_pool_puts_total",
			"Total buffer Put operations", labels, nil),
		hits: prometheus.NewDesc(
			"filament_buffer_pool_hits_total",
			"Buffer pool hits (reused buffer)", labels, nil),
		misses: prometheus.NewDesc(
			"filament_buffer_pool_misses_total",
			"Buffer pool misses (new allocation)", labels, nil),
		discards: prometheus.NewDesc(
			"filament_buffer_pool_discards_total",
			"Buffers discarded on Put (wrong capacity)", labels, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.gets
	ch <- c.puts
	ch <- c.hits
	ch <- c.misses
	ch <- c.discards
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	for _, s := range c.pool.Stats() {
		size := strconv.Itoa(s.Size)
		ch <- prometheus.MustNewConstMetric(c.gets, prometheus.CounterValue, float64(s.Gets), size)
		ch <- prometheus.MustNewConstMetric(c.puts, prometheus.CounterValue, float64(s.Puts), size)
		ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits), size)
		ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses), size)
		ch <- prometheus.MustNewConstMetric(c.discards, prometheus.CounterValue, float64(s.Discards), size)
	}
}
