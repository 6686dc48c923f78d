package shm

import "github.com/prometheus/client_golang/prometheus"

// Metrics aggregates the prometheus collectors for ring buffer traffic. The
// collectors are created unregistered; callers register them on the registry
// of their choice and share one Metrics across rings over the same segment
// if they want combined counts.
type Metrics struct {
	// Writes counts successful slot overwrites.
	Writes prometheus.Counter
	// Reads counts successful consumer reads.
	Reads prometheus.Counter
	// EmptyReads counts reads that found the consumer caught up.
	EmptyReads prometheus.Counter
	// SkippedValues counts writes a consumer's cursor jumped over without
	// observing them (first-read jump-to-latest and bounded catch-up).
	SkippedValues prometheus.Counter
}

// NewMetrics builds the ring buffer collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		Writes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shmring_writes_total",
			Help: "Number of values written into ring buffer slots.",
		}),
		Reads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shmring_reads_total",
			Help: "Number of values read from ring buffer slots.",
		}),
		EmptyReads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shmring_reads_empty_total",
			Help: "Number of reads that found no new value.",
		}),
		SkippedValues: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shmring_skipped_values_total",
			Help: "Number of written values a consumer cursor skipped without reading.",
		}),
	}
}

// Collectors returns every collector for registry.MustRegister.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.Writes, m.Reads, m.EmptyReads, m.SkippedValues}
}
