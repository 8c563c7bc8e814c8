package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the counters internal/admin exposes over /metrics. The
// most Prometheus-instrumented services wire promhttp.Handler() directly onto a registry but never
// registers its own counters via promauto; this engine is the first
// concrete consumer of promauto in the pack, used here because every
// counter below is a fire-and-forget increment/observe on the engine's one
// goroutine with no separate registration bookkeeping required.
type Metrics struct {
	AppendsTotal     prometheus.Counter
	AppendFailures   prometheus.Counter
	AppendBatchSize  prometheus.Histogram
	ReadsTotal       prometheus.Counter
	ReadFailures     prometheus.Counter
	FlushesTotal     prometheus.Counter
	FlushFailures    prometheus.Counter
	PoolCheckoutHit  prometheus.Counter
	PoolCheckoutMiss prometheus.Counter
	QueueDepth       prometheus.Gauge
}

// NewMetrics registers the engine's counters against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the default
// global registry's duplicate-registration panic.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AppendsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "asynclogd_appends_total",
			Help: "Total number of messages successfully appended.",
		}),
		AppendFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "asynclogd_append_failures_total",
			Help: "Total number of append batches rejected by the commit log.",
		}),
		AppendBatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "asynclogd_append_batch_size",
			Help:    "Size, in messages, of each batch drained from the append ingress.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
		ReadsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "asynclogd_reads_total",
			Help: "Total number of successful reads.",
		}),
		ReadFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "asynclogd_read_failures_total",
			Help: "Total number of failed reads.",
		}),
		FlushesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "asynclogd_flushes_total",
			Help: "Total number of successful commit log flushes.",
		}),
		FlushFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "asynclogd_flush_failures_total",
			Help: "Total number of flush attempts that returned an error.",
		}),
		PoolCheckoutHit: factory.NewCounter(prometheus.CounterOpts{
			Name: "asynclogd_pool_checkout_hit_total",
			Help: "Buffer pool checkouts served from the free list.",
		}),
		PoolCheckoutMiss: factory.NewCounter(prometheus.CounterOpts{
			Name: "asynclogd_pool_checkout_miss_total",
			Help: "Buffer pool checkouts that fell back to a fresh allocation.",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "asynclogd_append_queue_depth",
			Help: "Number of append requests drained in the most recent batch.",
		}),
	}
}
