package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	TxnCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mvdb",
			Subsystem: "txn",
			Name:      "events_total",
			Help:      "Counter of transaction lifecycle events.",
		}, []string{"type"})

	TxnRegistryGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mvdb",
			Subsystem: "txn",
			Name:      "registry_size",
			Help:      "Transactions currently held in the registry.",
		})

	WatermarkGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mvdb",
			Subsystem: "txn",
			Name:      "watermark",
			Help:      "Current low-water mark.",
		})

	GCCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mvdb",
			Subsystem: "gc",
			Name:      "reclaimed_total",
			Help:      "Counter of objects reclaimed by garbage collection.",
		}, []string{"type"})

	GCDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mvdb",
			Subsystem: "gc",
			Name:      "duration_seconds",
			Help:      "Bucketed histogram of garbage collection pass duration.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
		})
)

const (
	EventBegin    = "begin"
	EventCommit   = "commit"
	EventAbort    = "abort"
	EventTaint    = "taint"
	EventConflict = "conflict"
)

func init() {
	prometheus.MustRegister(TxnCounter)
	prometheus.MustRegister(TxnRegistryGauge)
	prometheus.MustRegister(WatermarkGauge)
	prometheus.MustRegister(GCCounter)
	prometheus.MustRegister(GCDuration)
}
