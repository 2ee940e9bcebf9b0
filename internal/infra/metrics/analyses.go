package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(analysesProcessedTotal, cacheServesTotal, analysesReapedTotal) }

var analysesProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "analyses_processed_total",
		Help: "Total number of analysis jobs reaching a terminal state, labeled by status.",
	},
	[]string{"status"}, // 'complete', 'error'
)

var cacheServesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "analysis_cache_serves_total",
		Help: "Submissions served from the fingerprint cache vs scheduled fresh.",
	},
	[]string{"result"}, // 'hit', 'miss'
)

var analysesReapedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "analyses_reaped_total",
		Help: "Stale analysis jobs swept into the error state by the reaper.",
	},
)

func IncReaped(n int) {
	analysesReapedTotal.Add(float64(n))
}

func IncAnalysis(status string) {
	analysesProcessedTotal.WithLabelValues(norm(status)).Inc()
}

func IncCacheServe(result string) {
	cacheServesTotal.WithLabelValues(norm(result)).Inc()
}
