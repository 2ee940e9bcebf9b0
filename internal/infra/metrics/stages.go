package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(stageLatencySeconds, stageFailuresTotal, promptTokens) }

var stageLatencySeconds = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "analysis_stage_latency_seconds",
		Help:    "Stage execution latency distribution.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
	},
	[]string{"stage", "success"},
)

var stageFailuresTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "analysis_stage_failures_total",
		Help: "Stage failures (errors or timeouts) by stage name.",
	},
	[]string{"stage"},
)

var promptTokens = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "analysis_prompt_tokens",
		Help:    "Prompt token counts for LLM calls, by stage.",
		Buckets: prometheus.ExponentialBuckets(64, 2, 10),
	},
	[]string{"stage"},
)

func ObservePromptTokens(stage string, n int) {
	promptTokens.WithLabelValues(norm(stage)).Observe(float64(n))
}

func ObserveStage(stage string, d time.Duration, success bool) {
	stageLatencySeconds.WithLabelValues(norm(stage), strconv.FormatBool(success)).Observe(d.Seconds())
	if !success {
		stageFailuresTotal.WithLabelValues(norm(stage)).Inc()
	}
}
