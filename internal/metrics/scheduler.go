package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	schedulerActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_actions_total",
			Help: "Total scheduler actions by result and action",
		},
		[]string{"result", "action"},
	)

	schedulerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scheduler_pass_duration_ms",
			Help:    "AutoManageRounds pass duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result"},
	)
)

// RecordSchedulerAction 记录调度器单个动作
// result: "success" | "fail"
// action: "draw_settled" | "round_created" | "skipped" 等
func RecordSchedulerAction(result, action string) {
	res := result
	if res != "success" {
		res = "fail"
	}
	ac := strings.ToLower(strings.TrimSpace(action))
	if ac == "" {
		ac = "unknown"
	}
	schedulerActions.WithLabelValues(res, ac).Inc()
}

// RecordSchedulerPass 记录一次完整调度过程的耗时
func RecordSchedulerPass(result string, started time.Time) {
	res := result
	if res != "success" {
		res = "fail"
	}
	durMs := float64(time.Since(started).Milliseconds())
	schedulerDuration.WithLabelValues(res).Observe(durMs)
}
