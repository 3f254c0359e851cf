package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	drawTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draw_requests_total",
			Help: "Total round draw attempts by result and trigger",
		},
		[]string{"result", "trigger"},
	)

	drawDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "draw_request_duration_ms",
			Help:    "Draw and settlement duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result", "trigger"},
	)

	settledBets = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settled_bets_total",
			Help: "Total bets settled across all rounds",
		},
	)

	payoutAmount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payout_amount_total",
			Help: "Total payout amount credited to users",
		},
	)
)

// RecordDraw 记录一次开奖+结算的业务指标
// result: "success" | "fail"
// trigger: "scheduler" | "manual"
func RecordDraw(result, trigger string, started time.Time) {
	res := result
	if res != "success" {
		res = "fail"
	}
	tg := strings.ToLower(strings.TrimSpace(trigger))
	if tg == "" {
		tg = "unknown"
	}
	drawTotal.WithLabelValues(res, tg).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	drawDuration.WithLabelValues(res, tg).Observe(durMs)
}

// RecordSettlement 记录一轮结算的注单数与派彩总额
func RecordSettlement(bets int, payout float64) {
	settledBets.Add(float64(bets))
	payoutAmount.Add(payout)
}
