package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	betTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bet_requests_total",
			Help: "Total bet requests by result",
		},
		[]string{"result"},
	)

	betDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bet_request_duration_ms",
			Help:    "Bet request duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result"},
	)

	betSubBets = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bet_sub_bets_per_ticket",
			Help:    "Number of sub bets per accepted ticket",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
		},
	)
)

// RecordBet records business metrics for a bet call.
// result should be "success" or "fail".
func RecordBet(result string, subBetCount int, started time.Time) {
	res := result
	if res != "success" {
		res = "fail"
	}
	betTotal.WithLabelValues(res).Inc()
	durMs := float64(time.Since(started).Milliseconds())
	betDuration.WithLabelValues(res).Observe(durMs)
	if res == "success" {
		betSubBets.Observe(float64(subBetCount))
	}
}
