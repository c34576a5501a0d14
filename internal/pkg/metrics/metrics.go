package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradevault_trades_total",
		Help: "Trade executions by outcome",
	}, []string{"outcome"})

	RiskRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradevault_risk_rejects_total",
		Help: "Operations rejected by the vault, by reason",
	}, []string{"reason"})

	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradevault_events_total",
		Help: "Committed notifications by type",
	}, []string{"type"})

	CustodyVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tradevault_custody_volume",
		Help: "Raw asset units moved out of the vault, by asset and kind",
	}, []string{"asset", "kind"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tradevault_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
