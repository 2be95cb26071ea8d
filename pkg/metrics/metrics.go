package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// OrdersProcessed counts accepted orders by side (buy/sell)
var OrdersProcessed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dexter_orders_processed_total",
		Help: "Total number of orders accepted into the book",
	},
	[]string{"side"},
)

// OrdersRejected counts orders that failed intake validation
var OrdersRejected = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "dexter_orders_rejected_total",
		Help: "Total number of orders rejected at intake",
	},
)

// Matches counts crossing pairs removed from the book, by the path that found them
var Matches = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dexter_matches_total",
		Help: "Total number of matched bid/ask pairs",
	},
	[]string{"source"},
)

// PoolSwaps counts liquidity pool fallbacks by result (filled/rejected/invariant)
var PoolSwaps = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dexter_pool_swaps_total",
		Help: "Total number of liquidity pool swap attempts",
	},
	[]string{"result"},
)

// Settlements counts emitted settlement reports by outcome
var Settlements = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dexter_settlements_total",
		Help: "Total number of settlement reports emitted",
	},
	[]string{"outcome"},
)

// SettlementLatency records time from acceptance to settlement report
var SettlementLatency = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "dexter_settlement_latency_seconds",
		Help:    "Latency in seconds between order acceptance and its settlement report",
		Buckets: prometheus.DefBuckets,
	},
)

// Pool reserve gauges
var (
	PoolReserve = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dexter_pool_reserve",
			Help: "Current liquidity pool reserve per token side",
		},
		[]string{"token"},
	)

	RestingOrders = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dexter_resting_orders",
			Help: "Number of orders resting in the book per side",
		},
		[]string{"side"},
	)
)

func init() {
	prometheus.MustRegister(OrdersProcessed, OrdersRejected, Matches, PoolSwaps)
	prometheus.MustRegister(Settlements, SettlementLatency, PoolReserve, RestingOrders)
}
