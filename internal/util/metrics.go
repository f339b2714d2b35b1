package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_rejected_total",
		Help: "Total number of order creations rejected",
	}, []string{"reason"})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Total number of committed order status transitions",
	}, []string{"from", "to"})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	})

	OrdersReactivatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_reactivated_total",
		Help: "Total number of cancelled orders reactivated",
	})

	ReactivationsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_reactivations_rejected_total",
		Help: "Total number of reactivations rejected by the stock ledger",
	}, []string{"reason"})

	StockDeductionsSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_deductions_skipped_total",
		Help: "Orders accepted without a stock deduction",
	}, []string{"reason"})

	StockAdjustmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_adjustments_total",
		Help: "Total number of manual stock adjustments",
	}, []string{"operation", "result"})

	StockMutationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_mutation_latency_seconds",
		Help:    "Latency of locked stock ledger mutations",
		Buckets: prometheus.DefBuckets,
	})

	StockQuantity = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "stock_quantity",
		Help: "Last committed stock quantity per size",
	}, []string{"size"})

	AvailabilityCacheWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "availability_cache_writes_total",
		Help: "Availability projection writes by outcome",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
