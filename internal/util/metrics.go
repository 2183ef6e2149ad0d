package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of payment orders created",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of rejected or failed checkout attempts",
	}, []string{"reason"})

	PaymentsVerifiedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_verified_total",
		Help: "Total number of successfully verified payments",
	})

	PaymentVerifyRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_verify_rejected_total",
		Help: "Total number of rejected payment verification calls",
	}, []string{"reason"})

	PurchasesCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchases_created_total",
		Help: "Total number of purchases credited",
	}, []string{"source"})

	PurchasesRepairedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchases_repaired_total",
		Help: "Total number of purchases credited by the reconcile pass",
	})

	ListingTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listing_transitions_total",
		Help: "Total number of committed listing moderation transitions",
	}, []string{"action"})

	ListingTransitionsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listing_transitions_rejected_total",
		Help: "Total number of moderation transitions rejected by the state guard",
	}, []string{"action"})

	ReportsFiledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_reports_filed_total",
		Help: "Total number of fraud reports filed",
	}, []string{"severity"})

	ReportsResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fraud_reports_resolved_total",
		Help: "Total number of fraud reports moved to a terminal status",
	}, []string{"outcome"})

	ReportSideEffectWarningsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fraud_report_side_effect_warnings_total",
		Help: "Total number of report approvals whose listing disable failed",
	})

	GatewayRequestLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_request_latency_seconds",
		Help:    "Latency of payment gateway order registration",
		Buckets: prometheus.DefBuckets,
	})

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
