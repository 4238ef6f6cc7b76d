package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartMutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart mutations by operation",
	}, []string{"op"})

	CartMergeRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_merge_retries_total",
		Help: "Cart item inserts that lost a uniqueness race and merged into the existing row",
	})

	JoinCodesIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "join_codes_issued_total",
		Help: "Join codes issued by role",
	}, []string{"role"})

	JoinCodeVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "join_code_verifications_total",
		Help: "Join code verifications by mode and result",
	}, []string{"mode", "result"})

	StaffCodeVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "staff_code_verifications_total",
		Help: "Deterministic staff code verifications by result",
	}, []string{"result"})

	TransferCodesIssuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transfer_codes_issued_total",
		Help: "Transfer code issuance, split by new vs reused",
	}, []string{"outcome"})

	TransfersCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transfers_completed_total",
		Help: "Transfer codes that reached a terminal state",
	}, []string{"status"})

	TransferConfirmConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transfer_confirm_conflicts_total",
		Help: "Confirm attempts rejected because the code was no longer pending",
	})

	OrderConfirmLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_confirm_latency_seconds",
		Help:    "Latency of the confirm transaction",
		Buckets: prometheus.DefBuckets,
	})

	StockDecrementFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_decrement_failures_total",
		Help: "Advisory stock decrements that failed during order confirmation",
	})

	RateLimitedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "code_attempts_rate_limited_total",
		Help: "Code verification attempts rejected by the attempt limiter",
	}, []string{"scope"})

	EventsPublishFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "events_publish_failed_total",
		Help: "Domain events that could not be published",
	}, []string{"event_type"})

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
