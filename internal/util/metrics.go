package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConfirmationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_confirmations_total",
		Help: "Total number of successful order confirmations",
	}, []string{"trigger"})

	ConfirmationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_confirmations_failed_total",
		Help: "Total number of failed order confirmations",
	}, []string{"reason"})

	DuplicateConfirmationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_confirmations_duplicate_total",
		Help: "Confirmations short-circuited because the intent was already complete",
	})

	CaptureAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_capture_attempts_total",
		Help: "Total number of payment capture attempts",
	})

	CaptureSuccessTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_capture_success_total",
		Help: "Total number of successful payment captures",
	})

	CaptureFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_capture_failed_total",
		Help: "Total number of failed payment captures",
	}, []string{"reason"})

	CaptureLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_capture_latency_seconds",
		Help:    "Latency of payment capture calls",
		Buckets: prometheus.DefBuckets,
	})

	OrdersPostedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_posted_total",
		Help: "Total number of finalized orders persisted",
	}, []string{"payment_type"})

	FanoutFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "confirmation_fanout_failures_total",
		Help: "Best-effort fan-out steps that failed after a confirmed order",
	}, []string{"step"})

	RefundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_refunds_total",
		Help: "Total number of refunded orders",
	})

	NotificationsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "push_notifications_sent_total",
		Help: "Total number of push notifications sent to devices",
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
