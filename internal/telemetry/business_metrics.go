package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for the checkout funnel and the
// background work around it.
type BusinessMetrics struct {
	// Checkout funnel
	CheckoutStarted     *prometheus.CounterVec
	CheckoutCompleted   *prometheus.CounterVec
	CheckoutFailed      *prometheus.CounterVec
	CheckoutValidations *prometheus.CounterVec
	CheckoutDuration    *prometheus.HistogramVec

	// Payments
	PaymentAttempts  *prometheus.CounterVec
	PaymentSucceeded *prometheus.CounterVec
	PaymentFailed    *prometheus.CounterVec
	Compensations    *prometheus.CounterVec

	// Orders
	OrderValue *prometheus.HistogramVec

	// Best-effort finalize steps
	FinalizeFailures *prometheus.CounterVec

	// Sessions
	SessionsCanceled *prometheus.CounterVec
	SessionsPurged   prometheus.Counter

	// Background jobs
	JobsProcessed *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec

	// External API performance
	PaymentAPILatency *prometheus.HistogramVec
	BreakerState      *prometheus.GaugeVec
}

// NewBusinessMetrics creates the business metrics and registers them with reg.
func NewBusinessMetrics(namespace string, reg prometheus.Registerer) *BusinessMetrics {
	if namespace == "" {
		namespace = "checkout"
	}

	subsystem := "business"
	factory := promauto.With(reg)

	m := &BusinessMetrics{
		// =======================================================================
		// Checkout Funnel
		// =======================================================================
		CheckoutStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_started_total",
				Help:      "Total checkout executions started",
			},
			[]string{"payment_method"},
		),
		CheckoutCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_completed_total",
				Help:      "Total checkouts that produced a paid order",
			},
			[]string{"payment_method", "customer_type"}, // customer_type: registered, guest
		),
		CheckoutFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_failed_total",
				Help:      "Total checkouts that failed, by error code",
			},
			[]string{"code"},
		),
		CheckoutValidations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_validations_total",
				Help:      "Total checkout pre-validations by result",
			},
			[]string{"result"}, // result: ok, rejected
		),
		CheckoutDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "checkout_duration_seconds",
				Help:      "Checkout execution duration",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"outcome"}, // outcome: completed, failed
		),

		// =======================================================================
		// Payments
		// =======================================================================
		PaymentAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_attempts_total",
				Help:      "Total payment attempts",
			},
			[]string{"payment_method"},
		),
		PaymentSucceeded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_succeeded_total",
				Help:      "Total payments accepted by the provider",
			},
			[]string{"payment_method"},
		),
		PaymentFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_failed_total",
				Help:      "Total payments rejected or errored",
			},
			[]string{"payment_method"},
		),
		Compensations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "compensations_total",
				Help:      "Total order cancellations run after a failed payment",
			},
			[]string{"result"}, // result: succeeded, failed
		),

		// =======================================================================
		// Orders
		// =======================================================================
		OrderValue: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "order_value",
				Help:      "Checked out order value in major currency units",
				Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
			},
			[]string{"payment_method"},
		),

		FinalizeFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "finalize_failures_total",
				Help:      "Total best-effort finalize steps that failed after payment",
			},
			[]string{"step"}, // step: order_status, session_save, clear_cart, publish
		),

		// =======================================================================
		// Sessions
		// =======================================================================
		SessionsCanceled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sessions_canceled_total",
				Help:      "Total checkout sessions canceled",
			},
			[]string{"reason"}, // reason: payment_failed, expired, requested
		),
		SessionsPurged: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "sessions_purged_total",
				Help:      "Total finished checkout sessions deleted after retention",
			},
		),

		// =======================================================================
		// Background Jobs
		// =======================================================================
		JobsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "jobs_processed_total",
				Help:      "Total background jobs processed",
			},
			[]string{"job_type"},
		),
		JobsFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "jobs_failed_total",
				Help:      "Total background job failures",
			},
			[]string{"job_type", "error_type"},
		),
		JobDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "job_duration_seconds",
				Help:      "Background job execution duration",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"job_type"},
		),

		// =======================================================================
		// External API Performance
		// =======================================================================
		PaymentAPILatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "payment_api_duration_seconds",
				Help:      "Payment provider call duration",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"provider", "operation"}, // operation: process, confirm, cancel
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),
	}

	return m
}

// Global instance for processes that wire a single registry
var Business *BusinessMetrics

// InitBusinessMetrics initializes the global business metrics instance on the
// default registry.
func InitBusinessMetrics(namespace string) *BusinessMetrics {
	Business = NewBusinessMetrics(namespace, prometheus.DefaultRegisterer)
	return Business
}
