package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/checkout/internal/domain"
	"github.com/dukerupert/checkout/internal/events"
	"github.com/dukerupert/checkout/internal/telemetry"
	"github.com/getsentry/sentry-go"
)

// Job type constants for cleanup jobs
const (
	JobTypeExpireSessions = "cleanup:expire_sessions"
	JobTypePurgeSessions  = "cleanup:purge_sessions"
)

// ExpiredReason is recorded on sessions canceled by the sweep.
const ExpiredReason = "session expired"

const stuckMessage = "paid checkout session expired without an order"

// CleanupConfig controls one sweep.
type CleanupConfig struct {
	// BatchSize is the maximum number of expired sessions handled per run.
	// Default: 100
	BatchSize int

	// Retention is how long finished sessions are kept before deletion.
	// Default: 7 days
	Retention time.Duration
}

// CleanupResult holds the result of a cleanup run
type CleanupResult struct {
	Expired int   `json:"expired"`
	Stuck   int   `json:"stuck"`
	Skipped int   `json:"skipped"`
	Purged  int64 `json:"purged"`
}

// Cleanup cancels expired checkout sessions and deletes finished ones past
// retention.
type Cleanup struct {
	store     domain.SessionStore
	publisher events.Publisher
	metrics   *telemetry.BusinessMetrics
	logger    *slog.Logger
	config    CleanupConfig
	now       func() time.Time
}

// CleanupOption configures a Cleanup.
type CleanupOption func(*Cleanup)

// WithPublisher publishes checkout.canceled for every expired session.
func WithPublisher(p events.Publisher) CleanupOption {
	return func(c *Cleanup) {
		c.publisher = p
	}
}

// WithMetrics records sweep results.
func WithMetrics(m *telemetry.BusinessMetrics) CleanupOption {
	return func(c *Cleanup) {
		c.metrics = m
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) CleanupOption {
	return func(c *Cleanup) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCleanup creates a cleanup job over store.
func NewCleanup(store domain.SessionStore, config CleanupConfig, logger *slog.Logger, opts ...CleanupOption) *Cleanup {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.Retention <= 0 {
		config.Retention = 7 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Cleanup{
		store:  store,
		config: config,
		logger: logger.With("component", "cleanup"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run performs one sweep: expire, then purge.
func (c *Cleanup) Run(ctx context.Context) (*CleanupResult, error) {
	result := &CleanupResult{}

	if err := c.observe(JobTypeExpireSessions, func() error {
		return c.expireSessions(ctx, result)
	}); err != nil {
		return result, err
	}

	if err := c.observe(JobTypePurgeSessions, func() error {
		return c.purgeSessions(ctx, result)
	}); err != nil {
		return result, err
	}

	if result.Expired > 0 || result.Purged > 0 || result.Stuck > 0 {
		c.logger.Info("cleanup completed",
			"expired", result.Expired,
			"stuck", result.Stuck,
			"skipped", result.Skipped,
			"purged", result.Purged,
		)
	}
	return result, nil
}

// expireSessions cancels started sessions past their expiry. Sessions whose
// payment is confirmed cannot be canceled; they are reported for follow-up.
func (c *Cleanup) expireSessions(ctx context.Context, result *CleanupResult) error {
	now := c.now()

	sessions, err := c.store.ListExpired(ctx, now, c.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list expired sessions: %w", err)
	}

	for _, s := range sessions {
		if err := ctx.Err(); err != nil {
			return err
		}

		if s.State() == domain.SessionPaymentConfirmed {
			result.Stuck++
			c.logger.Warn(stuckMessage,
				"session_id", s.ID(),
				"payment_reference", s.PaymentReference(),
				"expires_at", s.ExpiresAt(),
			)
			telemetry.CaptureMessage(stuckMessage, sentry.LevelWarning, s.ID(), map[string]interface{}{
				"payment_reference": s.PaymentReference(),
				"expires_at":        s.ExpiresAt(),
			})
			continue
		}

		if err := s.Cancel(ExpiredReason); err != nil {
			result.Skipped++
			c.logger.Warn("failed to cancel expired session", "session_id", s.ID(), "error", err)
			continue
		}
		if err := c.store.Save(ctx, s); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				// Someone else moved it since we listed it.
				result.Skipped++
				continue
			}
			return fmt.Errorf("failed to save expired session %s: %w", s.ID(), err)
		}

		result.Expired++
		if c.metrics != nil {
			c.metrics.SessionsCanceled.WithLabelValues("expired").Inc()
		}
		c.publish(ctx, s)
	}
	return nil
}

func (c *Cleanup) purgeSessions(ctx context.Context, result *CleanupResult) error {
	cutoff := c.now().Add(-c.config.Retention)

	n, err := c.store.DeleteFinishedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to delete finished sessions: %w", err)
	}

	result.Purged = n
	if c.metrics != nil {
		c.metrics.SessionsPurged.Add(float64(n))
	}
	return nil
}

func (c *Cleanup) publish(ctx context.Context, s *domain.CheckoutSession) {
	if c.publisher == nil {
		return
	}
	evt := events.Event{
		Type:          events.CheckoutCanceled,
		SessionID:     s.ID(),
		PaymentMethod: string(s.PaymentMethod()),
		TotalCents:    s.TotalCents(),
		Reason:        s.CancelReason(),
		OccurredAt:    c.now(),
	}
	if err := c.publisher.Publish(ctx, evt); err != nil {
		c.logger.Warn("failed to publish session event", "session_id", s.ID(), "error", err)
	}
}

// observe times fn and records its outcome under jobType.
func (c *Cleanup) observe(jobType string, fn func() error) error {
	start := time.Now()
	err := fn()
	if c.metrics == nil {
		return err
	}

	c.metrics.JobDuration.WithLabelValues(jobType).Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.JobsFailed.WithLabelValues(jobType, errorType(err)).Inc()
		return err
	}
	c.metrics.JobsProcessed.WithLabelValues(jobType).Inc()
	return nil
}

func errorType(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "context"
	default:
		return domain.ErrorCode(err)
	}
}
