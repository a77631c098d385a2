package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/checkout/internal/domain"
	"github.com/dukerupert/checkout/internal/events"
	"github.com/dukerupert/checkout/internal/memory"
	"github.com/dukerupert/checkout/internal/storetest"
	"github.com/dukerupert/checkout/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type capturePublisher struct {
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, e events.Event) error {
	p.events = append(p.events, e)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCleanup_Run(t *testing.T) {
	ctx := context.Background()
	now := storetest.Base.Add(10 * 24 * time.Hour)
	clock := func() time.Time { return now }

	store := memory.NewSessionStore(domain.WithClock(clock))

	expired := storetest.NewSession(t, "cart-expired", storetest.Base)
	require.NoError(t, store.Save(ctx, expired))

	paid := storetest.NewSession(t, "cart-paid", storetest.Base)
	require.NoError(t, paid.ConfirmPayment("pi_paid"))
	require.NoError(t, store.Save(ctx, paid))

	open := storetest.NewSession(t, "cart-open", now)
	require.NoError(t, store.Save(ctx, open))

	old := storetest.NewSession(t, "cart-old", storetest.Base)
	require.NoError(t, old.Cancel("abandoned"))
	require.NoError(t, store.Save(ctx, old))

	metrics := telemetry.NewBusinessMetrics("test", prometheus.NewRegistry())
	publisher := &capturePublisher{}
	cleanup := NewCleanup(store, CleanupConfig{Retention: 24 * time.Hour}, discardLogger(),
		WithClock(clock),
		WithMetrics(metrics),
		WithPublisher(publisher),
	)

	result, err := cleanup.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, &CleanupResult{Expired: 1, Stuck: 1, Purged: 1}, result)

	got, err := store.Get(ctx, expired.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionCanceled, got.State())
	assert.Equal(t, ExpiredReason, got.CancelReason())

	got, err = store.Get(ctx, paid.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionPaymentConfirmed, got.State())

	got, err = store.Get(ctx, open.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.SessionStarted, got.State())

	_, err = store.Get(ctx, old.ID())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, events.CheckoutCanceled, publisher.events[0].Type)
	assert.Equal(t, expired.ID(), publisher.events[0].SessionID)
	assert.Equal(t, ExpiredReason, publisher.events[0].Reason)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionsCanceled.WithLabelValues("expired")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SessionsPurged))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.JobsProcessed.WithLabelValues(JobTypeExpireSessions)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.JobsProcessed.WithLabelValues(JobTypePurgeSessions)))
}

func TestCleanup_RunTwiceIsIdempotent(t *testing.T) {
	ctx := context.Background()
	clock := func() time.Time { return storetest.Base.Add(time.Hour) }
	store := memory.NewSessionStore(domain.WithClock(clock))

	require.NoError(t, store.Save(ctx, storetest.NewSession(t, "cart-1", storetest.Base)))

	cleanup := NewCleanup(store, CleanupConfig{}, discardLogger(), WithClock(clock))

	first, err := cleanup.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Expired)

	second, err := cleanup.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, &CleanupResult{}, second)
}

func TestCleanup_ConflictIsSkipped(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := domain.NewMockSessionStore(ctrl)
	now := storetest.Base.Add(time.Hour)

	s := storetest.NewSession(t, "cart-1", storetest.Base)

	store.EXPECT().ListExpired(gomock.Any(), now, 100).Return([]*domain.CheckoutSession{s}, nil)
	store.EXPECT().Save(gomock.Any(), s).Return(domain.ErrConflict)
	store.EXPECT().DeleteFinishedBefore(gomock.Any(), now.Add(-7*24*time.Hour)).Return(int64(0), nil)

	publisher := &capturePublisher{}
	cleanup := NewCleanup(store, CleanupConfig{}, discardLogger(),
		WithClock(func() time.Time { return now }),
		WithPublisher(publisher),
	)

	result, err := cleanup.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Expired)
	assert.Empty(t, publisher.events)
}

func TestCleanup_StoreFailures(t *testing.T) {
	now := storetest.Base.Add(time.Hour)
	boom := errors.New("connection reset")

	tests := []struct {
		name    string
		setup   func(store *domain.MockSessionStore)
		jobType string
	}{
		{
			name: "list expired fails",
			setup: func(store *domain.MockSessionStore) {
				store.EXPECT().ListExpired(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, boom)
			},
			jobType: JobTypeExpireSessions,
		},
		{
			name: "save fails",
			setup: func(store *domain.MockSessionStore) {
				s := storetest.NewSession(t, "cart-1", storetest.Base)
				store.EXPECT().ListExpired(gomock.Any(), gomock.Any(), gomock.Any()).Return([]*domain.CheckoutSession{s}, nil)
				store.EXPECT().Save(gomock.Any(), s).Return(domain.Internal(boom, "test.save", "failed to save"))
			},
			jobType: JobTypeExpireSessions,
		},
		{
			name: "purge fails",
			setup: func(store *domain.MockSessionStore) {
				store.EXPECT().ListExpired(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)
				store.EXPECT().DeleteFinishedBefore(gomock.Any(), gomock.Any()).Return(int64(0), boom)
			},
			jobType: JobTypePurgeSessions,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			store := domain.NewMockSessionStore(ctrl)
			tt.setup(store)

			metrics := telemetry.NewBusinessMetrics("test", prometheus.NewRegistry())
			cleanup := NewCleanup(store, CleanupConfig{}, discardLogger(),
				WithClock(func() time.Time { return now }),
				WithMetrics(metrics),
			)

			_, err := cleanup.Run(context.Background())
			require.Error(t, err)
			assert.Equal(t, 1, testutil.CollectAndCount(metrics.JobsFailed))
			assert.Equal(t, 0.0, testutil.ToFloat64(metrics.JobsProcessed.WithLabelValues(tt.jobType)))
		})
	}
}

func TestCleanup_StopsOnCanceledContext(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := domain.NewMockSessionStore(ctrl)

	s := storetest.NewSession(t, "cart-1", storetest.Base)
	store.EXPECT().ListExpired(gomock.Any(), gomock.Any(), gomock.Any()).Return([]*domain.CheckoutSession{s}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	metrics := telemetry.NewBusinessMetrics("test", prometheus.NewRegistry())
	cleanup := NewCleanup(store, CleanupConfig{}, discardLogger(), WithMetrics(metrics))

	_, err := cleanup.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.JobsFailed.WithLabelValues(JobTypeExpireSessions, "context")))
}
