// Package worker runs periodic background jobs.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/checkout/internal/telemetry"
)

// Job is a unit of periodic work.
type Job interface {
	Run(ctx context.Context) error
}

// JobFunc adapts a function to Job.
type JobFunc func(ctx context.Context) error

// Run implements Job.
func (f JobFunc) Run(ctx context.Context) error { return f(ctx) }

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance
	WorkerID string

	// PollInterval is how often the job runs
	PollInterval time.Duration

	// JobTimeout bounds a single run. Zero means PollInterval.
	JobTimeout time.Duration

	// RunOnStart runs the job immediately instead of waiting for the first tick
	RunOnStart bool
}

// Worker runs a job on a fixed interval. A tick that arrives while the
// previous run is still in progress is skipped.
type Worker struct {
	config Config
	job    Job
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

// NewWorker creates a new background worker
func NewWorker(job Job, config Config, logger *slog.Logger) *Worker {
	// Set defaults
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.PollInterval == 0 {
		config.PollInterval = time.Minute
	}
	if config.JobTimeout == 0 {
		config.JobTimeout = config.PollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		config: config,
		job:    job,
		logger: logger.With("worker_id", config.WorkerID),
	}
}

// Start runs the job until the context is cancelled, then waits for an
// in-flight run to finish.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker starting",
		"poll_interval", w.config.PollInterval,
		"job_timeout", w.config.JobTimeout,
	)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	if w.config.RunOnStart {
		w.tick(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shutting down")
			w.wg.Wait()
			return ctx.Err()

		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

// tick starts a run unless one is already in progress.
func (w *Worker) tick(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		w.logger.Debug("previous run still in progress, skipping tick")
		return
	}
	w.running = true
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			w.mu.Lock()
			w.running = false
			w.mu.Unlock()
		}()
		w.runOnce(ctx)
	}()
}

// runOnce runs the job with a timeout. Panics are reported and do not stop
// the worker.
func (w *Worker) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("worker job panicked: %v", r)
			w.logger.Error("job panicked", "panic", r)
			telemetry.CaptureError(err, map[string]interface{}{"worker_id": w.config.WorkerID})
		}
	}()

	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	start := time.Now()
	if err := w.job.Run(jobCtx); err != nil {
		if ctx.Err() != nil {
			return
		}
		w.logger.Error("job failed", "error", err, "duration", time.Since(start))
		telemetry.CaptureError(err, map[string]interface{}{"worker_id": w.config.WorkerID})
		return
	}
	w.logger.Debug("job completed", "duration", time.Since(start))
}
