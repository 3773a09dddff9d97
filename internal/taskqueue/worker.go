package taskqueue

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/iho/payrec/internal/domain"
)

// Worker polls the store for due tasks and executes them. Parallelism
// comes from running several workers against the same store; claiming
// uses row locks so two workers never pick up the same task.
type Worker struct {
	store          Store
	registry       *Registry
	logger         zerolog.Logger
	interval       time.Duration
	batchSize      int
	visibility     time.Duration
	maxAttempts    int
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	Store          Store
	Registry       *Registry
	Logger         zerolog.Logger
	Interval       time.Duration // polling interval
	BatchSize      int           // tasks claimed per poll
	Visibility     time.Duration // redelivery timer for claimed tasks
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// NewWorker creates a new Worker with defaults for zero config values.
func NewWorker(cfg WorkerConfig) *Worker {
	if cfg.Interval == 0 {
		cfg.Interval = time.Second
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 50
	}
	if cfg.Visibility == 0 {
		cfg.Visibility = 5 * time.Minute
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 25
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 10 * time.Minute
	}

	return &Worker{
		store:          cfg.Store,
		registry:       cfg.Registry,
		logger:         cfg.Logger,
		interval:       cfg.Interval,
		batchSize:      cfg.BatchSize,
		visibility:     cfg.Visibility,
		maxAttempts:    cfg.MaxAttempts,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
	}
}

// Start runs the polling loop until the context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info().
		Dur("interval", w.interval).
		Int("batch_size", w.batchSize).
		Msg("task worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Drain anything already due before the first tick.
	w.processDue(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("task worker shutting down")
			return ctx.Err()
		case <-ticker.C:
			w.processDue(ctx)
		}
	}
}

func (w *Worker) processDue(ctx context.Context) {
	tasks, err := w.store.ClaimDue(ctx, time.Now().UTC(), w.batchSize, w.visibility)
	if err != nil {
		w.logger.Error().Err(err).Msg("claiming due tasks failed")
		return
	}

	for _, task := range tasks {
		w.execute(ctx, task)
	}
}

func (w *Worker) execute(ctx context.Context, task *Task) {
	handler, ok := w.registry.Handler(task.Kind)
	if !ok {
		w.logger.Error().Str("kind", task.Kind).Str("task_id", task.ID).Msg("no handler registered")
		w.fail(ctx, task, "no handler registered for kind")
		return
	}

	start := time.Now()
	_, err := handler(ctx, task.Payload)
	taskDuration.WithLabelValues(task.Kind).Observe(time.Since(start).Seconds())

	switch {
	case err == nil:
		tasksExecuted.WithLabelValues(task.Kind).Inc()
		if err := w.store.MarkDone(ctx, task.ID); err != nil {
			// The task will be redelivered after the visibility timeout;
			// at-least-once means the handler must tolerate that.
			w.logger.Error().Err(err).Str("task_id", task.ID).Msg("marking task done failed")
		}
	case domain.IsNoRetry(err):
		w.logger.Error().
			Err(err).
			Str("kind", task.Kind).
			Str("task_id", task.ID).
			Msg("task failed permanently")
		w.fail(ctx, task, err.Error())
	case task.Attempts+1 >= w.maxAttempts:
		w.logger.Error().
			Err(err).
			Str("kind", task.Kind).
			Str("task_id", task.ID).
			Int("attempts", task.Attempts+1).
			Msg("task exhausted retry budget")
		w.fail(ctx, task, err.Error())
	default:
		delay := w.retryDelay(task.Attempts)
		tasksRetried.WithLabelValues(task.Kind).Inc()
		w.logger.Warn().
			Err(err).
			Str("kind", task.Kind).
			Str("task_id", task.ID).
			Int("attempt", task.Attempts+1).
			Dur("delay", delay).
			Msg("task failed, redelivering")

		if err := w.store.Reschedule(ctx, task.ID, time.Now().UTC().Add(delay), task.Attempts+1, err.Error()); err != nil {
			w.logger.Error().Err(err).Str("task_id", task.ID).Msg("rescheduling task failed")
		}
	}
}

func (w *Worker) fail(ctx context.Context, task *Task, reason string) {
	tasksFailed.WithLabelValues(task.Kind).Inc()
	if err := w.store.MarkFailed(ctx, task.ID, reason); err != nil {
		w.logger.Error().Err(err).Str("task_id", task.ID).Msg("marking task failed failed")
	}
}

// retryDelay computes the exponential backoff delay for the next attempt.
func (w *Worker) retryDelay(attempts int) time.Duration {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = w.initialBackoff
	bo.MaxInterval = w.maxBackoff
	bo.MaxElapsedTime = 0

	delay := bo.NextBackOff()
	for i := 0; i < attempts; i++ {
		delay = bo.NextBackOff()
	}

	return delay
}
