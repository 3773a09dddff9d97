package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/payrec/internal/taskqueue"
)

// TaskRepository implements taskqueue.Store. Claiming uses FOR UPDATE
// SKIP LOCKED so multiple workers can poll the same table without
// contending, and pushes run_at forward by the visibility timeout so a
// crashed worker's tasks redeliver on their own.
type TaskRepository struct {
	pool    *pgxpool.Pool
	retrier *Retrier
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool, retrier *Retrier) *TaskRepository {
	return &TaskRepository{pool: pool, retrier: retrier}
}

// Enqueue inserts a pending task.
func (r *TaskRepository) Enqueue(ctx context.Context, task *taskqueue.Task) error {
	return r.retrier.Retry(ctx, func() error {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO tasks (id, kind, payload, status, run_at, attempts, last_error, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			task.ID, task.Kind, []byte(task.Payload), string(task.Status),
			timeToPgTimestamptz(task.RunAt), task.Attempts, task.LastError,
			timeToPgTimestamptz(task.CreatedAt), timeToPgTimestamptz(task.UpdatedAt),
		)

		return err
	})
}

// ClaimDue atomically claims up to limit due tasks.
func (r *TaskRepository) ClaimDue(ctx context.Context, now time.Time, limit int, visibility time.Duration) ([]*taskqueue.Task, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE tasks SET run_at = $3, updated_at = $1
		WHERE id IN (
			SELECT id FROM tasks
			WHERE status = 'pending' AND run_at <= $1
			ORDER BY run_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, kind, payload, status, attempts, last_error, created_at`,
		timeToPgTimestamptz(now), limit, timeToPgTimestamptz(now.Add(visibility)),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*taskqueue.Task
	for rows.Next() {
		var (
			task      taskqueue.Task
			payload   []byte
			status    string
			createdAt pgtype.Timestamptz
		)

		err := rows.Scan(&task.ID, &task.Kind, &payload, &status, &task.Attempts, &task.LastError, &createdAt)
		if err != nil {
			return nil, err
		}

		task.Payload = payload
		task.Status = taskqueue.TaskStatus(status)
		task.RunAt = now.Add(visibility)
		task.CreatedAt = createdAt.Time
		task.UpdatedAt = now

		out = append(out, &task)
	}

	return out, rows.Err()
}

// MarkDone finishes a task.
func (r *TaskRepository) MarkDone(ctx context.Context, id string) error {
	return r.retrier.Retry(ctx, func() error {
		_, err := r.pool.Exec(ctx,
			`UPDATE tasks SET status = 'done', updated_at = now() WHERE id = $1`, id)
		return err
	})
}

// Reschedule pushes a task back onto the queue for a later retry.
func (r *TaskRepository) Reschedule(ctx context.Context, id string, runAt time.Time, attempts int, lastError string) error {
	return r.retrier.Retry(ctx, func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE tasks SET run_at = $2, attempts = $3, last_error = $4, updated_at = now()
			WHERE id = $1`,
			id, timeToPgTimestamptz(runAt), attempts, lastError)
		return err
	})
}

// MarkFailed parks a task permanently.
func (r *TaskRepository) MarkFailed(ctx context.Context, id string, lastError string) error {
	return r.retrier.Retry(ctx, func() error {
		_, err := r.pool.Exec(ctx, `
			UPDATE tasks SET status = 'failed', last_error = $2, updated_at = now()
			WHERE id = $1`,
			id, lastError)
		return err
	})
}

// Stats counts tasks per status.
func (r *TaskRepository) Stats(ctx context.Context) (taskqueue.Stats, error) {
	var stats taskqueue.Stats

	err := r.pool.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE status = 'pending'),
			count(*) FILTER (WHERE status = 'done'),
			count(*) FILTER (WHERE status = 'failed')
		FROM tasks`,
	).Scan(&stats.Pending, &stats.Done, &stats.Failed)

	return stats, err
}
