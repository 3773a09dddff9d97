package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iho/payrec/internal/domain"
)

// IDGenerator generates unique task IDs.
type IDGenerator interface {
	Generate() string
}

// Queue schedules tasks onto a Store. It satisfies the scheduler interface
// the usecase layer and the Chain combinator expect.
type Queue struct {
	store Store
	idGen IDGenerator
}

// NewQueue creates a new Queue.
func NewQueue(store Store, idGen IDGenerator) *Queue {
	return &Queue{store: store, idGen: idGen}
}

// Schedule enqueues a task to run as soon as a worker picks it up.
func (q *Queue) Schedule(ctx context.Context, kind string, payload any) error {
	return q.ScheduleAt(ctx, kind, payload, time.Now().UTC())
}

// ScheduleAt enqueues a task to run no earlier than runAt.
func (q *Queue) ScheduleAt(ctx context.Context, kind string, payload any, runAt time.Time) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return domain.NoRetry(fmt.Errorf("marshaling payload for task %s: %w", kind, err))
	}

	now := time.Now().UTC()

	return q.store.Enqueue(ctx, &Task{
		ID:        q.idGen.Generate(),
		Kind:      kind,
		Payload:   raw,
		Status:    TaskStatusPending,
		RunAt:     runAt.UTC(),
		CreatedAt: now,
		UpdatedAt: now,
	})
}

// Stats reports queue counters.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	return q.store.Stats(ctx)
}
