package taskqueue

import (
	"context"
	"encoding/json"
)

// Scheduler enqueues follow-on tasks.
type Scheduler interface {
	Schedule(ctx context.Context, kind string, payload any) error
}

// NextTask describes the follow-on task of a chain. Payload derives the
// follow-on payload from the producing handler's result.
type NextTask struct {
	Kind    string
	Payload func(Result) any
}

// Chain wraps a handler so that, when it succeeds and guard accepts its
// result, the follow-on task is enqueued. The guard is what keeps a
// downstream consumer from observing a half-applied state: the webhook
// dispatcher gates its publish continuation on the completion write being
// visible in its own result.
func Chain(h Handler, scheduler Scheduler, next NextTask, guard func(Result) bool) Handler {
	return func(ctx context.Context, payload json.RawMessage) (Result, error) {
		res, err := h(ctx, payload)
		if err != nil {
			return res, err
		}

		if guard != nil && !guard(res) {
			return res, nil
		}

		if err := scheduler.Schedule(ctx, next.Kind, next.Payload(res)); err != nil {
			// Scheduling is part of the task; redeliver the whole unit.
			return res, err
		}

		return res, nil
	}
}
