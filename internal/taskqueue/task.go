// Package taskqueue is a durable, at-least-once task substrate backed by
// Postgres. Every pipeline step runs as an independently scheduled task;
// a handler failure is redelivered with backoff unless it is classified
// as permanent via domain.NoRetry.
package taskqueue

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// TaskStatus is the queue-side lifecycle of a task.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusDone    TaskStatus = "done"
	TaskStatusFailed  TaskStatus = "failed"
)

// Task is one unit of work.
type Task struct {
	ID        string
	Kind      string
	Payload   json.RawMessage
	Status    TaskStatus
	RunAt     time.Time
	Attempts  int
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Stats summarizes the queue for introspection endpoints.
type Stats struct {
	Pending int64 `json:"pending"`
	Done    int64 `json:"done"`
	Failed  int64 `json:"failed"`
}

// Store persists tasks. Claiming a due task pushes its run_at into the
// future by the visibility timeout, so a crashed worker's tasks come back
// on their own.
type Store interface {
	Enqueue(ctx context.Context, task *Task) error
	ClaimDue(ctx context.Context, now time.Time, limit int, visibility time.Duration) ([]*Task, error)
	MarkDone(ctx context.Context, id string) error
	Reschedule(ctx context.Context, id string, runAt time.Time, attempts int, lastError string) error
	MarkFailed(ctx context.Context, id string, lastError string) error
	Stats(ctx context.Context) (Stats, error)
}

// Result is whatever a handler wants to expose to a chained follow-up.
type Result any

// Handler executes one task.
type Handler func(ctx context.Context, payload json.RawMessage) (Result, error)

// Registry maps task kinds to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to a task kind. Later registrations win.
func (r *Registry) Register(kind string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = h
}

// Handler looks up the handler for a kind.
func (r *Registry) Handler(kind string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[kind]
	return h, ok
}
