package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/payrec/internal/domain"
)

type memStore struct {
	mu    sync.Mutex
	tasks map[string]*Task
	seq   int
}

func newMemStore() *memStore {
	return &memStore{tasks: make(map[string]*Task)}
}

func (s *memStore) Enqueue(ctx context.Context, task *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *task
	s.tasks[task.ID] = &cp
	return nil
}

func (s *memStore) ClaimDue(ctx context.Context, now time.Time, limit int, visibility time.Duration) ([]*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*Task
	for _, t := range s.tasks {
		if t.Status == TaskStatusPending && !t.RunAt.After(now) && len(due) < limit {
			t.RunAt = now.Add(visibility)
			cp := *t
			due = append(due, &cp)
		}
	}

	return due, nil
}

func (s *memStore) MarkDone(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id].Status = TaskStatusDone
	return nil
}

func (s *memStore) Reschedule(ctx context.Context, id string, runAt time.Time, attempts int, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tasks[id]
	t.RunAt = runAt
	t.Attempts = attempts
	t.LastError = lastError
	return nil
}

func (s *memStore) MarkFailed(ctx context.Context, id string, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.tasks[id]
	t.Status = TaskStatusFailed
	t.LastError = lastError
	return nil
}

func (s *memStore) Stats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Stats
	for _, t := range s.tasks {
		switch t.Status {
		case TaskStatusPending:
			st.Pending++
		case TaskStatusDone:
			st.Done++
		case TaskStatusFailed:
			st.Failed++
		}
	}

	return st, nil
}

func (s *memStore) get(id string) Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.tasks[id]
}

type seqGen struct{ n int }

func (g *seqGen) Generate() string {
	g.n++
	return "task-" + string(rune('0'+g.n))
}

func newTestWorker(store Store, registry *Registry) *Worker {
	return NewWorker(WorkerConfig{
		Store:    store,
		Registry: registry,
		Logger:   zerolog.Nop(),
	})
}

func TestWorker_ExecutesAndMarksDone(t *testing.T) {
	store := newMemStore()
	registry := NewRegistry()

	var got string
	registry.Register("echo", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		got = string(payload)
		return nil, nil
	})

	q := NewQueue(store, &seqGen{})
	if err := q.Schedule(context.Background(), "echo", map[string]string{"k": "v"}); err != nil {
		t.Fatalf("schedule failed: %v", err)
	}

	w := newTestWorker(store, registry)
	w.processDue(context.Background())

	if got != `{"k":"v"}` {
		t.Errorf("handler saw payload %q", got)
	}

	if st := store.get("task-1"); st.Status != TaskStatusDone {
		t.Errorf("expected done, got %s", st.Status)
	}
}

func TestWorker_NoRetryStopsRedelivery(t *testing.T) {
	store := newMemStore()
	registry := NewRegistry()

	calls := 0
	registry.Register("boom", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		calls++
		return nil, domain.NoRetry(errors.New("bad input"))
	})

	q := NewQueue(store, &seqGen{})
	if err := q.Schedule(context.Background(), "boom", nil); err != nil {
		t.Fatalf("schedule failed: %v", err)
	}

	w := newTestWorker(store, registry)
	w.processDue(context.Background())
	w.processDue(context.Background())

	if calls != 1 {
		t.Errorf("permanently failed task was executed %d times", calls)
	}

	if st := store.get("task-1"); st.Status != TaskStatusFailed {
		t.Errorf("expected failed, got %s", st.Status)
	}
}

func TestWorker_RetryableErrorReschedules(t *testing.T) {
	store := newMemStore()
	registry := NewRegistry()

	registry.Register("flaky", func(ctx context.Context, payload json.RawMessage) (Result, error) {
		return nil, errors.New("transient")
	})

	q := NewQueue(store, &seqGen{})
	if err := q.Schedule(context.Background(), "flaky", nil); err != nil {
		t.Fatalf("schedule failed: %v", err)
	}

	w := newTestWorker(store, registry)
	w.processDue(context.Background())

	st := store.get("task-1")
	if st.Status != TaskStatusPending {
		t.Errorf("expected pending for redelivery, got %s", st.Status)
	}

	if st.Attempts != 1 {
		t.Errorf("expected 1 attempt recorded, got %d", st.Attempts)
	}

	if !st.RunAt.After(time.Now()) {
		t.Error("expected redelivery pushed into the future")
	}
}

func TestWorker_UnknownKindFailsPermanently(t *testing.T) {
	store := newMemStore()

	q := NewQueue(store, &seqGen{})
	if err := q.Schedule(context.Background(), "nobody-home", nil); err != nil {
		t.Fatalf("schedule failed: %v", err)
	}

	w := newTestWorker(store, NewRegistry())
	w.processDue(context.Background())

	if st := store.get("task-1"); st.Status != TaskStatusFailed {
		t.Errorf("expected failed, got %s", st.Status)
	}
}

func TestChain_GuardGatesFollowUp(t *testing.T) {
	store := newMemStore()
	q := NewQueue(store, &seqGen{})

	inner := func(ctx context.Context, payload json.RawMessage) (Result, error) {
		return string(payload), nil
	}

	chained := Chain(inner, q, NextTask{
		Kind:    "publish",
		Payload: func(res Result) any { return map[string]any{"from": res} },
	}, func(res Result) bool {
		return res == `"go"`
	})

	// Guard rejects: no follow-up scheduled.
	if _, err := chained(context.Background(), json.RawMessage(`"stop"`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st, _ := store.Stats(context.Background())
	if st.Pending != 0 {
		t.Fatalf("guard rejected but %d follow-ups scheduled", st.Pending)
	}

	// Guard accepts: exactly one follow-up.
	if _, err := chained(context.Background(), json.RawMessage(`"go"`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st, _ = store.Stats(context.Background())
	if st.Pending != 1 {
		t.Fatalf("expected one follow-up task, got %d", st.Pending)
	}
}

func TestChain_ErrorSkipsFollowUp(t *testing.T) {
	store := newMemStore()
	q := NewQueue(store, &seqGen{})

	inner := func(ctx context.Context, payload json.RawMessage) (Result, error) {
		return nil, errors.New("nope")
	}

	chained := Chain(inner, q, NextTask{
		Kind:    "publish",
		Payload: func(res Result) any { return nil },
	}, func(res Result) bool { return true })

	if _, err := chained(context.Background(), nil); err == nil {
		t.Fatal("expected error to propagate")
	}

	st, _ := store.Stats(context.Background())
	if st.Pending != 0 {
		t.Fatalf("failed task scheduled %d follow-ups", st.Pending)
	}
}
