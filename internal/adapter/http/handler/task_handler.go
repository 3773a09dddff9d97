package handler

import (
	"net/http"

	"github.com/iho/payrec/internal/adapter/http/dto"
	"github.com/iho/payrec/internal/taskqueue"
)

// TaskHandler exposes queue introspection.
type TaskHandler struct {
	queue *taskqueue.Queue
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(queue *taskqueue.Queue) *TaskHandler {
	return &TaskHandler{queue: queue}
}

// Stats reports task counts per status.
func (h *TaskHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.queue.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "stats unavailable", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.TaskStatsFromDomain(stats))
}
