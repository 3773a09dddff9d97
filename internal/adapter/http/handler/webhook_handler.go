package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/iho/payrec/internal/adapter/http/dto"
	"github.com/iho/payrec/internal/adapter/tasks"
	"github.com/iho/payrec/internal/usecase"
)

// WebhookHandler accepts bank-pushed events. The endpoint only validates
// the envelope and enqueues a durable processing task; all verification
// against the bank's authoritative view happens in the task handler.
type WebhookHandler struct {
	scheduler usecase.TaskScheduler
	logger    zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(scheduler usecase.TaskScheduler, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{scheduler: scheduler, logger: logger}
}

// maxWebhookBody caps the accepted payload size.
const maxWebhookBody = 1 << 20

// HandleBankEvent ingests one bank event. Missing body or transaction id
// is a 400; everything else is acknowledged with 200 so the bank stops
// redelivering, and any further classification happens asynchronously.
func (h *WebhookHandler) HandleBankEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body", err.Error())
		return
	}

	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "empty body", "")
		return
	}

	var envelope struct {
		Event string `json:"event"`
		Data  struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		writeError(w, http.StatusBadRequest, "malformed event", err.Error())
		return
	}

	if envelope.Data.ID == "" {
		writeError(w, http.StatusBadRequest, "missing transaction id", "")
		return
	}

	err = h.scheduler.Schedule(r.Context(), tasks.KindWebhookProcess, tasks.ProcessWebhookPayload{
		Event: body,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("event", envelope.Event).Msg("enqueueing webhook task failed")
		writeError(w, http.StatusInternalServerError, "event not accepted", "")
		return
	}

	h.logger.Info().
		Str("event", envelope.Event).
		Str("bank_transaction_id", envelope.Data.ID).
		Msg("bank event accepted")

	writeJSON(w, http.StatusOK, dto.WebhookAcceptedResponse{Status: "accepted"})
}
