package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/payrec/internal/adapter/http/dto"
	"github.com/iho/payrec/internal/usecase"
)

// TransactionHandler serves the transaction read API.
type TransactionHandler struct {
	transactions *usecase.TransactionUseCase
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(transactions *usecase.TransactionUseCase) *TransactionHandler {
	return &TransactionHandler{transactions: transactions}
}

// Get returns one transaction by id.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	t, err := h.transactions.Get(r.Context(), id)
	if err != nil {
		writeError(w, mapDomainError(err), "transaction lookup failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionFromDomain(t))
}

// List returns an owner's transactions.
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "owner_id is required", "")
		return
	}

	limit := parseIntQuery(r, "limit", 50)
	offset := parseIntQuery(r, "offset", 0)

	transactions, err := h.transactions.List(r.Context(), ownerID, limit, offset)
	if err != nil {
		writeError(w, mapDomainError(err), "transaction listing failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.TransactionsFromDomain(transactions))
}
