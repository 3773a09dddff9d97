package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iho/payrec/internal/usecase"
)

// DebtorAccountHandler serves the debtor account read model.
type DebtorAccountHandler struct {
	debtors *usecase.DebtorAccountUseCase
}

// NewDebtorAccountHandler creates a new DebtorAccountHandler.
func NewDebtorAccountHandler(debtors *usecase.DebtorAccountUseCase) *DebtorAccountHandler {
	return &DebtorAccountHandler{debtors: debtors}
}

// Get returns the debtor bank account for an owner.
func (h *DebtorAccountHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")

	account, err := h.debtors.GetByOwner(r.Context(), ownerID)
	if err != nil {
		writeError(w, mapDomainError(err), "debtor account lookup failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, account)
}
