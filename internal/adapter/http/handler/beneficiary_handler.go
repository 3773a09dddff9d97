package handler

import (
	"net/http"

	"github.com/iho/payrec/internal/adapter/http/dto"
	"github.com/iho/payrec/internal/usecase"
)

// BeneficiaryHandler serves the beneficiary read API.
type BeneficiaryHandler struct {
	beneficiaries *usecase.BeneficiaryUseCase
}

// NewBeneficiaryHandler creates a new BeneficiaryHandler.
func NewBeneficiaryHandler(beneficiaries *usecase.BeneficiaryUseCase) *BeneficiaryHandler {
	return &BeneficiaryHandler{beneficiaries: beneficiaries}
}

// List returns an owner's registered beneficiary accounts.
func (h *BeneficiaryHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "owner_id is required", "")
		return
	}

	limit := parseIntQuery(r, "limit", 50)
	offset := parseIntQuery(r, "offset", 0)

	beneficiaries, err := h.beneficiaries.List(r.Context(), ownerID, limit, offset)
	if err != nil {
		writeError(w, mapDomainError(err), "beneficiary listing failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.BeneficiariesFromDomain(beneficiaries))
}
