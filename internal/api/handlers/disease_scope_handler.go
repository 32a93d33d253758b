package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/coveragecompare/internal/application/services"
	"github.com/zatekoja/coveragecompare/internal/domain/entities"
)

// DiseaseScopeService defines the disease scope operations used by the handler.
type DiseaseScopeService interface {
	CreateGroup(ctx context.Context, group *entities.DiseaseCodeGroup) error
	AttachScope(ctx context.Context, req services.AttachScopeRequest) (*entities.CoverageDiseaseScope, error)
	Resolve(ctx context.Context, canonicalCode, insurer, proposalID string) (*entities.ResolvedScope, error)
}

// DiseaseScopeHandler handles disease code groups and coverage scopes.
type DiseaseScopeHandler struct {
	service DiseaseScopeService
}

// NewDiseaseScopeHandler creates a new disease scope handler.
func NewDiseaseScopeHandler(service DiseaseScopeService) *DiseaseScopeHandler {
	return &DiseaseScopeHandler{service: service}
}

// CreateGroup handles POST /api/disease-groups
func (h *DiseaseScopeHandler) CreateGroup(w http.ResponseWriter, r *http.Request) {
	var group entities.DiseaseCodeGroup
	if !decodeJSON(w, r, &group) {
		return
	}

	if err := h.service.CreateGroup(r.Context(), &group); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, group)
}

// AttachScope handles POST /api/disease-scopes
func (h *DiseaseScopeHandler) AttachScope(w http.ResponseWriter, r *http.Request) {
	var req services.AttachScopeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	scope, err := h.service.AttachScope(r.Context(), req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, scope)
}

// GetScope handles GET /api/disease-scopes and returns the effective code set
func (h *DiseaseScopeHandler) GetScope(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code, insurer := q.Get("canonical_code"), q.Get("insurer")
	if code == "" || insurer == "" {
		respondWithError(w, http.StatusBadRequest, "canonical_code and insurer are required")
		return
	}

	scope, err := h.service.Resolve(r.Context(), code, insurer, q.Get("proposal_id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, scope)
}
