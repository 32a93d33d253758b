package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/coveragecompare/internal/application/services"
	"github.com/zatekoja/coveragecompare/internal/domain/entities"
)

// DecisionService defines the decision operations used by the handler.
type DecisionService interface {
	Decide(ctx context.Context, req services.DecideRequest) (*entities.CancerCanonicalDecision, error)
	Stats(ctx context.Context) (entities.DecisionStats, error)
}

// DecisionHandler handles canonical decisions.
type DecisionHandler struct {
	service DecisionService
}

// NewDecisionHandler creates a new decision handler.
func NewDecisionHandler(service DecisionService) *DecisionHandler {
	return &DecisionHandler{service: service}
}

// Decide handles POST /api/decisions
func (h *DecisionHandler) Decide(w http.ResponseWriter, r *http.Request) {
	var req services.DecideRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	decision, err := h.service.Decide(r.Context(), req)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, decision)
}

// Stats handles GET /api/decisions/stats
func (h *DecisionHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, stats)
}
