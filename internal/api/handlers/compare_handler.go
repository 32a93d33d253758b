package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/zatekoja/coveragecompare/internal/application/services"
	"github.com/zatekoja/coveragecompare/internal/recall"
)

// CompareService answers which canonical code a coverage compares under.
type CompareService interface {
	Resolve(ctx context.Context, insurer, coverageName, proposalID string) (*services.CompareResult, error)
}

// Recaller looks a coverage name up in the alias index.
type Recaller interface {
	Recall(ctx context.Context, text, insurer string) (*recall.Result, error)
}

// CompareHandler handles resolve and recall lookups.
type CompareHandler struct {
	compare CompareService
	recall  Recaller
}

// NewCompareHandler creates a new compare handler.
func NewCompareHandler(compare CompareService, recaller Recaller) *CompareHandler {
	return &CompareHandler{compare: compare, recall: recaller}
}

// Resolve handles GET /api/resolve
func (h *CompareHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	insurer := strings.TrimSpace(q.Get("insurer"))
	name := q.Get("coverage_name")
	if insurer == "" || strings.TrimSpace(name) == "" {
		respondWithError(w, http.StatusBadRequest, "insurer and coverage_name are required")
		return
	}

	result, err := h.compare.Resolve(r.Context(), insurer, name, q.Get("proposal_id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// Recall handles GET /api/recall. A miss is an empty code list, not an error.
func (h *CompareHandler) Recall(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("q")
	if strings.TrimSpace(text) == "" {
		respondWithError(w, http.StatusBadRequest, "q is required")
		return
	}

	result, err := h.recall.Recall(r.Context(), text, strings.TrimSpace(r.URL.Query().Get("insurer")))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if result.Codes == nil {
		result.Codes = []string{}
	}
	respondWithJSON(w, http.StatusOK, result)
}
