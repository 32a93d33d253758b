package handlers

import (
	"context"
	"net/http"

	"github.com/zatekoja/coveragecompare/internal/application/services"
	"github.com/zatekoja/coveragecompare/internal/domain/entities"
)

const maxIngestRows = 1000

// UniverseService defines the ingestion operations used by the handler.
type UniverseService interface {
	IngestBatch(ctx context.Context, candidates []entities.UniverseRowCandidate) ([]*entities.IngestResult, error)
}

// ProposalReResolver re-resolves the rows of one proposal.
type ProposalReResolver interface {
	ReResolveProposal(ctx context.Context, insurer, proposalID string) (*services.ReResolveReport, error)
}

// UniverseHandler handles universe row ingestion.
type UniverseHandler struct {
	service    UniverseService
	reresolver ProposalReResolver
}

// NewUniverseHandler creates a new universe handler.
func NewUniverseHandler(service UniverseService, reresolver ProposalReResolver) *UniverseHandler {
	return &UniverseHandler{service: service, reresolver: reresolver}
}

type ingestRequest struct {
	Rows []entities.UniverseRowCandidate `json:"rows"`
}

type ingestResponse struct {
	Results []*entities.IngestResult      `json:"results"`
	Summary map[entities.IngestStatus]int `json:"summary"`
}

// IngestRows handles POST /api/universe/rows
func (h *UniverseHandler) IngestRows(w http.ResponseWriter, r *http.Request) {
	var payload ingestRequest
	if !decodeJSON(w, r, &payload) {
		return
	}
	if len(payload.Rows) == 0 {
		respondWithError(w, http.StatusBadRequest, "rows are required")
		return
	}
	if len(payload.Rows) > maxIngestRows {
		respondWithError(w, http.StatusBadRequest, "too many rows in one batch")
		return
	}

	results, err := h.service.IngestBatch(r.Context(), payload.Rows)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	summary := map[entities.IngestStatus]int{}
	for _, res := range results {
		summary[res.Status]++
	}
	respondWithJSON(w, http.StatusOK, ingestResponse{Results: results, Summary: summary})
}

// ReResolveProposal handles POST /api/universe/proposals/{insurer}/{proposalId}/reresolve
func (h *UniverseHandler) ReResolveProposal(w http.ResponseWriter, r *http.Request) {
	insurer := r.PathValue("insurer")
	proposalID := r.PathValue("proposalId")
	if insurer == "" || proposalID == "" {
		respondWithError(w, http.StatusBadRequest, "insurer and proposal id are required")
		return
	}

	report, err := h.reresolver.ReResolveProposal(r.Context(), insurer, proposalID)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}
