package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/zatekoja/coveragecompare/internal/application/services"
	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/providers"
)

// WorkbenchService defines the admin queue operations used by the handler.
type WorkbenchService interface {
	ListEvents(ctx context.Context, filter entities.EventFilter) ([]*entities.MappingEvent, int, error)
	GetEvent(ctx context.Context, id string) (*services.EventDetail, error)
	Approve(ctx context.Context, cmd *services.ApproveCommand) (*entities.MappingEvent, error)
	Reject(ctx context.Context, cmd *services.RejectCommand) (*entities.MappingEvent, error)
	Snooze(ctx context.Context, cmd *services.SnoozeCommand) (*entities.MappingEvent, error)
	AddSuggestions(ctx context.Context, eventID string, candidates []entities.EntityCandidate) (*services.SuggestionReport, error)
	ListAudit(ctx context.Context, filter entities.AuditFilter) ([]*entities.AuditLogEntry, error)
}

// CanonicalSearcher backs the workbench code picker.
type CanonicalSearcher interface {
	Search(ctx context.Context, query, family string, limit int) ([]providers.CanonicalSearchHit, error)
}

// WorkbenchHandler handles the mapping event admin endpoints.
type WorkbenchHandler struct {
	service WorkbenchService
	search  CanonicalSearcher
}

// NewWorkbenchHandler creates a new workbench handler.
func NewWorkbenchHandler(service WorkbenchService, search CanonicalSearcher) *WorkbenchHandler {
	return &WorkbenchHandler{service: service, search: search}
}

type approveRequest struct {
	CanonicalCode  string                  `json:"canonical_code"`
	ResolutionType entities.ResolutionType `json:"resolution_type"`
	Note           string                  `json:"note"`
	Actor          string                  `json:"actor"`
	EvidenceRefs   []string                `json:"evidence_refs"`
}

type transitionRequest struct {
	Note  string     `json:"note"`
	Actor string     `json:"actor"`
	Until *time.Time `json:"until,omitempty"`
}

type suggestionsRequest struct {
	Candidates []entities.EntityCandidate `json:"candidates"`
}

type eventListResponse struct {
	Events []*entities.MappingEvent `json:"events"`
	Total  int                      `json:"total"`
	Limit  int                      `json:"limit"`
	Offset int                      `json:"offset"`
}

// ListEvents handles GET /api/admin/mapping-events
func (h *WorkbenchHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter := entities.EventFilter{
		State:   entities.EventState(strings.ToUpper(r.URL.Query().Get("state"))),
		Insurer: r.URL.Query().Get("insurer"),
	}
	switch filter.State {
	case "", entities.EventStateOpen, entities.EventStateApproved, entities.EventStateRejected, entities.EventStateSnoozed:
	default:
		respondWithError(w, http.StatusBadRequest, "unknown event state")
		return
	}

	var err error
	if filter.Limit, err = queryInt(r, "limit", 50); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	events, total, err := h.service.ListEvents(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if events == nil {
		events = []*entities.MappingEvent{}
	}
	respondWithJSON(w, http.StatusOK, eventListResponse{
		Events: events,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// GetEvent handles GET /api/admin/mapping-events/{id}
func (h *WorkbenchHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	detail, err := h.service.GetEvent(r.Context(), r.PathValue("id"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, detail)
}

// Approve handles POST /api/admin/mapping-events/{id}/approve
func (h *WorkbenchHandler) Approve(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cmd := services.NewApproveCommand(r.PathValue("id"), strings.TrimSpace(req.CanonicalCode), req.ResolutionType,
		req.Note, actorOf(r, req.Actor), req.EvidenceRefs)
	event, err := h.service.Approve(r.Context(), cmd)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, event)
}

// Reject handles POST /api/admin/mapping-events/{id}/reject
func (h *WorkbenchHandler) Reject(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	event, err := h.service.Reject(r.Context(), services.NewRejectCommand(r.PathValue("id"), req.Note, actorOf(r, req.Actor)))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, event)
}

// Snooze handles POST /api/admin/mapping-events/{id}/snooze
func (h *WorkbenchHandler) Snooze(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	cmd := services.NewSnoozeCommand(r.PathValue("id"), req.Note, actorOf(r, req.Actor), req.Until)
	event, err := h.service.Snooze(r.Context(), cmd)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, event)
}

// AddSuggestions handles POST /api/admin/mapping-events/{id}/suggestions
func (h *WorkbenchHandler) AddSuggestions(w http.ResponseWriter, r *http.Request) {
	var req suggestionsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Candidates) == 0 {
		respondWithError(w, http.StatusBadRequest, "candidates are required")
		return
	}

	report, err := h.service.AddSuggestions(r.Context(), r.PathValue("id"), req.Candidates)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

// ListAudit handles GET /api/admin/audit-log
func (h *WorkbenchHandler) ListAudit(w http.ResponseWriter, r *http.Request) {
	filter := entities.AuditFilter{
		EventID: r.URL.Query().Get("event_id"),
		Actor:   r.URL.Query().Get("actor"),
	}
	var err error
	if filter.Limit, err = queryInt(r, "limit", 100); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		respondWithAppError(w, r, err)
		return
	}

	entries, err := h.service.ListAudit(r.Context(), filter)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*entities.AuditLogEntry{}
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// SearchCanonical handles GET /api/admin/canonical-coverages/search
func (h *WorkbenchHandler) SearchCanonical(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}

	hits, err := h.search.Search(r.Context(), r.URL.Query().Get("q"), r.URL.Query().Get("family"), limit)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{"results": hits})
}
