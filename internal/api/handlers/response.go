package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/zatekoja/coveragecompare/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/coveragecompare/pkg/errors"
)

// maxBodyBytes caps request bodies; ingestion batches are the largest payload
const maxBodyBytes = 4 << 20

type errorResponse struct {
	Error   string            `json:"error"`
	Type    string            `json:"type,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, errorResponse{
		Error: message,
		Type:  string(apperrors.ErrorTypeValidation),
	})
}

// respondWithAppError maps an application error to its status code. Internal
// failures are logged and answered with a generic message.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.NewInternalError("unexpected error", err)
	}

	status := http.StatusInternalServerError
	message := appErr.Message
	switch appErr.Type {
	case apperrors.ErrorTypeValidation:
		status = http.StatusBadRequest
	case apperrors.ErrorTypeNotFound:
		status = http.StatusNotFound
	case apperrors.ErrorTypeConflict:
		status = http.StatusConflict
	case apperrors.ErrorTypeUnauthorized:
		status = http.StatusUnauthorized
	case apperrors.ErrorTypeTransient:
		status = http.StatusServiceUnavailable
		message = "storage temporarily unavailable, retry the request"
	default:
		message = "internal server error"
	}

	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error().Err(err).
			Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
	}

	body := errorResponse{Error: message, Type: string(appErr.Type)}
	if status < http.StatusInternalServerError {
		body.Details = appErr.Details
	}
	respondWithJSON(w, status, body)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return false
	}
	return true
}

// queryInt parses an integer query parameter, falling back to def
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidationError(name + " must be an integer")
	}
	return v, nil
}

// actorOf reads the acting admin from the body field, then the X-Actor header
func actorOf(r *http.Request, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return r.Header.Get("X-Actor")
}
