package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"

	"jobsheet-engine/internal/auth"
	"jobsheet-engine/internal/capture"
	"jobsheet-engine/internal/command"
	"jobsheet-engine/internal/dedup"
	"jobsheet-engine/internal/sheets"
)

type APIError struct {
	Error struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		RequestID string `json:"request_id,omitempty"`
	} `json:"error"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	var e APIError
	e.Error.Code = code
	e.Error.Message = message
	e.Error.RequestID = RequestIDFrom(r.Context())
	WriteJSON(w, status, e)
}

// classify maps an engine error onto an HTTP status and error code.
func classify(err error) (int, string) {
	var herr *sheets.HTTPError
	switch {
	case errors.Is(err, command.ErrBadRequest):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, command.ErrUnknownCommand):
		return http.StatusBadRequest, "unknown_command"
	case errors.Is(err, capture.ErrNotConfigured):
		return http.StatusConflict, "not_configured"
	case errors.Is(err, sheets.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, sheets.ErrNoIDColumn):
		return http.StatusConflict, "no_id_column"
	case errors.Is(err, dedup.ErrInFlight):
		return http.StatusConflict, "in_flight"
	case errors.Is(err, auth.ErrAuth):
		return http.StatusUnauthorized, "auth_failed"
	case errors.As(err, &herr):
		return http.StatusBadGateway, fmt.Sprintf("remote_%d", herr.Status)
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	WriteError(w, r, status, code, err.Error())
}
