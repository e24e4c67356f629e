package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"parceiros/internal/auth"
	"parceiros/internal/core"
	"parceiros/internal/csvio"
	plog "parceiros/internal/log"
	"parceiros/internal/services"
	"parceiros/internal/sheets"
	"parceiros/internal/store"
	"parceiros/internal/website"
)

// errorBody is the shape of every error response.
type errorBody struct {
	Error string            `json:"error"`
	Lines []csvio.LineError `json:"lines,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeErr maps err onto a status code. Unknown errors are logged and hidden
// behind a generic message.
func writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	body := errorBody{Error: err.Error()}

	var importErr *csvio.ImportError
	if errors.As(err, &importErr) {
		body.Lines = importErr.Lines
	}
	if status == http.StatusInternalServerError {
		plog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			plog.FieldPath, r.URL.Path, plog.FieldError, err)
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}

func errorStatus(err error) int {
	var importErr *csvio.ImportError
	switch {
	case errors.Is(err, store.ErrPartnerNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateUsername),
		errors.Is(err, store.ErrDuplicateClientLogin),
		errors.Is(err, services.ErrSyncInProgress):
		return http.StatusConflict
	case errors.As(err, &importErr),
		errors.Is(err, csvio.ErrEmpty),
		errors.Is(err, csvio.ErrMissingHeader),
		errors.Is(err, core.ErrNegativeAmount),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrEmptyUsername),
		errors.Is(err, core.ErrInvalidCommission),
		errors.Is(err, core.ErrEmptyLogin),
		errors.Is(err, errValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, sheets.ErrNotConfigured):
		return http.StatusPreconditionFailed
	case errors.Is(err, website.ErrInvalidCredentials),
		errors.Is(err, website.ErrNotLoggedIn):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
