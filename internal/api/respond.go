package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/hackgods/praxis-scheduling/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, kind apperr.Kind, code, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Kind: string(kind)})
}

// decodeJSON reads a request body into dst, answering 400 itself on
// failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, apperr.KindValidation, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

var kindStatus = map[apperr.Kind]int{
	apperr.KindValidation: http.StatusBadRequest,
	apperr.KindNotFound:   http.StatusNotFound,
	apperr.KindConflict:   http.StatusConflict,
	apperr.KindUpstream:   http.StatusInternalServerError,
}

// handleError maps a service error to its status by kind. Errors without a
// kind are internal and their text stays in the log, not the response;
// fallback is the message the caller sees then.
func handleError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		status, ok := kindStatus[ae.Kind]
		if !ok {
			status = http.StatusInternalServerError
		}
		if status >= 500 {
			zerolog.Ctx(r.Context()).Error().Err(err).Str("code", ae.Code).Msg("request failed")
		}
		writeError(w, status, ae.Kind, ae.Code, ae.Message)
		return
	}

	zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
	writeError(w, http.StatusInternalServerError, apperr.KindInternal, "internal_error", fallback)
}
