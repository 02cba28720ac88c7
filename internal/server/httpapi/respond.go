package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/ridehail/internal/common"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

// writeUnauthenticated is the single response for every rejected session.
func writeUnauthenticated(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", common.BearerScheme)
	writeErr(w, http.StatusUnauthorized, common.ErrUnauthenticated.Error())
}

const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(out)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// writeServiceError maps service sentinels onto status codes. Anything
// unrecognised is a 500 with a generic body.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, common.ErrValidation):
		msg := strings.TrimPrefix(err.Error(), common.ErrValidation.Error()+": ")
		writeErr(w, http.StatusBadRequest, capitalize(msg))
	case errors.Is(err, common.ErrDuplicateAccount):
		writeErr(w, http.StatusBadRequest, capitalize(err.Error()))
	case errors.Is(err, common.ErrInvalidRideState),
		errors.Is(err, common.ErrAlreadyRated):
		writeErr(w, http.StatusBadRequest, capitalize(err.Error()))
	case errors.Is(err, common.ErrInvalidCredentials),
		errors.Is(err, common.ErrAccountDisabled):
		writeErr(w, http.StatusUnauthorized, capitalize(err.Error()))
	case errors.Is(err, common.ErrUnauthenticated):
		writeUnauthenticated(w)
	case errors.Is(err, common.ErrForbidden):
		writeErr(w, http.StatusForbidden, "Forbidden")
	case errors.Is(err, common.ErrorNotFound):
		writeErr(w, http.StatusNotFound, "Not found")
	case errors.Is(err, common.ErrRateLimited):
		writeErr(w, http.StatusTooManyRequests, capitalize(err.Error()))
	default:
		writeErr(w, http.StatusInternalServerError, "Internal server error")
	}
}
