package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/jordandevai/LiteFetch-API-Client/internal/store"
	"github.com/jordandevai/LiteFetch-API-Client/internal/vault"
)

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSONStatus(w, code, map[string]string{"detail": detail})
}

func tooMany(w http.ResponseWriter, retryAfterSeconds int) {
	if retryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	writeDetail(w, http.StatusTooManyRequests, "too many requests")
}

// writeStoreError maps vault and store failures onto the API contract:
// a locked workspace is 423 so clients prompt for a passphrase instead of
// rendering empty data.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, vault.ErrWorkspaceLocked):
		writeDetail(w, http.StatusLocked, "workspace locked")
	case errors.Is(err, vault.ErrIncorrectPassphrase):
		writeDetail(w, http.StatusUnauthorized, "incorrect passphrase")
	case errors.Is(err, vault.ErrNoVault):
		writeDetail(w, http.StatusConflict, "no vault to rotate")
	case errors.Is(err, store.ErrNotFound):
		writeDetail(w, http.StatusNotFound, "collection not found")
	default:
		s.logger.Printf("request failed: %v", err)
		writeDetail(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusBadRequest, "bad json")
		return false
	}
	return true
}

func methodNotAllowed(w http.ResponseWriter) {
	writeDetail(w, http.StatusMethodNotAllowed, "method not allowed")
}
