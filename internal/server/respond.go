package server

import (
	"encoding/json"
	"net/http"

	"github.com/tjfontaine/harassment-moderator/internal/core/domain"
)

// ErrorBody is the JSON envelope for failed requests.
type ErrorBody struct {
	Error *domain.APIError `json:"error"`
}

// WriteJSON encodes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError renders err as an ErrorBody with the status its type maps to
// and records it on the request log line.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := domain.AsAPIError(err)
	AddError(r.Context(), err)
	WriteJSON(w, apiErr.HTTPStatusCode(), ErrorBody{Error: apiErr})
}
