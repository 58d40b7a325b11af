package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"resale-ledger-go/internal/ledger"
)

// errorResponse is the JSON body for every failed request.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func toJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondError maps engine sentinels to HTTP statuses. Anything unrecognized
// is a 500 with a generic body; the detail goes to the log, not the client.
func respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		toJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Code: "not_found"})
	case errors.Is(err, ledger.ErrState):
		toJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Code: "invalid_state"})
	case errors.Is(err, ledger.ErrConfirmRequired):
		toJSON(w, http.StatusPreconditionRequired, errorResponse{Error: err.Error(), Code: "confirm_required"})
	case errors.Is(err, ledger.ErrInvalidPayload):
		toJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_payload"})
	default:
		toJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "internal"})
	}
}

// respondTransient reports an external collaborator failure. The collection
// is untouched; the client can simply retry.
func respondTransient(w http.ResponseWriter, err error) {
	toJSON(w, http.StatusBadGateway, errorResponse{Error: err.Error(), Code: "collaborator_unavailable"})
}
