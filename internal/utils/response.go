package utils

import (
	"encoding/json"
	"net/http"

	"ms-bidding/internal/models"
)

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error onto its stable {code, message} body.
// Anything that is not a DomainError is an infrastructure failure and comes
// back as a 500 without leaking internals.
func WriteError(w http.ResponseWriter, err error) {
	if de, ok := models.AsDomainError(err); ok {
		WriteJSON(w, de.Status, ErrorBody{Code: de.Code, Message: de.Message})
		return
	}
	WriteJSON(w, http.StatusInternalServerError, ErrorBody{Code: "INTERNAL", Message: "internal server error"})
}

// WriteValidationError reports request-shape problems from the validator.
func WriteValidationError(w http.ResponseWriter, err error) {
	WriteJSON(w, http.StatusBadRequest, ErrorBody{Code: "INVALID_REQUEST", Message: err.Error()})
}
