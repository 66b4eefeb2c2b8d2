package common

import (
	"encoding/json"
	"net/http"
)

type ErrorResponse struct {
	Error   Kind   `json:"error"`
	Message string `json:"message"`
}

// RespondWithError writes an error body with an explicit status and kind.
func RespondWithError(w http.ResponseWriter, code int, kind Kind, message string) {
	RespondWithJSON(w, code, ErrorResponse{Error: kind, Message: message})
}

// RespondWithDomainError derives status, kind and message from err.
func RespondWithDomainError(w http.ResponseWriter, err error) {
	RespondWithError(w, HTTPStatusFromError(err), KindOf(err), PublicMessage(err))
}

func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal", "message": "Failed to marshal JSON response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
