package api

import (
	"encoding/json"
	"net/http"

	"github.com/price-etl/internal/errors"
	"github.com/price-etl/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// respondCategorizedError maps a pipeline error onto its HTTP response.
// Internal causes are never exposed to the caller.
func respondCategorizedError(w http.ResponseWriter, err error) {
	catErr := errors.Categorize(err)

	message := catErr.Message
	if catErr.StatusCode >= http.StatusInternalServerError {
		message = "An internal error occurred"
	}

	respondError(w, catErr.StatusCode, catErr.Code, message, catErr.Details)
}
