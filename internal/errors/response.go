package errors

import (
	"encoding/json"
	"net/http"
)

// Response is the standardized error envelope returned to API clients: a
// flat `{"error": "<kind>", "description": "<human>"}` body, matching the
// original implementation's error responses (e.g. the deprecated-API-version
// body in labrinth's mod.rs) rather than a nested object.
type Response struct {
	Code        ErrorCode              `json:"error"`
	Description string                 `json:"description"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// NewResponse builds a standardized error response from an *Error.
func NewResponse(err *Error) Response {
	return Response{
		Code:        err.Code,
		Description: err.Message,
		Details:     err.Details,
	}
}

// WriteJSON writes the error response as JSON to the HTTP response writer.
func (r Response) WriteJSON(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(r.Code.HTTPStatus())
	json.NewEncoder(w).Encode(r)
}

// Write is a convenience function to write an *Error as its JSON response.
func Write(w http.ResponseWriter, err *Error) {
	NewResponse(err).WriteJSON(w)
}

// WriteCode writes a new error built from a code and message in one call.
func WriteCode(w http.ResponseWriter, code ErrorCode, message string) {
	Write(w, New(code, message))
}
