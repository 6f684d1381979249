package handlers

import (
	"encoding/json"
	"net/http"

	"sheetsearch/internal/apperrors"
)

// ErrorResponse is the JSON body for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError converts an error to its HTTP status and JSON body.
func writeError(w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	writeJSON(w, statusForCode(code), ErrorResponse{Error: err.Error(), Code: code})
}

// statusForCode maps an error classification to an HTTP status.
func statusForCode(code string) int {
	switch code {
	case apperrors.ErrStorageUnavailable.Code:
		return http.StatusServiceUnavailable
	case apperrors.ErrFileRejected.Code, apperrors.ErrReadError.Code, apperrors.ErrParseError.Code:
		return http.StatusBadRequest
	case apperrors.ErrEmptyWorkbook.Code:
		return http.StatusUnprocessableEntity
	case apperrors.ErrUserCancelled.Code:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
