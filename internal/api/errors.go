package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"

	"diaghost/internal/errors"
)

// StatusClientClosedRequest is returned when the caller cancelled the request.
const StatusClientClosedRequest = 499

// ErrorResponse represents an HTTP error response
type ErrorResponse struct {
	Error          string             `json:"error"`
	Code           string             `json:"code"`
	Details        interface{}        `json:"details,omitempty"`
	SuggestedFixes []errors.FixAction `json:"suggestedFixes,omitempty"`
}

// WriteError writes an error response to the HTTP response writer
func WriteError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := ErrorResponse{
		Error: err.Error(),
		Code:  string(codeOf(err)),
	}

	var de *errors.DiagError
	if stderrors.As(err, &de) {
		resp.Details = de.Details
		resp.SuggestedFixes = de.SuggestedFixes
	}

	json.NewEncoder(w).Encode(resp)
}

// WriteServiceError writes err with the status its code maps to
func WriteServiceError(w http.ResponseWriter, err error) {
	WriteError(w, err, MapErrorToStatus(codeOf(err)))
}

// codeOf is errors.CodeOf with context errors reported as CANCELLED.
func codeOf(err error) errors.ErrorCode {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Cancelled
	}
	return errors.CodeOf(err)
}

// MapErrorToStatus maps error codes to HTTP status codes
func MapErrorToStatus(code errors.ErrorCode) int {
	switch code {
	case errors.InvalidRequest:
		return http.StatusBadRequest // 400
	case errors.SnapshotNotFound:
		return http.StatusConflict // 409
	case errors.ProjectNotFound, errors.DocumentNotFound:
		return http.StatusNotFound // 404
	case errors.CompilationFailed, errors.AnalyzerLoadFailed:
		return http.StatusUnprocessableEntity // 422
	case errors.Cancelled:
		return StatusClientClosedRequest // 499
	case errors.StorageUnavailable:
		return http.StatusServiceUnavailable // 503
	case errors.InternalError:
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// BadRequest writes a 400 Bad Request error
func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, errors.NewDiagError(errors.InvalidRequest, message, nil), http.StatusBadRequest)
}

// MethodNotAllowed writes a 405 error
func MethodNotAllowed(w http.ResponseWriter) {
	WriteError(w, errors.NewDiagError(errors.InvalidRequest, "method not allowed", nil), http.StatusMethodNotAllowed)
}

// InternalError writes a 500 Internal Server Error
func InternalError(w http.ResponseWriter, message string, err error) {
	WriteError(w, errors.NewDiagError(errors.InternalError, message, err), http.StatusInternalServerError)
}
