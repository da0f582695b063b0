// Package shared centralizes JSON response envelopes and domain error
// translation so every handler reports failures the same way.
package shared

import (
	"encoding/json"
	"net/http"

	dErrors "bonifica/pkg/domain-errors"
)

// ErrorResponse is the JSON envelope for failed requests.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeValidation:             http.StatusBadRequest,
	dErrors.CodeInvalidInput:           http.StatusBadRequest,
	dErrors.CodeInvalidCodeFormat:      http.StatusBadRequest,
	dErrors.CodeUnauthorized:           http.StatusUnauthorized,
	dErrors.CodePermissionDenied:       http.StatusForbidden,
	dErrors.CodeNotFound:               http.StatusNotFound,
	dErrors.CodeConflict:               http.StatusConflict,
	dErrors.CodeDuplicateCode:          http.StatusConflict,
	dErrors.CodeMonthAlreadyAllocated:  http.StatusConflict,
	dErrors.CodeStorageConflict:        http.StatusConflict,
	dErrors.CodeOrphanedResellerClient: http.StatusUnprocessableEntity,
	dErrors.CodeNoCostDeclared:         http.StatusUnprocessableEntity,
	dErrors.CodeBudgetExceeded:         http.StatusUnprocessableEntity,
	dErrors.CodeInvariantViolation:     http.StatusUnprocessableEntity,
	dErrors.CodeInternal:               http.StatusInternalServerError,
}

// WriteError translates a domain error into an HTTP status and JSON envelope.
// Unknown errors become opaque 500s so internals never leak to callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		status = http.StatusInternalServerError
		code = dErrors.CodeInternal
	}

	resp := ErrorResponse{Error: string(code)}
	if status != http.StatusInternalServerError {
		resp.Message = dErrors.MessageOf(err)
		resp.Details = dErrors.DetailsOf(err)
	}
	WriteJSON(w, status, resp)
}

// WriteJSON writes a JSON body with the given status.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
