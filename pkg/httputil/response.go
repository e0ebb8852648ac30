package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/researchportal/pubportal/pkg/policy"
	"github.com/researchportal/pubportal/pkg/storage"
)

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, status int, err error) {
	WriteErrorMessage(w, status, err.Error())
}

// WriteErrorMessage writes a JSON error response with a custom message
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// ErrorResponse is the body of every error response
type ErrorResponse struct {
	Error       string            `json:"error"`
	Details     map[string]string `json:"details,omitempty"`
	Remediation string            `json:"remediation,omitempty"`
}

// WriteDetailedError writes an error with field-level details
func WriteDetailedError(w http.ResponseWriter, status int, err error, details map[string]string) {
	WriteJSON(w, status, ErrorResponse{
		Error:   err.Error(),
		Details: details,
	})
}

// WriteInternalError writes a 500. The cause is not echoed to the client.
func WriteInternalError(w http.ResponseWriter, err error) {
	WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
}

// WriteCreated writes a 201 with JSON data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, data)
}

// WriteSuccess writes a 200 with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteNoContent writes a 204
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteBadRequest writes a 400
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusBadRequest, message)
}

// WriteUnauthorized writes a 401
func WriteUnauthorized(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusUnauthorized, message)
}

// WriteForbidden writes a 403
func WriteForbidden(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusForbidden, message)
}

// WriteNotFound writes a 404
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusNotFound, message)
}

// WriteConflict writes a 409
func WriteConflict(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusConflict, message)
}

// WriteTooManyRequests writes a 429
func WriteTooManyRequests(w http.ResponseWriter, message string) {
	WriteErrorMessage(w, http.StatusTooManyRequests, message)
}

// WriteServiceError maps an error returned by a service to a response
func WriteServiceError(w http.ResponseWriter, err error) {
	var verr *policy.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteDetailedError(w, http.StatusBadRequest, errors.New("validation failed"), verr.Fields)
	case errors.Is(err, policy.ErrUploadIneligible):
		WriteJSON(w, http.StatusForbidden, ErrorResponse{
			Error:       policy.ErrUploadIneligible.Error(),
			Remediation: policy.SettingsPath,
		})
	case errors.Is(err, policy.ErrRoleNotAllowed):
		WriteForbidden(w, policy.ErrRoleNotAllowed.Error())
	case errors.Is(err, policy.ErrForbidden):
		WriteForbidden(w, "you do not have permission to perform this action")
	case errors.Is(err, storage.ErrNotFound):
		WriteNotFound(w, "not found")
	case errors.Is(err, storage.ErrDuplicate):
		WriteConflict(w, err.Error())
	default:
		WriteInternalError(w, err)
	}
}
