package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchportal/pubportal/pkg/policy"
	"github.com/researchportal/pubportal/pkg/storage"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"message": "success"}

	err := WriteJSON(w, http.StatusOK, data)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "success")
}

func TestWriteErrorHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter)
		status int
		msg    string
	}{
		{"bad request", func(w http.ResponseWriter) { WriteBadRequest(w, "bad") }, http.StatusBadRequest, "bad"},
		{"unauthorized", func(w http.ResponseWriter) { WriteUnauthorized(w, "who") }, http.StatusUnauthorized, "who"},
		{"forbidden", func(w http.ResponseWriter) { WriteForbidden(w, "no") }, http.StatusForbidden, "no"},
		{"not found", func(w http.ResponseWriter) { WriteNotFound(w, "gone") }, http.StatusNotFound, "gone"},
		{"conflict", func(w http.ResponseWriter) { WriteConflict(w, "dup") }, http.StatusConflict, "dup"},
		{"too many", func(w http.ResponseWriter) { WriteTooManyRequests(w, "slow") }, http.StatusTooManyRequests, "slow"},
		{"error", func(w http.ResponseWriter) { WriteError(w, http.StatusTeapot, errors.New("tea")) }, http.StatusTeapot, "tea"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.msg, decodeError(t, w).Error)
		})
	}
}

func TestWriteInternalError_HidesCause(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalError(w, errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestWriteCreatedAndNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, WriteCreated(w, map[string]int{"id": 7}))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	WriteNoContent(w)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestWriteServiceError(t *testing.T) {
	verr := policy.NewValidationError()
	verr.Add("email", "is required")

	tests := []struct {
		name   string
		err    error
		status int
		check  func(t *testing.T, body ErrorResponse)
	}{
		{
			name:   "validation",
			err:    verr,
			status: http.StatusBadRequest,
			check: func(t *testing.T, body ErrorResponse) {
				assert.Equal(t, "is required", body.Details["email"])
			},
		},
		{
			name:   "upload ineligible",
			err:    fmt.Errorf("create: %w", policy.ErrUploadIneligible),
			status: http.StatusForbidden,
			check: func(t *testing.T, body ErrorResponse) {
				assert.Equal(t, policy.SettingsPath, body.Remediation)
			},
		},
		{name: "role", err: policy.ErrRoleNotAllowed, status: http.StatusForbidden},
		{name: "forbidden", err: policy.ErrForbidden, status: http.StatusForbidden},
		{name: "not found", err: storage.ErrNotFound, status: http.StatusNotFound},
		{
			name:   "duplicate",
			err:    &storage.DuplicateError{Field: "email"},
			status: http.StatusConflict,
			check: func(t *testing.T, body ErrorResponse) {
				assert.Equal(t, "email already exists", body.Error)
			},
		},
		{name: "other", err: errors.New("boom"), status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteServiceError(w, tt.err)
			assert.Equal(t, tt.status, w.Code)
			if tt.check != nil {
				tt.check(t, decodeError(t, w))
			}
		})
	}
}
