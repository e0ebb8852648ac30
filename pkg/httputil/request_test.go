package httputil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseJSON(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		expectError bool
	}{
		{name: "valid JSON", body: `{"name": "test"}`},
		{name: "invalid JSON", body: `{invalid}`, expectError: true},
		{name: "empty body", body: ``, expectError: true},
		{name: "unknown field", body: `{"name": "test", "role": "super_admin"}`, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/test", bytes.NewBufferString(tt.body))
			var dest struct {
				Name string `json:"name"`
			}

			err := ParseJSON(req, &dest)

			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, "test", dest.Name)
			}
		})
	}
}

type signupRequest struct {
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role" validate:"required,role"`
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		expectOK   bool
		expectCode int
		field      string
	}{
		{name: "valid", body: `{"email":"a@srmist.edu.in","role":"faculty"}`, expectOK: true},
		{name: "bad json", body: `{`, expectCode: http.StatusBadRequest},
		{name: "bad email", body: `{"email":"nope","role":"faculty"}`, expectCode: http.StatusBadRequest, field: "email"},
		{name: "bad role", body: `{"email":"a@srmist.edu.in","role":"dean"}`, expectCode: http.StatusBadRequest, field: "role"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest("POST", "/test", bytes.NewBufferString(tt.body))
			var dest signupRequest

			ok := DecodeAndValidate(w, req, &dest)

			assert.Equal(t, tt.expectOK, ok)
			if !tt.expectOK {
				assert.Equal(t, tt.expectCode, w.Code)
			}
			if tt.field != "" {
				assert.Contains(t, decodeError(t, w).Details, tt.field)
			}
		})
	}
}

func TestParsePathInt64(t *testing.T) {
	tests := []struct {
		name        string
		vars        map[string]string
		expected    int64
		expectError bool
	}{
		{name: "valid", vars: map[string]string{"id": "42"}, expected: 42},
		{name: "missing", vars: map[string]string{}, expectError: true},
		{name: "not a number", vars: map[string]string{"id": "abc"}, expectError: true},
		{name: "zero", vars: map[string]string{"id": "0"}, expectError: true},
		{name: "negative", vars: map[string]string{"id": "-3"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := mux.SetURLVars(httptest.NewRequest("GET", "/test", nil), tt.vars)

			val, err := ParsePathInt64(req, "id")

			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, val)
		})
	}
}

func TestParsePathInt64OrError(t *testing.T) {
	w := httptest.NewRecorder()
	req := mux.SetURLVars(httptest.NewRequest("GET", "/test", nil), map[string]string{"id": "x"})

	_, ok := ParsePathInt64OrError(w, req, "id")

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseQuery(t *testing.T) {
	req := httptest.NewRequest("GET", "/test?limit=10&flag=true&bad=x&q=smith", nil)

	limit, err := ParseQueryInt(req, "limit", 50)
	require.NoError(t, err)
	assert.Equal(t, 10, limit)

	def, err := ParseQueryInt(req, "offset", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, def)

	_, err = ParseQueryInt(req, "bad", 0)
	assert.Error(t, err)

	flag, err := ParseQueryBool(req, "flag", false)
	require.NoError(t, err)
	assert.True(t, flag)

	_, err = ParseQueryBool(req, "bad", false)
	assert.Error(t, err)

	assert.Equal(t, "smith", ParseQueryString(req, "q", ""))
	assert.Equal(t, "all", ParseQueryString(req, "type", "all"))
}

func TestParsePage(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		expected    Page
		expectError bool
	}{
		{name: "defaults", query: "", expected: Page{Limit: 50}},
		{name: "explicit", query: "?limit=10&offset=20", expected: Page{Limit: 10, Offset: 20}},
		{name: "clamped", query: "?limit=5000", expected: Page{Limit: 200}},
		{name: "zero limit", query: "?limit=0", expected: Page{Limit: 50}},
		{name: "negative offset", query: "?offset=-1", expectError: true},
		{name: "junk", query: "?limit=abc", expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/test"+tt.query, nil)

			page, err := ParsePage(req, 50, 200)

			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, page)
		})
	}
}
