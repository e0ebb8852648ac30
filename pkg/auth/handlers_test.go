package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchportal/pubportal/pkg/audit"
	"github.com/researchportal/pubportal/pkg/policy"
	"github.com/researchportal/pubportal/pkg/storage"
)

type fakeAccounts struct {
	byEmail map[string]*Account
	err     error
}

func (f *fakeAccounts) AccountByEmail(_ context.Context, email string) (*Account, error) {
	if f.err != nil {
		return nil, f.err
	}
	if a, ok := f.byEmail[strings.ToLower(email)]; ok {
		return a, nil
	}
	return nil, storage.ErrNotFound
}

func (f *fakeAccounts) AccountByID(_ context.Context, id int64) (*Account, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, a := range f.byEmail {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, storage.ErrNotFound
}

func newTestHandlers(t *testing.T) (*Handlers, *fakeAccounts, *audit.MemoryLogger, *mux.Router) {
	t.Helper()
	hash, err := HashPassword("s3cret-password")
	require.NoError(t, err)

	accounts := &fakeAccounts{byEmail: map[string]*Account{
		"priya@srmist.edu.in": {
			ID:           12,
			Name:         "Priya",
			PasswordHash: hash,
			Actor:        facultyActor,
		},
	}}
	mem := audit.NewMemoryLogger()
	h := NewHandlers(accounts, NewTokenManager(testSecret, "pubportal", time.Hour), mem)

	router := mux.NewRouter()
	h.RegisterPublicRoutes(router)
	h.RegisterRoutes(router)
	return h, accounts, mem, router
}

func postLogin(router http.Handler, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/auth/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestLogin_Success(t *testing.T) {
	h, _, mem, router := newTestHandlers(t)

	w := postLogin(router, `{"email":"Priya@SRMIST.edu.in","password":"s3cret-password"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, policy.RoleFaculty, resp.User.Role)
	assert.False(t, resp.User.Upload.Allowed, "faculty without author ids cannot upload")
	assert.Empty(t, resp.User.CreatableRoles)

	claims, err := h.tokens.Verify(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, facultyActor, claims.Actor())

	assert.Len(t, mem.OfType(audit.EventTypeAuthLogin), 1)
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"wrong password", `{"email":"priya@srmist.edu.in","password":"nope-nope"}`, http.StatusUnauthorized},
		{"unknown user", `{"email":"ghost@srmist.edu.in","password":"s3cret-password"}`, http.StatusUnauthorized},
		{"missing password", `{"email":"priya@srmist.edu.in"}`, http.StatusBadRequest},
		{"bad email", `{"email":"priya","password":"x"}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, mem, router := newTestHandlers(t)

			w := postLogin(router, tt.body)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), errBadCredentials)
				assert.Len(t, mem.OfType(audit.EventTypeAuthLoginFailed), 1)
			}
		})
	}
}

func TestLogin_StoreError(t *testing.T) {
	_, accounts, _, router := newTestHandlers(t)
	accounts.err = errors.New("connection refused")

	w := postLogin(router, `{"email":"priya@srmist.edu.in","password":"s3cret-password"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestMe(t *testing.T) {
	_, _, _, router := newTestHandlers(t)

	t.Run("no auth context", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", "/auth/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("signed in", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/auth/me", nil)
		req = req.WithContext(WithAuthContext(req.Context(), &AuthContext{Actor: facultyActor}))
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		var p Profile
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
		assert.Equal(t, "Priya", p.Name)
		assert.Equal(t, policy.SettingsPath, p.Upload.Remediation)
	})

	t.Run("deleted account", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/auth/me", nil)
		gone := facultyActor
		gone.UserID = 999
		req = req.WithContext(WithAuthContext(req.Context(), &AuthContext{Actor: gone}))
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthContext_HasRole(t *testing.T) {
	var nilCtx *AuthContext
	assert.False(t, nilCtx.HasRole(policy.RoleFaculty))

	ac := &AuthContext{Actor: facultyActor}
	assert.True(t, ac.HasRole(policy.RoleAdmin, policy.RoleFaculty))
	assert.False(t, ac.HasRole(policy.RoleSuperAdmin))

	assert.Nil(t, FromContext(context.Background()))
	assert.Same(t, ac, FromContext(WithAuthContext(context.Background(), ac)))
}
