package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchportal/pubportal/pkg/auth"
	"github.com/researchportal/pubportal/pkg/policy"
	"github.com/researchportal/pubportal/pkg/scope"
)

func scopeRouter(actor *policy.Actor) http.Handler {
	router := mux.NewRouter()
	NewScopeHandlers(policy.NewEngine(scope.Default())).RegisterRoutes(router)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actor != nil {
			r = r.WithContext(auth.WithAuthContext(r.Context(), &auth.AuthContext{Actor: *actor}))
		}
		router.ServeHTTP(w, r)
	})
}

func getJSON(t *testing.T, h http.Handler, path string, params url.Values, dest interface{}) int {
	t.Helper()
	if params != nil {
		path += "?" + params.Encode()
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	if dest != nil && w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest))
	}
	return w.Code
}

func TestScope_Colleges(t *testing.T) {
	admin := policy.Actor{UserID: 1, Role: policy.RoleAdmin}
	var resp CollegesResponse
	require.Equal(t, http.StatusOK, getJSON(t, scopeRouter(&admin), "/scope/colleges", nil, &resp))

	assert.Equal(t, scope.DefaultResearchInstitute, resp.ResearchInstitute)
	assert.Contains(t, resp.Colleges, "SRMIST RAMAPURAM")
	assert.NotContains(t, resp.Colleges, scope.NA)
}

func TestScope_InstitutesAndDepartments(t *testing.T) {
	h := scopeRouter(&policy.Actor{UserID: 1, Role: policy.RoleAdmin})

	var inst OptionsResponse
	require.Equal(t, http.StatusOK, getJSON(t, h, "/scope/institutes",
		url.Values{"college": {"SRMIST RAMAPURAM"}}, &inst))
	assert.Contains(t, inst.Options, "Engineering and Technology")
	assert.Contains(t, inst.Options, scope.DefaultResearchInstitute)

	var depts OptionsResponse
	require.Equal(t, http.StatusOK, getJSON(t, h, "/scope/departments",
		url.Values{"college": {"SRMIST RAMAPURAM"}, "institute": {scope.DefaultResearchInstitute}}, &depts))
	assert.Equal(t, []string{"Ramapuram Research"}, depts.Options)

	require.Equal(t, http.StatusOK, getJSON(t, h, "/scope/departments",
		url.Values{"college": {"SRMIST RAMAPURAM"}, "institute": {"Nowhere"}}, &depts))
	assert.Equal(t, []string{scope.NA}, depts.Options)

	assert.Equal(t, http.StatusBadRequest, getJSON(t, h, "/scope/institutes", nil, nil))
	assert.Equal(t, http.StatusNotFound, getJSON(t, h, "/scope/institutes",
		url.Values{"college": {"Atlantis"}}, nil))
}

func TestScope_Domains(t *testing.T) {
	campus := policy.Actor{UserID: 2, Role: policy.RoleCampusAdmin,
		College: "SRMIST RAMAPURAM", Institute: "Engineering and Technology"}
	researcher := policy.Actor{UserID: 3, Role: policy.RoleCampusAdmin,
		College: "SRMIST RAMAPURAM", Institute: scope.DefaultResearchInstitute}
	params := url.Values{"college": {"SRMIST RAMAPURAM"}, "institute": {"Engineering and Technology"}}

	var resp DomainsResponse
	require.Equal(t, http.StatusOK, getJSON(t, scopeRouter(&campus), "/scope/domains", params, &resp))
	assert.Equal(t, []string{"srmist.edu.in"}, resp.Domains)

	require.Equal(t, http.StatusOK, getJSON(t, scopeRouter(&researcher), "/scope/domains", params, &resp))
	assert.Greater(t, len(resp.Domains), 1)
	assert.Contains(t, resp.Domains, "srmrmp.edu.in")

	assert.Equal(t, http.StatusUnauthorized, getJSON(t, scopeRouter(nil), "/scope/domains", params, nil))
}
