package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/researchportal/pubportal/pkg/httputil"
	"github.com/researchportal/pubportal/pkg/middleware"
	"github.com/researchportal/pubportal/pkg/policy"
	"github.com/researchportal/pubportal/pkg/scope"
)

// ScopeHandlers serves the college hierarchy lookups behind the dropdowns
type ScopeHandlers struct {
	engine *policy.Engine
}

// NewScopeHandlers creates scope handlers
func NewScopeHandlers(engine *policy.Engine) *ScopeHandlers {
	return &ScopeHandlers{engine: engine}
}

// RegisterRoutes registers the scope routes
func (h *ScopeHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/scope/colleges", h.colleges).Methods("GET")
	router.HandleFunc("/scope/institutes", h.institutes).Methods("GET")
	router.HandleFunc("/scope/departments", h.departments).Methods("GET")
	router.HandleFunc("/scope/domains", h.domains).Methods("GET")
}

// CollegesResponse is returned by GET /scope/colleges
type CollegesResponse struct {
	Version           string   `json:"version"`
	ResearchInstitute string   `json:"research_institute"`
	Colleges          []string `json:"colleges"`
}

// OptionsResponse lists the choices one level down the hierarchy
type OptionsResponse struct {
	College   string   `json:"college"`
	Institute string   `json:"institute,omitempty"`
	Options   []string `json:"options"`
}

// DomainsResponse is returned by GET /scope/domains
type DomainsResponse struct {
	College   string   `json:"college"`
	Institute string   `json:"institute"`
	Domains   []string `json:"domains"`
}

// college reads and checks the college query parameter
func (h *ScopeHandlers) college(w http.ResponseWriter, r *http.Request) (string, bool) {
	college := httputil.ParseQueryString(r, "college", "")
	if college == "" {
		httputil.WriteBadRequest(w, "college is required")
		return "", false
	}
	if !h.engine.Hierarchy().Known(college) {
		httputil.WriteNotFound(w, "unknown college: "+college)
		return "", false
	}
	return college, true
}

// colleges handles GET /scope/colleges
func (h *ScopeHandlers) colleges(w http.ResponseWriter, r *http.Request) {
	hier := h.engine.Hierarchy()
	httputil.WriteSuccess(w, CollegesResponse{
		Version:           hier.Version(),
		ResearchInstitute: hier.ResearchInstitute(),
		Colleges:          hier.SelectableColleges(),
	})
}

// institutes handles GET /scope/institutes?college=
func (h *ScopeHandlers) institutes(w http.ResponseWriter, r *http.Request) {
	college, ok := h.college(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, OptionsResponse{
		College: college,
		Options: h.engine.Hierarchy().InstitutesOf(college),
	})
}

// departments handles GET /scope/departments?college=&institute=
func (h *ScopeHandlers) departments(w http.ResponseWriter, r *http.Request) {
	college, ok := h.college(w, r)
	if !ok {
		return
	}
	hier := h.engine.Hierarchy()
	institute := httputil.ParseQueryString(r, "institute", scope.NA)
	if !hier.HasInstitutes(college) {
		institute = scope.NA
	}
	httputil.WriteSuccess(w, OptionsResponse{
		College:   college,
		Institute: institute,
		Options:   hier.DepartmentsOf(college, institute),
	})
}

// domains handles GET /scope/domains?college=&institute=. The research
// condition also looks at the caller's own institute.
func (h *ScopeHandlers) domains(w http.ResponseWriter, r *http.Request) {
	a, ok := middleware.ActorFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	college, ok := h.college(w, r)
	if !ok {
		return
	}
	institute := httputil.ParseQueryString(r, "institute", scope.NA)
	httputil.WriteSuccess(w, DomainsResponse{
		College:   college,
		Institute: institute,
		Domains:   h.engine.DomainHints(college, institute, a),
	})
}
