package users

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/researchportal/pubportal/pkg/httputil"
	"github.com/researchportal/pubportal/pkg/middleware"
	"github.com/researchportal/pubportal/pkg/observability"
	"github.com/researchportal/pubportal/pkg/policy"
)

const (
	defaultPageSize = 25
	maxPageSize     = 200
)

// Handlers serves user management and the settings page
type Handlers struct {
	service *Service
}

// NewHandlers creates user handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers the user routes on a router that already
// authenticates. Management routes are limited to administrative roles.
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	manage := router.PathPrefix("/users").Subrouter()
	manage.Use(middleware.RequireRoles(policy.RoleSuperAdmin, policy.RoleCampusAdmin, policy.RoleAdmin))
	manage.HandleFunc("", h.list).Methods("GET")
	manage.HandleFunc("", h.create).Methods("POST")
	manage.HandleFunc("/bulk", h.bulkCreate).Methods("POST")
	manage.HandleFunc("/form", h.form).Methods("GET")
	manage.HandleFunc("/snapshot", h.snapshot).Methods("GET")
	manage.HandleFunc("/uniqueness", h.uniqueness).Methods("POST")
	manage.HandleFunc("/{id:[0-9]+}", h.get).Methods("GET")
	manage.HandleFunc("/{id:[0-9]+}", h.update).Methods("PUT")
	manage.HandleFunc("/{id:[0-9]+}", h.remove).Methods("DELETE")

	router.HandleFunc("/me/settings", h.getSettings).Methods("GET")
	router.HandleFunc("/me/settings", h.updateSettings).Methods("PUT")
	router.HandleFunc("/me/password", h.changePassword).Methods("PUT")
}

// actor returns the caller or writes a 401
func actor(w http.ResponseWriter, r *http.Request) (policy.Actor, bool) {
	a, ok := middleware.ActorFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
	}
	return a, ok
}

// list handles GET /users
func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	page, err := httputil.ParsePage(r, defaultPageSize, maxPageSize)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	q := ListQuery{
		Search:     httputil.ParseQueryString(r, "search", ""),
		College:    httputil.ParseQueryString(r, "college", ""),
		Institute:  httputil.ParseQueryString(r, "institute", ""),
		Department: httputil.ParseQueryString(r, "department", ""),
		Limit:      page.Limit,
		Offset:     page.Offset,
	}
	if role := httputil.ParseQueryString(r, "role", ""); role != "" {
		parsed, err := policy.ParseRole(role)
		if err != nil {
			httputil.WriteBadRequest(w, err.Error())
			return
		}
		q.Role = parsed
	}

	result, err := h.service.List(r.Context(), a, q)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// create handles POST /users
func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var d Draft
	if !httputil.ParseJSONOrError(w, r, &d) {
		return
	}

	u, err := h.service.Create(r.Context(), a, d)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	observability.FromContext(r.Context()).WithField("user_id", u.ID).Info("user created")
	httputil.WriteCreated(w, u)
}

// BulkRequest is the body of POST /users/bulk. Rows come from a spreadsheet
// the client has already parsed.
type BulkRequest struct {
	Users []Draft `json:"users"`
}

// bulkCreate handles POST /users/bulk
func (h *Handlers) bulkCreate(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req BulkRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.service.BulkCreate(r.Context(), a, req.Users)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// form handles GET /users/form?role=&college=&institute=&department=
func (h *Handlers) form(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	role, err := policy.ParseRole(httputil.ParseQueryString(r, "role", string(policy.RoleFaculty)))
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if !policy.CanCreateRole(a, role) {
		httputil.WriteServiceError(w, policy.ErrRoleNotAllowed)
		return
	}

	sel := policy.Selection{
		College:    httputil.ParseQueryString(r, "college", ""),
		Institute:  httputil.ParseQueryString(r, "institute", ""),
		Department: httputil.ParseQueryString(r, "department", ""),
	}
	httputil.WriteSuccess(w, h.service.Form(a, role, sel))
}

// snapshot handles GET /users/snapshot
func (h *Handlers) snapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.service.Snapshot(r.Context())
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, snap)
}

// uniqueness handles POST /users/uniqueness
func (h *Handlers) uniqueness(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var q UniquenessQuery
	if !httputil.ParseJSONOrError(w, r, &q) {
		return
	}

	res, err := h.service.CheckUniqueness(r.Context(), a, q)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, res)
}

// get handles GET /users/{id}
func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	row, err := h.service.Get(r.Context(), a, id)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, row)
}

// update handles PUT /users/{id}
func (h *Handlers) update(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var p Patch
	if !httputil.ParseJSONOrError(w, r, &p) {
		return
	}

	u, err := h.service.Update(r.Context(), a, id, p)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, u)
}

// remove handles DELETE /users/{id}
func (h *Handlers) remove(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.Delete(r.Context(), a, id); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// getSettings handles GET /me/settings
func (h *Handlers) getSettings(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	u, err := h.service.Settings(r.Context(), a)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, u)
}

// updateSettings handles PUT /me/settings
func (h *Handlers) updateSettings(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var upd SettingsUpdate
	if !httputil.ParseJSONOrError(w, r, &upd) {
		return
	}

	u, err := h.service.UpdateSettings(r.Context(), a, upd)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, u)
}

// changePassword handles PUT /me/password
func (h *Handlers) changePassword(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req PasswordChange
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	if err := h.service.ChangePassword(r.Context(), a, req); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
