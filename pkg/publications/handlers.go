package publications

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/researchportal/pubportal/pkg/httputil"
	"github.com/researchportal/pubportal/pkg/middleware"
	"github.com/researchportal/pubportal/pkg/observability"
	"github.com/researchportal/pubportal/pkg/policy"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// Handlers serves the publication endpoints
type Handlers struct {
	service *Service
}

// NewHandlers creates publication handlers
func NewHandlers(service *Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers the publication routes on a router that already
// authenticates
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/publications", h.list).Methods("GET")
	router.HandleFunc("/publications", h.create).Methods("POST")
	router.HandleFunc("/publications/eligibility", h.eligibility).Methods("GET")
	router.HandleFunc("/publications/export", h.export).Methods("GET")
	router.HandleFunc("/publications/bulk-delete", h.bulkDelete).Methods("POST")
	router.HandleFunc("/publications/{id:[0-9]+}", h.get).Methods("GET")
	router.HandleFunc("/publications/{id:[0-9]+}", h.update).Methods("PUT")
	router.HandleFunc("/publications/{id:[0-9]+}", h.remove).Methods("DELETE")
}

func actor(w http.ResponseWriter, r *http.Request) (policy.Actor, bool) {
	a, ok := middleware.ActorFromRequest(r)
	if !ok {
		httputil.WriteUnauthorized(w, "authentication required")
	}
	return a, ok
}

// parseIDs reads a comma separated id list
func parseIDs(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id in ids: %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseQuery reads the listing filters shared by list and export
func parseQuery(r *http.Request, a policy.Actor) (ListQuery, error) {
	q := ListQuery{
		College:    httputil.ParseQueryString(r, "college", ""),
		Institute:  httputil.ParseQueryString(r, "institute", ""),
		Department: httputil.ParseQueryString(r, "department", ""),
		FacultyID:  httputil.ParseQueryString(r, "faculty_id", ""),
		Search:     httputil.ParseQueryString(r, "search", ""),
	}

	if t := httputil.ParseQueryString(r, "type", ""); t != "" {
		q.Type = Type(strings.ToLower(t))
		if !q.Type.Valid() {
			return q, fmt.Errorf("invalid publication type: %s", t)
		}
	}

	var err error
	if q.YearFrom, err = httputil.ParseQueryInt(r, "year_from", 0); err != nil {
		return q, err
	}
	if q.YearTo, err = httputil.ParseQueryInt(r, "year_to", 0); err != nil {
		return q, err
	}
	year, err := httputil.ParseQueryInt(r, "year", 0)
	if err != nil {
		return q, err
	}
	if year != 0 {
		q.YearFrom, q.YearTo = year, year
	}

	mine, err := httputil.ParseQueryBool(r, "mine", false)
	if err != nil {
		return q, err
	}
	if mine {
		if a.FacultyID == "" {
			return q, fmt.Errorf("mine requires an account with a faculty id")
		}
		q.FacultyID = a.FacultyID
	}

	ids, err := parseIDs(r.URL.Query().Get("ids"))
	if err != nil {
		return q, err
	}
	if len(ids) > 0 {
		q.IDs = ids
	}
	return q, nil
}

// list handles GET /publications
func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	q, err := parseQuery(r, a)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	page, err := httputil.ParsePage(r, defaultPageSize, maxPageSize)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	q.Limit, q.Offset = page.Limit, page.Offset

	result, err := h.service.List(r.Context(), a, q)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// create handles POST /publications
func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var d Draft
	if !httputil.ParseJSONOrError(w, r, &d) {
		return
	}

	p, err := h.service.Create(r.Context(), a, d)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	observability.FromContext(r.Context()).WithField("publication_id", p.ID).Info("publication uploaded")
	httputil.WriteCreated(w, p)
}

// eligibility handles GET /publications/eligibility
func (h *Handlers) eligibility(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	e, err := h.service.Eligibility(r.Context(), a)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, e)
}

// export handles GET /publications/export
func (h *Handlers) export(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	q, err := parseQuery(r, a)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	var buf bytes.Buffer
	if _, err := h.service.Export(r.Context(), a, q, &buf); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	filename := fmt.Sprintf("publications-%s.csv", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// BulkDeleteRequest is the body of POST /publications/bulk-delete
type BulkDeleteRequest struct {
	IDs []int64 `json:"ids"`
}

// bulkDelete handles POST /publications/bulk-delete
func (h *Handlers) bulkDelete(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	var req BulkDeleteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, err := h.service.BulkDelete(r.Context(), a, req.IDs)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// get handles GET /publications/{id}
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

// update handles PUT /publications/{id}
func (h *Handlers) update(w http.ResponseWriter, r *http.Request) {
	a, ok := actor(w, r)
	if !ok {
		return
	}
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	var f Fields
	if !httputil.ParseJSONOrError(w, r, &f) {
		return
	}

	p, err := h.service.Update(r.Context(), a, id, f)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, p)
}

// remove handles DELETE /publications/{id}
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
