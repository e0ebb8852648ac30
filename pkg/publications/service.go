package publications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/researchportal/pubportal/pkg/audit"
	"github.com/researchportal/pubportal/pkg/auth"
	"github.com/researchportal/pubportal/pkg/observability"
	"github.com/researchportal/pubportal/pkg/policy"
	"github.com/researchportal/pubportal/pkg/storage"
	"github.com/researchportal/pubportal/pkg/validation"
)

// Repository is the persistence the service needs
type Repository interface {
	Create(ctx context.Context, p *Publication) error
	Get(ctx context.Context, id int64) (*Publication, error)
	List(ctx context.Context, sc policy.PaperScope, q ListQuery) ([]Publication, int, error)
	Update(ctx context.Context, p *Publication) error
	Delete(ctx context.Context, id int64) error
	CountByType(ctx context.Context) (map[Type]int64, error)
}

// Directory resolves owners. The users store implements it.
type Directory interface {
	AccountByID(ctx context.Context, id int64) (*auth.Account, error)
	AccountByFacultyID(ctx context.Context, facultyID string) (*auth.Account, error)
}

// Service applies the publication policy on top of a Repository
type Service struct {
	repo      Repository
	directory Directory
	engine    *policy.Engine
	audit     audit.Logger
	metrics   *observability.Metrics
}

// NewService creates a Service. metrics may be nil.
func NewService(repo Repository, directory Directory, engine *policy.Engine, auditLogger audit.Logger, metrics *observability.Metrics) *Service {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Service{repo: repo, directory: directory, engine: engine, audit: auditLogger, metrics: metrics}
}

// Eligibility reports whether actor may open the upload flow, reading the
// author ids currently on file
func (s *Service) Eligibility(ctx context.Context, actor policy.Actor) (policy.Eligibility, error) {
	var ids policy.AuthorIDs
	if actor.Role == policy.RoleFaculty {
		account, err := s.directory.AccountByID(ctx, actor.UserID)
		if err != nil {
			return policy.Eligibility{}, err
		}
		ids = account.AuthorIDs
	}
	e := policy.UploadEligibility(actor, ids)
	s.metrics.RecordPolicyDecision("publication.upload", string(actor.Role), e.Allowed)
	return e, nil
}

// owner resolves the account a new publication belongs to
func (s *Service) owner(ctx context.Context, actor policy.Actor, facultyID string) (*auth.Account, error) {
	facultyID = strings.TrimSpace(facultyID)
	if facultyID == "" || strings.EqualFold(facultyID, actor.FacultyID) {
		if strings.TrimSpace(actor.FacultyID) == "" {
			verr := policy.NewValidationError()
			verr.Add("faculty_id", "is required because your account has no faculty id")
			return nil, verr
		}
		return s.directory.AccountByID(ctx, actor.UserID)
	}

	account, err := s.directory.AccountByFacultyID(ctx, facultyID)
	if errors.Is(err, storage.ErrNotFound) {
		verr := policy.NewValidationError()
		verr.Add("faculty_id", "does not belong to any user")
		return nil, verr
	}
	if err != nil {
		return nil, err
	}

	// uploading for someone else is an oversight action on their future paper
	paper := policy.Paper{
		FacultyID:  account.Actor.FacultyID,
		College:    account.Actor.College,
		Institute:  account.Actor.Institute,
		Department: account.Actor.Department,
	}
	d := s.engine.ExplainEditPaper(actor, paper)
	s.metrics.RecordPolicyDecision("publication.upload_for", d.Rule, d.Allowed)
	if !d.Allowed {
		s.audit.Log(ctx, audit.Denied(actor, audit.ResourceTypePublication, 0, d))
		return nil, policy.ErrForbidden
	}
	return account, nil
}

// Create uploads a publication. The owner's scope is copied onto it.
func (s *Service) Create(ctx context.Context, actor policy.Actor, d Draft) (*Publication, error) {
	d.normalize()
	if err := validation.Struct(&d.Fields); err != nil {
		return nil, err
	}
	verr := policy.NewValidationError()
	d.check(verr)
	if len(d.FacultyID) > 64 {
		verr.Add("faculty_id", "must be at most 64 characters")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	eligibility, err := s.Eligibility(ctx, actor)
	if err != nil {
		return nil, err
	}
	if !eligibility.Allowed {
		return nil, policy.ErrUploadIneligible
	}

	owner, err := s.owner(ctx, actor, d.FacultyID)
	if err != nil {
		return nil, err
	}

	p := &Publication{
		FacultyID:  owner.Actor.FacultyID,
		OwnerID:    owner.ID,
		College:    owner.Actor.College,
		Institute:  owner.Actor.Institute,
		Department: owner.Actor.Department,
	}
	d.apply(p)
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.Mutation(audit.EventTypePublicationCreate, actor, audit.ResourceTypePublication, p.ID).
		WithMetadata("type", string(p.Type)).
		WithMetadata("faculty_id", p.FacultyID))
	return p, nil
}

// visible loads the publication with id and hides it when actor may not see it
func (s *Service) visible(ctx context.Context, actor policy.Actor, id int64) (*Publication, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	paper := p.Paper()
	if !policy.IsOwner(actor, paper) && !s.engine.PublicationFilter(actor).Matches(paper) {
		return nil, storage.ErrNotFound
	}
	return p, nil
}

func (s *Service) row(actor policy.Actor, p Publication) Row {
	return Row{Publication: p, Actions: s.engine.RowActions(actor, p.Paper())}
}

// Get returns one publication visible to actor
func (s *Service) Get(ctx context.Context, actor policy.Actor, id int64) (*Row, error) {
	p, err := s.visible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	row := s.row(actor, *p)
	return &row, nil
}

// List returns the page of publications actor may see that match q
func (s *Service) List(ctx context.Context, actor policy.Actor, q ListQuery) (*ListResult, error) {
	pubs, total, err := s.repo.List(ctx, s.engine.PublicationFilter(actor), q)
	if err != nil {
		return nil, err
	}

	result := &ListResult{Publications: make([]Row, 0, len(pubs)), Total: total, Limit: q.Limit, Offset: q.Offset}
	for _, p := range pubs {
		result.Publications = append(result.Publications, s.row(actor, p))
	}
	return result, nil
}

// authorize loads the publication and checks that actor may change it
func (s *Service) authorize(ctx context.Context, actor policy.Actor, id int64, decision string) (*Publication, error) {
	p, err := s.visible(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	d := s.engine.ExplainEditPaper(actor, p.Paper())
	s.metrics.RecordPolicyDecision(decision, d.Rule, d.Allowed)
	if !d.Allowed {
		s.audit.Log(ctx, audit.Denied(actor, audit.ResourceTypePublication, id, d))
		return nil, policy.ErrForbidden
	}
	return p, nil
}

// Update replaces the descriptive fields of the publication with id
func (s *Service) Update(ctx context.Context, actor policy.Actor, id int64, f Fields) (*Publication, error) {
	f.normalize()
	if err := validation.Struct(&f); err != nil {
		return nil, err
	}
	verr := policy.NewValidationError()
	f.check(verr)
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	p, err := s.authorize(ctx, actor, id, "publication.edit")
	if err != nil {
		return nil, err
	}
	before := map[string]interface{}{"title": p.Title, "year": p.Year, "type": string(p.Type)}
	f.apply(p)
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	event := audit.Mutation(audit.EventTypePublicationUpdate, actor, audit.ResourceTypePublication, id)
	event.Changes = &audit.ChangeDetails{
		Before: before,
		After:  map[string]interface{}{"title": p.Title, "year": p.Year, "type": string(p.Type)},
	}
	s.audit.Log(ctx, event)
	return p, nil
}

// Delete removes the publication with id
func (s *Service) Delete(ctx context.Context, actor policy.Actor, id int64) error {
	p, err := s.authorize(ctx, actor, id, "publication.delete")
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.audit.Log(ctx, audit.Mutation(audit.EventTypePublicationDelete, actor, audit.ResourceTypePublication, id).
		WithMetadata("faculty_id", p.FacultyID).
		WithMetadata("title", p.Title))
	return nil
}

// BulkDelete deletes every id the actor may delete and reports the rest.
// Each id is decided on its own.
func (s *Service) BulkDelete(ctx context.Context, actor policy.Actor, ids []int64) (*BulkDeleteResult, error) {
	if err := checkIDs(ids); err != nil {
		return nil, err
	}

	result := &BulkDeleteResult{Deleted: []int64{}, Failed: []BulkDeleteFailure{}}
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		err := s.Delete(ctx, actor, id)
		switch {
		case err == nil:
			result.Deleted = append(result.Deleted, id)
		case errors.Is(err, storage.ErrNotFound):
			result.Failed = append(result.Failed, BulkDeleteFailure{ID: id, Error: "not found"})
		case errors.Is(err, policy.ErrForbidden):
			result.Failed = append(result.Failed, BulkDeleteFailure{ID: id, Error: "forbidden"})
		default:
			return nil, fmt.Errorf("failed to delete publication %d: %w", id, err)
		}
	}
	return result, nil
}

func checkIDs(ids []int64) error {
	verr := policy.NewValidationError()
	switch {
	case len(ids) == 0:
		verr.Add("ids", "is required")
	case len(ids) > MaxBulkIDs:
		verr.Add("ids", fmt.Sprintf("must contain at most %d ids", MaxBulkIDs))
	}
	for _, id := range ids {
		if id <= 0 {
			verr.Add("ids", "must be positive")
		}
	}
	return verr.OrNil()
}

// RefreshGauge sets the publications gauge from the store
func (s *Service) RefreshGauge(ctx context.Context) error {
	if s.metrics == nil {
		return nil
	}
	counts, err := s.repo.CountByType(ctx)
	if err != nil {
		return err
	}
	for t, n := range counts {
		s.metrics.PublicationsTotal.WithLabelValues(string(t)).Set(float64(n))
	}
	return nil
}
