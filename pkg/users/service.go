package users

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

// Repository is the persistence the service needs. Store and CachedStore
// implement it.
type Repository interface {
	Create(ctx context.Context, u *User) error
	Get(ctx context.Context, id int64) (*User, error)
	GetByFacultyID(ctx context.Context, facultyID string) (*User, error)
	List(ctx context.Context, sc policy.UserScope, q ListQuery) ([]User, int, error)
	Update(ctx context.Context, u *User) error
	UpdateSettings(ctx context.Context, id int64, name, phone string, ids policy.AuthorIDs) error
	SetPasswordHash(ctx context.Context, email, hash string) error
	Delete(ctx context.Context, id int64) error
	Snapshot(ctx context.Context) (policy.Snapshot, error)
	Count(ctx context.Context) (int64, error)
}

// Service applies the user management policy on top of a Repository
type Service struct {
	repo    Repository
	engine  *policy.Engine
	audit   audit.Logger
	metrics *observability.Metrics
}

// NewService creates a Service. metrics may be nil.
func NewService(repo Repository, engine *policy.Engine, auditLogger audit.Logger, metrics *observability.Metrics) *Service {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Service{repo: repo, engine: engine, audit: auditLogger, metrics: metrics}
}

// Engine returns the policy engine the service decides with
func (s *Service) Engine() *policy.Engine {
	return s.engine
}

func (s *Service) deny(ctx context.Context, actor policy.Actor, id int64, d policy.Decision) {
	s.audit.Log(ctx, audit.Denied(actor, audit.ResourceTypeUser, id, d))
}

// Create adds a user on behalf of actor
func (s *Service) Create(ctx context.Context, actor policy.Actor, d Draft) (*User, error) {
	d.normalize()
	if err := validation.Struct(&d); err != nil {
		return nil, err
	}

	allowed := policy.CanCreateRole(actor, d.Role)
	s.metrics.RecordPolicyDecision("user.create", string(d.Role), allowed)
	if !allowed {
		s.deny(ctx, actor, 0, policy.Decision{Rule: policy.RuleNotPermitted, Reason: policy.ErrRoleNotAllowed.Error()})
		return nil, policy.ErrRoleNotAllowed
	}

	assignment, err := s.engine.ResolveAssignment(actor, d.Role, d.selection())
	if err != nil {
		return nil, err
	}

	u := &User{
		Email:      d.Email,
		Name:       d.Name,
		Phone:      d.Phone,
		Role:       d.Role,
		College:    assignment.College,
		Institute:  assignment.Institute,
		Department: assignment.Department,
		FacultyID:  d.FacultyID,
	}
	if actor.UserID != 0 {
		createdBy := actor.UserID
		u.CreatedBy = &createdBy
	}

	verr := policy.NewValidationError()
	s.checkPlacement(verr, actor, u)
	if err := s.checkUniqueness(ctx, verr, u.Target(), nil); err != nil {
		return nil, err
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	u.PasswordHash, err = auth.HashPassword(d.Password)
	if err != nil {
		return nil, passwordError("password", err)
	}

	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.Mutation(audit.EventTypeUserCreate, actor, audit.ResourceTypeUser, u.ID).
		WithMetadata("role", string(u.Role)).
		WithMetadata("college", u.College).
		WithMetadata("institute", u.Institute))
	return u, nil
}

// checkPlacement validates the fields that depend on where the user is placed
func (s *Service) checkPlacement(verr *policy.ValidationError, actor policy.Actor, u *User) {
	if !s.engine.ValidateEmailDomain(u.Email, u.College, u.Institute, actor) {
		hints := s.engine.DomainHints(u.College, u.Institute, actor)
		verr.Add("email", "must use one of the domains: "+strings.Join(hints, ", "))
	}
	if u.Role == policy.RoleFaculty && strings.TrimSpace(u.FacultyID) == "" {
		verr.Add("faculty_id", "is required for faculty")
	}
}

// checkUniqueness adds advisory duplicate messages to verr
func (s *Service) checkUniqueness(ctx context.Context, verr *policy.ValidationError, candidate policy.TargetUser, original *policy.TargetUser) error {
	snap, err := s.repo.Snapshot(ctx)
	if err != nil {
		return err
	}
	var dup *policy.ValidationError
	if errors.As(policy.CheckUniqueness(snap, candidate, original), &dup) {
		verr.Merge(dup)
	}
	return nil
}

func passwordError(field string, err error) error {
	if errors.Is(err, auth.ErrWeakPassword) {
		verr := policy.NewValidationError()
		verr.Add(field, err.Error())
		return verr
	}
	return err
}

// visible loads the user with id and hides it when actor may not list it
func (s *Service) visible(ctx context.Context, actor policy.Actor, id int64) (*User, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.ID != actor.UserID && !s.engine.UserFilter(actor).Matches(u.Target()) {
		return nil, storage.ErrNotFound
	}
	return u, nil
}

// Get returns one user visible to actor
func (s *Service) Get(ctx context.Context, actor policy.Actor, id int64) (*Row, error) {
	u, err := s.visible(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	row := s.row(actor, *u)
	return &row, nil
}

func (s *Service) row(actor policy.Actor, u User) Row {
	can := s.engine.CanModifyUser(actor, u.Target())
	return Row{User: u, CanEdit: can, CanDelete: can}
}

// List returns the page of users actor may see that match q
func (s *Service) List(ctx context.Context, actor policy.Actor, q ListQuery) (*ListResult, error) {
	users, total, err := s.repo.List(ctx, s.engine.UserFilter(actor), q)
	if err != nil {
		return nil, err
	}

	result := &ListResult{Users: make([]Row, 0, len(users)), Total: total, Limit: q.Limit, Offset: q.Offset}
	for _, u := range users {
		result.Users = append(result.Users, s.row(actor, u))
	}
	return result, nil
}

// authorize loads the target and checks that actor may modify it
func (s *Service) authorize(ctx context.Context, actor policy.Actor, id int64) (*User, error) {
	u, err := s.visible(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	d := s.engine.ExplainModifyUser(actor, u.Target())
	s.metrics.RecordPolicyDecision("user.modify", d.Rule, d.Allowed)
	if !d.Allowed {
		s.deny(ctx, actor, id, d)
		return nil, policy.ErrForbidden
	}
	return u, nil
}

// Update applies p to the user with id
func (s *Service) Update(ctx context.Context, actor policy.Actor, id int64, p Patch) (*User, error) {
	if err := validation.Struct(&p); err != nil {
		return nil, err
	}

	original, err := s.authorize(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	updated := *original
	changes := map[string]interface{}{}

	set := func(field string, dst *string, v *string) {
		if v == nil {
			return
		}
		nv := strings.TrimSpace(*v)
		if nv != *dst {
			changes[field] = nv
		}
		*dst = nv
	}
	if p.Email != nil {
		email := normalizeEmail(*p.Email)
		p.Email = &email
	}
	set("email", &updated.Email, p.Email)
	set("name", &updated.Name, p.Name)
	set("phone", &updated.Phone, p.Phone)
	set("faculty_id", &updated.FacultyID, p.FacultyID)

	if p.touchesScope() {
		if p.Role != nil {
			updated.Role = policy.Role(strings.ToLower(string(*p.Role)))
		}
		sel := policy.Selection{College: updated.College, Institute: updated.Institute, Department: updated.Department}
		if p.College != nil {
			sel.College = *p.College
		}
		if p.Institute != nil {
			sel.Institute = *p.Institute
		}
		if p.Department != nil {
			sel.Department = *p.Department
		}

		if updated.Role != original.Role && !policy.CanCreateRole(actor, updated.Role) {
			s.metrics.RecordPolicyDecision("user.assign_role", string(updated.Role), false)
			s.deny(ctx, actor, id, policy.Decision{Rule: policy.RuleNotPermitted, Reason: policy.ErrRoleNotAllowed.Error()})
			return nil, policy.ErrRoleNotAllowed
		}
		assignment, err := s.engine.ResolveAssignment(actor, updated.Role, sel)
		if err != nil {
			return nil, err
		}
		updated.College, updated.Institute, updated.Department = assignment.College, assignment.Institute, assignment.Department

		for field, pair := range map[string][2]string{
			"role":       {string(original.Role), string(updated.Role)},
			"college":    {original.College, updated.College},
			"institute":  {original.Institute, updated.Institute},
			"department": {original.Department, updated.Department},
		} {
			if pair[0] != pair[1] {
				changes[field] = pair[1]
			}
		}

		if d := s.engine.ExplainModifyUser(actor, updated.Target()); !d.Allowed {
			s.deny(ctx, actor, id, d)
			return nil, policy.ErrForbidden
		}
	}

	verr := policy.NewValidationError()
	if _, emailChanged := changes["email"]; emailChanged || p.touchesScope() || p.FacultyID != nil {
		s.checkPlacement(verr, actor, &updated)
	}
	originalTarget := original.Target()
	if err := s.checkUniqueness(ctx, verr, updated.Target(), &originalTarget); err != nil {
		return nil, err
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if p.Password != nil {
		updated.PasswordHash, err = auth.HashPassword(*p.Password)
		if err != nil {
			return nil, passwordError("password", err)
		}
		changes["password"] = "changed"
	}

	if err := s.repo.Update(ctx, &updated); err != nil {
		return nil, err
	}

	event := audit.Mutation(audit.EventTypeUserUpdate, actor, audit.ResourceTypeUser, id)
	event.Changes = &audit.ChangeDetails{After: changes}
	s.audit.Log(ctx, event)
	return &updated, nil
}

// Delete removes the user with id
func (s *Service) Delete(ctx context.Context, actor policy.Actor, id int64) error {
	u, err := s.authorize(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.audit.Log(ctx, audit.Mutation(audit.EventTypeUserDelete, actor, audit.ResourceTypeUser, id).
		WithMetadata("email", u.Email).
		WithMetadata("role", string(u.Role)))
	return nil
}

// isRowError reports whether err belongs to the submitted row rather than
// the system
func isRowError(err error) bool {
	var verr *policy.ValidationError
	return errors.As(err, &verr) ||
		errors.Is(err, policy.ErrRoleNotAllowed) ||
		errors.Is(err, policy.ErrForbidden) ||
		errors.Is(err, storage.ErrDuplicate)
}

// BulkCreate creates each draft in order. A rejected row does not stop the
// batch; a system error does.
func (s *Service) BulkCreate(ctx context.Context, actor policy.Actor, drafts []Draft) (*BulkResult, error) {
	switch {
	case len(drafts) == 0:
		verr := policy.NewValidationError()
		verr.Add("users", "is required")
		return nil, verr
	case len(drafts) > MaxBulkRows:
		verr := policy.NewValidationError()
		verr.Add("users", fmt.Sprintf("must contain at most %d rows", MaxBulkRows))
		return nil, verr
	}

	result := &BulkResult{Rows: make([]BulkRowResult, 0, len(drafts))}
	for i, d := range drafts {
		row := BulkRowResult{Row: i + 1, Email: normalizeEmail(d.Email)}

		u, err := s.Create(ctx, actor, d)
		switch {
		case err == nil:
			row.ID = u.ID
			result.Created++
		case isRowError(err):
			row.Error = err.Error()
			var verr *policy.ValidationError
			if errors.As(err, &verr) {
				row.Error = "validation failed"
				row.Fields = verr.Fields
			}
			result.Failed++
		default:
			return nil, fmt.Errorf("bulk row %d: %w", i+1, err)
		}
		result.Rows = append(result.Rows, row)
	}

	observability.FromContext(ctx).
		WithFields(map[string]interface{}{"created": result.Created, "failed": result.Failed}).
		Info("bulk user upload finished")
	return result, nil
}

// Form returns the create-user form for role with the actor's selection so far
func (s *Service) Form(actor policy.Actor, role policy.Role, sel policy.Selection) FormResponse {
	form := s.engine.AssignmentForm(actor, role, sel)

	college, institute := form.College.Value, form.Institute.Value
	if form.College.Editable {
		college = strings.TrimSpace(sel.College)
	}
	if form.Institute.Editable {
		institute = strings.TrimSpace(sel.Institute)
	}

	return FormResponse{
		Form:           form,
		CreatableRoles: policy.CreatableRoles(actor),
		DomainHints:    s.engine.DomainHints(college, institute, actor),
	}
}

// Snapshot returns the emails and faculty ids on file
func (s *Service) Snapshot(ctx context.Context) (policy.Snapshot, error) {
	return s.repo.Snapshot(ctx)
}

// CheckUniqueness runs the advisory duplicate check for a form in progress
func (s *Service) CheckUniqueness(ctx context.Context, actor policy.Actor, q UniquenessQuery) (*UniquenessResult, error) {
	var original *policy.TargetUser
	if q.OriginalID != 0 {
		u, err := s.visible(ctx, actor, q.OriginalID)
		if err != nil {
			return nil, err
		}
		t := u.Target()
		original = &t
	}

	verr := policy.NewValidationError()
	candidate := policy.TargetUser{Email: q.Email, FacultyID: q.FacultyID}
	if err := s.checkUniqueness(ctx, verr, candidate, original); err != nil {
		return nil, err
	}

	_, emailTaken := verr.Fields["email"]
	_, facultyTaken := verr.Fields["faculty_id"]
	res := &UniquenessResult{EmailTaken: emailTaken, FacultyIDTaken: facultyTaken}
	if verr.HasErrors() {
		res.Fields = verr.Fields
	}
	return res, nil
}

// Settings returns the actor's own record
func (s *Service) Settings(ctx context.Context, actor policy.Actor) (*User, error) {
	return s.repo.Get(ctx, actor.UserID)
}

// UpdateSettings changes the actor's own name, phone and author ids
func (s *Service) UpdateSettings(ctx context.Context, actor policy.Actor, upd SettingsUpdate) (*User, error) {
	if err := validation.Struct(&upd); err != nil {
		return nil, err
	}

	u, err := s.repo.Get(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}

	changes := map[string]interface{}{}
	if upd.Name != nil {
		u.Name = strings.TrimSpace(*upd.Name)
		changes["name"] = u.Name
	}
	if upd.Phone != nil {
		u.Phone = strings.TrimSpace(*upd.Phone)
		changes["phone"] = u.Phone
	}
	if upd.AuthorIDs != nil {
		u.AuthorIDs = upd.AuthorIDs.toPolicy()
		changes["author_ids"] = u.AuthorIDs
	}

	if err := s.repo.UpdateSettings(ctx, u.ID, u.Name, u.Phone, u.AuthorIDs); err != nil {
		return nil, err
	}

	event := audit.Mutation(audit.EventTypeUserSettingsUpdate, actor, audit.ResourceTypeUser, u.ID)
	event.Changes = &audit.ChangeDetails{After: changes}
	s.audit.Log(ctx, event)
	return u, nil
}

// ChangePassword replaces the actor's password after checking the current one
func (s *Service) ChangePassword(ctx context.Context, actor policy.Actor, req PasswordChange) error {
	if err := validation.Struct(&req); err != nil {
		return err
	}

	u, err := s.repo.Get(ctx, actor.UserID)
	if err != nil {
		return err
	}
	ok, err := auth.VerifyPassword(req.CurrentPassword, u.PasswordHash)
	if err != nil {
		return err
	}
	if !ok {
		verr := policy.NewValidationError()
		verr.Add("current_password", "is incorrect")
		return verr
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return passwordError("new_password", err)
	}
	if err := s.repo.SetPasswordHash(ctx, u.Email, hash); err != nil {
		return err
	}

	s.audit.Log(ctx, audit.Mutation(audit.EventTypeAuthPasswordReset, actor, audit.ResourceTypeUser, u.ID).
		WithMessage("password changed from settings"))
	return nil
}

// Owner returns the user owning facultyID
func (s *Service) Owner(ctx context.Context, facultyID string) (*User, error) {
	return s.repo.GetByFacultyID(ctx, facultyID)
}

// RefreshGauge sets the users gauge from the store
func (s *Service) RefreshGauge(ctx context.Context) error {
	if s.metrics == nil {
		return nil
	}
	n, err := s.repo.Count(ctx)
	if err != nil {
		return err
	}
	s.metrics.UsersTotal.Set(float64(n))
	return nil
}
