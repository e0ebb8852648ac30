package policy

import (
	"strings"
)

// Ownership badges
const (
	BadgeOwned    = "Your Paper"
	BadgeViewOnly = "View Only"
)

// Publication rule names
const (
	RuleOwner      = "owner"
	RuleOwnerOnly  = "owner_only"
	RuleOutOfScope = "out_of_scope"
)

// IsOwner reports whether the actor uploaded the publication
func IsOwner(actor Actor, p Paper) bool {
	id := strings.TrimSpace(actor.FacultyID)
	return id != "" && strings.EqualFold(id, strings.TrimSpace(p.FacultyID))
}

// PaperScope is the set of publications an actor may see. Empty string fields
// do not restrict.
type PaperScope struct {
	All       bool   `json:"all"`
	None      bool   `json:"none"`
	College   string `json:"college,omitempty"`
	Institute string `json:"institute,omitempty"`
	FacultyID string `json:"faculty_id,omitempty"`
}

// Matches reports whether p falls inside the scope
func (s PaperScope) Matches(p Paper) bool {
	switch {
	case s.None:
		return false
	case s.All:
		return true
	}
	if s.FacultyID != "" && !strings.EqualFold(p.FacultyID, s.FacultyID) {
		return false
	}
	if s.College != "" && p.College != s.College {
		return false
	}
	if s.Institute != "" && p.Institute != s.Institute {
		return false
	}
	return true
}

// PublicationFilter returns the publication visibility scope of actor
func (e *Engine) PublicationFilter(actor Actor) PaperScope {
	switch actor.Role {
	case RoleSuperAdmin:
		return PaperScope{All: true}

	case RoleCampusAdmin:
		s := PaperScope{College: actor.College}
		if e.institutesMatter(actor.College) {
			s.Institute = actor.Institute
		}
		return s

	case RoleAdmin:
		return PaperScope{College: actor.College, Institute: actor.Institute}

	case RoleFaculty:
		if strings.TrimSpace(actor.FacultyID) == "" {
			return PaperScope{None: true}
		}
		return PaperScope{FacultyID: actor.FacultyID}
	}

	return PaperScope{None: true}
}

// ExplainEditPaper decides whether actor may edit or delete p. Owners always
// may; super admins may act on anything and campus admins on anything inside
// their scope. Admins and faculty are limited to their own uploads.
func (e *Engine) ExplainEditPaper(actor Actor, p Paper) Decision {
	if IsOwner(actor, p) {
		return allow(RuleOwner)
	}

	switch actor.Role {
	case RoleSuperAdmin:
		return allow(RuleSuperAdmin)
	case RoleCampusAdmin:
		if e.PublicationFilter(actor).Matches(p) {
			return allow(RuleCampusScope)
		}
		return deny(RuleOutOfScope, "publication is outside your campus")
	case RoleAdmin, RoleFaculty:
		return deny(RuleOwnerOnly, "only the uploading faculty member can change this publication")
	}

	return deny(RuleNoPermission, "role cannot change publications")
}

// CanEditPaper reports whether actor may edit p
func (e *Engine) CanEditPaper(actor Actor, p Paper) bool {
	return e.ExplainEditPaper(actor, p).Allowed
}

// CanDeletePaper reports whether actor may delete p. Edit and delete share
// one rule set.
func (e *Engine) CanDeletePaper(actor Actor, p Paper) bool {
	return e.ExplainEditPaper(actor, p).Allowed
}

// RowActions is what a publication row offers to the actor. Edit and delete
// entries are omitted, not disabled, on rows the actor may only view.
type RowActions struct {
	Selectable bool   `json:"selectable"`
	ShowEdit   bool   `json:"show_edit"`
	ShowDelete bool   `json:"show_delete"`
	Owned      bool   `json:"owned"`
	Badge      string `json:"badge"`
}

// RowActions computes the row state of p for actor
func (e *Engine) RowActions(actor Actor, p Paper) RowActions {
	owned := IsOwner(actor, p)
	visible := owned || e.PublicationFilter(actor).Matches(p)

	oversight := false
	switch actor.Role {
	case RoleSuperAdmin, RoleCampusAdmin, RoleAdmin:
		oversight = true
	}

	ra := RowActions{
		Selectable: visible && (owned || oversight),
		ShowEdit:   visible && e.CanEditPaper(actor, p),
		ShowDelete: visible && e.CanDeletePaper(actor, p),
		Owned:      owned,
		Badge:      BadgeViewOnly,
	}
	if owned {
		ra.Badge = BadgeOwned
	}
	return ra
}
