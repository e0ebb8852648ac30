package policy

import (
	"strings"

	"github.com/researchportal/pubportal/pkg/scope"
)

// Assignment rule names, reported on forms and in decision metrics
const (
	RuleTargetSuperAdmin   = "target_super_admin"
	RuleCampusScope        = "campus_scope"
	RuleGlobalScope        = "global_scope"
	RuleResearchDepartment = "research_department"
	RuleNotPermitted       = "not_permitted"
)

// Selection is what the actor picked (or submitted) for the scope fields
type Selection struct {
	College    string `json:"college"`
	Institute  string `json:"institute"`
	Department string `json:"department"`
}

// FieldRule describes how one scope field behaves in the create/edit flow.
// A field that is not Editable always takes Value.
type FieldRule struct {
	Visible  bool     `json:"visible"`
	Editable bool     `json:"editable"`
	Required bool     `json:"required"`
	Value    string   `json:"value,omitempty"`
	Options  []string `json:"options,omitempty"`
}

// Form is the computed state of the scope fields for one target role
type Form struct {
	Role       Role      `json:"role"`
	College    FieldRule `json:"college"`
	Institute  FieldRule `json:"institute"`
	Department FieldRule `json:"department"`
	Rule       string    `json:"rule"`
}

// Assignment is a resolved scope for a user record
type Assignment struct {
	College    string `json:"college"`
	Institute  string `json:"institute"`
	Department string `json:"department"`
}

func forced(value string, visible bool) FieldRule {
	if value == "" {
		value = scope.NA
	}
	return FieldRule{Visible: visible, Value: value}
}

func hidden() FieldRule {
	return forced(scope.NA, false)
}

// choice offers options to the actor. A lone N/A leaves nothing to choose.
func choice(options []string) FieldRule {
	if len(options) == 1 && options[0] == scope.NA {
		return hidden()
	}
	return FieldRule{Visible: true, Editable: true, Required: true, Options: options}
}

// AssignmentForm computes the scope fields for a user of targetRole created by
// actor. Rules are evaluated in order and the first match fixes college and
// institute; the research rule is then applied to the department.
func (e *Engine) AssignmentForm(actor Actor, targetRole Role, sel Selection) Form {
	form := Form{Role: targetRole}
	h := e.hierarchy

	switch {
	case targetRole == RoleSuperAdmin:
		form.Rule = RuleTargetSuperAdmin
		form.College, form.Institute, form.Department = hidden(), hidden(), hidden()
		return form

	case actor.Role == RoleCampusAdmin || actor.Role == RoleAdmin:
		form.Rule = RuleCampusScope
		form.College = forced(actor.College, true)
		form.Institute = forced(actor.Institute, h.HasInstitutes(actor.College))
		if targetRole == RoleFaculty {
			form.Department = choice(h.DepartmentsOf(form.College.Value, form.Institute.Value))
		} else {
			form.Department = hidden()
		}

	case actor.Role == RoleSuperAdmin:
		form.Rule = RuleGlobalScope
		form.College = choice(h.SelectableColleges())
		college := strings.TrimSpace(sel.College)
		if h.HasInstitutes(college) {
			form.Institute = choice(h.InstitutesOf(college))
		} else {
			form.Institute = hidden()
		}
		if targetRole == RoleFaculty {
			institute := form.Institute.Value
			if form.Institute.Editable {
				institute = strings.TrimSpace(sel.Institute)
			}
			form.Department = choice(h.DepartmentsOf(college, institute))
		} else {
			form.Department = hidden()
		}

	default:
		form.Rule = RuleNotPermitted
		form.College, form.Institute, form.Department = hidden(), hidden(), hidden()
		return form
	}

	college, institute := form.College.Value, form.Institute.Value
	if form.College.Editable {
		college = strings.TrimSpace(sel.College)
	}
	if form.Institute.Editable {
		institute = strings.TrimSpace(sel.Institute)
	}
	if h.IsResearch(college, institute) {
		dept := h.ResearchDepartment(college)
		form.Rule = RuleResearchDepartment
		form.Department = FieldRule{Visible: true, Value: dept, Options: []string{dept}}
	}

	return form
}

// ResolveAssignment applies the form for targetRole to a submitted selection.
// Forced fields ignore the submitted value; chosen fields must be present and
// one of the offered options.
func (e *Engine) ResolveAssignment(actor Actor, targetRole Role, sel Selection) (Assignment, error) {
	if !CanCreateRole(actor, targetRole) {
		return Assignment{}, ErrRoleNotAllowed
	}

	form := e.AssignmentForm(actor, targetRole, sel)
	verr := NewValidationError()

	out := Assignment{
		College:    resolveField(verr, "college", form.College, sel.College),
		Institute:  resolveField(verr, "institute", form.Institute, sel.Institute),
		Department: resolveField(verr, "department", form.Department, sel.Department),
	}
	if err := verr.OrNil(); err != nil {
		return Assignment{}, err
	}
	return out, nil
}

func resolveField(verr *ValidationError, name string, rule FieldRule, submitted string) string {
	if !rule.Editable {
		return rule.Value
	}

	v := strings.TrimSpace(submitted)
	if v == "" || v == scope.NA {
		verr.Add(name, "is required")
		return ""
	}
	if !contains(rule.Options, v) {
		verr.Add(name, "is not a valid choice")
		return ""
	}
	return v
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
