// Package policy decides what an authenticated actor may see, create, edit and
// delete in the portal.
//
// # Overview
//
// Every function in this package is pure: it takes an Actor snapshot, a target
// (user or publication) and the static scope hierarchy, and returns a decision.
// Nothing is read from ambient state, so the same inputs always produce the
// same output.
//
// # Roles
//
//	super_admin   - global oversight, creates campus admins, admins and faculty
//	campus_admin  - bound to one college (and institute), creates admins and faculty
//	admin         - bound to one college and institute, creates faculty
//	faculty       - owns publications, creates nobody
//
// # Scope assignment
//
// AssignmentForm evaluates an ordered rule list when a user is created or
// edited. The first matching rule fixes college and institute; the research
// rule runs last and may replace the department with the college's fixed
// research department:
//
//	form := engine.AssignmentForm(actor, policy.RoleFaculty, policy.Selection{
//		College:   "SRMIST RAMAPURAM",
//		Institute: "SRM RESEARCH",
//	})
//	// form.Department.Value == "Ramapuram Research", form.Department.Editable == false
//
// ResolveAssignment applies the same form to submitted values and returns a
// *ValidationError listing every field that failed.
//
// # Visibility
//
// UserFilter and PublicationFilter return scope structs that the stores
// translate into SQL and that callers can re-check with Matches.
//
// # Uniqueness
//
// CheckUniqueness is advisory. The snapshot it runs against can be stale by
// the time a write lands, so the store's duplicate error stays authoritative.
package policy
