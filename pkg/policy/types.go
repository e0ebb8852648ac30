package policy

import (
	"fmt"
	"strings"
)

// Role is one of the four portal roles
type Role string

const (
	RoleSuperAdmin  Role = "super_admin"
	RoleCampusAdmin Role = "campus_admin"
	RoleAdmin       Role = "admin"
	RoleFaculty     Role = "faculty"
)

// AllRoles returns the roles from most to least privileged
func AllRoles() []Role {
	return []Role{RoleSuperAdmin, RoleCampusAdmin, RoleAdmin, RoleFaculty}
}

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleCampusAdmin, RoleAdmin, RoleFaculty:
		return true
	}
	return false
}

func (r Role) String() string {
	return string(r)
}

// ParseRole converts a string to a Role
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return r, nil
}

// Actor is the authenticated caller, rebuilt from the session token on every request
type Actor struct {
	UserID     int64  `json:"user_id"`
	Role       Role   `json:"role"`
	College    string `json:"college"`
	Institute  string `json:"institute"`
	Department string `json:"department"`
	FacultyID  string `json:"faculty_id"`
	Email      string `json:"email"`
}

// TargetUser is a user record being created, edited, deleted or listed
type TargetUser struct {
	ID         int64  `json:"id"`
	Role       Role   `json:"role"`
	College    string `json:"college"`
	Institute  string `json:"institute"`
	Department string `json:"department"`
	FacultyID  string `json:"faculty_id"`
	Email      string `json:"email"`
}

// Paper holds the ownership and scope attributes of a publication
type Paper struct {
	FacultyID  string `json:"faculty_id"`
	College    string `json:"college"`
	Institute  string `json:"institute"`
	Department string `json:"department"`
}

// AuthorIDs are the external author identifiers a faculty member keeps on file
type AuthorIDs struct {
	Scopus       string `json:"scopus"`
	SCI          string `json:"sci"`
	WebOfScience string `json:"web_of_science"`
}

// Any reports whether at least one identifier is set
func (a AuthorIDs) Any() bool {
	return strings.TrimSpace(a.Scopus) != "" ||
		strings.TrimSpace(a.SCI) != "" ||
		strings.TrimSpace(a.WebOfScience) != ""
}

// Decision is the outcome of a permission check together with the rule that produced it
type Decision struct {
	Allowed bool   `json:"allowed"`
	Rule    string `json:"rule"`
	Reason  string `json:"reason,omitempty"`
}

func allow(rule string) Decision {
	return Decision{Allowed: true, Rule: rule}
}

func deny(rule, reason string) Decision {
	return Decision{Rule: rule, Reason: reason}
}
