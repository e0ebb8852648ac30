package policy

import (
	"strings"
)

// User modification rule names
const (
	RuleSelf         = "self"
	RuleSuperAdmin   = "super_admin"
	RuleAdminScope   = "admin_scope"
	RuleNoPermission = "no_permission"
)

// isSelf reports whether target is the actor's own record
func isSelf(actor Actor, target TargetUser) bool {
	if actor.UserID != 0 && actor.UserID == target.ID {
		return true
	}
	return actor.FacultyID != "" && strings.EqualFold(actor.FacultyID, target.FacultyID)
}

// ExplainModifyUser decides whether actor may edit or delete target and names
// the rule that decided it
func (e *Engine) ExplainModifyUser(actor Actor, target TargetUser) Decision {
	if isSelf(actor, target) {
		return deny(RuleSelf, "own record is changed through settings")
	}

	switch actor.Role {
	case RoleSuperAdmin:
		return allow(RuleSuperAdmin)

	case RoleCampusAdmin:
		if target.College != actor.College {
			return deny(RuleCampusScope, "user belongs to another college")
		}
		if e.institutesMatter(actor.College) && target.Institute != actor.Institute {
			return deny(RuleCampusScope, "user belongs to another institute")
		}
		return allow(RuleCampusScope)

	case RoleAdmin:
		if target.College != actor.College || target.Institute != actor.Institute {
			return deny(RuleAdminScope, "user is outside your institute")
		}
		if target.Role != RoleFaculty {
			return deny(RuleAdminScope, "admins can only manage faculty")
		}
		return allow(RuleAdminScope)
	}

	return deny(RuleNoPermission, "role cannot manage users")
}

// CanModifyUser reports whether actor may edit or delete target
func (e *Engine) CanModifyUser(actor Actor, target TargetUser) bool {
	return e.ExplainModifyUser(actor, target).Allowed
}

// UserScope is the set of users an actor may list. Empty string fields do not
// restrict.
type UserScope struct {
	All       bool   `json:"all"`
	None      bool   `json:"none"`
	College   string `json:"college,omitempty"`
	Institute string `json:"institute,omitempty"`
	Role      Role   `json:"role,omitempty"`
	UserID    int64  `json:"user_id,omitempty"`
}

// Matches reports whether u falls inside the scope
func (s UserScope) Matches(u TargetUser) bool {
	switch {
	case s.None:
		return false
	case s.All:
		return true
	}
	if s.UserID != 0 && u.ID != s.UserID {
		return false
	}
	if s.College != "" && u.College != s.College {
		return false
	}
	if s.Institute != "" && u.Institute != s.Institute {
		return false
	}
	if s.Role != "" && u.Role != s.Role {
		return false
	}
	return true
}

// UserFilter returns the list-visibility scope of actor
func (e *Engine) UserFilter(actor Actor) UserScope {
	switch actor.Role {
	case RoleSuperAdmin:
		return UserScope{All: true}

	case RoleCampusAdmin:
		s := UserScope{College: actor.College}
		if e.institutesMatter(actor.College) {
			s.Institute = actor.Institute
		}
		return s

	case RoleAdmin:
		return UserScope{College: actor.College, Institute: actor.Institute, Role: RoleFaculty}

	case RoleFaculty:
		if actor.UserID == 0 {
			return UserScope{None: true}
		}
		return UserScope{UserID: actor.UserID}
	}

	return UserScope{None: true}
}
