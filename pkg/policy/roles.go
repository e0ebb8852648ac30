package policy

// creatable is the role-creation table. super_admin may also mint another
// super_admin; that target is always placed at N/A scope.
var creatable = map[Role][]Role{
	RoleSuperAdmin:  {RoleSuperAdmin, RoleCampusAdmin, RoleAdmin, RoleFaculty},
	RoleCampusAdmin: {RoleAdmin, RoleFaculty},
	RoleAdmin:       {RoleFaculty},
	RoleFaculty:     nil,
}

// CanCreateRole reports whether the actor may assign role to a new user
func CanCreateRole(actor Actor, role Role) bool {
	for _, r := range creatable[actor.Role] {
		if r == role {
			return true
		}
	}
	return false
}

// CreatableRoles lists the roles the actor may assign, most privileged first
func CreatableRoles(actor Actor) []Role {
	return append([]Role{}, creatable[actor.Role]...)
}
