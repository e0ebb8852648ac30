package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanCreateRole(t *testing.T) {
	want := map[Role]map[Role]bool{
		RoleSuperAdmin:  {RoleSuperAdmin: true, RoleCampusAdmin: true, RoleAdmin: true, RoleFaculty: true},
		RoleCampusAdmin: {RoleAdmin: true, RoleFaculty: true},
		RoleAdmin:       {RoleFaculty: true},
		RoleFaculty:     {},
	}

	for _, actorRole := range AllRoles() {
		for _, target := range AllRoles() {
			actor := Actor{Role: actorRole}
			assert.Equal(t, want[actorRole][target], CanCreateRole(actor, target),
				"%s creating %s", actorRole, target)
		}
	}

	assert.True(t, CanCreateRole(Actor{Role: RoleAdmin}, RoleFaculty))
	assert.False(t, CanCreateRole(Actor{Role: RoleAdmin}, RoleAdmin))
	assert.False(t, CanCreateRole(Actor{Role: "dean"}, RoleFaculty))
	assert.False(t, CanCreateRole(Actor{Role: RoleSuperAdmin}, "dean"))
}

func TestCreatableRoles(t *testing.T) {
	assert.Equal(t, []Role{RoleAdmin, RoleFaculty}, CreatableRoles(Actor{Role: RoleCampusAdmin}))
	assert.Empty(t, CreatableRoles(Actor{Role: RoleFaculty}))

	roles := CreatableRoles(Actor{Role: RoleAdmin})
	roles[0] = RoleSuperAdmin
	assert.Equal(t, []Role{RoleFaculty}, CreatableRoles(Actor{Role: RoleAdmin}))
}

func TestParseRole(t *testing.T) {
	r, err := ParseRole(" Campus_Admin ")
	require.NoError(t, err)
	assert.Equal(t, RoleCampusAdmin, r)

	_, err = ParseRole("dean")
	assert.Error(t, err)
	assert.False(t, Role("dean").Valid())
}
