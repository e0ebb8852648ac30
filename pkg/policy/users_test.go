package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanModifyUser(t *testing.T) {
	e := defaultEngine()

	campusX := Actor{UserID: 1, Role: RoleCampusAdmin, College: "X", Institute: "Y", FacultyID: "CA1"}

	tests := []struct {
		name   string
		actor  Actor
		target TargetUser
		want   bool
		rule   string
	}{
		{
			name:   "campus admin same institute",
			actor:  campusX,
			target: TargetUser{ID: 2, Role: RoleFaculty, College: "X", Institute: "Y"},
			want:   true,
			rule:   RuleCampusScope,
		},
		{
			name:   "campus admin other institute",
			actor:  campusX,
			target: TargetUser{ID: 2, Role: RoleFaculty, College: "X", Institute: "Z"},
			rule:   RuleCampusScope,
		},
		{
			name:   "campus admin self",
			actor:  campusX,
			target: TargetUser{ID: 1, Role: RoleCampusAdmin, College: "X", Institute: "Y"},
			rule:   RuleSelf,
		},
		{
			name:   "self by faculty id",
			actor:  Actor{Role: RoleSuperAdmin, FacultyID: "SA1"},
			target: TargetUser{ID: 9, FacultyID: "sa1"},
			rule:   RuleSelf,
		},
		{
			name:   "campus admin flat college ignores institute",
			actor:  Actor{UserID: 1, Role: RoleCampusAdmin, College: easwari, Institute: "N/A"},
			target: TargetUser{ID: 2, Role: RoleAdmin, College: easwari, Institute: "stale"},
			want:   true,
			rule:   RuleCampusScope,
		},
		{
			name:   "campus admin other college",
			actor:  campusX,
			target: TargetUser{ID: 2, Role: RoleFaculty, College: "W", Institute: "Y"},
			rule:   RuleCampusScope,
		},
		{
			name:   "super admin anyone",
			actor:  Actor{UserID: 1, Role: RoleSuperAdmin},
			target: TargetUser{ID: 2, Role: RoleSuperAdmin},
			want:   true,
			rule:   RuleSuperAdmin,
		},
		{
			name:   "admin faculty in institute",
			actor:  Actor{UserID: 1, Role: RoleAdmin, College: ramapuram, Institute: engg},
			target: TargetUser{ID: 2, Role: RoleFaculty, College: ramapuram, Institute: engg},
			want:   true,
			rule:   RuleAdminScope,
		},
		{
			name:   "admin other admin",
			actor:  Actor{UserID: 1, Role: RoleAdmin, College: ramapuram, Institute: engg},
			target: TargetUser{ID: 2, Role: RoleAdmin, College: ramapuram, Institute: engg},
			rule:   RuleAdminScope,
		},
		{
			name:   "admin faculty elsewhere",
			actor:  Actor{UserID: 1, Role: RoleAdmin, College: ramapuram, Institute: engg},
			target: TargetUser{ID: 2, Role: RoleFaculty, College: ramapuram, Institute: research},
			rule:   RuleAdminScope,
		},
		{
			name:   "faculty never",
			actor:  Actor{UserID: 1, Role: RoleFaculty, College: ramapuram, Institute: engg},
			target: TargetUser{ID: 2, Role: RoleFaculty, College: ramapuram, Institute: engg},
			rule:   RuleNoPermission,
		},
		{
			name:   "unknown role",
			actor:  Actor{UserID: 1, Role: "dean"},
			target: TargetUser{ID: 2},
			rule:   RuleNoPermission,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.ExplainModifyUser(tt.actor, tt.target)
			assert.Equal(t, tt.want, d.Allowed)
			assert.Equal(t, tt.rule, d.Rule)
			assert.Equal(t, tt.want, e.CanModifyUser(tt.actor, tt.target))
			// no hidden state between calls
			assert.Equal(t, d, e.ExplainModifyUser(tt.actor, tt.target))
		})
	}
}

func TestUserFilter(t *testing.T) {
	e := defaultEngine()

	assert.Equal(t, UserScope{All: true}, e.UserFilter(Actor{Role: RoleSuperAdmin}))
	assert.Equal(t,
		UserScope{College: ramapuram, Institute: engg},
		e.UserFilter(Actor{Role: RoleCampusAdmin, College: ramapuram, Institute: engg}))
	assert.Equal(t,
		UserScope{College: easwari},
		e.UserFilter(Actor{Role: RoleCampusAdmin, College: easwari, Institute: "N/A"}))
	assert.Equal(t,
		UserScope{College: ramapuram, Institute: engg, Role: RoleFaculty},
		e.UserFilter(Actor{Role: RoleAdmin, College: ramapuram, Institute: engg}))
	assert.Equal(t, UserScope{UserID: 7}, e.UserFilter(Actor{Role: RoleFaculty, UserID: 7}))
	assert.True(t, e.UserFilter(Actor{Role: RoleFaculty}).None)
	assert.True(t, e.UserFilter(Actor{Role: "dean"}).None)
}

func TestUserScopeMatches(t *testing.T) {
	u := TargetUser{ID: 3, Role: RoleAdmin, College: ramapuram, Institute: engg}

	assert.True(t, UserScope{All: true}.Matches(u))
	assert.False(t, UserScope{None: true, All: true}.Matches(u))
	assert.True(t, UserScope{College: ramapuram}.Matches(u))
	assert.False(t, UserScope{College: ramapuram, Role: RoleFaculty}.Matches(u))
	assert.False(t, UserScope{College: ramapuram, Institute: research}.Matches(u))
	assert.True(t, UserScope{UserID: 3}.Matches(u))
	assert.False(t, UserScope{UserID: 4}.Matches(u))
}

func TestUserFilterAgreesWithCanModify(t *testing.T) {
	e := flatEngine(t)
	actors := []Actor{
		{UserID: 100, Role: RoleCampusAdmin, College: "SPLIT", Institute: "I1"},
		{UserID: 101, Role: RoleCampusAdmin, College: "FLAT", Institute: "N/A"},
		{UserID: 102, Role: RoleAdmin, College: "SPLIT", Institute: "I2"},
	}
	var targets []TargetUser
	id := int64(1)
	for _, c := range []string{"SPLIT", "FLAT"} {
		for _, i := range []string{"I1", "I2", "N/A"} {
			for _, r := range []Role{RoleCampusAdmin, RoleAdmin, RoleFaculty} {
				targets = append(targets, TargetUser{ID: id, Role: r, College: c, Institute: i})
				id++
			}
		}
	}

	// for non-self targets the admin roles can modify exactly what they can see
	for _, a := range actors {
		f := e.UserFilter(a)
		for _, tu := range targets {
			assert.Equal(t, f.Matches(tu), e.CanModifyUser(a, tu), "%+v on %+v", a, tu)
		}
	}
}
