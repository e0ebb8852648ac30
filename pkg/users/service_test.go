package users

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchportal/pubportal/pkg/audit"
	"github.com/researchportal/pubportal/pkg/auth"
	"github.com/researchportal/pubportal/pkg/policy"
	"github.com/researchportal/pubportal/pkg/scope"
	"github.com/researchportal/pubportal/pkg/storage"
)

type fixture struct {
	service *Service
	store   *Store
	audit   *audit.MemoryLogger

	super  policy.Actor
	campus policy.Actor
	admin  policy.Actor
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := NewStore(openDB(t))
	mem := audit.NewMemoryLogger()

	f := &fixture{
		service: NewService(store, policy.NewEngine(scope.Default()), mem, nil),
		store:   store,
		audit:   mem,
	}
	f.super = seed(t, store, User{Email: "root@srmist.edu.in", Role: policy.RoleSuperAdmin,
		College: scope.NA, Institute: scope.NA, Department: scope.NA}).Actor()
	f.campus = seed(t, store, User{Email: "dean@srmist.edu.in", Role: policy.RoleCampusAdmin,
		College: ramapuram, Institute: engg, Department: scope.NA}).Actor()
	f.admin = seed(t, store, User{Email: "hod@srmist.edu.in", Role: policy.RoleAdmin,
		College: ramapuram, Institute: engg, Department: scope.NA}).Actor()
	return f
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *policy.ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	return verr.Fields
}

func TestCreate_SuperAdminPlacesCampusAdmin(t *testing.T) {
	f := newFixture(t)

	u, err := f.service.Create(context.Background(), f.super, Draft{
		Email:     "Principal@SRMIST.edu.in",
		Password:  "long-enough-pw",
		Name:      "Principal",
		Role:      policy.RoleCampusAdmin,
		College:   ramapuram,
		Institute: "Science and Humanities",
	})
	require.NoError(t, err)
	assert.Equal(t, "principal@srmist.edu.in", u.Email)
	assert.Equal(t, ramapuram, u.College)
	assert.Equal(t, "Science and Humanities", u.Institute)
	assert.Equal(t, scope.NA, u.Department)
	require.NotNil(t, u.CreatedBy)
	assert.Equal(t, f.super.UserID, *u.CreatedBy)

	ok, err := auth.VerifyPassword("long-enough-pw", u.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Len(t, f.audit.OfType(audit.EventTypeUserCreate), 1)
}

func TestCreate_SuperAdminTargetIsForcedToNA(t *testing.T) {
	f := newFixture(t)

	u, err := f.service.Create(context.Background(), f.super, Draft{
		Email:    "ops@gmail.com",
		Password: "long-enough-pw",
		Name:     "Ops",
		Role:     policy.RoleSuperAdmin,
		College:  ramapuram,
	})
	require.NoError(t, err)
	assert.Equal(t, scope.NA, u.College)
	assert.Equal(t, scope.NA, u.Institute)
	assert.Equal(t, scope.NA, u.Department)
}

func TestCreate_ResearchCampusAdminForcesDepartment(t *testing.T) {
	f := newFixture(t)
	researchAdmin := seed(t, f.store, User{Email: "rd@srmist.edu.in", Role: policy.RoleCampusAdmin,
		College: ramapuram, Institute: research, Department: scope.NA}).Actor()

	for i, email := range []string{"r1@srmrmp.edu.in", "r2@srmtrichy.edu.in"} {
		u, err := f.service.Create(context.Background(), researchAdmin, Draft{
			Email:      email,
			Password:   "long-enough-pw",
			Name:       "Researcher",
			Role:       policy.RoleFaculty,
			College:    trichy,
			Department: cse,
			FacultyID:  []string{"R1", "R2"}[i],
		})
		require.NoError(t, err, email)
		assert.Equal(t, ramapuram, u.College)
		assert.Equal(t, research, u.Institute)
		assert.Equal(t, "Ramapuram Research", u.Department)
	}
}

func TestCreate_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, f.admin, Draft{
		Email: "x@srmist.edu.in", Password: "long-enough-pw", Name: "X", Role: policy.RoleAdmin,
	})
	assert.ErrorIs(t, err, policy.ErrRoleNotAllowed)
	denied := f.audit.OfType(audit.EventTypeAuthzAccessDenied)
	require.Len(t, denied, 1)
	assert.Equal(t, audit.EventStatusDenied, denied[0].Status)

	_, err = f.service.Create(ctx, f.admin, Draft{
		Email: "x@gmail.com", Password: "long-enough-pw", Name: "X", Role: policy.RoleFaculty, Department: cse,
	})
	fields := fieldErrors(t, err)
	assert.Contains(t, fields["email"], "srmist.edu.in")
	assert.Equal(t, "is required for faculty", fields["faculty_id"])

	_, err = f.service.Create(ctx, f.admin, Draft{
		Email: "x@srmist.edu.in", Password: "long-enough-pw", Name: "X", Role: policy.RoleFaculty, FacultyID: "X1",
	})
	assert.Equal(t, "is required", fieldErrors(t, err)["department"])

	_, err = f.service.Create(ctx, f.admin, Draft{Email: "not-an-email", Password: "short", Role: "dean"})
	fields = fieldErrors(t, err)
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "role")
}

func TestCreate_DuplicatePrecheck(t *testing.T) {
	f := newFixture(t)
	seed(t, f.store, facultyUser("taken@srmist.edu.in", "T1", ramapuram, engg))

	_, err := f.service.Create(context.Background(), f.admin, Draft{
		Email: "TAKEN@srmist.edu.in", Password: "long-enough-pw", Name: "Dup",
		Role: policy.RoleFaculty, Department: cse, FacultyID: "t1",
	})
	fields := fieldErrors(t, err)
	assert.Equal(t, "is already registered", fields["email"])
	assert.Equal(t, "is already registered", fields["faculty_id"])
}

// staleSnapshot hides existing users from the pre-check so the unique index
// has to catch the duplicate
type staleSnapshot struct {
	*Store
}

func (staleSnapshot) Snapshot(context.Context) (policy.Snapshot, error) {
	return policy.Snapshot{}, nil
}

func TestCreate_StaleSnapshotStillRejectedOnWrite(t *testing.T) {
	f := newFixture(t)
	seed(t, f.store, facultyUser("race@srmist.edu.in", "RACE1", ramapuram, engg))
	svc := NewService(staleSnapshot{f.store}, f.service.Engine(), nil, nil)

	_, err := svc.Create(context.Background(), f.admin, Draft{
		Email: "race@srmist.edu.in", Password: "long-enough-pw", Name: "Race",
		Role: policy.RoleFaculty, Department: cse, FacultyID: "RACE2",
	})
	require.ErrorIs(t, err, storage.ErrDuplicate)
	assert.Contains(t, err.Error(), "email already exists")
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target := seed(t, f.store, facultyUser("fac@srmist.edu.in", "FAC1", ramapuram, engg))

	dept := "Civil Engineering"
	sameEmail := "FAC@srmist.edu.in"
	u, err := f.service.Update(ctx, f.admin, target.ID, Patch{Department: &dept, Email: &sameEmail})
	require.NoError(t, err)
	assert.Equal(t, dept, u.Department)
	assert.Equal(t, "fac@srmist.edu.in", u.Email)

	events := f.audit.OfType(audit.EventTypeUserUpdate)
	require.Len(t, events, 1)
	assert.Equal(t, map[string]interface{}{"department": dept}, events[0].Changes.After)

	promote := policy.RoleAdmin
	_, err = f.service.Update(ctx, f.admin, target.ID, Patch{Role: &promote})
	assert.ErrorIs(t, err, policy.ErrRoleNotAllowed)

	badDept := "Physics"
	_, err = f.service.Update(ctx, f.admin, target.ID, Patch{Department: &badDept})
	assert.Equal(t, "is not a valid choice", fieldErrors(t, err)["department"])

	other := seed(t, f.store, facultyUser("other@srmist.edu.in", "FAC2", ramapuram, engg))
	clash := "fac1"
	_, err = f.service.Update(ctx, f.admin, other.ID, Patch{FacultyID: &clash})
	assert.Equal(t, "is already registered", fieldErrors(t, err)["faculty_id"])
}

func TestUpdate_Authorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	name := "New Name"

	outside := seed(t, f.store, facultyUser("t@srmtrichy.edu.in", "TR1", trichy, engg))
	_, err := f.service.Update(ctx, f.admin, outside.ID, Patch{Name: &name})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = f.service.Update(ctx, f.campus, f.campus.UserID, Patch{Name: &name})
	assert.ErrorIs(t, err, policy.ErrForbidden)

	peer := seed(t, f.store, User{Email: "hod2@srmist.edu.in", Role: policy.RoleAdmin, College: ramapuram, Institute: engg})
	_, err = f.service.Update(ctx, f.admin, peer.ID, Patch{Name: &name})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	u, err := f.service.Update(ctx, f.campus, peer.ID, Patch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, u.Name)

	denied := f.audit.OfType(audit.EventTypeAuthzAccessDenied)
	require.Len(t, denied, 1)
	assert.Equal(t, policy.RuleSelf, denied[0].Rule)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	target := seed(t, f.store, facultyUser("gone@srmist.edu.in", "G1", ramapuram, engg))

	assert.ErrorIs(t, f.service.Delete(ctx, f.admin, f.admin.UserID), policy.ErrForbidden)
	require.NoError(t, f.service.Delete(ctx, f.super, target.ID))
	assert.ErrorIs(t, f.service.Delete(ctx, f.super, target.ID), storage.ErrNotFound)
	assert.Len(t, f.audit.OfType(audit.EventTypeUserDelete), 1)
}

func TestList_AdminSeesFacultyOfOwnInstitute(t *testing.T) {
	f := newFixture(t)
	seed(t, f.store, facultyUser("in@srmist.edu.in", "IN1", ramapuram, engg))
	seed(t, f.store, facultyUser("res@srmist.edu.in", "RS1", ramapuram, research))

	res, err := f.service.List(context.Background(), f.admin, ListQuery{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, res.Total)
	assert.Equal(t, "IN1", res.Users[0].FacultyID)
	assert.True(t, res.Users[0].CanEdit)

	res, err = f.service.List(context.Background(), f.campus, ListQuery{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total) // dean, hod, IN1
	for _, row := range res.Users {
		assert.Equal(t, row.ID != f.campus.UserID, row.CanEdit, row.Email)
	}

	res, err = f.service.List(context.Background(), f.super, ListQuery{Limit: 10, Role: policy.RoleFaculty})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
}

func TestBulkCreate(t *testing.T) {
	f := newFixture(t)
	row := func(email, fid string) Draft {
		return Draft{Email: email, Password: "long-enough-pw", Name: "Bulk", Role: policy.RoleFaculty, Department: cse, FacultyID: fid}
	}

	res, err := f.service.BulkCreate(context.Background(), f.admin, []Draft{
		row("b1@srmist.edu.in", "B1"),
		row("B1@srmist.edu.in", "B2"),
		row("b3@gmail.com", "B3"),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 2, res.Failed)
	require.Len(t, res.Rows, 3)
	assert.NotZero(t, res.Rows[0].ID)
	assert.Equal(t, "is already registered", res.Rows[1].Fields["email"])
	assert.Equal(t, 3, res.Rows[2].Row)
	assert.Contains(t, res.Rows[2].Fields, "email")

	_, err = f.service.BulkCreate(context.Background(), f.admin, nil)
	assert.Contains(t, fieldErrors(t, err), "users")

	_, err = f.service.BulkCreate(context.Background(), f.admin, make([]Draft, MaxBulkRows+1))
	assert.Contains(t, fieldErrors(t, err)["users"], "at most")
}

func TestForm(t *testing.T) {
	f := newFixture(t)
	researchAdmin := policy.Actor{UserID: 99, Role: policy.RoleCampusAdmin, College: ramapuram, Institute: research}

	form := f.service.Form(researchAdmin, policy.RoleFaculty, policy.Selection{})
	assert.Equal(t, policy.RuleResearchDepartment, form.Rule)
	assert.False(t, form.Department.Editable)
	assert.Equal(t, "Ramapuram Research", form.Department.Value)
	assert.Len(t, form.DomainHints, 4)
	assert.Equal(t, []policy.Role{policy.RoleAdmin, policy.RoleFaculty}, form.CreatableRoles)

	form = f.service.Form(f.super, policy.RoleFaculty, policy.Selection{College: trichy, Institute: engg})
	assert.True(t, form.College.Editable)
	assert.Contains(t, form.Department.Options, cse)
	assert.Equal(t, []string{"srmtrichy.edu.in"}, form.DomainHints)
}

func TestCheckUniqueness(t *testing.T) {
	f := newFixture(t)
	existing := seed(t, f.store, facultyUser("u@srmist.edu.in", "U1", ramapuram, engg))
	ctx := context.Background()

	res, err := f.service.CheckUniqueness(ctx, f.admin, UniquenessQuery{Email: "U@srmist.edu.in", FacultyID: "new"})
	require.NoError(t, err)
	assert.True(t, res.EmailTaken)
	assert.False(t, res.FacultyIDTaken)

	res, err = f.service.CheckUniqueness(ctx, f.admin, UniquenessQuery{Email: "u@srmist.edu.in", FacultyID: "u1", OriginalID: existing.ID})
	require.NoError(t, err)
	assert.False(t, res.EmailTaken)
	assert.False(t, res.FacultyIDTaken)
	assert.Empty(t, res.Fields)
}

func TestSettingsAndPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	hash, err := auth.HashPassword("old-password")
	require.NoError(t, err)
	fac := facultyUser("me@srmist.edu.in", "ME1", ramapuram, engg)
	fac.PasswordHash = hash
	me := seed(t, f.store, fac).Actor()

	phone := "9840000000"
	u, err := f.service.UpdateSettings(ctx, me, SettingsUpdate{
		Phone:     &phone,
		AuthorIDs: &AuthorIDsRequest{Scopus: "57200"},
	})
	require.NoError(t, err)
	assert.Equal(t, "57200", u.AuthorIDs.Scopus)
	assert.True(t, policy.CanUpload(me, u.AuthorIDs))

	_, err = f.service.UpdateSettings(ctx, me, SettingsUpdate{AuthorIDs: &AuthorIDsRequest{SCI: "has space"}})
	assert.Contains(t, fieldErrors(t, err), "author_ids.sci")

	err = f.service.ChangePassword(ctx, me, PasswordChange{CurrentPassword: "wrong", NewPassword: "new-password"})
	assert.Equal(t, "is incorrect", fieldErrors(t, err)["current_password"])

	require.NoError(t, f.service.ChangePassword(ctx, me, PasswordChange{CurrentPassword: "old-password", NewPassword: "new-password"}))
	stored, err := f.store.Get(ctx, me.UserID)
	require.NoError(t, err)
	ok, err := auth.VerifyPassword("new-password", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}
