package publications

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/researchportal/pubportal/pkg/audit"
	"github.com/researchportal/pubportal/pkg/observability"
	"github.com/researchportal/pubportal/pkg/policy"
	"github.com/researchportal/pubportal/pkg/scope"
	"github.com/researchportal/pubportal/pkg/storage"
	"github.com/researchportal/pubportal/pkg/users"
)

const (
	ramapuram = "SRMIST RAMAPURAM"
	trichy    = "SRM TRICHY"
	engg      = "Engineering and Technology"
	cse       = "Computer Science and Engineering"
)

type fixture struct {
	service *Service
	store   *Store
	audit   *audit.MemoryLogger
	metrics *observability.Metrics

	super   policy.Actor
	campus  policy.Actor
	admin   policy.Actor
	faculty policy.Actor // has author ids
	noIDs   policy.Actor // has none
	trichy  policy.Actor
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := storage.DefaultConfig()
	cfg.DSN = ":memory:"
	ctx := context.Background()
	db, err := storage.Open(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.Migrate(ctx, db, storage.DriverSQLite, observability.NopLogger()))
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := openDB(t)
	directory := users.NewStore(db)
	ctx := context.Background()

	add := func(u users.User, ids policy.AuthorIDs) policy.Actor {
		require.NoError(t, directory.Create(ctx, &u))
		if ids.Any() {
			require.NoError(t, directory.UpdateSettings(ctx, u.ID, u.Name, u.Phone, ids))
		}
		return u.Actor()
	}
	ids := policy.AuthorIDs{Scopus: "57200000"}

	mem := audit.NewMemoryLogger()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	store := NewStore(db)
	f := &fixture{
		service: NewService(store, directory, policy.NewEngine(scope.Default()), mem, metrics),
		store:   store,
		audit:   mem,
		metrics: metrics,
	}
	f.super = add(users.User{Email: "root@srmist.edu.in", Role: policy.RoleSuperAdmin,
		College: scope.NA, Institute: scope.NA, Department: scope.NA}, policy.AuthorIDs{})
	f.campus = add(users.User{Email: "dean@srmist.edu.in", Role: policy.RoleCampusAdmin,
		College: ramapuram, Institute: engg, Department: scope.NA}, policy.AuthorIDs{})
	f.admin = add(users.User{Email: "hod@srmist.edu.in", Role: policy.RoleAdmin, FacultyID: "ADM1",
		College: ramapuram, Institute: engg, Department: cse}, policy.AuthorIDs{})
	f.faculty = add(users.User{Email: "f1@srmist.edu.in", Role: policy.RoleFaculty, FacultyID: "F1",
		College: ramapuram, Institute: engg, Department: cse}, ids)
	f.noIDs = add(users.User{Email: "f2@srmist.edu.in", Role: policy.RoleFaculty, FacultyID: "F2",
		College: ramapuram, Institute: engg, Department: cse}, policy.AuthorIDs{})
	f.trichy = add(users.User{Email: "t1@srmtrichy.edu.in", Role: policy.RoleFaculty, FacultyID: "T1",
		College: trichy, Institute: engg, Department: cse}, ids)
	return f
}

func journal(title string, year int) Draft {
	return Draft{Fields: Fields{
		Type:     TypeJournal,
		Title:    title,
		Authors:  "A. Author, B. Author",
		Venue:    "Journal of Examples",
		Year:     year,
		ISBNISSN: "1234-5678",
		Quartile: "q1",
	}}
}

func (f *fixture) upload(t *testing.T, actor policy.Actor, d Draft) *Publication {
	t.Helper()
	p, err := f.service.Create(context.Background(), actor, d)
	require.NoError(t, err)
	return p
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *policy.ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	return verr.Fields
}

func TestCreate_CopiesOwnerScope(t *testing.T) {
	f := newFixture(t)

	p := f.upload(t, f.faculty, journal("Graph Kernels", 2023))
	assert.NotZero(t, p.ID)
	assert.Equal(t, "F1", p.FacultyID)
	assert.Equal(t, f.faculty.UserID, p.OwnerID)
	assert.Equal(t, ramapuram, p.College)
	assert.Equal(t, engg, p.Institute)
	assert.Equal(t, cse, p.Department)
	assert.Equal(t, "Q1", p.Quartile)

	stored, err := f.store.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Graph Kernels", stored.Title)
	assert.Len(t, f.audit.OfType(audit.EventTypePublicationCreate), 1)
}

func TestCreate_UploadGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.Create(ctx, f.noIDs, journal("Blocked", 2024))
	assert.ErrorIs(t, err, policy.ErrUploadIneligible)

	e, err := f.service.Eligibility(ctx, f.noIDs)
	require.NoError(t, err)
	assert.False(t, e.Allowed)
	assert.Equal(t, policy.SettingsPath, e.Remediation)

	e, err = f.service.Eligibility(ctx, f.admin)
	require.NoError(t, err)
	assert.True(t, e.Allowed)

	// admins are not gated on author ids
	p := f.upload(t, f.admin, journal("Admin Paper", 2022))
	assert.Equal(t, "ADM1", p.FacultyID)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := journal("No ISSN", 2024)
	d.ISBNISSN = ""
	_, err := f.service.Create(ctx, f.faculty, d)
	assert.Contains(t, fieldErrors(t, err), "isbn_issn")

	chapter := Draft{Fields: Fields{Type: TypeBookChapter, Title: "Ch", Authors: "A", Venue: "Book", Year: 2020, Quartile: "Q2"}}
	_, err = f.service.Create(ctx, f.faculty, chapter)
	fields := fieldErrors(t, err)
	assert.Contains(t, fields, "publisher")
	assert.Contains(t, fields, "quartile")

	_, err = f.service.Create(ctx, f.faculty, Draft{Fields: Fields{Type: "poster", Year: 1800}})
	fields = fieldErrors(t, err)
	assert.Contains(t, fields, "type")
	assert.Contains(t, fields, "title")
	assert.Contains(t, fields, "year")

	_, err = f.service.Create(ctx, f.super, journal("Whose?", 2024))
	assert.Contains(t, fieldErrors(t, err)["faculty_id"], "no faculty id")
}

func TestCreate_OnBehalfOfOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := journal("Uploaded by super admin", 2021)
	d.FacultyID = "t1"
	p := f.upload(t, f.super, d)
	assert.Equal(t, "T1", p.FacultyID)
	assert.Equal(t, trichy, p.College)
	assert.Equal(t, f.trichy.UserID, p.OwnerID)

	d.FacultyID = "F1"
	_, err := f.service.Create(ctx, f.admin, d)
	assert.ErrorIs(t, err, policy.ErrForbidden)

	d.FacultyID = "T1"
	_, err = f.service.Create(ctx, f.campus, d)
	assert.ErrorIs(t, err, policy.ErrForbidden)

	d.FacultyID = "NOPE"
	_, err = f.service.Create(ctx, f.super, d)
	assert.Contains(t, fieldErrors(t, err), "faculty_id")
}

func TestVisibilityAndRowActions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.upload(t, f.faculty, journal("Visible", 2023))

	own, err := f.service.Get(ctx, f.faculty, p.ID)
	require.NoError(t, err)
	assert.True(t, own.Actions.ShowEdit)
	assert.Equal(t, policy.BadgeOwned, own.Actions.Badge)

	_, err = f.service.Get(ctx, f.trichy, p.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = f.service.Get(ctx, f.noIDs, p.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	viewed, err := f.service.Get(ctx, f.admin, p.ID)
	require.NoError(t, err)
	assert.False(t, viewed.Actions.ShowEdit)
	assert.False(t, viewed.Actions.ShowDelete)
	assert.True(t, viewed.Actions.Selectable)
	assert.Equal(t, policy.BadgeViewOnly, viewed.Actions.Badge)

	moderated, err := f.service.Get(ctx, f.campus, p.ID)
	require.NoError(t, err)
	assert.True(t, moderated.Actions.ShowEdit)
}

func TestUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.upload(t, f.faculty, journal("Draft Title", 2023))

	fields := journal("Final Title", 2024).Fields
	_, err := f.service.Update(ctx, f.admin, p.ID, fields)
	assert.ErrorIs(t, err, policy.ErrForbidden)
	require.Len(t, f.audit.OfType(audit.EventTypeAuthzAccessDenied), 1)

	updated, err := f.service.Update(ctx, f.faculty, p.ID, fields)
	require.NoError(t, err)
	assert.Equal(t, "Final Title", updated.Title)
	assert.Equal(t, "F1", updated.FacultyID)
	assert.Equal(t, ramapuram, updated.College)

	fields.Title = "Moderated"
	_, err = f.service.Update(ctx, f.campus, p.ID, fields)
	require.NoError(t, err)

	events := f.audit.OfType(audit.EventTypePublicationUpdate)
	require.Len(t, events, 2)
	assert.Equal(t, "Draft Title", events[0].Changes.Before["title"])
}

func TestDeleteAndBulkDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine := f.upload(t, f.faculty, journal("One", 2020))
	other := f.upload(t, f.faculty, journal("Two", 2021))
	far := f.upload(t, f.trichy, journal("Far", 2021))

	assert.ErrorIs(t, f.service.Delete(ctx, f.admin, mine.ID), policy.ErrForbidden)
	require.NoError(t, f.service.Delete(ctx, f.faculty, mine.ID))

	res, err := f.service.BulkDelete(ctx, f.campus, []int64{other.ID, far.ID, 999, other.ID})
	require.NoError(t, err)
	assert.Equal(t, []int64{other.ID}, res.Deleted)
	assert.ElementsMatch(t, []BulkDeleteFailure{
		{ID: far.ID, Error: "not found"},
		{ID: 999, Error: "not found"},
	}, res.Failed)

	res, err = f.service.BulkDelete(ctx, f.admin, []int64{far.ID})
	require.NoError(t, err)
	assert.Empty(t, res.Deleted)

	_, err = f.service.BulkDelete(ctx, f.super, nil)
	assert.Contains(t, fieldErrors(t, err), "ids")
	_, err = f.service.BulkDelete(ctx, f.super, make([]int64, MaxBulkIDs+1))
	assert.Contains(t, fieldErrors(t, err), "ids")
}

func TestList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.upload(t, f.faculty, journal("Old", 2018))
	f.upload(t, f.faculty, Draft{Fields: Fields{Type: TypeConference, Title: "Talk", Authors: "A", Venue: "ICSE", Year: 2024}})
	f.upload(t, f.admin, journal("Admin", 2024))
	f.upload(t, f.trichy, journal("Trichy", 2024))

	res, err := f.service.List(ctx, f.super, ListQuery{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Total)
	assert.Equal(t, 2024, res.Publications[0].Year)

	res, err = f.service.List(ctx, f.campus, ListQuery{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)

	res, err = f.service.List(ctx, f.faculty, ListQuery{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	for _, row := range res.Publications {
		assert.True(t, row.Actions.Owned)
	}

	res, err = f.service.List(ctx, f.super, ListQuery{Type: TypeJournal, YearFrom: 2024, YearTo: 2024, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)

	res, err = f.service.List(ctx, f.super, ListQuery{Search: "tal", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	res, err = f.service.List(ctx, f.admin, ListQuery{FacultyID: "adm1", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.upload(t, f.faculty, journal("Exported, with comma", 2022))
	f.upload(t, f.faculty, journal("Second", 2023))
	f.upload(t, f.trichy, journal("Hidden", 2023))

	var buf bytes.Buffer
	n, err := f.service.Export(ctx, f.campus, ListQuery{}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, exportHeader, records[0])

	buf.Reset()
	n, err = f.service.Export(ctx, f.campus, ListQuery{IDs: []int64{a.ID}}, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	records, err = csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "Exported, with comma", records[1][2])

	assert.Len(t, f.audit.OfType(audit.EventTypePublicationExport), 2)
}

func TestRefreshGauge(t *testing.T) {
	f := newFixture(t)
	f.upload(t, f.faculty, journal("J", 2022))

	require.NoError(t, f.service.RefreshGauge(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PublicationsTotal.WithLabelValues("journal")))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.PublicationsTotal.WithLabelValues("book_chapter")))
}
