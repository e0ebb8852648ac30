package users

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/researchportal/pubportal/pkg/auth"
	"github.com/researchportal/pubportal/pkg/policy"
	"github.com/researchportal/pubportal/pkg/storage"
)

// constraints maps unique index names to request fields
var constraints = map[string]string{
	"idx_users_email":      "email",
	"idx_users_faculty_id": "faculty_id",
	"users.email":          "email",
	"users.faculty_id":     "faculty_id",
}

const userColumns = `id, email, name, phone, role, college, institute, department, faculty_id,
		scopus_id, sci_id, wos_id, password_hash, created_by, created_at, updated_at`

// Store persists users in SQL. It works against both postgres and sqlite.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*User, error) {
	u := &User{}
	var role string
	var facultyID sql.NullString
	var createdBy sql.NullInt64
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.Phone, &role, &u.College, &u.Institute, &u.Department, &facultyID,
		&u.AuthorIDs.Scopus, &u.AuthorIDs.SCI, &u.AuthorIDs.WebOfScience, &u.PasswordHash, &createdBy,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = policy.Role(role)
	u.FacultyID = facultyID.String
	if createdBy.Valid {
		id := createdBy.Int64
		u.CreatedBy = &id
	}
	return u, nil
}

// nullable stores empty faculty ids as NULL so they do not collide
func nullable(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

// Create inserts u and fills its id and timestamps
func (s *Store) Create(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO users (email, name, phone, role, college, institute, department, faculty_id,
			scopus_id, sci_id, wos_id, password_hash, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		normalizeEmail(u.Email), u.Name, u.Phone, string(u.Role), u.College, u.Institute, u.Department,
		nullable(u.FacultyID), u.AuthorIDs.Scopus, u.AuthorIDs.SCI, u.AuthorIDs.WebOfScience,
		u.PasswordHash, nullableID(u.CreatedBy), now,
	).Scan(&u.ID)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", storage.MapError(err, constraints))
	}
	u.Email = normalizeEmail(u.Email)
	u.CreatedAt, u.UpdatedAt = now, now
	return nil
}

// Get returns the user with id
func (s *Store) Get(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, storage.MapError(err, constraints)
	}
	return u, nil
}

// GetByEmail returns the user with email, ignoring case
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, strings.TrimSpace(email))
	u, err := scanUser(row)
	if err != nil {
		return nil, storage.MapError(err, constraints)
	}
	return u, nil
}

// GetByFacultyID returns the user owning facultyID, ignoring case
func (s *Store) GetByFacultyID(ctx context.Context, facultyID string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(faculty_id) = LOWER($1)`, strings.TrimSpace(facultyID))
	u, err := scanUser(row)
	if err != nil {
		return nil, storage.MapError(err, constraints)
	}
	return u, nil
}

// whereBuilder collects conditions with numbered placeholders
type whereBuilder struct {
	conds []string
	args  []interface{}
}

func (b *whereBuilder) add(cond string, arg interface{}) {
	b.args = append(b.args, arg)
	b.conds = append(b.conds, strings.ReplaceAll(cond, "?", fmt.Sprintf("$%d", len(b.args))))
}

func (b *whereBuilder) sql() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

// scopeWhere translates a visibility scope and the caller's filters into a
// WHERE clause
func scopeWhere(sc policy.UserScope, q ListQuery) *whereBuilder {
	b := &whereBuilder{}
	if sc.None {
		b.conds = append(b.conds, "1 = 0")
		return b
	}
	if !sc.All {
		if sc.UserID != 0 {
			b.add("id = ?", sc.UserID)
		}
		if sc.College != "" {
			b.add("college = ?", sc.College)
		}
		if sc.Institute != "" {
			b.add("institute = ?", sc.Institute)
		}
		if sc.Role != "" {
			b.add("role = ?", string(sc.Role))
		}
	}

	if q.Role != "" {
		b.add("role = ?", string(q.Role))
	}
	if q.College != "" {
		b.add("college = ?", q.College)
	}
	if q.Institute != "" {
		b.add("institute = ?", q.Institute)
	}
	if q.Department != "" {
		b.add("department = ?", q.Department)
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		b.add("(LOWER(name) LIKE LOWER(?) OR LOWER(email) LIKE LOWER(?) OR LOWER(COALESCE(faculty_id, '')) LIKE LOWER(?))",
			"%"+search+"%")
	}
	return b
}

// List returns the users inside sc that match q, newest first, and the total
// number of matches
func (s *Store) List(ctx context.Context, sc policy.UserScope, q ListQuery) ([]User, int, error) {
	where := scopeWhere(sc, q)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	args := append(append([]interface{}{}, where.args...), q.Limit, q.Offset)
	query := fmt.Sprintf(`SELECT %s FROM users%s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`,
		userColumns, where.sql(), len(where.args)+1, len(where.args)+2)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, total, nil
}

// Update writes the mutable columns of u
func (s *Store) Update(ctx context.Context, u *User) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET email = $1, name = $2, phone = $3, role = $4, college = $5, institute = $6,
			department = $7, faculty_id = $8, password_hash = $9, updated_at = $10
		WHERE id = $11
	`,
		normalizeEmail(u.Email), u.Name, u.Phone, string(u.Role), u.College, u.Institute,
		u.Department, nullable(u.FacultyID), u.PasswordHash, now, u.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", storage.MapError(err, constraints))
	}
	if err := expectOne(res); err != nil {
		return err
	}
	u.Email = normalizeEmail(u.Email)
	u.UpdatedAt = now
	return nil
}

// UpdateSettings writes the self-service columns of the user with id
func (s *Store) UpdateSettings(ctx context.Context, id int64, name, phone string, ids policy.AuthorIDs) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET name = $1, phone = $2, scopus_id = $3, sci_id = $4, wos_id = $5, updated_at = $6
		WHERE id = $7
	`, name, phone, ids.Scopus, ids.SCI, ids.WebOfScience, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update settings: %w", err)
	}
	return expectOne(res)
}

// SetPasswordHash replaces the password hash of the user with email
func (s *Store) SetPasswordHash(ctx context.Context, email, hash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET password_hash = $1, updated_at = $2 WHERE LOWER(email) = LOWER($3)`,
		hash, time.Now().UTC(), strings.TrimSpace(email))
	if err != nil {
		return fmt.Errorf("failed to set password: %w", err)
	}
	return expectOne(res)
}

// Delete removes the user with id
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Snapshot returns every email and faculty id on file
func (s *Store) Snapshot(ctx context.Context) (policy.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT email, faculty_id FROM users`)
	if err != nil {
		return policy.Snapshot{}, fmt.Errorf("failed to load snapshot: %w", err)
	}
	defer rows.Close()

	snap := policy.Snapshot{Emails: []string{}, FacultyIDs: []string{}}
	for rows.Next() {
		var email string
		var facultyID sql.NullString
		if err := rows.Scan(&email, &facultyID); err != nil {
			return policy.Snapshot{}, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snap.Emails = append(snap.Emails, email)
		if facultyID.Valid && facultyID.String != "" {
			snap.FacultyIDs = append(snap.FacultyIDs, facultyID.String)
		}
	}
	return snap, rows.Err()
}

// Count returns the number of users
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// AccountByEmail implements auth.AccountStore
func (s *Store) AccountByEmail(ctx context.Context, email string) (*auth.Account, error) {
	u, err := s.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return u.Account(), nil
}

// AccountByFacultyID returns the login view of the user owning facultyID
func (s *Store) AccountByFacultyID(ctx context.Context, facultyID string) (*auth.Account, error) {
	u, err := s.GetByFacultyID(ctx, facultyID)
	if err != nil {
		return nil, err
	}
	return u.Account(), nil
}

// AccountByID implements auth.AccountStore
func (s *Store) AccountByID(ctx context.Context, id int64) (*auth.Account, error) {
	u, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return u.Account(), nil
}
