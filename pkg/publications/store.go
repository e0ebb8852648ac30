package publications

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/researchportal/pubportal/pkg/policy"
	"github.com/researchportal/pubportal/pkg/storage"
)

const publicationColumns = `id, type, title, authors, venue, publisher, year, doi, volume, issue, pages,
		isbn_issn, indexing, quartile, url, faculty_id, owner_id, college, institute, department,
		created_at, updated_at`

// Store persists publications in SQL
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

func scanPublication(row rowScanner) (*Publication, error) {
	p := &Publication{}
	var typ string
	err := row.Scan(
		&p.ID, &typ, &p.Title, &p.Authors, &p.Venue, &p.Publisher, &p.Year, &p.DOI, &p.Volume,
		&p.Issue, &p.Pages, &p.ISBNISSN, &p.Indexing, &p.Quartile, &p.URL, &p.FacultyID, &p.OwnerID,
		&p.College, &p.Institute, &p.Department, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Type = Type(typ)
	return p, nil
}

// Create inserts p and fills its id and timestamps
func (s *Store) Create(ctx context.Context, p *Publication) error {
	now := time.Now().UTC()
	query := `
		INSERT INTO publications (type, title, authors, venue, publisher, year, doi, volume, issue, pages,
			isbn_issn, indexing, quartile, url, faculty_id, owner_id, college, institute, department,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $20)
		RETURNING id
	`
	err := s.db.QueryRowContext(ctx, query,
		string(p.Type), p.Title, p.Authors, p.Venue, p.Publisher, p.Year, p.DOI, p.Volume, p.Issue,
		p.Pages, p.ISBNISSN, p.Indexing, p.Quartile, p.URL, p.FacultyID, p.OwnerID, p.College,
		p.Institute, p.Department, now,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create publication: %w", err)
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

// Get returns the publication with id
func (s *Store) Get(ctx context.Context, id int64) (*Publication, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+publicationColumns+` FROM publications WHERE id = $1`, id)
	p, err := scanPublication(row)
	if err != nil {
		return nil, storage.MapError(err, nil)
	}
	return p, nil
}

type whereBuilder struct {
	conds []string
	args  []interface{}
}

func (b *whereBuilder) arg(v interface{}) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *whereBuilder) eq(column string, v interface{}) {
	b.conds = append(b.conds, column+" = "+b.arg(v))
}

func (b *whereBuilder) sql() string {
	if len(b.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.conds, " AND ")
}

// scopeWhere translates a visibility scope and the caller's filters into a
// WHERE clause
func scopeWhere(sc policy.PaperScope, q ListQuery) *whereBuilder {
	b := &whereBuilder{}
	if sc.None {
		b.conds = append(b.conds, "1 = 0")
		return b
	}
	if !sc.All {
		if sc.FacultyID != "" {
			b.conds = append(b.conds, "LOWER(faculty_id) = LOWER("+b.arg(sc.FacultyID)+")")
		}
		if sc.College != "" {
			b.eq("college", sc.College)
		}
		if sc.Institute != "" {
			b.eq("institute", sc.Institute)
		}
	}

	if q.Type != "" {
		b.eq("type", string(q.Type))
	}
	if q.YearFrom != 0 {
		b.conds = append(b.conds, "year >= "+b.arg(q.YearFrom))
	}
	if q.YearTo != 0 {
		b.conds = append(b.conds, "year <= "+b.arg(q.YearTo))
	}
	if q.College != "" {
		b.eq("college", q.College)
	}
	if q.Institute != "" {
		b.eq("institute", q.Institute)
	}
	if q.Department != "" {
		b.eq("department", q.Department)
	}
	if q.FacultyID != "" {
		b.conds = append(b.conds, "LOWER(faculty_id) = LOWER("+b.arg(q.FacultyID)+")")
	}
	if search := strings.TrimSpace(q.Search); search != "" {
		p := b.arg("%" + search + "%")
		b.conds = append(b.conds, fmt.Sprintf(
			"(LOWER(title) LIKE LOWER(%[1]s) OR LOWER(authors) LIKE LOWER(%[1]s) OR LOWER(venue) LIKE LOWER(%[1]s) OR LOWER(doi) LIKE LOWER(%[1]s))", p))
	}
	if len(q.IDs) > 0 {
		marks := make([]string, len(q.IDs))
		for i, id := range q.IDs {
			marks[i] = b.arg(id)
		}
		b.conds = append(b.conds, "id IN ("+strings.Join(marks, ", ")+")")
	}
	return b
}

// List returns the publications inside sc that match q, newest first, and the
// total number of matches
func (s *Store) List(ctx context.Context, sc policy.PaperScope, q ListQuery) ([]Publication, int, error) {
	where := scopeWhere(sc, q)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM publications`+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count publications: %w", err)
	}

	args := append(append([]interface{}{}, where.args...), q.Limit, q.Offset)
	query := fmt.Sprintf(`SELECT %s FROM publications%s ORDER BY year DESC, id DESC LIMIT $%d OFFSET $%d`,
		publicationColumns, where.sql(), len(where.args)+1, len(where.args)+2)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list publications: %w", err)
	}
	defer rows.Close()

	out := make([]Publication, 0)
	for rows.Next() {
		p, err := scanPublication(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan publication: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list publications: %w", err)
	}
	return out, total, nil
}

// Update writes the descriptive columns of p. Owner and scope are never
// rewritten.
func (s *Store) Update(ctx context.Context, p *Publication) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE publications
		SET type = $1, title = $2, authors = $3, venue = $4, publisher = $5, year = $6, doi = $7,
			volume = $8, issue = $9, pages = $10, isbn_issn = $11, indexing = $12, quartile = $13,
			url = $14, updated_at = $15
		WHERE id = $16
	`,
		string(p.Type), p.Title, p.Authors, p.Venue, p.Publisher, p.Year, p.DOI, p.Volume, p.Issue,
		p.Pages, p.ISBNISSN, p.Indexing, p.Quartile, p.URL, now, p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update publication: %w", err)
	}
	if err := expectOne(res); err != nil {
		return err
	}
	p.UpdatedAt = now
	return nil
}

// Delete removes the publication with id
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM publications WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete publication: %w", err)
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

// CountByType returns the number of publications of each type. Types with no
// rows are reported as zero.
func (s *Store) CountByType(ctx context.Context) (map[Type]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM publications GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("failed to count publications: %w", err)
	}
	defer rows.Close()

	counts := make(map[Type]int64, len(AllTypes()))
	for _, t := range AllTypes() {
		counts[t] = 0
	}
	for rows.Next() {
		var typ string
		var n int64
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("failed to scan publication count: %w", err)
		}
		counts[Type(typ)] = n
	}
	return counts, rows.Err()
}
