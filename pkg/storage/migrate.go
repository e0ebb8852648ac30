package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/researchportal/pubportal/pkg/observability"
)

// Migration is one versioned schema change
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// idColumn is the only DDL fragment that differs between the dialects
func idColumn(driver string) string {
	if driver == DriverPostgres {
		return "BIGSERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

// Migrations returns the schema migrations for driver in order
func Migrations(driver string) []Migration {
	id := idColumn(driver)
	return []Migration{
		{
			Version:     1,
			Description: "Create users table",
			SQL: `
				CREATE TABLE IF NOT EXISTS users (
					id ` + id + `,
					email VARCHAR(254) NOT NULL,
					password_hash TEXT NOT NULL DEFAULT '',
					name VARCHAR(255) NOT NULL DEFAULT '',
					phone VARCHAR(32) NOT NULL DEFAULT '',
					role VARCHAR(32) NOT NULL,
					college VARCHAR(255) NOT NULL DEFAULT 'N/A',
					institute VARCHAR(255) NOT NULL DEFAULT 'N/A',
					department VARCHAR(255) NOT NULL DEFAULT 'N/A',
					faculty_id VARCHAR(64),
					scopus_id VARCHAR(64) NOT NULL DEFAULT '',
					sci_id VARCHAR(64) NOT NULL DEFAULT '',
					wos_id VARCHAR(64) NOT NULL DEFAULT '',
					created_by BIGINT,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users (LOWER(email));
				CREATE UNIQUE INDEX IF NOT EXISTS idx_users_faculty_id ON users (LOWER(faculty_id));
				CREATE INDEX IF NOT EXISTS idx_users_scope ON users (college, institute, role);
			`,
		},
		{
			Version:     2,
			Description: "Create publications table",
			SQL: `
				CREATE TABLE IF NOT EXISTS publications (
					id ` + id + `,
					type VARCHAR(32) NOT NULL,
					title TEXT NOT NULL,
					authors TEXT NOT NULL DEFAULT '',
					venue TEXT NOT NULL DEFAULT '',
					publisher TEXT NOT NULL DEFAULT '',
					year INTEGER NOT NULL,
					doi VARCHAR(255) NOT NULL DEFAULT '',
					volume VARCHAR(32) NOT NULL DEFAULT '',
					issue VARCHAR(32) NOT NULL DEFAULT '',
					pages VARCHAR(32) NOT NULL DEFAULT '',
					isbn_issn VARCHAR(32) NOT NULL DEFAULT '',
					indexing VARCHAR(64) NOT NULL DEFAULT '',
					quartile VARCHAR(8) NOT NULL DEFAULT '',
					url TEXT NOT NULL DEFAULT '',
					faculty_id VARCHAR(64) NOT NULL,
					owner_id BIGINT NOT NULL,
					college VARCHAR(255) NOT NULL,
					institute VARCHAR(255) NOT NULL,
					department VARCHAR(255) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_publications_faculty_id ON publications (faculty_id);
				CREATE INDEX IF NOT EXISTS idx_publications_scope ON publications (college, institute);
				CREATE INDEX IF NOT EXISTS idx_publications_year ON publications (year);
			`,
		},
	}
}

// Migrate applies every pending migration, each in its own transaction
func Migrate(ctx context.Context, db *sql.DB, driver string, logger *observability.Logger) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range Migrations(driver) {
		if applied[m.Version] {
			continue
		}

		logger.WithField("version", m.Version).Infof("Running migration: %s", m.Description)

		err := WithTx(ctx, db, func(tx *sql.Tx) error {
			for _, stmt := range splitStatements(m.SQL) {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return fmt.Errorf("failed to execute migration %d: %w", m.Version, err)
				}
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
				m.Version, m.Description,
			); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB) (map[int]bool, error) {
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

// splitStatements splits a migration body on ';'. Migration SQL never
// contains semicolons inside literals.
func splitStatements(body string) []string {
	var out []string
	for _, stmt := range strings.Split(body, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}
