// Package storage opens the relational database and Redis connections used by
// the portal and owns the schema.
//
// Two SQL drivers are supported: "postgres" (lib/pq) for deployments and
// "sqlite3" (mattn/go-sqlite3) for local runs and tests. Store queries are
// written once with $n placeholders and portable SQL; only the DDL differs
// per dialect.
//
//	db, err := storage.Open(ctx, cfg)
//	if err := storage.Migrate(ctx, db, cfg.Driver, logger); err != nil { ... }
//
// Driver errors for unique-key violations are mapped to ErrDuplicate so that
// the services can report them verbatim as conflicts.
package storage
