package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is returned when a record does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a write violates a unique constraint
	ErrDuplicate = errors.New("already exists")
)

// IsUniqueViolation reports whether err is a unique-key violation from
// either supported driver
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	return false
}

// DuplicateError describes which value collided. It matches ErrDuplicate.
type DuplicateError struct {
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	switch {
	case e.Field == "":
		return ErrDuplicate.Error()
	case e.Value == "":
		return e.Field + " already exists"
	default:
		return fmt.Sprintf("%s %q already exists", e.Field, e.Value)
	}
}

// Is makes errors.Is(err, ErrDuplicate) hold
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// MapError translates driver errors into package errors. sql.ErrNoRows
// becomes ErrNotFound; a unique violation becomes a *DuplicateError whose
// field is guessed from the constraint name in constraints.
func MapError(err error, constraints map[string]string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if !IsUniqueViolation(err) {
		return err
	}

	dup := &DuplicateError{}
	msg := err.Error()
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Constraint != "" {
		msg = pqErr.Constraint
	}
	for needle, field := range constraints {
		if strings.Contains(strings.ToLower(msg), strings.ToLower(needle)) {
			dup.Field = field
			break
		}
	}
	return dup
}
