package models

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("constraint violation")

	ErrDuplicateEmail = fmt.Errorf("%w: email already registered", ErrConflict)
	ErrDuplicateTitle = fmt.Errorf("%w: a post with this title already exists", ErrConflict)
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// classify maps driver errors onto the package sentinels. Errors it does not
// recognise are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	var se sqlite3.Error
	if errors.As(err, &se) {
		switch se.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return uniqueViolation(se.Error())
		case sqlite3.ErrConstraintForeignKey:
			return ErrNotFound
		}
	}

	var pe *pq.Error
	if errors.As(err, &pe) {
		switch pe.Code {
		case pqUniqueViolation:
			return uniqueViolation(pe.Constraint + " " + pe.Message)
		case pqForeignKeyViolation:
			return ErrNotFound
		}
	}
	return err
}

func uniqueViolation(detail string) error {
	switch {
	case strings.Contains(detail, "email"):
		return ErrDuplicateEmail
	case strings.Contains(detail, "title"):
		return ErrDuplicateTitle
	}
	return ErrConflict
}
