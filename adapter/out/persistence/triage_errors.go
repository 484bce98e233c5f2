// Package persistence provides database adapters implementing outbound ports.
package persistence

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"triage_server/pkg/apperr"
)

const pgUniqueViolation = "23505"

// errNoRows lets update paths reuse the not-found mapping when no row
// was touched.
var errNoRows = sql.ErrNoRows

// mapError translates driver errors into the application taxonomy so
// services can branch on duplicates and not-founds without importing
// database packages.
func mapError(op, resource string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound(resource)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
		return apperr.AlreadyExists(resource)
	}
	return apperr.DatabaseError(op, err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}
