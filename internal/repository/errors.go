package repository

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"

	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

// PostgreSQL SQLSTATE codes mapped onto error kinds.
const (
	pqUndefinedTable      = "42P01"
	pqInsufficientPrivs   = "42501"
	pqForeignKeyViolation = "23503"
	pqUniqueViolation     = "23505"
)

// classify wraps err in a DataError tagged with its Kind.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *appErrors.DataError
	if errors.As(err, &de) {
		return err
	}
	return appErrors.NewDataError(kindOf(err), op, err)
}

func kindOf(err error) appErrors.Kind {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.KindNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUndefinedTable:
			return appErrors.KindRelationMissing
		case pqInsufficientPrivs:
			return appErrors.KindPermissionDenied
		case pqForeignKeyViolation:
			return appErrors.KindForeignKeyViolation
		case pqUniqueViolation:
			return appErrors.KindUniqueViolation
		}
	}
	return appErrors.KindUnknown
}

// requireAffected turns a zero-row update into KindNotFound.
func requireAffected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return classify(op, err)
	}
	if n == 0 {
		return appErrors.NewDataError(appErrors.KindNotFound, op, sql.ErrNoRows)
	}
	return nil
}
