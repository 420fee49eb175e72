package errors

import (
	"errors"
	"fmt"
)

// Kind classifies data-access failures so callers branch on a closed set
// instead of inspecting driver messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindRelationMissing
	KindPermissionDenied
	KindForeignKeyViolation
	KindUniqueViolation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindRelationMissing:
		return "relation_missing"
	case KindPermissionDenied:
		return "permission_denied"
	case KindForeignKeyViolation:
		return "foreign_key_violation"
	case KindUniqueViolation:
		return "unique_violation"
	default:
		return "unknown"
	}
}

// DataError is returned by repositories for every failed statement.
type DataError struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *DataError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DataError) Unwrap() error {
	return e.Err
}

// NewDataError builds a DataError for the given operation.
func NewDataError(kind Kind, op string, err error) *DataError {
	return &DataError{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the Kind carried by err, KindUnknown when none.
func KindOf(err error) Kind {
	var de *DataError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
