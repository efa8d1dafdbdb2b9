package postgres

import (
	"database/sql"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq"
)

const (
	pgUniqueViolation     = "23505"
	pgSerializationFailed = "40001"
)

// IsUniqueViolation reports whether err is a postgres unique constraint violation
func IsUniqueViolation(err error) bool {
	return hasCode(err, pgUniqueViolation)
}

// IsSerializationFailure reports whether err is a postgres serialization failure
func IsSerializationFailure(err error) bool {
	return hasCode(err, pgSerializationFailed)
}

// IsNoRows reports whether err means the query matched nothing
func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func hasCode(err error, code pq.ErrorCode) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == code
	}
	return false
}
