package postgres

import (
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorClass groups PostgreSQL failures by how a caller should react.
type ErrorClass int

const (
	ErrorClassPermanent ErrorClass = iota
	ErrorClassTransient
	ErrorClassDeadlock
	ErrorClassSerialization
)

// SQLSTATE codes the repositories react to.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
)

// ClassifyError inspects the SQLSTATE of a PostgreSQL error.
func ClassifyError(err error) ErrorClass {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return ErrorClassPermanent
	}
	switch pgErr.Code {
	case codeSerializationFailure:
		return ErrorClassSerialization
	case codeDeadlockDetected:
		return ErrorClassDeadlock
	case codeLockNotAvailable:
		return ErrorClassTransient
	default:
		return ErrorClassPermanent
	}
}

// IsRetryable reports whether running the transaction again may succeed.
func IsRetryable(err error) bool {
	switch ClassifyError(err) {
	case ErrorClassTransient, ErrorClassDeadlock, ErrorClassSerialization:
		return true
	default:
		return false
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}
