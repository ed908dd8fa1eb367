package persistence

import (
	"errors"

	"github.com/erp/stocksync/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// lockNotAvailableCode is the postgres SQLSTATE raised when lock_timeout expires
const lockNotAvailableCode = "55P03"

// translateLockTimeout maps an expired postgres lock wait onto CONCURRENCY_TIMEOUT
func translateLockTimeout(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == lockNotAvailableCode {
		return shared.ErrConcurrencyTimeout
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == lockNotAvailableCode {
		return shared.ErrConcurrencyTimeout
	}
	return err
}
