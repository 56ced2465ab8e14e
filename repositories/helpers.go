package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

var (
	// ErrReferencedRowsRemain: a delete hit a foreign key still in use.
	ErrReferencedRowsRemain = errors.New("row is still referenced by dependent rows")
	ErrSerializationFailure = errors.New("concurrent update prevented serializable transaction")
)

func checkAffectedRows(result sql.Result, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundError
	}
	return nil
}

func affectedRows(result sql.Result) (int64, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check affected rows: %w", err)
	}
	return n, nil
}

// mapPQError translates driver errors into repository sentinels. conflictErr
// is returned for unique violations; pass nil to keep the raw error.
func mapPQError(err error, conflictErr error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "23505":
		if conflictErr != nil {
			return conflictErr
		}
	case "23503":
		return fmt.Errorf("%w: %s", ErrReferencedRowsRemain, pqErr.Constraint)
	case "40001", "40P01":
		return fmt.Errorf("%w: %s", ErrSerializationFailure, pqErr.Message)
	}
	return err
}

// dateStrings renders calendar dates for a `= ANY($1::date[])` filter.
func dateStrings(dates []time.Time) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format("2006-01-02")
	}
	return out
}
