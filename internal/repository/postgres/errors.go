package postgres

import (
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
)

const (
	pqUniqueViolation      = "23505"
	pqInvalidTextRepresent = "22P02"
)

func isUniqueViolation(err error) bool {
	var perr *pq.Error
	return errors.As(err, &perr) && perr.Code == pqUniqueViolation
}

// isInvalidUUID reports a malformed id; lookups treat it like a missing row.
func isInvalidUUID(err error) bool {
	var perr *pq.Error
	return errors.As(err, &perr) && perr.Code == pqInvalidTextRepresent
}

func nullTimeUTC(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}
