package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/lib/pq"
)

var (
	// ErrConflict marks a transaction that was rolled back because of
	// contention, a constraint violation or its deadline. Retrying the whole
	// unit of work is safe.
	ErrConflict = errors.New("store: transaction conflict")

	// ErrUnavailable marks a failure to reach the database.
	ErrUnavailable = errors.New("store: unavailable")
)

const (
	uniqueViolation     = pq.ErrorCode("23505")
	foreignKeyViolation = pq.ErrorCode("23503")
	checkViolation      = pq.ErrorCode("23514")
	queryCanceled       = pq.ErrorCode("57014")
)

// Classify maps driver errors onto ErrConflict or ErrUnavailable. Errors it
// does not recognize are returned unchanged.
func Classify(err error) error {
	return classify(context.Background(), err)
}

func classify(ctx context.Context, err error) error {
	if err == nil || errors.Is(err, ErrConflict) || errors.Is(err, ErrUnavailable) {
		return err
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code.Class() == "40", pqErr.Code.Class() == "23", pqErr.Code == queryCanceled:
			return fmt.Errorf("%w: %w", ErrConflict, err)
		case pqErr.Code.Class() == "08", pqErr.Code.Class() == "53", strings.HasPrefix(string(pqErr.Code), "57P"):
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	if errors.Is(err, sql.ErrTxDone) && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrConflict, ctx.Err())
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return err
}

// IsUniqueViolation reports whether err was caused by a unique constraint.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// IsForeignKeyViolation reports whether err was caused by a foreign key.
func IsForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation
}

// IsCheckViolation reports whether err was caused by a CHECK constraint.
func IsCheckViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == checkViolation
}
