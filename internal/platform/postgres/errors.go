package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/phrazzld/scry-avatars/internal/store"
)

// pgSentinels maps the SQLSTATE codes the profile schema can raise to store
// sentinels.
var pgSentinels = map[string]error{
	"23505": store.ErrDuplicate,     // unique_violation
	"23514": store.ErrInvalidEntity, // check_violation
	"23502": store.ErrInvalidEntity, // not_null_violation
}

// MapError translates driver errors into store sentinels, keeping the
// original error in the message. Unknown errors are returned unchanged.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if sentinel, ok := pgSentinels[pgErr.Code]; ok {
			if name := pgErr.ConstraintName; name != "" {
				return fmt.Errorf("%w (%s): %v", sentinel, name, err)
			}
			return fmt.Errorf("%w: %v", sentinel, err)
		}
	}
	return err
}

// IsNotFoundError reports whether err is sql.ErrNoRows or wraps store.ErrNotFound.
func IsNotFoundError(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, store.ErrNotFound)
}
