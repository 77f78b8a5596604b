package database

import (
	"database/sql"
	"fmt"

	"github.com/danielzuhad/stocking-app-sub001/apperr"
)

func requireAffected(res sql.Result, entity string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows: %w", err)
	}
	if n == 0 {
		return apperr.NotFound(entity)
	}
	return nil
}
