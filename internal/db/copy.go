package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// CopyInto streams rows into a table over the COPY protocol. It skips the
// temp-table round trip BulkUpsert pays for conflict handling, so it is only
// safe when the batch cannot collide with existing rows, such as an initial
// backfill into a fresh transactions table. Table may be schema-qualified.
func CopyInto(ctx context.Context, pool Pool, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	n, err := pool.CopyFrom(ctx, tableIdentifier(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY into %s", table)
	}
	return n, nil
}
