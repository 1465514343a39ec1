package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultCopyBatch is the COPY chunk size used when none is given.
const DefaultCopyBatch = 50000

// CopyFromSchema bulk-inserts rows into schema.table using the COPY
// protocol, in chunks of batchSize rows (0 = DefaultCopyBatch). It returns
// the number of rows copied before any failure.
func CopyFromSchema(ctx context.Context, pool Pool, schema, table string, columns []string, rows [][]any, batchSize int) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultCopyBatch
	}

	log := zap.L().With(
		zap.String("component", "db.copy"),
		zap.String("table", schema+"."+table),
		zap.Int("total_rows", len(rows)),
	)

	var total int64
	for i := 0; i < len(rows); i += batchSize {
		end := min(i+batchSize, len(rows))

		n, err := pool.CopyFrom(ctx, pgx.Identifier{schema, table}, columns, pgx.CopyFromRows(rows[i:end]))
		if err != nil {
			return total, eris.Wrapf(err, "db: COPY INTO %s.%s (batch %d-%d)", schema, table, i, end)
		}
		total += n

		log.Debug("batch copied",
			zap.Int("batch_start", i),
			zap.Int("batch_end", end),
			zap.Int64("batch_rows", n),
		)
	}
	return total, nil
}
