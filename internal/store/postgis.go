package store

import (
	"context"
	"embed"
	"io/fs"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/sells-group/chibanzu/internal/db"
	"github.com/sells-group/chibanzu/internal/model"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

const (
	pgSchema    = "chiban"
	pgTable     = "parcels"
	migrateLock = 26026
)

var parcelColumns = []string{"run_id", "area_code", "ward_name", "town_name", "parcel_number", "geom"}

// PostGIS loads records into chiban.parcels as SRID 4326 points.
type PostGIS struct {
	pool      db.Pool
	batchSize int
}

// NewPostGIS wraps an existing pool. batchSize bounds each COPY (0 = db default).
func NewPostGIS(pool db.Pool, batchSize int) *PostGIS {
	return &PostGIS{pool: pool, batchSize: batchSize}
}

// ConnectPostGIS opens a pgx pool for databaseURL. The returned func closes it.
func ConnectPostGIS(ctx context.Context, databaseURL string, batchSize int) (*PostGIS, func(), error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, nil, eris.Wrap(err, "postgis: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, eris.Wrap(err, "postgis: ping")
	}
	return NewPostGIS(pool, batchSize), pool.Close, nil
}

// Migrate applies pending migrations in file name order. Everything runs in
// one transaction holding a transaction-scoped advisory lock, so concurrent
// migrators serialize and a failed migration leaves nothing behind.
func (p *PostGIS) Migrate(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "postgis.migrate"))

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgis: begin migration")
	}
	if err := migrate(ctx, tx, log); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			log.Warn("postgis: rollback migration", zap.Error(rbErr))
		}
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgis: commit migration")
}

func migrate(ctx context.Context, tx pgx.Tx, log *zap.Logger) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrateLock); err != nil {
		return eris.Wrap(err, "postgis: acquire migration lock")
	}

	if _, err := tx.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS chiban;
CREATE TABLE IF NOT EXISTS chiban.schema_migrations (
	filename   TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
		return eris.Wrap(err, "postgis: create migration table")
	}

	entries, err := fs.ReadDir(migrationFS, "migrations")
	if err != nil {
		return eris.Wrap(err, "postgis: read migration dir")
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	applied, err := appliedMigrations(ctx, tx)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if applied[name] {
			continue
		}
		data, err := migrationFS.ReadFile("migrations/" + name)
		if err != nil {
			return eris.Wrapf(err, "postgis: read migration %s", name)
		}

		log.Info("applying migration", zap.String("file", name))
		if _, err := tx.Exec(ctx, string(data)); err != nil {
			return eris.Wrapf(err, "postgis: apply migration %s", name)
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO chiban.schema_migrations (filename) VALUES ($1)", name,
		); err != nil {
			return eris.Wrapf(err, "postgis: record migration %s", name)
		}
	}
	return nil
}

func appliedMigrations(ctx context.Context, tx pgx.Tx) (map[string]bool, error) {
	rows, err := tx.Query(ctx, "SELECT filename FROM chiban.schema_migrations")
	if err != nil {
		return nil, eris.Wrap(err, "postgis: query applied migrations")
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "postgis: scan migration")
		}
		applied[name] = true
	}
	return applied, eris.Wrap(rows.Err(), "postgis: iterate migrations")
}

// CopyRecords loads recs for runID through COPY and returns the rows copied.
func (p *PostGIS) CopyRecords(ctx context.Context, runID string, recs []model.JoinedRecord) (int64, error) {
	rows := make([][]any, 0, len(recs))
	for _, r := range recs {
		point, err := EncodePoint(r.Longitude, r.Latitude)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{runID, r.AreaCode, r.WardName, r.TownName, r.ParcelNumber, point})
	}
	return db.CopyFromSchema(ctx, p.pool, pgSchema, pgTable, parcelColumns, rows, p.batchSize)
}

// WriteRecords implements Sink.
func (p *PostGIS) WriteRecords(ctx context.Context, runID string, recs []model.JoinedRecord) error {
	_, err := p.CopyRecords(ctx, runID, recs)
	return err
}

// DeleteRun removes every record loaded under runID.
func (p *PostGIS) DeleteRun(ctx context.Context, runID string) (int64, error) {
	tag, err := p.pool.Exec(ctx, "DELETE FROM chiban.parcels WHERE run_id = $1", runID)
	if err != nil {
		return 0, eris.Wrapf(err, "postgis: delete run %s", runID)
	}
	return tag.RowsAffected(), nil
}

// EncodePoint returns lon/lat as little-endian EWKB with SRID 4326.
func EncodePoint(lon, lat float64) ([]byte, error) {
	pt := geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(4326)
	data, err := ewkb.Marshal(pt, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "postgis: encode point")
	}
	return data, nil
}
