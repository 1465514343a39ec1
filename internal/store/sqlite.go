package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/chibanzu/internal/model"
)

// SQLiteStore keeps runs and their records in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	dataset    TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	records    INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS parcels (
	run_id        TEXT NOT NULL REFERENCES runs(id),
	seq           INTEGER NOT NULL,
	area_code     TEXT NOT NULL,
	ward_name     TEXT NOT NULL,
	town_name     TEXT NOT NULL,
	parcel_number TEXT NOT NULL,
	address       TEXT NOT NULL,
	longitude     REAL NOT NULL,
	latitude      REAL NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_dataset ON runs(dataset);
CREATE INDEX IF NOT EXISTS idx_parcels_area_code ON parcels(area_code);
CREATE INDEX IF NOT EXISTS idx_parcels_address ON parcels(address);
`

// Migrate creates the tables if they do not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateRun starts a new run for dataset.
func (s *SQLiteStore) CreateRun(ctx context.Context, dataset string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, dataset, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, dataset, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Dataset:   dataset,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// InsertRecords appends recs to the run in one transaction. Sequence numbers
// continue from the run's last stored record, so arrival order is kept.
func (s *SQLiteStore) InsertRecords(ctx context.Context, runID string, recs []model.JoinedRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM parcels WHERE run_id = ?`, runID,
	).Scan(&next); err != nil {
		return eris.Wrapf(err, "sqlite: next seq for run %s", runID)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO parcels (run_id, seq, area_code, ward_name, town_name, parcel_number, address, longitude, latitude)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, r := range recs {
		next++
		if _, err := stmt.ExecContext(ctx,
			runID, next, r.AreaCode, r.WardName, r.TownName, r.ParcelNumber, r.Address(), r.Longitude, r.Latitude,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert record %d of run %s", next, runID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit records")
}

// WriteRecords implements Sink.
func (s *SQLiteStore) WriteRecords(ctx context.Context, runID string, recs []model.JoinedRecord) error {
	return s.InsertRecords(ctx, runID, recs)
}

// FinishRun sets the final status and record count of a run.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, status model.RunStatus, records int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, records = ?, updated_at = ? WHERE id = ?`,
		string(status), records, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

// GetRun loads a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, dataset, status, records, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)

	var r model.Run
	err := row.Scan(&r.ID, &r.Dataset, &r.Status, &r.Records, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("run not found: %s", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	return &r, nil
}

// LatestRun returns the most recently created run for dataset.
func (s *SQLiteStore) LatestRun(ctx context.Context, dataset string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, dataset, status, records, created_at, updated_at FROM runs
		 WHERE dataset = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`,
		dataset,
	)

	var r model.Run
	err := row.Scan(&r.ID, &r.Dataset, &r.Status, &r.Records, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("run not found for dataset %s", dataset)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	return &r, nil
}

// CountRecords returns the number of records stored for a run.
func (s *SQLiteStore) CountRecords(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM parcels WHERE run_id = ?`, runID).Scan(&n)
	return n, eris.Wrapf(err, "sqlite: count records of run %s", runID)
}

// Records returns a run's records in stored order.
func (s *SQLiteStore) Records(ctx context.Context, runID string) ([]model.JoinedRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT area_code, ward_name, town_name, parcel_number, longitude, latitude
		 FROM parcels WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list records")
	}
	return scanRecords(rows)
}

// FindByAddress returns the run's records whose full address (ward, town and
// parcel number) equals address.
func (s *SQLiteStore) FindByAddress(ctx context.Context, runID, address string) ([]model.JoinedRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT area_code, ward_name, town_name, parcel_number, longitude, latitude
		 FROM parcels WHERE run_id = ? AND address = ? ORDER BY seq`, runID, address)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find by address")
	}
	return scanRecords(rows)
}

func scanRecords(rows *sql.Rows) ([]model.JoinedRecord, error) {
	defer rows.Close() //nolint:errcheck

	var out []model.JoinedRecord
	for rows.Next() {
		var r model.JoinedRecord
		if err := rows.Scan(&r.AreaCode, &r.WardName, &r.TownName, &r.ParcelNumber, &r.Longitude, &r.Latitude); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan record")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list records iterate")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
