package main

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/chibanzu/internal/config"
	"github.com/sells-group/chibanzu/internal/model"
	"github.com/sells-group/chibanzu/internal/store"
)

// sinkSet fans joined records out to the configured database sinks. A nil
// *sinkSet means no sink is configured and every method is a no-op.
type sinkSet struct {
	runID   string
	sqlite  *store.SQLiteStore
	postgis *store.PostGIS
	batcher *store.Batcher
	closers []func()
}

func openSinks(ctx context.Context, c config.StoreConfig, datasetID string) (*sinkSet, error) {
	if c.SQLitePath == "" && c.DatabaseURL == "" {
		return nil, nil
	}

	s := &sinkSet{runID: uuid.New().String()}
	var targets []store.Sink

	if c.SQLitePath != "" {
		st, err := store.NewSQLite(c.SQLitePath)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = st.Close() })
		if err := st.Migrate(ctx); err != nil {
			s.close()
			return nil, err
		}
		run, err := st.CreateRun(ctx, datasetID)
		if err != nil {
			s.close()
			return nil, err
		}
		s.runID = run.ID
		s.sqlite = st
		targets = append(targets, st)
	}

	if c.DatabaseURL != "" {
		pg, closeFn, err := store.ConnectPostGIS(ctx, c.DatabaseURL, c.BatchSize)
		if err != nil {
			s.close()
			return nil, err
		}
		s.closers = append(s.closers, closeFn)
		if err := pg.Migrate(ctx); err != nil {
			s.close()
			return nil, err
		}
		s.postgis = pg
		targets = append(targets, pg)
	}

	s.batcher = store.NewBatcher(s.runID, c.BatchSize, targets...)
	zap.L().Info("database sinks open",
		zap.String("run_id", s.runID),
		zap.Bool("sqlite", s.sqlite != nil),
		zap.Bool("postgis", s.postgis != nil),
	)
	return s, nil
}

func (s *sinkSet) add(ctx context.Context, r model.JoinedRecord) error {
	if s == nil {
		return nil
	}
	return s.batcher.Add(ctx, r)
}

func (s *sinkSet) flush(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.batcher.Flush(ctx)
}

// stored is the number of records the sinks have accepted.
func (s *sinkSet) stored() int {
	if s == nil {
		return 0
	}
	return s.batcher.Flushed()
}

// finish records the run outcome and the stored record count. On failure rows
// already copied to PostGIS are deleted so the table only ever holds complete
// runs.
func (s *sinkSet) finish(ctx context.Context, runErr error) error {
	if s == nil {
		return nil
	}
	ctx = context.WithoutCancel(ctx)

	status := model.RunStatusComplete
	if runErr != nil {
		status = model.RunStatusFailed
		if s.postgis != nil {
			if n, err := s.postgis.DeleteRun(ctx, s.runID); err != nil {
				zap.L().Warn("postgis: remove partial run", zap.String("run_id", s.runID), zap.Error(err))
			} else if n > 0 {
				zap.L().Info("postgis: removed partial run", zap.String("run_id", s.runID), zap.Int64("rows", n))
			}
		}
	}

	if s.sqlite != nil {
		if err := s.sqlite.FinishRun(ctx, s.runID, status, s.batcher.Flushed()); err != nil {
			return eris.Wrap(err, "sinks: finish run")
		}
	}
	return nil
}

func (s *sinkSet) close() {
	if s == nil {
		return
	}
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}
