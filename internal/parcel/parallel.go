package parcel

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/chibanzu/internal/model"
)

const defaultBatchSize = 4096

// JoinOptions configures JoinAll.
type JoinOptions struct {
	Workers   int // <= 1 joins on the calling goroutine
	BatchSize int // parcels read per batch when Workers > 1
}

// JoinAll joins every parcel from src and calls emit for each record in
// source order. With Workers > 1, parcels are read in batches and each batch
// is split across workers sharing the read-only table; results are merged
// back in input order before emit sees them. An error from emit or the
// source stops the run.
func JoinAll(ctx context.Context, src Source, table Lookup, opts JoinOptions, emit func(model.JoinedRecord) error) (Stats, error) {
	if opts.Workers <= 1 {
		return joinSequential(ctx, src, table, emit)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}

	log := zap.L().With(zap.String("component", "parcel.join"), zap.Int("workers", opts.Workers))
	var stats Stats
	batch := make([]model.ParcelGeometry, 0, opts.BatchSize)
	results := make([]model.JoinedRecord, opts.BatchSize)
	outcomes := make([]Outcome, opts.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := reduceBatch(ctx, batch, table, opts.Workers, results, outcomes); err != nil {
			return err
		}
		for i := range batch {
			stats.add(outcomes[i])
			if outcomes[i] != Emitted {
				logSkip(log, batch[i], outcomes[i])
				continue
			}
			if err := emit(results[i]); err != nil {
				return eris.Wrap(err, "parcel: emit")
			}
		}
		batch = batch[:0]
		return nil
	}

	for src.Next() {
		if err := ctx.Err(); err != nil {
			return stats, eris.Wrap(err, "parcel: join cancelled")
		}
		batch = append(batch, src.Parcel())
		if len(batch) == opts.BatchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := src.Err(); err != nil {
		return stats, eris.Wrap(err, "parcel: read source")
	}
	if err := flush(); err != nil {
		return stats, err
	}
	return stats, nil
}

// reduceBatch fills results/outcomes for batch using up to workers goroutines,
// each owning a contiguous slice of indices.
func reduceBatch(ctx context.Context, batch []model.ParcelGeometry, table Lookup, workers int, results []model.JoinedRecord, outcomes []Outcome) error {
	g, gCtx := errgroup.WithContext(ctx)
	chunk := (len(batch) + workers - 1) / workers
	for start := 0; start < len(batch); start += chunk {
		end := min(start+chunk, len(batch))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if i%256 == 0 && gCtx.Err() != nil {
					return gCtx.Err()
				}
				results[i], outcomes[i] = Reduce(batch[i], table)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "parcel: reduce batch")
	}
	return nil
}

func joinSequential(ctx context.Context, src Source, table Lookup, emit func(model.JoinedRecord) error) (Stats, error) {
	j := NewJoiner(src, table).WithContext(ctx)
	for j.Next() {
		if err := emit(j.Record()); err != nil {
			return j.Stats(), eris.Wrap(err, "parcel: emit")
		}
	}
	return j.Stats(), j.Err()
}
