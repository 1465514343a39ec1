package parcel

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/chibanzu/internal/centroid"
	"github.com/sells-group/chibanzu/internal/model"
)

// Lookup resolves an area code to its ward/town names.
type Lookup interface {
	Lookup(code string) (model.AreaCodeEntry, bool)
}

// Outcome says what happened to one parcel during the join.
type Outcome int

const (
	Emitted Outcome = iota
	SkippedNonPolygon
	SkippedUnmapped
	SkippedDegenerate
)

func (o Outcome) String() string {
	switch o {
	case Emitted:
		return "emitted"
	case SkippedNonPolygon:
		return "non_polygon"
	case SkippedUnmapped:
		return "unmapped"
	case SkippedDegenerate:
		return "degenerate"
	}
	return "unknown"
}

// Stats counts parcels by outcome.
type Stats struct {
	Read       int `json:"read"`
	NonPolygon int `json:"non_polygon"`
	Unmapped   int `json:"unmapped"`
	Degenerate int `json:"degenerate"`
	Emitted    int `json:"emitted"`
}

func (s *Stats) add(o Outcome) {
	s.Read++
	switch o {
	case Emitted:
		s.Emitted++
	case SkippedNonPolygon:
		s.NonPolygon++
	case SkippedUnmapped:
		s.Unmapped++
	case SkippedDegenerate:
		s.Degenerate++
	}
}

// Reduce joins a single parcel. The record is only meaningful when the
// outcome is Emitted. Reduce has no side effects and is safe to call
// concurrently with a shared read-only table.
func Reduce(p model.ParcelGeometry, table Lookup) (model.JoinedRecord, Outcome) {
	if p.Type != model.ShapePolygon {
		return model.JoinedRecord{}, SkippedNonPolygon
	}
	entry, ok := table.Lookup(p.AreaCode)
	if !ok {
		return model.JoinedRecord{}, SkippedUnmapped
	}
	c, ok := centroid.Of(p.Rings)
	if !ok {
		return model.JoinedRecord{}, SkippedDegenerate
	}
	return model.JoinedRecord{
		AreaCode:     entry.AreaCode,
		WardName:     entry.WardName,
		TownName:     entry.TownName,
		ParcelNumber: p.ParcelNumber,
		Longitude:    c.X(),
		Latitude:     c.Y(),
	}, Emitted
}

// Joiner lazily joins a Source against a lookup table. It is forward-only
// and single-pass; records come out in source order with no deduplication.
type Joiner struct {
	ctx    context.Context
	src    Source
	table  Lookup
	record model.JoinedRecord
	stats  Stats
	err    error
	log    *zap.Logger
}

// NewJoiner returns a Joiner reading from src.
func NewJoiner(src Source, table Lookup) *Joiner {
	return &Joiner{
		ctx:   context.Background(),
		src:   src,
		table: table,
		log:   zap.L().With(zap.String("component", "parcel.join")),
	}
}

// WithContext makes Next stop once ctx is done. The context is checked
// before every source record, skipped ones included.
func (j *Joiner) WithContext(ctx context.Context) *Joiner {
	j.ctx = ctx
	return j
}

// Next advances to the next emitted record, skipping ineligible parcels.
func (j *Joiner) Next() bool {
	if j.err != nil {
		return false
	}
	for {
		if err := j.ctx.Err(); err != nil {
			j.err = eris.Wrap(err, "parcel: join cancelled")
			return false
		}
		if !j.src.Next() {
			return false
		}
		p := j.src.Parcel()
		rec, outcome := Reduce(p, j.table)
		j.stats.add(outcome)
		if outcome == Emitted {
			j.record = rec
			return true
		}
		logSkip(j.log, p, outcome)
	}
}

// Record returns the record produced by the last successful Next.
func (j *Joiner) Record() model.JoinedRecord { return j.record }

// Err returns the cancellation or source error that ended iteration, if any.
func (j *Joiner) Err() error {
	if j.err != nil {
		return j.err
	}
	if err := j.src.Err(); err != nil {
		return eris.Wrap(err, "parcel: read source")
	}
	return nil
}

// Stats returns the counts accumulated so far.
func (j *Joiner) Stats() Stats { return j.stats }

func logSkip(log *zap.Logger, p model.ParcelGeometry, o Outcome) {
	if o == Emitted || o == SkippedNonPolygon {
		return
	}
	log.Debug("parcel skipped",
		zap.Stringer("reason", o),
		zap.String("area_code", p.AreaCode),
		zap.String("parcel_number", p.ParcelNumber),
	)
}
