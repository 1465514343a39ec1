// Package emit serializes joined parcel records to line-oriented text.
package emit

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/rotisserie/eris"

	"github.com/sells-group/chibanzu/internal/model"
)

// Columns is the fixed field order of every output line.
var Columns = []string{"area_code", "ward_name", "town_name", "parcel_number", "longitude", "latitude"}

// coordPrecision keeps seven decimals, about 1 cm on the ground.
const coordPrecision = 7

// Format returns r as an output tuple in Columns order.
func Format(r model.JoinedRecord) []string {
	return []string{
		r.AreaCode,
		r.WardName,
		r.TownName,
		r.ParcelNumber,
		strconv.FormatFloat(r.Longitude, 'f', coordPrecision, 64),
		strconv.FormatFloat(r.Latitude, 'f', coordPrecision, 64),
	}
}

// Emitter writes one line per record, in arrival order, with no filtering.
type Emitter struct {
	w     *csv.Writer
	count int
}

// NewEmitter writes to w with the given field separator (',' when zero).
func NewEmitter(w io.Writer, sep rune) *Emitter {
	cw := csv.NewWriter(w)
	if sep != 0 {
		cw.Comma = sep
	}
	return &Emitter{w: cw}
}

// Emit writes r as a single line.
func (e *Emitter) Emit(r model.JoinedRecord) error {
	if err := e.w.Write(Format(r)); err != nil {
		return eris.Wrap(err, "emit: write record")
	}
	e.count++
	return nil
}

// WriteHeader writes Columns as the first line.
func (e *Emitter) WriteHeader() error {
	return eris.Wrap(e.w.Write(Columns), "emit: write header")
}

// Flush writes any buffered lines to the underlying writer.
func (e *Emitter) Flush() error {
	e.w.Flush()
	return eris.Wrap(e.w.Error(), "emit: flush")
}

// Count returns the number of records emitted.
func (e *Emitter) Count() int { return e.count }
