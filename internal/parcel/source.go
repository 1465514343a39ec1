// Package parcel streams parcel geometries and joins them to ward/town names.
package parcel

import "github.com/sells-group/chibanzu/internal/model"

// Source yields parcel geometries one at a time, in source order. It is
// consumed once; reading again requires reopening the underlying data.
type Source interface {
	Next() bool
	Parcel() model.ParcelGeometry
	Err() error
}

// SliceSource is a Source over parcels already in memory.
type SliceSource struct {
	parcels []model.ParcelGeometry
	pos     int
}

// NewSliceSource returns a Source yielding parcels in order.
func NewSliceSource(parcels ...model.ParcelGeometry) *SliceSource {
	return &SliceSource{parcels: parcels, pos: -1}
}

func (s *SliceSource) Next() bool {
	if s.pos+1 >= len(s.parcels) {
		s.pos = len(s.parcels)
		return false
	}
	s.pos++
	return true
}

func (s *SliceSource) Parcel() model.ParcelGeometry { return s.parcels[s.pos] }

func (s *SliceSource) Err() error { return nil }
