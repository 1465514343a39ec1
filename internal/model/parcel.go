// Package model holds the typed records that flow through the chiban conversion pipeline.
package model

import "github.com/twpayne/go-geom"

// ShapeType tags a geometry record by whether it can take part in a join.
type ShapeType string

const (
	ShapePolygon ShapeType = "polygon"
	ShapeOther   ShapeType = "other"
)

// AreaCodeEntry is one row of the ward/town name list.
type AreaCodeEntry struct {
	AreaCode string `json:"area_code"`
	WardName string `json:"ward_name"` // includes the ward terminator, e.g. "中京区"
	TownName string `json:"town_name"`
}

// ParcelGeometry is one shape record from the geometry source. Rings[0] is
// the outer boundary; any further rings are holes or additional parts.
type ParcelGeometry struct {
	Type         ShapeType      `json:"type"`
	AreaCode     string         `json:"area_code"`
	ParcelNumber string         `json:"parcel_number"`
	Rings        [][]geom.Coord `json:"-"`
}

// JoinedRecord is a parcel matched to its ward/town names and reduced to a
// single representative coordinate.
type JoinedRecord struct {
	AreaCode     string  `json:"area_code"`
	WardName     string  `json:"ward_name"`
	TownName     string  `json:"town_name"`
	ParcelNumber string  `json:"parcel_number"`
	Longitude    float64 `json:"longitude"`
	Latitude     float64 `json:"latitude"`
}

// Address returns the full notation of the record: ward, town and chiban.
func (r JoinedRecord) Address() string {
	return r.WardName + r.TownName + r.ParcelNumber
}
