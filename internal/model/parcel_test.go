package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestJoinedRecord_Address(t *testing.T) {
	r := JoinedRecord{AreaCode: "1040001", WardName: "中京区", TownName: "西ノ京", ParcelNumber: "12-3"}
	assert.Equal(t, "中京区西ノ京12-3", r.Address())
}

func TestParcelGeometry_JSONOmitsRings(t *testing.T) {
	p := ParcelGeometry{
		Type:         ShapePolygon,
		AreaCode:     "1040001",
		ParcelNumber: "1",
		Rings:        [][]geom.Coord{{{0, 0}, {1, 0}, {1, 1}}},
	}
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"polygon","area_code":"1040001","parcel_number":"1"}`, string(data))
}
