package parcel

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"

	"github.com/sells-group/chibanzu/internal/fetcher"
	"github.com/sells-group/chibanzu/internal/jgd"
	"github.com/sells-group/chibanzu/internal/model"
)

type testParcel struct {
	code   string
	chiban string
	points []shp.Point
}

func writePolygonShapefile(t *testing.T, parcels []testParcel, encode func(string) string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "chibanzu.shp")
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("CHOCODE", 16),
		shp.StringField("CHIBAN", 32),
	}))

	for _, p := range parcels {
		n := w.Write(&shp.Polygon{
			Box:       shp.BBoxFromPoints(p.points),
			NumParts:  1,
			NumPoints: int32(len(p.points)),
			Parts:     []int32{0},
			Points:    p.points,
		})
		require.NoError(t, w.WriteAttribute(int(n), 0, p.code))
		require.NoError(t, w.WriteAttribute(int(n), 1, encode(p.chiban)))
	}
	w.Close()
	require.NoError(t, fixDBFName(path))
	return path
}

// fixDBFName moves the attribute table go-shp's writer leaves at "<base>dbf"
// to the "<base>.dbf" name its reader opens.
func fixDBFName(shpPath string) error {
	base := strings.TrimSuffix(shpPath, filepath.Ext(shpPath))
	return os.Rename(base+"dbf", base+".dbf")
}

func plainText(s string) string { return s }

func defaultOpts() ShapefileOptions {
	return ShapefileOptions{CodeField: "chocode", ChibanField: "CHIBAN", Encoding: fetcher.EncodingAuto}
}

func TestShapefileSource_ReadsPolygons(t *testing.T) {
	path := writePolygonShapefile(t, []testParcel{
		{"1040001", "12-3", []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 2}, {X: 2, Y: 2}, {X: 2, Y: 0}, {X: 0, Y: 0}}},
		{"1010001", "7", []shp.Point{{X: 5, Y: 5}, {X: 5, Y: 6}, {X: 6, Y: 6}, {X: 6, Y: 5}, {X: 5, Y: 5}}},
	}, plainText)

	src, err := OpenShapefile(path, defaultOpts())
	require.NoError(t, err)
	defer src.Close() //nolint:errcheck

	var parcels []model.ParcelGeometry
	for src.Next() {
		parcels = append(parcels, src.Parcel())
	}
	require.NoError(t, src.Err())
	require.Len(t, parcels, 2)

	assert.Equal(t, model.ShapePolygon, parcels[0].Type)
	assert.Equal(t, "1040001", parcels[0].AreaCode)
	assert.Equal(t, "12-3", parcels[0].ParcelNumber)
	require.Len(t, parcels[0].Rings, 1)
	assert.Len(t, parcels[0].Rings[0], 5)
	assert.Equal(t, "7", parcels[1].ParcelNumber)
}

func TestShapefileSource_DecodesShiftJIS(t *testing.T) {
	enc := func(s string) string {
		out, err := japanese.ShiftJIS.NewEncoder().String(s)
		require.NoError(t, err)
		return out
	}
	path := writePolygonShapefile(t, []testParcel{
		{"1040001", "西ノ京１番", []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 0, Y: 0}}},
	}, enc)

	src, err := OpenShapefile(path, defaultOpts())
	require.NoError(t, err)
	defer src.Close() //nolint:errcheck

	require.True(t, src.Next())
	assert.Equal(t, "西ノ京１番", src.Parcel().ParcelNumber)
}

func TestShapefileSource_ProjectsVertices(t *testing.T) {
	zone, err := jgd.ZoneByNumber(6)
	require.NoError(t, err)

	lon, lat, d := 135.7681, 35.0116, 0.001
	var pts []shp.Point
	for _, c := range [][2]float64{{lon, lat}, {lon, lat + d}, {lon + d, lat + d}, {lon + d, lat}, {lon, lat}} {
		x, y := zone.FromGeographic(c[0], c[1])
		pts = append(pts, shp.Point{X: x, Y: y})
	}
	path := writePolygonShapefile(t, []testParcel{{"1040001", "1", pts}}, plainText)

	opts := defaultOpts()
	opts.Zone = zone
	src, err := OpenShapefile(path, opts)
	require.NoError(t, err)
	defer src.Close() //nolint:errcheck

	require.True(t, src.Next())
	first := src.Parcel().Rings[0][0]
	assert.InDelta(t, lon, first.X(), 1e-9)
	assert.InDelta(t, lat, first.Y(), 1e-9)

	rec, outcome := Reduce(src.Parcel(), testTable(t))
	require.Equal(t, Emitted, outcome)
	assert.InDelta(t, lon+d/2, rec.Longitude, 1e-6)
	assert.InDelta(t, lat+d/2, rec.Latitude, 1e-6)
}

func TestShapefileSource_PointsAreNotPolygons(t *testing.T) {
	path := filepath.Join(t.TempDir(), "points.shp")
	w, err := shp.Create(path, shp.POINT)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("CHOCODE", 16), shp.StringField("CHIBAN", 16)}))
	n := w.Write(&shp.Point{X: 1, Y: 2})
	require.NoError(t, w.WriteAttribute(int(n), 0, "1040001"))
	require.NoError(t, w.WriteAttribute(int(n), 1, "1"))
	w.Close()
	require.NoError(t, fixDBFName(path))

	src, err := OpenShapefile(path, defaultOpts())
	require.NoError(t, err)
	defer src.Close() //nolint:errcheck

	require.True(t, src.Next())
	assert.Equal(t, model.ShapeOther, src.Parcel().Type)
	assert.Nil(t, src.Parcel().Rings)
	assert.False(t, src.Next())
}

func TestShapefileSource_TruncatedFileReportsError(t *testing.T) {
	path := writePolygonShapefile(t, []testParcel{
		{"1040001", "1", []shp.Point{{X: 0, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}, {X: 1, Y: 0}, {X: 0, Y: 0}}},
		{"1040001", "2", []shp.Point{{X: 2, Y: 0}, {X: 2, Y: 1}, {X: 3, Y: 1}, {X: 3, Y: 0}, {X: 2, Y: 0}}},
		{"1040001", "3", []shp.Point{{X: 4, Y: 0}, {X: 4, Y: 1}, {X: 5, Y: 1}, {X: 5, Y: 0}, {X: 4, Y: 0}}},
	}, plainText)
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-40))

	src, err := OpenShapefile(path, defaultOpts())
	require.NoError(t, err)
	defer src.Close() //nolint:errcheck

	read := 0
	for src.Next() {
		read++
	}
	assert.Equal(t, 2, read)
	require.Error(t, src.Err())
	assert.Contains(t, src.Err().Error(), "read shape")
}

func TestOpenShapefile_RejectsCoordinatesOutsideZone(t *testing.T) {
	zone, err := jgd.ZoneByNumber(6)
	require.NoError(t, err)
	east, north := zone.FromGeographic(135.7594, 34.9875)
	pts := []shp.Point{{X: east, Y: north}, {X: east, Y: north + 10}, {X: east + 10, Y: north + 10}, {X: east, Y: north}}
	path := writePolygonShapefile(t, []testParcel{{"1040001", "1", pts}}, plainText)

	// Plane metres read as longitude/latitude.
	_, err = OpenShapefile(path, defaultOpts())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check shapefile.zone")

	opts := defaultOpts()
	opts.Zone = zone
	src, err := OpenShapefile(path, opts)
	require.NoError(t, err)
	require.NoError(t, src.Close())
}

func TestOpenShapefile_Errors(t *testing.T) {
	_, err := OpenShapefile(filepath.Join(t.TempDir(), "missing.shp"), defaultOpts())
	require.ErrorIs(t, err, fetcher.ErrMissingSourceFile)

	path := writePolygonShapefile(t, nil, plainText)

	opts := defaultOpts()
	opts.CodeField = "AZA"
	_, err = OpenShapefile(path, opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"AZA" not found`)

	opts = defaultOpts()
	opts.Encoding = "latin1"
	_, err = OpenShapefile(path, opts)
	require.Error(t, err)
}

func TestPolygonParts_SplitsRings(t *testing.T) {
	src := &ShapefileSource{opts: ShapefileOptions{Zone: jgd.Geographic}}
	poly := &shp.Polygon{
		NumParts: 2,
		Parts:    []int32{0, 5},
		Points: []shp.Point{
			{X: 0, Y: 0}, {X: 0, Y: 4}, {X: 4, Y: 4}, {X: 4, Y: 0}, {X: 0, Y: 0},
			{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 2, Y: 2}, {X: 1, Y: 1},
		},
	}
	parts, points, ok := polygonParts(poly)
	require.True(t, ok)

	rings := src.rings(parts, points)
	require.Len(t, rings, 2)
	assert.Len(t, rings[0], 5)
	assert.Len(t, rings[1], 4)

	_, _, ok = polygonParts(&shp.PolyLine{})
	assert.False(t, ok)
}
