package parcel

import (
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/chibanzu/internal/fetcher"
	"github.com/sells-group/chibanzu/internal/jgd"
	"github.com/sells-group/chibanzu/internal/model"
)

// ShapefileOptions names the attribute fields to read and how to interpret them.
type ShapefileOptions struct {
	CodeField   string
	ChibanField string
	Encoding    string   // auto | shift_jis | utf-8
	Zone        jgd.Zone // source CRS; jgd.Geographic when already lon/lat
}

// ShapefileSource streams parcels from a .shp/.dbf pair, converting every
// vertex to longitude/latitude as it is read.
type ShapefileSource struct {
	reader    *shp.Reader
	opts      ShapefileOptions
	codeIdx   int
	chibanIdx int
	current   model.ParcelGeometry
	err       error
}

var _ Source = (*ShapefileSource)(nil)

// OpenShapefile opens path and resolves the configured attribute fields,
// matched case-insensitively. The caller must Close the source.
func OpenShapefile(path string, opts ShapefileOptions) (*ShapefileSource, error) {
	if err := fetcher.RequireFile(path); err != nil {
		return nil, eris.Wrap(err, "parcel: shapefile")
	}
	if !fetcher.ValidEncoding(opts.Encoding) {
		return nil, eris.Errorf("parcel: unsupported attribute encoding %q", opts.Encoding)
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "parcel: open shapefile %s", path)
	}

	if err := checkCoverage(reader.BBox(), opts.Zone); err != nil {
		_ = reader.Close()
		return nil, eris.Wrapf(err, "parcel: %s", path)
	}

	fieldIdx := make(map[string]int)
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	codeIdx, ok := fieldIdx[strings.ToLower(opts.CodeField)]
	if !ok {
		_ = reader.Close()
		return nil, eris.Errorf("parcel: field %q not found in %s", opts.CodeField, path)
	}
	chibanIdx, ok := fieldIdx[strings.ToLower(opts.ChibanField)]
	if !ok {
		_ = reader.Close()
		return nil, eris.Errorf("parcel: field %q not found in %s", opts.ChibanField, path)
	}

	return &ShapefileSource{
		reader:    reader,
		opts:      opts,
		codeIdx:   codeIdx,
		chibanIdx: chibanIdx,
	}, nil
}

// Next advances to the next shape record. It returns false at the end of the
// file or after an attribute decoding error, reported by Err.
func (s *ShapefileSource) Next() bool {
	if s.err != nil || !s.reader.Next() {
		return false
	}

	_, shape := s.reader.Shape()

	code, err := s.attribute(s.codeIdx)
	if err != nil {
		s.err = err
		return false
	}
	chiban, err := s.attribute(s.chibanIdx)
	if err != nil {
		s.err = err
		return false
	}

	s.current = model.ParcelGeometry{
		Type:         model.ShapeOther,
		AreaCode:     code,
		ParcelNumber: chiban,
	}
	if parts, points, ok := polygonParts(shape); ok {
		s.current.Type = model.ShapePolygon
		s.current.Rings = s.rings(parts, points)
	}
	return true
}

// Parcel returns the record read by the last call to Next.
func (s *ShapefileSource) Parcel() model.ParcelGeometry { return s.current }

// Err returns the first error that stopped iteration: an attribute decoding
// failure, or a short or corrupt shape record reported by the reader.
func (s *ShapefileSource) Err() error {
	if s.err != nil {
		return s.err
	}
	if err := s.reader.Err(); err != nil {
		return eris.Wrap(err, "parcel: read shape")
	}
	return nil
}

// Close releases the underlying files.
func (s *ShapefileSource) Close() error {
	return s.reader.Close()
}

func (s *ShapefileSource) attribute(idx int) (string, error) {
	raw := strings.TrimSpace(strings.TrimRight(s.reader.Attribute(idx), "\x00"))
	val, err := fetcher.DecodeString(raw, s.opts.Encoding)
	if err != nil {
		return "", eris.Wrapf(err, "parcel: decode attribute %d", idx)
	}
	return strings.TrimSpace(val), nil
}

// checkCoverage rejects a file whose bounding box does not land where the
// configured zone is defined, which is what projected metres read as
// longitude/latitude (or the wrong zone) look like.
func checkCoverage(box shp.Box, zone jgd.Zone) error {
	if box == (shp.Box{}) {
		return nil
	}
	for _, pt := range [][2]float64{{box.MinX, box.MinY}, {box.MaxX, box.MaxY}} {
		lon, lat := zone.ToGeographic(pt[0], pt[1])
		if !zone.Covers(lon, lat) {
			return eris.Errorf("coordinate (%g, %g) is outside the area of EPSG:%d; check shapefile.zone",
				pt[0], pt[1], zone.EPSG())
		}
	}
	return nil
}

// polygonParts extracts the ring layout of polygon shapes. Points, lines and
// null shapes report false.
func polygonParts(shape shp.Shape) ([]int32, []shp.Point, bool) {
	switch p := shape.(type) {
	case *shp.Polygon:
		return p.Parts, p.Points, true
	case *shp.PolygonZ:
		return p.Parts, p.Points, true
	}
	return nil, nil, false
}

// rings splits points at the part offsets and projects each vertex.
func (s *ShapefileSource) rings(parts []int32, points []shp.Point) [][]geom.Coord {
	out := make([][]geom.Coord, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || end > int32(len(points)) {
			continue
		}

		ring := make([]geom.Coord, 0, end-start)
		for _, pt := range points[start:end] {
			lon, lat := s.opts.Zone.ToGeographic(pt.X, pt.Y)
			ring = append(ring, geom.Coord{lon, lat})
		}
		out = append(out, ring)
	}
	return out
}
