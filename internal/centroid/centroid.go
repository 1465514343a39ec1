// Package centroid reduces a parcel polygon to a single representative point.
package centroid

import (
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
)

// Of returns the area-weighted centroid of the polygon formed by rings, or
// false when the polygon is degenerate (zero area). Rings wound like the first
// ring are shells; rings wound the other way are holes of the shell before
// them. Of never panics on short or empty rings.
func Of(rings [][]geom.Coord) (geom.Coord, bool) {
	mp, origin, ok := multiPolygon(rings)
	if !ok || mp.Area() == 0 {
		return nil, false
	}
	c := xy.MultiPolygonCentroid(mp)
	return geom.Coord{origin[0] + c.X(), origin[1] + c.Y()}, true
}

// multiPolygon groups rings into XY polygons translated so the first vertex is
// at the origin, which keeps cross products small for coordinates far from
// zero. Rings with fewer than three distinct positions are dropped.
func multiPolygon(rings [][]geom.Coord) (*geom.MultiPolygon, geom.Coord, bool) {
	var (
		origin geom.Coord
		groups [][][]geom.Coord
		shell  bool
	)
	for _, r := range rings {
		if origin == nil {
			for _, c := range r {
				if len(c) >= 2 {
					origin = geom.Coord{c[0], c[1]}
					break
				}
			}
		}
		ring := closedRing(r, origin)
		if len(ring) < 4 {
			continue
		}

		ccw := xy.IsRingCounterClockwise(geom.XY, flatten(ring))
		if len(groups) == 0 {
			shell = ccw
		}
		if ccw == shell || len(groups) == 0 {
			groups = append(groups, [][]geom.Coord{ring})
			continue
		}
		last := len(groups) - 1
		groups[last] = append(groups[last], ring)
	}
	if len(groups) == 0 {
		return nil, nil, false
	}

	mp, err := geom.NewMultiPolygon(geom.XY).SetCoords(groups)
	if err != nil {
		return nil, nil, false
	}
	return mp, origin, true
}

// closedRing keeps the XY part of each vertex relative to origin and repeats
// the first vertex at the end when the ring is open.
func closedRing(ring []geom.Coord, origin geom.Coord) []geom.Coord {
	out := make([]geom.Coord, 0, len(ring)+1)
	for _, c := range ring {
		if len(c) < 2 {
			continue
		}
		out = append(out, geom.Coord{c[0] - origin[0], c[1] - origin[1]})
	}
	if n := len(out); n > 0 && !out[0].Equal(geom.XY, out[n-1]) {
		out = append(out, out[0])
	}
	return out
}

func flatten(ring []geom.Coord) []float64 {
	flat := make([]float64, 0, 2*len(ring))
	for _, c := range ring {
		flat = append(flat, c[0], c[1])
	}
	return flat
}
