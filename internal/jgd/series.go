package jgd

import (
	"math"
	"sync"

	"github.com/wroge/wgs84"
)

// series holds the Krüger coefficients for one spheroid and scale factor,
// all derived from the third flattening n.
type series struct {
	a, fi float64
	n     float64
	aBar  float64 // k0 * A, the scaled rectifying radius
	arc   [6]float64
	alpha [5]float64
	beta  [5]float64
	delta [6]float64
}

func newSeries(a, fi float64) *series {
	f := 1 / fi
	n := f / (2 - f)
	pow := func(k float64) float64 { return math.Pow(n, k) }

	s := &series{a: a, fi: fi, n: n}
	s.arc = [6]float64{
		1 + n*n/4 + pow(4)/64,
		-3.0 / 2 * (n - pow(3)/8 - pow(5)/64),
		15.0 / 16 * (n*n - pow(4)/4),
		-35.0 / 48 * (pow(3) - 5.0/16*pow(5)),
		315.0 / 512 * pow(4),
		-693.0 / 1280 * pow(5),
	}
	s.aBar = scale * a / (1 + n) * s.arc[0]

	s.alpha = [5]float64{
		n/2 - 2*n*n/3 + 5*pow(3)/16 + 41*pow(4)/180 - 127*pow(5)/288,
		13*n*n/48 - 3*pow(3)/5 + 557*pow(4)/1440 + 281*pow(5)/630,
		61*pow(3)/240 - 103*pow(4)/140 + 15061*pow(5)/26880,
		49561*pow(4)/161280 - 179*pow(5)/168,
		34729 * pow(5) / 80640,
	}
	s.beta = [5]float64{
		n/2 - 2*n*n/3 + 37*pow(3)/96 - pow(4)/360 - 81*pow(5)/512,
		n*n/48 + pow(3)/15 - 437*pow(4)/1440 + 46*pow(5)/105,
		17*pow(3)/480 - 37*pow(4)/840 - 209*pow(5)/4480,
		4397*pow(4)/161280 - 11*pow(5)/504,
		4583 * pow(5) / 161280,
	}
	s.delta = [6]float64{
		2*n - 2*n*n/3 - 2*pow(3) + 116*pow(4)/45 + 26*pow(5)/45 - 2854*pow(6)/675,
		7*n*n/3 - 8*pow(3)/5 - 227*pow(4)/45 + 2704*pow(5)/315 + 2323*pow(6)/945,
		56*pow(3)/15 - 136*pow(4)/35 - 1262*pow(5)/105 + 73814*pow(6)/2835,
		4279*pow(4)/630 - 332*pow(5)/35 - 399572*pow(6)/14175,
		4174*pow(5)/315 - 144838*pow(6)/6237,
		601676 * pow(6) / 22275,
	}
	return s
}

var (
	grs80Once   sync.Once
	grs80Series *series
)

// seriesFor returns the coefficients for sph, reusing the GRS80 set.
func seriesFor(sph wgs84.Spheroid) *series {
	grs80Once.Do(func() {
		g := wgs84.GRS80{}
		grs80Series = newSeries(g.A(), g.Fi())
	})
	if sph.A() == grs80Series.a && sph.Fi() == grs80Series.fi {
		return grs80Series
	}
	return newSeries(sph.A(), sph.Fi())
}

// meridianArc is the scaled meridian distance from the equator to phi.
func (s *series) meridianArc(phi float64) float64 {
	m := s.arc[0] * phi
	for j := 1; j < len(s.arc); j++ {
		m += s.arc[j] * math.Sin(2*float64(j)*phi)
	}
	return scale * s.a / (1 + s.n) * m
}
