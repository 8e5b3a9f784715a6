package tilegrid

import (
	"github.com/paulmach/orb"
)

// BBox is a north/south/east/west box in degrees or projected units.
// West > East marks an extent crossing the antimeridian.
type BBox struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// World is the whole web-mercator world in degrees.
var World = BBox{North: 85, South: -85, East: 180, West: -180}

func (b BBox) Valid() bool {
	return b.North > b.South
}

func (b BBox) CrossesAntimeridian() bool {
	return b.West > b.East
}

// Display returns the box shifted so that it does not wrap: a crossing box
// gets West-360, everything else is returned as is.
func (b BBox) Display() BBox {
	if b.CrossesAntimeridian() {
		b.West -= 360
	}
	return b
}

// Unwrapped returns a crossing box with East+360, the form used for
// intersection tests on the eastern hemisphere side.
func (b BBox) Unwrapped() BBox {
	if b.CrossesAntimeridian() {
		b.East += 360
	}
	return b
}

// Split cuts a box that wraps the antimeridian, in raw or display form, into
// its two in-range halves, eastern hemisphere part first.
func (b BBox) Split() []BBox {
	switch {
	case b.CrossesAntimeridian():
		return []BBox{
			{North: b.North, South: b.South, West: b.West, East: 180},
			{North: b.North, South: b.South, West: -180, East: b.East},
		}
	case b.West < -180:
		return []BBox{
			{North: b.North, South: b.South, West: b.West + 360, East: 180},
			{North: b.North, South: b.South, West: -180, East: b.East},
		}
	case b.East > 180:
		return []BBox{
			{North: b.North, South: b.South, West: b.West, East: 180},
			{North: b.North, South: b.South, West: -180, East: b.East - 360},
		}
	}
	return []BBox{b}
}

// Bound converts a non-crossing box to an orb.Bound (x=lon, y=lat).
func (b BBox) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{b.West, b.South},
		Max: orb.Point{b.East, b.North},
	}
}

// Ring returns the closed ring (W,S) (E,S) (E,N) (W,N) (W,S).
func (b BBox) Ring() orb.Ring {
	return orb.Ring{
		{b.West, b.South},
		{b.East, b.South},
		{b.East, b.North},
		{b.West, b.North},
		{b.West, b.South},
	}
}

func FromBound(bd orb.Bound) BBox {
	return BBox{North: bd.Max[1], South: bd.Min[1], East: bd.Max[0], West: bd.Min[0]}
}

func envelope(pts []orb.Point) BBox {
	bd := orb.MultiPoint(pts).Bound()
	return FromBound(bd)
}

// boundary samples the edges of b with n segments per edge, corners included.
func boundary(b BBox, n int) []orb.Point {
	if n < 1 {
		n = 1
	}
	pts := make([]orb.Point, 0, 4*n)
	for i := 0; i < n; i++ {
		f := float64(i) / float64(n)
		pts = append(pts,
			orb.Point{b.West + f*(b.East-b.West), b.South},
			orb.Point{b.East, b.South + f*(b.North-b.South)},
			orb.Point{b.East - f*(b.East-b.West), b.North},
			orb.Point{b.West, b.North - f*(b.North-b.South)},
		)
	}
	return pts
}
