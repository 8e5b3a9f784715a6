package tilegrid

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// Range is an inclusive block of tiles at one zoom.
type Range struct {
	Z    int
	MinX int
	MaxX int
	MinY int
	MaxY int
}

func (r Range) Empty() bool {
	return r.MaxX < r.MinX || r.MaxY < r.MinY
}

// Tiles lists the range column outer, row inner, both ascending.
func (r Range) Tiles(srid SRID) []Tile {
	if r.Empty() {
		return nil
	}
	out := make([]Tile, 0, (r.MaxX-r.MinX+1)*(r.MaxY-r.MinY+1))
	for x := r.MinX; x <= r.MaxX; x++ {
		for y := r.MinY; y <= r.MaxY; y++ {
			out = append(out, Tile{Z: r.Z, X: x, Y: y, SRID: srid})
		}
	}
	return out
}

func (r Range) Intersect(o Range) Range {
	return Range{
		Z:    r.Z,
		MinX: max(r.MinX, o.MinX),
		MaxX: min(r.MaxX, o.MaxX),
		MinY: max(r.MinY, o.MinY),
		MaxY: min(r.MaxY, o.MaxY),
	}
}

// Reference is a registry entry: the tile grid of one spatial reference and
// the lowest zoom a client can use with it.
type Reference struct {
	SRID      SRID
	Name      string
	FloorZoom int
	// Floor is the explicit tile range at FloorZoom. It is nil for the
	// default reference, whose root is derived from a covering range.
	Floor *Range

	grid grid
}

// FastPath reports whether roots for this reference are computed from a
// covering range rather than from an explicit floor.
func (r Reference) FastPath() bool {
	return r.Floor == nil
}

// Valid reports whether t addresses an existing tile of the grid.
func (r Reference) Valid(t Tile) bool {
	if t.Z < 0 || t.Z > MaxZoom || t.X < 0 || t.Y < 0 {
		return false
	}
	cols, rows := r.grid.dims(t.Z)
	return t.X < cols && t.Y < rows
}

type grid interface {
	// native box of a tile in the grid's own units
	native(z, x, y int) BBox
	// degree envelope of a native box
	geographic(b BBox) BBox
	// tile holding a lon/lat point, clamped to the grid
	locate(p orb.Point, z int) (x, y int)
	dims(z int) (cols, rows int)
}

var registry = map[SRID]Reference{
	// Google Earth >= 7.3.6 needs zoom 5 as the outermost level in WGS84.
	WGS84: {
		SRID:      WGS84,
		Name:      "WGS 84 / web mercator tiles",
		FloorZoom: 5,
		grid:      mercatorGrid{},
	},
	// Ordnance Survey Maps API ZXY tile matrix for EPSG:27700.
	BritishNationalGrid: {
		SRID:      BritishNationalGrid,
		Name:      "OSGB 1936 / British National Grid",
		FloorZoom: 0,
		Floor:     &Range{Z: 0, MinX: 0, MaxX: 4, MinY: 0, MaxY: 6},
		grid:      osgbGrid{},
	},
}

// Lookup returns the registry entry for srid.
func Lookup(srid SRID) (Reference, bool) {
	r, ok := registry[srid]
	return r, ok
}

// Registered lists the registered references.
func Registered() []SRID {
	return []SRID{WGS84, BritishNationalGrid}
}

var mercatorAliases = map[SRID]bool{
	WebMercator: true,
	900913:      true,
	3587:        true,
	54004:       true,
	41001:       true,
	102113:      true,
	102100:      true,
	3785:        true,
}

// IsMercator reports whether srid is one of the spherical mercator codes.
func IsMercator(srid SRID) bool {
	return mercatorAliases[srid]
}

type mercatorGrid struct{}

func (mercatorGrid) native(z, x, y int) BBox {
	return FromBound(maptile.New(uint32(x), uint32(y), maptile.Zoom(z)).Bound())
}

func (mercatorGrid) geographic(b BBox) BBox { return b }

func (g mercatorGrid) locate(p orb.Point, z int) (int, int) {
	f := maptile.Fraction(p, maptile.Zoom(z))
	cols, rows := g.dims(z)
	return clampIndex(f[0], cols), clampIndex(f[1], rows)
}

func (mercatorGrid) dims(z int) (int, int) {
	return 1 << z, 1 << z
}

const (
	osgbOriginX = -238375.0
	osgbOriginY = 1376256.0
	// 896 m/px at zoom 0, 256 px tiles
	osgbTileSpan = 229376.0
	osgbCols     = 5
	osgbRows     = 7
)

type osgbGrid struct{}

func osgbSpan(z int) float64 {
	return math.Ldexp(osgbTileSpan, -z)
}

func (osgbGrid) native(z, x, y int) BBox {
	s := osgbSpan(z)
	return BBox{
		West:  osgbOriginX + float64(x)*s,
		East:  osgbOriginX + float64(x+1)*s,
		North: osgbOriginY - float64(y)*s,
		South: osgbOriginY - float64(y+1)*s,
	}
}

func (osgbGrid) geographic(b BBox) BBox {
	pts := boundary(b, 4)
	for i, p := range pts {
		lat, lon := osgbInverse(p[0], p[1])
		pts[i] = orb.Point{lon, lat}
	}
	return envelope(pts)
}

func (g osgbGrid) locate(p orb.Point, z int) (int, int) {
	e, n := osgbForward(p[1], p[0])
	s := osgbSpan(z)
	cols, rows := g.dims(z)
	return clampIndex((e-osgbOriginX)/s, cols), clampIndex((osgbOriginY-n)/s, rows)
}

func (osgbGrid) dims(z int) (int, int) {
	return osgbCols << z, osgbRows << z
}

func clampIndex(f float64, n int) int {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f >= float64(n) {
		return n - 1
	}
	i := int(math.Floor(f))
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}
