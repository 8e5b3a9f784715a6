// Package tilegrid maps tile addresses to bounding boxes across the
// supported spatial references and back.
package tilegrid

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb/maptile"

	"github.com/mohammed-shakir/superoverlay/internal/errs"
)

// MaxZoom is the deepest zoom a quadkey can address in a uint64.
const MaxZoom = 30

// SRID is an EPSG spatial reference code.
type SRID int

const (
	WGS84               SRID = 4326
	WebMercator         SRID = 3857
	BritishNationalGrid SRID = 27700

	// Default is the reference Google Earth displays in and the one a
	// descriptor gets when it does not name a projection.
	Default = WGS84
)

// Tile is a (zoom, column, row) address in the grid of a spatial reference.
type Tile struct {
	Z, X, Y int
	SRID    SRID
}

func (t Tile) String() string {
	return fmt.Sprintf("%d-%d-%d", t.Z, t.X, t.Y)
}

// Children returns the four tiles one zoom deeper, column outer and row
// inner, both ascending.
func (t Tile) Children() [4]Tile {
	z := t.Z + 1
	x, y := t.X*2, t.Y*2
	return [4]Tile{
		{Z: z, X: x, Y: y, SRID: t.SRID},
		{Z: z, X: x, Y: y + 1, SRID: t.SRID},
		{Z: z, X: x + 1, Y: y, SRID: t.SRID},
		{Z: z, X: x + 1, Y: y + 1, SRID: t.SRID},
	}
}

// RowFlip converts between top-origin and bottom-origin row numbering.
func RowFlip(z, row int) int {
	return (1 << z) - 1 - row
}

// QuadKey encodes the tile as a base-4 string of length z, most significant
// level first, each digit 2*rowbit+colbit. Addresses outside the 2^z by 2^z
// grid, or deeper than MaxZoom, are ErrTileOutOfRange.
func QuadKey(x, y, z int) (string, error) {
	if z < 0 || z > MaxZoom {
		return "", fmt.Errorf("%w: quadkey zoom %d", errs.ErrTileOutOfRange, z)
	}
	if n := 1 << z; x < 0 || y < 0 || x >= n || y >= n {
		return "", fmt.Errorf("%w: quadkey %d-%d-%d", errs.ErrTileOutOfRange, z, x, y)
	}
	if z == 0 {
		return "", nil
	}
	k := maptile.New(uint32(x), uint32(y), maptile.Zoom(z)).Quadkey()
	s := strconv.FormatUint(k, 4)
	if len(s) < z {
		s = strings.Repeat("0", z-len(s)) + s
	}
	return s, nil
}

// ParseQuadKey is the inverse of QuadKey.
func ParseQuadKey(q string) (x, y, z int, err error) {
	if len(q) > MaxZoom {
		return 0, 0, 0, fmt.Errorf("%w: quadkey %q deeper than %d", errs.ErrTileOutOfRange, q, MaxZoom)
	}
	for _, r := range q {
		if r < '0' || r > '3' {
			return 0, 0, 0, fmt.Errorf("invalid quadkey digit %q in %q", r, q)
		}
	}
	if q == "" {
		return 0, 0, 0, nil
	}
	k, err := strconv.ParseUint(q, 4, 64)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("parse quadkey %q: %w", q, err)
	}
	t := maptile.FromQuadkey(k, maptile.Zoom(len(q)))
	return int(t.X), int(t.Y), int(t.Z), nil
}
