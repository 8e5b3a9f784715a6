package tilegrid

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/mohammed-shakir/superoverlay/internal/errs"
)

func lookupValid(t Tile) (Reference, error) {
	ref, ok := Lookup(t.SRID)
	if !ok {
		return Reference{}, fmt.Errorf("%w: EPSG:%d", errs.ErrUnsupportedReference, t.SRID)
	}
	if !ref.Valid(t) {
		return Reference{}, fmt.Errorf("%w: %s in EPSG:%d", errs.ErrTileOutOfRange, t, t.SRID)
	}
	return ref, nil
}

// NativeBounds returns the box of t in the units of its own grid: degrees
// for the default reference, metres for projected grids. The four children
// of a tile partition its native box exactly.
func NativeBounds(t Tile) (BBox, error) {
	ref, err := lookupValid(t)
	if err != nil {
		return BBox{}, err
	}
	return ref.grid.native(t.Z, t.X, t.Y), nil
}

// Bounds returns the geographic box of t in degrees.
func Bounds(t Tile) (BBox, error) {
	ref, err := lookupValid(t)
	if err != nil {
		return BBox{}, err
	}
	return ref.grid.geographic(ref.grid.native(t.Z, t.X, t.Y)), nil
}

// BoundsIn returns the box of t expressed in the target reference. Only
// corner coordinates are reprojected.
func BoundsIn(t Tile, target SRID) (BBox, error) {
	switch {
	case target == t.SRID:
		return NativeBounds(t)
	case target == WGS84:
		return Bounds(t)
	case IsMercator(target):
		geo, err := Bounds(t)
		if err != nil {
			return BBox{}, err
		}
		sw := project.WGS84.ToMercator(orb.Point{geo.West, geo.South})
		ne := project.WGS84.ToMercator(orb.Point{geo.East, geo.North})
		return BBox{North: ne[1], South: sw[1], East: ne[0], West: sw[0]}, nil
	case target == BritishNationalGrid:
		geo, err := Bounds(t)
		if err != nil {
			return BBox{}, err
		}
		pts := boundary(geo, 4)
		for i, p := range pts {
			e, n := osgbForward(p[1], p[0])
			pts[i] = orb.Point{e, n}
		}
		return envelope(pts), nil
	}
	return BBox{}, fmt.Errorf("%w: EPSG:%d", errs.ErrUnsupportedReference, target)
}

// KnownTarget reports whether BoundsIn can express boxes in srid.
func KnownTarget(srid SRID) bool {
	_, registered := Lookup(srid)
	return registered || IsMercator(srid)
}

// CoveringRange returns the smallest tile block of the srid grid at zoom z
// whose tiles cover box (degrees). A box wrapping the antimeridian yields
// the union of its halves, which spans the full width; split it first with
// BBox.Split to avoid that.
func CoveringRange(box BBox, z int, srid SRID) (Range, error) {
	ref, ok := Lookup(srid)
	if !ok {
		return Range{}, fmt.Errorf("%w: EPSG:%d", errs.ErrUnsupportedReference, srid)
	}
	if z < 0 || z > MaxZoom {
		return Range{}, fmt.Errorf("%w: zoom %d", errs.ErrTileOutOfRange, z)
	}

	var pts []orb.Point
	for _, part := range box.Split() {
		pts = append(pts, boundary(part, 8)...)
	}

	r := Range{Z: z, MinX: -1}
	for _, p := range pts {
		x, y := ref.grid.locate(p, z)
		if r.MinX < 0 {
			r.MinX, r.MaxX, r.MinY, r.MaxY = x, x, y, y
			continue
		}
		r.MinX = min(r.MinX, x)
		r.MaxX = max(r.MaxX, x)
		r.MinY = min(r.MinY, y)
		r.MaxY = max(r.MaxY, y)
	}
	return r, nil
}

// FloorRange returns the registry floor of ref scaled to zoom z (z must not
// be above the floor zoom).
func (r Reference) FloorRange(z int) Range {
	if r.Floor == nil {
		cols, rows := r.grid.dims(z)
		return Range{Z: z, MinX: 0, MaxX: cols - 1, MinY: 0, MaxY: rows - 1}
	}
	d := z - r.Floor.Z
	if d <= 0 {
		return *r.Floor
	}
	return Range{
		Z:    z,
		MinX: r.Floor.MinX << d,
		MaxX: (r.Floor.MaxX+1)<<d - 1,
		MinY: r.Floor.MinY << d,
		MaxY: (r.Floor.MaxY+1)<<d - 1,
	}
}
