// Package region prunes tiles that fall outside a map source's declared
// extent.
package region

import (
	"log/slog"
	"strings"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/superoverlay/internal/tilegrid"
)

// Clipper decides whether a tile box is worth emitting.
type Clipper interface {
	Accepts(box tilegrid.BBox) bool
}

// AcceptAll is the fallback when polygon clipping is unavailable or turned
// off. Region filtering only saves nodes, so accepting everything is safe.
type AcceptAll struct{}

func (AcceptAll) Accepts(tilegrid.BBox) bool { return true }

// PolygonClipper tests tile rings against one ring, or two for an extent
// crossing the antimeridian (east side unwrapped past 180, west side shifted
// below -180).
type PolygonClipper struct {
	rings []orb.Ring
}

func NewPolygonClipper(extent *tilegrid.BBox) *PolygonClipper {
	if extent == nil {
		return &PolygonClipper{}
	}
	if extent.CrossesAntimeridian() {
		return &PolygonClipper{rings: []orb.Ring{
			extent.Unwrapped().Ring(),
			extent.Display().Ring(),
		}}
	}
	return &PolygonClipper{rings: []orb.Ring{extent.Ring()}}
}

func (c *PolygonClipper) Rings() []orb.Ring {
	return c.rings
}

// Accepts reports whether box touches any stored ring. No extent accepts all.
func (c *PolygonClipper) Accepts(box tilegrid.BBox) bool {
	if len(c.rings) == 0 {
		return true
	}
	tr := box.Ring()
	for _, r := range c.rings {
		if Intersects(tr, r) {
			return true
		}
	}
	return false
}

// Intersects reports whether two rings share at least one point; touching
// boundaries count. Every ring here is an axis-aligned lat/lon box, so the
// bounds decide it.
func Intersects(a, b orb.Ring) bool {
	return a.Bound().Intersects(b.Bound())
}

const (
	ModePolygon = "polygon"
	ModeOff     = "off"
)

// Factory builds the clipper for one request's extent.
type Factory func(extent *tilegrid.BBox) Clipper

// NewFactory picks the clipper implementation once at startup. Unknown modes
// degrade to AcceptAll instead of failing.
func NewFactory(mode string, logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case ModePolygon, "":
		return func(extent *tilegrid.BBox) Clipper { return NewPolygonClipper(extent) }
	case ModeOff:
		logger.Info("region clipping disabled")
	default:
		logger.Warn("unknown region clip mode; accepting every tile", "mode", mode)
	}
	return func(*tilegrid.BBox) Clipper { return AcceptAll{} }
}
