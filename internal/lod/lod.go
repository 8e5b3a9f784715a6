// Package lod picks the Lod thresholds attached to super-overlay nodes.
package lod

// Profile holds pixel thresholds; -1 disables a bound.
type Profile struct {
	MinLodPixels  int `json:"minLodPixels"`
	MaxLodPixels  int `json:"maxLodPixels"`
	MinFadeExtent int `json:"minFadeExtent"`
	MaxFadeExtent int `json:"maxFadeExtent"`
}

// Disabled is the sentinel for an unbounded threshold.
const Disabled = -1

type Class string

const (
	Transparent Class = "transparent"
	Opaque      Class = "opaque"
)

var (
	transparent = Profile{MinLodPixels: 128, MaxLodPixels: 640, MinFadeExtent: -1, MaxFadeExtent: -1}
	opaque      = Profile{MinLodPixels: 128, MaxLodPixels: 1024, MinFadeExtent: -1, MaxFadeExtent: -1}
	noTile      = Profile{MinLodPixels: 256, MaxLodPixels: 512, MinFadeExtent: -1, MaxFadeExtent: -1}
	networkLink = Profile{MinLodPixels: 176, MaxLodPixels: -1, MinFadeExtent: -1, MaxFadeExtent: -1}
)

// ForClass returns the unmodified profile of a transparency class. Unknown
// classes get the opaque profile.
func ForClass(c Class) Profile {
	if c == Transparent {
		return transparent
	}
	return opaque
}

// Placeholder is used for tiles below the source's minimum zoom.
func Placeholder() Profile { return noTile }

// ForNetworkLink is the single profile used by every NetworkLink region.
func ForNetworkLink() Profile { return networkLink }

// Bounds are the zoom limits a GroundOverlay profile depends on.
type Bounds struct {
	MinZoom int
	MaxZoom int
	// FloorZoom is the lowest usable zoom of the source's reference.
	FloorZoom int
}

// ForGroundOverlay applies the decision table, first match wins:
//
//	z == MaxZoom                  class profile, no MaxLodPixels
//	z == FloorZoom or MinZoom     class profile, no MinLodPixels
//	z <  MinZoom                  placeholder profile
//	otherwise                     class profile
func ForGroundOverlay(z int, b Bounds, c Class) Profile {
	p := ForClass(c)
	switch {
	case z == b.MaxZoom:
		p.MaxLodPixels = Disabled
	case z == b.FloorZoom || z == b.MinZoom:
		p.MinLodPixels = Disabled
	case z < b.MinZoom:
		p = noTile
	}
	return p
}
