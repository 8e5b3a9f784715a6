// Package mapsource loads customMapSource descriptors and turns them into
// validated, immutable Source values.
package mapsource

import (
	"strings"

	"github.com/mohammed-shakir/superoverlay/internal/lod"
	"github.com/mohammed-shakir/superoverlay/internal/tilegrid"
)

// Source is one overlay as the pyramid engine sees it. Values are built once
// by Decode and never mutated afterwards.
type Source struct {
	// ID is the descriptor path without extension, e.g. "-Base/osm". It is
	// also the address of the source's root document.
	ID     string
	Folder string
	Name   string
	URL    string
	// ServerParts are the alias hosts substituted for {$serverpart}.
	ServerParts []string
	Projection  tilegrid.SRID
	MinZoom     int
	MaxZoom     int
	// Region is the declared extent in degrees, nil when absent. West > East
	// for an extent crossing the antimeridian.
	Region          *tilegrid.BBox
	Overlay         bool
	BackgroundColor string
}

// Transparency is the alpha byte (two hex digits) applied to GroundOverlay
// colors: the tail of a 9-char background color, "FF" otherwise.
func (s *Source) Transparency() string {
	if len(s.BackgroundColor) == 9 {
		return s.BackgroundColor[7:]
	}
	return "FF"
}

func (s *Source) LodClass() lod.Class {
	if s.Overlay {
		return lod.Transparent
	}
	return lod.Opaque
}

// RegionDisplay returns the extent in its non-wrapping display form.
func (s *Source) RegionDisplay() (tilegrid.BBox, bool) {
	if s.Region == nil {
		return tilegrid.BBox{}, false
	}
	return s.Region.Display(), true
}

// LodBounds returns the zoom limits for LOD selection; ok is false when the
// projection is not registered.
func (s *Source) LodBounds() (lod.Bounds, bool) {
	ref, ok := tilegrid.Lookup(s.Projection)
	if !ok {
		return lod.Bounds{}, false
	}
	return lod.Bounds{MinZoom: s.MinZoom, MaxZoom: s.MaxZoom, FloorZoom: ref.FloorZoom}, true
}

// FolderFromID derives the catalog folder from the first path segment. A
// leading "-" (used to sort folders first on disk) is dropped.
func FolderFromID(id string) string {
	first, _, _ := strings.Cut(strings.TrimPrefix(id, "/"), "/")
	return strings.TrimPrefix(first, "-")
}
