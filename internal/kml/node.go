// Package kml builds and serializes the KML node trees served to Google
// Earth.
package kml

import (
	"encoding/xml"
	"strconv"

	"github.com/mohammed-shakir/superoverlay/internal/lod"
	"github.com/mohammed-shakir/superoverlay/internal/tilegrid"
)

// Node is one KML element. Name, when set, is written as the first <name>
// child; Text is character data written before Children.
type Node struct {
	Tag      string
	Name     string
	Attrs    []xml.Attr
	Text     string
	Children []*Node
}

func Elem(tag string, children ...*Node) *Node {
	return &Node{Tag: tag, Children: children}
}

func Named(tag, name string, children ...*Node) *Node {
	return &Node{Tag: tag, Name: name, Children: children}
}

func Leaf(tag, text string) *Node {
	return &Node{Tag: tag, Text: text}
}

func Int(tag string, v int) *Node {
	return Leaf(tag, strconv.Itoa(v))
}

func Float(tag string, v float64) *Node {
	return Leaf(tag, strconv.FormatFloat(v, 'f', -1, 64))
}

// Add appends children and returns n.
func (n *Node) Add(children ...*Node) *Node {
	n.Children = append(n.Children, children...)
	return n
}

// Find returns the direct children with the given tag.
func (n *Node) Find(tag string) []*Node {
	var out []*Node
	for _, c := range n.Children {
		if c.Tag == tag {
			out = append(out, c)
		}
	}
	return out
}

const (
	TagDocument      = "Document"
	TagFolder        = "Folder"
	TagRegion        = "Region"
	TagLod           = "Lod"
	TagGroundOverlay = "GroundOverlay"
	TagNetworkLink   = "NetworkLink"
	TagPlacemark     = "Placemark"
)

func Document(name string, children ...*Node) *Node {
	return Named(TagDocument, name, children...)
}

func box(b tilegrid.BBox) []*Node {
	return []*Node{
		Float("north", b.North),
		Float("south", b.South),
		Float("east", b.East),
		Float("west", b.West),
	}
}

func Folder(name string, children ...*Node) *Node {
	return Named(TagFolder, name, children...)
}

// LatLonAltBox is the ground-clamped region box.
func LatLonAltBox(b tilegrid.BBox) *Node {
	return Elem("LatLonAltBox", append(box(b),
		Int("minAltitude", 0),
		Int("maxAltitude", 0),
	)...)
}

// LatLonBox places a GroundOverlay image.
func LatLonBox(b tilegrid.BBox) *Node {
	return Elem("LatLonBox", box(b)...)
}

func Lod(p lod.Profile) *Node {
	return Elem(TagLod,
		Int("minLodPixels", p.MinLodPixels),
		Int("maxLodPixels", p.MaxLodPixels),
		Int("minFadeExtent", p.MinFadeExtent),
		Int("maxFadeExtent", p.MaxFadeExtent),
	)
}

// Region wraps b, and the Lod when p is not nil.
func Region(b tilegrid.BBox, p *lod.Profile) *Node {
	r := Elem(TagRegion, LatLonAltBox(b))
	if p != nil {
		r.Add(Lod(*p))
	}
	return r
}

// Link is a NetworkLink target refreshed when its region becomes active.
func Link(href string) *Node {
	return Elem("Link",
		Leaf("href", href),
		Leaf("viewRefreshMode", "onRegion"),
	)
}

// RegionOutline draws b as a tessellated green polygon.
func RegionOutline(name string, b tilegrid.BBox) *Node {
	return Named(TagPlacemark, name,
		Leaf("styleUrl", "#linegreen"),
		Elem("Polygon",
			Int("tessellate", 1),
			Elem("outerBoundaryIs",
				Elem("LinearRing", Leaf("coordinates", Coordinates(b))),
			),
		),
	)
}

// Coordinates renders the closed ring of b as "lon,lat" tuples.
func Coordinates(b tilegrid.BBox) string {
	var buf []byte
	for i, p := range b.Ring() {
		if i > 0 {
			buf = append(buf, ' ')
		}
		buf = strconv.AppendFloat(buf, p[0], 'f', -1, 64)
		buf = append(buf, ',')
		buf = strconv.AppendFloat(buf, p[1], 'f', -1, 64)
	}
	return string(buf)
}
