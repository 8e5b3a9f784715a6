// Package pyramid expands a map source into super-overlay documents, one
// quad-tree level per request.
package pyramid

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/mohammed-shakir/superoverlay/internal/errs"
	"github.com/mohammed-shakir/superoverlay/internal/kml"
	"github.com/mohammed-shakir/superoverlay/internal/lod"
	"github.com/mohammed-shakir/superoverlay/internal/mapsource"
	"github.com/mohammed-shakir/superoverlay/internal/region"
	"github.com/mohammed-shakir/superoverlay/internal/tilegrid"
	"github.com/mohammed-shakir/superoverlay/internal/tileurl"
)

// DebugSuffix is appended to every href of a debug document.
const DebugSuffix = "debug"

// GroundOverlays are clamped to the sea floor so they drape over bathymetry
// as well as terrain.
const altitudeMode = "relativeToSeaFloor"

type Options struct {
	// BaseURL is the absolute address of the source root, ending in "/".
	BaseURL string
	// Ext is the container extension of follow-up documents.
	Ext   string
	Debug bool
	// DisplayRegion outlines the declared extent in root documents.
	DisplayRegion bool
}

// Result is a built document plus counters for diagnostics.
type Result struct {
	Doc      *kml.Node
	Links    int
	Rejected int
}

// Expander builds the documents of one source for one request.
type Expander struct {
	src  *mapsource.Source
	clip region.Clipper
	urls *tileurl.Resolver
	opts Options
}

func New(src *mapsource.Source, clip region.Clipper, urls *tileurl.Resolver, opts Options) *Expander {
	if clip == nil {
		clip = region.AcceptAll{}
	}
	if opts.Ext == "" {
		opts.Ext = kml.Plain.Ext()
	}
	return &Expander{src: src, clip: clip, urls: urls, opts: opts}
}

// ExpandChildren builds the document of tile (z,x,y): its region, then an
// image for each child the clipper accepts, then a follow-up link for each
// of those children while they are above the source's max zoom.
func (e *Expander) ExpandChildren(z, x, y int) (*Result, error) {
	tile := tilegrid.Tile{Z: z, X: x, Y: y, SRID: e.src.Projection}
	tb, err := tilegrid.Bounds(tile)
	if err != nil {
		return nil, err
	}
	lb, ok := e.src.LodBounds()
	if !ok {
		return nil, fmt.Errorf("%w: EPSG:%d", errs.ErrUnsupportedReference, e.src.Projection)
	}

	res := &Result{Doc: kml.Document(tile.String(), kml.Region(tb, nil))}
	var overlays, links []*kml.Node
	for _, child := range tile.Children() {
		cb, err := tilegrid.Bounds(child)
		if err != nil {
			return nil, err
		}
		if !e.clip.Accepts(cb) {
			res.Rejected++
			continue
		}
		g, err := e.groundOverlay(child, cb, lb)
		if err != nil {
			return nil, err
		}
		overlays = append(overlays, g)
		if child.Z < e.src.MaxZoom {
			links = append(links, e.networkLink(child, cb))
		}
	}
	res.Doc.Add(overlays...)
	res.Doc.Add(links...)
	res.Links = len(links)
	return res, nil
}

// BuildRoot builds the entry document of the source: the covered region and
// the first links into the pyramid.
func (e *Expander) BuildRoot() (*Result, error) {
	ref, ok := tilegrid.Lookup(e.src.Projection)
	if !ok {
		return nil, fmt.Errorf("%w: EPSG:%d", errs.ErrUnknownTileMatrix, e.src.Projection)
	}

	box, hasRegion := e.src.RegionDisplay()
	if !hasRegion {
		box = tilegrid.World
	}
	res := &Result{Doc: kml.Document(e.src.Name, kml.Region(box, nil))}
	if hasRegion && e.opts.DisplayRegion {
		res.Doc.Add(kml.RegionOutline("region", box))
	}

	tiles, err := rootTiles(ref, box, hasRegion)
	if err != nil {
		return nil, err
	}
	for _, t := range tiles {
		b, err := tilegrid.Bounds(t)
		if err != nil {
			return nil, err
		}
		res.Doc.Add(e.networkLink(t, b))
		res.Links++
	}
	return res, nil
}

// rootTiles lists the first links of a source. The default reference covers
// the box one level above its floor zoom; other references enumerate their
// floor, restricted to the box when one was declared. A box wrapping the
// antimeridian is covered half by half, eastern half first.
func rootTiles(ref tilegrid.Reference, box tilegrid.BBox, hasRegion bool) ([]tilegrid.Tile, error) {
	seen := map[tilegrid.Tile]bool{}
	var out []tilegrid.Tile
	add := func(r tilegrid.Range) {
		for _, t := range r.Tiles(ref.SRID) {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}

	if ref.FastPath() {
		z := max(ref.FloorZoom-1, 0)
		for _, part := range box.Split() {
			r, err := tilegrid.CoveringRange(part, z, ref.SRID)
			if err != nil {
				return nil, err
			}
			add(r)
		}
		return out, nil
	}

	floor := ref.FloorRange(ref.FloorZoom)
	if !hasRegion {
		add(floor)
		return out, nil
	}
	for _, part := range box.Split() {
		r, err := tilegrid.CoveringRange(part, floor.Z, ref.SRID)
		if err != nil {
			return nil, err
		}
		add(floor.Intersect(r))
	}
	return out, nil
}

func (e *Expander) groundOverlay(t tilegrid.Tile, b tilegrid.BBox, lb lod.Bounds) (*kml.Node, error) {
	href, err := e.urls.Resolve(e.src, t.Z, t.X, t.Y)
	if err != nil {
		return nil, fmt.Errorf("tile %s: %w", t, err)
	}
	p := lod.ForGroundOverlay(t.Z, lb, e.src.LodClass())
	return kml.Named(kml.TagGroundOverlay, "go-"+t.String(),
		kml.Region(b, &p),
		// aabbggrr: alpha from the background color, white tint
		kml.Leaf("color", e.src.Transparency()+"ffffff"),
		kml.Int("drawOrder", t.Z),
		kml.Leaf("altitudeMode", altitudeMode),
		kml.Elem("Icon", kml.Leaf("href", href)),
		kml.LatLonBox(b),
	), nil
}

func (e *Expander) networkLink(t tilegrid.Tile, b tilegrid.BBox) *kml.Node {
	p := lod.ForNetworkLink()
	href := e.opts.BaseURL + t.String() + e.opts.Ext
	if e.opts.Debug {
		href += "/" + DebugSuffix
	}
	return kml.Named(kml.TagNetworkLink, "nl-"+t.String(),
		kml.Int("open", 1),
		kml.Link(href),
		kml.Region(b, &p),
	)
}

type CatalogOptions struct {
	// BaseURL is the absolute address of the catalog, ending in "/".
	BaseURL string
	Debug   bool
}

// BuildCatalog lists sources as hidden NetworkLinks to their roots, one
// Folder per run of sources sharing a folder name.
func BuildCatalog(name string, sources []*mapsource.Source, opts CatalogOptions) *Result {
	res := &Result{Doc: kml.Document(name)}
	var cur *kml.Node
	for _, src := range sources {
		if cur == nil || cur.Name != src.Folder {
			cur = kml.Folder(src.Folder, kml.Leaf("styleUrl", "#folderCheckOffOnly"))
			res.Doc.Add(cur)
		}
		href := opts.BaseURL + EscapeID(src.ID) + "/"
		if opts.Debug {
			href += DebugSuffix
		}
		cur.Add(kml.Named(kml.TagNetworkLink, src.Name,
			kml.Int("visibility", 0),
			kml.Int("open", 0),
			kml.Link(href),
		))
		res.Links++
	}
	return res
}

// EscapeID escapes each path segment of a source ID for use in a URL.
func EscapeID(id string) string {
	segs := strings.Split(id, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}
