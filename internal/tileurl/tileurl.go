// Package tileurl resolves tile URL templates against tile addresses.
//
// Supported placeholder families, checked in this order:
//
//	{$ry}          TMS, with {$z} {$x} and the flipped row
//	{$q}           Bing quadkey
//	{$y}           XYZ, with {$z} {$x}
//	{$bbox}        WMS, box in the SRS/CRS named by the template
//
// {$serverpart} is replaced first by one of the source's alias hosts.
package tileurl

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/mohammed-shakir/superoverlay/internal/errs"
	"github.com/mohammed-shakir/superoverlay/internal/mapsource"
	"github.com/mohammed-shakir/superoverlay/internal/tilegrid"
)

const (
	phServerPart = "{$serverpart}"
	phZ          = "{$z}"
	phX          = "{$x}"
	phY          = "{$y}"
	phRY         = "{$ry}"
	phQ          = "{$q}"
	phBBox       = "{$bbox}"
)

type Family string

const (
	TMS     Family = "tms"
	QuadKey Family = "quadkey"
	XYZ     Family = "xyz"
	WMS     Family = "wms"
)

// Detect returns the placeholder family of a template.
func Detect(template string) (Family, bool) {
	switch {
	case strings.Contains(template, phRY):
		return TMS, true
	case strings.Contains(template, phQ):
		return QuadKey, true
	case strings.Contains(template, phY):
		return XYZ, true
	case strings.Contains(template, phBBox):
		return WMS, true
	}
	return "", false
}

// Resolver is cheap to build per request. With the default ByTile picker it
// holds no mutable state.
type Resolver struct {
	picker      Picker
	placeholder string
}

// New returns a resolver using picker for alias hosts and placeholderURL for
// tiles below a source's minimum zoom.
func New(picker Picker, placeholderURL string) *Resolver {
	if picker == nil {
		picker = ByTile{}
	}
	return &Resolver{picker: picker, placeholder: placeholderURL}
}

func (r *Resolver) Placeholder() string { return r.placeholder }

// Resolve returns the image URL of tile (z,x,y) of src.
func (r *Resolver) Resolve(src *mapsource.Source, z, x, y int) (string, error) {
	if z < src.MinZoom {
		return r.placeholder, nil
	}

	tpl := src.URL
	if strings.Contains(tpl, phServerPart) {
		if len(src.ServerParts) == 0 {
			return "", fmt.Errorf("%w: %s without serverParts", errs.ErrUnresolvableTemplate, phServerPart)
		}
		tpl = strings.ReplaceAll(tpl, phServerPart, r.picker.Pick(src.ServerParts, z, x, y))
	}

	fam, ok := Detect(tpl)
	if !ok {
		return "", fmt.Errorf("%w: %q", errs.ErrUnresolvableTemplate, src.URL)
	}
	switch fam {
	case TMS:
		return strings.NewReplacer(
			phZ, strconv.Itoa(z),
			phX, strconv.Itoa(x),
			phRY, strconv.Itoa(tilegrid.RowFlip(z, y)),
		).Replace(tpl), nil
	case QuadKey:
		q, err := tilegrid.QuadKey(x, y, z)
		if err != nil {
			return "", err
		}
		return strings.ReplaceAll(tpl, phQ, q), nil
	case XYZ:
		return strings.NewReplacer(
			phZ, strconv.Itoa(z),
			phX, strconv.Itoa(x),
			phY, strconv.Itoa(y),
		).Replace(tpl), nil
	}
	return resolveWMS(tpl, src.Projection, z, x, y)
}

// matches both SRS= (WMS 1.1) and CRS= (WMS 1.3); group 1 is "c" for CRS
var wmsReference = regexp.MustCompile(`(?i)(c?)rs=epsg:(\d+)`)

func resolveWMS(tpl string, srid tilegrid.SRID, z, x, y int) (string, error) {
	decoded, err := url.QueryUnescape(tpl)
	if err != nil {
		decoded = tpl
	}
	m := wmsReference.FindStringSubmatch(decoded)
	if m == nil {
		return "", fmt.Errorf("%w: wms template without srs/crs: %q", errs.ErrUnresolvableTemplate, tpl)
	}
	code, err := strconv.Atoi(m[2])
	if err != nil {
		return "", fmt.Errorf("%w: wms reference %q: %w", errs.ErrUnresolvableTemplate, m[2], err)
	}
	target := tilegrid.SRID(code)

	b, err := tilegrid.BoundsIn(tilegrid.Tile{Z: z, X: x, Y: y, SRID: srid}, target)
	if err != nil {
		return "", err
	}

	// WMS 1.3 uses the EPSG axis order, latitude first for 4326
	coords := []float64{b.West, b.South, b.East, b.North}
	if m[1] != "" && target == tilegrid.WGS84 {
		coords = []float64{b.South, b.West, b.North, b.East}
	}
	parts := make([]string, len(coords))
	for i, c := range coords {
		parts[i] = strconv.FormatFloat(c, 'f', -1, 64)
	}
	return strings.ReplaceAll(tpl, phBBox, strings.Join(parts, ",")), nil
}
