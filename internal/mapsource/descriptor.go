package mapsource

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"github.com/mohammed-shakir/superoverlay/internal/errs"
	"github.com/mohammed-shakir/superoverlay/internal/tilegrid"
)

// RootElement is the document element of a map source descriptor.
const RootElement = "customMapSource"

// ErrNotMapSource marks an XML document with another root element. Stores
// skip such files instead of failing.
var ErrNotMapSource = errors.New("not a " + RootElement + " document")

type descriptor struct {
	XMLName         xml.Name     `xml:"customMapSource"`
	Name            string       `xml:"name" validate:"required"`
	Folder          string       `xml:"folder"`
	URL             string       `xml:"url" validate:"required"`
	ServerParts     string       `xml:"serverParts"`
	Projection      int          `xml:"projection" default:"4326" validate:"gt=0"`
	MinZoom         int          `xml:"minZoom" validate:"gte=0,lte=30"`
	MaxZoom         int          `xml:"maxZoom" default:"18" validate:"gte=0,lte=30,gtefield=MinZoom"`
	Overlay         int          `xml:"overlay" validate:"oneof=0 1"`
	BackgroundColor string       `xml:"backgroundColor" validate:"omitempty,hexcolor"`
	Region          *regionField `xml:"region"`
}

type regionField struct {
	North float64 `xml:"north" validate:"gte=-90,lte=90,gtfield=South"`
	South float64 `xml:"south" validate:"gte=-90,lte=90"`
	East  float64 `xml:"east" validate:"gte=-180,lte=180"`
	West  float64 `xml:"west" validate:"gte=-180,lte=180"`
}

var validate = validator.New()

// Decode reads one descriptor. id is the store path of the descriptor and
// seeds the folder when the document does not name one. Malformed or invalid
// descriptors fail with errs.ErrConfiguration.
func Decode(r io.Reader, id string) (*Source, error) {
	var d descriptor
	if err := defaults.Set(&d); err != nil {
		return nil, fmt.Errorf("%w: defaults: %w", errs.ErrConfiguration, err)
	}

	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("%w: %s: empty document", errs.ErrConfiguration, id)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", errs.ErrConfiguration, id, err)
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if se.Name.Local != RootElement {
			return nil, fmt.Errorf("%s: root <%s>: %w", id, se.Name.Local, ErrNotMapSource)
		}
		if err := dec.DecodeElement(&d, &se); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", errs.ErrConfiguration, id, err)
		}
		break
	}

	if err := validate.Struct(&d); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errs.ErrConfiguration, id, err)
	}
	return d.source(id), nil
}

// Parse is Decode over a byte slice.
func Parse(data []byte, id string) (*Source, error) {
	return Decode(bytes.NewReader(data), id)
}

func (d *descriptor) source(id string) *Source {
	s := &Source{
		ID:              id,
		Folder:          strings.TrimSpace(d.Folder),
		Name:            strings.TrimSpace(d.Name),
		URL:             strings.TrimSpace(d.URL),
		ServerParts:     strings.Fields(d.ServerParts),
		Projection:      tilegrid.SRID(d.Projection),
		MinZoom:         d.MinZoom,
		MaxZoom:         d.MaxZoom,
		Overlay:         d.Overlay == 1,
		BackgroundColor: strings.TrimSpace(d.BackgroundColor),
	}
	if s.Folder == "" {
		s.Folder = FolderFromID(id)
	}
	if d.Region != nil {
		s.Region = &tilegrid.BBox{
			North: d.Region.North,
			South: d.Region.South,
			East:  d.Region.East,
			West:  d.Region.West,
		}
	}
	return s
}
