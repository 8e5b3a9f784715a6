package kml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/mohammed-shakir/superoverlay/internal/errs"
)

const (
	NamespaceKML  = "http://www.opengis.net/kml/2.2"
	NamespaceAtom = "http://www.w3.org/2005/Atom"
	NamespaceGX   = "http://www.google.com/kml/ext/2.2"
)

// MarshalXML writes n with its name first, then text, then children.
func (n *Node) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if n.Tag == "" {
		return errors.New("node without tag")
	}
	start = xml.StartElement{Name: xml.Name{Local: n.Tag}, Attr: n.Attrs}
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if n.Name != "" {
		if err := e.EncodeElement(n.Name, xml.StartElement{Name: xml.Name{Local: "name"}}); err != nil {
			return err
		}
	}
	if n.Text != "" {
		if err := e.EncodeToken(xml.CharData(n.Text)); err != nil {
			return err
		}
	}
	for _, c := range n.Children {
		if c == nil {
			continue
		}
		if err := e.Encode(c); err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

func attr(name, value string) xml.Attr {
	return xml.Attr{Name: xml.Name{Local: name}, Value: value}
}

// Polygon fill is transparent through the color alpha; <fill>0</fill> does
// not follow the longitude curve in Google Earth.
func sharedStyles() []*Node {
	line := func(id, color string) *Node {
		return &Node{Tag: "Style", Attrs: []xml.Attr{attr("id", id)}, Children: []*Node{
			Elem("LineStyle", Leaf("color", color)),
			Elem("PolyStyle", Leaf("color", "00ffffff")),
		}}
	}
	itemIcon := func(state, href string) *Node {
		return Elem("ItemIcon", Leaf("state", state), Leaf("href", href))
	}
	return []*Node{
		line("linered", "ff0000ff"),
		line("linegreen", "ff00ff00"),
		{Tag: "Style", Attrs: []xml.Attr{attr("id", "folderCheckOffOnly")}, Children: []*Node{
			Elem("ListStyle",
				Leaf("listItemType", "checkOffOnly"),
				Leaf("bgColor", "bbfcf7de"),
				itemIcon("open", "http://maps.google.com/mapfiles/kml/shapes/donut.png"),
				itemIcon("closed", "http://maps.google.com/mapfiles/kml/shapes/forbidden.png"),
			),
		}},
	}
}

// Envelope wraps a Document node into the kml root with the shared styles
// placed after the document name.
func Envelope(doc *Node) *Node {
	d := &Node{Tag: TagDocument, Name: doc.Name, Attrs: doc.Attrs}
	d.Children = append(sharedStyles(), doc.Children...)
	return &Node{
		Tag: "kml",
		Attrs: []xml.Attr{
			attr("xmlns", NamespaceKML),
			attr("xmlns:atom", NamespaceAtom),
			attr("xmlns:gx", NamespaceGX),
		},
		Children: []*Node{d},
	}
}

type EncodeOptions struct {
	Indent bool
}

// AssemblyError reports a tree that could not be turned into well-formed
// KML. Raw holds whatever was produced so it can be shown to the descriptor
// author.
type AssemblyError struct {
	Err error
	Raw []byte
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("%v: %v", errs.ErrDocumentAssembly, e.Err)
}

func (e *AssemblyError) Unwrap() []error {
	return []error{errs.ErrDocumentAssembly, e.Err}
}

// Encode serializes doc (a Document node) as a complete KML file and checks
// the result is well-formed.
func Encode(w io.Writer, doc *Node, opts EncodeOptions) error {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	if opts.Indent {
		enc.Indent("", "  ")
	}
	if err := enc.Encode(Envelope(doc)); err != nil {
		return &AssemblyError{Err: err, Raw: buf.Bytes()}
	}
	if err := enc.Close(); err != nil {
		return &AssemblyError{Err: err, Raw: buf.Bytes()}
	}
	buf.WriteByte('\n')

	if err := WellFormed(buf.Bytes()); err != nil {
		return &AssemblyError{Err: err, Raw: buf.Bytes()}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// Marshal is Encode into a fresh slice.
func Marshal(doc *Node, opts EncodeOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WellFormed parses b fully and returns the first syntax error.
func WellFormed(b []byte) error {
	dec := xml.NewDecoder(bytes.NewReader(b))
	for {
		_, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
