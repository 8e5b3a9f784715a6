package kml

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/mohammed-shakir/superoverlay/internal/errs"
)

// Container frames a serialized KML document for transport.
type Container interface {
	Name() string
	Ext() string
	ContentType() string
	Wrap(name string, doc []byte) ([]byte, error)
}

type plainContainer struct{}

func (plainContainer) Name() string        { return "kml" }
func (plainContainer) Ext() string         { return ".kml" }
func (plainContainer) ContentType() string { return "application/vnd.google-earth.kml+xml" }

func (plainContainer) Wrap(_ string, doc []byte) ([]byte, error) { return doc, nil }

type kmzContainer struct{}

func (kmzContainer) Name() string        { return "kmz" }
func (kmzContainer) Ext() string         { return ".kmz" }
func (kmzContainer) ContentType() string { return "application/vnd.google-earth.kmz" }

// Wrap stores doc as <name>.kml, the only entry of the archive.
func (kmzContainer) Wrap(name string, doc []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create(name + ".kml")
	if err != nil {
		return nil, fmt.Errorf("kmz entry: %w", err)
	}
	if _, err := f.Write(doc); err != nil {
		return nil, fmt.Errorf("kmz write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("kmz close: %w", err)
	}
	return buf.Bytes(), nil
}

var containers = map[string]Container{
	"kml": plainContainer{},
	"kmz": kmzContainer{},
}

// Plain is the uncompressed KML container, used for debug output.
var Plain Container = plainContainer{}

// ContainerFor looks up a container by name ("kml" or "kmz", with or without
// a leading dot).
func ContainerFor(name string) (Container, error) {
	key := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "."))
	if c, ok := containers[key]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: unknown output format %q (want one of %s)",
		errs.ErrConfiguration, name, strings.Join(ContainerNames(), ", "))
}

func ContainerNames() []string {
	out := make([]string, 0, len(containers))
	for k := range containers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
