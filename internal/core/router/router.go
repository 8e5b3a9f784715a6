package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mohammed-shakir/superoverlay/internal/core/observability"
)

type Kind string

const (
	KindCatalog  Kind = "catalog"
	KindRoot     Kind = "root"
	KindChildren Kind = "children"
)

// debugMarker is the trailing path segment that switches a request to the
// HTML diagnostic rendering.
const debugMarker = "debug"

// Address is a parsed overlay request path.
type Address struct {
	Kind   Kind
	Source string
	Z      int
	X      int
	Y      int
	// Ext is the extension the client asked for (".kml", ".kmz"). The served
	// container is chosen by configuration, not by Ext.
	Ext   string
	Debug bool
}

// Tile returns the z-x-y form used in document and link names.
func (a Address) Tile() string {
	if a.Kind != KindChildren {
		return ""
	}
	return fmt.Sprintf("%d-%d-%d", a.Z, a.X, a.Y)
}

// receives parsed overlay requests and serves them
type OverlayHandler interface {
	ServeOverlay(ctx context.Context, w http.ResponseWriter, r *http.Request, a Address)
}

// HandleOverlay parses the wildcard part of the path and calls the handler.
func HandleOverlay(logger *slog.Logger, h OverlayHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		a, err := ParseAddress(chi.URLParam(r, "*"))
		if err != nil {
			logger.DebugContext(r.Context(), "bad overlay address", "path", r.URL.Path, "err", err)
			http.Error(sw, err.Error(), http.StatusBadRequest)
			observability.ObserveHTTP(r.Method, "/invalid", http.StatusBadRequest, time.Since(start).Seconds())
			return
		}

		h.ServeOverlay(r.Context(), sw, r, a)
		observability.ObserveHTTP(r.Method, "/"+string(a.Kind), sw.code, time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

var tileSegment = regexp.MustCompile(`(?i)^(\d+)-(\d+)-(\d+)(\.km[lz])$`)

// ParseAddress reads a path relative to the service base:
//
//	""                        catalog
//	"debug"                   catalog, debug
//	"marine/seamark/"         root of source marine/seamark
//	"marine/seamark/4-8-5.kml" children of tile 4-8-5
//
// Any of them may end with "/debug".
func ParseAddress(p string) (Address, error) {
	var segs []string
	for s := range strings.SplitSeq(p, "/") {
		if s != "" {
			segs = append(segs, s)
		}
	}

	var a Address
	if n := len(segs); n > 0 && strings.EqualFold(segs[n-1], debugMarker) {
		a.Debug = true
		segs = segs[:n-1]
	}
	if len(segs) == 0 {
		a.Kind = KindCatalog
		return a, nil
	}

	last := segs[len(segs)-1]
	m := tileSegment.FindStringSubmatch(last)
	if m == nil {
		a.Kind = KindRoot
		a.Source = strings.Join(segs, "/")
		return a, nil
	}
	if len(segs) == 1 {
		return Address{}, fmt.Errorf("tile %q has no source", last)
	}

	var err error
	if a.Z, err = strconv.Atoi(m[1]); err != nil {
		return Address{}, fmt.Errorf("zoom: %w", err)
	}
	if a.X, err = strconv.Atoi(m[2]); err != nil {
		return Address{}, fmt.Errorf("column: %w", err)
	}
	if a.Y, err = strconv.Atoi(m[3]); err != nil {
		return Address{}, fmt.Errorf("row: %w", err)
	}
	a.Kind = KindChildren
	a.Ext = strings.ToLower(m[4])
	a.Source = strings.Join(segs[:len(segs)-1], "/")
	return a, nil
}
