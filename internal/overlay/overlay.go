// Package overlay serves super-overlay documents over HTTP: the catalog of
// all sources, the root of one source and the children of one tile.
package overlay

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/mohammed-shakir/superoverlay/internal/accessevents"
	"github.com/mohammed-shakir/superoverlay/internal/core/config"
	"github.com/mohammed-shakir/superoverlay/internal/core/observability"
	"github.com/mohammed-shakir/superoverlay/internal/core/router"
	"github.com/mohammed-shakir/superoverlay/internal/errs"
	"github.com/mohammed-shakir/superoverlay/internal/kml"
	mylog "github.com/mohammed-shakir/superoverlay/internal/logger"
	"github.com/mohammed-shakir/superoverlay/internal/mapsource"
	"github.com/mohammed-shakir/superoverlay/internal/pyramid"
	"github.com/mohammed-shakir/superoverlay/internal/region"
	"github.com/mohammed-shakir/superoverlay/internal/tileurl"
)

// PlaceholderPath is the placeholder image address relative to the base.
const PlaceholderPath = "zoom.png"

//go:embed assets/zoom.png
var placeholderPNG []byte

// Publisher receives one event per served document.
type Publisher interface {
	Publish(ev accessevents.Event)
}

type Options struct {
	Logger *slog.Logger
	Events Publisher
	// Picker and Clip default to the strategies named in the config.
	Picker tileurl.Picker
	Clip   region.Factory
}

type Handler struct {
	cfg    config.Config
	store  mapsource.Store
	asm    *kml.Assembler
	picker tileurl.Picker
	clip   region.Factory
	events Publisher
	logger *slog.Logger
}

// New fails with errs.ErrConfiguration when the configured output format
// has no container.
func New(cfg config.Config, store mapsource.Store, opts Options) (*Handler, error) {
	asm, err := kml.NewAssembler(cfg.OutputFormat, cfg.IndentKML)
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Picker == nil {
		opts.Picker = tileurl.NewPicker(cfg.AliasStrategy)
	}
	if opts.Clip == nil {
		opts.Clip = region.NewFactory(cfg.RegionClip, opts.Logger)
	}
	return &Handler{
		cfg:    cfg,
		store:  store,
		asm:    asm,
		picker: opts.Picker,
		clip:   opts.Clip,
		events: opts.Events,
		logger: opts.Logger,
	}, nil
}

func (h *Handler) ServeOverlay(ctx context.Context, w http.ResponseWriter, r *http.Request, a router.Address) {
	start := time.Now()
	ctx = mylog.WithComponent(ctx, "overlay")
	ctx = mylog.WithSource(ctx, a.Source)
	ctx = mylog.WithTile(ctx, a.Tile())

	res, err := h.build(ctx, h.baseURL(r), a)
	if err != nil {
		h.fail(ctx, w, a, "", err)
		return
	}
	out, err := h.asm.Assemble(res.Doc, a.Debug)
	if err != nil {
		h.fail(ctx, w, a, res.Doc.Name, err)
		return
	}

	observability.ObserveDocument(string(a.Kind), out.Container.Name())
	observability.AddNetworkLinks(res.Links)
	observability.AddRegionRejected(res.Rejected)
	h.publish(a, res)

	elapsed := strconv.FormatInt(time.Since(start).Milliseconds(), 10)
	links := strconv.Itoa(res.Links)
	h.logger.DebugContext(ctx, "overlay served",
		"kind", string(a.Kind), "links", res.Links, "rejected", res.Rejected, "bytes", len(out.Body))

	if a.Debug {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		lines := []string{"time: " + elapsed, "nbnl: " + links}
		if err := kml.RenderDebug(w, res.Doc.Name, lines, out.Body); err != nil {
			h.logger.ErrorContext(ctx, "debug render failed", "err", err)
		}
		return
	}

	hdr := w.Header()
	disposition := mime.FormatMediaType("inline", map[string]string{"filename": out.Filename})
	if disposition == "" {
		disposition = "inline"
	}
	hdr.Set("Content-Disposition", disposition)
	hdr.Set("Content-Type", out.ContentType)
	hdr.Set("X-Debug-Time", elapsed)
	hdr.Set("X-Debug-Nbnl", links)
	etag := fmt.Sprintf(`"%016x"`, xxhash.Sum64(out.Body))
	hdr.Set("ETag", etag)
	if etagMatch(r.Header.Get("If-None-Match"), etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	hdr.Set("Content-Length", strconv.Itoa(len(out.Body)))
	_, _ = w.Write(out.Body)
}

func (h *Handler) build(ctx context.Context, base string, a router.Address) (*pyramid.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, h.storeTimeout())
	defer cancel()

	if a.Kind == router.KindCatalog {
		sources, err := h.store.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("list sources: %w", err)
		}
		return pyramid.BuildCatalog(h.cfg.CatalogName, sources, pyramid.CatalogOptions{
			BaseURL: base,
			Debug:   a.Debug,
		}), nil
	}

	src, err := h.store.Get(ctx, a.Source)
	if err != nil {
		return nil, err
	}
	exp := pyramid.New(src, h.clip(src.Region), tileurl.New(h.picker, base+PlaceholderPath), pyramid.Options{
		BaseURL:       base + pyramid.EscapeID(src.ID) + "/",
		Ext:           h.asm.Ext(a.Debug),
		Debug:         a.Debug,
		DisplayRegion: h.cfg.DisplayRegion,
	})
	if a.Kind == router.KindRoot {
		return exp.BuildRoot()
	}
	return exp.ExpandChildren(a.Z, a.X, a.Y)
}

func (h *Handler) storeTimeout() time.Duration {
	if h.cfg.StoreOpTimeout > 0 {
		return h.cfg.StoreOpTimeout
	}
	return 2 * time.Second
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, a router.Address, title string, err error) {
	switch {
	case errors.Is(err, errs.ErrSourceNotFound):
		h.logger.DebugContext(ctx, "unknown layer", "err", err)
		http.Error(w, fmt.Sprintf("Layer '%s' doesn't exist", a.Source), http.StatusNotFound)
	case errors.Is(err, errs.ErrTileOutOfRange):
		h.logger.DebugContext(ctx, "tile out of range", "err", err)
		http.Error(w, fmt.Sprintf("Tile '%s' doesn't exist in layer '%s'", a.Tile(), a.Source), http.StatusNotFound)
	case errors.Is(err, errs.ErrDocumentAssembly):
		h.logger.ErrorContext(ctx, "document assembly failed", "err", err)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_ = kml.RenderAssemblyError(w, title, err)
	default:
		h.logger.ErrorContext(ctx, "overlay build failed", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handler) publish(a router.Address, res *pyramid.Result) {
	if h.events == nil {
		return
	}
	ev := accessevents.Event{Source: a.Source, Kind: string(a.Kind), Links: res.Links}
	if a.Kind == router.KindChildren {
		ev = ev.Tile(a.Z, a.X, a.Y)
	}
	h.events.Publish(ev)
}

// baseURL is the absolute address of the service root, ending in "/".
func (h *Handler) baseURL(r *http.Request) string {
	if h.cfg.PublicURL != "" {
		return h.cfg.PublicURL + h.cfg.URLBase
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(p, ",")[0]))
	}
	return scheme + "://" + r.Host + h.cfg.URLBase
}

func etagMatch(header, etag string) bool {
	if header == "" {
		return false
	}
	for c := range strings.SplitSeq(header, ",") {
		c = strings.TrimPrefix(strings.TrimSpace(c), "W/")
		if c == "*" || c == etag {
			return true
		}
	}
	return false
}

// Placeholder serves the image shown for tiles below a source's min zoom.
func Placeholder() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		w.Header().Set("Content-Length", strconv.Itoa(len(placeholderPNG)))
		_, _ = w.Write(placeholderPNG)
	}
}
