package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammed-shakir/superoverlay/internal/core/config"
	"github.com/mohammed-shakir/superoverlay/internal/core/health"
	"github.com/mohammed-shakir/superoverlay/internal/core/router"
)

type echoOverlay struct{}

func (echoOverlay) ServeOverlay(_ context.Context, w http.ResponseWriter, _ *http.Request, a router.Address) {
	_, _ = io.WriteString(w, string(a.Kind)+":"+a.Source)
}

func testRoutes(base string) http.Handler {
	cfg := config.Config{URLBase: base}
	return Routes(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), Deps{
		Overlay: echoOverlay{},
		Placeholder: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "png")
		}),
		Ready: health.Options{Checks: map[string]health.Checker{
			"store": health.CheckFunc(func(context.Context) error { return nil }),
		}},
		Version: "test",
	})
}

func TestRoutes(t *testing.T) {
	h := testRoutes("/maps/")
	tests := []struct {
		path string
		code int
		body string
	}{
		{"/healthz", http.StatusOK, `"version":"test"`},
		{"/maps/", http.StatusOK, "catalog:"},
		{"/maps/osm/", http.StatusOK, "root:osm"},
		{"/maps/marine/seamark/3-2-5.kml", http.StatusOK, "children:marine/seamark"},
		{"/maps/zoom.png", http.StatusOK, "png"},
		{"/maps", http.StatusMovedPermanently, ""},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rr.Code != tt.code {
			t.Errorf("%s: status=%d want %d", tt.path, rr.Code, tt.code)
			continue
		}
		if tt.body != "" && !strings.Contains(rr.Body.String(), tt.body) {
			t.Errorf("%s: body=%q want %q in it", tt.path, rr.Body.String(), tt.body)
		}
	}
}

func TestRoutes_RequestIDAndReady(t *testing.T) {
	h := testRoutes("/")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID")
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/osm/", nil))
	if rr.Code != http.StatusNoContent || rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("preflight status=%d headers=%v", rr.Code, rr.Header())
	}
}
