package tileurl

import (
	"errors"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mohammed-shakir/superoverlay/internal/errs"
	"github.com/mohammed-shakir/superoverlay/internal/mapsource"
	"github.com/mohammed-shakir/superoverlay/internal/tilegrid"
)

const placeholder = "http://overlay.test/zoom.png"

func source(tpl string) *mapsource.Source {
	return &mapsource.Source{
		ID:         "test",
		Name:       "test",
		URL:        tpl,
		Projection: tilegrid.WGS84,
		MinZoom:    0,
		MaxZoom:    18,
	}
}

func resolve(t *testing.T, r *Resolver, src *mapsource.Source, z, x, y int) string {
	t.Helper()
	got, err := r.Resolve(src, z, x, y)
	if err != nil {
		t.Fatalf("Resolve(%q, %d, %d, %d): %v", src.URL, z, x, y, err)
	}
	return got
}

func host(u string) string {
	return strings.TrimPrefix(strings.SplitN(u, ".", 2)[0], "https://")
}

func TestResolve_Families(t *testing.T) {
	r := New(nil, placeholder)
	tests := []struct {
		name string
		tpl  string
		want string
	}{
		// {$ry} is RowFlip(z, y) = 2^z-1-y, so row 1 at zoom 4 is 14
		{"tms", "http://host/{$z}/{$x}/{$ry}.png", "http://host/4/2/14.png"},
		{"xyz", "http://host/{$z}/{$x}/{$y}.png", "http://host/4/2/1.png"},
		{"quadkey", "http://host/tiles/{$q}.jpeg?g=1", "http://host/tiles/0012.jpeg?g=1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolve(t, r, source(tt.tpl), 4, 2, 1); got != tt.want {
				t.Fatalf("got %q want %q", got, tt.want)
			}
		})
	}
}

func TestResolve_FamilyPrecedence(t *testing.T) {
	// {$ry} wins over {$y}; the unused placeholder stays literal
	got := resolve(t, New(nil, placeholder), source("http://h/{$z}/{$x}/{$ry}?y={$y}"), 4, 2, 1)
	if want := "http://h/4/2/14?y={$y}"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestResolve_BelowMinZoomIsPlaceholder(t *testing.T) {
	src := source("http://host/{$z}/{$x}/{$y}.png")
	src.MinZoom = 6
	if got := resolve(t, New(nil, placeholder), src, 5, 0, 0); got != placeholder {
		t.Fatalf("got %q want placeholder", got)
	}

	// even a broken template is never looked at below minZoom
	src.URL = "http://host/static.png"
	if got := resolve(t, New(nil, placeholder), src, 2, 0, 0); got != placeholder {
		t.Fatalf("got %q want placeholder", got)
	}
}

func TestResolve_Unresolvable(t *testing.T) {
	r := New(nil, placeholder)
	for _, tpl := range []string{
		"http://host/static.png",
		"http://{$serverpart}.host/{$z}/{$x}/{$y}",
		"http://host/wms?BBOX={$bbox}",
	} {
		if _, err := r.Resolve(source(tpl), 4, 2, 1); !errors.Is(err, errs.ErrUnresolvableTemplate) {
			t.Errorf("%q: got %v want ErrUnresolvableTemplate", tpl, err)
		}
	}
}

func TestResolve_QuadKeyOutOfGrid(t *testing.T) {
	_, err := New(nil, placeholder).Resolve(source("{$q}"), 3, 8, 0)
	if !errors.Is(err, errs.ErrTileOutOfRange) {
		t.Fatalf("got %v want ErrTileOutOfRange", err)
	}
}

func parseBBox(t *testing.T, u, key string) []float64 {
	t.Helper()
	i := strings.Index(u, key)
	if i < 0 {
		t.Fatalf("%q not in %q", key, u)
	}
	raw := u[i+len(key):]
	if j := strings.IndexByte(raw, '&'); j >= 0 {
		raw = raw[:j]
	}
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		t.Fatalf("bbox %q: want 4 values", raw)
	}
	out := make([]float64, 4)
	for i, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			t.Fatalf("bbox %q: %v", raw, err)
		}
		out[i] = f
	}
	return out
}

func near(t *testing.T, got, want []float64, tol ...float64) {
	t.Helper()
	for i := range want {
		if math.Abs(got[i]-want[i]) > tol[i] {
			t.Fatalf("bbox = %v want %v (±%v)", got, want, tol)
		}
	}
}

func TestResolve_WMSMercator(t *testing.T) {
	r := New(nil, placeholder)
	for _, tpl := range []string{
		"http://host/wms?SERVICE=WMS&SRS=EPSG:3857&BBOX={$bbox}&WIDTH=256",
		"http://host/wms?service=wms&srs=epsg%3A900913&bbox={$bbox}",
	} {
		got := resolve(t, r, source(tpl), 1, 1, 0)
		b := parseBBox(t, strings.ToUpper(got), "BBOX=")
		near(t, b, []float64{0, 0, 20037508.342789244, 20037508.342789244}, 1e-6, 1e-6, 1e-3, 1)
	}
}

func TestResolve_WMSAxisOrder(t *testing.T) {
	r := New(nil, placeholder)

	// west,south,east,north
	got := resolve(t, r, source("http://h/wms?VERSION=1.1.1&SRS=EPSG:4326&BBOX={$bbox}"), 1, 1, 0)
	near(t, parseBBox(t, got, "BBOX="), []float64{0, 0, 180, 85.0511}, 1e-9, 1e-9, 1e-9, 1e-4)

	// south,west,north,east
	got = resolve(t, r, source("http://h/wms?VERSION=1.3.0&CRS=EPSG:4326&BBOX={$bbox}"), 1, 1, 0)
	near(t, parseBBox(t, got, "BBOX="), []float64{0, 0, 85.0511, 180}, 1e-9, 1e-9, 1e-4, 1e-9)
}

func TestResolve_WMSBritishNationalGrid(t *testing.T) {
	src := source("https://api.example.uk/wms?CRS=EPSG:27700&BBOX={$bbox}")
	src.Projection = tilegrid.BritishNationalGrid
	got := resolve(t, New(nil, placeholder), src, 0, 1, 0)
	want := []float64{-8999, 1146880, 220377, 1376256}
	if diff := cmp.Diff(want, parseBBox(t, got, "BBOX=")); diff != "" {
		t.Fatalf("bbox mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_WMSUnsupportedReference(t *testing.T) {
	_, err := New(nil, placeholder).Resolve(source("http://h/wms?SRS=EPSG:2154&BBOX={$bbox}"), 4, 2, 1)
	if !errors.Is(err, errs.ErrUnsupportedReference) {
		t.Fatalf("got %v want ErrUnsupportedReference", err)
	}
}

func TestResolve_ServerPartByTileIsStable(t *testing.T) {
	src := source("https://{$serverpart}.tile.test/{$z}/{$x}/{$y}.png")
	src.ServerParts = []string{"a", "b", "c"}
	r := New(nil, placeholder)

	first := resolve(t, r, src, 5, 16, 10)
	for range 5 {
		if got := resolve(t, r, src, 5, 16, 10); got != first {
			t.Fatalf("same tile resolved to %q then %q", first, got)
		}
	}
	// (16+10)%3 = 2
	if want := "https://c.tile.test/5/16/10.png"; first != want {
		t.Fatalf("got %q want %q", first, want)
	}

	var hosts []string
	for x := range 3 {
		hosts = append(hosts, host(resolve(t, r, src, 5, x, 0)))
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, hosts); diff != "" {
		t.Fatalf("neighbouring columns should spread over aliases (-want +got):\n%s", diff)
	}
	if src.URL != "https://{$serverpart}.tile.test/{$z}/{$x}/{$y}.png" {
		t.Fatalf("source mutated: %q", src.URL)
	}
}

func TestResolve_ServerPartRoundRobin(t *testing.T) {
	src := source("https://{$serverpart}.tile.test/{$z}/{$x}/{$y}.png")
	src.ServerParts = []string{"a", "b", "c"}
	r := New(&RoundRobin{}, placeholder)

	var hosts []string
	for range 4 {
		hosts = append(hosts, host(resolve(t, r, src, 3, 1, 1)))
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "a"}, hosts); diff != "" {
		t.Fatalf("hosts (-want +got):\n%s", diff)
	}
}

func TestResolve_ServerPartRandomMembership(t *testing.T) {
	src := source("https://{$serverpart}.tile.test/{$z}/{$x}/{$y}.png")
	src.ServerParts = []string{"a", "b", "c"}
	r := New(NewPicker(StrategyRandom), placeholder)
	for range 50 {
		if h := host(resolve(t, r, src, 3, 1, 1)); !slices.Contains(src.ServerParts, h) {
			t.Fatalf("host %q not an alias", h)
		}
	}
}

func TestRoundRobin_Concurrent(t *testing.T) {
	p := &RoundRobin{}
	aliases := []string{"a", "b"}
	var mu sync.Mutex
	counts := map[string]int{}
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				h := p.Pick(aliases, 0, 0, 0)
				mu.Lock()
				counts[h]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if diff := cmp.Diff(map[string]int{"a": 400, "b": 400}, counts); diff != "" {
		t.Fatalf("counts (-want +got):\n%s", diff)
	}
}

func TestDetect(t *testing.T) {
	for tpl, want := range map[string]Family{
		"{$z}/{$x}/{$ry}": TMS,
		"{$q}":            QuadKey,
		"{$z}/{$x}/{$y}":  XYZ,
		"bbox={$bbox}":    WMS,
	} {
		got, ok := Detect(tpl)
		if !ok || got != want {
			t.Errorf("Detect(%q) = %q, %v want %q", tpl, got, ok, want)
		}
	}
	if _, ok := Detect("static"); ok {
		t.Fatal("static template detected as a family")
	}
}

func TestNewPicker(t *testing.T) {
	if _, ok := NewPicker("RANDOM").(Random); !ok {
		t.Error("RANDOM: want Random")
	}
	if _, ok := NewPicker("roundrobin").(*RoundRobin); !ok {
		t.Error("roundrobin: want *RoundRobin")
	}
	for _, s := range []string{"", "tile", "bogus"} {
		if _, ok := NewPicker(s).(ByTile); !ok {
			t.Errorf("%q: want ByTile", s)
		}
	}
}
