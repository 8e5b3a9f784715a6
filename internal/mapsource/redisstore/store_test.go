package redisstore

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/superoverlay/internal/errs"
)

const osmXML = `<customMapSource>
  <name>OpenStreetMap</name>
  <url>https://tile.openstreetmap.org/{$z}/{$x}/{$y}.png</url>
  <maxZoom>19</maxZoom>
</customMapSource>`

const wmsXML = `<customMapSource>
  <name>Scan</name>
  <folder>IGN</folder>
  <url>https://wxs.example.fr/wms?SERVICE=WMS&amp;SRS=EPSG:3857&amp;BBOX={$bbox}</url>
  <minZoom>6</minZoom>
  <maxZoom>16</maxZoom>
</customMapSource>`

// creates a store connected to miniredis for testing
func newMini(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	s, err := New(ctx, mr.Addr(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestPutGetList_HappyPath(t *testing.T) {
	s, mr := newMini(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := s.Put(ctx, "wms/scan", []byte(wmsXML)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, "/-Base/osm/", []byte(osmXML)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !mr.Exists(Key("-Base/osm")) {
		t.Fatalf("descriptor key missing")
	}

	src, err := s.Get(ctx, "wms/scan")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if src.Name != "Scan" || src.Folder != "IGN" || src.MinZoom != 6 {
		t.Fatalf("unexpected source: %+v", src)
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 || all[0].ID != "-Base/osm" || all[1].ID != "wms/scan" {
		t.Fatalf("List order wrong: %+v", all)
	}
	if all[0].Folder != "Base" {
		t.Fatalf("folder = %q", all[0].Folder)
	}
}

func TestGet_NotFound(t *testing.T) {
	s, _ := newMini(t)
	_, err := s.Get(context.Background(), "nope")
	if !errors.Is(err, errs.ErrSourceNotFound) {
		t.Fatalf("err = %v, want ErrSourceNotFound", err)
	}
	_, err = s.Get(context.Background(), "../x")
	if !errors.Is(err, errs.ErrSourceNotFound) {
		t.Fatalf("err = %v, want ErrSourceNotFound", err)
	}
}

func TestPut_RejectsInvalidDescriptor(t *testing.T) {
	s, mr := newMini(t)
	err := s.Put(context.Background(), "bad", []byte(`<customMapSource><name>x</name></customMapSource>`))
	if !errors.Is(err, errs.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
	if mr.Exists(Key("bad")) {
		t.Fatalf("invalid descriptor was stored")
	}
}

func TestList_SkipsBrokenAndDangling(t *testing.T) {
	s, mr := newMini(t)
	ctx := context.Background()
	if err := s.Put(ctx, "ok", []byte(osmXML)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// written behind the store's back
	if err := mr.Set(Key("broken"), "<customMapSource>"); err != nil {
		t.Fatalf("mr.Set: %v", err)
	}
	if _, err := mr.SAdd(idsKey, "broken", "dangling"); err != nil {
		t.Fatalf("mr.SAdd: %v", err)
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 || all[0].ID != "ok" {
		t.Fatalf("List = %+v", all)
	}
}

func TestDelete(t *testing.T) {
	s, mr := newMini(t)
	ctx := context.Background()
	if err := s.Put(ctx, "ok", []byte(osmXML)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete(ctx, "ok"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if mr.Exists(Key("ok")) {
		t.Fatalf("key still present")
	}
	if ok, _ := mr.SIsMember(idsKey, "ok"); ok {
		t.Fatalf("id still listed")
	}
}

func TestContextCanceled_IsRespected(t *testing.T) {
	s, _ := newMini(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Put(ctx, "k", []byte(osmXML)); err == nil {
		t.Fatalf("expected error on Put with canceled context")
	}
	if _, err := s.Get(ctx, "k"); err == nil {
		t.Fatalf("expected error on Get with canceled context")
	}
	if _, err := s.List(ctx); err == nil {
		t.Fatalf("expected error on List with canceled context")
	}
	if err := s.Check(ctx); err == nil {
		t.Fatalf("expected error on Check with canceled context")
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := New(context.Background(), "", nil); err == nil {
		t.Fatalf("expected error for empty address")
	}
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	addr := mr.Addr()
	mr.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := New(ctx, addr, nil, WithDialTimeout(100*time.Millisecond)); err == nil {
		t.Fatalf("expected ping error against closed server")
	}
}

func TestMetrics_Observed(t *testing.T) {
	s, _ := newMini(t)
	ctx := context.Background()
	_ = s.Put(ctx, "m", []byte(osmXML))
	_, _ = s.Get(ctx, "m")

	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	for _, op := range []string{"ping", "put", "get"} {
		if !strings.Contains(body, `superoverlay_store_op_duration_seconds_count{op="`+op+`",result="ok"}`) {
			t.Fatalf("missing %s observation:\n%s", op, body)
		}
	}
}
