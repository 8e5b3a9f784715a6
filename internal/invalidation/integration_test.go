package invalidation_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/IBM/sarama"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammed-shakir/superoverlay/internal/invalidation"
	"github.com/mohammed-shakir/superoverlay/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/superoverlay/internal/mapsource"
	"github.com/mohammed-shakir/superoverlay/internal/mapsource/redisstore"
)

const descriptor = `<customMapSource>
  <name>%s</name>
  <url>https://tile.openstreetmap.org/{$z}/{$x}/{$y}.png</url>
</customMapSource>`

func xmlNamed(name string) []byte {
	return []byte(strings.Replace(descriptor, "%s", name, 1))
}

func TestIntegration_Miniredis_EvictsCachedDescriptor(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rs, err := redisstore.New(ctx, mr.Addr(), logger)
	if err != nil {
		t.Fatalf("redisstore: %v", err)
	}
	t.Cleanup(func() { _ = rs.Close() })

	if err := rs.Put(ctx, "base/osm", xmlNamed("OSM")); err != nil {
		t.Fatalf("put: %v", err)
	}
	cached, err := mapsource.NewCachedStore(rs, 8)
	if err != nil {
		t.Fatal(err)
	}
	if src, err := cached.Get(ctx, "base/osm"); err != nil || src.Name != "OSM" {
		t.Fatalf("first get: %v %v", src, err)
	}

	// the store changes behind the cache
	if err := rs.Put(ctx, "base/osm", xmlNamed("OSM v2")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if src, _ := cached.Get(ctx, "base/osm"); src.Name != "OSM" {
		t.Fatalf("expected the cached copy before invalidation, got %q", src.Name)
	}

	reg := prometheus.NewRegistry()
	cons := kafkaconsumer.New(kafkaconsumer.Config{Topic: "t", DedupeSize: 8}, cached,
		kafkaconsumer.Options{Logger: logger, Register: reg})

	body, _ := json.Marshal(invalidation.Event{Version: 1, Op: invalidation.OpUpsert, Source: "base/osm", Seq: 1})
	msg := &sarama.ConsumerMessage{Topic: "t", Partition: 0, Offset: 1, Value: body}
	if err := cons.ProcessOne(ctx, msg); err != nil {
		t.Fatalf("processOne: %v", err)
	}

	src, err := cached.Get(ctx, "base/osm")
	if err != nil || src.Name != "OSM v2" {
		t.Fatalf("after invalidation: %v %v", src, err)
	}

	rr := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	out := rr.Body.String()
	for _, s := range []string{
		`superoverlay_invalidation_msgs_total{result="ok"} 1`,
		`superoverlay_invalidation_apply_total{action="evict"} 1`,
		`superoverlay_invalidation_processing_seconds_bucket`,
	} {
		if !strings.Contains(out, s) {
			t.Fatalf("metrics missing %q; got:\n%s", s, out)
		}
	}
}
