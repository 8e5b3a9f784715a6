package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestMetricsHandler_Smoke(t *testing.T) {
	ExposeBuildInfo("test")
	ObserveHTTP("GET", "/{source}/{tile}", 200, 0.001)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "app_build_info") && !strings.Contains(body, "http_requests_total") {
		t.Fatalf("metrics payload did not contain expected metric names; got:\n%s", body)
	}
}

func TestOverlayMetrics_RegistrationAndLabels(t *testing.T) {
	ObserveDocument("children", "kmz")
	AddNetworkLinks(4)
	AddRegionRejected(2)
	ObserveDescriptorCache("hit")
	ObserveStoreOp("get", nil, 0.002)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rr, req)
	body := rr.Body.String()

	for _, want := range []string{
		`superoverlay_documents_total{container="kmz",kind="children"} `,
		`superoverlay_network_links_total `,
		`superoverlay_region_rejected_total `,
		`superoverlay_descriptor_cache_total{outcome="hit"} `,
		`superoverlay_store_op_duration_seconds_bucket{op="get",result="ok"`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
}
