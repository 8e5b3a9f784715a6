package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		},
		[]string{"method", "route", "status"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)

	documentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "superoverlay_documents_total",
			Help: "Overlay documents served by kind (catalog, root, children) and container.",
		},
		[]string{"kind", "container"},
	)

	networkLinksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "superoverlay_network_links_total",
			Help: "NetworkLink nodes emitted.",
		},
	)

	regionRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "superoverlay_region_rejected_total",
			Help: "Child tiles pruned by the region clipper.",
		},
	)

	descriptorCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "superoverlay_descriptor_cache_total",
			Help: "Descriptor cache lookups by outcome (hit, miss, evict).",
		},
		[]string{"outcome"},
	)

	storeOpSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "superoverlay_store_op_duration_seconds",
			Help:    "Latency of descriptor store operations.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op", "result"},
	)

	accessEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "superoverlay_access_events_dropped_total",
			Help: "Access events dropped because the publish queue was full.",
		},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveDocument(kind, container string) {
	documentsTotal.WithLabelValues(kind, container).Inc()
}

func AddNetworkLinks(n int) {
	if n > 0 {
		networkLinksTotal.Add(float64(n))
	}
}

func AddRegionRejected(n int) {
	if n > 0 {
		regionRejectedTotal.Add(float64(n))
	}
}

func ObserveDescriptorCache(outcome string) {
	descriptorCache.WithLabelValues(outcome).Inc()
}

func ObserveStoreOp(op string, err error, durationSeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	storeOpSeconds.WithLabelValues(op, result).Observe(durationSeconds)
}

func IncAccessEventDropped() {
	accessEventsDropped.Inc()
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
