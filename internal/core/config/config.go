package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type KafkaCfg struct {
	Enabled bool
	Topic   string
	Brokers string
	GroupID string
}

type MetricsCfg struct {
	Enabled bool
	Addr    string
	Path    string
}

type Config struct {
	Addr       string
	LogLevel   string
	LogConsole bool
	LogSampleN int

	// URLBase is the path prefix the service is mounted under, with leading
	// and trailing slash.
	URLBase string
	// PublicURL overrides scheme://host when building absolute links, for
	// deployments behind a proxy.
	PublicURL string

	MapSourceRoot   string
	SourceStore     string
	RedisAddr       string
	SourceCacheSize int
	StoreOpTimeout  time.Duration

	OutputFormat  string
	IndentKML     bool
	RegionClip    string
	DisplayRegion bool
	AliasStrategy string
	CatalogName   string

	KafkaBrokers string
	AccessEvents KafkaCfg
	Invalidation KafkaCfg
	Metrics      MetricsCfg
}

func FromEnv() Config {
	brokers := getenv("KAFKA_BROKERS", "localhost:9092")
	base := normalizeBase(getenv("URL_BASE", "/"))

	return Config{
		Addr:       getenv("ADDR", ":8090"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),
		LogSampleN: getint("LOG_SAMPLE_N", 0),

		URLBase:   base,
		PublicURL: strings.TrimRight(getenv("PUBLIC_URL", ""), "/"),

		MapSourceRoot:   getenv("MAP_SOURCE_ROOT", "./mapsources"),
		SourceStore:     strings.ToLower(getenv("SOURCE_STORE", "fs")),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		SourceCacheSize: getint("SOURCE_CACHE_SIZE", 256),
		StoreOpTimeout:  getduration("STORE_OP_TIMEOUT", 2*time.Second),

		OutputFormat:  strings.ToLower(getenv("OUTPUT_FORMAT", "kml")),
		IndentKML:     getbool("INDENT_KML", true),
		RegionClip:    getenv("REGION_CLIP", "polygon"),
		DisplayRegion: getbool("DISPLAY_REGION", true),
		AliasStrategy: getenv("ALIAS_STRATEGY", "tile"),
		CatalogName:   getenv("CATALOG_NAME", catalogName(base)),

		KafkaBrokers: brokers,
		AccessEvents: KafkaCfg{
			Enabled: getbool("ACCESS_EVENTS_ENABLED", false),
			Topic:   getenv("ACCESS_EVENTS_TOPIC", "superoverlay-access"),
			Brokers: getenv("ACCESS_EVENTS_BROKERS", brokers),
		},
		Invalidation: KafkaCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Topic:   getenv("INVALIDATION_TOPIC", "mapsource-invalidation"),
			Brokers: getenv("INVALIDATION_BROKERS", brokers),
			GroupID: getenv("INVALIDATION_GROUP_ID", "superoverlay"),
		},
		Metrics: MetricsCfg{
			Enabled: getbool("METRICS_ENABLED", false),
			Addr:    getenv("METRICS_ADDR", ":9090"),
			Path:    getenv("METRICS_PATH", "/metrics"),
		},
	}
}

// Brokers splits a comma separated broker list.
func Brokers(s string) []string {
	var out []string
	for b := range strings.SplitSeq(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func normalizeBase(s string) string {
	s = strings.Trim(strings.TrimSpace(s), "/")
	if s == "" {
		return "/"
	}
	return "/" + s + "/"
}

// the catalog is named after the last segment of the mount path
func catalogName(base string) string {
	parts := strings.Split(strings.Trim(base, "/"), "/")
	if last := parts[len(parts)-1]; last != "" {
		return last
	}
	return "superoverlay"
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
