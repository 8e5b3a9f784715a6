package health

import (
	"encoding/json"
	"net/http"
	"time"
)

type liveness struct {
	Status  string  `json:"status"`
	Version string  `json:"version,omitempty"`
	Uptime  float64 `json:"uptime_seconds"`
}

// Liveness reports that the process serves HTTP, with the build version
// and the time since the handler was built.
func Liveness(version string) http.HandlerFunc {
	started := time.Now()
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(liveness{
			Status:  "ok",
			Version: version,
			Uptime:  time.Since(started).Seconds(),
		})
	}
}
