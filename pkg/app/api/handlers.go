package api

import (
	"net/http"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/marmos91/alarmclock/internal/logger"
)

// Snapshot is the application state exposed over HTTP.
type Snapshot struct {
	InstanceID string
	State      string
	Running    bool
	StartedAt  time.Time
	CacheDir   string
}

// StatusProvider reports the application's current state.
type StatusProvider interface {
	Snapshot() Snapshot
}

// CacheUsageFunc returns the bytes currently stored in the cache directory.
type CacheUsageFunc func() (uint64, error)

// LifecycleResponse is the payload of GET /api/v1/lifecycle.
type LifecycleResponse struct {
	InstanceID string `json:"instance_id"`
	State      string `json:"state"`
	StartedAt  string `json:"started_at"`
	Uptime     string `json:"uptime"`
	UptimeSec  int64  `json:"uptime_sec"`
	CacheDir   string `json:"cache_dir"`
	CacheUsage string `json:"cache_usage,omitempty"`
}

// HealthHandler handles health check and lifecycle endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: Is the process serving HTTP?
//   - Readiness probe: Is the application running (not tearing down)?
type HealthHandler struct {
	status     StatusProvider
	cacheUsage CacheUsageFunc
}

// NewHealthHandler creates a new health handler. cacheUsage may be nil.
func NewHealthHandler(status StatusProvider, cacheUsage CacheUsageFunc) *HealthHandler {
	return &HealthHandler{status: status, cacheUsage: cacheUsage}
}

// Liveness handles GET /health - simple liveness probe.
//
// Returns 200 OK as long as the HTTP server is responsive, including while
// the application is tearing down.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	snap := h.status.Snapshot()
	uptime := time.Since(snap.StartedAt)
	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"service":    "alarmclock",
		"started_at": snap.StartedAt.UTC().Format(time.RFC3339),
		"uptime":     uptime.Round(time.Second).String(),
		"uptime_sec": int64(uptime.Seconds()),
	}))
}

// Readiness handles GET /health/ready - readiness probe.
// Returns 200 OK while the application is running and 503 otherwise.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	snap := h.status.Snapshot()
	if !snap.Running {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("application is "+snap.State))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"state": snap.State,
	}))
}

// Lifecycle handles GET /api/v1/lifecycle.
func (h *HealthHandler) Lifecycle(w http.ResponseWriter, r *http.Request) {
	snap := h.status.Snapshot()
	uptime := time.Since(snap.StartedAt)

	resp := LifecycleResponse{
		InstanceID: snap.InstanceID,
		State:      snap.State,
		StartedAt:  snap.StartedAt.UTC().Format(time.RFC3339),
		Uptime:     uptime.Round(time.Second).String(),
		UptimeSec:  int64(uptime.Seconds()),
		CacheDir:   snap.CacheDir,
	}

	if h.cacheUsage != nil {
		used, err := h.cacheUsage()
		if err != nil {
			logger.Warn("Failed to measure cache usage", logger.KeyPath, snap.CacheDir, logger.KeyError, err)
		} else {
			resp.CacheUsage = humanize.IBytes(used)
		}
	}

	writeJSON(w, http.StatusOK, Response{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Data:      resp,
	})
}
