package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/eleven-am/conference-signaling/internal/gateway"
	"github.com/eleven-am/conference-signaling/internal/icebuffer"
	"github.com/eleven-am/conference-signaling/internal/peertrack"
	"github.com/eleven-am/conference-signaling/internal/room"
	"github.com/eleven-am/conference-signaling/internal/signaling"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

type ComponentStatus struct {
	Status    Status `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type RuntimeStats struct {
	Goroutines    int    `json:"goroutines"`
	MemoryAllocMB uint64 `json:"memory_alloc_mb"`
	MemorySysMB   uint64 `json:"memory_sys_mb"`
	NumGC         uint32 `json:"num_gc"`
}

type SignalingStats struct {
	Rooms              int `json:"rooms"`
	Participants       int `json:"participants"`
	Connections        int `json:"connections"`
	PairContexts       int `json:"pair_contexts"`
	TrackedPeers       int `json:"tracked_peers"`
	StalePeers         int `json:"stale_peers"`
	BufferedCandidates int `json:"buffered_candidates"`
}

type Stats struct {
	Signaling SignalingStats `json:"signaling"`
	Runtime   RuntimeStats   `json:"runtime"`
}

type HealthResponse struct {
	Status        Status                     `json:"status"`
	Timestamp     time.Time                  `json:"timestamp"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Stats         Stats                      `json:"stats"`
	Components    map[string]ComponentStatus `json:"components"`
}

// Handler reports process liveness plus the signaling core's readiness.
// A missing store is a configuration choice, not a failure: the core runs
// in-memory and readiness only degrades when a configured store stops
// answering.
type Handler struct {
	redis     *redis.Client
	directory *room.Directory
	signaling *signaling.Tracker
	buffer    *icebuffer.Buffer
	peers     *peertrack.Tracker
	wsServer  *gateway.WSServer
	startTime time.Time
}

func NewHandler(
	redisClient *redis.Client,
	directory *room.Directory,
	signalTracker *signaling.Tracker,
	buffer *icebuffer.Buffer,
	peers *peertrack.Tracker,
	wsServer *gateway.WSServer,
) *Handler {
	return &Handler{
		redis:     redisClient,
		directory: directory,
		signaling: signalTracker,
		buffer:    buffer,
		peers:     peers,
		wsServer:  wsServer,
		startTime: time.Now(),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Liveness)
	e.GET("/health/ready", h.Readiness)
}

func (h *Handler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *Handler) Readiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	components := map[string]ComponentStatus{
		"store": h.checkStore(ctx),
	}

	overall := StatusHealthy
	if components["store"].Status == StatusDegraded {
		overall = StatusDegraded
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	resp := HealthResponse{
		Status:        overall,
		Timestamp:     time.Now().UTC(),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Stats: Stats{
			Signaling: SignalingStats{
				Rooms:              h.directory.RoomCount(),
				Participants:       h.directory.ParticipantCount(),
				Connections:        h.wsServer.ConnCount(),
				PairContexts:       h.signaling.Count(),
				TrackedPeers:       h.peers.Count(),
				StalePeers:         len(h.peers.StaleConnections()),
				BufferedCandidates: h.buffer.CandidateCount(),
			},
			Runtime: RuntimeStats{
				Goroutines:    runtime.NumGoroutine(),
				MemoryAllocMB: memStats.Alloc / 1024 / 1024,
				MemorySysMB:   memStats.Sys / 1024 / 1024,
				NumGC:         memStats.NumGC,
			},
		},
		Components: components,
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) checkStore(ctx context.Context) ComponentStatus {
	start := time.Now()
	if h.redis == nil {
		return ComponentStatus{
			Status:    StatusHealthy,
			LatencyMs: 0,
			Error:     "store not configured, running in-memory",
		}
	}

	if err := h.redis.Ping(ctx).Err(); err != nil {
		return ComponentStatus{
			Status:    StatusDegraded,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "ping failed",
		}
	}

	return ComponentStatus{
		Status:    StatusHealthy,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}
