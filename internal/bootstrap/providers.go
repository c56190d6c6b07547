package bootstrap

import (
	"log/slog"
	"os"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/eleven-am/conference-signaling/internal/gateway"
	"github.com/eleven-am/conference-signaling/internal/health"
	"github.com/eleven-am/conference-signaling/internal/icebuffer"
	"github.com/eleven-am/conference-signaling/internal/peertrack"
	"github.com/eleven-am/conference-signaling/internal/room"
	"github.com/eleven-am/conference-signaling/internal/signaling"
)

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ProvideLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
}

func ProvideRegistry() *room.Registry {
	return room.NewRegistry()
}

func ProvideDirectory(cfg *Config, store *room.Store, registry *room.Registry, logger *slog.Logger) *room.Directory {
	return room.NewDirectory(room.Config{
		DefaultCapacity: cfg.DefaultRoomCapacity,
		EmptyRoomGrace:  cfg.EmptyRoomGrace,
	}, store, registry, logger)
}

func ProvideSignalingTracker(cfg *Config, logger *slog.Logger) *signaling.Tracker {
	return signaling.NewTracker(signaling.Config{
		MaxFailures:     cfg.MaxFailures,
		FreshnessWindow: cfg.FreshnessWindow,
	}, logger)
}

func ProvideICEBuffer(cfg *Config, logger *slog.Logger) *icebuffer.Buffer {
	return icebuffer.NewBuffer(icebuffer.Config{
		StaleAfter: cfg.CandidateStaleAfter,
	}, logger)
}

func ProvidePeerTracker(cfg *Config, logger *slog.Logger) *peertrack.Tracker {
	return peertrack.NewTracker(peertrack.Config{
		MaxRestarts:     cfg.MaxRestarts,
		RestartCooldown: cfg.RestartCooldown,
		StaleThreshold:  cfg.StaleThreshold,
	}, logger)
}

func ProvideSendBufferSize(cfg *Config) gateway.SendBufferSize {
	return gateway.SendBufferSize(cfg.SendBufferLen)
}

func ProvideHealthHandler(
	redisClient *redis.Client,
	directory *room.Directory,
	signalTracker *signaling.Tracker,
	buffer *icebuffer.Buffer,
	peers *peertrack.Tracker,
	wsServer *gateway.WSServer,
) *health.Handler {
	return health.NewHandler(redisClient, directory, signalTracker, buffer, peers, wsServer)
}

func RegisterRoutes(e *echo.Echo, gatewayHandler *gateway.Handler, healthHandler *health.Handler) {
	api := e.Group("/api/v1")
	gatewayHandler.RegisterRoutes(api)
	healthHandler.RegisterRoutes(e)
}

var CoreModule = fx.Options(
	fx.Provide(
		ProvideLogger,
		ProvideRegistry,
		ProvideDirectory,
		ProvideSignalingTracker,
		ProvideICEBuffer,
		ProvidePeerTracker,
		ProvideSendBufferSize,
		ProvideHealthHandler,
	),
	fx.Invoke(RegisterRoutes),
)
