package gateway

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/eleven-am/conference-signaling/internal/icebuffer"
	"github.com/eleven-am/conference-signaling/internal/peertrack"
	"github.com/eleven-am/conference-signaling/internal/room"
	"github.com/eleven-am/conference-signaling/internal/signaling"
)

// SendBufferSize sizes the per-connection outbound queue.
type SendBufferSize int

func ProvideWSServer(
	directory *room.Directory,
	signalTracker *signaling.Tracker,
	buffer *icebuffer.Buffer,
	peers *peertrack.Tracker,
	sendBuf SendBufferSize,
	logger *slog.Logger,
) *WSServer {
	return NewWSServer(directory, signalTracker, buffer, peers, int(sendBuf), logger)
}

func ProvideHandler(
	directory *room.Directory,
	registry *room.Registry,
	wsServer *WSServer,
	logger *slog.Logger,
) *Handler {
	return NewHandler(directory, registry, wsServer, logger.With("handler", "gateway"))
}

var Module = fx.Options(
	fx.Provide(
		ProvideWSServer,
		ProvideHandler,
	),
)
