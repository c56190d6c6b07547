package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"go.uber.org/fx"

	"github.com/eleven-am/conference-signaling/internal/icebuffer"
	"github.com/eleven-am/conference-signaling/internal/peertrack"
)

// Sweeper periodically evicts stale ICE candidate buckets and reports
// peer connections that have gone quiet. The core components never run
// their own timers; this is the only background scheduler in the process.
type Sweeper struct {
	interval time.Duration
	buffer   *icebuffer.Buffer
	peers    *peertrack.Tracker
	log      *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(cfg *Config, buffer *icebuffer.Buffer, peers *peertrack.Tracker, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		interval: cfg.SweepInterval,
		buffer:   buffer,
		peers:    peers,
		log:      logger.With("component", "sweeper"),
	}
}

func (s *Sweeper) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx)
}

func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	if removed := s.buffer.CleanupStale(); removed > 0 {
		s.log.Info("evicted stale candidate buckets", "count", removed)
	}
	for _, stale := range s.peers.StaleConnections() {
		s.log.Warn("peer connection stale",
			"room_id", stale.Key.RoomID,
			"local_user_id", stale.Key.LocalUserID,
			"remote_user_id", stale.Key.RemoteUserID,
			"last_activity", stale.LastActivityAt)
	}
}

func StartSweeper(lc fx.Lifecycle, sweeper *Sweeper) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			sweeper.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sweeper.Stop()
			return nil
		},
	})
}

var SweeperModule = fx.Options(
	fx.Provide(NewSweeper),
	fx.Invoke(StartSweeper),
)
