// Package peertrack observes connection and ICE state per directed pair,
// gates ICE-restart attempts, and flags inactive pairs. It reports stale
// pairs; it never force-closes them.
package peertrack

import (
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/conference-signaling/internal/shared"
)

const (
	DefaultMaxRestarts     = 2
	DefaultRestartCooldown = 5 * time.Second
	DefaultStaleThreshold  = 60 * time.Second
)

// Connection and ICE states as reported by the transport. These mirror
// the browser-side RTCPeerConnection state strings.
const (
	ConnectionNew          = "new"
	ConnectionConnecting   = "connecting"
	ConnectionConnected    = "connected"
	ConnectionDisconnected = "disconnected"
	ConnectionFailed       = "failed"
	ConnectionClosed       = "closed"

	ICEConnectionChecking  = "checking"
	ICEConnectionConnected = "connected"
	ICEConnectionCompleted = "completed"
)

type Config struct {
	// MaxRestarts is the number of restart attempts a pair may spend
	// recovering from failures.
	MaxRestarts int

	// RestartCooldown is the minimum interval between restarts.
	RestartCooldown time.Duration

	// StaleThreshold is the inactivity age at which a pair is reported
	// as stale.
	StaleThreshold time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRestarts <= 0 {
		c.MaxRestarts = DefaultMaxRestarts
	}
	if c.RestartCooldown <= 0 {
		c.RestartCooldown = DefaultRestartCooldown
	}
	if c.StaleThreshold <= 0 {
		c.StaleThreshold = DefaultStaleThreshold
	}
	return c
}

// State is the observed condition of one directed pair's connection.
type State struct {
	Handle             string
	ConnectionState    string
	ICEConnectionState string
	ICEGatheringState  string
	FailureCount       int
	LastRestartAt      time.Time
	IsRestarting       bool
	LastActivityAt     time.Time
}

// StaleConnection pairs a key with its last observed activity.
type StaleConnection struct {
	Key            shared.PairKey
	LastActivityAt time.Time
}

// Tracker holds connection state per directed pair. Entries are created
// lazily and removed only by Cleanup, CleanupPeer, or CleanupRoom.
type Tracker struct {
	cfg Config
	log *slog.Logger

	mu    sync.RWMutex
	conns map[shared.PairKey]*State
}

func NewTracker(cfg Config, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		cfg:   cfg.withDefaults(),
		log:   log.With("component", "peertrack"),
		conns: make(map[shared.PairKey]*State),
	}
}

// getOrCreate must be called with t.mu held for writing.
func (t *Tracker) getOrCreate(key shared.PairKey) *State {
	if st, ok := t.conns[key]; ok {
		return st
	}
	st := &State{
		ConnectionState: ConnectionNew,
		LastActivityAt:  time.Now(),
	}
	t.conns[key] = st
	return st
}

// TrackConnection registers a fresh connection for the pair.
func (t *Tracker) TrackConnection(key shared.PairKey, handle string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.conns[key] = &State{
		Handle:          handle,
		ConnectionState: ConnectionNew,
		LastActivityAt:  time.Now(),
	}
}

func (t *Tracker) UpdateConnectionState(key shared.PairKey, state string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.getOrCreate(key)
	st.ConnectionState = state
	st.LastActivityAt = time.Now()
	if state == ConnectionConnected {
		st.FailureCount = 0
	}
}

func (t *Tracker) UpdateICEConnectionState(key shared.PairKey, state string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.getOrCreate(key)
	st.ICEConnectionState = state
	st.LastActivityAt = time.Now()
	if state == ICEConnectionConnected || state == ICEConnectionCompleted {
		st.FailureCount = 0
	}
}

func (t *Tracker) UpdateICEGatheringState(key shared.PairKey, state string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.getOrCreate(key)
	st.ICEGatheringState = state
	st.LastActivityAt = time.Now()
}

// RecordFailure counts a failure against the pair. The failure itself is
// activity: a pair that is actively retrying must not be reaped as stale.
func (t *Tracker) RecordFailure(key shared.PairKey) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.getOrCreate(key)
	st.FailureCount++
	st.ConnectionState = ConnectionFailed
	st.LastActivityAt = time.Now()
}

// CanRestart reports whether a restart attempt is permitted: the failure
// budget must not be exhausted and the cooldown since the last restart
// must have elapsed. A pair that never restarted has no cooldown.
func (t *Tracker) CanRestart(key shared.PairKey) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st, ok := t.conns[key]
	if !ok {
		return true
	}
	if st.FailureCount > t.cfg.MaxRestarts {
		return false
	}
	if !st.LastRestartAt.IsZero() && time.Since(st.LastRestartAt) < t.cfg.RestartCooldown {
		return false
	}
	return true
}

func (t *Tracker) RecordRestart(key shared.PairKey) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.getOrCreate(key)
	st.IsRestarting = true
	st.LastRestartAt = time.Now()
	st.LastActivityAt = st.LastRestartAt
}

func (t *Tracker) RecordRestartComplete(key shared.PairKey) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.getOrCreate(key)
	st.IsRestarting = false
	st.LastActivityAt = time.Now()
}

// Get returns a snapshot of the pair's state.
func (t *Tracker) Get(key shared.PairKey) (State, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	st, ok := t.conns[key]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// IsStale reports whether a state snapshot is inactive past the threshold.
func (t *Tracker) IsStale(st State, now time.Time) bool {
	return now.Sub(st.LastActivityAt) > t.cfg.StaleThreshold
}

// StaleConnections lists pairs inactive past the staleness threshold.
// Callers decide what to do with them; nothing is removed here.
func (t *Tracker) StaleConnections() []StaleConnection {
	now := time.Now()

	t.mu.RLock()
	defer t.mu.RUnlock()

	var stale []StaleConnection
	for key, st := range t.conns {
		if t.IsStale(*st, now) {
			stale = append(stale, StaleConnection{
				Key:            key,
				LastActivityAt: st.LastActivityAt,
			})
		}
	}
	return stale
}

func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.conns)
}

// Cleanup removes the state for a single directed pair.
func (t *Tracker) Cleanup(key shared.PairKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conns, key)
}

// CleanupPeer removes every entry in the room involving the user.
func (t *Tracker) CleanupPeer(roomID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key := range t.conns {
		if key.RoomID == roomID && (key.LocalUserID == userID || key.RemoteUserID == userID) {
			delete(t.conns, key)
		}
	}
}

// CleanupRoom removes every entry belonging to the room.
func (t *Tracker) CleanupRoom(roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key := range t.conns {
		if key.RoomID == roomID {
			delete(t.conns, key)
		}
	}
}
