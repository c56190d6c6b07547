package signaling

import (
	"log/slog"
	"sync"
	"time"

	"github.com/eleven-am/conference-signaling/internal/shared"
)

const (
	DefaultMaxFailures     = 3
	DefaultFreshnessWindow = 30 * time.Second
)

type Config struct {
	// MaxFailures bounds how many failures a pair may accumulate before
	// retries are refused.
	MaxFailures int

	// FreshnessWindow is how long a received sequence number suppresses
	// replays of itself.
	FreshnessWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxFailures <= 0 {
		c.MaxFailures = DefaultMaxFailures
	}
	if c.FreshnessWindow <= 0 {
		c.FreshnessWindow = DefaultFreshnessWindow
	}
	return c
}

// Tracker sequences the offer/answer exchange for every directed pair in
// the process. Contexts are created lazily on first access and destroyed
// only by Cleanup or CleanupRoom.
type Tracker struct {
	cfg Config
	log *slog.Logger

	mu       sync.RWMutex
	contexts map[shared.PairKey]*Context
}

func NewTracker(cfg Config, log *slog.Logger) *Tracker {
	if log == nil {
		log = slog.Default()
	}
	return &Tracker{
		cfg:      cfg.withDefaults(),
		log:      log.With("component", "signaling"),
		contexts: make(map[shared.PairKey]*Context),
	}
}

// getOrCreate must be called with t.mu held for writing.
func (t *Tracker) getOrCreate(key shared.PairKey) *Context {
	if ctx, ok := t.contexts[key]; ok {
		return ctx
	}
	now := time.Now()
	ctx := &Context{
		State:     StateIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	t.contexts[key] = ctx
	return ctx
}

func (t *Tracker) RecordOfferSent(key shared.PairKey, seq int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ctx := t.getOrCreate(key)
	ctx.State = StateOfferSent
	ctx.OfferSequence = seq
	ctx.LastOfferAt = time.Now()
	ctx.UpdatedAt = ctx.LastOfferAt
}

// RecordOfferReceived reports whether the offer was accepted. A repeat of
// the same sequence number inside the freshness window is rejected without
// mutating the context. Acceptance clears accumulated failures.
func (t *Tracker) RecordOfferReceived(key shared.PairKey, seq int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	ctx := t.getOrCreate(key)
	now := time.Now()
	if ctx.OfferSequence == seq && !ctx.LastOfferAt.IsZero() && now.Sub(ctx.LastOfferAt) < t.cfg.FreshnessWindow {
		t.log.Debug("duplicate offer suppressed",
			"room_id", key.RoomID,
			"local_user_id", key.LocalUserID,
			"remote_user_id", key.RemoteUserID,
			"sequence", seq,
		)
		return false
	}

	ctx.State = StateOfferReceived
	ctx.OfferSequence = seq
	ctx.LastOfferAt = now
	ctx.FailureCount = 0
	ctx.UpdatedAt = now
	return true
}

func (t *Tracker) RecordAnswerSent(key shared.PairKey, seq int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ctx := t.getOrCreate(key)
	ctx.State = StateAnswerSent
	ctx.AnswerSequence = seq
	ctx.LastAnswerAt = time.Now()
	ctx.UpdatedAt = ctx.LastAnswerAt
}

// RecordAnswerReceived mirrors RecordOfferReceived for the answer leg.
func (t *Tracker) RecordAnswerReceived(key shared.PairKey, seq int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	ctx := t.getOrCreate(key)
	now := time.Now()
	if ctx.AnswerSequence == seq && !ctx.LastAnswerAt.IsZero() && now.Sub(ctx.LastAnswerAt) < t.cfg.FreshnessWindow {
		t.log.Debug("duplicate answer suppressed",
			"room_id", key.RoomID,
			"local_user_id", key.LocalUserID,
			"remote_user_id", key.RemoteUserID,
			"sequence", seq,
		)
		return false
	}

	ctx.State = StateAnswerReceived
	ctx.AnswerSequence = seq
	ctx.LastAnswerAt = now
	ctx.FailureCount = 0
	ctx.UpdatedAt = now
	return true
}

// RecordICECandidate counts a candidate against the current negotiation
// generation. It never changes state.
func (t *Tracker) RecordICECandidate(key shared.PairKey) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ctx := t.getOrCreate(key)
	ctx.ICECandidateCount++
	ctx.UpdatedAt = time.Now()
}

// RecordICERestart moves the pair into restarting and discards the
// candidate count; candidates from the prior generation no longer apply.
func (t *Tracker) RecordICERestart(key shared.PairKey) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ctx := t.getOrCreate(key)
	ctx.State = StateRestarting
	ctx.ICECandidateCount = 0
	ctx.UpdatedAt = time.Now()
}

func (t *Tracker) RecordConnectionEstablished(key shared.PairKey) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ctx := t.getOrCreate(key)
	ctx.State = StateConnected
	ctx.FailureCount = 0
	ctx.UpdatedAt = time.Now()
}

// RecordFailure marks the pair failed and reports whether another retry
// is still within budget.
func (t *Tracker) RecordFailure(key shared.PairKey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	ctx := t.getOrCreate(key)
	ctx.FailureCount++
	ctx.State = StateFailed
	ctx.UpdatedAt = time.Now()

	canRetry := ctx.FailureCount < t.cfg.MaxFailures
	if !canRetry {
		t.log.Warn("pair exhausted failure budget",
			"room_id", key.RoomID,
			"local_user_id", key.LocalUserID,
			"remote_user_id", key.RemoteUserID,
			"failures", ctx.FailureCount,
		)
	}
	return canRetry
}

// CanRetry is the pure query form of RecordFailure's return value.
func (t *Tracker) CanRetry(key shared.PairKey) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ctx, ok := t.contexts[key]
	if !ok {
		return true
	}
	return ctx.FailureCount < t.cfg.MaxFailures
}

// Get returns a snapshot of the pair's context.
func (t *Tracker) Get(key shared.PairKey) (Context, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ctx, ok := t.contexts[key]
	if !ok {
		return Context{}, false
	}
	return *ctx, true
}

func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.contexts)
}

// Cleanup removes the context for a single directed pair.
func (t *Tracker) Cleanup(key shared.PairKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.contexts, key)
}

// CleanupPeer removes every context in the room that involves the user,
// on either side of the pair.
func (t *Tracker) CleanupPeer(roomID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key := range t.contexts {
		if key.RoomID == roomID && (key.LocalUserID == userID || key.RemoteUserID == userID) {
			delete(t.contexts, key)
		}
	}
}

// CleanupRoom removes every context belonging to the room.
func (t *Tracker) CleanupRoom(roomID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for key := range t.contexts {
		if key.RoomID == roomID {
			delete(t.contexts, key)
		}
	}
}
