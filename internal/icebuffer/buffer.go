// Package icebuffer holds connectivity candidates that arrive before the
// peer connection is ready to apply them. WebRTC requires a remote
// description before candidates can be added; the signaling transport
// delivers them unordered, so the buffer reconstructs intended order.
package icebuffer

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/eleven-am/conference-signaling/internal/shared"
)

const DefaultStaleAfter = 120 * time.Second

type Config struct {
	// StaleAfter is the age beyond which an entry counts as stale for
	// the sweep. A bucket is dropped only when every entry is stale.
	StaleAfter time.Duration
}

// BufferedCandidate is one received candidate. Applied entries are
// retained so duplicate detection keeps working after application.
type BufferedCandidate struct {
	Candidate  webrtc.ICECandidateInit
	Sequence   int64
	ReceivedAt time.Time
	Applied    bool
}

// Buffer stores candidates per directed pair. Sequence numbers come from
// one process-wide counter, giving a total order across all pairs.
type Buffer struct {
	staleAfter time.Duration
	log        *slog.Logger
	seq        atomic.Int64

	mu    sync.RWMutex
	pairs map[shared.PairKey][]*BufferedCandidate
}

func NewBuffer(cfg Config, log *slog.Logger) *Buffer {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if log == nil {
		log = slog.Default()
	}
	return &Buffer{
		staleAfter: cfg.StaleAfter,
		log:        log.With("component", "icebuffer"),
		pairs:      make(map[shared.PairKey][]*BufferedCandidate),
	}
}

// BufferCandidate appends the candidate to the pair's bucket and returns
// its sequence number.
func (b *Buffer) BufferCandidate(key shared.PairKey, cand webrtc.ICECandidateInit) int64 {
	seq := b.seq.Add(1)

	b.mu.Lock()
	defer b.mu.Unlock()

	b.pairs[key] = append(b.pairs[key], &BufferedCandidate{
		Candidate:  cand,
		Sequence:   seq,
		ReceivedAt: time.Now(),
	})
	return seq
}

// BufferedCandidates returns the pair's unapplied candidates sorted by
// sequence number, restoring intended order under out-of-order arrival.
func (b *Buffer) BufferedCandidates(key shared.PairKey) []BufferedCandidate {
	b.mu.RLock()
	defer b.mu.RUnlock()

	bucket := b.pairs[key]
	out := make([]BufferedCandidate, 0, len(bucket))
	for _, entry := range bucket {
		if !entry.Applied {
			out = append(out, *entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Sequence < out[j].Sequence
	})
	return out
}

// MarkApplied flips the listed entries to applied. Entries stay in the
// bucket so HasDuplicate still sees them.
func (b *Buffer) MarkApplied(key shared.PairKey, sequences []int64) {
	if len(sequences) == 0 {
		return
	}

	applied := make(map[int64]bool, len(sequences))
	for _, seq := range sequences {
		applied[seq] = true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, entry := range b.pairs[key] {
		if applied[entry.Sequence] {
			entry.Applied = true
		}
	}
}

// HasDuplicate reports structural equality against any buffered entry,
// applied or not.
func (b *Buffer) HasDuplicate(key shared.PairKey, cand webrtc.ICECandidateInit) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, entry := range b.pairs[key] {
		if sameCandidate(entry.Candidate, cand) {
			return true
		}
	}
	return false
}

func sameCandidate(a, b webrtc.ICECandidateInit) bool {
	if a.Candidate != b.Candidate {
		return false
	}
	if !equalPtr(a.SDPMid, b.SDPMid) {
		return false
	}
	return equalPtr(a.SDPMLineIndex, b.SDPMLineIndex)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Clear drops the pair's entire bucket.
func (b *Buffer) Clear(key shared.PairKey) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pairs, key)
}

// ClearPeer drops every bucket in the room that involves the user.
func (b *Buffer) ClearPeer(roomID, userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key := range b.pairs {
		if key.RoomID == roomID && (key.LocalUserID == userID || key.RemoteUserID == userID) {
			delete(b.pairs, key)
		}
	}
}

// ClearRoom drops every bucket belonging to the room.
func (b *Buffer) ClearRoom(roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for key := range b.pairs {
		if key.RoomID == roomID {
			delete(b.pairs, key)
		}
	}
}

// CleanupStale removes buckets whose entries have ALL aged past the
// staleness threshold. One recent entry keeps the whole bucket; partial
// staleness never triggers partial removal. Returns the number of
// buckets removed.
func (b *Buffer) CleanupStale() int {
	cutoff := time.Now().Add(-b.staleAfter)

	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for key, bucket := range b.pairs {
		if len(bucket) == 0 {
			delete(b.pairs, key)
			continue
		}
		allStale := true
		for _, entry := range bucket {
			if entry.ReceivedAt.After(cutoff) {
				allStale = false
				break
			}
		}
		if allStale {
			delete(b.pairs, key)
			removed++
		}
	}

	if removed > 0 {
		b.log.Info("removed stale candidate buckets", "count", removed)
	}
	return removed
}

// PairCount reports how many pairs currently hold buffered candidates.
func (b *Buffer) PairCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.pairs)
}

// CandidateCount reports the total number of buffered entries.
func (b *Buffer) CandidateCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	for _, bucket := range b.pairs {
		total += len(bucket)
	}
	return total
}
