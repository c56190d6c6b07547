package room

import (
	"sort"
	"time"

	"github.com/eleven-am/conference-signaling/internal/shared"
)

// Registry manages per-room membership and media flags. Each operation
// is atomic under the room's lock, so the capacity invariant holds
// across any interleaving of joins and leaves.
type Registry struct{}

func NewRegistry() *Registry {
	return &Registry{}
}

// Join adds the user to the room. A full room returns ErrCapacityExceeded
// without mutating membership; a userID already present returns
// ErrAlreadyJoined — a second join is rejected, not merged.
func (g *Registry) Join(r *Room, req JoinRequest) (*Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.Participants) >= r.MaxParticipants {
		return nil, shared.ErrCapacityExceeded
	}
	if _, exists := r.Participants[req.UserID]; exists {
		return nil, shared.ErrAlreadyJoined
	}

	r.joinSeq++
	p := &Participant{
		UserID:       req.UserID,
		ConnectionID: req.ConnectionID,
		Audio:        req.Audio,
		Video:        req.Video,
		JoinedAt:     time.Now(),
		seq:          r.joinSeq,
	}
	r.Participants[req.UserID] = p
	return p, nil
}

// Leave removes the user if present; leaving twice is a no-op.
func (g *Registry) Leave(r *Room, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.Participants, userID)
}

// UpdateMedia applies the non-nil fields of the update.
func (g *Registry) UpdateMedia(r *Room, userID string, upd MediaUpdate) (*Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.Participants[userID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	if upd.Audio != nil {
		p.Audio = *upd.Audio
	}
	if upd.Video != nil {
		p.Video = *upd.Video
	}
	if upd.Screen != nil {
		p.Screen = *upd.Screen
	}
	return p, nil
}

// Get returns the participant record for userID.
func (g *Registry) Get(r *Room, userID string) (*Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.Participants[userID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return p, nil
}

// List returns participants in join order.
func (g *Registry) List(r *Room) []*Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Participant, 0, len(r.Participants))
	for _, p := range r.Participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].seq != out[j].seq {
			return out[i].seq < out[j].seq
		}
		return out[i].JoinedAt.Before(out[j].JoinedAt)
	})
	return out
}
