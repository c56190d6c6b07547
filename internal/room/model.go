package room

import (
	"sync"
	"time"
)

const DefaultMaxParticipants = 10

// Room is a conference room and its membership. Mutations go through the
// Registry; the room's mutex guards the participant map.
type Room struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	CreatedBy       string    `json:"created_by"`
	MaxParticipants int       `json:"max_participants"`
	CreatedAt       time.Time `json:"created_at"`
	IsActive        bool      `json:"is_active"`

	Participants map[string]*Participant `json:"participants"`

	mu      sync.RWMutex
	joinSeq int
}

// Participant is one user's presence in a room. A userID appears at most
// once per room.
type Participant struct {
	UserID       string    `json:"user_id"`
	ConnectionID string    `json:"connection_id"`
	Audio        bool      `json:"audio"`
	Video        bool      `json:"video"`
	Screen       bool      `json:"screen"`
	JoinedAt     time.Time `json:"joined_at"`

	seq int
}

// Spec carries the caller-supplied fields of a new room.
type Spec struct {
	Name            string
	Description     string
	MaxParticipants int
}

// JoinRequest carries one user's join parameters.
type JoinRequest struct {
	UserID       string
	ConnectionID string
	Audio        bool
	Video        bool
}

// MediaUpdate sets only the flags that are non-nil; absent fields are
// left unchanged.
type MediaUpdate struct {
	Audio  *bool
	Video  *bool
	Screen *bool
}

// ParticipantCount returns the current membership size.
func (r *Room) ParticipantCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.Participants)
}

// IsEmpty reports whether the room has no participants.
func (r *Room) IsEmpty() bool {
	return r.ParticipantCount() == 0
}
