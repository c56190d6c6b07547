package room

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/eleven-am/conference-signaling/internal/shared"
)

const (
	DefaultMirrorTTL = 24 * time.Hour

	roomKeyPrefix = "room:"
	roomIndexKey  = "rooms:index"
)

// Store mirrors room state to redis so rooms self-clean after process
// crashes. Every record carries a TTL; the index set tracks known room
// ids for cross-instance listing.
type Store struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewStore(redisClient *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultMirrorTTL
	}
	return &Store{redis: redisClient, ttl: ttl}
}

// roomRecord is the wire form of a Room; participants travel as a slice
// so join order survives the round trip.
type roomRecord struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Description     string        `json:"description,omitempty"`
	CreatedBy       string        `json:"created_by"`
	MaxParticipants int           `json:"max_participants"`
	CreatedAt       time.Time     `json:"created_at"`
	IsActive        bool          `json:"is_active"`
	Participants    []Participant `json:"participants"`
}

func snapshot(r *Room) roomRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec := roomRecord{
		ID:              r.ID,
		Name:            r.Name,
		Description:     r.Description,
		CreatedBy:       r.CreatedBy,
		MaxParticipants: r.MaxParticipants,
		CreatedAt:       r.CreatedAt,
		IsActive:        r.IsActive,
		Participants:    make([]Participant, 0, len(r.Participants)),
	}
	for _, p := range r.Participants {
		rec.Participants = append(rec.Participants, *p)
	}
	sort.Slice(rec.Participants, func(i, j int) bool {
		return rec.Participants[i].seq < rec.Participants[j].seq
	})
	return rec
}

func (rec roomRecord) toRoom() *Room {
	r := &Room{
		ID:              rec.ID,
		Name:            rec.Name,
		Description:     rec.Description,
		CreatedBy:       rec.CreatedBy,
		MaxParticipants: rec.MaxParticipants,
		CreatedAt:       rec.CreatedAt,
		IsActive:        rec.IsActive,
		Participants:    make(map[string]*Participant, len(rec.Participants)),
	}
	for i := range rec.Participants {
		p := rec.Participants[i]
		p.seq = i + 1
		r.Participants[p.UserID] = &p
	}
	r.joinSeq = len(rec.Participants)
	return r
}

// SaveRoom writes the room through with a TTL and registers it in the
// room index.
func (s *Store) SaveRoom(ctx context.Context, r *Room) error {
	data, err := json.Marshal(snapshot(r))
	if err != nil {
		return err
	}

	pipe := s.redis.Pipeline()
	pipe.Set(ctx, roomKeyPrefix+r.ID, data, s.ttl)
	pipe.SAdd(ctx, roomIndexKey, r.ID)
	pipe.Expire(ctx, roomIndexKey, s.ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// LoadRoom reconstructs a room from its mirrored record.
func (s *Store) LoadRoom(ctx context.Context, id string) (*Room, error) {
	data, err := s.redis.Get(ctx, roomKeyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, shared.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec roomRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return rec.toRoom(), nil
}

// DeleteRoom removes the record and its index entry.
func (s *Store) DeleteRoom(ctx context.Context, id string) error {
	pipe := s.redis.Pipeline()
	pipe.Del(ctx, roomKeyPrefix+id)
	pipe.SRem(ctx, roomIndexKey, id)
	_, err := pipe.Exec(ctx)
	return err
}

// ListRoomIDs returns the ids currently in the room index.
func (s *Store) ListRoomIDs(ctx context.Context) ([]string, error) {
	return s.redis.SMembers(ctx, roomIndexKey).Result()
}
