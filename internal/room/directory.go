package room

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/eleven-am/conference-signaling/internal/shared"
)

const DefaultEmptyRoomGrace = 5 * time.Minute

type Config struct {
	// DefaultCapacity applies when a room spec omits maxParticipants.
	DefaultCapacity int

	// EmptyRoomGrace is how long an empty room survives before it is
	// reaped, tolerating transient reconnects.
	EmptyRoomGrace time.Duration
}

func (c Config) withDefaults() Config {
	if c.DefaultCapacity <= 0 {
		c.DefaultCapacity = DefaultMaxParticipants
	}
	if c.EmptyRoomGrace <= 0 {
		c.EmptyRoomGrace = DefaultEmptyRoomGrace
	}
	return c
}

// Directory owns the room map. The in-memory view is authoritative; the
// optional store is a best-effort mirror whose failures are logged and
// never surfaced. A nil store means pure in-memory operation.
type Directory struct {
	cfg      Config
	store    *Store
	registry *Registry
	log      *slog.Logger

	mu         sync.RWMutex
	rooms      map[string]*Room
	reapTimers map[string]*time.Timer
}

func NewDirectory(cfg Config, store *Store, registry *Registry, log *slog.Logger) *Directory {
	if log == nil {
		log = slog.Default()
	}
	return &Directory{
		cfg:        cfg.withDefaults(),
		store:      store,
		registry:   registry,
		log:        log.With("component", "room_directory"),
		rooms:      make(map[string]*Room),
		reapTimers: make(map[string]*time.Timer),
	}
}

// CreateRoom assigns a fresh id, applies the capacity default, marks the
// room active, and mirrors it.
func (d *Directory) CreateRoom(ctx context.Context, spec Spec, creatorID string) (*Room, error) {
	capacity := spec.MaxParticipants
	if capacity <= 0 {
		capacity = d.cfg.DefaultCapacity
	}

	r := &Room{
		ID:              shared.NewID("room_"),
		Name:            spec.Name,
		Description:     spec.Description,
		CreatedBy:       creatorID,
		MaxParticipants: capacity,
		CreatedAt:       time.Now(),
		IsActive:        true,
		Participants:    make(map[string]*Participant),
	}

	d.mu.Lock()
	d.rooms[r.ID] = r
	d.mu.Unlock()

	d.mirror(r)
	d.log.Info("room created", "room_id", r.ID, "created_by", creatorID, "max_participants", capacity)
	return r, nil
}

// GetRoom checks local memory first; on a miss it lazily reconstructs the
// room from the mirror, when one is configured, and caches it. Absence of
// a store is not an error, only the absence of a fallback.
func (d *Directory) GetRoom(ctx context.Context, id string) (*Room, error) {
	d.mu.RLock()
	r, ok := d.rooms[id]
	d.mu.RUnlock()
	if ok {
		return r, nil
	}

	if d.store == nil {
		return nil, shared.ErrNotFound
	}

	loaded, err := d.store.LoadRoom(ctx, id)
	if err != nil {
		if err != shared.ErrNotFound {
			d.log.Warn("room mirror read failed", "room_id", id, "error", err)
		}
		return nil, shared.ErrNotFound
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if existing, ok := d.rooms[id]; ok {
		return existing, nil
	}
	d.rooms[id] = loaded
	return loaded, nil
}

// ListRooms returns the active rooms, oldest first.
func (d *Directory) ListRooms() []*Room {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*Room, 0, len(d.rooms))
	for _, r := range d.rooms {
		if r.IsActive {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// DeleteRoom marks the room inactive, drops it from memory, and removes
// the mirror record best-effort.
func (d *Directory) DeleteRoom(ctx context.Context, id string) error {
	d.mu.Lock()
	r, ok := d.rooms[id]
	if ok {
		delete(d.rooms, id)
	}
	d.cancelReapLocked(id)
	d.mu.Unlock()

	if !ok {
		return shared.ErrNotFound
	}

	r.mu.Lock()
	r.IsActive = false
	r.mu.Unlock()

	if d.store != nil {
		go func() {
			if err := d.store.DeleteRoom(context.Background(), id); err != nil {
				d.log.Warn("room mirror delete failed", "room_id", id, "error", err)
			}
		}()
	}

	d.log.Info("room deleted", "room_id", id)
	return nil
}

// Join adds the user, enforcing the room-level capacity invariant, and
// cancels any deletion pending from an earlier empty period.
func (d *Directory) Join(ctx context.Context, roomID string, req JoinRequest) (*Participant, error) {
	r, err := d.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	p, err := d.registry.Join(r, req)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.cancelReapLocked(roomID)
	d.mu.Unlock()

	d.mirror(r)
	d.log.Info("participant joined", "room_id", roomID, "user_id", req.UserID)
	return p, nil
}

// Leave removes the user; when the last participant leaves, deletion is
// scheduled after the grace period.
func (d *Directory) Leave(ctx context.Context, roomID, userID string) error {
	r, err := d.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}

	d.registry.Leave(r, userID)

	if r.IsEmpty() {
		d.scheduleReap(roomID)
	}

	d.mirror(r)
	d.log.Info("participant left", "room_id", roomID, "user_id", userID)
	return nil
}

// UpdateMedia applies a partial media-flag update and mirrors the result.
func (d *Directory) UpdateMedia(ctx context.Context, roomID, userID string, upd MediaUpdate) (*Participant, error) {
	r, err := d.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}

	p, err := d.registry.UpdateMedia(r, userID, upd)
	if err != nil {
		return nil, err
	}

	d.mirror(r)
	return p, nil
}

// Participants lists the room's members in join order.
func (d *Directory) Participants(ctx context.Context, roomID string) ([]*Participant, error) {
	r, err := d.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return d.registry.List(r), nil
}

// RoomCount reports the number of rooms held in memory.
func (d *Directory) RoomCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.rooms)
}

// ParticipantCount reports total membership across all rooms.
func (d *Directory) ParticipantCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	total := 0
	for _, r := range d.rooms {
		total += r.ParticipantCount()
	}
	return total
}

// scheduleReap arms a cancellable deferred deletion for the room. Any
// join during the grace window cancels it; rescheduling replaces an
// already-armed timer.
func (d *Directory) scheduleReap(roomID string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cancelReapLocked(roomID)
	d.reapTimers[roomID] = time.AfterFunc(d.cfg.EmptyRoomGrace, func() {
		d.reap(roomID)
	})
}

// cancelReapLocked must be called with d.mu held.
func (d *Directory) cancelReapLocked(roomID string) {
	if timer, ok := d.reapTimers[roomID]; ok {
		timer.Stop()
		delete(d.reapTimers, roomID)
	}
}

func (d *Directory) reap(roomID string) {
	d.mu.Lock()
	delete(d.reapTimers, roomID)
	r, ok := d.rooms[roomID]
	d.mu.Unlock()

	// The room may have been deleted, or repopulated by a join that
	// raced the timer firing.
	if !ok || !r.IsEmpty() {
		return
	}

	d.log.Info("reaping empty room", "room_id", roomID)
	if err := d.DeleteRoom(context.Background(), roomID); err != nil {
		d.log.Warn("empty room reap failed", "room_id", roomID, "error", err)
	}
}

// mirror writes the room through to the store as a detached side effect.
// Failures are observable only in logs; the in-memory result already
// returned to the caller is authoritative.
func (d *Directory) mirror(r *Room) {
	if d.store == nil {
		return
	}
	go func() {
		if err := d.store.SaveRoom(context.Background(), r); err != nil {
			d.log.Warn("room mirror write failed", "room_id", r.ID, "error", err)
		}
	}()
}
