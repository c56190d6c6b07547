package room

import (
	"testing"

	"github.com/eleven-am/conference-signaling/internal/shared"
)

func newTestRoom(capacity int) *Room {
	return &Room{
		ID:              "room_test",
		Name:            "test",
		MaxParticipants: capacity,
		IsActive:        true,
		Participants:    make(map[string]*Participant),
	}
}

func TestRegistry_Join(t *testing.T) {
	reg := NewRegistry()
	r := newTestRoom(10)

	p, err := reg.Join(r, JoinRequest{UserID: "alice", ConnectionID: "conn-1", Audio: true, Video: false})
	if err != nil {
		t.Fatalf("Join error: %v", err)
	}
	if p.UserID != "alice" {
		t.Errorf("expected alice, got %s", p.UserID)
	}
	if !p.Audio || p.Video {
		t.Error("media flags should match the request")
	}
	if p.JoinedAt.IsZero() {
		t.Error("joined timestamp should be set")
	}
	if r.ParticipantCount() != 1 {
		t.Errorf("expected 1 participant, got %d", r.ParticipantCount())
	}
}

func TestRegistry_Join_Duplicate(t *testing.T) {
	reg := NewRegistry()
	r := newTestRoom(10)

	reg.Join(r, JoinRequest{UserID: "alice"})
	_, err := reg.Join(r, JoinRequest{UserID: "alice", ConnectionID: "conn-2"})
	if err != shared.ErrAlreadyJoined {
		t.Fatalf("expected ErrAlreadyJoined, got %v", err)
	}
	if r.ParticipantCount() != 1 {
		t.Error("rejected join must not mutate membership")
	}
}

func TestRegistry_Join_CapacityExceeded(t *testing.T) {
	reg := NewRegistry()
	r := newTestRoom(2)

	reg.Join(r, JoinRequest{UserID: "a"})
	reg.Join(r, JoinRequest{UserID: "b"})

	_, err := reg.Join(r, JoinRequest{UserID: "c"})
	if err != shared.ErrCapacityExceeded {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if r.ParticipantCount() != 2 {
		t.Error("full room join must not mutate membership")
	}
}

func TestRegistry_Leave_Idempotent(t *testing.T) {
	reg := NewRegistry()
	r := newTestRoom(10)

	reg.Join(r, JoinRequest{UserID: "alice"})
	reg.Leave(r, "alice")
	reg.Leave(r, "alice")

	if r.ParticipantCount() != 0 {
		t.Error("leave should remove the participant")
	}
}

func TestRegistry_UpdateMedia_Partial(t *testing.T) {
	reg := NewRegistry()
	r := newTestRoom(10)
	reg.Join(r, JoinRequest{UserID: "alice", Audio: true, Video: true})

	screen := true
	p, err := reg.UpdateMedia(r, "alice", MediaUpdate{Screen: &screen})
	if err != nil {
		t.Fatalf("UpdateMedia error: %v", err)
	}
	if !p.Audio || !p.Video {
		t.Error("unspecified fields must be left unchanged")
	}
	if !p.Screen {
		t.Error("screen flag should be updated")
	}

	audio := false
	p, _ = reg.UpdateMedia(r, "alice", MediaUpdate{Audio: &audio})
	if p.Audio {
		t.Error("audio flag should be updated")
	}
	if !p.Screen {
		t.Error("screen flag should persist")
	}
}

func TestRegistry_UpdateMedia_NotFound(t *testing.T) {
	reg := NewRegistry()
	r := newTestRoom(10)

	_, err := reg.UpdateMedia(r, "ghost", MediaUpdate{})
	if err != shared.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRegistry_List_JoinOrder(t *testing.T) {
	reg := NewRegistry()
	r := newTestRoom(10)

	for _, id := range []string{"c", "a", "b"} {
		reg.Join(r, JoinRequest{UserID: id})
	}

	list := reg.List(r)
	if len(list) != 3 {
		t.Fatalf("expected 3 participants, got %d", len(list))
	}
	want := []string{"c", "a", "b"}
	for i, p := range list {
		if p.UserID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], p.UserID)
		}
	}
}

func TestRegistry_Get(t *testing.T) {
	reg := NewRegistry()
	r := newTestRoom(10)
	reg.Join(r, JoinRequest{UserID: "alice"})

	if _, err := reg.Get(r, "alice"); err != nil {
		t.Errorf("Get error: %v", err)
	}
	if _, err := reg.Get(r, "bob"); err != shared.ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
