package room

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/eleven-am/conference-signaling/internal/shared"
)

func newTestDirectory(cfg Config) *Directory {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDirectory(cfg, nil, NewRegistry(), logger)
}

func TestDirectory_CreateRoom(t *testing.T) {
	d := newTestDirectory(Config{})
	ctx := context.Background()

	r, err := d.CreateRoom(ctx, Spec{Name: "standup", Description: "daily"}, "alice")
	if err != nil {
		t.Fatalf("CreateRoom error: %v", err)
	}
	if r.ID == "" {
		t.Error("room should get a fresh id")
	}
	if r.MaxParticipants != DefaultMaxParticipants {
		t.Errorf("expected default capacity %d, got %d", DefaultMaxParticipants, r.MaxParticipants)
	}
	if !r.IsActive {
		t.Error("new room should be active")
	}
	if r.CreatedBy != "alice" {
		t.Errorf("expected creator alice, got %s", r.CreatedBy)
	}
}

func TestDirectory_CreateRoom_ExplicitCapacity(t *testing.T) {
	d := newTestDirectory(Config{})
	r, _ := d.CreateRoom(context.Background(), Spec{Name: "x", MaxParticipants: 4}, "alice")
	if r.MaxParticipants != 4 {
		t.Errorf("expected capacity 4, got %d", r.MaxParticipants)
	}
}

func TestDirectory_GetRoom(t *testing.T) {
	d := newTestDirectory(Config{})
	ctx := context.Background()

	r, _ := d.CreateRoom(ctx, Spec{Name: "x"}, "alice")

	got, err := d.GetRoom(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetRoom error: %v", err)
	}
	if got.ID != r.ID {
		t.Errorf("expected %s, got %s", r.ID, got.ID)
	}
}

func TestDirectory_GetRoom_NotFound(t *testing.T) {
	d := newTestDirectory(Config{})
	if _, err := d.GetRoom(context.Background(), "room_missing"); err != shared.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDirectory_ListRooms(t *testing.T) {
	d := newTestDirectory(Config{})
	ctx := context.Background()

	d.CreateRoom(ctx, Spec{Name: "one"}, "a")
	d.CreateRoom(ctx, Spec{Name: "two"}, "b")

	rooms := d.ListRooms()
	if len(rooms) != 2 {
		t.Fatalf("expected 2 rooms, got %d", len(rooms))
	}
	if rooms[0].Name != "one" || rooms[1].Name != "two" {
		t.Error("rooms should list oldest first")
	}
}

func TestDirectory_DeleteRoom(t *testing.T) {
	d := newTestDirectory(Config{})
	ctx := context.Background()

	r, _ := d.CreateRoom(ctx, Spec{Name: "x"}, "alice")
	if err := d.DeleteRoom(ctx, r.ID); err != nil {
		t.Fatalf("DeleteRoom error: %v", err)
	}
	if r.IsActive {
		t.Error("deleted room should be inactive")
	}
	if _, err := d.GetRoom(ctx, r.ID); err != shared.ErrNotFound {
		t.Error("deleted room should be gone from memory")
	}
}

func TestDirectory_DeleteRoom_NotFound(t *testing.T) {
	d := newTestDirectory(Config{})
	if err := d.DeleteRoom(context.Background(), "room_missing"); err != shared.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDirectory_CapacityScenario(t *testing.T) {
	d := newTestDirectory(Config{})
	ctx := context.Background()

	r, _ := d.CreateRoom(ctx, Spec{Name: "x", MaxParticipants: 2}, "alice")

	if _, err := d.Join(ctx, r.ID, JoinRequest{UserID: "userA"}); err != nil {
		t.Fatalf("userA join error: %v", err)
	}
	if r.ParticipantCount() != 1 {
		t.Fatalf("expected 1 participant, got %d", r.ParticipantCount())
	}

	if _, err := d.Join(ctx, r.ID, JoinRequest{UserID: "userB"}); err != nil {
		t.Fatalf("userB join error: %v", err)
	}
	if r.ParticipantCount() != 2 {
		t.Fatalf("expected 2 participants, got %d", r.ParticipantCount())
	}

	if _, err := d.Join(ctx, r.ID, JoinRequest{UserID: "userC"}); err != shared.ErrCapacityExceeded {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if r.ParticipantCount() != 2 {
		t.Fatal("failed join must not mutate membership")
	}

	if err := d.Leave(ctx, r.ID, "userA"); err != nil {
		t.Fatalf("leave error: %v", err)
	}
	if r.ParticipantCount() != 1 {
		t.Fatalf("expected 1 participant after leave, got %d", r.ParticipantCount())
	}

	if _, err := d.Join(ctx, r.ID, JoinRequest{UserID: "userC"}); err != nil {
		t.Fatalf("userC rejoin error: %v", err)
	}
	if r.ParticipantCount() != 2 {
		t.Fatalf("expected 2 participants, got %d", r.ParticipantCount())
	}
}

func TestDirectory_EmptyRoomReaped(t *testing.T) {
	d := newTestDirectory(Config{EmptyRoomGrace: 20 * time.Millisecond})
	ctx := context.Background()

	r, _ := d.CreateRoom(ctx, Spec{Name: "x"}, "alice")
	d.Join(ctx, r.ID, JoinRequest{UserID: "alice"})
	d.Leave(ctx, r.ID, "alice")

	time.Sleep(100 * time.Millisecond)

	if _, err := d.GetRoom(ctx, r.ID); err != shared.ErrNotFound {
		t.Error("empty room should be reaped after the grace period")
	}
}

func TestDirectory_RejoinCancelsReap(t *testing.T) {
	d := newTestDirectory(Config{EmptyRoomGrace: 30 * time.Millisecond})
	ctx := context.Background()

	r, _ := d.CreateRoom(ctx, Spec{Name: "x"}, "alice")
	d.Join(ctx, r.ID, JoinRequest{UserID: "alice"})
	d.Leave(ctx, r.ID, "alice")

	// Rejoin inside the grace window cancels the pending deletion.
	if _, err := d.Join(ctx, r.ID, JoinRequest{UserID: "alice"}); err != nil {
		t.Fatalf("rejoin error: %v", err)
	}

	time.Sleep(100 * time.Millisecond)

	if _, err := d.GetRoom(ctx, r.ID); err != nil {
		t.Error("rejoin during the grace window must keep the room alive")
	}
}

func TestDirectory_UpdateMedia(t *testing.T) {
	d := newTestDirectory(Config{})
	ctx := context.Background()

	r, _ := d.CreateRoom(ctx, Spec{Name: "x"}, "alice")
	d.Join(ctx, r.ID, JoinRequest{UserID: "alice", Audio: true})

	video := true
	p, err := d.UpdateMedia(ctx, r.ID, "alice", MediaUpdate{Video: &video})
	if err != nil {
		t.Fatalf("UpdateMedia error: %v", err)
	}
	if !p.Video || !p.Audio {
		t.Error("video should be set and audio untouched")
	}
}

func TestDirectory_Participants(t *testing.T) {
	d := newTestDirectory(Config{})
	ctx := context.Background()

	r, _ := d.CreateRoom(ctx, Spec{Name: "x"}, "alice")
	d.Join(ctx, r.ID, JoinRequest{UserID: "b"})
	d.Join(ctx, r.ID, JoinRequest{UserID: "a"})

	list, err := d.Participants(ctx, r.ID)
	if err != nil {
		t.Fatalf("Participants error: %v", err)
	}
	if len(list) != 2 || list[0].UserID != "b" || list[1].UserID != "a" {
		t.Errorf("expected join order [b a], got %+v", list)
	}
}

func TestDirectory_Counts(t *testing.T) {
	d := newTestDirectory(Config{})
	ctx := context.Background()

	r1, _ := d.CreateRoom(ctx, Spec{Name: "x"}, "a")
	r2, _ := d.CreateRoom(ctx, Spec{Name: "y"}, "b")
	d.Join(ctx, r1.ID, JoinRequest{UserID: "u1"})
	d.Join(ctx, r2.ID, JoinRequest{UserID: "u2"})
	d.Join(ctx, r2.ID, JoinRequest{UserID: "u3"})

	if d.RoomCount() != 2 {
		t.Errorf("expected 2 rooms, got %d", d.RoomCount())
	}
	if d.ParticipantCount() != 3 {
		t.Errorf("expected 3 participants, got %d", d.ParticipantCount())
	}
}
