package gateway

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/eleven-am/conference-signaling/internal/dto"
	"github.com/eleven-am/conference-signaling/internal/icebuffer"
	"github.com/eleven-am/conference-signaling/internal/peertrack"
	"github.com/eleven-am/conference-signaling/internal/room"
	"github.com/eleven-am/conference-signaling/internal/signaling"
)

func newTestHandler() *Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := room.NewRegistry()
	directory := room.NewDirectory(room.Config{}, nil, registry, logger)
	signalTracker := signaling.NewTracker(signaling.Config{}, logger)
	buffer := icebuffer.NewBuffer(icebuffer.Config{}, logger)
	peers := peertrack.NewTracker(peertrack.Config{}, logger)
	ws := NewWSServer(directory, signalTracker, buffer, peers, 16, logger)
	return NewHandler(directory, registry, ws, logger)
}

func doRequest(h *Handler, method, path, body string) *httptest.ResponseRecorder {
	e := echo.New()
	h.RegisterRoutes(e.Group("/api/v1"))

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func createTestRoom(t *testing.T, h *Handler, body string) dto.RoomResponse {
	rec := doRequest(h, http.MethodPost, "/api/v1/rooms", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create room: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp dto.RoomResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	return resp
}

func TestHandler_CreateRoom(t *testing.T) {
	h := newTestHandler()
	resp := createTestRoom(t, h, `{"name":"standup","creator_id":"alice"}`)

	if resp.ID == "" {
		t.Error("room should get an id")
	}
	if resp.MaxParticipants != room.DefaultMaxParticipants {
		t.Errorf("expected default capacity, got %d", resp.MaxParticipants)
	}
	if !resp.IsActive {
		t.Error("room should be active")
	}
}

func TestHandler_CreateRoom_Validation(t *testing.T) {
	h := newTestHandler()

	rec := doRequest(h, http.MethodPost, "/api/v1/rooms", `{"creator_id":"alice"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing name: expected 400, got %d", rec.Code)
	}

	rec = doRequest(h, http.MethodPost, "/api/v1/rooms", `{"name":"x"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing creator: expected 400, got %d", rec.Code)
	}
}

func TestHandler_GetRoom(t *testing.T) {
	h := newTestHandler()
	created := createTestRoom(t, h, `{"name":"standup","creator_id":"alice"}`)

	rec := doRequest(h, http.MethodGet, "/api/v1/rooms/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doRequest(h, http.MethodGet, "/api/v1/rooms/room_missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_ListRooms(t *testing.T) {
	h := newTestHandler()
	createTestRoom(t, h, `{"name":"one","creator_id":"a"}`)
	createTestRoom(t, h, `{"name":"two","creator_id":"b"}`)

	rec := doRequest(h, http.MethodGet, "/api/v1/rooms", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp dto.RoomListResponse
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Total != 2 {
		t.Errorf("expected 2 rooms, got %d", resp.Total)
	}
}

func TestHandler_Join_CapacityConflict(t *testing.T) {
	h := newTestHandler()
	created := createTestRoom(t, h, `{"name":"small","creator_id":"a","max_participants":1}`)

	rec := doRequest(h, http.MethodPost, "/api/v1/rooms/"+created.ID+"/join", `{"user_id":"alice"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("first join: expected 200, got %d", rec.Code)
	}

	rec = doRequest(h, http.MethodPost, "/api/v1/rooms/"+created.ID+"/join", `{"user_id":"bob"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("full room: expected 409, got %d", rec.Code)
	}
}

func TestHandler_Join_Duplicate(t *testing.T) {
	h := newTestHandler()
	created := createTestRoom(t, h, `{"name":"x","creator_id":"a"}`)

	doRequest(h, http.MethodPost, "/api/v1/rooms/"+created.ID+"/join", `{"user_id":"alice"}`)
	rec := doRequest(h, http.MethodPost, "/api/v1/rooms/"+created.ID+"/join", `{"user_id":"alice"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate join: expected 409, got %d", rec.Code)
	}
}

func TestHandler_Leave(t *testing.T) {
	h := newTestHandler()
	created := createTestRoom(t, h, `{"name":"x","creator_id":"a"}`)
	doRequest(h, http.MethodPost, "/api/v1/rooms/"+created.ID+"/join", `{"user_id":"alice"}`)

	rec := doRequest(h, http.MethodPost, "/api/v1/rooms/"+created.ID+"/leave", `{"user_id":"alice"}`)
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}

	getRec := doRequest(h, http.MethodGet, "/api/v1/rooms/"+created.ID, "")
	var resp dto.RoomResponse
	json.Unmarshal(getRec.Body.Bytes(), &resp)
	if len(resp.Participants) != 0 {
		t.Errorf("expected empty room, got %d participants", len(resp.Participants))
	}
}

func TestHandler_UpdateMedia(t *testing.T) {
	h := newTestHandler()
	created := createTestRoom(t, h, `{"name":"x","creator_id":"a"}`)
	doRequest(h, http.MethodPost, "/api/v1/rooms/"+created.ID+"/join", `{"user_id":"alice","audio":true}`)

	rec := doRequest(h, http.MethodPatch, "/api/v1/rooms/"+created.ID+"/participants/alice/media", `{"screen":true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var p dto.ParticipantResponse
	json.Unmarshal(rec.Body.Bytes(), &p)
	if !p.Screen {
		t.Error("screen should be enabled")
	}
	if !p.Audio {
		t.Error("audio should be untouched")
	}
}

func TestHandler_DeleteRoom(t *testing.T) {
	h := newTestHandler()
	created := createTestRoom(t, h, `{"name":"x","creator_id":"a"}`)

	rec := doRequest(h, http.MethodDelete, "/api/v1/rooms/"+created.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}

	rec = doRequest(h, http.MethodDelete, "/api/v1/rooms/"+created.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", rec.Code)
	}
}
