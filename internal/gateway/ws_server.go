package gateway

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/eleven-am/conference-signaling/internal/icebuffer"
	"github.com/eleven-am/conference-signaling/internal/peertrack"
	"github.com/eleven-am/conference-signaling/internal/room"
	"github.com/eleven-am/conference-signaling/internal/shared"
	"github.com/eleven-am/conference-signaling/internal/signaling"
)

type connKey struct {
	roomID string
	userID string
}

// WSServer attaches participants to the signaling plane and routes each
// event through the room directory and the three per-pair trackers.
// Authentication and stable userId assignment belong to the upstream
// transport; this server trusts the identifiers it is handed.
type WSServer struct {
	directory *room.Directory
	signaling *signaling.Tracker
	buffer    *icebuffer.Buffer
	peers     *peertrack.Tracker
	logger    *slog.Logger
	sendBuf   int

	mu    sync.RWMutex
	conns map[connKey]*PeerConn
}

func NewWSServer(
	directory *room.Directory,
	signalTracker *signaling.Tracker,
	buffer *icebuffer.Buffer,
	peers *peertrack.Tracker,
	sendBuf int,
	logger *slog.Logger,
) *WSServer {
	return &WSServer{
		directory: directory,
		signaling: signalTracker,
		buffer:    buffer,
		peers:     peers,
		logger:    logger.With("component", "ws_server"),
		sendBuf:   sendBuf,
		conns:     make(map[connKey]*PeerConn),
	}
}

// HandleWS upgrades the request and runs the connection until the peer
// departs. Expected query parameters: room_id, user_id, plus optional
// audio/video flags for the initial media state.
func (s *WSServer) HandleWS(c echo.Context) error {
	roomID := c.QueryParam("room_id")
	userID := c.QueryParam("user_id")
	if roomID == "" || userID == "" {
		return shared.BadRequest("missing_params", "room_id and user_id are required")
	}

	ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	conn := NewPeerConn(ws, roomID, userID, s.sendBuf, s.logger)

	joinReq := room.JoinRequest{
		UserID:       userID,
		ConnectionID: conn.ConnID(),
		Audio:        c.QueryParam("audio") != "false",
		Video:        c.QueryParam("video") != "false",
	}
	if _, err := s.directory.Join(c.Request().Context(), roomID, joinReq); err != nil {
		ws.SetWriteDeadline(time.Now().Add(writeWait))
		ws.WriteJSON(joinError(err))
		conn.Close()
		return nil
	}

	key := connKey{roomID: roomID, userID: userID}
	s.mu.Lock()
	s.conns[key] = conn
	s.mu.Unlock()

	s.broadcast(roomID, userID, &SignalMessage{
		Type:     SignalPeerJoined,
		RoomID:   roomID,
		SenderID: userID,
	})
	s.flushBufferedCandidates(conn)

	go conn.WriteLoop()
	conn.ReadLoop(func(msg *SignalMessage) {
		s.dispatch(conn, msg)
	})

	s.detach(conn)
	return nil
}

func joinError(err error) *SignalMessage {
	switch err {
	case shared.ErrCapacityExceeded:
		return errorMessage("room_full", "room is at capacity")
	case shared.ErrAlreadyJoined:
		return errorMessage("already_joined", "user is already in the room")
	case shared.ErrNotFound:
		return errorMessage("room_not_found", "no such room")
	default:
		return errorMessage("join_failed", "could not join room")
	}
}

// dispatch looks up the directed pair's trackers together and applies
// one signaling event.
func (s *WSServer) dispatch(conn *PeerConn, msg *SignalMessage) {
	if msg.TargetID == "" {
		switch msg.Type {
		case SignalMediaUpdate:
			s.handleMediaUpdate(conn, msg)
		default:
			conn.Send(errorMessage("missing_target", "target_id is required"))
		}
		return
	}

	senderKey := shared.PairKey{RoomID: msg.RoomID, LocalUserID: msg.SenderID, RemoteUserID: msg.TargetID}
	targetKey := senderKey.Reverse()

	switch msg.Type {
	case SignalOffer:
		s.peers.TrackConnection(senderKey, conn.ConnID())
		s.signaling.RecordOfferSent(senderKey, msg.Sequence)
		if !s.signaling.RecordOfferReceived(targetKey, msg.Sequence) {
			return
		}
		s.forward(msg)

	case SignalAnswer:
		s.signaling.RecordAnswerSent(senderKey, msg.Sequence)
		if !s.signaling.RecordAnswerReceived(targetKey, msg.Sequence) {
			return
		}
		s.forward(msg)

	case SignalCandidate:
		if msg.Candidate == nil {
			conn.Send(errorMessage("missing_candidate", "candidate payload is required"))
			return
		}
		if s.buffer.HasDuplicate(targetKey, *msg.Candidate) {
			return
		}
		seq := s.buffer.BufferCandidate(targetKey, *msg.Candidate)
		s.signaling.RecordICECandidate(targetKey)
		if s.deliverCandidates(targetKey) == 0 {
			s.logger.Debug("candidate buffered for offline peer",
				"room_id", msg.RoomID,
				"target_id", msg.TargetID,
				"sequence", seq,
			)
		}

	case SignalICERestart:
		if !s.peers.CanRestart(senderKey) {
			conn.Send(errorMessage("restart_not_permitted", "restart budget or cooldown not satisfied"))
			return
		}
		s.peers.RecordRestart(senderKey)
		s.signaling.RecordICERestart(senderKey)
		s.forward(msg)

	case SignalConnectionState:
		s.handleConnectionState(conn, senderKey, msg)

	case SignalICEState:
		s.peers.UpdateICEConnectionState(senderKey, msg.State)

	case SignalGatheringState:
		s.peers.UpdateICEGatheringState(senderKey, msg.State)

	case SignalConnected:
		s.signaling.RecordConnectionEstablished(senderKey)
		s.peers.UpdateConnectionState(senderKey, peertrack.ConnectionConnected)
		s.peers.RecordRestartComplete(senderKey)

	default:
		conn.Send(errorMessage("unknown_type", "unrecognized signal type"))
	}
}

func (s *WSServer) handleConnectionState(conn *PeerConn, key shared.PairKey, msg *SignalMessage) {
	switch msg.State {
	case peertrack.ConnectionFailed:
		s.peers.RecordFailure(key)
		if !s.signaling.RecordFailure(key) {
			conn.Send(errorMessage("retries_exhausted", "peer connection failed permanently"))
			return
		}
		if s.peers.CanRestart(key) {
			conn.Send(&SignalMessage{
				Type:     SignalICERestart,
				RoomID:   key.RoomID,
				SenderID: key.RemoteUserID,
				TargetID: key.LocalUserID,
			})
		}
	default:
		s.peers.UpdateConnectionState(key, msg.State)
	}
}

func (s *WSServer) handleMediaUpdate(conn *PeerConn, msg *SignalMessage) {
	upd := room.MediaUpdate{Audio: msg.Audio, Video: msg.Video, Screen: msg.Screen}
	if _, err := s.directory.UpdateMedia(context.Background(), msg.RoomID, msg.SenderID, upd); err != nil {
		conn.Send(errorMessage("media_update_failed", "participant not found"))
		return
	}
	s.broadcast(msg.RoomID, msg.SenderID, msg)
}

// forward delivers the envelope to its target when attached.
func (s *WSServer) forward(msg *SignalMessage) {
	s.mu.RLock()
	target, ok := s.conns[connKey{roomID: msg.RoomID, userID: msg.TargetID}]
	s.mu.RUnlock()
	if ok {
		target.Send(msg)
	}
}

// broadcast sends the envelope to every attached participant in the room
// except the sender.
func (s *WSServer) broadcast(roomID, senderID string, msg *SignalMessage) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for key, conn := range s.conns {
		if key.roomID == roomID && key.userID != senderID {
			conn.Send(msg)
		}
	}
}

// deliverCandidates drains the pair's pending candidates to the local
// side of the key, marking delivered entries applied. Returns how many
// were delivered.
func (s *WSServer) deliverCandidates(key shared.PairKey) int {
	s.mu.RLock()
	target, ok := s.conns[connKey{roomID: key.RoomID, userID: key.LocalUserID}]
	s.mu.RUnlock()
	if !ok {
		return 0
	}

	pending := s.buffer.BufferedCandidates(key)
	if len(pending) == 0 {
		return 0
	}

	applied := make([]int64, 0, len(pending))
	for _, entry := range pending {
		cand := entry.Candidate
		target.Send(&SignalMessage{
			Type:      SignalCandidate,
			RoomID:    key.RoomID,
			SenderID:  key.RemoteUserID,
			TargetID:  key.LocalUserID,
			Sequence:  entry.Sequence,
			Candidate: &cand,
		})
		applied = append(applied, entry.Sequence)
	}
	s.buffer.MarkApplied(key, applied)
	return len(applied)
}

// flushBufferedCandidates delivers candidates that arrived for this user
// while the peer was attaching.
func (s *WSServer) flushBufferedCandidates(conn *PeerConn) {
	participants, err := s.directory.Participants(context.Background(), conn.RoomID())
	if err != nil {
		return
	}
	for _, p := range participants {
		if p.UserID == conn.UserID() {
			continue
		}
		s.deliverCandidates(shared.PairKey{
			RoomID:       conn.RoomID(),
			LocalUserID:  conn.UserID(),
			RemoteUserID: p.UserID,
		})
	}
}

// detach removes the connection and tears down every per-pair record the
// departed peer owned, on both sides.
func (s *WSServer) detach(conn *PeerConn) {
	key := connKey{roomID: conn.RoomID(), userID: conn.UserID()}

	s.mu.Lock()
	if current, ok := s.conns[key]; !ok || current != conn {
		s.mu.Unlock()
		return
	}
	delete(s.conns, key)
	s.mu.Unlock()

	conn.Close()

	if err := s.directory.Leave(context.Background(), conn.RoomID(), conn.UserID()); err != nil && err != shared.ErrNotFound {
		s.logger.Warn("leave failed on detach", "room_id", conn.RoomID(), "user_id", conn.UserID(), "error", err)
	}
	s.signaling.CleanupPeer(conn.RoomID(), conn.UserID())
	s.buffer.ClearPeer(conn.RoomID(), conn.UserID())
	s.peers.CleanupPeer(conn.RoomID(), conn.UserID())

	s.broadcast(conn.RoomID(), conn.UserID(), &SignalMessage{
		Type:     SignalPeerLeft,
		RoomID:   conn.RoomID(),
		SenderID: conn.UserID(),
	})
}

// ConnCount reports the number of attached signaling connections.
func (s *WSServer) ConnCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// TeardownRoom detaches every connection in the room and clears all
// per-pair state. Used when a room is deleted administratively.
func (s *WSServer) TeardownRoom(roomID string) {
	s.mu.Lock()
	var doomed []*PeerConn
	for key, conn := range s.conns {
		if key.roomID == roomID {
			delete(s.conns, key)
			doomed = append(doomed, conn)
		}
	}
	s.mu.Unlock()

	for _, conn := range doomed {
		conn.Close()
	}
	s.signaling.CleanupRoom(roomID)
	s.buffer.ClearRoom(roomID)
	s.peers.CleanupRoom(roomID)
}
