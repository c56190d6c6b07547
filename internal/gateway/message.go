package gateway

import (
	"github.com/pion/webrtc/v4"
)

type SignalType string

const (
	SignalOffer           SignalType = "offer"
	SignalAnswer          SignalType = "answer"
	SignalCandidate       SignalType = "candidate"
	SignalICERestart      SignalType = "ice_restart"
	SignalConnectionState SignalType = "connection_state"
	SignalICEState        SignalType = "ice_state"
	SignalGatheringState  SignalType = "gathering_state"
	SignalConnected       SignalType = "connected"
	SignalMediaUpdate     SignalType = "media_update"
	SignalPeerJoined      SignalType = "peer_joined"
	SignalPeerLeft        SignalType = "peer_left"
	SignalError           SignalType = "error"
)

// SignalMessage is the control-plane envelope relayed between peers.
// SenderID is stamped by the server from the authenticated connection;
// the client-supplied value is ignored.
type SignalMessage struct {
	Type     SignalType `json:"type"`
	RoomID   string     `json:"room_id,omitempty"`
	SenderID string     `json:"sender_id,omitempty"`
	TargetID string     `json:"target_id,omitempty"`
	Sequence int64      `json:"sequence,omitempty"`

	SDP       *webrtc.SessionDescription `json:"sdp,omitempty"`
	Candidate *webrtc.ICECandidateInit   `json:"candidate,omitempty"`
	State     string                     `json:"state,omitempty"`

	Audio  *bool `json:"audio,omitempty"`
	Video  *bool `json:"video,omitempty"`
	Screen *bool `json:"screen,omitempty"`

	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func errorMessage(code, message string) *SignalMessage {
	return &SignalMessage{
		Type:    SignalError,
		Code:    code,
		Message: message,
	}
}
