package signaling

import "time"

// State follows the offer/answer handshake as seen from one side of a
// directed pair. There is no terminal state; a context is removed when
// its peer leaves or the room is torn down.
type State string

const (
	StateIdle           State = "idle"
	StateOfferSent      State = "offer_sent"
	StateOfferReceived  State = "offer_received"
	StateAnswerSent     State = "answer_sent"
	StateAnswerReceived State = "answer_received"
	StateConnected      State = "connected"
	StateFailed         State = "failed"
	StateRestarting     State = "restarting"
)

func (s State) String() string {
	return string(s)
}

// Context is the negotiation record for one directed pair. Sequence
// numbers are supplied by the caller; duplicate detection only holds
// within the freshness window and only if the caller's numbering is
// actually monotonic.
type Context struct {
	State             State
	OfferSequence     int64
	AnswerSequence    int64
	LastOfferAt       time.Time
	LastAnswerAt      time.Time
	ICECandidateCount int
	FailureCount      int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
