package shared

import (
	"crypto/rand"
	"encoding/hex"
)

func NewID(prefix string) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand failed: " + err.Error())
	}
	return prefix + hex.EncodeToString(b)
}

// PairKey identifies one side's view of a peer relationship inside a room.
// The key is directed: the entry for (A, B) and the entry for (B, A) are
// distinct records, each describing its own end of the handshake.
type PairKey struct {
	RoomID       string
	LocalUserID  string
	RemoteUserID string
}

// Reverse returns the remote side's key for the same relationship.
func (k PairKey) Reverse() PairKey {
	return PairKey{
		RoomID:       k.RoomID,
		LocalUserID:  k.RemoteUserID,
		RemoteUserID: k.LocalUserID,
	}
}
