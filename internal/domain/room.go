package domain

import "fmt"

// RoomID is either derived from a pair of clients or chosen by the caller.
type RoomID string

const pairSeparator = "-"

func (id RoomID) Validate() error {
	if len(id) == 0 {
		return ErrRoomIDEmpty
	}
	if len(id) > MaxRoomIDLen {
		return fmt.Errorf("%w: %d bytes", ErrRoomIDTooLong, len(id))
	}
	return nil
}

// PairKey returns the room key both members of a pair compute
// independently: the smaller id, a dash, the larger id.
func PairKey(a, b ClientID) RoomID {
	if b.Less(a) {
		a, b = b, a
	}
	return RoomID(string(a) + pairSeparator + string(b))
}

// IsInitiator reports whether self creates the offer when paired with peer.
// Exactly one side of a pair of distinct ids is the initiator.
func IsInitiator(self, peer ClientID) bool {
	return self.Less(peer)
}
