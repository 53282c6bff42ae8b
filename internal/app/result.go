package app

import "github.com/dkeye/rendezvous/internal/domain"

type Mode string

const (
	// ModeQueue is anonymous one-to-one pairing.
	ModeQueue Mode = "queue"
	// ModeRoom is explicit joining of a named, possibly multi-party, room.
	ModeRoom Mode = "room"
)

type Status string

const (
	StatusWaiting Status = "waiting"
	StatusMatched Status = "matched"
)

// JoinResult is the outcome of a join. Queue mode fills RoomID, PeerID and
// Initiator once matched; room mode fills RoomID, Participants and Others.
type JoinResult struct {
	Mode         Mode
	Status       Status
	RoomID       domain.RoomID
	PeerID       domain.ClientID
	Initiator    bool
	Participants []domain.ClientID
	Others       []domain.ClientID
}

type Stats struct {
	Rooms   int `json:"rooms"`
	Waiting int `json:"waiting"`
}
