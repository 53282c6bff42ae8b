package core

import (
	"slices"
	"time"

	"github.com/dkeye/rendezvous/internal/domain"
)

// Room holds the participants of one matchmaking unit and its mailbox.
// Participant mutation is serialized by the owning registry's caller; the
// mailbox carries its own lock.
type Room struct {
	id           domain.RoomID
	seq          uint64
	createdAt    time.Time
	participants []domain.ClientID
	mailbox      *Mailbox
}

func newRoom(id domain.RoomID, seq uint64, createdAt time.Time, mailbox *Mailbox, members ...domain.ClientID) *Room {
	r := &Room{id: id, seq: seq, createdAt: createdAt, mailbox: mailbox}
	for _, m := range members {
		r.add(m)
	}
	return r
}

func (r *Room) ID() domain.RoomID { return r.id }
func (r *Room) CreatedAt() time.Time { return r.createdAt }
func (r *Room) Mailbox() *Mailbox { return r.mailbox }
func (r *Room) MemberCount() int { return len(r.participants) }
func (r *Room) Has(id domain.ClientID) bool {
	return slices.Contains(r.participants, id)
}

// Participants returns a copy in join order.
func (r *Room) Participants() []domain.ClientID {
	return slices.Clone(r.participants)
}

// Others returns the participants other than self, in join order.
func (r *Room) Others(self domain.ClientID) []domain.ClientID {
	out := make([]domain.ClientID, 0, len(r.participants))
	for _, p := range r.participants {
		if p != self {
			out = append(out, p)
		}
	}
	return out
}

// PeerOf is the first other participant, or "" when self is alone.
func (r *Room) PeerOf(self domain.ClientID) domain.ClientID {
	for _, p := range r.participants {
		if p != self {
			return p
		}
	}
	return ""
}

func (r *Room) add(id domain.ClientID) bool {
	if r.Has(id) {
		return false
	}
	r.participants = append(r.participants, id)
	return true
}

// RoomInfo is a read-only view for APIs.
type RoomInfo struct {
	ID           domain.RoomID     `json:"roomId"`
	Participants []domain.ClientID `json:"participants"`
	CreatedAt    time.Time         `json:"createdAt"`
	Messages     int               `json:"messages"`
}

func (r *Room) Info() RoomInfo {
	return RoomInfo{
		ID:           r.id,
		Participants: r.Participants(),
		CreatedAt:    r.createdAt,
		Messages:     r.mailbox.Len(),
	}
}
