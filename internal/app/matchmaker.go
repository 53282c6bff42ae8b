package app

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/rendezvous/internal/core"
	"github.com/dkeye/rendezvous/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrRoomNotFound = errors.New("room not found")
)

type Options struct {
	RoomTTL      time.Duration
	MailboxLimit int
	Now          func() time.Time
}

// Matchmaker owns the waiting queue and the room registry. Every exported
// operation runs a reap pass first and then does its work under one lock,
// so dequeuing a partner and creating the pair's room is a single step.
// Mailbox reads and writes happen outside that lock, under the room's own.
type Matchmaker struct {
	mu    sync.Mutex
	now   func() time.Time
	rooms *core.RoomRegistry
	queue *core.WaitingQueue
}

func NewMatchmaker(opts Options) *Matchmaker {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Matchmaker{
		now: now,
		rooms: core.NewRoomRegistry(
			core.WithTTL(opts.RoomTTL),
			core.WithMailboxLimit(opts.MailboxLimit),
			core.WithClock(now),
		),
		queue: core.NewWaitingQueue(),
	}
}

func invalid(field string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrInvalidInput, field, err)
}

// Join admits clientID to the named room roomID, or to anonymous pairing
// when roomID is empty.
func (m *Matchmaker) Join(clientID domain.ClientID, roomID domain.RoomID) (JoinResult, error) {
	if err := clientID.Validate(); err != nil {
		return JoinResult{}, invalid("clientId", err)
	}
	if roomID != "" {
		if err := roomID.Validate(); err != nil {
			return JoinResult{}, invalid("roomId", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.reapLocked()

	if roomID != "" {
		return m.joinNamedLocked(roomID, clientID), nil
	}
	return m.enqueueOrGetStatusLocked(clientID), nil
}

func (m *Matchmaker) joinNamedLocked(roomID domain.RoomID, clientID domain.ClientID) JoinResult {
	room := m.rooms.JoinNamed(roomID, clientID)
	res := JoinResult{
		Mode:         ModeRoom,
		Status:       StatusWaiting,
		RoomID:       roomID,
		Participants: room.Participants(),
		Others:       room.Others(clientID),
	}
	if len(res.Others) > 0 {
		res.Status = StatusMatched
	}
	log.Debug().Str("module", "app.matchmaker").Str("client_id", string(clientID)).Str("room_id", string(roomID)).Int("members", len(res.Participants)).Msg("named join")
	return res
}

func (m *Matchmaker) enqueueOrGetStatusLocked(clientID domain.ClientID) JoinResult {
	// A client that already holds a room lost our previous answer; repeat it.
	if room, ok := m.rooms.FindByParticipant(clientID); ok {
		return matched(room.ID(), clientID, room.PeerOf(clientID))
	}
	if m.queue.Contains(clientID) {
		return JoinResult{Mode: ModeQueue, Status: StatusWaiting}
	}

	partner, ok := m.queue.Shift()
	if !ok {
		m.queue.Push(clientID)
		log.Debug().Str("module", "app.matchmaker").Str("client_id", string(clientID)).Int("queue", m.queue.Len()).Msg("queued")
		return JoinResult{Mode: ModeQueue, Status: StatusWaiting}
	}

	room := m.rooms.CreatePaired(clientID, partner)
	log.Info().Str("module", "app.matchmaker").Str("client_id", string(clientID)).Str("peer_id", string(partner)).Str("room_id", string(room.ID())).Msg("paired")
	return matched(room.ID(), clientID, partner)
}

func matched(roomID domain.RoomID, self, peer domain.ClientID) JoinResult {
	return JoinResult{
		Mode:      ModeQueue,
		Status:    StatusMatched,
		RoomID:    roomID,
		PeerID:    peer,
		Initiator: domain.IsInitiator(self, peer),
	}
}

// LeaveQueue abandons a pending anonymous wait. It is a no-op for clients
// that are not queued.
func (m *Matchmaker) LeaveQueue(clientID domain.ClientID) error {
	if err := clientID.Validate(); err != nil {
		return invalid("clientId", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.reapLocked()

	if m.queue.Remove(clientID) {
		log.Debug().Str("module", "app.matchmaker").Str("client_id", string(clientID)).Msg("left queue")
	}
	return nil
}

// Send stores a message for `to` in the room's mailbox. Sender and
// recipient are not checked against the room's participants.
func (m *Matchmaker) Send(roomID domain.RoomID, from, to domain.ClientID, kind domain.Kind, payload domain.Payload) (domain.Message, error) {
	if err := roomID.Validate(); err != nil {
		return domain.Message{}, invalid("roomId", err)
	}
	if err := from.Validate(); err != nil {
		return domain.Message{}, invalid("from", err)
	}
	if err := to.Validate(); err != nil {
		return domain.Message{}, invalid("to", err)
	}
	if _, err := domain.ParseKind(string(kind)); err != nil {
		return domain.Message{}, invalid("kind", err)
	}

	room, ok := m.lookup(roomID)
	if !ok {
		return domain.Message{}, fmt.Errorf("%w: %s", ErrRoomNotFound, roomID)
	}

	stored := room.Mailbox().Append(domain.Message{From: from, To: to, Kind: kind, Payload: payload})
	log.Debug().Str("module", "app.matchmaker").Str("room_id", string(roomID)).Str("from", string(from)).Str("to", string(to)).Str("kind", string(kind)).Int64("ts", int64(stored.TS)).Msg("message stored")
	return stored, nil
}

// Poll returns the messages for `to` newer than after. A missing room
// yields an empty result so clients may poll before the room exists.
func (m *Matchmaker) Poll(roomID domain.RoomID, to domain.ClientID, after domain.Timestamp) ([]domain.Message, error) {
	if err := roomID.Validate(); err != nil {
		return nil, invalid("roomId", err)
	}
	if err := to.Validate(); err != nil {
		return nil, invalid("to", err)
	}

	room, ok := m.lookup(roomID)
	if !ok {
		return []domain.Message{}, nil
	}
	return room.Mailbox().Poll(to, after), nil
}

func (m *Matchmaker) lookup(roomID domain.RoomID) (*core.Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reapLocked()
	return m.rooms.Lookup(roomID)
}

// Reap removes expired rooms and reports how many went away.
func (m *Matchmaker) Reap() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reapLocked()
}

func (m *Matchmaker) reapLocked() int {
	return len(m.rooms.Reap(m.now()))
}

// CloseRoom deletes a room ahead of its expiry.
func (m *Matchmaker) CloseRoom(roomID domain.RoomID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rooms.Close(roomID)
}

func (m *Matchmaker) Rooms() []core.RoomInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reapLocked()
	return m.rooms.Snapshot()
}

func (m *Matchmaker) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reapLocked()
	return Stats{
		Rooms:   m.rooms.Len(),
		Waiting: m.queue.Len(),
	}
}
