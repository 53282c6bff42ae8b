package core

import (
	"slices"
	"sort"
	"time"

	"github.com/dkeye/rendezvous/internal/domain"
	"github.com/rs/zerolog/log"
)

const DefaultRoomTTL = 30 * time.Minute

type RegistryOption func(*RoomRegistry)

// WithTTL sets the age after which a room is reaped.
func WithTTL(ttl time.Duration) RegistryOption {
	return func(r *RoomRegistry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithMailboxLimit sets how many messages each new room retains.
func WithMailboxLimit(n int) RegistryOption {
	return func(r *RoomRegistry) {
		if n > 0 {
			r.mailboxLimit = n
		}
	}
}

// WithClock replaces time.Now for room creation and message stamps.
func WithClock(now func() time.Time) RegistryOption {
	return func(r *RoomRegistry) {
		if now != nil {
			r.now = now
		}
	}
}

// RoomRegistry maps room keys to rooms. It is not synchronized: the
// matchmaker serializes every call together with the waiting queue.
type RoomRegistry struct {
	ttl          time.Duration
	mailboxLimit int
	now          func() time.Time

	rooms map[domain.RoomID]*Room
	// seq numbers rooms in creation order.
	seq uint64
	// byClient lists the rooms each client is in.
	byClient map[domain.ClientID][]domain.RoomID
}

func NewRoomRegistry(opts ...RegistryOption) *RoomRegistry {
	r := &RoomRegistry{
		ttl:          DefaultRoomTTL,
		mailboxLimit: DefaultMailboxLimit,
		now:          time.Now,
		rooms:        make(map[domain.RoomID]*Room),
		byClient:     make(map[domain.ClientID][]domain.RoomID),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RoomRegistry) TTL() time.Duration { return r.ttl }

func (r *RoomRegistry) create(id domain.RoomID, members ...domain.ClientID) *Room {
	r.seq++
	room := newRoom(id, r.seq, r.now(), NewMailbox(r.mailboxLimit, r.now), members...)
	r.rooms[id] = room
	for _, m := range room.participants {
		r.byClient[m] = append(r.byClient[m], id)
	}
	log.Info().Str("module", "core.registry").Str("room_id", string(id)).Int("members", len(room.participants)).Msg("room created")
	return room
}

// JoinNamed creates the room on first join and adds clientID otherwise.
// Repeated calls by the same client never duplicate it.
func (r *RoomRegistry) JoinNamed(roomID domain.RoomID, clientID domain.ClientID) *Room {
	room, ok := r.rooms[roomID]
	if !ok {
		return r.create(roomID, clientID)
	}
	if room.add(clientID) {
		r.byClient[clientID] = append(r.byClient[clientID], roomID)
		log.Debug().Str("module", "core.registry").Str("room_id", string(roomID)).Str("client_id", string(clientID)).Msg("member added")
	}
	return room
}

// CreatePaired returns the room keyed by PairKey(a, b), creating it with
// both members when absent. An existing room is left unchanged.
func (r *RoomRegistry) CreatePaired(a, b domain.ClientID) *Room {
	key := domain.PairKey(a, b)
	if room, ok := r.rooms[key]; ok {
		return room
	}
	return r.create(key, a, b)
}

func (r *RoomRegistry) Lookup(roomID domain.RoomID) (*Room, bool) {
	room, ok := r.rooms[roomID]
	return room, ok
}

// FindByParticipant returns the oldest live room containing clientID,
// regardless of the order in which the client joined its rooms.
func (r *RoomRegistry) FindByParticipant(clientID domain.ClientID) (*Room, bool) {
	var found *Room
	for _, id := range r.byClient[clientID] {
		if room := r.rooms[id]; found == nil || room.seq < found.seq {
			found = room
		}
	}
	return found, found != nil
}

// Reap deletes every room whose age since creation exceeds the TTL,
// however active it is.
func (r *RoomRegistry) Reap(now time.Time) []domain.RoomID {
	var reaped []domain.RoomID
	for id, room := range r.rooms {
		if now.Sub(room.createdAt) > r.ttl {
			r.remove(id)
			reaped = append(reaped, id)
		}
	}
	if len(reaped) > 0 {
		log.Info().Str("module", "core.registry").Int("reaped", len(reaped)).Int("rooms", len(r.rooms)).Msg("expired rooms removed")
	}
	return reaped
}

// Close deletes a room explicitly. A later room with the same key starts
// from scratch.
func (r *RoomRegistry) Close(roomID domain.RoomID) bool {
	if _, ok := r.rooms[roomID]; !ok {
		return false
	}
	r.remove(roomID)
	log.Info().Str("module", "core.registry").Str("room_id", string(roomID)).Msg("room closed")
	return true
}

func (r *RoomRegistry) remove(roomID domain.RoomID) {
	room := r.rooms[roomID]
	delete(r.rooms, roomID)
	for _, m := range room.participants {
		ids := slices.DeleteFunc(r.byClient[m], func(id domain.RoomID) bool { return id == roomID })
		if len(ids) == 0 {
			delete(r.byClient, m)
			continue
		}
		r.byClient[m] = ids
	}
}

func (r *RoomRegistry) Len() int { return len(r.rooms) }

// Snapshot lists rooms oldest first.
func (r *RoomRegistry) Snapshot() []RoomInfo {
	out := make([]RoomInfo, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room.Info())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
