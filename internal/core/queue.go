package core

import (
	"slices"

	"github.com/dkeye/rendezvous/internal/domain"
)

// WaitingQueue is a FIFO of clients looking for an anonymous partner.
// A client appears at most once. Not synchronized; see RoomRegistry.
type WaitingQueue struct {
	ids    []domain.ClientID
	queued map[domain.ClientID]struct{}
}

func NewWaitingQueue() *WaitingQueue {
	return &WaitingQueue{queued: make(map[domain.ClientID]struct{})}
}

func (q *WaitingQueue) Contains(id domain.ClientID) bool {
	_, ok := q.queued[id]
	return ok
}

// Push appends id at the tail. It reports false, and keeps the original
// position, when id is already queued.
func (q *WaitingQueue) Push(id domain.ClientID) bool {
	if q.Contains(id) {
		return false
	}
	q.ids = append(q.ids, id)
	q.queued[id] = struct{}{}
	return true
}

// Shift removes and returns the longest-waiting client.
func (q *WaitingQueue) Shift() (domain.ClientID, bool) {
	if len(q.ids) == 0 {
		return "", false
	}
	head := q.ids[0]
	q.ids[0] = ""
	q.ids = q.ids[1:]
	delete(q.queued, head)
	return head, true
}

// Remove drops id wherever it waits. Absent ids are a no-op.
func (q *WaitingQueue) Remove(id domain.ClientID) bool {
	if !q.Contains(id) {
		return false
	}
	delete(q.queued, id)
	q.ids = slices.DeleteFunc(q.ids, func(c domain.ClientID) bool { return c == id })
	return true
}

func (q *WaitingQueue) Len() int { return len(q.ids) }

func (q *WaitingQueue) Snapshot() []domain.ClientID { return slices.Clone(q.ids) }
