package core

import (
	"slices"
	"sync"
	"time"

	"github.com/dkeye/rendezvous/internal/domain"
)

const DefaultMailboxLimit = 200

// Mailbox is a per-room append-only log of negotiation messages, capped to
// the most recent limit entries. It is safe for concurrent use.
type Mailbox struct {
	mu    sync.RWMutex
	limit int
	now   func() time.Time
	last  domain.Timestamp
	msgs  []domain.Message
}

func NewMailbox(limit int, now func() time.Time) *Mailbox {
	if limit <= 0 {
		limit = DefaultMailboxLimit
	}
	if now == nil {
		now = time.Now
	}
	return &Mailbox{limit: limit, now: now}
}

// Append stamps msg with the next timestamp of this mailbox and stores it.
// Timestamps follow the wall clock but never repeat, so a client cursor
// set to the highest ts it has seen skips nothing.
func (m *Mailbox) Append(msg domain.Message) domain.Message {
	if len(msg.Payload) == 0 {
		msg.Payload = domain.NullPayload
	} else {
		msg.Payload = slices.Clone(msg.Payload)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ts := domain.TimestampOf(m.now())
	if ts <= m.last {
		ts = m.last + 1
	}
	m.last = ts
	msg.TS = ts

	m.msgs = append(m.msgs, msg)
	if over := len(m.msgs) - m.limit; over > 0 {
		m.msgs = slices.Delete(m.msgs, 0, over)
	}
	return msg
}

// Poll returns, in arrival order, the messages addressed to `to` with a
// timestamp strictly greater than after. The result is never nil.
func (m *Mailbox) Poll(to domain.ClientID, after domain.Timestamp) []domain.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Message, 0)
	for _, msg := range m.msgs {
		if msg.To == to && msg.TS > after {
			out = append(out, msg)
		}
	}
	return out
}

func (m *Mailbox) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.msgs)
}
