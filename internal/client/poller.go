package client

import (
	"context"
	"time"

	"github.com/dkeye/rendezvous/internal/domain"
)

const (
	DefaultJoinInterval = time.Second
	DefaultPollInterval = 800 * time.Millisecond
)

// Poller reads one recipient's mailbox and remembers the highest ts seen,
// so each message is delivered once.
type Poller struct {
	c      *Client
	roomID domain.RoomID
	to     domain.ClientID
	cursor domain.Timestamp
}

func (c *Client) NewPoller(roomID domain.RoomID, to domain.ClientID) *Poller {
	return &Poller{c: c, roomID: roomID, to: to}
}

func (p *Poller) Cursor() domain.Timestamp { return p.cursor }

func (p *Poller) Next(ctx context.Context) ([]domain.Message, error) {
	msgs, err := p.c.Poll(ctx, p.roomID, p.to, p.cursor)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		p.cursor = max(p.cursor, m.TS)
	}
	return msgs, nil
}

// Run polls every interval and hands each batch to fn until ctx is done or
// fn returns false. Transient errors go to onErr and polling continues.
func (p *Poller) Run(ctx context.Context, interval time.Duration, fn func(domain.Message) bool, onErr func(error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		msgs, err := p.Next(ctx)
		if err != nil && ctx.Err() == nil && onErr != nil {
			onErr(err)
		}
		for _, m := range msgs {
			if !fn(m) {
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// WaitMatched repeats a join until the server reports a match.
func (c *Client) WaitMatched(ctx context.Context, clientID domain.ClientID, roomID domain.RoomID, interval time.Duration) (JoinResponse, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		res, err := c.Join(ctx, clientID, roomID)
		if err != nil {
			return res, err
		}
		if res.Matched() {
			return res, nil
		}
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case <-ticker.C:
		}
	}
}
