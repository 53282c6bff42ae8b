package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrUnknownKind = errors.New("unknown message kind")

// Kind is the closed set of negotiation message types.
type Kind string

const (
	KindOffer  Kind = "offer"
	KindAnswer Kind = "answer"
	KindICE    Kind = "ice"
	KindLeave  Kind = "leave"
)

var kinds = map[Kind]struct{}{
	KindOffer:  {},
	KindAnswer: {},
	KindICE:    {},
	KindLeave:  {},
}

func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := kinds[k]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Timestamp is Unix time in milliseconds, assigned by the server.
type Timestamp int64

func TimestampOf(t time.Time) Timestamp { return Timestamp(t.UnixMilli()) }

func (ts Timestamp) Time() time.Time { return time.UnixMilli(int64(ts)) }

// Payload is an opaque JSON blob. The server never looks inside.
type Payload = json.RawMessage

// NullPayload is stored when the sender omits a payload.
var NullPayload = Payload("null")

// Message is a stored negotiation message. Immutable once appended.
type Message struct {
	From    ClientID  `json:"from"`
	To      ClientID  `json:"to"`
	Kind    Kind      `json:"kind"`
	Payload Payload   `json:"payload"`
	TS      Timestamp `json:"ts"`
}
