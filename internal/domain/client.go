// Package domain contains entities without logic, just meta-data and the
// few pure helpers that derive one from another.
package domain

import (
	"errors"
	"fmt"
)

const (
	MaxClientIDLen = 128
	// MaxRoomIDLen fits every paired key: two client ids and the separator.
	MaxRoomIDLen = 2*MaxClientIDLen + 1
)

var (
	ErrClientIDEmpty   = errors.New("client id empty")
	ErrClientIDTooLong = errors.New("client id too long")
	ErrRoomIDEmpty     = errors.New("room id empty")
	ErrRoomIDTooLong   = errors.New("room id too long")
)

// ClientID is chosen by the client and never verified by the server.
type ClientID string

func (id ClientID) Validate() error {
	if len(id) == 0 {
		return ErrClientIDEmpty
	}
	if len(id) > MaxClientIDLen {
		return fmt.Errorf("%w: %d bytes", ErrClientIDTooLong, len(id))
	}
	return nil
}

// Less orders client ids lexicographically by bytes. Browser clients
// comparing UTF-16 code units disagree only when ids mix U+E000..U+FFFF
// with characters above U+FFFF.
func (id ClientID) Less(other ClientID) bool { return id < other }
