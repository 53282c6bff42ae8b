package cli

import (
	"encoding/json"
	"fmt"
)

// Data channel envelope shared with the browser client.
const (
	envMsg     = "msg"
	envTyping  = "typing"
	envProfile = "profile"
)

type envelope struct {
	T string          `json:"t"`
	V json.RawMessage `json:"v"`
}

type Profile struct {
	Name     string `json:"name"`
	Interest string `json:"interest,omitempty"`
}

func encodeEnvelope(t string, v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{T: t, V: raw})
}

// render turns an incoming data channel frame into a line for the
// terminal. ok is false for frames that print nothing.
func render(data []byte) (line string, ok bool) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil || env.T == "" {
		return PeerStyle.Render("peer: ") + string(data), true
	}
	switch env.T {
	case envMsg:
		var text string
		if err := json.Unmarshal(env.V, &text); err != nil {
			text = string(env.V)
		}
		return PeerStyle.Render("peer: ") + text, true
	case envProfile:
		var p Profile
		if err := json.Unmarshal(env.V, &p); err != nil || p.Name == "" {
			return "", false
		}
		if p.Interest != "" {
			return SystemStyle.Render(fmt.Sprintf("connected to %s (into %s)", p.Name, p.Interest)), true
		}
		return SystemStyle.Render("connected to " + p.Name), true
	default:
		return "", false
	}
}
