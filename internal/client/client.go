// Package client talks to a rendezvous server over its HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dkeye/rendezvous/internal/core"
	"github.com/dkeye/rendezvous/internal/domain"
)

var (
	ErrBadRequest   = errors.New("bad request")
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("rendezvous: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("rendezvous: %d: %s", e.Status, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrBadRequest:
		return e.Status == http.StatusBadRequest || e.Status == http.StatusRequestEntityTooLarge
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	}
	return false
}

type Client struct {
	base       string
	http       *http.Client
	adminToken string
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithAdminToken sets the bearer token sent to /api/admin routes.
func WithAdminToken(token string) Option {
	return func(c *Client) { c.adminToken = token }
}

// New returns a client for the server at baseURL. The default HTTP client
// keeps cookies so WhoAmI is stable across calls.
func New(baseURL string, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 10 * time.Second, Jar: jar},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type JoinResponse struct {
	Status       string            `json:"status"`
	RoomID       domain.RoomID     `json:"roomId,omitempty"`
	PeerID       domain.ClientID   `json:"peerId,omitempty"`
	Initiator    bool              `json:"initiator,omitempty"`
	Participants []domain.ClientID `json:"participants,omitempty"`
	Others       []domain.ClientID `json:"others,omitempty"`
}

func (r JoinResponse) Matched() bool { return r.Status == "matched" }

type StatsResponse struct {
	Rooms   int `json:"rooms"`
	Waiting int `json:"waiting"`
}

func (c *Client) Join(ctx context.Context, clientID domain.ClientID, roomID domain.RoomID) (JoinResponse, error) {
	body := map[string]string{"clientId": string(clientID)}
	if roomID != "" {
		body["roomId"] = string(roomID)
	}
	var out JoinResponse
	err := c.do(ctx, http.MethodPost, "/api/signaling/join", body, &out, false)
	return out, err
}

func (c *Client) Leave(ctx context.Context, clientID domain.ClientID) error {
	return c.do(ctx, http.MethodPost, "/api/signaling/leave", map[string]string{"clientId": string(clientID)}, nil, false)
}

// Send marshals payload as JSON unless it already is a json.RawMessage.
func (c *Client) Send(ctx context.Context, roomID domain.RoomID, from, to domain.ClientID, kind domain.Kind, payload any) error {
	raw, ok := payload.(json.RawMessage)
	if !ok && payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		raw = b
	}
	body := struct {
		RoomID  domain.RoomID   `json:"roomId"`
		From    domain.ClientID `json:"from"`
		To      domain.ClientID `json:"to"`
		Kind    domain.Kind     `json:"kind"`
		Payload json.RawMessage `json:"payload,omitempty"`
	}{roomID, from, to, kind, raw}
	return c.do(ctx, http.MethodPost, "/api/signaling/send", body, nil, false)
}

func (c *Client) Poll(ctx context.Context, roomID domain.RoomID, to domain.ClientID, after domain.Timestamp) ([]domain.Message, error) {
	q := url.Values{}
	q.Set("roomId", string(roomID))
	q.Set("to", string(to))
	q.Set("after", strconv.FormatInt(int64(after), 10))

	var out struct {
		Messages []domain.Message `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/signaling/poll?"+q.Encode(), nil, &out, false); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

func (c *Client) WhoAmI(ctx context.Context) (domain.ClientID, error) {
	var out struct {
		ClientID domain.ClientID `json:"clientId"`
	}
	err := c.do(ctx, http.MethodGet, "/api/signaling/whoami", nil, &out, false)
	return out.ClientID, err
}

func (c *Client) Rooms(ctx context.Context) ([]core.RoomInfo, error) {
	var out struct {
		Rooms []core.RoomInfo `json:"rooms"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/admin/rooms", nil, &out, true); err != nil {
		return nil, err
	}
	return out.Rooms, nil
}

func (c *Client) Stats(ctx context.Context) (StatsResponse, error) {
	var out StatsResponse
	err := c.do(ctx, http.MethodGet, "/api/admin/stats", nil, &out, true)
	return out, err
}

func (c *Client) CloseRoom(ctx context.Context, roomID domain.RoomID) error {
	return c.do(ctx, http.MethodDelete, "/api/admin/rooms/"+url.PathEscape(string(roomID)), nil, nil, true)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, admin bool) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin && c.adminToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var e struct {
			Error string `json:"error"`
		}
		if json.NewDecoder(resp.Body).Decode(&e) == nil {
			apiErr.Message = e.Error
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
