package client_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	router "github.com/dkeye/rendezvous/internal/adapters/http"
	"github.com/dkeye/rendezvous/internal/app"
	"github.com/dkeye/rendezvous/internal/client"
	"github.com/dkeye/rendezvous/internal/config"
	"github.com/dkeye/rendezvous/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{
		Mode:      "test",
		ReadLimit: 32768,
		Secret:    "test-secret",
		Admin:     config.Admin{Enabled: true, Token: "tok"},
	}
	srv := httptest.NewServer(router.SetupRouter(cfg, app.NewMatchmaker(app.Options{})))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_PairAndExchange(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	c := client.New(srv.URL)

	res, err := c.Join(ctx, "alice", "")
	require.NoError(t, err)
	assert.False(t, res.Matched())

	bob, err := c.Join(ctx, "bob", "")
	require.NoError(t, err)
	require.True(t, bob.Matched())
	assert.Equal(t, domain.RoomID("alice-bob"), bob.RoomID)
	assert.Equal(t, domain.ClientID("alice"), bob.PeerID)
	assert.False(t, bob.Initiator)

	alice, err := c.WaitMatched(ctx, "alice", "", 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, alice.Initiator)

	require.NoError(t, c.Send(ctx, alice.RoomID, "alice", "bob", domain.KindOffer, map[string]string{"type": "offer", "sdp": "v=0"}))
	require.NoError(t, c.Send(ctx, alice.RoomID, "alice", "bob", domain.KindICE, json.RawMessage(`{"candidate":"c1"}`)))

	p := c.NewPoller(bob.RoomID, "bob")
	msgs, err := p.Next(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.KindOffer, msgs[0].Kind)
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0"}`, string(msgs[0].Payload))
	assert.Equal(t, msgs[1].TS, p.Cursor())

	msgs, err = p.Next(ctx)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	require.NoError(t, c.Send(ctx, bob.RoomID, "alice", "bob", domain.KindLeave, nil))
	msgs, err = p.Next(ctx)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "null", string(msgs[0].Payload))
}

func TestClient_Errors(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	c := client.New(srv.URL)

	err := c.Send(ctx, "ghost", "a", "b", domain.KindOffer, nil)
	assert.ErrorIs(t, err, client.ErrNotFound)
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.Status)
	assert.Contains(t, apiErr.Message, "room not found")

	_, err = c.Join(ctx, "", "")
	assert.ErrorIs(t, err, client.ErrBadRequest)

	_, err = c.Stats(ctx)
	assert.ErrorIs(t, err, client.ErrUnauthorized)
}

func TestClient_LeaveAndWhoAmI(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	c := client.New(srv.URL)

	_, err := c.Join(ctx, "alice", "")
	require.NoError(t, err)
	require.NoError(t, c.Leave(ctx, "alice"))
	require.NoError(t, c.Leave(ctx, "alice"))

	first, err := c.WhoAmI(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, first)
	second, err := c.WhoAmI(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := client.New(srv.URL).WhoAmI(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestClient_Admin(t *testing.T) {
	srv := newServer(t)
	ctx := context.Background()
	c := client.New(srv.URL, client.WithAdminToken("tok"))

	_, _ = c.Join(ctx, "alice", "standup")
	_, _ = c.Join(ctx, "carol", "")

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, client.StatsResponse{Rooms: 1, Waiting: 1}, stats)

	rooms, err := c.Rooms(ctx)
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, domain.RoomID("standup"), rooms[0].ID)

	require.NoError(t, c.CloseRoom(ctx, "standup"))
	assert.ErrorIs(t, c.CloseRoom(ctx, "standup"), client.ErrNotFound)
}

func TestPoller_Run(t *testing.T) {
	srv := newServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c := client.New(srv.URL)

	_, err := c.Join(ctx, "alice", "r")
	require.NoError(t, err)

	var mu sync.Mutex
	var got []domain.Kind
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.NewPoller("r", "alice").Run(ctx, 5*time.Millisecond, func(m domain.Message) bool {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, m.Kind)
			return m.Kind != domain.KindLeave
		}, nil)
	}()

	require.NoError(t, c.Send(ctx, "r", "bob", "alice", domain.KindOffer, nil))
	require.NoError(t, c.Send(ctx, "r", "bob", "alice", domain.KindLeave, nil))

	select {
	case <-done:
	case <-ctx.Done():
		t.Fatal("poller did not stop on leave")
	}
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []domain.Kind{domain.KindOffer, domain.KindLeave}, got)
}
