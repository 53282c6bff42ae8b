package app_test

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/rendezvous/internal/app"
	"github.com/dkeye/rendezvous/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newMatchmaker(t *testing.T) (*app.Matchmaker, *clock) {
	t.Helper()
	c := &clock{now: time.UnixMilli(1_700_000_000_000)}
	return app.NewMatchmaker(app.Options{Now: c.Now}), c
}

func TestJoin_AliceAndBobScenario(t *testing.T) {
	mm, _ := newMatchmaker(t)

	res, err := mm.Join("alice", "")
	require.NoError(t, err)
	assert.Equal(t, app.StatusWaiting, res.Status)
	assert.Equal(t, app.ModeQueue, res.Mode)

	bob, err := mm.Join("bob", "")
	require.NoError(t, err)
	assert.Equal(t, app.StatusMatched, bob.Status)
	assert.Equal(t, domain.RoomID("alice-bob"), bob.RoomID)
	assert.Equal(t, domain.ClientID("alice"), bob.PeerID)
	assert.False(t, bob.Initiator)

	alice, err := mm.Join("alice", "")
	require.NoError(t, err)
	assert.Equal(t, app.StatusMatched, alice.Status)
	assert.Equal(t, domain.RoomID("alice-bob"), alice.RoomID)
	assert.Equal(t, domain.ClientID("bob"), alice.PeerID)
	assert.True(t, alice.Initiator)
}

func TestJoin_ExactlyOneInitiatorWhicheverJoinsFirst(t *testing.T) {
	for _, order := range [][2]domain.ClientID{{"x", "y"}, {"y", "x"}} {
		t.Run(string(order[0])+"-first", func(t *testing.T) {
			mm, _ := newMatchmaker(t)
			_, err := mm.Join(order[0], "")
			require.NoError(t, err)
			second, err := mm.Join(order[1], "")
			require.NoError(t, err)
			first, err := mm.Join(order[0], "")
			require.NoError(t, err)

			assert.Equal(t, first.RoomID, second.RoomID)
			assert.NotEqual(t, first.Initiator, second.Initiator)
			assert.Equal(t, order[1], first.PeerID)
			assert.Equal(t, order[0], second.PeerID)
		})
	}
}

func TestJoin_RepeatedWhileWaitingDoesNotRequeue(t *testing.T) {
	mm, _ := newMatchmaker(t)
	for i := 0; i < 3; i++ {
		res, err := mm.Join("alice", "")
		require.NoError(t, err)
		assert.Equal(t, app.StatusWaiting, res.Status)
	}
	assert.Equal(t, 1, mm.Stats().Waiting)
	assert.Zero(t, mm.Stats().Rooms)
}

func TestJoin_MatchedTwiceReturnsSameRoom(t *testing.T) {
	mm, _ := newMatchmaker(t)
	_, _ = mm.Join("alice", "")
	first, _ := mm.Join("bob", "")
	again, err := mm.Join("bob", "")
	require.NoError(t, err)

	assert.Equal(t, first, again)
	assert.Equal(t, 1, mm.Stats().Rooms)
	assert.Zero(t, mm.Stats().Waiting)
}

func TestJoin_StrictFIFO(t *testing.T) {
	mm, _ := newMatchmaker(t)
	_, _ = mm.Join("carol", "")
	_ = mm.LeaveQueue("carol")
	_, _ = mm.Join("dave", "")
	_, _ = mm.Join("dave", "")

	res, err := mm.Join("erin", "")
	require.NoError(t, err)
	assert.Equal(t, domain.ClientID("dave"), res.PeerID)
	assert.Equal(t, domain.RoomID("dave-erin"), res.RoomID)

	res, err = mm.Join("frank", "")
	require.NoError(t, err)
	assert.Equal(t, app.StatusWaiting, res.Status, "carol left, nobody else is waiting")
}

func TestJoin_NamedRoom(t *testing.T) {
	mm, _ := newMatchmaker(t)

	res, err := mm.Join("alice", "standup")
	require.NoError(t, err)
	assert.Equal(t, app.ModeRoom, res.Mode)
	assert.Equal(t, app.StatusWaiting, res.Status)
	assert.Equal(t, []domain.ClientID{"alice"}, res.Participants)
	assert.Empty(t, res.Others)

	res, err = mm.Join("bob", "standup")
	require.NoError(t, err)
	assert.Equal(t, app.StatusMatched, res.Status)
	assert.Equal(t, []domain.ClientID{"alice", "bob"}, res.Participants)
	assert.Equal(t, []domain.ClientID{"alice"}, res.Others)

	res, err = mm.Join("bob", "standup")
	require.NoError(t, err)
	assert.Equal(t, []domain.ClientID{"alice", "bob"}, res.Participants, "idempotent")

	res, err = mm.Join("alice", "standup")
	require.NoError(t, err)
	assert.Equal(t, app.StatusMatched, res.Status)
	assert.Equal(t, []domain.ClientID{"bob"}, res.Others)
}

func TestJoin_QueueModeReportsExistingNamedRoom(t *testing.T) {
	mm, _ := newMatchmaker(t)
	_, _ = mm.Join("alice", "standup")

	res, err := mm.Join("alice", "")
	require.NoError(t, err)
	assert.Equal(t, app.StatusMatched, res.Status)
	assert.Equal(t, domain.RoomID("standup"), res.RoomID)
	assert.Equal(t, domain.ClientID(""), res.PeerID)
	assert.False(t, res.Initiator)
}

func TestJoin_QueueModeReportsOldestRoomNotFirstJoined(t *testing.T) {
	mm, _ := newMatchmaker(t)
	_, _ = mm.Join("carol", "X")
	_, _ = mm.Join("alice", "Y")
	_, _ = mm.Join("alice", "X")

	res, err := mm.Join("alice", "")
	require.NoError(t, err)
	assert.Equal(t, app.StatusMatched, res.Status)
	assert.Equal(t, domain.RoomID("X"), res.RoomID)
	assert.Equal(t, domain.ClientID("carol"), res.PeerID)
	assert.False(t, res.Initiator)
}

func TestJoin_RejectsBadClientID(t *testing.T) {
	mm, _ := newMatchmaker(t)
	_, err := mm.Join("", "")
	assert.ErrorIs(t, err, app.ErrInvalidInput)
	assert.ErrorIs(t, err, domain.ErrClientIDEmpty)

	assert.ErrorIs(t, mm.LeaveQueue(""), app.ErrInvalidInput)
}

func TestLeaveQueue_IsIdempotent(t *testing.T) {
	mm, _ := newMatchmaker(t)
	assert.NoError(t, mm.LeaveQueue("ghost"))

	_, _ = mm.Join("alice", "")
	assert.NoError(t, mm.LeaveQueue("alice"))
	assert.NoError(t, mm.LeaveQueue("alice"))
	assert.Zero(t, mm.Stats().Waiting)

	_, _ = mm.Join("alice", "")
	_, _ = mm.Join("bob", "")
	assert.NoError(t, mm.LeaveQueue("alice"), "matched clients leave nothing")
	res, _ := mm.Join("alice", "")
	assert.Equal(t, app.StatusMatched, res.Status)
}

func TestSendThenPoll_OfferScenario(t *testing.T) {
	mm, _ := newMatchmaker(t)
	_, _ = mm.Join("alice", "")
	_, _ = mm.Join("bob", "")

	_, err := mm.Send("alice-bob", "alice", "bob", domain.KindOffer, json.RawMessage(`{"sdp":"..."}`))
	require.NoError(t, err)

	got, err := mm.Poll("alice-bob", "bob", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, domain.KindOffer, got[0].Kind)
	assert.Equal(t, domain.ClientID("alice"), got[0].From)
	assert.JSONEq(t, `{"sdp":"..."}`, string(got[0].Payload))

	none, err := mm.Poll("alice-bob", "alice", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSend_UnknownRoomIsNotFoundAndChangesNothing(t *testing.T) {
	mm, _ := newMatchmaker(t)
	_, err := mm.Send("nowhere", "a", "b", domain.KindOffer, nil)
	assert.ErrorIs(t, err, app.ErrRoomNotFound)
	assert.Equal(t, app.Stats{}, mm.Stats())

	got, err := mm.Poll("nowhere", "b", 0)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSend_DoesNotCheckParticipants(t *testing.T) {
	mm, _ := newMatchmaker(t)
	_, _ = mm.Join("alice", "standup")

	_, err := mm.Send("standup", "mallory", "alice", domain.KindICE, nil)
	require.NoError(t, err)
	got, _ := mm.Poll("standup", "alice", 0)
	assert.Len(t, got, 1)
}

func TestSend_Validation(t *testing.T) {
	mm, _ := newMatchmaker(t)
	_, _ = mm.Join("alice", "r")

	cases := map[string]func() error{
		"room": func() error { _, err := mm.Send("", "a", "b", domain.KindOffer, nil); return err },
		"from": func() error { _, err := mm.Send("r", "", "b", domain.KindOffer, nil); return err },
		"to":   func() error { _, err := mm.Send("r", "a", "", domain.KindOffer, nil); return err },
		"kind": func() error { _, err := mm.Send("r", "a", "b", "hello", nil); return err },
	}
	for name, call := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, call(), app.ErrInvalidInput)
		})
	}
	got, _ := mm.Poll("r", "b", 0)
	assert.Empty(t, got)

	_, err := mm.Poll("", "b", 0)
	assert.ErrorIs(t, err, app.ErrInvalidInput)
	_, err = mm.Poll("r", "", 0)
	assert.ErrorIs(t, err, app.ErrInvalidInput)
}

func TestPoll_CursorNeverRedeliversOrSkips(t *testing.T) {
	mm, c := newMatchmaker(t)
	_, _ = mm.Join("alice", "")
	_, _ = mm.Join("bob", "")

	var cursor domain.Timestamp
	seen := 0
	for round := 0; round < 5; round++ {
		for i := 0; i < 3; i++ {
			_, err := mm.Send("alice-bob", "alice", "bob", domain.KindICE, json.RawMessage(fmt.Sprintf(`%d`, seen+i)))
			require.NoError(t, err)
		}
		if round%2 == 0 {
			c.Advance(time.Millisecond)
		}
		got, err := mm.Poll("alice-bob", "bob", cursor)
		require.NoError(t, err)
		require.Len(t, got, 3)
		for _, m := range got {
			assert.Greater(t, m.TS, cursor)
			assert.Equal(t, fmt.Sprintf("%d", seen), string(m.Payload))
			seen++
			cursor = max(cursor, m.TS)
		}
	}
}

func TestReap_ExpiredRoomBehavesAsMissing(t *testing.T) {
	mm, c := newMatchmaker(t)
	_, _ = mm.Join("alice", "")
	_, _ = mm.Join("bob", "")
	_, err := mm.Send("alice-bob", "alice", "bob", domain.KindOffer, nil)
	require.NoError(t, err)

	c.Advance(30*time.Minute + time.Millisecond)

	got, err := mm.Poll("alice-bob", "bob", 0)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = mm.Send("alice-bob", "alice", "bob", domain.KindAnswer, nil)
	assert.ErrorIs(t, err, app.ErrRoomNotFound)

	res, _ := mm.Join("alice", "")
	assert.Equal(t, app.StatusWaiting, res.Status, "alice starts over")
}

func TestReap_RoomAtExactlyTTLSurvives(t *testing.T) {
	mm, c := newMatchmaker(t)
	_, _ = mm.Join("alice", "r")
	c.Advance(30 * time.Minute)
	assert.Zero(t, mm.Reap())
	c.Advance(time.Millisecond)
	assert.Equal(t, 1, mm.Reap())
}

func TestOptions_CustomTTLAndLimit(t *testing.T) {
	c := &clock{now: time.UnixMilli(0)}
	mm := app.NewMatchmaker(app.Options{RoomTTL: time.Minute, MailboxLimit: 2, Now: c.Now})
	_, _ = mm.Join("a", "r")
	for i := 0; i < 3; i++ {
		_, err := mm.Send("r", "b", "a", domain.KindICE, json.RawMessage(fmt.Sprintf(`%d`, i)))
		require.NoError(t, err)
	}
	got, _ := mm.Poll("r", "a", 0)
	require.Len(t, got, 2)
	assert.Equal(t, "1", string(got[0].Payload))

	c.Advance(time.Minute + time.Millisecond)
	assert.Equal(t, 1, mm.Reap())
}

func TestCloseRoomAndRooms(t *testing.T) {
	mm, c := newMatchmaker(t)
	_, _ = mm.Join("alice", "")
	_, _ = mm.Join("bob", "")
	c.Advance(time.Second)
	_, _ = mm.Join("carol", "standup")

	rooms := mm.Rooms()
	require.Len(t, rooms, 2)
	assert.Equal(t, domain.RoomID("alice-bob"), rooms[0].ID)
	assert.Equal(t, []domain.ClientID{"bob", "alice"}, rooms[0].Participants)

	assert.True(t, mm.CloseRoom("alice-bob"))
	assert.False(t, mm.CloseRoom("alice-bob"))
	assert.Len(t, mm.Rooms(), 1)

	_, err := mm.Send("alice-bob", "alice", "bob", domain.KindOffer, nil)
	assert.ErrorIs(t, err, app.ErrRoomNotFound)
}

func TestJoin_ConcurrentClientsPairUp(t *testing.T) {
	mm, _ := newMatchmaker(t)
	const n = 200

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id domain.ClientID) {
			defer wg.Done()
			_, err := mm.Join(id, "")
			assert.NoError(t, err)
		}(domain.ClientID(fmt.Sprintf("client-%03d", i)))
	}
	wg.Wait()

	assert.Equal(t, n/2, mm.Stats().Rooms)
	assert.Zero(t, mm.Stats().Waiting)

	members := make(map[domain.ClientID]int)
	for _, r := range mm.Rooms() {
		require.Len(t, r.Participants, 2)
		for _, p := range r.Participants {
			members[p]++
		}
	}
	assert.Len(t, members, n)
	for id, count := range members {
		assert.Equal(t, 1, count, "%s is in more than one room", id)
	}
}
