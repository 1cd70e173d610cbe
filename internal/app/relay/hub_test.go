package relay

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatrelay/internal/pkg/errs"
)

func TestConnectSendsCurrentPresence(t *testing.T) {
	h := newTestHub(t, false)
	alice := connect(t, h, "c-alice")
	join(t, h, alice, "u1", "Alice")

	late := connect(t, h, "c-late")

	assert.Equal(t, StateConnected, h.State("c-late"))
	assert.Contains(t, late.lastUsersList(t), "u1")
}

func TestPrivateMessageScenario(t *testing.T) {
	h := newTestHub(t, false)
	alice := connect(t, h, "c-alice")
	bob := connect(t, h, "c-bob")

	join(t, h, alice, "u1", "Alice")
	join(t, h, bob, "u2", "Bob")

	for _, c := range []*fakeConn{alice, bob} {
		users := c.lastUsersList(t)
		assert.Len(t, users, 2)
		assert.Equal(t, "Alice", users["u1"].DisplayName)
		assert.Equal(t, "Bob", users["u2"].DisplayName)
	}
	assert.Equal(t, StateIdentified, h.State("c-alice"))

	_, customErr := h.Message(alice, Envelope{FromUserID: "u1", FromDisplayName: "Alice", ToUserID: "u2", Text: "hi"})
	require.Nil(t, customErr)

	got := bob.received(t)
	require.Len(t, got, 1)
	assert.Equal(t, "hi", got[0].Text)
	assert.Empty(t, alice.received(t))

	removed, ok := h.Disconnect(alice, nil)
	require.True(t, ok)
	assert.Equal(t, "u1", removed.UserID)
	assert.Equal(t, StateTerminated, h.State("c-alice"))

	users := bob.lastUsersList(t)
	assert.Len(t, users, 1)
	assert.Contains(t, users, "u2")

	// The router checks the recipient only; u1 being gone does not matter here.
	_, customErr = h.Message(bob, Envelope{FromUserID: "u2", ToUserID: "u1", Text: "still there?"})
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrRecipientNotFound, customErr.Code)

	_, customErr = h.Message(bob, Envelope{FromUserID: "u1", ToUserID: "u2", Text: "hi again"})
	require.Nil(t, customErr)
	assert.Len(t, bob.received(t), 2)
}

func TestDoubleDisconnectIsIdempotent(t *testing.T) {
	h := newTestHub(t, false)
	alice := connect(t, h, "c-alice")
	bob := connect(t, h, "c-bob")
	join(t, h, alice, "u1", "Alice")
	join(t, h, bob, "u2", "Bob")

	_, ok := h.Disconnect(alice, nil)
	require.True(t, ok)
	listsAfterFirst := len(bob.framesOf(t, EventUsersList))

	assert.NotPanics(t, func() {
		_, ok = h.Disconnect(alice, nil)
	})
	assert.False(t, ok)
	assert.Len(t, bob.framesOf(t, EventUsersList), listsAfterFirst)
	assert.Equal(t, 1, h.Registry().Len())
}

func TestDisconnectBeforeJoinDoesNotBroadcast(t *testing.T) {
	h := newTestHub(t, false)
	watcher := connect(t, h, "c-watch")
	anon := connect(t, h, "c-anon")
	watcher.reset()

	_, ok := h.Disconnect(anon, nil)

	assert.False(t, ok)
	assert.Empty(t, watcher.framesOf(t, EventUsersList))
	assert.Equal(t, 1, anon.closes)
}

func TestRejoinFromNewConnectionKeepsRecordOnOldDisconnect(t *testing.T) {
	h := newTestHub(t, false)
	oldConn := connect(t, h, "c-old")
	newConn := connect(t, h, "c-new")

	join(t, h, oldConn, "u1", "Alice")
	join(t, h, newConn, "u1", "Alice")

	_, removed := h.Disconnect(oldConn, nil)
	assert.False(t, removed)

	identity, ok := h.Registry().Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, "c-new", identity.Conn.ID())
	assert.Equal(t, StateIdentified, h.State("c-new"))
}

func TestReplacedConnectionDropsBackToConnected(t *testing.T) {
	h := newTestHub(t, false)
	oldConn := connect(t, h, "c-old")
	newConn := connect(t, h, "c-new")

	join(t, h, oldConn, "u1", "Alice")
	join(t, h, newConn, "u1", "Alice")

	assert.Equal(t, StateConnected, h.State("c-old"))
	assert.Equal(t, 0, oldConn.closes)
}

func TestRejoinOnSameConnectionIsAllowed(t *testing.T) {
	h := newTestHub(t, false)
	c := connect(t, h, "c1")

	join(t, h, c, "u1", "Alice")
	join(t, h, c, "u1", "Alicia")

	users := c.lastUsersList(t)
	assert.Equal(t, "Alicia", users["u1"].DisplayName)
	assert.Equal(t, StateIdentified, h.State("c1"))
}

func TestInvalidJoinKeepsConnectionOpen(t *testing.T) {
	h := newTestHub(t, false)
	c := connect(t, h, "c1")
	c.reset()

	customErr := h.Join(c, JoinPayload{UserID: "u1"})

	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrInvalidInput, customErr.Code)
	assert.Equal(t, StateConnected, h.State("c1"))
	assert.Equal(t, 0, c.closes)
	assert.Empty(t, c.framesOf(t, EventUsersList))
}

func TestTransportErrorIsTreatedAsDisconnect(t *testing.T) {
	h := newTestHub(t, false)
	alice := connect(t, h, "c-alice")
	bob := connect(t, h, "c-bob")
	join(t, h, alice, "u1", "Alice")
	join(t, h, bob, "u2", "Bob")

	_, ok := h.TransportError(alice, errors.New("connection reset by peer"))

	assert.True(t, ok)
	assert.NotContains(t, bob.lastUsersList(t), "u1")
}

func TestEventsAfterTerminationAreIgnored(t *testing.T) {
	h := newTestHub(t, false)
	c := connect(t, h, "c1")
	h.Disconnect(c, nil)

	customErr := h.Join(c, JoinPayload{UserID: "u1", DisplayName: "Alice"})
	require.NotNil(t, customErr)
	_, found := h.Registry().Lookup("u1")
	assert.False(t, found)

	_, customErr = h.Message(c, Envelope{FromUserID: "u1", ToUserID: "u2", Text: "x"})
	assert.NotNil(t, customErr)
}

func TestHandleFrameAcceptsLegacyEventNames(t *testing.T) {
	h := newTestHub(t, false)
	alice := connect(t, h, "c-alice")
	bob := connect(t, h, "c-bob")

	h.HandleFrame(alice, []byte(`{"event":"new user","data":{"uid":"u1","name":"Alice"}}`))
	h.HandleFrame(bob, []byte(`{"event":"join","data":{"userId":"u2","displayName":"Bob"}}`))
	h.HandleFrame(alice, []byte(`{"event":"privateMessage","data":{"roomId":"r","from":"Alice","fromUid":"u1","to":"u2","text":"yo"}}`))

	got := bob.received(t)
	require.Len(t, got, 1)
	assert.Equal(t, "u1", got[0].FromUserID)
	assert.Equal(t, "Alice", got[0].FromDisplayName)
	assert.Equal(t, "r", got[0].RoomID)
}

func TestHandleFrameDropsBadInputSilentlyByDefault(t *testing.T) {
	h := newTestHub(t, false)
	c := connect(t, h, "c1")
	c.reset()

	h.HandleFrame(c, []byte(`not json`))
	h.HandleFrame(c, []byte(`{"event":"dance"}`))
	h.HandleFrame(c, []byte(`{"event":"message","data":{"fromUserId":"u1","toUserId":"nobody","text":"x"}}`))

	assert.Empty(t, c.framesOf(t, EventError))
	assert.Equal(t, StateConnected, h.State("c1"))
}

func TestHandleFrameNotifiesSenderWhenEnabled(t *testing.T) {
	h := newTestHub(t, true)
	c := connect(t, h, "c1")

	h.HandleFrame(c, []byte(`not json`))
	h.HandleFrame(c, []byte(`{"event":"dance"}`))
	h.HandleFrame(c, []byte(`{"event":"join","data":{"userId":"u1"}}`))
	h.HandleFrame(c, []byte(`{"event":"message","data":{"fromUserId":"u1","toUserId":"nobody","text":"x"}}`))

	frames := c.framesOf(t, EventError)
	require.Len(t, frames, 4)

	codes := make([]int, 0, len(frames))
	for _, f := range frames {
		var p ErrorPayload
		require.NoError(t, json.Unmarshal(f.Data, &p))
		codes = append(codes, p.Code)
	}
	assert.Equal(t, []int{
		errs.ErrInvalidJSONFormat,
		errs.ErrUnsupportedEvent,
		errs.ErrInvalidInput,
		errs.ErrRecipientNotFound,
	}, codes)
}

func TestShutdownClosesConnectionsAndRefusesNew(t *testing.T) {
	h := newTestHub(t, false)
	a := connect(t, h, "a")
	join(t, h, a, "u1", "Alice")

	h.Shutdown()

	assert.Equal(t, 1, a.closes)
	assert.Equal(t, 0, h.Registry().Len())
	assert.Empty(t, h.Peers())
	assert.ErrorIs(t, h.Connect(newFakeConn("b")), ErrHubClosed)
}

// joinOnFirstSend starts a join for another connection when its first frame is
// about to be queued, and gives that join a moment to finish before queueing it.
type joinOnFirstSend struct {
	*fakeConn
	hub    *Hub
	joiner *fakeConn
	fired  bool
	done   chan struct{}
}

func (c *joinOnFirstSend) Send(msg []byte) error {
	if !c.fired {
		c.fired = true

		go func() {
			defer close(c.done)
			c.hub.Join(c.joiner, JoinPayload{UserID: "u1", DisplayName: "Alice"})
		}()

		select {
		case <-c.done:
		case <-time.After(50 * time.Millisecond):
		}
	}

	return c.fakeConn.Send(msg)
}

func TestConnectInitialSnapshotNeverArrivesAfterNewerOne(t *testing.T) {
	h := newTestHub(t, false)
	alice := connect(t, h, "c-alice")

	late := &joinOnFirstSend{
		fakeConn: newFakeConn("c-late"),
		hub:      h,
		joiner:   alice,
		done:     make(chan struct{}),
	}
	require.NoError(t, h.Connect(late))

	select {
	case <-late.done:
	case <-time.After(5 * time.Second):
		t.Fatal("join did not complete")
	}

	_, registered := h.Registry().Lookup("u1")
	require.True(t, registered)

	lists := late.framesOf(t, EventUsersList)
	require.Len(t, lists, 2)
	assert.JSONEq(t, `{}`, string(lists[0].Data))
	assert.Contains(t, late.lastUsersList(t), "u1")
}
