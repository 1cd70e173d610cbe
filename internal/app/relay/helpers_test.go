package relay

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"chatrelay/internal/pkg/metrics"
)

var errFakeSend = errors.New("fake send failure")

// fakeConn records every frame sent to it.
type fakeConn struct {
	id string

	mu       sync.Mutex
	frames   [][]byte
	failSend bool
	closes   int
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: id}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failSend {
		return errFakeSend
	}
	c.frames = append(c.frames, msg)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
}

func (c *fakeConn) setFailSend(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failSend = fail
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

type decodedFrame struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// framesOf decodes the frames conn received with the given event.
func (c *fakeConn) framesOf(t *testing.T, event EventType) []decodedFrame {
	t.Helper()

	c.mu.Lock()
	defer c.mu.Unlock()

	var out []decodedFrame
	for _, raw := range c.frames {
		var f decodedFrame
		require.NoError(t, json.Unmarshal(raw, &f))
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

type wirePresence struct {
	DisplayName string `json:"displayName"`
	JoinedAt    string `json:"joinedAt"`
}

// lastUsersList returns the most recent usersList received by conn.
func (c *fakeConn) lastUsersList(t *testing.T) map[string]wirePresence {
	t.Helper()

	lists := c.framesOf(t, EventUsersList)
	require.NotEmpty(t, lists, "connection %s received no usersList", c.id)

	var users map[string]wirePresence
	require.NoError(t, json.Unmarshal(lists[len(lists)-1].Data, &users))
	return users
}

type wireMessage struct {
	RoomID          string `json:"roomId"`
	FromUserID      string `json:"fromUserId"`
	FromDisplayName string `json:"fromDisplayName"`
	Text            string `json:"text"`
	Timestamp       string `json:"timestamp"`
}

func (c *fakeConn) received(t *testing.T) []wireMessage {
	t.Helper()

	var out []wireMessage
	for _, f := range c.framesOf(t, EventReceiveMessage) {
		var m wireMessage
		require.NoError(t, json.Unmarshal(f.Data, &m))
		out = append(out, m)
	}
	return out
}

var testEpoch = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func testClock() func() time.Time {
	var mu sync.Mutex
	tick := 0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return testEpoch.Add(time.Duration(tick) * time.Millisecond)
	}
}

func newTestHub(t *testing.T, notify bool) *Hub {
	t.Helper()
	return NewHub(Options{Clock: testClock(), NotifySender: notify, Metrics: metrics.New()})
}

func connect(t *testing.T, h *Hub, id string) *fakeConn {
	t.Helper()
	c := newFakeConn(id)
	require.NoError(t, h.Connect(c))
	return c
}

func join(t *testing.T, h *Hub, c *fakeConn, userID, name string) {
	t.Helper()
	require.Nil(t, h.Join(c, JoinPayload{UserID: userID, DisplayName: name}))
}
