package relay

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatrelay/internal/app/presence"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/metrics"
)

// ErrHubClosed is returned by Connect after Shutdown.
var ErrHubClosed = errors.New("relay hub is shut down")

// Conn is a transport connection driven by the Hub.
// Close ends the connection's outbound stream and must be safe to call more than once.
type Conn interface {
	presence.Conn
	Close()
}

// State is the lifecycle state of one connection.
type State int

const (
	// StateConnected: transport is up, no identity bound.
	StateConnected State = iota

	// StateIdentified: a join succeeded on this connection.
	StateIdentified

	// StateTerminated: the connection has disconnected or failed.
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateIdentified:
		return "identified"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// Options configures a Hub.
type Options struct {
	// Clock stamps joins and messages. Defaults to time.Now.
	Clock func() time.Time

	// NotifySender sends an error event back to a connection whose event was dropped.
	NotifySender bool

	// Metrics receives relay counters. A fresh set is created when nil.
	Metrics *metrics.Metrics
}

type session struct {
	conn  Conn
	state State
}

// Hub is the connection lifecycle manager. It owns the registry and drives the
// broadcaster and router from per-connection events.
type Hub struct {
	registry    *presence.Registry
	broadcaster *Broadcaster
	router      *Router
	metrics     *metrics.Metrics

	notifySender bool

	// mu protects sessions and closed, and makes a registry change atomic with the session state it belongs to.
	mu       sync.RWMutex
	sessions map[string]*session
	closed   bool

	// presenceMu orders snapshot-and-send, both the initial one in Connect and every
	// broadcast, so clients never see an older snapshot after a newer one.
	presenceMu sync.Mutex

	logger zerolog.Logger
}

// NewHub constructs a Hub with an empty registry.
func NewHub(opts Options) *Hub {
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}

	h := &Hub{
		registry:     presence.NewRegistry(opts.Clock),
		metrics:      m,
		notifySender: opts.NotifySender,
		sessions:     make(map[string]*session),
		logger:       logx.Component("Hub"),
	}

	h.broadcaster = NewBroadcaster(h, m)
	h.router = NewRouter(h.registry, opts.Clock, m)

	return h
}

// Registry exposes the registry for read-only consumers such as the health endpoint.
func (h *Hub) Registry() *presence.Registry {
	return h.registry
}

// Peers returns every open connection, identified or not.
func (h *Hub) Peers() []presence.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	peers := make([]presence.Conn, 0, len(h.sessions))
	for _, s := range h.sessions {
		peers = append(peers, s.conn)
	}
	return peers
}

// State reports the lifecycle state of the connection with the given id.
// Unknown connections report StateTerminated.
func (h *Hub) State(connID string) State {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if s, ok := h.sessions[connID]; ok {
		return s.state
	}
	return StateTerminated
}

// Connect admits a new transport connection in StateConnected and sends it the current presence.
func (h *Hub) Connect(conn Conn) error {
	// Held until the initial snapshot is queued, so a concurrent publish lands after it.
	h.presenceMu.Lock()
	defer h.presenceMu.Unlock()

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	h.sessions[conn.ID()] = &session{conn: conn, state: StateConnected}
	open := len(h.sessions)
	h.mu.Unlock()

	h.metrics.OpenConnections.Set(float64(open))
	h.logger.Info().Str("conn_id", conn.ID()).Int("open_connections", open).Msg("Client connected.")

	frame, err := EncodeFrame(EventUsersList, h.registry.Snapshot())
	if err == nil {
		err = conn.Send(frame)
	}
	if err != nil {
		h.logger.Warn().Err(err).Str("conn_id", conn.ID()).Msg("Failed to send initial usersList.")
	}

	return nil
}

// HandleFrame decodes one inbound frame and dispatches it. Bad frames are logged and dropped.
func (h *Hub) HandleFrame(conn Conn, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		h.reject(conn, errs.NewError(errs.ErrInvalidJSONFormat), "Client sent invalid JSON frame.")
		return
	}

	switch frame.Event.canonical() {
	case EventJoin:
		var payload JoinPayload
		if err := json.Unmarshal(frame.Data, &payload); err != nil {
			h.reject(conn, errs.NewError(errs.ErrInvalidJSONFormat), "Client sent invalid join payload.")
			return
		}
		if customErr := h.Join(conn, payload); customErr != nil {
			h.notify(conn, customErr)
		}

	case EventMessage:
		var env Envelope
		if err := json.Unmarshal(frame.Data, &env); err != nil {
			h.reject(conn, errs.NewError(errs.ErrInvalidJSONFormat), "Client sent invalid message payload.")
			return
		}
		if _, customErr := h.Message(conn, env); customErr != nil {
			h.notify(conn, customErr)
		}

	default:
		h.reject(conn, errs.NewError(errs.ErrUnsupportedEvent, string(frame.Event)), "Client sent unsupported event.")
	}
}

// Join binds an identity to conn and broadcasts the new presence.
// A connection that is already identified may join again; the record is replaced.
func (h *Hub) Join(conn Conn, payload JoinPayload) *errs.CustomError {
	h.mu.Lock()
	s, ok := h.sessions[conn.ID()]
	if !ok {
		h.mu.Unlock()
		h.logger.Warn().Str("conn_id", conn.ID()).Msg("Join on a terminated connection ignored.")
		return errs.NewError(errs.ErrInvalidParams)
	}

	prev, hadPrev := h.registry.Lookup(payload.UserID)

	identity, customErr := h.registry.Upsert(payload.UserID, payload.DisplayName, conn)
	if customErr == nil {
		s.state = StateIdentified

		// The replaced connection stays open but no longer represents anyone.
		if hadPrev && prev.Conn.ID() != conn.ID() {
			if old, ok := h.sessions[prev.Conn.ID()]; ok {
				old.state = StateConnected
			}
		}
	}
	h.mu.Unlock()

	if customErr != nil {
		h.logger.Warn().
			Str("conn_id", conn.ID()).
			Str("user_id", payload.UserID).
			Str("reason", customErr.Message).
			Msg("Rejected invalid join.")
		return customErr
	}

	h.logger.Info().
		Str("conn_id", conn.ID()).
		Str("user_id", identity.UserID).
		Str("display_name", identity.DisplayName).
		Msg("User joined.")

	h.publishPresence()
	return nil
}

// Message routes env from conn to its recipient.
func (h *Hub) Message(conn Conn, env Envelope) (ReceivedMessage, *errs.CustomError) {
	if h.State(conn.ID()) == StateTerminated {
		h.logger.Warn().Str("conn_id", conn.ID()).Msg("Message on a terminated connection ignored.")
		return ReceivedMessage{}, errs.NewError(errs.ErrInvalidParams)
	}

	return h.router.Route(env)
}

// Disconnect terminates conn, releases its identity and, if one was released,
// broadcasts the reduced presence. Calling it again for the same conn is a no-op.
func (h *Hub) Disconnect(conn Conn, cause error) (presence.Identity, bool) {
	h.mu.Lock()
	s, known := h.sessions[conn.ID()]
	if known {
		s.state = StateTerminated
		delete(h.sessions, conn.ID())
	}
	identity, removed := h.registry.RemoveByConnection(conn)
	open := len(h.sessions)
	h.mu.Unlock()

	conn.Close()

	if known {
		h.metrics.OpenConnections.Set(float64(open))
		h.logger.Info().
			Err(cause).
			Str("conn_id", conn.ID()).
			Int("open_connections", open).
			Msg("Client disconnected.")
	}

	if !removed {
		return presence.Identity{}, false
	}

	h.logger.Info().
		Str("conn_id", conn.ID()).
		Str("user_id", identity.UserID).
		Str("display_name", identity.DisplayName).
		Msg("User left.")

	h.publishPresence()
	return identity, true
}

// TransportError treats an unrecoverable transport failure as a disconnect.
func (h *Hub) TransportError(conn Conn, err error) (presence.Identity, bool) {
	h.logger.Warn().Err(err).Str("conn_id", conn.ID()).Msg("Transport error. Terminating connection.")
	return h.Disconnect(conn, err)
}

// Shutdown refuses new connections and closes every open one.
func (h *Hub) Shutdown() {
	h.logger.Info().Msg("Shutting down hub...")

	h.mu.Lock()
	h.closed = true
	sessions := h.sessions
	h.sessions = make(map[string]*session)
	for _, s := range sessions {
		s.state = StateTerminated
		h.registry.RemoveByConnection(s.conn)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.conn.Close()
	}

	h.metrics.OpenConnections.Set(0)
	h.metrics.ActiveUsers.Set(0)

	h.logger.Info().Int("closed_connections", len(sessions)).Msg("Hub shutdown complete.")
}

func (h *Hub) publishPresence() {
	h.presenceMu.Lock()
	defer h.presenceMu.Unlock()

	snap := h.registry.Snapshot()
	h.metrics.ActiveUsers.Set(float64(len(snap)))
	h.broadcaster.BroadcastSnapshot(snap)
}

func (h *Hub) reject(conn Conn, customErr *errs.CustomError, msg string) {
	h.logger.Warn().Str("conn_id", conn.ID()).Int("code", customErr.Code).Msg(msg)
	h.notify(conn, customErr)
}

// notify sends an error event to conn when sender notification is enabled.
func (h *Hub) notify(conn Conn, customErr *errs.CustomError) {
	if !h.notifySender {
		return
	}

	frame, err := EncodeFrame(EventError, ErrorPayload{Code: customErr.Code, Message: customErr.Message})
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode error event.")
		return
	}

	if err := conn.Send(frame); err != nil {
		h.logger.Warn().Err(err).Str("conn_id", conn.ID()).Msg("Failed to queue error event.")
	}
}
