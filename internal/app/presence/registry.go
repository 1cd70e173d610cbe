package presence

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
)

// Registry maps userIds to their live connection.
// A reverse index from connection id to userId is kept in step with the
// forward map, so each connection maps to at most one identity.
type Registry struct {
	// mu serializes mutations against each other and against reads.
	mu sync.RWMutex

	// byUser is the forward index, userId -> identity.
	byUser map[string]Identity

	// byConn is the reverse index, connection id -> userId.
	byConn map[string]string

	now func() time.Time

	logger zerolog.Logger
}

// NewRegistry creates an empty registry. A nil clock defaults to time.Now.
func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}

	return &Registry{
		byUser: make(map[string]Identity),
		byConn: make(map[string]string),
		now:    now,
		logger: logx.Component("Registry"),
	}
}

// Upsert registers userId on conn, replacing any prior record for that userId.
// When conn was bound to a different userId, that identity is released first.
func (r *Registry) Upsert(userID, displayName string, conn Conn) (Identity, *errs.CustomError) {
	switch {
	case userID == "":
		return Identity{}, errs.NewError(errs.ErrInvalidInput, "userId")
	case displayName == "":
		return Identity{}, errs.NewError(errs.ErrInvalidInput, "displayName")
	case conn == nil:
		return Identity{}, errs.NewError(errs.ErrInvalidInput, "connection")
	}

	connID := conn.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byUser[userID]; ok && prev.Conn.ID() != connID {
		delete(r.byConn, prev.Conn.ID())
		r.logger.Info().
			Str("user_id", userID).
			Str("old_conn_id", prev.Conn.ID()).
			Str("conn_id", connID).
			Msg("Identity reconnected on a new connection. Replacing handle.")
	}

	if boundTo, ok := r.byConn[connID]; ok && boundTo != userID {
		delete(r.byUser, boundTo)
		r.logger.Info().
			Str("conn_id", connID).
			Str("old_user_id", boundTo).
			Str("user_id", userID).
			Msg("Connection switched identity. Releasing previous identity.")
	}

	identity := Identity{
		UserID:      userID,
		DisplayName: displayName,
		Conn:        conn,
		JoinedAt:    r.now(),
	}

	r.byUser[userID] = identity
	r.byConn[connID] = userID

	return identity, nil
}

// Lookup returns the identity registered under userId.
func (r *Registry) Lookup(userID string) (Identity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	identity, ok := r.byUser[userID]
	return identity, ok
}

// UserOf returns the userId currently bound to the connection id.
func (r *Registry) UserOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	userID, ok := r.byConn[connID]
	return userID, ok
}

// RemoveByConnection deletes the identity whose current handle is conn.
// Reports false when conn represents no identity, including a second call for the same conn.
func (r *Registry) RemoveByConnection(conn Conn) (Identity, bool) {
	if conn == nil {
		return Identity{}, false
	}

	connID := conn.ID()

	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byConn[connID]
	if !ok {
		return Identity{}, false
	}

	identity := r.byUser[userID]
	delete(r.byConn, connID)
	delete(r.byUser, userID)

	return identity, true
}

// Snapshot returns a consistent copy of the current membership.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(Snapshot, len(r.byUser))
	for userID, identity := range r.byUser {
		snap[userID] = Presence{
			DisplayName: identity.DisplayName,
			JoinedAt:    identity.JoinedAt,
		}
	}

	return snap
}

// Len returns the number of registered identities.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byUser)
}

// Names returns the display names in the snapshot, sorted.
func (s Snapshot) Names() []string {
	names := make([]string, 0, len(s))
	for _, p := range s {
		names = append(names, p.DisplayName)
	}
	slices.Sort(names)
	return names
}

// UserIDs returns the snapshot's keys, sorted.
func (s Snapshot) UserIDs() []string {
	return slices.Sorted(maps.Keys(s))
}
