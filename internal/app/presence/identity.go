/*
Package presence owns the connection registry: the single record of which
identities are online and which transport connection currently represents each.
*/
package presence

import (
	"encoding/json"
	"time"
)

// TimeFormat is the wire format for every timestamp the relay emits (UTC, millisecond precision).
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// FormatTime renders t in TimeFormat.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeFormat)
}

// Conn is the handle of one live transport connection.
// Send must not block; it fails when the connection cannot accept more output.
type Conn interface {
	ID() string
	Send(msg []byte) error
}

// Identity is a registered participant and the connection that currently represents it.
type Identity struct {
	UserID      string
	DisplayName string
	Conn        Conn
	JoinedAt    time.Time
}

// Presence is the public view of an Identity, without its connection handle.
type Presence struct {
	DisplayName string
	JoinedAt    time.Time
}

// MarshalJSON encodes the presence as {"displayName","joinedAt"}.
func (p Presence) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		DisplayName string `json:"displayName"`
		JoinedAt    string `json:"joinedAt"`
	}{
		DisplayName: p.DisplayName,
		JoinedAt:    FormatTime(p.JoinedAt),
	})
}

// Snapshot is a point-in-time copy of registry membership keyed by userId.
type Snapshot map[string]Presence
