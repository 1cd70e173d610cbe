/*
Package randx generates identifiers for connections.

Connection handles are UUID v4 strings so they never collide with the
caller-supplied userIds they are indexed next to.
*/
package randx

import "github.com/google/uuid"

// ConnPrefix marks identifiers that name a transport connection.
const ConnPrefix = "conn_"

// ConnectionID returns a fresh identifier for a transport connection.
func ConnectionID() string {
	return ConnPrefix + uuid.New().String()
}
