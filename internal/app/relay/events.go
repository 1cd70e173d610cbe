/*
Package relay binds transport connections to the presence registry and routes
directed messages between identities.

This file defines the event names and payloads exchanged over the wire. Every
frame is a JSON object {"event": <name>, "data": <payload>}.
*/
package relay

import (
	"encoding/json"
	"time"

	"chatrelay/internal/app/presence"
)

// EventType names a frame on the wire.
type EventType string

const (
	// EventJoin registers the sender's identity. client -> server
	EventJoin EventType = "join"

	// EventMessage carries a directed message. client -> server
	EventMessage EventType = "message"

	// EventUsersList carries the presence snapshot. server -> all clients
	EventUsersList EventType = "usersList"

	// EventReceiveMessage delivers a routed message. server -> one client
	EventReceiveMessage EventType = "receiveMessage"

	// EventError reports a dropped inbound event when sender notification is enabled.
	EventError EventType = "error"
)

// eventAliases maps the legacy Socket.IO event names onto their current names.
var eventAliases = map[EventType]EventType{
	"new user":       EventJoin,
	"privateMessage": EventMessage,
}

func (t EventType) canonical() EventType {
	if alias, ok := eventAliases[t]; ok {
		return alias
	}
	return t
}

// inboundFrame is a frame as read from a client.
type inboundFrame struct {
	Event EventType       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outboundFrame is a frame written to a client.
type outboundFrame struct {
	Event EventType `json:"event"`
	Data  any       `json:"data"`
}

// EncodeFrame marshals an outbound event.
func EncodeFrame(event EventType, data any) ([]byte, error) {
	return json.Marshal(outboundFrame{Event: event, Data: data})
}

// JoinPayload is the data of a join event.
type JoinPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// UnmarshalJSON also accepts the legacy "uid" and "name" keys.
func (p *JoinPayload) UnmarshalJSON(b []byte) error {
	var raw struct {
		UserID      string `json:"userId"`
		DisplayName string `json:"displayName"`
		UID         string `json:"uid"`
		Name        string `json:"name"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	p.UserID = firstNonEmpty(raw.UserID, raw.UID)
	p.DisplayName = firstNonEmpty(raw.DisplayName, raw.Name)
	return nil
}

// Envelope is one directed message as submitted by a client.
type Envelope struct {
	RoomID          string `json:"roomId"`
	FromUserID      string `json:"fromUserId"`
	FromDisplayName string `json:"fromDisplayName"`
	ToUserID        string `json:"toUserId"`
	Text            string `json:"text"`
}

// UnmarshalJSON also accepts the legacy "fromUid", "from" and "to" keys.
func (e *Envelope) UnmarshalJSON(b []byte) error {
	var raw struct {
		RoomID          string `json:"roomId"`
		FromUserID      string `json:"fromUserId"`
		FromDisplayName string `json:"fromDisplayName"`
		ToUserID        string `json:"toUserId"`
		Text            string `json:"text"`
		FromUID         string `json:"fromUid"`
		From            string `json:"from"`
		To              string `json:"to"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*e = Envelope{
		RoomID:          raw.RoomID,
		FromUserID:      firstNonEmpty(raw.FromUserID, raw.FromUID),
		FromDisplayName: firstNonEmpty(raw.FromDisplayName, raw.From),
		ToUserID:        firstNonEmpty(raw.ToUserID, raw.To),
		Text:            raw.Text,
	}
	return nil
}

// ReceivedMessage is the data of a receiveMessage event.
type ReceivedMessage struct {
	RoomID          string    `json:"roomId"`
	FromUserID      string    `json:"fromUserId"`
	FromDisplayName string    `json:"fromDisplayName"`
	Text            string    `json:"text"`
	Timestamp       time.Time `json:"-"`
}

// MarshalJSON renders Timestamp in presence.TimeFormat.
func (m ReceivedMessage) MarshalJSON() ([]byte, error) {
	type plain ReceivedMessage
	return json.Marshal(struct {
		plain
		Timestamp string `json:"timestamp"`
	}{
		plain:     plain(m),
		Timestamp: presence.FormatTime(m.Timestamp),
	})
}

// ErrorPayload is the data of an error event.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
