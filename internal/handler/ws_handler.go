/*
Package handler provides the HTTP handlers and routing setup for the relay.

This file upgrades HTTP requests to WebSocket connections and starts the
client lifecycle.
*/
package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"chatrelay/internal/app/relay"
	"chatrelay/internal/pkg/logx"
)

// HandleWebSocket upgrades the request, admits the connection to the hub and
// runs its pumps. The handler returns when the connection's read side ends.
func HandleWebSocket(deps *AppDeps, upgrader websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		client := relay.NewClient(deps.Hub, conn, deps.Config.SendQueueSize)

		if err := deps.Hub.Connect(client); err != nil {
			logx.Warn("WebSocket connection refused: hub is shutting down.", "conn_id", client.ID())
			closeMsg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
			if err := conn.WriteMessage(websocket.CloseMessage, closeMsg); err != nil {
				logx.Logger().Debug().Err(err).Str("conn_id", client.ID()).Msg("Error writing close message")
			}
			if err := conn.Close(); err != nil {
				logx.Logger().Debug().Err(err).Str("conn_id", client.ID()).Msg("Connection close error")
			}
			return
		}

		go client.WritePump()

		logx.Info("WebSocket connection established.", "conn_id", client.ID(), "remote_ip", logx.AnonymizeIP(r.RemoteAddr))

		client.ReadPump()
	}
}
