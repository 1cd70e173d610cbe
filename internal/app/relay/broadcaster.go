package relay

import (
	"github.com/rs/zerolog"

	"chatrelay/internal/app/presence"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/metrics"
)

// PeerSource lists the connections a presence update is fanned out to.
type PeerSource interface {
	Peers() []presence.Conn
}

// Broadcaster pushes presence snapshots to every connected client.
type Broadcaster struct {
	peers   PeerSource
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewBroadcaster creates a Broadcaster fanning out to the connections listed by peers.
func NewBroadcaster(peers PeerSource, m *metrics.Metrics) *Broadcaster {
	return &Broadcaster{
		peers:   peers,
		metrics: m,
		logger:  logx.Component("Broadcaster"),
	}
}

// BroadcastSnapshot sends snap as a usersList event to every peer and returns how many
// sends were accepted. A failed send is logged and skipped.
func (b *Broadcaster) BroadcastSnapshot(snap presence.Snapshot) int {
	if snap == nil {
		snap = presence.Snapshot{}
	}

	frame, err := EncodeFrame(EventUsersList, snap)
	if err != nil {
		b.logger.Error().Err(err).Msg("Failed to encode usersList.")
		return 0
	}

	b.metrics.PresenceBroadcast.Inc()

	sent := 0
	for _, peer := range b.peers.Peers() {
		if err := peer.Send(frame); err != nil {
			b.metrics.DroppedSends.Inc()
			b.logger.Warn().
				Err(err).
				Str("conn_id", peer.ID()).
				Msg("Dropping usersList for connection.")
			continue
		}
		sent++
	}

	b.logger.Debug().
		Int("users", len(snap)).
		Int("delivered", sent).
		Msg("Presence snapshot broadcast.")

	return sent
}
