package relay

import (
	"time"

	"github.com/rs/zerolog"

	"chatrelay/internal/app/presence"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
	"chatrelay/internal/pkg/metrics"
)

// MaxTextBytes is the largest message text the router accepts.
const MaxTextBytes = 5000

// Router delivers directed messages to the recipient's current connection.
type Router struct {
	registry *presence.Registry
	now      func() time.Time
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

// NewRouter creates a Router resolving recipients through registry. A nil clock defaults to time.Now.
func NewRouter(registry *presence.Registry, now func() time.Time, m *metrics.Metrics) *Router {
	if now == nil {
		now = time.Now
	}

	return &Router{
		registry: registry,
		now:      now,
		metrics:  m,
		logger:   logx.Component("Router"),
	}
}

// Route validates env and sends it to the recipient only, stamped with the current time.
// Only the recipient is looked up; the sender need not be registered.
func (r *Router) Route(env Envelope) (ReceivedMessage, *errs.CustomError) {
	if customErr := validateEnvelope(env); customErr != nil {
		r.metrics.MessagesRouted.WithLabelValues(metrics.ResultInvalid).Inc()
		r.logger.Warn().
			Str("from_user_id", env.FromUserID).
			Str("to_user_id", env.ToUserID).
			Str("reason", customErr.Message).
			Msg("Rejected invalid message.")
		return ReceivedMessage{}, customErr
	}

	recipient, ok := r.registry.Lookup(env.ToUserID)
	if !ok {
		r.metrics.MessagesRouted.WithLabelValues(metrics.ResultNotFound).Inc()
		r.logger.Warn().
			Str("from_user_id", env.FromUserID).
			Str("to_user_id", env.ToUserID).
			Str("room_id", env.RoomID).
			Msg("Recipient not found. Message not delivered.")
		return ReceivedMessage{}, errs.NewError(errs.ErrRecipientNotFound, env.ToUserID)
	}

	msg := ReceivedMessage{
		RoomID:          env.RoomID,
		FromUserID:      env.FromUserID,
		FromDisplayName: env.FromDisplayName,
		Text:            env.Text,
		Timestamp:       r.now(),
	}

	frame, err := EncodeFrame(EventReceiveMessage, msg)
	if err != nil {
		r.logger.Error().Err(err).Msg("Failed to encode receiveMessage.")
		return ReceivedMessage{}, errs.NewError(errs.ErrUnknown, err)
	}

	if err := recipient.Conn.Send(frame); err != nil {
		r.metrics.MessagesRouted.WithLabelValues(metrics.ResultUnavailable).Inc()
		r.metrics.DroppedSends.Inc()
		r.logger.Warn().
			Err(err).
			Str("to_user_id", env.ToUserID).
			Str("conn_id", recipient.Conn.ID()).
			Msg("Recipient connection rejected message.")
		return ReceivedMessage{}, errs.NewError(errs.ErrRecipientUnavailable, env.ToUserID)
	}

	r.metrics.MessagesRouted.WithLabelValues(metrics.ResultDelivered).Inc()
	r.logger.Debug().
		Str("from_user_id", env.FromUserID).
		Str("to_user_id", env.ToUserID).
		Str("room_id", env.RoomID).
		Msg("Message delivered.")

	return msg, nil
}

func validateEnvelope(env Envelope) *errs.CustomError {
	switch {
	case env.ToUserID == "":
		return errs.NewError(errs.ErrInvalidInput, "toUserId")
	case env.FromUserID == "":
		return errs.NewError(errs.ErrInvalidInput, "fromUserId")
	case env.Text == "":
		return errs.NewError(errs.ErrInvalidInput, "text")
	case len(env.Text) > MaxTextBytes:
		return errs.NewError(errs.ErrMessageTooLong, MaxTextBytes)
	}
	return nil
}
