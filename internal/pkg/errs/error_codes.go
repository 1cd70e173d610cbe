/*
Package errs provides custom error types and application-level error code constants.

These error codes identify relay failures both inside the server (logs, tests)
and, when enabled, in error events sent back to clients.
*/
package errs

// 1xxx: General Request and Frame Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrInvalidJSONFormat indicates that a request body or WebSocket frame was not valid JSON.
	ErrInvalidJSONFormat = 1003

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007

	// ErrUnsupportedEvent indicates that a client sent an event name the relay does not handle.
	ErrUnsupportedEvent = 1008
)

// 2xxx: Presence and Routing Errors
const (
	// ErrInvalidInput indicates a join or message event with a missing or empty required field.
	ErrInvalidInput = 2001

	// ErrRecipientNotFound indicates that the target userId of a message is not registered.
	ErrRecipientNotFound = 2002

	// ErrRecipientUnavailable indicates that the recipient is registered but its outbound queue rejected the message.
	ErrRecipientUnavailable = 2003

	// ErrMessageTooLong indicates that the message text exceeded the maximum length.
	ErrMessageTooLong = 2004
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000
)
