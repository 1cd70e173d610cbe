/*
Package errs provides custom error types and application-level error code constants.

This file maps error codes to their CustomError templates.
*/
package errs

import "net/http"

// errorMap stores the CustomError template for every application error code.
var errorMap = map[int]CustomError{
	// 1xxx
	ErrInvalidParams:     {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrInvalidJSONFormat: {Code: ErrInvalidJSONFormat, Message: "Malformed event payload.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded: {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrUnsupportedEvent:  {Code: ErrUnsupportedEvent, Message: "Unsupported event: %s."},

	// 2xxx
	ErrInvalidInput:         {Code: ErrInvalidInput, Message: "Missing required field: %s."},
	ErrRecipientNotFound:    {Code: ErrRecipientNotFound, Message: "Recipient %s is not online."},
	ErrRecipientUnavailable: {Code: ErrRecipientUnavailable, Message: "Recipient %s cannot receive messages right now."},
	ErrMessageTooLong:       {Code: ErrMessageTooLong, Message: "Message exceeds %d bytes."},

	// 5xxx
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
