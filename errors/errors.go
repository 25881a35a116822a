package errors

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = fmt.Errorf("validation failed")
	ErrMalformedInput    = fmt.Errorf("malformed input")
	ErrUnknownEventType  = fmt.Errorf("unknown event type")
	ErrStore             = fmt.Errorf("store failure")
	ErrBus               = fmt.Errorf("bus failure")
	ErrBusDeliveryNoise  = fmt.Errorf("malformed bus payload")
	ErrSlowConsumer      = fmt.Errorf("connection send buffer full")
	ErrConnectionClosed  = fmt.Errorf("connection closed")
	ErrWorkerPanic       = fmt.Errorf("worker panic")
	ErrInvalidToken      = fmt.Errorf("invalid token")
	ErrUnknownDriver     = fmt.Errorf("unknown driver")
	ErrMissingConfigItem = fmt.Errorf("missing configuration")
)

// Client-facing texts of the error frame.
const (
	MsgInvalidJSON      = "Invalid JSON payload"
	MsgUnknownEventType = "Unknown event type"
	MsgRoomRequired     = "roomId is required"
	MsgPostRequired     = "roomId, userId, and content are required"
	MsgContentTooLong   = "content is too long"
	MsgSaveFailed       = "Failed to save message"
	MsgJoinFailed       = "Failed to join room"
	MsgInternal         = "Internal error"
)

// ToFrameMessage maps an error to the text sent to the client in an error frame.
// Validation errors carry their own text, see Validation.
func ToFrameMessage(err error) string {
	var v validationError
	switch {
	case errors.As(err, &v):
		return v.message
	case errors.Is(err, ErrMalformedInput):
		return MsgInvalidJSON
	case errors.Is(err, ErrUnknownEventType):
		return MsgUnknownEventType
	case errors.Is(err, ErrStore):
		return MsgSaveFailed
	case errors.Is(err, ErrBus):
		return MsgSaveFailed
	default:
		return MsgInternal
	}
}

type validationError struct {
	message string
	cause   error
}

func (e validationError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", ErrValidation, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", ErrValidation, e.message)
}

func (e validationError) Unwrap() []error {
	if e.cause != nil {
		return []error{ErrValidation, e.cause}
	}
	return []error{ErrValidation}
}

// Validation builds an ErrValidation carrying the client-facing message.
func Validation(message string, cause error) error {
	return validationError{message: message, cause: cause}
}
