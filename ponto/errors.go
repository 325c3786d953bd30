package ponto

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidEventType      = errors.New("invalid event type")
	ErrLocationUnavailable   = errors.New("location unavailable")
	ErrPhotoCaptureFailed    = errors.New("photo capture failed")
	ErrTransport             = errors.New("transport failure")
	ErrValidationRejected    = errors.New("validation rejected")
	ErrQueueDrainInterrupted = errors.New("queue drain interrupted")
	ErrOffline               = errors.New("offline")
	ErrDrainInProgress       = errors.New("drain already in progress")
	ErrAttemptClosed         = errors.New("attempt already committed or cancelled")
)

// RejectedError is an explicit refusal by the remote API (duplicate mark,
// out-of-schedule, ...). Resubmitting it later would not change the outcome.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("rejected by server (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("rejected by server (status %d): %s", e.StatusCode, e.Message)
}

func (e *RejectedError) Is(target error) bool { return target == ErrValidationRejected }

// TransportError means the request never got a verdict from the server.
type TransportError struct {
	StatusCode int // 0 when no response arrived
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport failure (status %d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Rejection returns the server message when err is a validation rejection.
func Rejection(err error) (string, bool) {
	var rej *RejectedError
	if errors.As(err, &rej) {
		return rej.Message, true
	}
	if errors.Is(err, ErrValidationRejected) {
		return err.Error(), true
	}
	return "", false
}
