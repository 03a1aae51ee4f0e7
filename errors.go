package wsfeed

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrConnectionClosed = errors.New("connection has been closed")
	ErrCannotConnect    = errors.New("connection cannot be established")
	ErrNormalClosure    = errors.New("connection closed normally")
	ErrDecode           = errors.New("cannot decode frame")
	ErrNotConnected     = errors.New("not connected")
)

// ErrUnrecoverableConnection marks a connection that exhausted its
// reconnection budget. It is logged, never returned across the Client
// boundary.
type ErrUnrecoverableConnection struct {
	err      error
	attempts int
}

func (e ErrUnrecoverableConnection) Error() string {
	return fmt.Sprintf("unrecoverable connection error after %d attempts: %s", e.attempts, e.err)
}

func (e ErrUnrecoverableConnection) Unwrap() error { return e.err }

func WrapErrorUnrecoverableConnection(err error, attempts int) *ErrUnrecoverableConnection {
	if err == nil {
		return nil
	}
	return &ErrUnrecoverableConnection{
		err:      err,
		attempts: attempts,
	}
}
