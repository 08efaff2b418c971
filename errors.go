package riak

import (
	"errors"
	"fmt"

	"github.com/pior/riak/pb"
)

var (
	// ErrConnectionClosed is returned to commands in flight when the
	// connection goes away, by peer close, transport error or Close.
	ErrConnectionClosed = errors.New("riak: connection closed")

	// ErrCommandInFlight is returned by Send when the connection is still
	// bound to a previous command.
	ErrCommandInFlight = errors.New("riak: command already in flight")

	// ErrNotConnected is returned by Send outside the connected state.
	ErrNotConnected = errors.New("riak: not connected")

	// ErrInvalidState is returned by Connect on a connection that is not idle.
	ErrInvalidState = errors.New("riak: invalid connection state")
)

// ConnectReason tells why a connection attempt failed.
type ConnectReason int

const (
	// ConnectRefused covers every socket-level failure: refused, unreachable, DNS.
	ConnectRefused ConnectReason = iota
	// ConnectTimeout means the attempt did not resolve within the connect timeout.
	ConnectTimeout
	// ConnectAborted means Close was called while connecting.
	ConnectAborted
)

func (r ConnectReason) String() string {
	switch r {
	case ConnectRefused:
		return "refused"
	case ConnectTimeout:
		return "timeout"
	case ConnectAborted:
		return "aborted"
	default:
		return fmt.Sprintf("ConnectReason(%d)", int(r))
	}
}

// ConnectError is delivered with EventConnectFailed.
type ConnectError struct {
	Addr   string
	Reason ConnectReason
	Err    error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("riak: connect %s: %s: %v", e.Addr, e.Reason, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the attempt timed out.
func (e *ConnectError) Timeout() bool {
	return e.Reason == ConnectTimeout
}

// ShouldCloseConnection returns true - the connection never became usable
func (e *ConnectError) ShouldCloseConnection() bool {
	return true
}

// ShouldCloseConnection reports whether err leaves the connection unusable.
// Error responses from the server are the only errors after which the
// connection can serve the next command.
func ShouldCloseConnection(err error) bool {
	return pb.ShouldCloseConnection(err)
}
