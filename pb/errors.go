package pb

import (
	"errors"
	"fmt"
)

// ResponseError is an RpbErrorResp sent by the server in answer to a request.
// The request failed but the framing is intact.
//
// Connection handling: connection can be REUSED
type ResponseError struct {
	Code    uint32
	Message string
}

func (e *ResponseError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("riak error %d: %s", e.Code, e.Message)
	}
	return "riak error: " + e.Message
}

// ShouldCloseConnection returns false - error responses don't corrupt the stream
func (e *ResponseError) ShouldCloseConnection() bool {
	return false
}

// ProtocolError is a framing or routing violation: a malformed length, a
// message code nobody asked for, or a frame arriving with no request in flight.
//
// Connection handling: CLOSE connection, the byte stream cannot be resynchronised
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Message
}

// ShouldCloseConnection returns true - protocol violations corrupt the stream
func (e *ProtocolError) ShouldCloseConnection() bool {
	return true
}

// DecodeError is returned when a frame payload cannot be parsed as the
// message its code announces.
//
// Connection handling: CLOSE connection
type DecodeError struct {
	Code byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", CodeName(e.Code), e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ShouldCloseConnection returns true - remaining frames of the exchange can't be attributed
func (e *DecodeError) ShouldCloseConnection() bool {
	return true
}

// ErrorWithConnectionState is implemented by errors that know whether the
// connection they happened on can still be used.
type ErrorWithConnectionState interface {
	error
	ShouldCloseConnection() bool
}

// ShouldCloseConnection reports whether err requires closing the connection.
// Unknown error types are treated conservatively and return true.
func ShouldCloseConnection(err error) bool {
	if err == nil {
		return false
	}

	var e ErrorWithConnectionState
	if errors.As(err, &e) {
		return e.ShouldCloseConnection()
	}

	return true
}
