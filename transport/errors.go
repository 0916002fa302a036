package transport

import "errors"

var (
	// ErrConfigNil indicates that a nil Config was provided.
	ErrConfigNil = errors.New("connection config is nil")

	// ErrNotConnected indicates that an operation requiring an open channel was
	// called while the connection is not in the connected state. Operations
	// never queue; they fail immediately with this error.
	ErrNotConnected = errors.New("not connected to scanner bridge")

	// ErrDisconnected indicates that a pending request was rejected because the
	// connection was torn down by Disconnect.
	ErrDisconnected = errors.New("disconnected")

	// ErrConnClosed indicates that the connection was closed while an open was
	// still in flight.
	ErrConnClosed = errors.New("connection closed")

	// ErrRequestTimeout indicates that no matching response frame arrived
	// within the request's expiry window.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrQueryRejected indicates that the bridge answered a query with
	// success=false; the server-supplied message is attached.
	ErrQueryRejected = errors.New("query rejected by bridge")
)
