package transport

import (
	"time"

	"github.com/scanbridge/go-scanbridge/protocol"
)

// EventKind identifies one notification kind on the connection's event surface.
type EventKind uint8

const (
	// EventStateChange fires on every effective state transition.
	// Setting the same state twice does not re-fire.
	EventStateChange EventKind = iota
	// EventOpen fires when the channel becomes connected.
	EventOpen
	// EventClose fires when the connection reaches the disconnected state.
	EventClose
	// EventReconnecting fires when a backoff retry has been scheduled after an
	// unintended close.
	EventReconnecting
	// EventError carries a transport-level failure; it never aborts the
	// connection by itself.
	EventError
	// EventFrame carries an inbound frame the transport does not consume
	// (everything except responses and pongs).
	EventFrame
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case EventStateChange:
		return "state_change"
	case EventOpen:
		return "open"
	case EventClose:
		return "close"
	case EventReconnecting:
		return "reconnecting"
	case EventError:
		return "error"
	case EventFrame:
		return "frame"
	default:
		return "unknown"
	}
}

// Event is the payload delivered to connection event subscribers.
// Which fields are populated depends on Kind.
type Event struct {
	Kind EventKind

	// PrevState and State accompany EventStateChange; State alone accompanies
	// EventOpen, EventClose and EventReconnecting.
	PrevState ConnState
	State     ConnState

	// Attempt and Delay accompany EventReconnecting: the ordinal of the retry
	// about to run and the backoff delay before it.
	Attempt uint32
	Delay   time.Duration

	// Err accompanies EventError.
	Err error

	// Frame accompanies EventFrame.
	Frame *protocol.Frame
}
