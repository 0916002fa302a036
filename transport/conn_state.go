package transport

// ConnState represents the stage of the scanner bridge connection.
type ConnState uint32

// Connection states. Exactly one holds at any instant; transitions are
// published as discrete state-change events.
const (
	// DisconnectedState indicates that no physical channel exists and no
	// recovery is scheduled.
	DisconnectedState ConnState = iota
	// ConnectingState indicates that a physical open is in flight.
	ConnectingState
	// ConnectedState indicates that the channel is open and ready for frames.
	ConnectedState
	// ReconnectingState indicates that the channel was lost unintentionally
	// and a backoff retry is pending.
	ReconnectingState
)

// IsDisconnected returns true when the state is disconnected.
func (cs ConnState) IsDisconnected() bool { return cs == DisconnectedState }

// IsConnecting returns true when a physical open is in flight.
func (cs ConnState) IsConnecting() bool { return cs == ConnectingState }

// IsConnected returns true when the channel is open.
func (cs ConnState) IsConnected() bool { return cs == ConnectedState }

// IsReconnecting returns true when a backoff retry is pending.
func (cs ConnState) IsReconnecting() bool { return cs == ReconnectingState }

// String returns the string representation of the state.
func (cs ConnState) String() string {
	switch cs {
	case DisconnectedState:
		return "disconnected"
	case ConnectingState:
		return "connecting"
	case ConnectedState:
		return "connected"
	case ReconnectingState:
		return "reconnecting"
	default:
		return "unknown"
	}
}
