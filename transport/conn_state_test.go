package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnStateString(t *testing.T) {
	require.Equal(t, "disconnected", DisconnectedState.String())
	require.Equal(t, "connecting", ConnectingState.String())
	require.Equal(t, "connected", ConnectedState.String())
	require.Equal(t, "reconnecting", ReconnectingState.String())
	require.Equal(t, "unknown", ConnState(99).String())
}

func TestConnStatePredicates(t *testing.T) {
	require := require.New(t)

	require.True(DisconnectedState.IsDisconnected())
	require.True(ConnectingState.IsConnecting())
	require.True(ConnectedState.IsConnected())
	require.True(ReconnectingState.IsReconnecting())

	require.False(ConnectedState.IsDisconnected())
	require.False(DisconnectedState.IsConnected())
}

func TestEventKindString(t *testing.T) {
	require := require.New(t)

	require.Equal("state_change", EventStateChange.String())
	require.Equal("open", EventOpen.String())
	require.Equal("close", EventClose.String())
	require.Equal("reconnecting", EventReconnecting.String())
	require.Equal("error", EventError.String())
	require.Equal("frame", EventFrame.String())
	require.Equal("unknown", EventKind(99).String())
}
