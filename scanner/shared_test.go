package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scanbridge/go-scanbridge/transport"
)

func TestSharedRefcount(t *testing.T) {
	require := require.New(t)

	bridge := newBridgeServer(t)

	first, err := Shared(WithEndpoint(bridge.url()), WithAutoConnect(false))
	require.NoError(err)
	t.Cleanup(first.Release)

	// later acquisitions join the same instance; their options are ignored
	second, err := Shared(WithEndpoint("ws://elsewhere.invalid:1"))
	require.NoError(err)
	t.Cleanup(second.Release)

	require.Same(first.Client, second.Client)

	require.NoError(first.Connect(context.Background()))
	bridge.accept(t)
	require.True(second.IsConnected())

	// releasing one handle keeps the shared channel alive
	first.Release()
	require.True(second.IsConnected())

	// releasing it again is a no-op, not a double decrement
	first.Release()
	require.True(second.IsConnected())

	// the last release disconnects and clears the slot
	second.Release()
	require.Eventually(func() bool {
		return second.State() == transport.DisconnectedState
	}, 2*time.Second, 10*time.Millisecond)

	fresh, err := Shared(WithEndpoint(bridge.url()), WithAutoConnect(false))
	require.NoError(err)
	t.Cleanup(fresh.Release)
	require.NotSame(second.Client, fresh.Client)
}
