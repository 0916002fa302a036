package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/scanbridge/go-scanbridge/protocol"
)

// bridgeServer is an in-process stand-in for the scanner bridge service.
type bridgeServer struct {
	srv    *httptest.Server
	conns  chan *websocket.Conn
	refuse atomic.Bool
}

func newBridgeServer(t *testing.T) *bridgeServer {
	t.Helper()

	b := &bridgeServer{conns: make(chan *websocket.Conn, 8)}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.refuse.Load() {
			http.Error(w, "bridge unavailable", http.StatusServiceUnavailable)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.conns <- ws
	}))
	t.Cleanup(b.srv.Close)

	return b
}

func (b *bridgeServer) url() string {
	return "ws" + strings.TrimPrefix(b.srv.URL, "http")
}

// accept waits for the next client channel to arrive at the bridge.
func (b *bridgeServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()

	select {
	case ws := <-b.conns:
		return ws
	case <-time.After(2 * time.Second):
		t.Fatal("no connection arrived at the bridge")
		return nil
	}
}

// expectNoConn asserts that no new channel arrives within d.
func (b *bridgeServer) expectNoConn(t *testing.T, d time.Duration) {
	t.Helper()

	select {
	case <-b.conns:
		t.Fatal("unexpected connection arrived at the bridge")
	case <-time.After(d):
	}
}

func readFrameMap(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))

	return m
}

func writeFrame(t *testing.T, ws *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func newTestConn(t *testing.T, url string, opts ...ConnOption) *Conn {
	t.Helper()

	cfg, err := NewConfig(append([]ConnOption{WithEndpoint(url)}, opts...)...)
	require.NoError(t, err)

	conn, err := NewConn(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Disconnect() })

	return conn
}

// eventRecorder collects published events for later assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) count(kind EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, ev := range r.events {
		if ev.Kind == kind {
			n++
		}
	}

	return n
}

func recordEvents(conn *Conn, rec *eventRecorder, kinds ...EventKind) {
	for _, kind := range kinds {
		conn.Events().Subscribe(kind, rec.record)
	}
}

func TestConnectLifecycle(t *testing.T) {
	require := require.New(t)

	bridge := newBridgeServer(t)
	conn := newTestConn(t, bridge.url())

	rec := &eventRecorder{}
	recordEvents(conn, rec, EventOpen, EventStateChange)

	require.Equal(DisconnectedState, conn.State())
	require.NoError(conn.Connect(context.Background()))
	require.Equal(ConnectedState, conn.State())

	bridge.accept(t)
	require.Equal(1, rec.count(EventOpen))
	// disconnected -> connecting -> connected
	require.Equal(2, rec.count(EventStateChange))

	require.NoError(conn.Disconnect())
	require.Equal(DisconnectedState, conn.State())
}

func TestConnectSingleFlight(t *testing.T) {
	require := require.New(t)

	bridge := newBridgeServer(t)
	conn := newTestConn(t, bridge.url())

	start := make(chan struct{})
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			<-start
			errs <- conn.Connect(context.Background())
		}()
	}
	close(start)

	require.NoError(<-errs)
	require.NoError(<-errs)

	bridge.accept(t)
	// both calls resolved from the same physical open
	bridge.expectNoConn(t, 200*time.Millisecond)
}

func TestConnectAlreadyConnected(t *testing.T) {
	require := require.New(t)

	bridge := newBridgeServer(t)
	conn := newTestConn(t, bridge.url())

	require.NoError(conn.Connect(context.Background()))
	bridge.accept(t)

	require.NoError(conn.Connect(context.Background()))
	bridge.expectNoConn(t, 200*time.Millisecond)
}

func TestConnectFailureDoesNotRetry(t *testing.T) {
	require := require.New(t)

	bridge := newBridgeServer(t)
	bridge.refuse.Store(true)
	conn := newTestConn(t, bridge.url(), WithReconnectDelay(20*time.Millisecond, 100*time.Millisecond))

	rec := &eventRecorder{}
	recordEvents(conn, rec, EventReconnecting)

	require.Error(conn.Connect(context.Background()))
	require.Equal(DisconnectedState, conn.State())

	// caller-initiated open failure never schedules a retry
	time.Sleep(200 * time.Millisecond)
	require.Equal(0, rec.count(EventReconnecting))
}

func TestSendRequiresConnected(t *testing.T) {
	require := require.New(t)

	bridge := newBridgeServer(t)
	conn := newTestConn(t, bridge.url())

	require.ErrorIs(conn.Send(protocol.NewPing()), ErrNotConnected)
	require.ErrorIs(conn.Command(protocol.NewTriggerScan()), ErrNotConnected)

	_, err := conn.Request(context.Background(), protocol.QueryStatus, time.Second)
	require.ErrorIs(err, ErrNotConnected)
	require.Equal(0, conn.pending.Size())
}

func TestRequestCorrelation(t *testing.T) {
	require := require.New(t)

	bridge := newBridgeServer(t)
	conn := newTestConn(t, bridge.url())
	require.NoError(conn.Connect(context.Background()))
	remote := bridge.accept(t)

	type result struct {
		data json.RawMessage
		err  error
	}
	resCh := make(chan result, 1)
	go func() {
		data, err := conn.Request(context.Background(), protocol.QueryStatus, 3*time.Second)
		resCh <- result{data, err}
	}()

	query := readFrameMap(t, remote)
	require.Equal("query", query["type"])
	require.Equal("status", query["query"])
	id, _ := query["id"].(string)
	require.NotEmpty(id)

	// a response with a different id must leave the request pending
	writeFrame(t, remote, `{"type":"response","id":"not-`+id+`","success":true,"data":{"bogus":true}}`)
	select {
	case res := <-resCh:
		t.Fatalf("request resolved by mismatched response: %+v", res)
	case <-time.After(200 * time.Millisecond):
	}

	writeFrame(t, remote, `{"type":"response","id":"`+id+`","success":true,"data":{"connected":true}}`)
	select {
	case res := <-resCh:
		require.NoError(res.err)
		require.JSONEq(`{"connected":true}`, string(res.data))
	case <-time.After(2 * time.Second):
		t.Fatal("request did not resolve on matching response")
	}

	require.Equal(0, conn.pending.Size())
}

func TestRequestServerRejection(t *testing.T) {
	require := require.New(t)

	bridge := newBridgeServer(t)
	conn := newTestConn(t, bridge.url())
	require.NoError(conn.Connect(context.Background()))
	remote := bridge.accept(t)

	errCh := make(chan error, 1)
	go func() {
		_, err := conn.Request(context.Background(), protocol.QueryRfidTags, 3*time.Second)
		errCh <- err
	}()

	query := readFrameMap(t, remote)
	id, _ := query["id"].(string)
	writeFrame(t, remote, `{"type":"response","id":"`+id+`","success":false,"error":"rfid module offline"}`)

	select {
	case err := <-errCh:
		require.ErrorIs(err, ErrQueryRejected)
		require.Contains(err.Error(), "rfid module offline")
	case <-time.After(2 * time.Second):
		t.Fatal("request did not resolve")
	}
}

func TestRequestTimeoutIsolation(t *testing.T) {
	require := require.New(t)

	bridge := newBridgeServer(t)
	conn := newTestConn(t, bridge.url())
	require.NoError(conn.Connect(context.Background()))
	remote := bridge.accept(t)

	shortErr := make(chan error, 1)
	go func() {
		_, err := conn.Request(context.Background(), protocol.QueryStatus, 50*time.Millisecond)
		shortErr <- err
	}()
	shortQuery := readFrameMap(t, remote)
	require.Equal("status", shortQuery["query"])

	type result struct {
		data json.RawMessage
		err  error
	}
	longRes := make(chan result, 1)
	go func() {
		data, err := conn.Request(context.Background(), protocol.QueryConfig, 3*time.Second)
		longRes <- result{data, err}
	}()
	longQuery := readFrameMap(t, remote)
	longID, _ := longQuery["id"].(string)

	select {
	case err := <-shortErr:
		require.ErrorIs(err, ErrRequestTimeout)
	case <-time.After(time.Second):
		t.Fatal("short request did not expire")
	}

	// the expired request must not affect the one still pending
	writeFrame(t, remote, `{"type":"response","id":"`+longID+`","success":true,"data":{"mode":"auto"}}`)
	select {
	case res := <-longRes:
		require.NoError(res.err)
		require.JSONEq(`{"mode":"auto"}`, string(res.data))
	case <-time.After(2 * time.Second):
		t.Fatal("long request did not resolve")
	}

	require.Equal(int64(1), conn.Metrics().RequestTimeouts())
}

func TestDisconnectMassRejection(t *testing.T) {
	require := require.New(t)

	bridge := newBridgeServer(t)
	conn := newTestConn(t, bridge.url())
	require.NoError(conn.Connect(context.Background()))
	remote := bridge.accept(t)

	errCh := make(chan error, 3)
	for _, kind := range []protocol.QueryKind{protocol.QueryStatus, protocol.QueryConfig, protocol.QueryRfidTags} {
		go func(kind protocol.QueryKind) {
			_, err := conn.Request(context.Background(), kind, 5*time.Second)
			errCh <- err
		}(kind)
	}

	// wait for all three queries to reach the bridge
	for i := 0; i < 3; i++ {
		readFrameMap(t, remote)
	}
	require.Equal(3, conn.pending.Size())

	require.NoError(conn.Disconnect())

	for i := 0; i < 3; i++ {
		select {
		case err := <-errCh:
			require.ErrorIs(err, ErrDisconnected)
		case <-time.After(2 * time.Second):
			t.Fatal("pending request survived disconnect")
		}
	}
	require.Equal(0, conn.pending.Size())
}

func TestIntentionalCloseNeverReconnects(t *testing.T) {
	require := require.New(t)

	bridge := newBridgeServer(t)
	conn := newTestConn(t, bridge.url(), WithReconnectDelay(20*time.Millisecond, 100*time.Millisecond))
	require.NoError(conn.Connect(context.Background()))
	bridge.accept(t)

	rec := &eventRecorder{}
	recordEvents(conn, rec, EventReconnecting, EventClose)

	require.NoError(conn.Disconnect())
	require.Equal(DisconnectedState, conn.State())
	require.Equal(1, rec.count(EventClose))

	bridge.expectNoConn(t, 300*time.Millisecond)
	require.Equal(0, rec.count(EventReconnecting))
}

func TestUnintentionalCloseReconnects(t *testing.T) {
	require := require.New(t)

	bridge := newBridgeServer(t)
	conn := newTestConn(t, bridge.url(), WithReconnectDelay(20*time.Millisecond, 100*time.Millisecond))

	rec := &eventRecorder{}
	recordEvents(conn, rec, EventReconnecting, EventStateChange)

	require.NoError(conn.Connect(context.Background()))
	remote := bridge.accept(t)

	// out-of-band close, not preceded by Disconnect
	require.NoError(remote.Close())

	require.Eventually(func() bool {
		return rec.count(EventReconnecting) >= 1
	}, 2*time.Second, 10*time.Millisecond, "no reconnect scheduled after unintended close")

	bridge.accept(t)
	require.Eventually(func() bool {
		return conn.State() == ConnectedState
	}, 2*time.Second, 10*time.Millisecond, "connection did not recover")
}

func TestReconnectBackoffGrowth(t *testing.T) {
	require := require.New(t)

	bridge := newBridgeServer(t)
	conn := newTestConn(t, bridge.url())

	// defaults: base 1s, ceiling 30s
	expected := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}

	conn.mu.Lock()
	defer conn.mu.Unlock()
	for i, want := range expected {
		conn.attempts = uint32(i)
		require.Equal(want, conn.backoffDelayLocked(), "attempt %d", i)
	}

	// counter reset after a successful open restarts the ladder
	conn.attempts = 0
	require.Equal(1*time.Second, conn.backoffDelayLocked())

	// far past the ceiling the delay stays pinned
	conn.attempts = 40
	require.Equal(30*time.Second, conn.backoffDelayLocked())
}

func TestIdempotentStatePublication(t *testing.T) {
	require := require.New(t)

	bridge := newBridgeServer(t)
	conn := newTestConn(t, bridge.url())

	conn.mu.Lock()
	conn.setStateLocked(ConnectedState)
	conn.setStateLocked(ConnectedState)
	events := conn.takeQueuedLocked()
	conn.mu.Unlock()

	stateChanges := 0
	for _, ev := range events {
		if ev.Kind == EventStateChange {
			stateChanges++
		}
	}
	require.Equal(1, stateChanges)
}

func TestKeepalive(t *testing.T) {
	require := require.New(t)

	bridge := newBridgeServer(t)
	conn := newTestConn(t, bridge.url(), WithKeepaliveInterval(30*time.Millisecond))

	rec := &eventRecorder{}
	recordEvents(conn, rec, EventFrame)

	require.NoError(conn.Connect(context.Background()))
	remote := bridge.accept(t)

	ping := readFrameMap(t, remote)
	require.Equal("ping", ping["type"])
	writeFrame(t, remote, `{"type":"pong"}`)

	require.Eventually(func() bool {
		return conn.Metrics().PongsReceived() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	// pong is consumed internally, never republished
	require.Equal(0, rec.count(EventFrame))
}

func TestUnsolicitedFramesRepublished(t *testing.T) {
	require := require.New(t)

	bridge := newBridgeServer(t)
	conn := newTestConn(t, bridge.url())

	frames := make(chan *protocol.Frame, 4)
	conn.Events().Subscribe(EventFrame, func(ev Event) { frames <- ev.Frame })

	require.NoError(conn.Connect(context.Background()))
	remote := bridge.accept(t)

	writeFrame(t, remote, `{"type":"error","message":"reader fault","code":"E7"}`)
	select {
	case frame := <-frames:
		require.Equal(protocol.FrameError, frame.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("error frame was not republished")
	}

	writeFrame(t, remote, `{"type":"capabilities","data":{"vendor":"Acme","model":"X1"}}`)
	select {
	case frame := <-frames:
		require.Equal(protocol.FrameCapabilities, frame.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("capabilities frame was not republished")
	}
}

func TestMalformedAndLateFramesDropped(t *testing.T) {
	require := require.New(t)

	bridge := newBridgeServer(t)
	conn := newTestConn(t, bridge.url())
	require.NoError(conn.Connect(context.Background()))
	remote := bridge.accept(t)

	writeFrame(t, remote, `{"type":`)
	writeFrame(t, remote, `{"no_type":true}`)
	// response nobody asked for, e.g. arrived after a local timeout
	writeFrame(t, remote, `{"type":"response","id":"qdead","success":true}`)

	require.Eventually(func() bool {
		return conn.Metrics().ParseErrors() >= 2
	}, 2*time.Second, 10*time.Millisecond)

	// the connection survives all of it
	require.Equal(ConnectedState, conn.State())
	require.NoError(conn.Send(protocol.NewPing()))
}

func TestAutoReconnectDisabled(t *testing.T) {
	require := require.New(t)

	bridge := newBridgeServer(t)
	conn := newTestConn(t, bridge.url(), WithAutoReconnect(false))

	rec := &eventRecorder{}
	recordEvents(conn, rec, EventClose, EventReconnecting)

	require.NoError(conn.Connect(context.Background()))
	remote := bridge.accept(t)
	require.NoError(remote.Close())

	require.Eventually(func() bool {
		return conn.State() == DisconnectedState
	}, 2*time.Second, 10*time.Millisecond)

	bridge.expectNoConn(t, 200*time.Millisecond)
	require.Equal(0, rec.count(EventReconnecting))
	require.Equal(1, rec.count(EventClose))
}

func TestConnectContextCanceled(t *testing.T) {
	require := require.New(t)

	bridge := newBridgeServer(t)
	bridge.refuse.Store(true)
	conn := newTestConn(t, bridge.url())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := conn.Connect(ctx)
	require.Error(err)
	require.Equal(DisconnectedState, conn.State())
}

func TestNewConnNilConfig(t *testing.T) {
	require := require.New(t)

	_, err := NewConn(nil)
	require.ErrorIs(err, ErrConfigNil)
}
