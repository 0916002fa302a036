package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/scanbridge/go-scanbridge/emitter"
	"github.com/scanbridge/go-scanbridge/internal/pool"
	"github.com/scanbridge/go-scanbridge/logger"
	"github.com/scanbridge/go-scanbridge/protocol"
)

// Conn manages the persistent WebSocket channel to the scanner bridge.
// It owns at most one physical channel at a time and serializes every state
// transition behind a single mutex, so subscribers observe transitions in
// order.
type Conn struct {
	cfg     *Config
	logger  logger.Logger
	events  *emitter.Emitter[EventKind, Event]
	metrics Metrics

	mu             sync.Mutex // guards everything below
	ws             *websocket.Conn
	state          ConnState
	intentional    bool // close requested via Disconnect; suppresses reconnect
	attempts       uint32
	reconnectTimer *time.Timer
	dialWait       chan struct{} // non-nil while a physical open is in flight
	dialErr        error
	gen            uint64 // socket generation; stale read-loop exits are ignored
	keepaliveStop  chan struct{}
	queued         []Event // events produced inside the critical section

	writeMu sync.Mutex // serializes writes to the websocket

	pending *xsync.MapOf[string, *pendingRequest]
}

type requestResult struct {
	data json.RawMessage
	err  error
}

// pendingRequest represents one outstanding query awaiting its correlated
// response. It resolves exactly once: on the matching response, on expiry, or
// on transport teardown.
type pendingRequest struct {
	id   string
	done chan requestResult
	once sync.Once
}

func newPendingRequest(id string) *pendingRequest {
	return &pendingRequest{id: id, done: make(chan requestResult, 1)}
}

func (r *pendingRequest) complete(data json.RawMessage, err error) {
	r.once.Do(func() {
		r.done <- requestResult{data: data, err: err}
	})
}

// NewConn creates a connection manager for the given configuration.
// The connection starts in the disconnected state; call Connect to open it.
func NewConn(cfg *Config) (*Conn, error) {
	if cfg == nil {
		return nil, ErrConfigNil
	}

	return &Conn{
		cfg:     cfg,
		logger:  cfg.logger,
		events:  emitter.New[EventKind, Event](cfg.logger),
		pending: xsync.NewMapOf[string, *pendingRequest](),
	}, nil
}

// Events returns the connection's notification surface.
func (c *Conn) Events() *emitter.Emitter[EventKind, Event] {
	return c.events
}

// Metrics returns the connection activity counters.
func (c *Conn) Metrics() *Metrics {
	return &c.metrics
}

// GetLogger returns the logger associated with the connection.
func (c *Conn) GetLogger() logger.Logger {
	return c.logger
}

// State returns the current connection state.
func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Connect opens the physical channel. It returns once the channel is open or
// the open failed.
//
// Connect is single-flight: if an open is already in flight, the call joins it
// and resolves from the same physical open; if the connection is already
// connected it returns immediately. A caller-initiated open failure leaves the
// connection disconnected and is not retried automatically.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()

	if c.state == ConnectedState {
		c.mu.Unlock()
		return nil
	}

	if wait := c.dialWait; wait != nil {
		c.mu.Unlock()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wait:
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.state == ConnectedState {
			return nil
		}

		return c.dialErr
	}

	// a pending backoff retry is superseded by the explicit connect
	c.cancelReconnectTimerLocked()
	c.intentional = false
	c.dialWait = make(chan struct{})
	c.setStateLocked(ConnectingState)
	events := c.takeQueuedLocked()
	c.mu.Unlock()
	c.publishAll(events)

	if err := c.dialAndComplete(ctx); err != nil {
		c.mu.Lock()
		c.setStateLocked(DisconnectedState)
		events := c.takeQueuedLocked()
		c.mu.Unlock()
		c.publishAll(events)

		return err
	}

	return nil
}

// Disconnect closes the connection intentionally. It cancels any pending
// backoff retry, stops the keepalive, rejects every outstanding request with
// ErrDisconnected, closes the physical channel if open, and transitions to the
// disconnected state.
func (c *Conn) Disconnect() error {
	c.mu.Lock()
	c.intentional = true
	c.cancelReconnectTimerLocked()
	c.stopKeepaliveLocked()

	ws := c.ws
	c.ws = nil
	c.gen++
	c.setStateLocked(DisconnectedState)
	events := c.takeQueuedLocked()
	c.mu.Unlock()

	c.failAllPending(ErrDisconnected)

	var err error
	if ws != nil {
		err = ws.Close()
	}
	c.publishAll(events)

	return err
}

// Send serializes v as a JSON text frame and writes it to the channel.
// It fails immediately with ErrNotConnected when the channel is not open;
// frames are never queued.
func (c *Conn) Send(v any) error {
	c.mu.Lock()
	if c.state != ConnectedState || c.ws == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	ws := c.ws
	c.mu.Unlock()

	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := ws.WriteMessage(websocket.TextMessage, buf); err != nil {
		return err
	}
	c.metrics.incFrameSent()

	return nil
}

// Command sends a non-query command frame. Same connectivity precondition as
// Send.
func (c *Conn) Command(cmd *protocol.Command) error {
	return c.Send(cmd)
}

// Request sends a query frame with a fresh correlation identifier and waits
// for the matching response.
//
// It returns the response payload, or an error when the bridge rejects the
// query, the request expires (ErrRequestTimeout), the connection is torn down
// (ErrDisconnected), or ctx is canceled. A timeout of zero or less selects the
// configured default.
func (c *Conn) Request(ctx context.Context, query protocol.QueryKind, timeout time.Duration) (json.RawMessage, error) {
	if timeout <= 0 {
		timeout = c.cfg.requestTimeout
	}

	id := protocol.GenerateRequestID()
	req := newPendingRequest(id)
	c.pending.Store(id, req)

	if err := c.Send(protocol.NewQuery(id, query)); err != nil {
		c.pending.Delete(id)
		return nil, err
	}

	expiry := pool.GetTimer(timeout)
	defer pool.PutTimer(expiry)

	select {
	case <-ctx.Done():
		c.pending.Delete(id)
		return nil, ctx.Err()

	case <-expiry.C:
		c.pending.Delete(id)
		c.metrics.incRequestTimeout()
		c.logger.Warn("request expired unanswered", "id", id, "query", query, "timeout", timeout)

		return nil, fmt.Errorf("%w: query %s after %v", ErrRequestTimeout, query, timeout)

	case res := <-req.done:
		return res.data, res.err
	}
}

// dialAndComplete performs one physical open attempt and finishes the
// bookkeeping shared by caller-initiated connects and backoff retries.
// c.dialWait must be set by the caller; it is closed here in every outcome.
func (c *Conn) dialAndComplete(ctx context.Context) error {
	dialer := &websocket.Dialer{HandshakeTimeout: c.cfg.dialTimeout}
	ws, _, err := dialer.DialContext(ctx, c.cfg.endpoint, nil)

	c.mu.Lock()
	wait := c.dialWait
	c.dialWait = nil

	if err != nil {
		c.dialErr = err
		c.mu.Unlock()
		if wait != nil {
			close(wait)
		}
		c.logger.Debug("failed to open channel", "endpoint", c.cfg.endpoint, "error", err)

		return err
	}

	if c.intentional {
		// Disconnect raced the open; drop the fresh socket.
		c.dialErr = ErrConnClosed
		c.mu.Unlock()
		_ = ws.Close()
		if wait != nil {
			close(wait)
		}

		return ErrConnClosed
	}

	c.ws = ws
	c.gen++
	gen := c.gen
	c.attempts = 0
	c.dialErr = nil
	c.setStateLocked(ConnectedState)
	c.startKeepaliveLocked()
	events := c.takeQueuedLocked()
	c.mu.Unlock()

	if wait != nil {
		close(wait)
	}

	c.logger.Info("connected to scanner bridge", "endpoint", c.cfg.endpoint)

	go c.readLoop(ws, gen)
	c.publishAll(events)

	return nil
}

// readLoop reads inbound frames until the socket dies, then enters the
// close-handling path for its generation.
func (c *Conn) readLoop(ws *websocket.Conn, gen uint64) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			c.handleClose(gen, err)
			return
		}
		c.handleFrame(data)
	}
}

// handleFrame routes one inbound payload. Malformed payloads are logged and
// dropped; they never terminate the connection.
func (c *Conn) handleFrame(data []byte) {
	c.metrics.incFrameRecv()

	frame, err := protocol.Decode(data)
	if err != nil {
		c.metrics.incParseErr()
		c.logger.Warn("dropping malformed frame", "error", err)

		return
	}

	switch frame.Type {
	case protocol.FrameResponse:
		var rsp protocol.Response
		if err := json.Unmarshal(frame.Raw, &rsp); err != nil {
			c.metrics.incParseErr()
			c.logger.Warn("dropping malformed response frame", "error", err)

			return
		}
		c.resolvePending(&rsp)

	case protocol.FramePong:
		// keepalive acknowledgment, consumed here and never forwarded
		c.metrics.incPongRecv()

	default:
		c.publishAll([]Event{{Kind: EventFrame, Frame: frame}})
	}
}

// resolvePending completes the pending request matching the response, if any.
// A response with no live pending entry arrived after a local timeout and is
// silently ignored.
func (c *Conn) resolvePending(rsp *protocol.Response) {
	req, ok := c.pending.LoadAndDelete(rsp.ID)
	if !ok {
		c.logger.Debug("response without pending request", "id", rsp.ID)
		return
	}

	if rsp.Success {
		req.complete(rsp.Data, nil)
	} else {
		req.complete(nil, fmt.Errorf("%w: %s", ErrQueryRejected, rsp.Error))
	}
}

// failAllPending rejects every outstanding request with err and empties the
// pending set.
func (c *Conn) failAllPending(err error) {
	c.pending.Range(func(id string, req *pendingRequest) bool {
		c.pending.Delete(id)
		req.complete(nil, err)

		return true
	})
}

// handleClose runs the close-handling path for an unintended socket death.
// Stale generations (already torn down by Disconnect or a newer open) are
// ignored.
func (c *Conn) handleClose(gen uint64, err error) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}

	if c.ws != nil {
		_ = c.ws.Close()
		c.ws = nil
	}
	c.gen++
	c.stopKeepaliveLocked()

	if err != nil && !isExpectedCloseError(err) {
		c.queued = append(c.queued, Event{Kind: EventError, Err: err})
	}

	intentional := c.intentional
	if !intentional && c.cfg.autoReconnect {
		c.setStateLocked(ReconnectingState)
		c.scheduleReconnectLocked()
	} else {
		c.setStateLocked(DisconnectedState)
	}
	events := c.takeQueuedLocked()
	c.mu.Unlock()

	c.logger.Debug("channel closed", "error", err, "intentional", intentional)
	c.publishAll(events)
}

// scheduleReconnectLocked arms the backoff timer for the next retry.
// Scheduling is a no-op while a timer is already pending, so at most one
// reconnect timer exists at a time. The caller must hold c.mu.
func (c *Conn) scheduleReconnectLocked() {
	if c.reconnectTimer != nil {
		return
	}

	delay := c.backoffDelayLocked()
	c.metrics.incReconnect()
	c.reconnectTimer = time.AfterFunc(delay, c.retryConnect)
	c.queued = append(c.queued, Event{
		Kind:    EventReconnecting,
		State:   ReconnectingState,
		Attempt: c.attempts + 1,
		Delay:   delay,
	})
	c.logger.Info("reconnect scheduled", "attempt", c.attempts+1, "delay", delay)
}

// backoffDelayLocked computes min(initial * 2^attempts, max) from the counter
// before it is incremented for the upcoming attempt. The caller must hold c.mu.
func (c *Conn) backoffDelayLocked() time.Duration {
	if c.attempts >= 32 {
		return c.cfg.reconnectMaxDelay
	}
	delay := c.cfg.reconnectInitialDelay << c.attempts
	if delay <= 0 || delay > c.cfg.reconnectMaxDelay {
		delay = c.cfg.reconnectMaxDelay
	}

	return delay
}

// retryConnect is the backoff timer callback: it increments the attempt
// counter and performs one open attempt. A failed attempt re-enters the
// close-handling path, scheduling the next backoff recursively.
func (c *Conn) retryConnect() {
	c.mu.Lock()
	c.reconnectTimer = nil
	if c.intentional || c.state != ReconnectingState || c.dialWait != nil {
		c.mu.Unlock()
		return
	}

	c.attempts++
	c.dialWait = make(chan struct{})
	c.setStateLocked(ConnectingState)
	events := c.takeQueuedLocked()
	c.mu.Unlock()
	c.publishAll(events)

	if err := c.dialAndComplete(context.Background()); err != nil {
		c.mu.Lock()
		if !c.intentional && c.cfg.autoReconnect {
			c.setStateLocked(ReconnectingState)
			c.scheduleReconnectLocked()
		} else {
			c.setStateLocked(DisconnectedState)
		}
		events := c.takeQueuedLocked()
		c.mu.Unlock()
		c.publishAll(events)
	}
}

// cancelReconnectTimerLocked stops a pending backoff timer, if any.
// The caller must hold c.mu.
func (c *Conn) cancelReconnectTimerLocked() {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
}

// startKeepaliveLocked starts the ping loop for the current channel.
// The caller must hold c.mu.
func (c *Conn) startKeepaliveLocked() {
	c.stopKeepaliveLocked()

	stop := make(chan struct{})
	c.keepaliveStop = stop

	go func() {
		ticker := time.NewTicker(c.cfg.keepaliveInterval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				// Ping send failures are swallowed: a genuinely dead channel is
				// detected by the physical close event, not by ping failure.
				if err := c.Send(protocol.NewPing()); err != nil {
					continue
				}
				c.metrics.incPingSent()
			}
		}
	}()
}

// stopKeepaliveLocked stops the ping loop, if running.
// The caller must hold c.mu.
func (c *Conn) stopKeepaliveLocked() {
	if c.keepaliveStop != nil {
		close(c.keepaliveStop)
		c.keepaliveStop = nil
	}
}

// setStateLocked transitions to newState and queues the state-change event.
// Setting the current state again is a no-op, so the same state is never
// published twice. The caller must hold c.mu.
func (c *Conn) setStateLocked(newState ConnState) {
	if c.state == newState {
		return
	}

	prev := c.state
	c.state = newState
	c.logger.Debug("connection state changed", "prev", prev, "state", newState)

	c.queued = append(c.queued, Event{Kind: EventStateChange, PrevState: prev, State: newState})
	switch newState {
	case ConnectedState:
		c.queued = append(c.queued, Event{Kind: EventOpen, State: newState})
	case DisconnectedState:
		c.queued = append(c.queued, Event{Kind: EventClose, State: newState})
	}
}

// takeQueuedLocked removes and returns the events produced inside the current
// critical section; they are published after the mutex is released so handlers
// may call back into the connection. The caller must hold c.mu.
func (c *Conn) takeQueuedLocked() []Event {
	events := c.queued
	c.queued = nil

	return events
}

func (c *Conn) publishAll(events []Event) {
	for _, ev := range events {
		c.events.Publish(ev.Kind, ev)
	}
}

// isExpectedCloseError reports whether err is the ordinary outcome of a closed
// websocket rather than a failure worth surfacing.
func isExpectedCloseError(err error) bool {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway) {
		return true
	}

	return errors.Is(err, net.ErrClosed)
}
