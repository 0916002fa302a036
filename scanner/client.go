package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/scanbridge/go-scanbridge/emitter"
	"github.com/scanbridge/go-scanbridge/logger"
	"github.com/scanbridge/go-scanbridge/protocol"
	"github.com/scanbridge/go-scanbridge/transport"
)

// Client is the high-level scanner bridge client. It owns one transport
// connection and republishes its traffic as typed notifications.
type Client struct {
	conn   *transport.Conn
	logger logger.Logger
	events *emitter.Emitter[NotificationKind, Notification]

	capMu sync.RWMutex
	caps  *protocol.Capabilities
}

// New creates a Client. Transport subscriptions are wired before New returns;
// with auto-connect enabled the initial open runs asynchronously, so callers
// can attach their own subscribers before the first frame arrives.
func New(opts ...Option) (*Client, error) {
	cfg := &config{
		autoConnect: true,
		logger:      logger.GetLogger(),
	}
	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	connCfg, err := transport.NewConfig(append(cfg.connOpts, transport.WithLogger(cfg.logger))...)
	if err != nil {
		return nil, err
	}
	conn, err := transport.NewConn(connCfg)
	if err != nil {
		return nil, err
	}

	c := &Client{
		conn:   conn,
		logger: cfg.logger,
		events: emitter.New[NotificationKind, Notification](cfg.logger),
	}

	conn.Events().Subscribe(transport.EventOpen, c.onOpen)
	conn.Events().Subscribe(transport.EventClose, c.onClose)
	conn.Events().Subscribe(transport.EventReconnecting, c.onReconnecting)
	conn.Events().Subscribe(transport.EventError, c.onTransportError)
	conn.Events().Subscribe(transport.EventFrame, c.onFrame)

	if cfg.autoConnect {
		go func() {
			if err := c.conn.Connect(context.Background()); err != nil {
				c.logger.Warn("initial connect failed", "error", err)
			}
		}()
	}

	return c, nil
}

// Dial creates a Client with auto-connect disabled and opens the channel
// before returning. It is construct-then-connect with no extra behavior.
func Dial(ctx context.Context, opts ...Option) (*Client, error) {
	c, err := New(append(opts, WithAutoConnect(false))...)
	if err != nil {
		return nil, err
	}
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}

	return c, nil
}

// Connect opens the channel. See transport.Conn.Connect for its single-flight
// semantics.
func (c *Client) Connect(ctx context.Context) error {
	return c.conn.Connect(ctx)
}

// Disconnect closes the channel intentionally. Outstanding requests are
// rejected and no reconnect is scheduled.
func (c *Client) Disconnect() error {
	return c.conn.Disconnect()
}

// State returns the current connection state.
func (c *Client) State() transport.ConnState {
	return c.conn.State()
}

// IsConnected reports whether the channel is open.
func (c *Client) IsConnected() bool {
	return c.conn.State().IsConnected()
}

// Conn exposes the underlying transport connection, e.g. to register its
// metrics collector.
func (c *Client) Conn() *transport.Conn {
	return c.conn
}

// Notifications returns the client's notification surface.
func (c *Client) Notifications() *emitter.Emitter[NotificationKind, Notification] {
	return c.events
}

// Capabilities returns the last known bridge capabilities, or nil when none
// have been received yet.
func (c *Client) Capabilities() *protocol.Capabilities {
	c.capMu.RLock()
	defer c.capMu.RUnlock()

	return c.caps
}

// OnScan subscribes fn to barcode observations.
func (c *Client) OnScan(fn func(*protocol.ScanEvent)) *emitter.Subscription[NotificationKind, Notification] {
	return c.events.Subscribe(KindScan, func(n Notification) { fn(n.Scan) })
}

// OnRfid subscribes fn to RFID tag observations.
func (c *Client) OnRfid(fn func(*protocol.RfidEvent)) *emitter.Subscription[NotificationKind, Notification] {
	return c.events.Subscribe(KindRfid, func(n Notification) { fn(n.Rfid) })
}

// OnCapabilities subscribes fn to capability cache updates.
func (c *Client) OnCapabilities(fn func(*protocol.Capabilities)) *emitter.Subscription[NotificationKind, Notification] {
	return c.events.Subscribe(KindCapabilities, func(n Notification) { fn(n.Capabilities) })
}

// OnConnect subscribes fn to channel opens.
func (c *Client) OnConnect(fn func()) *emitter.Subscription[NotificationKind, Notification] {
	return c.events.Subscribe(KindConnect, func(Notification) { fn() })
}

// OnDisconnect subscribes fn to intentional and terminal closes.
func (c *Client) OnDisconnect(fn func()) *emitter.Subscription[NotificationKind, Notification] {
	return c.events.Subscribe(KindDisconnect, func(Notification) { fn() })
}

// OnReconnecting subscribes fn to scheduled backoff retries.
func (c *Client) OnReconnecting(fn func(attempt uint32, delay time.Duration)) *emitter.Subscription[NotificationKind, Notification] {
	return c.events.Subscribe(KindReconnecting, func(n Notification) { fn(n.Attempt, n.Delay) })
}

// OnError subscribes fn to transport failures and bridge error frames.
func (c *Client) OnError(fn func(error)) *emitter.Subscription[NotificationKind, Notification] {
	return c.events.Subscribe(KindError, func(n Notification) { fn(n.Err) })
}

// TriggerScan requests a single barcode read.
func (c *Client) TriggerScan() error {
	return c.conn.Command(protocol.NewTriggerScan())
}

// SetSymbologies restricts the barcode decoder to the given symbologies.
func (c *Client) SetSymbologies(symbologies []string) error {
	return c.conn.Command(protocol.NewSetSymbologies(symbologies))
}

// StartRfidInventory starts a continuous RFID inventory round. options may be
// nil; when present it is forwarded to the bridge verbatim.
func (c *Client) StartRfidInventory(options json.RawMessage) error {
	return c.conn.Command(protocol.NewStartRfidInventory(options))
}

// StopRfidInventory stops the running RFID inventory round.
func (c *Client) StopRfidInventory() error {
	return c.conn.Command(protocol.NewStopRfidInventory())
}

// GetStatus queries the bridge's device status.
func (c *Client) GetStatus(ctx context.Context) (*protocol.Status, error) {
	data, err := c.conn.Request(ctx, protocol.QueryStatus, 0)
	if err != nil {
		return nil, err
	}

	return protocol.DecodeStatus(data)
}

// GetCapabilities queries the bridge's capabilities, updates the cache, and
// publishes a capabilities notification.
func (c *Client) GetCapabilities(ctx context.Context) (*protocol.Capabilities, error) {
	data, err := c.conn.Request(ctx, protocol.QueryCapabilities, 0)
	if err != nil {
		return nil, err
	}

	var caps protocol.Capabilities
	if err := json.Unmarshal(data, &caps); err != nil {
		return nil, fmt.Errorf("decode capabilities: %w", err)
	}
	c.applyCapabilities(&caps)

	return &caps, nil
}

// GetConfig queries the bridge's device configuration. The payload shape is
// device specific and returned verbatim.
func (c *Client) GetConfig(ctx context.Context) (json.RawMessage, error) {
	return c.conn.Request(ctx, protocol.QueryConfig, 0)
}

// GetRfidTags queries the tags observed by the running RFID inventory.
func (c *Client) GetRfidTags(ctx context.Context) ([]protocol.RfidTag, error) {
	data, err := c.conn.Request(ctx, protocol.QueryRfidTags, 0)
	if err != nil {
		return nil, err
	}

	return protocol.DecodeRfidTags(data)
}

func (c *Client) onOpen(transport.Event) {
	c.publish(Notification{Kind: KindConnect})

	// Proactive capability fetch. Runs off the event path so the open
	// notification is not held up; failure keeps the last known cache.
	go func() {
		if _, err := c.GetCapabilities(context.Background()); err != nil {
			c.logger.Debug("capability fetch after open failed", "error", err)
		}
	}()
}

func (c *Client) onClose(transport.Event) {
	c.publish(Notification{Kind: KindDisconnect})
}

func (c *Client) onReconnecting(ev transport.Event) {
	c.publish(Notification{Kind: KindReconnecting, Attempt: ev.Attempt, Delay: ev.Delay})
}

func (c *Client) onTransportError(ev transport.Event) {
	c.publish(Notification{Kind: KindError, Err: ev.Err})
}

// onFrame routes frames the transport does not consume. Undecodable event
// frames are logged and dropped, matching the transport's malformed-frame
// policy.
func (c *Client) onFrame(ev transport.Event) {
	frame := ev.Frame

	switch frame.Type {
	case protocol.FrameScan:
		scan, err := protocol.DecodeScanEvent(frame.Raw)
		if err != nil {
			c.logger.Warn("dropping malformed scan frame", "error", err)
			return
		}
		c.publish(Notification{Kind: KindScan, Scan: scan})

	case protocol.FrameRfid:
		rfid, err := protocol.DecodeRfidEvent(frame.Raw)
		if err != nil {
			c.logger.Warn("dropping malformed rfid frame", "error", err)
			return
		}
		c.publish(Notification{Kind: KindRfid, Rfid: rfid})

	case protocol.FrameCapabilities:
		var push protocol.CapabilitiesFrame
		if err := json.Unmarshal(frame.Raw, &push); err != nil || push.Data == nil {
			c.logger.Warn("dropping malformed capabilities frame", "error", err)
			return
		}
		c.applyCapabilities(push.Data)

	case protocol.FrameError:
		var srvErr protocol.ServerError
		if err := json.Unmarshal(frame.Raw, &srvErr); err != nil {
			c.logger.Warn("dropping malformed error frame", "error", err)
			return
		}
		c.publish(Notification{Kind: KindError, Err: &srvErr})

	default:
		c.logger.Debug("ignoring unhandled frame", "type", frame.Type)
	}
}

// applyCapabilities is the single convergence point for the proactive fetch
// and unsolicited pushes: update the cache, then notify.
func (c *Client) applyCapabilities(caps *protocol.Capabilities) {
	c.capMu.Lock()
	c.caps = caps
	c.capMu.Unlock()

	c.publish(Notification{Kind: KindCapabilities, Capabilities: caps})
}

func (c *Client) publish(n Notification) {
	c.events.Publish(n.Kind, n)
}
