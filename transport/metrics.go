package transport

import "sync/atomic"

// Metrics tracks connection activity counters. All methods are safe for
// concurrent use.
type Metrics struct {
	framesSent      atomic.Int64
	framesRecv      atomic.Int64
	parseErrCount   atomic.Int64
	reconnectCount  atomic.Int64
	pingSentCount   atomic.Int64
	pongRecvCount   atomic.Int64
	requestTimeouts atomic.Int64
}

func (m *Metrics) incFrameSent()      { m.framesSent.Add(1) }
func (m *Metrics) incFrameRecv()      { m.framesRecv.Add(1) }
func (m *Metrics) incParseErr()       { m.parseErrCount.Add(1) }
func (m *Metrics) incReconnect()      { m.reconnectCount.Add(1) }
func (m *Metrics) incPingSent()       { m.pingSentCount.Add(1) }
func (m *Metrics) incPongRecv()       { m.pongRecvCount.Add(1) }
func (m *Metrics) incRequestTimeout() { m.requestTimeouts.Add(1) }

// FramesSent returns the number of frames written to the channel.
func (m *Metrics) FramesSent() int64 { return m.framesSent.Load() }

// FramesReceived returns the number of frames read from the channel.
func (m *Metrics) FramesReceived() int64 { return m.framesRecv.Load() }

// ParseErrors returns the number of malformed inbound frames dropped.
func (m *Metrics) ParseErrors() int64 { return m.parseErrCount.Load() }

// Reconnects returns the number of backoff retries scheduled.
func (m *Metrics) Reconnects() int64 { return m.reconnectCount.Load() }

// PingsSent returns the number of keepalive pings sent.
func (m *Metrics) PingsSent() int64 { return m.pingSentCount.Load() }

// PongsReceived returns the number of keepalive acknowledgments consumed.
func (m *Metrics) PongsReceived() int64 { return m.pongRecvCount.Load() }

// RequestTimeouts returns the number of requests that expired unanswered.
func (m *Metrics) RequestTimeouts() int64 { return m.requestTimeouts.Load() }
