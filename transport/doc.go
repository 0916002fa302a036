// Package transport owns the persistent WebSocket link to the scanner bridge
// service and its lifecycle state machine.
//
// A Conn holds at most one physical channel at a time. It drives the
// disconnected/connecting/connected/reconnecting state machine, recovers from
// unintended closes with capped exponential backoff, probes the link with
// periodic keepalive pings, and correlates query frames with their responses
// by generated identifier so callers can await replies.
//
// Frames the transport does not consume itself (everything except responses
// and pongs) are republished on the connection's event surface for a higher
// layer to interpret.
package transport
