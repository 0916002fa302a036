package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// FrameType is the "type" discriminator of a wire frame.
type FrameType string

// Frame types sent to the bridge.
const (
	FrameCommand FrameType = "command"
	FrameQuery   FrameType = "query"
	FramePing    FrameType = "ping"
)

// Frame types received from the bridge.
const (
	FrameScan         FrameType = "scan"
	FrameRfid         FrameType = "rfid"
	FrameCapabilities FrameType = "capabilities"
	FrameResponse     FrameType = "response"
	FrameError        FrameType = "error"
	FramePong         FrameType = "pong"
)

// CommandKind identifies a command sub-kind.
type CommandKind string

const (
	CmdTriggerScan        CommandKind = "trigger_scan"
	CmdSetSymbologies     CommandKind = "set_symbologies"
	CmdStartRfidInventory CommandKind = "start_rfid_inventory"
	CmdStopRfidInventory  CommandKind = "stop_rfid_inventory"
)

// QueryKind identifies a query sub-kind.
type QueryKind string

const (
	QueryStatus       QueryKind = "status"
	QueryCapabilities QueryKind = "capabilities"
	QueryConfig       QueryKind = "config"
	QueryRfidTags     QueryKind = "rfid_tags"
)

// ErrMalformedFrame indicates that an inbound payload could not be decoded
// into a frame, or carries no type discriminator.
var ErrMalformedFrame = errors.New("malformed frame")

// Frame is a decoded inbound frame. Type carries the discriminator; Raw holds
// the complete frame verbatim for type-specific decoding.
type Frame struct {
	Type FrameType
	Raw  json.RawMessage
}

// Decode parses an inbound text payload into a Frame.
// It returns ErrMalformedFrame when the payload is not a JSON object or the
// type discriminator is missing.
func Decode(data []byte) (*Frame, error) {
	var head struct {
		Type FrameType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	if head.Type == "" {
		return nil, fmt.Errorf("%w: missing type discriminator", ErrMalformedFrame)
	}

	raw := make(json.RawMessage, len(data))
	copy(raw, data)

	return &Frame{Type: head.Type, Raw: raw}, nil
}

// Command is a fire-and-forget instruction to the bridge.
type Command struct {
	Type        FrameType       `json:"type"`
	Command     CommandKind     `json:"command"`
	Symbologies []string        `json:"symbologies,omitempty"`
	Options     json.RawMessage `json:"options,omitempty"`
}

// NewTriggerScan builds a trigger_scan command frame.
func NewTriggerScan() *Command {
	return &Command{Type: FrameCommand, Command: CmdTriggerScan}
}

// NewSetSymbologies builds a set_symbologies command frame.
func NewSetSymbologies(symbologies []string) *Command {
	return &Command{Type: FrameCommand, Command: CmdSetSymbologies, Symbologies: symbologies}
}

// NewStartRfidInventory builds a start_rfid_inventory command frame.
// options may be nil; when present it is forwarded verbatim.
func NewStartRfidInventory(options json.RawMessage) *Command {
	return &Command{Type: FrameCommand, Command: CmdStartRfidInventory, Options: options}
}

// NewStopRfidInventory builds a stop_rfid_inventory command frame.
func NewStopRfidInventory() *Command {
	return &Command{Type: FrameCommand, Command: CmdStopRfidInventory}
}

// Query is a correlated request expecting a Response with the same ID.
type Query struct {
	Type  FrameType `json:"type"`
	ID    string    `json:"id"`
	Query QueryKind `json:"query"`
}

// NewQuery builds a query frame with the given correlation identifier.
func NewQuery(id string, kind QueryKind) *Query {
	return &Query{Type: FrameQuery, ID: id, Query: kind}
}

// Ping is the keepalive probe frame.
type Ping struct {
	Type FrameType `json:"type"`
}

// NewPing builds a keepalive ping frame.
func NewPing() *Ping {
	return &Ping{Type: FramePing}
}

// Response is the bridge's answer to a Query, matched by ID.
type Response struct {
	Type    FrameType       `json:"type"`
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ServerError is an unsolicited error report from the bridge.
type ServerError struct {
	Type    FrameType `json:"type"`
	Message string    `json:"message"`
	Code    string    `json:"code,omitempty"`
}

func (e *ServerError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("bridge error %s: %s", e.Code, e.Message)
	}
	return "bridge error: " + e.Message
}

// CapabilitiesFrame is an unsolicited capability push from the bridge.
type CapabilitiesFrame struct {
	Type FrameType     `json:"type"`
	Data *Capabilities `json:"data"`
}
