package protocol

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Timestamp normalizes the bridge's timestamp encodings into a time.Time.
// The bridge emits either an RFC 3339 string or a millisecond epoch number.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if len(data) == 0 || string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", s, err)
		}
		t.Time = parsed

		return nil
	}

	ms, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("parse timestamp %s: %w", data, err)
	}
	t.Time = time.UnixMilli(ms).UTC()

	return nil
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(time.RFC3339))
}

// ScanEvent is one barcode observation pushed by the bridge.
// Raw preserves the complete frame so fields the client does not model
// survive verbatim.
type ScanEvent struct {
	Type      FrameType `json:"type"`
	ID        string    `json:"id"`
	Data      string    `json:"data"`
	Symbology string    `json:"symbology"`
	Timestamp Timestamp `json:"timestamp"`

	Raw json.RawMessage `json:"-"`
}

// RfidEvent is one RFID tag observation pushed by the bridge.
type RfidEvent struct {
	Type      FrameType `json:"type"`
	ID        string    `json:"id"`
	EPC       string    `json:"epc"`
	RSSI      float64   `json:"rssi,omitempty"`
	Timestamp Timestamp `json:"timestamp"`

	Raw json.RawMessage `json:"-"`
}

// DecodeScanEvent decodes a scan frame, keeping the raw frame attached.
func DecodeScanEvent(raw json.RawMessage) (*ScanEvent, error) {
	var ev ScanEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	ev.Raw = raw

	return &ev, nil
}

// DecodeRfidEvent decodes an rfid frame, keeping the raw frame attached.
func DecodeRfidEvent(raw json.RawMessage) (*RfidEvent, error) {
	var ev RfidEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	ev.Raw = raw

	return &ev, nil
}

// BarcodeCapabilities describes the barcode subsystem of the bridge.
type BarcodeCapabilities struct {
	Supported   bool     `json:"supported"`
	Symbologies []string `json:"symbologies,omitempty"`
}

// RfidCapabilities describes the RFID subsystem of the bridge.
type RfidCapabilities struct {
	Supported bool    `json:"supported"`
	PowerMin  float64 `json:"power_min,omitempty"`
	PowerMax  float64 `json:"power_max,omitempty"`
}

// Capabilities is the bridge's self-description: vendor and model identifiers
// plus per-subsystem feature blocks.
type Capabilities struct {
	Vendor  string               `json:"vendor"`
	Model   string               `json:"model"`
	Barcode *BarcodeCapabilities `json:"barcode,omitempty"`
	Rfid    *RfidCapabilities    `json:"rfid,omitempty"`
}
