package protocol

import (
	"encoding/json"
	"fmt"
)

// Status is the bridge's answer to a status query: whether a physical device
// is attached plus identification fields. Raw preserves the complete payload.
type Status struct {
	Connected bool   `json:"connected"`
	Device    string `json:"device,omitempty"`
	Firmware  string `json:"firmware,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// DecodeStatus decodes a status query payload.
func DecodeStatus(data json.RawMessage) (*Status, error) {
	var st Status
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	st.Raw = data

	return &st, nil
}

// RfidTag is one entry of an rfid_tags query payload.
type RfidTag struct {
	EPC      string    `json:"epc"`
	RSSI     float64   `json:"rssi,omitempty"`
	Count    int       `json:"count,omitempty"`
	LastSeen Timestamp `json:"last_seen,omitempty"`
}

// DecodeRfidTags decodes an rfid_tags query payload. The bridge emits either a
// bare array or an object with a "tags" field; both are accepted.
func DecodeRfidTags(data json.RawMessage) ([]RfidTag, error) {
	var tags []RfidTag
	if err := json.Unmarshal(data, &tags); err == nil {
		return tags, nil
	}

	var wrapped struct {
		Tags []RfidTag `json:"tags"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}

	return wrapped.Tags, nil
}
