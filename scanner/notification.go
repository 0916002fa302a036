package scanner

import (
	"time"

	"github.com/scanbridge/go-scanbridge/protocol"
)

// NotificationKind identifies one notification kind on the client's event
// surface.
type NotificationKind uint8

const (
	// KindScan fires for every barcode observation.
	KindScan NotificationKind = iota
	// KindRfid fires for every RFID tag observation.
	KindRfid
	// KindCapabilities fires when the capability cache is updated, whether by
	// the proactive fetch after an open or by an unsolicited push.
	KindCapabilities
	// KindConnect fires when the channel becomes connected.
	KindConnect
	// KindDisconnect fires when the connection reaches the disconnected state.
	KindDisconnect
	// KindReconnecting fires when a backoff retry has been scheduled.
	KindReconnecting
	// KindError carries transport failures and unsolicited bridge error frames.
	KindError
)

// String returns the string representation of the notification kind.
func (k NotificationKind) String() string {
	switch k {
	case KindScan:
		return "scan"
	case KindRfid:
		return "rfid"
	case KindCapabilities:
		return "capabilities"
	case KindConnect:
		return "connect"
	case KindDisconnect:
		return "disconnect"
	case KindReconnecting:
		return "reconnecting"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// Notification is the payload delivered to client subscribers. Which fields
// are populated depends on Kind.
type Notification struct {
	Kind NotificationKind

	// Scan accompanies KindScan.
	Scan *protocol.ScanEvent
	// Rfid accompanies KindRfid.
	Rfid *protocol.RfidEvent
	// Capabilities accompanies KindCapabilities.
	Capabilities *protocol.Capabilities

	// Attempt and Delay accompany KindReconnecting.
	Attempt uint32
	Delay   time.Duration

	// Err accompanies KindError.
	Err error
}
