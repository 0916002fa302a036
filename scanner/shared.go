package scanner

import "sync"

// The shared slot holds one process-wide client with a reference count, so
// independent consumers of the same physical device reuse one channel instead
// of racing over it.
var (
	sharedMu   sync.Mutex
	sharedSlot *sharedEntry
)

type sharedEntry struct {
	client *Client
	refs   int
}

// SharedClient is a reference-counted handle on the process-wide client.
// Call Release when done; the last release disconnects the underlying client
// and clears the slot.
type SharedClient struct {
	*Client

	releaseOnce sync.Once
}

// Shared acquires the process-wide shared client, creating it on first use.
// Options apply only to that first creation; later acquisitions join the
// existing instance unchanged.
func Shared(opts ...Option) (*SharedClient, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedSlot == nil {
		client, err := New(opts...)
		if err != nil {
			return nil, err
		}
		sharedSlot = &sharedEntry{client: client}
	}
	sharedSlot.refs++

	return &SharedClient{Client: sharedSlot.client}, nil
}

// Release decrements the shared reference count. When the count reaches zero
// the underlying client is disconnected and the slot is cleared, so the next
// Shared call creates a fresh instance. Releasing the same handle twice is a
// no-op.
func (s *SharedClient) Release() {
	s.releaseOnce.Do(func() {
		sharedMu.Lock()
		defer sharedMu.Unlock()

		if sharedSlot == nil || sharedSlot.client != s.Client {
			return
		}

		sharedSlot.refs--
		if sharedSlot.refs > 0 {
			return
		}

		_ = sharedSlot.client.Disconnect()
		sharedSlot = nil
	})
}
