package protocol

import (
	"crypto/rand"
	"encoding/binary"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
)

// reqIDGenerator produces correlation identifiers for query frames.
//
// The counter is seeded from a cryptographically secure random source so that
// identifiers from a restarted client do not collide with responses still in
// flight from a previous process, and atomically incremented so identifiers
// are never reused while outstanding.
type reqIDGenerator struct {
	id atomic.Uint64
}

func newReqIDGenerator() *reqIDGenerator {
	inst := &reqIDGenerator{}
	var buf [8]byte
	if _, err := io.ReadFull(rand.Reader, buf[:]); err != nil {
		return inst
	}
	inst.id.Store(binary.LittleEndian.Uint64(buf[:]))
	return inst
}

func (g *reqIDGenerator) next() string {
	return "q" + strconv.FormatUint(g.id.Add(1), 16)
}

var (
	genInst = &reqIDGenerator{}
	genOnce sync.Once
)

func getReqIDGenerator() *reqIDGenerator {
	genOnce.Do(func() {
		genInst = newReqIDGenerator()
	})
	return genInst
}

// GenerateRequestID returns a fresh correlation identifier for a query frame.
func GenerateRequestID() string {
	return getReqIDGenerator().next()
}
