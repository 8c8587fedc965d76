package transport

import (
	"net"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// matcherEvictionAfter is how long an unmatched incoming-connection waiter
// is kept before being evicted (spec §4.5: "10 s eviction").
const matcherEvictionAfter = 10 * time.Second

// matcher pairs incoming QUIC connections (observed by the endpoint's
// accept loop) with outstanding Connect calls waiting for a connection
// from the same remote address, for symmetric hole punching.
type matcher struct {
	mu      sync.Mutex
	waiters map[string]*waiterEntry
	clock   clock.Clock
}

type waiterEntry struct {
	ch        chan any
	createdAt time.Time
}

func newMatcher(c clock.Clock) *matcher {
	if c == nil {
		c = clock.New()
	}
	return &matcher{waiters: make(map[string]*waiterEntry), clock: c}
}

// register returns a channel that will receive exactly one value when a
// matching incoming connection arrives via deliver, or nothing if it is
// evicted first.
func (m *matcher) register(addr net.Addr) chan any {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan any, 1)
	m.waiters[addr.String()] = &waiterEntry{ch: ch, createdAt: m.clock.Now()}
	return ch
}

// unregister removes a waiter without delivering to it, e.g. after the
// caller gives up.
func (m *matcher) unregister(addr net.Addr) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.waiters, addr.String())
}

// deliver hands an incoming connection to a waiter matching addr, reporting
// whether one was waiting.
func (m *matcher) deliver(addr net.Addr, conn any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.waiters[addr.String()]
	if !ok {
		return false
	}
	delete(m.waiters, addr.String())
	w.ch <- conn
	return true
}

// sweep evicts waiters older than matcherEvictionAfter.
func (m *matcher) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := m.clock.Now().Add(-matcherEvictionAfter)
	for k, w := range m.waiters {
		if w.createdAt.Before(cutoff) {
			delete(m.waiters, k)
		}
	}
}

func (m *matcher) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiters)
}
