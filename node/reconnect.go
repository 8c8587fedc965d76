// Package node implements the node-side surfaces of spec §4.9-4.11: inbound
// hub RPC handlers, the reconnecting hub connection, and the subscription
// manager.
package node

import (
	"context"
	"sync"
	"time"
)

const (
	backoffStart  = 100 * time.Millisecond
	backoffCap    = 100 * time.Second
	backoffFactor = 2
)

// Reconnect holds a connection of type T behind a lock, reconnecting with
// exponential backoff whenever it is lost (spec §4.10).
type Reconnect[T any] struct {
	mu      sync.RWMutex
	current T
	ok      bool

	dial func(ctx context.Context) (T, error)

	resetCh chan struct{}
	stop    chan struct{}
}

// NewReconnect starts a background loop that calls dial whenever the
// current connection is reset (via Reset) or absent, backing off
// exponentially between failed attempts.
func NewReconnect[T any](ctx context.Context, dial func(context.Context) (T, error)) *Reconnect[T] {
	r := &Reconnect[T]{
		dial:    dial,
		resetCh: make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
	r.triggerConnect()
	go r.loop(ctx)
	return r
}

func (r *Reconnect[T]) triggerConnect() {
	select {
	case r.resetCh <- struct{}{}:
	default:
	}
}

func (r *Reconnect[T]) loop(ctx context.Context) {
	backoff := backoffStart
	for {
		select {
		case <-r.stop:
			return
		case <-ctx.Done():
			return
		case <-r.resetCh:
		}

		conn, err := r.dial(ctx)
		if err != nil {
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			}
			backoff *= backoffFactor
			if backoff > backoffCap {
				backoff = backoffCap
			}
			r.triggerConnect()
			continue
		}

		backoff = backoffStart
		r.mu.Lock()
		r.current = conn
		r.ok = true
		r.mu.Unlock()
	}
}

// Get returns the current connection, or ok=false if none is established
// yet.
func (r *Reconnect[T]) Get() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current, r.ok
}

// Reset signals that the current connection has failed and a fresh one
// should be dialed.
func (r *Reconnect[T]) Reset() {
	r.mu.Lock()
	r.ok = false
	r.mu.Unlock()
	r.triggerConnect()
}

// Close stops the reconnect loop.
func (r *Reconnect[T]) Close() {
	close(r.stop)
}
