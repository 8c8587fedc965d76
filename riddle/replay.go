package riddle

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultTolerance is the default accepted clock skew / query age (spec
// §4.2): 600 seconds.
const DefaultTolerance = 600 * time.Second

// ReplayWindow is a bounded-time nonce set rejecting duplicate or stale
// query nonces. Check-and-insert is atomic with respect to concurrent
// checks of the *same* nonce because the whole operation runs under a
// single mutex (spec §5: "serialize via a single-threaded task or a lock" —
// here, the lock).
type ReplayWindow struct {
	mu        sync.Mutex
	seen      map[Nonce]time.Time
	tolerance time.Duration
	clock     clock.Clock
}

// NewReplayWindow constructs a window with the given tolerance. A zero
// tolerance defaults to DefaultTolerance.
func NewReplayWindow(tolerance time.Duration) *ReplayWindow {
	return NewReplayWindowWithClock(tolerance, clock.New())
}

// NewReplayWindowWithClock is NewReplayWindow with an injectable clock, used
// by tests to exercise sweep/expiry behavior without sleeping.
func NewReplayWindowWithClock(tolerance time.Duration, c clock.Clock) *ReplayWindow {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &ReplayWindow{
		seen:      make(map[Nonce]time.Time),
		tolerance: tolerance,
		clock:     c,
	}
}

// Check validates and, if accepted, records nonce with the given claimed
// timestamp. It returns false if the timestamp is outside the tolerated
// skew or if the nonce was already seen.
func (w *ReplayWindow) Check(n Nonce, timestamp int64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	claimed := time.Unix(timestamp, 0)
	skew := now.Sub(claimed)
	if skew < 0 {
		skew = -skew
	}
	if skew > w.tolerance {
		return false
	}
	if _, dup := w.seen[n]; dup {
		return false
	}
	w.seen[n] = now
	return true
}

// Sweep evicts entries older than 3×tolerance, as spec §4.2 requires. It is
// meant to be called periodically by a background task.
func (w *ReplayWindow) Sweep() {
	w.mu.Lock()
	defer w.mu.Unlock()

	cutoff := w.clock.Now().Add(-3 * w.tolerance)
	for n, seenAt := range w.seen {
		if seenAt.Before(cutoff) {
			delete(w.seen, n)
		}
	}
}

// RunSweeper starts a goroutine that sweeps every 3×tolerance until stop is
// closed.
func (w *ReplayWindow) RunSweeper(stop <-chan struct{}) {
	go func() {
		ticker := w.clock.Ticker(3 * w.tolerance)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				w.Sweep()
			}
		}
	}()
}

// Len reports how many nonces are currently tracked (test/metrics helper).
func (w *ReplayWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}
