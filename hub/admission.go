// Package hub implements the hub-side RPC surface of spec §4.7-4.8: query
// dispatch over the scheduler, per-connection admission control, session
// bookkeeping (Room), and IP blacklisting.
package hub

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Admission gates one connection's RPC calls behind a concurrency
// semaphore and a request-rate limiter (spec §4.7, §5): "a semaphore of
// size max_queries_per_node and a periodic Interval(1/max_query_rate_per_node)
// in Delay mode."
type Admission struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
}

// NewAdmission builds an Admission gate for one connection.
func NewAdmission(maxConcurrent int64, maxRateHz float64) *Admission {
	return &Admission{
		sem:     semaphore.NewWeighted(maxConcurrent),
		limiter: rate.NewLimiter(rate.Limit(maxRateHz), 1),
	}
}

// Acquire blocks (respecting ctx) until both the concurrency semaphore and
// the rate limiter admit one request, then returns a release function the
// caller must invoke when done.
func (a *Admission) Acquire(ctx context.Context) (release func(), err error) {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("hub: admission semaphore: %w", err)
	}
	if err := a.limiter.Wait(ctx); err != nil {
		a.sem.Release(1)
		return nil, fmt.Errorf("hub: admission rate limiter: %w", err)
	}
	return func() { a.sem.Release(1) }, nil
}
