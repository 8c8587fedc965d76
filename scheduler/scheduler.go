// Package scheduler implements the hub's per-peer Thompson-sampling
// priority model (spec §4.8): a Beta posterior over success probability and
// a log-normal posterior over success latency, combined into a priority
// score used to rank peers for query fan-out.
package scheduler

import (
	"container/heap"
	"math"
	"math/rand"
	"sync"
)

// priorPseudoSuccesses/priorPseudoFailures set the Beta prior to 1
// pseudo-success / 9 pseudo-failures (spec §4.8).
const (
	priorPseudoSuccesses = 1
	priorPseudoFailures  = 9

	// priorLogLatencyMean/priorLogLatencyVariance center the log-latency prior
	// at 1s with broad variance, expressed directly in log-space.
	priorLogLatencyMean     = 0.0 // ln(1s) == 0
	priorLogLatencyVariance = 4.0
)

// Category separates statistics for queries from edition requests, since
// their latency and success distributions differ.
type Category int

const (
	CategoryQuery Category = iota
	CategoryEditionRequest
)

// Stats is one peer's running Beta/log-normal posterior for one category.
type Stats struct {
	mu sync.Mutex

	successes int64
	failures  int64

	// Online mean/variance of ln(latency) over observed successes,
	// via Welford's algorithm, seeded with the prior as one pseudo
	// observation.
	logLatencyCount int64
	logLatencyMean  float64
	logLatencyM2    float64

	inFlight int64
}

// NewStats returns a Stats block seeded with the priors from spec §4.8.
func NewStats() *Stats {
	return &Stats{
		logLatencyCount: 1,
		logLatencyMean:  priorLogLatencyMean,
		logLatencyM2:    priorLogLatencyVariance,
	}
}

// StartRequest records dispatch of a new request against this peer.
func (s *Stats) StartRequest() {
	s.mu.Lock()
	s.inFlight++
	s.mu.Unlock()
}

// EndRequestWithSuccess records a FOUND response observed after latencySecs.
func (s *Stats) EndRequestWithSuccess(latencySecs float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--
	s.successes++
	if latencySecs <= 0 {
		latencySecs = 1e-6
	}
	x := math.Log(latencySecs)
	s.logLatencyCount++
	delta := x - s.logLatencyMean
	s.logLatencyMean += delta / float64(s.logLatencyCount)
	s.logLatencyM2 += delta * (x - s.logLatencyMean)
}

// EndRequestWithFailure records a NOT_FOUND response or a timeout.
func (s *Stats) EndRequestWithFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--
	s.failures++
}

// samplePriority draws one sample of p_success/latency from the current
// posterior, per spec §4.8's generative description.
func (s *Stats) samplePriority(rng *rand.Rand) float64 {
	s.mu.Lock()
	alpha := priorPseudoSuccesses + float64(s.successes)
	beta := priorPseudoFailures + float64(s.failures)
	count := s.logLatencyCount
	mean := s.logLatencyMean
	variance := s.logLatencyM2 / float64(count)
	s.mu.Unlock()

	pSuccess := sampleBeta(rng, alpha, beta)
	if variance <= 0 {
		variance = 1e-6
	}
	logLatency := mean + math.Sqrt(variance)*rng.NormFloat64()
	latency := math.Exp(logLatency)
	if latency <= 0 {
		latency = 1e-6
	}
	return pSuccess / latency
}

// sampleBeta draws from Beta(alpha, beta) via two Gamma draws, which is the
// standard construction (no direct Beta sampler in math/rand).
func sampleBeta(rng *rand.Rand, alpha, beta float64) float64 {
	x := sampleGamma(rng, alpha)
	y := sampleGamma(rng, beta)
	if x+y == 0 {
		return 0.5
	}
	return x / (x + y)
}

// sampleGamma implements Marsaglia & Tsang's method for shape >= 1, falling
// back to the boost-by-one-and-rescale trick for shape < 1.
func sampleGamma(rng *rand.Rand, shape float64) float64 {
	if shape < 1 {
		u := rng.Float64()
		return sampleGamma(rng, shape+1) * math.Pow(u, 1/shape)
	}
	d := shape - 1.0/3.0
	c := 1.0 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*x*x*x*x {
			return d * v
		}
		if math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v
		}
	}
}

// Peer is an opaque identity the scheduler ranks; callers supply their own
// comparable peer key type via generics-free interface{} substitution is
// avoided by keying on a string identity outside this package.
type Peer struct {
	ID    string
	Query *Stats
	Edition *Stats
}

func NewPeer(id string) *Peer {
	return &Peer{ID: id, Query: NewStats(), Edition: NewStats()}
}

func (p *Peer) statsFor(cat Category) *Stats {
	if cat == CategoryEditionRequest {
		return p.Edition
	}
	return p.Query
}

type scored struct {
	peer     *Peer
	priority float64
}

type maxHeap []scored

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].priority > h[j].priority }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(scored)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Sample draws one priority sample per peer for category cat and returns up
// to n peers ordered by descending sampled priority (spec §4.8's
// max-heap, one draw per peer per query).
func Sample(peers []*Peer, cat Category, n int, rng *rand.Rand) []*Peer {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	h := &maxHeap{}
	heap.Init(h)
	for _, p := range peers {
		pr := p.statsFor(cat).samplePriority(rng)
		heap.Push(h, scored{peer: p, priority: pr})
	}
	out := make([]*Peer, 0, n)
	for h.Len() > 0 && len(out) < n {
		out = append(out, heap.Pop(h).(scored).peer)
	}
	return out
}
