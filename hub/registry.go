package hub

import (
	"sync"

	"samizdat/scheduler"
)

// Registry is the hub's live set of scheduler peers, growing as nodes
// establish a reverse RPC connection (spec §4.10) and shrinking as they are
// dropped from Room — unlike a fixed peer list handed to the scheduler
// once at startup.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]*scheduler.Peer
}

func NewRegistry() *Registry {
	return &Registry{peers: make(map[string]*scheduler.Peer)}
}

// Ensure returns the scheduler.Peer for id, creating a fresh one (seeded
// with the priors from spec §4.8) the first time id is seen.
func (r *Registry) Ensure(id string) *scheduler.Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[id]
	if !ok {
		p = scheduler.NewPeer(id)
		r.peers[id] = p
	}
	return p
}

// Remove drops id from the registry, e.g. once its reverse connection
// closes.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, id)
}

// Peers returns a snapshot of every currently registered peer.
func (r *Registry) Peers() []*scheduler.Peer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*scheduler.Peer, 0, len(r.peers))
	for _, p := range r.peers {
		out = append(out, p)
	}
	return out
}

// Len reports how many peers are currently registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}
