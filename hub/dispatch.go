package hub

import (
	"context"
	"math/rand"
	"net"
	"sync"
	"time"

	"samizdat/chanaddr"
	"samizdat/rpc"
	"samizdat/scheduler"
)

// Resolver is the set of reverse-RPC calls a hub makes into a candidate
// node's reverse RPC connection (spec §4.7, §4.9): resolve during query
// dispatch, resolve_latest during get_edition fan-out, and announce_edition
// to relay a fresh edition onward.
type Resolver interface {
	Resolve(ctx context.Context, peerID string, res rpc.Resolution) (rpc.ResolutionStatus, error)
	ResolveLatest(ctx context.Context, peerID string, req rpc.LatestRequest) (rpc.OptionalEditionResponse, error)
	AnnounceEdition(ctx context.Context, peerID string, ann rpc.EditionAnnouncement) error
}

// Dispatcher implements hub-side query fan-out (spec §4.7): sampling
// candidate peers via the scheduler, calling each one's reverse RPC, and
// collecting which peers answered FOUND.
type Dispatcher struct {
	registry       *Registry
	resolver       Resolver
	peerAddr       func(peerID string) *net.UDPAddr
	maxResolutions int
	fanoutTimeout  time.Duration
}

// NewDispatcher builds a Dispatcher over registry's live peer set. peerAddr
// looks up a sampled peer's own hub-observed address, used to build the
// candidate ChannelAddr returned to the client for each FOUND peer.
func NewDispatcher(registry *Registry, resolver Resolver, peerAddr func(string) *net.UDPAddr, maxResolutions int, fanoutTimeout time.Duration) *Dispatcher {
	return &Dispatcher{
		registry:       registry,
		resolver:       resolver,
		peerAddr:       peerAddr,
		maxResolutions: maxResolutions,
		fanoutTimeout:  fanoutTimeout,
	}
}

// Dispatch runs one query's fan-out (spec §4.7): allocate a channel_id,
// build the location message riddle around the querying client's
// hub-observed address, sample candidate peers, call each one's resolve,
// and collect addresses (peer_addr, channel_id) for the ones that answered
// FOUND — the channel a FOUND peer will stream content back to the client
// on, not to the hub.
func (d *Dispatcher) Dispatch(ctx context.Context, q rpc.Query, hubSeenClientAddr *net.UDPAddr) rpc.QueryResponse {
	channelID := rand.Uint32()
	clientChannel := chanaddr.New(hubSeenClientAddr, channelID)
	msgRiddle := q.LocationRiddle.RiddleForLocation(clientChannel)

	candidates := scheduler.Sample(d.registry.Peers(), categoryFor(q.Kind), d.maxResolutions, nil)
	if len(candidates) == 0 {
		return rpc.QueryResponse{Status: rpc.StatusResolved, Candidates: nil}
	}

	fctx, cancel := context.WithTimeout(ctx, d.fanoutTimeout)
	defer cancel()

	var mu sync.Mutex
	var found []chanaddr.Addr
	var wg sync.WaitGroup
	for _, peer := range candidates {
		peer := peer
		wg.Add(1)
		go func() {
			defer wg.Done()
			stats := peer.Query
			if q.Kind == rpc.KindItem {
				stats = peer.Edition
			}
			start := time.Now()
			stats.StartRequest()

			status, err := d.resolver.Resolve(fctx, peer.ID, rpc.Resolution{
				ContentRiddle: q.ContentRiddle,
				MessageRiddle: msgRiddle,
				Kind:          q.Kind,
			})
			if err != nil || status != rpc.Found {
				stats.EndRequestWithFailure()
				return
			}
			stats.EndRequestWithSuccess(time.Since(start).Seconds())

			addr := d.peerAddr(peer.ID)
			if addr == nil {
				return
			}
			mu.Lock()
			found = append(found, chanaddr.New(addr, channelID))
			mu.Unlock()
		}()
	}
	wg.Wait()

	return rpc.QueryResponse{Status: rpc.StatusResolved, Candidates: found}
}

// DispatchEdition runs one get_edition fan-out (spec §4.7): sample
// candidate peers and call resolve_latest on each, collecting every
// candidate that actually answers with an edition — unlike Dispatch, every
// responder's answer is returned, not just which ones matched.
func (d *Dispatcher) DispatchEdition(ctx context.Context, req rpc.EditionRequest) rpc.EditionResponseList {
	candidates := scheduler.Sample(d.registry.Peers(), scheduler.CategoryEditionRequest, d.maxResolutions, nil)
	if len(candidates) == 0 {
		return nil
	}

	fctx, cancel := context.WithTimeout(ctx, d.fanoutTimeout)
	defer cancel()

	var mu sync.Mutex
	var out rpc.EditionResponseList
	var wg sync.WaitGroup
	for _, peer := range candidates {
		peer := peer
		wg.Add(1)
		go func() {
			defer wg.Done()
			start := time.Now()
			peer.Edition.StartRequest()

			resp, err := d.resolver.ResolveLatest(fctx, peer.ID, req)
			if err != nil || !resp.Present {
				peer.Edition.EndRequestWithFailure()
				return
			}
			peer.Edition.EndRequestWithSuccess(time.Since(start).Seconds())

			mu.Lock()
			out = append(out, resp.Response)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return out
}

// Broadcast relays an edition announcement to every sampled candidate peer
// (spec §4.7's announce_edition): fire-and-forget, no response collected.
func (d *Dispatcher) Broadcast(ctx context.Context, ann rpc.EditionAnnouncement) {
	candidates := scheduler.Sample(d.registry.Peers(), scheduler.CategoryEditionRequest, d.maxResolutions, nil)
	if len(candidates) == 0 {
		return
	}

	fctx, cancel := context.WithTimeout(ctx, d.fanoutTimeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, peer := range candidates {
		peer := peer
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = d.resolver.AnnounceEdition(fctx, peer.ID, ann)
		}()
	}
	wg.Wait()
}

func categoryFor(k rpc.Kind) scheduler.Category {
	if k == rpc.KindItem {
		return scheduler.CategoryEditionRequest
	}
	return scheduler.CategoryQuery
}
