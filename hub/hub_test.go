package hub

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"samizdat/hash"
	"samizdat/kv"
	"samizdat/riddle"
	"samizdat/rpc"
	"samizdat/scheduler"
)

func TestAdmissionBlocksOverConcurrency(t *testing.T) {
	a := NewAdmission(1, 1000)
	ctx := context.Background()

	release1, err := a.Acquire(ctx)
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}

	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := a.Acquire(shortCtx); err == nil {
		t.Fatalf("expected second acquire to block and time out while first is held")
	}

	release1()
	release2, err := a.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	release2()
}

type fakeResolver struct {
	foundIDs map[string]bool
	captured map[string]rpc.Resolution
	mu       sync.Mutex
}

func (f *fakeResolver) Resolve(ctx context.Context, peerID string, res rpc.Resolution) (rpc.ResolutionStatus, error) {
	if f.captured != nil {
		f.mu.Lock()
		f.captured[peerID] = res
		f.mu.Unlock()
	}
	if f.foundIDs[peerID] {
		return rpc.Found, nil
	}
	return rpc.NotFound, nil
}

func (f *fakeResolver) ResolveLatest(ctx context.Context, peerID string, req rpc.LatestRequest) (rpc.OptionalEditionResponse, error) {
	return rpc.OptionalEditionResponse{}, nil
}

func (f *fakeResolver) AnnounceEdition(ctx context.Context, peerID string, ann rpc.EditionAnnouncement) error {
	return nil
}

func TestDispatchCollectsOnlyFoundPeers(t *testing.T) {
	good := scheduler.NewPeer("good")
	bad := scheduler.NewPeer("bad")
	resolver := &fakeResolver{foundIDs: map[string]bool{"good": true}}
	peerAddr := func(id string) *net.UDPAddr {
		return &net.UDPAddr{IP: net.ParseIP("203.0.113.1"), Port: 9000}
	}

	registry := NewRegistry()
	registry.Ensure(good.ID)
	registry.Ensure(bad.ID)
	d := NewDispatcher(registry, resolver, peerAddr, 2, time.Second)

	cr, err := riddle.New(hash.New([]byte("content")))
	if err != nil {
		t.Fatalf("new riddle: %v", err)
	}
	q := rpc.Query{ContentRiddle: cr, Kind: rpc.KindObject}
	clientAddr := &net.UDPAddr{IP: net.ParseIP("198.51.100.1"), Port: 1234}

	resp := d.Dispatch(context.Background(), q, clientAddr)
	if resp.Status != rpc.StatusResolved {
		t.Fatalf("got status %v", resp.Status)
	}
	if len(resp.Candidates) != 1 {
		t.Fatalf("got %d candidates want 1", len(resp.Candidates))
	}
}

// TestDispatchMessageRiddleResolvesForClient is the integration test
// demanded by review: the MessageRiddle the hub hands candidate peers must
// resolve, under the real content hash, to the querying client's
// ChannelAddr — never to something only reproducible via the hub's own
// (unknown-to-it) fabricated hash.
func TestDispatchMessageRiddleResolvesForClient(t *testing.T) {
	secret := hash.New([]byte("the real secret"))
	cr, err := riddle.New(secret)
	if err != nil {
		t.Fatalf("new content riddle: %v", err)
	}
	lr, err := riddle.New(secret)
	if err != nil {
		t.Fatalf("new location riddle: %v", err)
	}

	good := scheduler.NewPeer("good")
	resolver := &fakeResolver{foundIDs: map[string]bool{"good": true}, captured: map[string]rpc.Resolution{}}
	peerAddr := func(id string) *net.UDPAddr {
		return &net.UDPAddr{IP: net.ParseIP("203.0.113.1"), Port: 9000}
	}
	registry := NewRegistry()
	registry.Ensure(good.ID)
	d := NewDispatcher(registry, resolver, peerAddr, 2, time.Second)

	q := rpc.Query{ContentRiddle: cr, LocationRiddle: lr, Kind: rpc.KindObject}
	clientAddr := &net.UDPAddr{IP: net.ParseIP("198.51.100.1"), Port: 1234}

	resp := d.Dispatch(context.Background(), q, clientAddr)
	if len(resp.Candidates) != 1 {
		t.Fatalf("got %d candidates want 1", len(resp.Candidates))
	}

	res, ok := resolver.captured["good"]
	if !ok {
		t.Fatalf("resolver never received a Resolution for peer good")
	}
	addr, ok := res.MessageRiddle.Resolve(secret)
	if !ok {
		t.Fatalf("message riddle dispatched to the peer should resolve under the real secret")
	}
	if addr.ChannelID != resp.Candidates[0].ChannelID || addr.Port != clientAddr.Port || !addr.IP.Equal(clientAddr.IP) {
		t.Fatalf("resolved addr %+v does not match client addr %s/chan %d", addr, clientAddr, addr.ChannelID)
	}
}

func TestBlacklistPersistsAcrossLoad(t *testing.T) {
	dir := t.TempDir()
	db, err := kv.Open(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	bl, err := LoadBlacklist(db)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ip := net.ParseIP("192.0.2.55")
	if err := bl.Add(ip); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !bl.Blocked(ip) {
		t.Fatalf("expected blocked")
	}
	db.Close()

	db2, err := kv.Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db2.Close()
	bl2, err := LoadBlacklist(db2)
	if err != nil {
		t.Fatalf("load 2: %v", err)
	}
	if !bl2.Blocked(ip) {
		t.Fatalf("expected ban to survive reload")
	}
}

func TestRoomTracksDirectAndReverse(t *testing.T) {
	r := NewRoom()
	addr := &net.UDPAddr{IP: net.ParseIP("203.0.113.9"), Port: 4000}
	r.SetDirect("node-1", addr, "direct-conn")
	r.SetReverse("node-1", "reverse-conn")

	if r.Reverse("node-1") != "reverse-conn" {
		t.Fatalf("reverse mismatch")
	}
	if r.Addr("node-1").String() != addr.String() {
		t.Fatalf("addr mismatch")
	}
	r.Drop("node-1")
	if r.Reverse("node-1") != nil {
		t.Fatalf("expected nil after drop")
	}
}
