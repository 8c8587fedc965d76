package riddle

import (
	"net"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"samizdat/chanaddr"
	"samizdat/hash"
	"samizdat/wire"
)

func TestContentRiddleResolves(t *testing.T) {
	k := hash.New([]byte("secret-content"))
	r, err := New(k)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !r.Resolves(k) {
		t.Fatalf("riddle should resolve for its own secret")
	}
	other := hash.New([]byte("different-content"))
	if r.Resolves(other) {
		t.Fatalf("riddle should not resolve for an unrelated secret")
	}
}

func TestContentRiddleMarshalRoundTrip(t *testing.T) {
	k := hash.New([]byte("x"))
	r, err := New(k)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	d := wire.NewDecoder(r.Marshal())
	got, err := UnmarshalContentRiddle(d)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Rand != r.Rand || got.Hash != r.Hash || got.Timestamp != r.Timestamp {
		t.Fatalf("round trip mismatch")
	}
}

func TestMessageRiddleResolve(t *testing.T) {
	k := hash.New([]byte("content-hash"))
	cr, err := New(k)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	addr := chanaddr.New(&net.UDPAddr{IP: net.ParseIP("198.51.100.9"), Port: 9000}, 7)
	mr := cr.RiddleForLocation(addr)

	got, ok := mr.Resolve(k)
	if !ok {
		t.Fatalf("message riddle should resolve with the correct content hash")
	}
	if got.ChannelID != addr.ChannelID || got.Port != addr.Port || !got.IP.Equal(addr.IP) {
		t.Fatalf("resolved address mismatch: got %+v want %+v", got, addr)
	}

	if _, ok := mr.Resolve(hash.New([]byte("wrong-hash"))); ok {
		t.Fatalf("message riddle should not resolve with the wrong content hash")
	}
}

func TestReplayWindowRejectsDuplicate(t *testing.T) {
	c := clock.NewMock()
	w := NewReplayWindowWithClock(10*time.Second, c)
	n := Nonce{Rand: [RandSize]byte{1, 2, 3}, Timestamp: c.Now().Unix()}

	if !w.Check(n, n.Timestamp) {
		t.Fatalf("first check should succeed")
	}
	if w.Check(n, n.Timestamp) {
		t.Fatalf("second check of the same nonce should be rejected")
	}
}

func TestReplayWindowRejectsStale(t *testing.T) {
	c := clock.NewMock()
	w := NewReplayWindowWithClock(10*time.Second, c)
	n := Nonce{Rand: [RandSize]byte{9}, Timestamp: c.Now().Unix()}

	c.Add(11 * time.Second)
	if w.Check(n, n.Timestamp) {
		t.Fatalf("stale nonce should be rejected")
	}
}

func TestReplayWindowSweepReclaimsSlot(t *testing.T) {
	c := clock.NewMock()
	tolerance := 10 * time.Second
	w := NewReplayWindowWithClock(tolerance, c)
	n := Nonce{Rand: [RandSize]byte{4}, Timestamp: c.Now().Unix()}

	if !w.Check(n, n.Timestamp) {
		t.Fatalf("initial check should succeed")
	}
	c.Add(3*tolerance + time.Second)
	w.Sweep()
	if w.Len() != 0 {
		t.Fatalf("sweep should have reclaimed the expired nonce")
	}
}
