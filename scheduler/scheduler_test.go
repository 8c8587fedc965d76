package scheduler

import (
	"math/rand"
	"testing"
)

func TestReliablePeerOutranksFlaky(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	good := NewPeer("good")
	bad := NewPeer("bad")

	for i := 0; i < 40; i++ {
		good.Query.StartRequest()
		good.Query.EndRequestWithSuccess(0.05)
	}
	for i := 0; i < 40; i++ {
		bad.Query.StartRequest()
		bad.Query.EndRequestWithFailure()
	}

	goodWins := 0
	for i := 0; i < 200; i++ {
		ranked := Sample([]*Peer{good, bad}, CategoryQuery, 2, rng)
		if ranked[0].ID == "good" {
			goodWins++
		}
	}
	if goodWins < 150 {
		t.Fatalf("expected the reliable low-latency peer to rank first most of the time, won %d/200", goodWins)
	}
}

func TestSampleRespectsLimit(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	peers := []*Peer{NewPeer("a"), NewPeer("b"), NewPeer("c")}
	out := Sample(peers, CategoryEditionRequest, 2, rng)
	if len(out) != 2 {
		t.Fatalf("got %d peers want 2", len(out))
	}
}

func TestFreshPeerHasNonzeroPriority(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	p := NewPeer("fresh")
	pr := p.Query.samplePriority(rng)
	if pr <= 0 {
		t.Fatalf("a never-used peer should still have positive sampled priority from its prior, got %f", pr)
	}
}
