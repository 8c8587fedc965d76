package transport

import (
	"net"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func udpAddr(port int) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP("198.51.100.1"), Port: port}
}

func TestMatcherDeliversToWaiter(t *testing.T) {
	m := newMatcher(clock.NewMock())
	addr := udpAddr(1)
	ch := m.register(addr)
	if !m.deliver(addr, "incoming-conn") {
		t.Fatalf("expected a waiter to be matched")
	}
	select {
	case v := <-ch:
		if v != "incoming-conn" {
			t.Fatalf("got %v", v)
		}
	default:
		t.Fatalf("expected a value on the waiter channel")
	}
}

func TestMatcherDeliverWithoutWaiterReturnsFalse(t *testing.T) {
	m := newMatcher(clock.NewMock())
	if m.deliver(udpAddr(2), "x") {
		t.Fatalf("expected no waiter to match")
	}
}

func TestMatcherSweepEvictsStaleWaiters(t *testing.T) {
	c := clock.NewMock()
	m := newMatcher(c)
	addr := udpAddr(3)
	m.register(addr)
	if m.len() != 1 {
		t.Fatalf("expected 1 waiter")
	}
	c.Add(11 * time.Second)
	m.sweep()
	if m.len() != 0 {
		t.Fatalf("expected stale waiter to be evicted")
	}
}

func TestMatcherUnregisterRemovesWaiter(t *testing.T) {
	m := newMatcher(clock.NewMock())
	addr := udpAddr(4)
	m.register(addr)
	m.unregister(addr)
	if m.len() != 0 {
		t.Fatalf("expected waiter to be removed")
	}
}
