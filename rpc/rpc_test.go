package rpc

import (
	"bytes"
	"net"
	"testing"

	"samizdat/chanaddr"
	"samizdat/hash"
	"samizdat/riddle"
)

func TestQueryMarshalRoundTrip(t *testing.T) {
	cr, err := riddle.New(hash.New([]byte("content")))
	if err != nil {
		t.Fatalf("new content riddle: %v", err)
	}
	lr, err := riddle.New(hash.New([]byte("content")))
	if err != nil {
		t.Fatalf("new location riddle: %v", err)
	}

	q := Query{ContentRiddle: cr, LocationRiddle: lr, Timestamp: 12345, Kind: KindItem}
	got, err := UnmarshalQuery(q.Marshal())
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Timestamp != q.Timestamp || got.Kind != q.Kind {
		t.Fatalf("mismatch: %+v vs %+v", got, q)
	}
	if got.ContentRiddle.Hash != q.ContentRiddle.Hash {
		t.Fatalf("content riddle mismatch")
	}
	if got.LocationRiddle.Hash != q.LocationRiddle.Hash {
		t.Fatalf("location riddle mismatch")
	}
}

// TestDispatchedMessageRiddleResolvesToClientAddr exercises the full hub
// query path end to end: a client builds a Query with independent content
// and location riddles over the same secret, the hub dispatches it (which
// turns LocationRiddle into a MessageRiddle using only LocationRiddle.Hash,
// never the real secret), and the client — the only party that actually
// knows the secret — resolves that MessageRiddle back to its own
// ChannelAddr.
func TestDispatchedMessageRiddleResolvesToClientAddr(t *testing.T) {
	secret := hash.New([]byte("object content"))
	cr, err := riddle.New(secret)
	if err != nil {
		t.Fatalf("new content riddle: %v", err)
	}
	lr, err := riddle.New(secret)
	if err != nil {
		t.Fatalf("new location riddle: %v", err)
	}
	q := Query{ContentRiddle: cr, LocationRiddle: lr, Kind: KindObject}

	clientAddr := chanaddr.New(&net.UDPAddr{IP: net.ParseIP("203.0.113.5"), Port: 4433}, 77)

	// What the hub does inside Dispatch, without ever seeing secret.
	msgRiddle := q.LocationRiddle.RiddleForLocation(clientAddr)

	got, ok := msgRiddle.Resolve(secret)
	if !ok {
		t.Fatalf("dispatched message riddle should resolve for the real secret")
	}
	if got.ChannelID != clientAddr.ChannelID || got.Port != clientAddr.Port || !got.IP.Equal(clientAddr.IP) {
		t.Fatalf("resolved addr mismatch: got %+v want %+v", got, clientAddr)
	}
}

func TestQueryResponseMarshalRoundTrip(t *testing.T) {
	a1 := chanaddr.New(&net.UDPAddr{IP: net.ParseIP("198.51.100.7"), Port: 1}, 1)
	a2 := chanaddr.New(&net.UDPAddr{IP: net.ParseIP("198.51.100.8"), Port: 2}, 2)
	resp := QueryResponse{Status: StatusResolved, Candidates: []chanaddr.Addr{a1, a2}}
	got, err := UnmarshalQueryResponse(resp.Marshal())
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Status != StatusResolved || len(got.Candidates) != 2 {
		t.Fatalf("mismatch: %+v", got)
	}
	if got.Candidates[0].Port != 1 || got.Candidates[1].ChannelID != 2 {
		t.Fatalf("candidate field mismatch: %+v", got.Candidates)
	}
}

func TestMessageFramingRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteMessage(&buf, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteMessage(&buf, []byte("world")); err != nil {
		t.Fatalf("write: %v", err)
	}
	m1, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("read 1: %v", err)
	}
	m2, err := ReadMessage(&buf)
	if err != nil {
		t.Fatalf("read 2: %v", err)
	}
	if string(m1) != "hello" || string(m2) != "world" {
		t.Fatalf("got %q %q", m1, m2)
	}
}

func TestReadMessageRejectsOversized(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0x7f, 0xff, 0xff, 0xff})
	if _, err := ReadMessage(&buf); err == nil {
		t.Fatalf("expected an error for an oversized declared length")
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteEnvelope(&buf, MethodResolveLatest, []byte("payload")); err != nil {
		t.Fatalf("write: %v", err)
	}
	method, payload, err := ReadEnvelope(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if method != MethodResolveLatest || string(payload) != "payload" {
		t.Fatalf("got %v %q", method, payload)
	}
}

func TestResolutionMarshalRoundTrip(t *testing.T) {
	cr, err := riddle.New(hash.New([]byte("content")))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	addr := chanaddr.New(&net.UDPAddr{IP: net.ParseIP("203.0.113.5"), Port: 4433}, 9)
	mr := cr.RiddleForLocation(addr)

	res := Resolution{ContentRiddle: cr, MessageRiddle: mr, Kind: KindItem}
	got, err := UnmarshalResolution(res.Marshal())
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Kind != res.Kind || got.ContentRiddle.Hash != res.ContentRiddle.Hash {
		t.Fatalf("mismatch: %+v vs %+v", got, res)
	}
	resolved, ok := got.MessageRiddle.Resolve(hash.New([]byte("content")))
	if !ok || resolved.ChannelID != addr.ChannelID {
		t.Fatalf("message riddle did not survive round trip")
	}
}
