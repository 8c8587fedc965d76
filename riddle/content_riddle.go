// Package riddle implements Samizdat's oblivious hash-lookup primitives
// (spec §4.1): a ContentRiddle lets a recipient test candidates against a
// hash-only commitment without the committer revealing the hash itself, and
// a MessageRiddle one-time-pads a small payload (a channel address) behind
// the same commitment, so only a party that already knows the content hash
// can recover it.
package riddle

import (
	"crypto/rand"
	"time"

	"samizdat/chanaddr"
	"samizdat/hash"
	"samizdat/wire"
)

// RandSize is the size of a riddle's random blinding value.
const RandSize = hash.Size

// ContentRiddle is {rand, hash = rehash(k, rand), timestamp}. It commits to
// a secret k (normally a content hash) without revealing k.
type ContentRiddle struct {
	Rand      [RandSize]byte
	Hash      hash.Hash
	Timestamp int64
}

// New draws a fresh ContentRiddle committing to k.
func New(k hash.Hash) (ContentRiddle, error) {
	var r ContentRiddle
	if _, err := rand.Read(r.Rand[:]); err != nil {
		return ContentRiddle{}, err
	}
	r.Timestamp = time.Now().Unix()
	randHash, err := hash.FromBytes(r.Rand[:])
	if err != nil {
		return ContentRiddle{}, err
	}
	r.Hash = hash.Rehash(k, randHash)
	return r, nil
}

// Resolves reports whether candidate is the secret this riddle commits to.
func (r ContentRiddle) Resolves(candidate hash.Hash) bool {
	randHash, err := hash.FromBytes(r.Rand[:])
	if err != nil {
		return false
	}
	return hash.Rehash(candidate, randHash) == r.Hash
}

// Nonce is the replay-resistance key for this riddle: (rand, timestamp).
func (r ContentRiddle) Nonce() Nonce {
	return Nonce{Rand: r.Rand, Timestamp: r.Timestamp}
}

// Marshal serializes a ContentRiddle for the wire.
func (r ContentRiddle) Marshal() []byte {
	e := wire.NewEncoder()
	e.WriteRaw(r.Rand[:])
	e.WriteRaw(r.Hash.Bytes())
	e.WriteInt64(r.Timestamp)
	return e.Bytes()
}

// UnmarshalContentRiddle parses a ContentRiddle previously produced by
// Marshal.
func UnmarshalContentRiddle(d *wire.Decoder) (ContentRiddle, error) {
	var r ContentRiddle
	raw, err := d.ReadRaw(RandSize)
	if err != nil {
		return r, err
	}
	copy(r.Rand[:], raw)
	hb, err := d.ReadRaw(hash.Size)
	if err != nil {
		return r, err
	}
	r.Hash, err = hash.FromBytes(hb)
	if err != nil {
		return r, err
	}
	r.Timestamp, err = d.ReadInt64()
	return r, err
}

// Nonce is the replay-resistance identity of a riddle: it is unique per
// riddle (by virtue of the random blinding value) and carries the timestamp
// used to reject stale submissions.
type Nonce struct {
	Rand      [RandSize]byte
	Timestamp int64
}

// MessageRiddle one-time-pads an arbitrary small payload (in practice a
// chanaddr.Addr) under a stream keyed by rehash(content_hash, rand), plus a
// trailing validation byte that must decode to zero for a candidate to be
// accepted (spec §4.1).
type MessageRiddle struct {
	Rand   [RandSize]byte
	Masked []byte
}

// RiddleForLocation builds a MessageRiddle hiding addr behind r's own
// commitment: r.Hash is used unmodified as the keystream seed, exactly as
// r was built (Hash = Rehash(k, Rand)) — so the caller never needs to know
// k itself, only r. A client builds its location riddle over the same
// secret as its content riddle, but with independent random blinding, and
// hands both to the hub in a Query; the hub calls RiddleForLocation on the
// location riddle without ever learning the secret it commits to.
func (r ContentRiddle) RiddleForLocation(addr chanaddr.Addr) MessageRiddle {
	payload := addr.Marshal()
	payload = append(payload, 0) // validation byte
	stream := keystream(r.Hash, len(payload))
	masked := xor(payload, stream)
	return MessageRiddle{Rand: r.Rand, Masked: masked}
}

// Resolve attempts to recover the hidden address using candidate as the
// content hash the riddle was built for. It returns (addr, true) only if
// the validation byte decodes to zero.
func (m MessageRiddle) Resolve(candidate hash.Hash) (chanaddr.Addr, bool) {
	randHash, err := hash.FromBytes(m.Rand[:])
	if err != nil {
		return chanaddr.Addr{}, false
	}
	seed := hash.Rehash(candidate, randHash)
	stream := keystream(seed, len(m.Masked))
	payload := xor(m.Masked, stream)
	if len(payload) == 0 || payload[len(payload)-1] != 0 {
		return chanaddr.Addr{}, false
	}
	addr, err := chanaddr.Unmarshal(payload[:len(payload)-1])
	if err != nil {
		return chanaddr.Addr{}, false
	}
	return addr, true
}

// keystream extends seed into an n-byte pseudorandom stream by repeated
// rehashing against a zero hash — a simple, auditable stream cipher built
// directly from the same primitive used everywhere else in this package,
// rather than pulling in a dedicated stream-cipher dependency for a single
// small masking step.
func keystream(seed hash.Hash, n int) []byte {
	out := make([]byte, 0, n)
	block := seed
	for len(out) < n {
		block = hash.Rehash(block, hash.Hash{})
		out = append(out, block.Bytes()...)
	}
	return out[:n]
}

func xor(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}
