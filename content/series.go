package content

import (
	"crypto/ed25519"
	"errors"
	"time"

	"samizdat/cryptoutil"
	"samizdat/hash"
	"samizdat/kv"
	"samizdat/wire"
)

var (
	ErrBadSignature  = errors.New("content: edition signature does not verify")
	ErrWrongKey      = errors.New("content: edition public key does not match series")
	ErrSeriesIsDraft = errors.New("content: series is a draft and is not served")
)

// Edition is one signed series item (spec §3): the collection it points to,
// when it was issued, and how long it stays fresh.
type Edition struct {
	CollectionHash hash.Hash
	Timestamp      int64
	TTL            int64
	Signature      []byte
}

func (e Edition) signedPayload() []byte {
	enc := wire.NewEncoder()
	enc.WriteRaw(e.CollectionHash.Bytes())
	enc.WriteInt64(e.Timestamp)
	enc.WriteInt64(e.TTL)
	return enc.Bytes()
}

func (e Edition) Marshal() []byte {
	enc := wire.NewEncoder()
	enc.WriteRaw(e.signedPayload())
	enc.WriteBytes(e.Signature)
	return enc.Bytes()
}

func UnmarshalEdition(b []byte) (Edition, error) {
	d := wire.NewDecoder(b)
	raw, err := d.ReadRaw(hash.Size)
	if err != nil {
		return Edition{}, err
	}
	h, err := hash.FromBytes(raw)
	if err != nil {
		return Edition{}, err
	}
	ts, err := d.ReadInt64()
	if err != nil {
		return Edition{}, err
	}
	ttl, err := d.ReadInt64()
	if err != nil {
		return Edition{}, err
	}
	sig, err := d.ReadBytes()
	if err != nil {
		return Edition{}, err
	}
	return Edition{CollectionHash: h, Timestamp: ts, TTL: ttl, Signature: sig}, nil
}

// Sign produces a signed Edition for a collection, issued now, valid for
// ttl seconds.
func Sign(kp cryptoutil.KeyPair, collectionHash hash.Hash, ttl time.Duration) Edition {
	e := Edition{CollectionHash: collectionHash, Timestamp: time.Now().Unix(), TTL: int64(ttl.Seconds())}
	e.Signature = kp.Sign(e.signedPayload())
	return e
}

// Verify checks the edition's signature against the claimed series public
// key.
func (e Edition) Verify(public ed25519.PublicKey) bool {
	return cryptoutil.Verify(public, e.signedPayload(), e.Signature)
}

// ReceivedRecord is what is actually persisted per series: the edition plus
// the local receipt time freshness is measured from.
type ReceivedRecord struct {
	Edition    Edition
	ReceivedAt int64
	IsDraft    bool
}

func (r ReceivedRecord) Marshal() []byte {
	enc := wire.NewEncoder()
	enc.WriteBytes(r.Edition.Marshal())
	enc.WriteInt64(r.ReceivedAt)
	enc.WriteBool(r.IsDraft)
	return enc.Bytes()
}

func UnmarshalReceivedRecord(b []byte) (ReceivedRecord, error) {
	d := wire.NewDecoder(b)
	raw, err := d.ReadBytes()
	if err != nil {
		return ReceivedRecord{}, err
	}
	e, err := UnmarshalEdition(raw)
	if err != nil {
		return ReceivedRecord{}, err
	}
	receivedAt, err := d.ReadInt64()
	if err != nil {
		return ReceivedRecord{}, err
	}
	isDraft, err := d.ReadBool()
	if err != nil {
		return ReceivedRecord{}, err
	}
	return ReceivedRecord{Edition: e, ReceivedAt: receivedAt, IsDraft: isDraft}, nil
}

// Fresh reports whether a record is still fresh at the given time: spec's
// `now < received_at + ttl`.
func (r ReceivedRecord) Fresh(now time.Time) bool {
	return now.Unix() < r.ReceivedAt+r.Edition.TTL
}

// Series owns the Series/Editions/SeriesFreshnesses/SeriesOwners tables:
// exactly one latest edition per public key is retained.
type Series struct {
	kv  kv.Store
	now func() time.Time
}

func NewSeries(store kv.Store) *Series {
	return &Series{kv: store, now: time.Now}
}

// Advance accepts a new edition for publicKey if its signature verifies and
// it is newer than whatever is currently stored; "latest wins" (spec §3).
// isDraft marks a series that must never be served to the network.
func (s *Series) Advance(publicKey ed25519.PublicKey, edition Edition, isDraft bool) error {
	if !edition.Verify(publicKey) {
		return ErrBadSignature
	}
	current, err := s.Latest(publicKey)
	if err == nil && current.Edition.Timestamp >= edition.Timestamp {
		return nil // stale or duplicate, not an error: just ignored
	}
	rec := ReceivedRecord{Edition: edition, ReceivedAt: s.now().Unix(), IsDraft: isDraft}
	return s.kv.Set(kv.Key(kv.TableEditions, publicKey), rec.Marshal())
}

// Latest returns the current edition for a series public key.
func (s *Series) Latest(publicKey ed25519.PublicKey) (ReceivedRecord, error) {
	v, err := s.kv.Get(kv.Key(kv.TableEditions, publicKey))
	if err == kv.ErrNotFound {
		return ReceivedRecord{}, ErrNotFound
	}
	if err != nil {
		return ReceivedRecord{}, err
	}
	return UnmarshalReceivedRecord(v)
}

// PublicKeys returns every series public key with a stored edition, for
// resolve_latest's riddle matching (spec §4.9).
func (s *Series) PublicKeys() ([]ed25519.PublicKey, error) {
	lower, upper := kv.TablePrefix(kv.TableEditions)
	it := s.kv.NewIterator(lower, upper)
	defer it.Close()

	var out []ed25519.PublicKey
	for it.Next() {
		raw := it.Key()[len(lower):]
		pk := make(ed25519.PublicKey, len(raw))
		copy(pk, raw)
		out = append(out, pk)
	}
	return out, it.Error()
}

// LatestServable returns the current edition, failing if it is a draft
// (spec §3: "Series marked is_draft are never served to the network").
func (s *Series) LatestServable(publicKey ed25519.PublicKey) (ReceivedRecord, error) {
	rec, err := s.Latest(publicKey)
	if err != nil {
		return ReceivedRecord{}, err
	}
	if rec.IsDraft {
		return ReceivedRecord{}, ErrSeriesIsDraft
	}
	return rec, nil
}
