// Package rpc defines the wire schemas for hub RPC (spec §4.7) and node RPC
// (spec §4.9): the request/response types exchanged over the bidirectional
// QUIC streams of §6, plus their bincode-equivalent framing.
package rpc

import (
	"samizdat/chanaddr"
	"samizdat/hash"
	"samizdat/riddle"
	"samizdat/wire"
)

// Kind distinguishes a query for a whole object from a query for a
// collection item (spec §4.9).
type Kind byte

const (
	KindObject Kind = iota
	KindItem
)

// Query is the hub-bound request of spec §4.7. ContentRiddle and
// LocationRiddle both commit to the same secret (the content hash being
// queried for) with independent random blinding: ContentRiddle is relayed
// to candidate peers for matching, LocationRiddle is turned directly into a
// MessageRiddle by the hub (its .Hash is used unmodified as the stream seed)
// so the hub never needs to know the real content hash to mask the client's
// address.
type Query struct {
	ContentRiddle  riddle.ContentRiddle
	LocationRiddle riddle.ContentRiddle
	Timestamp      int64
	Kind           Kind
}

// QueryStatus tags a QueryResponse's variant.
type QueryStatus byte

const (
	StatusResolved QueryStatus = iota
	StatusReplayed
	StatusInternalError
	StatusEmptyQuery
)

// QueryResponse answers a Query; Candidates is populated only when Status
// is StatusResolved.
type QueryResponse struct {
	Status     QueryStatus
	Candidates []chanaddr.Addr
}

// EditionRequest asks a hub to relay the latest edition for a series,
// identified only by a riddle over its public key hash (spec §4.7).
type EditionRequest struct {
	KeyRiddle riddle.ContentRiddle
	Timestamp int64
}

// EditionResponse carries one candidate node's encrypted answer; the caller
// decrypts with TransferCipher(public_key_hash, Nonce).
type EditionResponse struct {
	Nonce      hash.Hash
	Ciphertext []byte
}

// EditionAnnouncement announces a fresh edition to a hub or, from a hub, to
// subscribed nodes; the edition itself travels encrypted.
type EditionAnnouncement struct {
	KeyRiddle  riddle.ContentRiddle
	Rand       hash.Hash
	Ciphertext []byte
}

// Resolution is what a hub asks a node over the reverse RPC connection
// during query dispatch (spec §4.7, §4.9).
type Resolution struct {
	ContentRiddle riddle.ContentRiddle
	MessageRiddle riddle.MessageRiddle
	Kind          Kind
}

// ResolutionStatus is a node's synchronous answer to Resolution: whether it
// holds matching, servable content. The actual transfer (if FOUND) proceeds
// asynchronously over the channel the message riddle resolves to.
type ResolutionStatus byte

const (
	Found ResolutionStatus = iota
	NotFound
)

// LatestRequest asks a node for the latest edition of a series identified
// by a riddle over its public key hash (spec §4.9).
type LatestRequest struct {
	KeyRiddle riddle.ContentRiddle
}

func (q Query) Marshal() []byte {
	e := wire.NewEncoder()
	e.WriteRaw(q.ContentRiddle.Marshal())
	e.WriteRaw(q.LocationRiddle.Marshal())
	e.WriteInt64(q.Timestamp)
	e.WriteBool(q.Kind == KindItem)
	return e.Bytes()
}

func UnmarshalQuery(b []byte) (Query, error) {
	d := wire.NewDecoder(b)
	cr, err := riddle.UnmarshalContentRiddle(d)
	if err != nil {
		return Query{}, err
	}
	lr, err := riddle.UnmarshalContentRiddle(d)
	if err != nil {
		return Query{}, err
	}
	ts, err := d.ReadInt64()
	if err != nil {
		return Query{}, err
	}
	isItem, err := d.ReadBool()
	if err != nil {
		return Query{}, err
	}
	kind := KindObject
	if isItem {
		kind = KindItem
	}
	return Query{ContentRiddle: cr, LocationRiddle: lr, Timestamp: ts, Kind: kind}, nil
}

func writeMessageRiddle(e *wire.Encoder, mr riddle.MessageRiddle) {
	e.WriteRaw(mr.Rand[:])
	e.WriteBytes(mr.Masked)
}

func readMessageRiddle(d *wire.Decoder) (riddle.MessageRiddle, error) {
	randRaw, err := d.ReadRaw(riddle.RandSize)
	if err != nil {
		return riddle.MessageRiddle{}, err
	}
	masked, err := d.ReadBytes()
	if err != nil {
		return riddle.MessageRiddle{}, err
	}
	var mr riddle.MessageRiddle
	copy(mr.Rand[:], randRaw)
	mr.Masked = masked
	return mr, nil
}

func (r QueryResponse) Marshal() []byte {
	e := wire.NewEncoder()
	e.WriteRaw([]byte{byte(r.Status)})
	e.WriteUint32(uint32(len(r.Candidates)))
	for _, c := range r.Candidates {
		e.WriteBytes(c.Marshal())
	}
	return e.Bytes()
}

func UnmarshalQueryResponse(b []byte) (QueryResponse, error) {
	d := wire.NewDecoder(b)
	statusByte, err := d.ReadRaw(1)
	if err != nil {
		return QueryResponse{}, err
	}
	n, err := d.ReadUint32()
	if err != nil {
		return QueryResponse{}, err
	}
	candidates := make([]chanaddr.Addr, n)
	for i := range candidates {
		raw, err := d.ReadBytes()
		if err != nil {
			return QueryResponse{}, err
		}
		a, err := chanaddr.Unmarshal(raw)
		if err != nil {
			return QueryResponse{}, err
		}
		candidates[i] = a
	}
	return QueryResponse{Status: QueryStatus(statusByte[0]), Candidates: candidates}, nil
}

func (r EditionRequest) Marshal() []byte {
	e := wire.NewEncoder()
	e.WriteRaw(r.KeyRiddle.Marshal())
	e.WriteInt64(r.Timestamp)
	return e.Bytes()
}

func UnmarshalEditionRequest(b []byte) (EditionRequest, error) {
	d := wire.NewDecoder(b)
	kr, err := riddle.UnmarshalContentRiddle(d)
	if err != nil {
		return EditionRequest{}, err
	}
	ts, err := d.ReadInt64()
	if err != nil {
		return EditionRequest{}, err
	}
	return EditionRequest{KeyRiddle: kr, Timestamp: ts}, nil
}

func (r EditionResponse) Marshal() []byte {
	e := wire.NewEncoder()
	e.WriteRaw(r.Nonce.Bytes())
	e.WriteBytes(r.Ciphertext)
	return e.Bytes()
}

func UnmarshalEditionResponse(b []byte) (EditionResponse, error) {
	d := wire.NewDecoder(b)
	nonceRaw, err := d.ReadRaw(hash.Size)
	if err != nil {
		return EditionResponse{}, err
	}
	nonce, err := hash.FromBytes(nonceRaw)
	if err != nil {
		return EditionResponse{}, err
	}
	ciphertext, err := d.ReadBytes()
	if err != nil {
		return EditionResponse{}, err
	}
	return EditionResponse{Nonce: nonce, Ciphertext: ciphertext}, nil
}

// EditionResponseList marshals the vector of candidate answers a hub
// collects for one get_edition fan-out (spec §4.7: every candidate that
// answers gets relayed back to the querying node, not just the first).
type EditionResponseList []EditionResponse

func (l EditionResponseList) Marshal() []byte {
	e := wire.NewEncoder()
	e.WriteUint32(uint32(len(l)))
	for _, r := range l {
		e.WriteBytes(r.Marshal())
	}
	return e.Bytes()
}

func UnmarshalEditionResponseList(b []byte) (EditionResponseList, error) {
	d := wire.NewDecoder(b)
	n, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	out := make(EditionResponseList, n)
	for i := range out {
		raw, err := d.ReadBytes()
		if err != nil {
			return nil, err
		}
		r, err := UnmarshalEditionResponse(raw)
		if err != nil {
			return nil, err
		}
		out[i] = r
	}
	return out, nil
}

func (a EditionAnnouncement) Marshal() []byte {
	e := wire.NewEncoder()
	e.WriteRaw(a.KeyRiddle.Marshal())
	e.WriteRaw(a.Rand.Bytes())
	e.WriteBytes(a.Ciphertext)
	return e.Bytes()
}

func UnmarshalEditionAnnouncement(b []byte) (EditionAnnouncement, error) {
	d := wire.NewDecoder(b)
	kr, err := riddle.UnmarshalContentRiddle(d)
	if err != nil {
		return EditionAnnouncement{}, err
	}
	randRaw, err := d.ReadRaw(hash.Size)
	if err != nil {
		return EditionAnnouncement{}, err
	}
	randHash, err := hash.FromBytes(randRaw)
	if err != nil {
		return EditionAnnouncement{}, err
	}
	ciphertext, err := d.ReadBytes()
	if err != nil {
		return EditionAnnouncement{}, err
	}
	return EditionAnnouncement{KeyRiddle: kr, Rand: randHash, Ciphertext: ciphertext}, nil
}

func (r Resolution) Marshal() []byte {
	e := wire.NewEncoder()
	e.WriteRaw(r.ContentRiddle.Marshal())
	writeMessageRiddle(e, r.MessageRiddle)
	e.WriteBool(r.Kind == KindItem)
	return e.Bytes()
}

func UnmarshalResolution(b []byte) (Resolution, error) {
	d := wire.NewDecoder(b)
	cr, err := riddle.UnmarshalContentRiddle(d)
	if err != nil {
		return Resolution{}, err
	}
	mr, err := readMessageRiddle(d)
	if err != nil {
		return Resolution{}, err
	}
	isItem, err := d.ReadBool()
	if err != nil {
		return Resolution{}, err
	}
	kind := KindObject
	if isItem {
		kind = KindItem
	}
	return Resolution{ContentRiddle: cr, MessageRiddle: mr, Kind: kind}, nil
}

func (s ResolutionStatus) Marshal() []byte { return []byte{byte(s)} }

func UnmarshalResolutionStatus(b []byte) (ResolutionStatus, error) {
	if len(b) != 1 {
		return NotFound, wire.ErrTruncated
	}
	return ResolutionStatus(b[0]), nil
}

func (r LatestRequest) Marshal() []byte {
	e := wire.NewEncoder()
	e.WriteRaw(r.KeyRiddle.Marshal())
	return e.Bytes()
}

func UnmarshalLatestRequest(b []byte) (LatestRequest, error) {
	d := wire.NewDecoder(b)
	kr, err := riddle.UnmarshalContentRiddle(d)
	if err != nil {
		return LatestRequest{}, err
	}
	return LatestRequest{KeyRiddle: kr}, nil
}

// OptionalEditionResponse marshals resolve_latest's answer, which may be
// absent (spec §4.9: nothing found, or the matching series has no
// servable edition).
type OptionalEditionResponse struct {
	Response EditionResponse
	Present  bool
}

func (o OptionalEditionResponse) Marshal() []byte {
	e := wire.NewEncoder()
	e.WriteBool(o.Present)
	if o.Present {
		e.WriteBytes(o.Response.Marshal())
	}
	return e.Bytes()
}

func UnmarshalOptionalEditionResponse(b []byte) (OptionalEditionResponse, error) {
	d := wire.NewDecoder(b)
	present, err := d.ReadBool()
	if err != nil {
		return OptionalEditionResponse{}, err
	}
	if !present {
		return OptionalEditionResponse{}, nil
	}
	raw, err := d.ReadBytes()
	if err != nil {
		return OptionalEditionResponse{}, err
	}
	resp, err := UnmarshalEditionResponse(raw)
	if err != nil {
		return OptionalEditionResponse{}, err
	}
	return OptionalEditionResponse{Response: resp, Present: true}, nil
}
