package node

import (
	"context"
	"crypto/ed25519"

	"samizdat/content"
	"samizdat/cryptoutil"
	"samizdat/hash"
	"samizdat/rpc"
)

// ObjectFinder locates a local object or item whose hash resolves a content
// riddle (spec §4.4's ObjectRef::find, generalized over the object/item
// split of §4.9).
type ObjectFinder interface {
	FindObject(cr riddleResolver) (hash.Hash, bool)
	FindItem(cr riddleResolver) (content.Item, bool)
}

// riddleResolver is the subset of riddle.ContentRiddle's behavior the
// finder needs, kept narrow so this package does not import riddle types
// into its exported surface unnecessarily.
type riddleResolver interface {
	Resolves(candidate hash.Hash) bool
}

// Handlers implements the inbound hub RPC surface a node exposes (spec
// §4.9): resolve, resolve_latest, announce_edition.
type Handlers struct {
	objects      *content.Store
	series       *content.Series
	subscription *SubscriptionManager
	transfer     TransferStarter
}

// TransferStarter spawns the asynchronous content push once a resolve call
// finds a match (spec §4.9: "spawn a task that opens the channel and
// streams the content, and return FOUND immediately").
type TransferStarter interface {
	StartObjectPush(objHash hash.Hash, addrMaskedRiddle any)
	StartItemPush(item content.Item, addrMaskedRiddle any)
}

func NewHandlers(objects *content.Store, series *content.Series, sub *SubscriptionManager, transfer TransferStarter) *Handlers {
	return &Handlers{objects: objects, series: series, subscription: sub, transfer: transfer}
}

// Resolve implements spec §4.9's resolve: it never blocks on the transfer
// itself, only on the local existence check.
func (h *Handlers) Resolve(ctx context.Context, res rpc.Resolution, finder ObjectFinder) rpc.ResolutionStatus {
	switch res.Kind {
	case rpc.KindObject:
		objHash, ok := finder.FindObject(res.ContentRiddle)
		if !ok {
			return rpc.NotFound
		}
		h.transfer.StartObjectPush(objHash, res.MessageRiddle)
		return rpc.Found
	case rpc.KindItem:
		item, ok := finder.FindItem(res.ContentRiddle)
		if !ok {
			return rpc.NotFound
		}
		h.transfer.StartItemPush(item, res.MessageRiddle)
		return rpc.Found
	default:
		return rpc.NotFound
	}
}

// ResolveLatest implements spec §4.9's resolve_latest: matching the riddle
// against local series public keys and, if found and not draft, returning
// the latest edition encrypted under a fresh nonce.
func (h *Handlers) ResolveLatest(ctx context.Context, req rpc.LatestRequest, knownKeys []ed25519.PublicKey) (rpc.EditionResponse, bool) {
	for _, pk := range knownKeys {
		if !req.KeyRiddle.Resolves(hash.New(pk)) {
			continue
		}
		rec, err := h.series.LatestServable(pk)
		if err != nil {
			return rpc.EditionResponse{}, false
		}
		nonce, err := cryptoutil.RandomNonce()
		if err != nil {
			return rpc.EditionResponse{}, false
		}
		cipher, err := cryptoutil.NewTransferCipher(hash.New(pk), nonce)
		if err != nil {
			return rpc.EditionResponse{}, false
		}
		var nonceHash hash.Hash
		copy(nonceHash[:], nonce[:])
		return rpc.EditionResponse{
			Nonce:      nonceHash,
			Ciphertext: cipher.Seal(rec.Edition.Marshal(), nil),
		}, true
	}
	return rpc.EditionResponse{}, false
}

// AnnounceEdition implements spec §4.9's announce_edition: matching against
// local subscriptions, decrypting, and — if valid and new — advancing the
// series and enqueueing a refresh.
func (h *Handlers) AnnounceEdition(ctx context.Context, ann rpc.EditionAnnouncement, subs []Subscription) {
	for _, s := range subs {
		if !ann.KeyRiddle.Resolves(hash.New(s.PublicKey)) {
			continue
		}
		cipher, err := cryptoutil.NewTransferCipher(hash.New(s.PublicKey), asNonceArray(ann.Rand))
		if err != nil {
			return
		}
		plain, err := cipher.Open(ann.Ciphertext, nil)
		if err != nil {
			return
		}
		edition, err := content.UnmarshalEdition(plain)
		if err != nil {
			return
		}
		if cur, err := h.series.Latest(s.PublicKey); err == nil && cur.Edition.Timestamp >= edition.Timestamp {
			return
		}
		if err := h.series.Advance(s.PublicKey, edition, false); err != nil {
			return
		}
		h.subscription.Enqueue(s)
		return
	}
}

func asNonceArray(h hash.Hash) [hash.Size]byte {
	var n [hash.Size]byte
	copy(n[:], h.Bytes())
	return n
}
