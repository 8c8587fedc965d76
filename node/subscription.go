package node

import (
	"context"
	"crypto/ed25519"
	"math/rand"
	"strconv"
	"time"

	"samizdat/content"
	"samizdat/hash"
	"samizdat/kv"
	"samizdat/wire"
)

// SubscriptionKind distinguishes a plain series subscription from one over
// a changelog layer.
type SubscriptionKind byte

const (
	SubscriptionSeries SubscriptionKind = iota
	SubscriptionLayer
)

// Subscription is (series_public_key, kind) (spec §3).
type Subscription struct {
	PublicKey ed25519.PublicKey
	Kind      SubscriptionKind
}

func (s Subscription) Marshal() []byte {
	e := wire.NewEncoder()
	e.WriteBytes(s.PublicKey)
	e.WriteUint32(uint32(s.Kind))
	return e.Bytes()
}

func UnmarshalSubscription(b []byte) (Subscription, error) {
	d := wire.NewDecoder(b)
	pk, err := d.ReadBytes()
	if err != nil {
		return Subscription{}, err
	}
	kind, err := d.ReadUint32()
	if err != nil {
		return Subscription{}, err
	}
	return Subscription{PublicKey: ed25519.PublicKey(pk), Kind: SubscriptionKind(kind)}, nil
}

// ItemQuerier performs the query-path fetch of one named item from the
// network, used both for the inventory/changelog file itself and for every
// item it references.
type ItemQuerier interface {
	QueryItem(ctx context.Context, seriesPublicKey ed25519.PublicKey, path string) error
}

// SubscriptionManager implements the refresh side of spec §4.11. The
// edition is verified and advanced by Handlers.AnnounceEdition before
// Enqueue is called; the manager then desynchronizes and fetches the
// referenced inventory or changelog item. It does not parse that item or
// query the items it lists: FanOutItems exists for that step, but the
// refresh flow does not call it.
type SubscriptionManager struct {
	kv      kv.Store
	querier ItemQuerier
	log     func(format string, args ...any)
}

func NewSubscriptionManager(store kv.Store, querier ItemQuerier, log func(string, ...any)) *SubscriptionManager {
	if log == nil {
		log = func(string, ...any) {}
	}
	return &SubscriptionManager{kv: store, querier: querier, log: log}
}

// Add persists a new subscription.
func (sm *SubscriptionManager) Add(s Subscription) error {
	return sm.kv.Set(kv.Key(kv.TableSubscriptions, s.PublicKey), s.Marshal())
}

// Remove deletes a subscription by its series public key.
func (sm *SubscriptionManager) Remove(publicKey ed25519.PublicKey) error {
	return sm.kv.Delete(kv.Key(kv.TableSubscriptions, publicKey))
}

// List returns every currently stored subscription, for announce_edition's
// riddle matching (spec §4.9).
func (sm *SubscriptionManager) List() ([]Subscription, error) {
	lower, upper := kv.TablePrefix(kv.TableSubscriptions)
	it := sm.kv.NewIterator(lower, upper)
	defer it.Close()

	var out []Subscription
	for it.Next() {
		s, err := UnmarshalSubscription(it.Value())
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	return out, it.Error()
}

// Enqueue starts the refresh flow for one subscription in the background:
// a desync delay, then one QueryItem fetch of the inventory/changelog item.
// The fetched item is not parsed and no per-item queries are issued.
// Failures are logged, not fatal.
func (sm *SubscriptionManager) Enqueue(s Subscription) {
	go sm.refresh(context.Background(), s)
}

func (sm *SubscriptionManager) refresh(ctx context.Context, s Subscription) {
	delay := time.Duration(rand.Int63n(int64(time.Second)))
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return
	}

	path := "/_inventory"
	if s.Kind == SubscriptionLayer {
		rec, err := content.NewSeries(sm.kv).Latest(s.PublicKey)
		if err != nil {
			sm.log("subscription refresh: latest edition for %x: %v", s.PublicKey, err)
			return
		}
		path = "/_changelogs/" + strconv.FormatInt(rec.Edition.Timestamp, 10)
	}
	if err := sm.querier.QueryItem(ctx, s.PublicKey, path); err != nil {
		sm.log("subscription refresh: fetch %s for %x: %v", path, s.PublicKey, err)
		return
	}
}

// FanOutItems concurrently queries every (item_path, chunk_hash) entry
// parsed from a fetched inventory/changelog file.
func (sm *SubscriptionManager) FanOutItems(ctx context.Context, publicKey ed25519.PublicKey, entries []InventoryEntry) {
	done := make(chan struct{}, len(entries))
	for _, e := range entries {
		e := e
		go func() {
			defer func() { done <- struct{}{} }()
			if err := sm.querier.QueryItem(ctx, publicKey, e.Path); err != nil {
				sm.log("subscription item query: %s: %v", e.Path, err)
			}
		}()
	}
	for range entries {
		<-done
	}
}

// InventoryEntry is one (item_path, chunk_hash) pair parsed from an
// inventory or changelog file (spec §4.11).
type InventoryEntry struct {
	Path      string
	ChunkHash hash.Hash
}

// ParseInventory decodes the flat list format an /_inventory or
// /_changelogs/<ts> item's bytes contain.
func ParseInventory(raw []byte) ([]InventoryEntry, error) {
	d := wire.NewDecoder(raw)
	n, err := d.ReadUint32()
	if err != nil {
		return nil, err
	}
	out := make([]InventoryEntry, n)
	for i := range out {
		path, err := d.ReadString()
		if err != nil {
			return nil, err
		}
		raw, err := d.ReadRaw(hash.Size)
		if err != nil {
			return nil, err
		}
		h, err := hash.FromBytes(raw)
		if err != nil {
			return nil, err
		}
		out[i] = InventoryEntry{Path: path, ChunkHash: h}
	}
	return out, nil
}
