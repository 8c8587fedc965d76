// Package identity models the external identity registry spec §6 treats as
// a narrow collaborator: something that maps a human-chosen identity to the
// series public key that currently owns it. The production registry lives
// on an external chain; this package only defines the contract a node
// depends on and a small LRU-cached implementation over a pluggable
// lookup function.
package identity

import (
	"context"
	"crypto/ed25519"
	"errors"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

var ErrNotFound = errors.New("identity: no series registered for this identity")

// Resolver looks up the current series public key registered for an
// identity string.
type Resolver interface {
	Resolve(ctx context.Context, identity string) (ed25519.PublicKey, error)
}

// LookupFunc performs the actual external lookup (e.g. an Ethereum
// contract call); Resolver implementations wrap one with caching.
type LookupFunc func(ctx context.Context, identity string) (ed25519.PublicKey, error)

type cacheEntry struct {
	key       ed25519.PublicKey
	expiresAt time.Time
}

// CachedResolver wraps a LookupFunc with a bounded LRU cache and TTL, so
// that repeated resolutions of the same identity (e.g. while serving many
// queries against the same subscription) do not re-hit the external
// registry.
type CachedResolver struct {
	lookup LookupFunc
	ttl    time.Duration
	cache  *lru.Cache[string, cacheEntry]
}

// NewCachedResolver wraps lookup with an LRU cache of the given size and
// per-entry TTL.
func NewCachedResolver(lookup LookupFunc, size int, ttl time.Duration) (*CachedResolver, error) {
	cache, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &CachedResolver{lookup: lookup, ttl: ttl, cache: cache}, nil
}

func (r *CachedResolver) Resolve(ctx context.Context, identity string) (ed25519.PublicKey, error) {
	if entry, ok := r.cache.Get(identity); ok && time.Now().Before(entry.expiresAt) {
		return entry.key, nil
	}
	key, err := r.lookup(ctx, identity)
	if err != nil {
		return nil, err
	}
	r.cache.Add(identity, cacheEntry{key: key, expiresAt: time.Now().Add(r.ttl)})
	return key, nil
}
