package content

import (
	"errors"

	"samizdat/hash"
	"samizdat/patricia"
)

var ErrInvalidItem = errors.New("content: inclusion proof does not verify")

// Item is a claimed (name, object_hash) membership in a collection,
// provable against the collection's root hash (spec §3).
type Item struct {
	CollectionHash hash.Hash
	Name           string
	ObjectHash     hash.Hash
	Proof          patricia.Proof
}

// Valid checks the item's inclusion proof against its own CollectionHash
// and that the proof's claimed value is the item's declared ObjectHash.
func (it Item) Valid() bool {
	if it.Proof.Value != it.ObjectHash {
		return false
	}
	return patricia.Verify(hash.New([]byte(it.Name)), it.Proof, it.CollectionHash)
}

// Collection is built from a flat name -> object_hash map, and exposes its
// root hash plus per-name inclusion proofs.
type Collection struct {
	trie *patricia.Trie
	hash hash.Hash
}

// BuildCollection inserts every (name, objectHash) pair and fixes the root.
func BuildCollection(entries map[string]hash.Hash) *Collection {
	t := patricia.New()
	for name, h := range entries {
		t.Put(hash.New([]byte(name)), h)
	}
	return &Collection{trie: t, hash: t.Root()}
}

func (c *Collection) Hash() hash.Hash { return c.hash }

// Locate returns the Item proving name's membership, or ok=false if name is
// absent from the collection.
func (c *Collection) Locate(name string) (Item, bool) {
	key := hash.New([]byte(name))
	value, ok := c.trie.Get(key)
	if !ok {
		return Item{}, false
	}
	proof, ok := c.trie.Prove(key)
	if !ok {
		return Item{}, false
	}
	return Item{CollectionHash: c.hash, Name: name, ObjectHash: value, Proof: proof}, true
}
