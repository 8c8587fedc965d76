package content

import (
	"samizdat/hash"
	"samizdat/kv"
)

// Kind distinguishes an explicit user bookmark from one the system holds on
// an object's behalf because a series still references it (spec §3).
type Kind byte

const (
	KindUser Kind = iota
	KindReference
)

func bookmarkKey(h hash.Hash, kind Kind) []byte {
	k := make([]byte, hash.Size+1)
	copy(k, h.Bytes())
	k[hash.Size] = byte(kind)
	return k
}

// Bookmarks exposes the merge-counter bookmark table: a positive count for
// any kind prevents vacuum eviction.
type Bookmarks struct {
	content *Store
}

func NewBookmarks(s *Store) *Bookmarks { return &Bookmarks{content: s} }

func (bm *Bookmarks) Add(h hash.Hash, kind Kind) error {
	return bm.content.kv.Merge(kv.Key(kv.TableBookmarks, bookmarkKey(h, kind)), 1)
}

func (bm *Bookmarks) Remove(h hash.Hash, kind Kind) error {
	return bm.content.kv.Merge(kv.Key(kv.TableBookmarks, bookmarkKey(h, kind)), -1)
}

// IsBookmarked reports whether any kind of bookmark on h has a positive
// count.
func (bm *Bookmarks) IsBookmarked(h hash.Hash) (bool, error) {
	for _, k := range []Kind{KindUser, KindReference} {
		n, err := bm.count(h, k)
		if err != nil {
			return false, err
		}
		if n > 0 {
			return true, nil
		}
	}
	return false, nil
}

func (bm *Bookmarks) count(h hash.Hash, kind Kind) (int64, error) {
	v, err := bm.content.kv.Get(kv.Key(kv.TableBookmarks, bookmarkKey(h, kind)))
	if err != nil {
		return 0, nil // absent == zero, not an error
	}
	if len(v) != 8 {
		return 0, nil
	}
	return decodeBE(v), nil
}

func decodeBE(b []byte) int64 {
	var v int64
	for _, x := range b {
		v = v<<8 | int64(x)
	}
	return v
}
