package kv

import (
	"encoding/binary"

	"github.com/cockroachdb/pebble"
)

// counterMerger implements pebble's associative merge operator for the
// Bookmarks and ObjectChunkRefCount tables (spec §3, §4.4): each operand is
// a big-endian int64 delta, and merging sums them.
type counterMerger struct {
	total int64
}

func (m *counterMerger) MergeNewer(value []byte) error {
	m.total += decodeCounter(value)
	return nil
}

func (m *counterMerger) MergeOlder(value []byte) error {
	m.total += decodeCounter(value)
	return nil
}

func (m *counterMerger) Finish(includesBase bool) ([]byte, error) {
	return encodeCounter(m.total), nil
}

func encodeCounter(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func decodeCounter(b []byte) int64 {
	if len(b) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

var merger = &pebble.Merger{
	Name: "samizdat.counter.v1",
	Merge: func(key, value []byte) (pebble.ValueMerger, error) {
		m := &counterMerger{total: decodeCounter(value)}
		return m, nil
	},
}

// PebbleStore is the production Store backed by a local pebble instance.
type PebbleStore struct {
	db *pebble.DB
}

// Open opens (creating if absent) a pebble database rooted at dir.
func Open(dir string) (*PebbleStore, error) {
	opts := &pebble.Options{
		Merger: merger,
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Get(key []byte) ([]byte, error) {
	v, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(v))
	copy(out, v)
	closer.Close()
	return out, nil
}

func (s *PebbleStore) Set(key, value []byte) error {
	return s.db.Set(key, value, pebble.Sync)
}

func (s *PebbleStore) Delete(key []byte) error {
	return s.db.Delete(key, pebble.Sync)
}

func (s *PebbleStore) Merge(key []byte, delta int64) error {
	return s.db.Merge(key, encodeCounter(delta), pebble.Sync)
}

func (s *PebbleStore) NewBatch() Batch {
	return &pebbleBatch{b: s.db.NewBatch(), db: s.db}
}

func (s *PebbleStore) NewIterator(lowerBound, upperBound []byte) Iterator {
	it, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lowerBound, UpperBound: upperBound})
	if err != nil {
		return &errIterator{err: err}
	}
	return &pebbleIterator{it: it, started: false}
}

func (s *PebbleStore) Close() error { return s.db.Close() }

type pebbleBatch struct {
	b  *pebble.Batch
	db *pebble.DB
}

func (b *pebbleBatch) Set(key, value []byte) error    { return b.b.Set(key, value, nil) }
func (b *pebbleBatch) Delete(key []byte) error         { return b.b.Delete(key, nil) }
func (b *pebbleBatch) Merge(key []byte, delta int64) error {
	return b.b.Merge(key, encodeCounter(delta), nil)
}
func (b *pebbleBatch) Commit() error { return b.b.Commit(pebble.Sync) }
func (b *pebbleBatch) Close() error  { return b.b.Close() }

type pebbleIterator struct {
	it      *pebble.Iterator
	started bool
}

func (i *pebbleIterator) Next() bool {
	if !i.started {
		i.started = true
		return i.it.First()
	}
	return i.it.Next()
}

func (i *pebbleIterator) Key() []byte   { return i.it.Key() }
func (i *pebbleIterator) Value() []byte { return i.it.Value() }
func (i *pebbleIterator) Error() error  { return i.it.Error() }
func (i *pebbleIterator) Close() error  { return i.it.Close() }

type errIterator struct{ err error }

func (i *errIterator) Next() bool     { return false }
func (i *errIterator) Key() []byte    { return nil }
func (i *errIterator) Value() []byte  { return nil }
func (i *errIterator) Error() error   { return i.err }
func (i *errIterator) Close() error   { return nil }
