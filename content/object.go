// Package content implements the object, collection, series and bookmark
// model of spec §3-4.4: content-addressed chunked objects backed by kv,
// Patricia-trie collections, ed25519-signed series editions, and the
// merge-counter bookmark/refcount bookkeeping that protects both from
// vacuum eviction.
package content

import (
	"encoding/binary"
	"errors"
	"io"
	"time"

	"samizdat/hash"
	"samizdat/kv"
	"samizdat/wire"
)

// ChunkSize is the fixed chunk length objects are split into (spec §4.4,
// §4.6).
const ChunkSize = 256 * 1024

var (
	ErrSizeMismatch = errors.New("content: content exceeds declared size")
	ErrHashMismatch = errors.New("content: rebuilt hash does not match target")
	ErrNotFound     = errors.New("content: object not found")
)

// Metadata describes a stored object.
type Metadata struct {
	ContentType string
	ContentSize int64
	ChunkHashes []hash.Hash
	ReceivedAt  int64
	Nonce       hash.Hash
}

func (m Metadata) Marshal() []byte {
	e := wire.NewEncoder()
	e.WriteString(m.ContentType)
	e.WriteInt64(m.ContentSize)
	e.WriteUint32(uint32(len(m.ChunkHashes)))
	for _, h := range m.ChunkHashes {
		e.WriteRaw(h.Bytes())
	}
	e.WriteInt64(m.ReceivedAt)
	e.WriteRaw(m.Nonce.Bytes())
	return e.Bytes()
}

func UnmarshalMetadata(b []byte) (Metadata, error) {
	d := wire.NewDecoder(b)
	var m Metadata
	var err error
	if m.ContentType, err = d.ReadString(); err != nil {
		return Metadata{}, err
	}
	if m.ContentSize, err = d.ReadInt64(); err != nil {
		return Metadata{}, err
	}
	n, err := d.ReadUint32()
	if err != nil {
		return Metadata{}, err
	}
	m.ChunkHashes = make([]hash.Hash, n)
	for i := range m.ChunkHashes {
		raw, err := d.ReadRaw(hash.Size)
		if err != nil {
			return Metadata{}, err
		}
		h, err := hash.FromBytes(raw)
		if err != nil {
			return Metadata{}, err
		}
		m.ChunkHashes[i] = h
	}
	if m.ReceivedAt, err = d.ReadInt64(); err != nil {
		return Metadata{}, err
	}
	raw, err := d.ReadRaw(hash.Size)
	if err != nil {
		return Metadata{}, err
	}
	if m.Nonce, err = hash.FromBytes(raw); err != nil {
		return Metadata{}, err
	}
	return m, nil
}

// Statistics tracks access history, feeding the byte-usefulness formula
// (spec §4.4).
type Statistics struct {
	Size          int64
	CreatedAt     int64
	LastTouchedAt int64
	Touches       int64
}

func (s Statistics) Marshal() []byte {
	b := make([]byte, 32)
	binary.BigEndian.PutUint64(b[0:8], uint64(s.Size))
	binary.BigEndian.PutUint64(b[8:16], uint64(s.CreatedAt))
	binary.BigEndian.PutUint64(b[16:24], uint64(s.LastTouchedAt))
	binary.BigEndian.PutUint64(b[24:32], uint64(s.Touches))
	return b
}

func UnmarshalStatistics(b []byte) (Statistics, error) {
	if len(b) != 32 {
		return Statistics{}, errors.New("content: malformed statistics")
	}
	return Statistics{
		Size:          int64(binary.BigEndian.Uint64(b[0:8])),
		CreatedAt:     int64(binary.BigEndian.Uint64(b[8:16])),
		LastTouchedAt: int64(binary.BigEndian.Uint64(b[16:24])),
		Touches:       int64(binary.BigEndian.Uint64(b[24:32])),
	}, nil
}

// Store owns the Objects/ObjectMetadata/ObjectChunks/ObjectChunkRefCount/
// ObjectStatistics/Bookmarks tables.
type Store struct {
	kv  kv.Store
	now func() time.Time
}

func NewStore(store kv.Store) *Store {
	return &Store{kv: store, now: time.Now}
}

// Build reads up to expectedSize bytes from r, chunking at ChunkSize,
// writes each chunk (deduplicated via a refcount merge), computes the
// Merkle root, and writes metadata and a zero bookmark atomically.
func (s *Store) Build(contentType string, expectedSize int64, nonce hash.Hash, r io.Reader) (hash.Hash, error) {
	var chunkHashes []hash.Hash
	var chunks [][]byte
	var total int64
	buf := make([]byte, ChunkSize)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			total += int64(n)
			if total > expectedSize {
				return hash.Hash{}, ErrSizeMismatch
			}
			chunk := append([]byte(nil), buf[:n]...)
			h := hash.New(chunk)
			chunks = append(chunks, chunk)
			chunkHashes = append(chunkHashes, h)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return hash.Hash{}, err
		}
		if n < ChunkSize {
			break
		}
	}

	root := hash.MerkleTree(chunkHashes)

	b := s.kv.NewBatch()
	defer b.Close()
	for i, h := range chunkHashes {
		if err := b.Set(kv.Key(kv.TableObjectChunks, h.Bytes()), chunks[i]); err != nil {
			return hash.Hash{}, err
		}
		if err := b.Merge(kv.Key(kv.TableObjectChunkRefCount, h.Bytes()), 1); err != nil {
			return hash.Hash{}, err
		}
	}
	meta := Metadata{
		ContentType: contentType,
		ContentSize: total,
		ChunkHashes: chunkHashes,
		ReceivedAt:  s.now().Unix(),
		Nonce:       nonce,
	}
	if err := b.Set(kv.Key(kv.TableObjectMetadata, root.Bytes()), meta.Marshal()); err != nil {
		return hash.Hash{}, err
	}
	stats := Statistics{Size: total, CreatedAt: meta.ReceivedAt, LastTouchedAt: meta.ReceivedAt}
	if err := b.Set(kv.Key(kv.TableObjectStatistics, root.Bytes()), stats.Marshal()); err != nil {
		return hash.Hash{}, err
	}
	if err := b.Merge(kv.Key(kv.TableBookmarks, bookmarkKey(root, KindReference)), 0); err != nil {
		return hash.Hash{}, err
	}
	if err := b.Commit(); err != nil {
		return hash.Hash{}, err
	}
	return root, nil
}

// Metadata returns the stored metadata for an object hash.
func (s *Store) Metadata(h hash.Hash) (Metadata, error) {
	v, err := s.kv.Get(kv.Key(kv.TableObjectMetadata, h.Bytes()))
	if err == kv.ErrNotFound {
		return Metadata{}, ErrNotFound
	}
	if err != nil {
		return Metadata{}, err
	}
	return UnmarshalMetadata(v)
}

// Touch bumps access statistics for an object, as every resolved read does.
func (s *Store) Touch(h hash.Hash) error {
	v, err := s.kv.Get(kv.Key(kv.TableObjectStatistics, h.Bytes()))
	if err != nil {
		return err
	}
	st, err := UnmarshalStatistics(v)
	if err != nil {
		return err
	}
	st.LastTouchedAt = s.now().Unix()
	st.Touches++
	return s.kv.Set(kv.Key(kv.TableObjectStatistics, h.Bytes()), st.Marshal())
}

// Chunk returns one stored chunk by its own hash.
func (s *Store) Chunk(h hash.Hash) ([]byte, error) {
	v, err := s.kv.Get(kv.Key(kv.TableObjectChunks, h.Bytes()))
	if err == kv.ErrNotFound {
		return nil, ErrNotFound
	}
	return v, err
}

// Iter streams an object's chunks in order.
func (s *Store) Iter(h hash.Hash) ([][]byte, error) {
	meta, err := s.Metadata(h)
	if err != nil {
		return nil, err
	}
	out := make([][]byte, len(meta.ChunkHashes))
	for i, ch := range meta.ChunkHashes {
		c, err := s.Chunk(ch)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

// Hashes returns every object hash with stored metadata, for the resolve
// path's riddle matching (spec §4.9): a linear scan over
// ObjectMetadata, acceptable at the object counts a single node holds.
func (s *Store) Hashes() ([]hash.Hash, error) {
	lower, upper := kv.TablePrefix(kv.TableObjectMetadata)
	it := s.kv.NewIterator(lower, upper)
	defer it.Close()

	var out []hash.Hash
	for it.Next() {
		h, err := hash.FromBytes(it.Key()[len(lower):])
		if err != nil {
			continue
		}
		out = append(out, h)
	}
	return out, it.Error()
}

// DropIfExists removes metadata and statistics and decrements every chunk's
// refcount in one atomic batch, then deletes each chunk whose refcount has
// reached zero in a second, separate pass.
func (s *Store) DropIfExists(h hash.Hash) error {
	meta, err := s.Metadata(h)
	if err == ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	b := s.kv.NewBatch()
	defer b.Close()
	if err := b.Delete(kv.Key(kv.TableObjectMetadata, h.Bytes())); err != nil {
		return err
	}
	if err := b.Delete(kv.Key(kv.TableObjectStatistics, h.Bytes())); err != nil {
		return err
	}
	for _, ch := range meta.ChunkHashes {
		if err := b.Merge(kv.Key(kv.TableObjectChunkRefCount, ch.Bytes()), -1); err != nil {
			return err
		}
	}
	if err := b.Commit(); err != nil {
		return err
	}
	// Chunks at zero refcount are reclaimed only after the batch has
	// committed, since pebble merges within a batch are not visible to
	// reads until commit.
	return s.reclaimZeroRefChunks(meta.ChunkHashes)
}

func (s *Store) reclaimZeroRefChunks(candidates []hash.Hash) error {
	for _, ch := range candidates {
		v, err := s.kv.Get(kv.Key(kv.TableObjectChunkRefCount, ch.Bytes()))
		if err == kv.ErrNotFound {
			continue
		}
		if err != nil {
			return err
		}
		if len(v) == 8 && allZero(v) {
			if err := s.kv.Delete(kv.Key(kv.TableObjectChunks, ch.Bytes())); err != nil {
				return err
			}
		}
	}
	return nil
}

func allZero(b []byte) bool {
	for _, x := range b {
		if x != 0 {
			return false
		}
	}
	return true
}
