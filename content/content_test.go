package content

import (
	"bytes"
	"testing"
	"time"

	"samizdat/cryptoutil"
	"samizdat/hash"
	"samizdat/kv"
)

func openStore(t *testing.T) (*Store, kv.Store) {
	t.Helper()
	db, err := kv.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewStore(db), db
}

func TestBuildAndReadBack(t *testing.T) {
	s, _ := openStore(t)
	data := bytes.Repeat([]byte("x"), 3*ChunkSize+17)
	root, err := s.Build("application/octet-stream", int64(len(data)), hash.Hash{}, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	meta, err := s.Metadata(root)
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if meta.ContentSize != int64(len(data)) {
		t.Fatalf("got size %d want %d", meta.ContentSize, len(data))
	}
	if len(meta.ChunkHashes) != 4 {
		t.Fatalf("got %d chunks want 4", len(meta.ChunkHashes))
	}
	chunks, err := s.Iter(root)
	if err != nil {
		t.Fatalf("iter: %v", err)
	}
	var rebuilt []byte
	for _, c := range chunks {
		rebuilt = append(rebuilt, c...)
	}
	if !bytes.Equal(rebuilt, data) {
		t.Fatalf("rebuilt content mismatch")
	}
}

func TestBuildRejectsOversizedInput(t *testing.T) {
	s, _ := openStore(t)
	data := bytes.Repeat([]byte("y"), 100)
	if _, err := s.Build("text/plain", 10, hash.Hash{}, bytes.NewReader(data)); err != ErrSizeMismatch {
		t.Fatalf("got %v want ErrSizeMismatch", err)
	}
}

func TestDropIfExistsReclaimsUnsharedChunks(t *testing.T) {
	s, _ := openStore(t)
	data := bytes.Repeat([]byte("z"), 10)
	root, err := s.Build("text/plain", int64(len(data)), hash.Hash{}, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := s.DropIfExists(root); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if _, err := s.Metadata(root); err != ErrNotFound {
		t.Fatalf("got %v want ErrNotFound", err)
	}
}

func TestBookmarkPreventsNothingByItselfButCounts(t *testing.T) {
	s, _ := openStore(t)
	bm := NewBookmarks(s)
	h := hash.New([]byte("obj"))
	if bookmarked, _ := bm.IsBookmarked(h); bookmarked {
		t.Fatalf("fresh hash should not be bookmarked")
	}
	if err := bm.Add(h, KindUser); err != nil {
		t.Fatalf("add: %v", err)
	}
	if bookmarked, _ := bm.IsBookmarked(h); !bookmarked {
		t.Fatalf("should be bookmarked after add")
	}
	if err := bm.Remove(h, KindUser); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if bookmarked, _ := bm.IsBookmarked(h); bookmarked {
		t.Fatalf("should not be bookmarked after remove")
	}
}

func TestCollectionProofRoundTrip(t *testing.T) {
	entries := map[string]hash.Hash{
		"index.html": hash.New([]byte("1")),
		"a/b.txt":    hash.New([]byte("2")),
	}
	c := BuildCollection(entries)
	item, ok := c.Locate("index.html")
	if !ok {
		t.Fatalf("expected to locate index.html")
	}
	if !item.Valid() {
		t.Fatalf("item should validate")
	}
	if _, ok := c.Locate("missing"); ok {
		t.Fatalf("missing name should not be located")
	}
}

func TestSeriesAdvanceLatestWins(t *testing.T) {
	db, err := kv.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	series := NewSeries(db)

	kp, err := cryptoutil.GenerateKeyPair()
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}

	old := Sign(kp, hash.New([]byte("v1")), time.Hour)
	if err := series.Advance(kp.Public, old, false); err != nil {
		t.Fatalf("advance old: %v", err)
	}
	newer := old
	newer.CollectionHash = hash.New([]byte("v2"))
	newer.Timestamp = old.Timestamp + 1
	newer.Signature = kp.Sign(newer.signedPayload())
	if err := series.Advance(kp.Public, newer, false); err != nil {
		t.Fatalf("advance newer: %v", err)
	}

	rec, err := series.Latest(kp.Public)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if rec.Edition.CollectionHash != newer.CollectionHash {
		t.Fatalf("latest-wins violated: got %v want %v", rec.Edition.CollectionHash, newer.CollectionHash)
	}
}

func TestSeriesAdvanceRejectsBadSignature(t *testing.T) {
	db, err := kv.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	series := NewSeries(db)
	kp, _ := cryptoutil.GenerateKeyPair()
	other, _ := cryptoutil.GenerateKeyPair()

	ed := Sign(other, hash.New([]byte("v1")), time.Hour)
	if err := series.Advance(kp.Public, ed, false); err != ErrBadSignature {
		t.Fatalf("got %v want ErrBadSignature", err)
	}
}

func TestDraftSeriesNotServable(t *testing.T) {
	db, err := kv.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	series := NewSeries(db)
	kp, _ := cryptoutil.GenerateKeyPair()
	ed := Sign(kp, hash.New([]byte("v1")), time.Hour)
	if err := series.Advance(kp.Public, ed, true); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if _, err := series.LatestServable(kp.Public); err != ErrSeriesIsDraft {
		t.Fatalf("got %v want ErrSeriesIsDraft", err)
	}
}

func TestUsefulnessLowerForIdleUntouched(t *testing.T) {
	now := time.Now()
	fresh := Statistics{Size: 1024, CreatedAt: now.Unix() - 10, LastTouchedAt: now.Unix(), Touches: 50}
	idle := Statistics{Size: 1024, CreatedAt: now.Unix() - 1000000, LastTouchedAt: now.Unix() - 999000, Touches: 1}
	if Usefulness(idle, now) >= Usefulness(fresh, now) {
		t.Fatalf("a heavily-touched recent object should score more useful than a long-idle one")
	}
}
