package kv

import (
	"testing"
)

func TestSetGetDelete(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if err := s.Set([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := s.Get([]byte("a"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(v) != "1" {
		t.Fatalf("got %q want 1", v)
	}
	if err := s.Delete([]byte("a")); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get([]byte("a")); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMergeAccumulates(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	key := []byte("refcount:chunk1")
	for _, delta := range []int64{1, 1, 1, -1} {
		if err := s.Merge(key, delta); err != nil {
			t.Fatalf("merge: %v", err)
		}
	}
	v, err := s.Get(key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := decodeCounter(v); got != 2 {
		t.Fatalf("got counter %d want 2", got)
	}
}

func TestBatchCommitIsAtomic(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	b := s.NewBatch()
	if err := b.Set([]byte("k1"), []byte("v1")); err != nil {
		t.Fatalf("batch set: %v", err)
	}
	if err := b.Set([]byte("k2"), []byte("v2")); err != nil {
		t.Fatalf("batch set: %v", err)
	}
	if err := b.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	b.Close()

	for _, k := range []string{"k1", "k2"} {
		if _, err := s.Get([]byte(k)); err != nil {
			t.Fatalf("%s: %v", k, err)
		}
	}
}

func TestIteratorOrdersByPrefix(t *testing.T) {
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	for _, k := range []string{"obj:a", "obj:b", "obj:c", "other:z"} {
		if err := s.Set([]byte(k), []byte("v")); err != nil {
			t.Fatalf("set: %v", err)
		}
	}

	it := s.NewIterator([]byte("obj:"), []byte("obj;"))
	defer it.Close()
	var got []string
	for it.Next() {
		got = append(got, string(it.Key()))
	}
	if err := it.Error(); err != nil {
		t.Fatalf("iterate: %v", err)
	}
	want := []string{"obj:a", "obj:b", "obj:c"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}
