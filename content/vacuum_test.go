package content

import (
	"bytes"
	"testing"

	"samizdat/hash"
)

func TestVacuumUnnecessaryUnderCap(t *testing.T) {
	s, _ := openStore(t)
	bm := NewBookmarks(s)
	if _, err := s.Build("text/plain", 10, hash.Hash{}, bytes.NewReader(bytes.Repeat([]byte("a"), 10))); err != nil {
		t.Fatalf("build: %v", err)
	}
	outcome, err := Vacuum(s, bm, 1<<30)
	if err != nil {
		t.Fatalf("vacuum: %v", err)
	}
	if outcome != Unnecessary {
		t.Fatalf("got %v want Unnecessary", outcome)
	}
}

func TestVacuumEvictsUnbookmarkedBeforeBookmarked(t *testing.T) {
	s, _ := openStore(t)
	bm := NewBookmarks(s)

	small := bytes.Repeat([]byte("s"), 100)
	hSmall, err := s.Build("text/plain", int64(len(small)), hash.Hash{}, bytes.NewReader(small))
	if err != nil {
		t.Fatalf("build small: %v", err)
	}
	if err := bm.Add(hSmall, KindUser); err != nil {
		t.Fatalf("bookmark: %v", err)
	}

	big := bytes.Repeat([]byte("b"), 200)
	hBig, err := s.Build("text/plain", int64(len(big)), hash.Hash{}, bytes.NewReader(big))
	if err != nil {
		t.Fatalf("build big: %v", err)
	}

	outcome, err := Vacuum(s, bm, 150)
	if err != nil {
		t.Fatalf("vacuum: %v", err)
	}
	if outcome != Done {
		t.Fatalf("got %v want Done", outcome)
	}
	if _, err := s.Metadata(hBig); err != ErrNotFound {
		t.Fatalf("unbookmarked object should have been evicted, got err=%v", err)
	}
	if _, err := s.Metadata(hSmall); err != nil {
		t.Fatalf("bookmarked object should survive vacuum: %v", err)
	}
}

func TestVacuumInsufficientWhenEvenBookmarkedNeeded(t *testing.T) {
	s, _ := openStore(t)
	bm := NewBookmarks(s)
	data := bytes.Repeat([]byte("c"), 500)
	h, err := s.Build("text/plain", int64(len(data)), hash.Hash{}, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := bm.Add(h, KindUser); err != nil {
		t.Fatalf("bookmark: %v", err)
	}
	outcome, err := Vacuum(s, bm, 10)
	if err != nil {
		t.Fatalf("vacuum: %v", err)
	}
	if outcome != Insufficient {
		t.Fatalf("got %v want Insufficient", outcome)
	}
}
