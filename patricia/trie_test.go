package patricia

import (
	"testing"

	"samizdat/hash"
)

func nameKey(name string) hash.Hash { return hash.New([]byte(name)) }

func TestPutGetRoundTrip(t *testing.T) {
	tr := New()
	items := map[string]hash.Hash{
		"index.html": hash.New([]byte("H1")),
		"a/b.txt":    hash.New([]byte("H2")),
		"a/c.txt":    hash.New([]byte("H3")),
		"z.bin":      hash.New([]byte("H4")),
	}
	for name, v := range items {
		tr.Put(nameKey(name), v)
	}
	for name, want := range items {
		got, ok := tr.Get(nameKey(name))
		if !ok {
			t.Fatalf("%s: not found", name)
		}
		if got != want {
			t.Fatalf("%s: got %v want %v", name, got, want)
		}
	}
	if _, ok := tr.Get(nameKey("missing")); ok {
		t.Fatalf("missing key should not be found")
	}
}

func TestOverwriteValue(t *testing.T) {
	tr := New()
	k := nameKey("index.html")
	tr.Put(k, hash.New([]byte("v1")))
	tr.Put(k, hash.New([]byte("v2")))
	got, ok := tr.Get(k)
	if !ok || got != hash.New([]byte("v2")) {
		t.Fatalf("overwrite failed, got %v", got)
	}
}

func TestProofVerifies(t *testing.T) {
	tr := New()
	items := []string{"index.html", "a/b.txt", "a/c.txt", "z.bin", "deep/nested/path/file"}
	for i, name := range items {
		tr.Put(nameKey(name), hash.New([]byte{byte(i)}))
	}
	root := tr.Root()
	for _, name := range items {
		proof, ok := tr.Prove(nameKey(name))
		if !ok {
			t.Fatalf("%s: proof not found", name)
		}
		if !Verify(nameKey(name), proof, root) {
			t.Fatalf("%s: proof failed to verify", name)
		}
	}
}

func TestProofFailsForWrongRoot(t *testing.T) {
	tr := New()
	tr.Put(nameKey("a"), hash.New([]byte("va")))
	tr.Put(nameKey("b"), hash.New([]byte("vb")))
	proof, ok := tr.Prove(nameKey("a"))
	if !ok {
		t.Fatalf("proof not found")
	}
	if Verify(nameKey("a"), proof, hash.New([]byte("not-the-root"))) {
		t.Fatalf("proof should not verify against a wrong root")
	}
}

func TestProofAbsentKey(t *testing.T) {
	tr := New()
	tr.Put(nameKey("a"), hash.New([]byte("va")))
	if _, ok := tr.Prove(nameKey("nonexistent")); ok {
		t.Fatalf("should not produce a proof for an absent key")
	}
}

func TestSingleKeyProofHasNoSteps(t *testing.T) {
	tr := New()
	v := hash.New([]byte("only-value"))
	tr.Put(nameKey("solo"), v)
	proof, ok := tr.Prove(nameKey("solo"))
	if !ok {
		t.Fatalf("proof not found")
	}
	if len(proof.Steps) != 0 {
		t.Fatalf("a single-key trie should need no sibling steps, got %d", len(proof.Steps))
	}
	if !Verify(nameKey("solo"), proof, tr.Root()) {
		t.Fatalf("proof should verify")
	}
}

func TestDeterministicRoot(t *testing.T) {
	build := func() hash.Hash {
		tr := New()
		tr.Put(nameKey("x"), hash.New([]byte("1")))
		tr.Put(nameKey("y"), hash.New([]byte("2")))
		tr.Put(nameKey("z"), hash.New([]byte("3")))
		return tr.Root()
	}
	if build() != build() {
		t.Fatalf("root hash should be deterministic across identical insert sequences")
	}
}
