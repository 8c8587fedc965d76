package hash

import "testing"

func TestRehashDeterministic(t *testing.T) {
	a := New([]byte("alpha"))
	b := New([]byte("beta"))
	r1 := Rehash(a, b)
	r2 := Rehash(a, b)
	if r1 != r2 {
		t.Fatalf("rehash not deterministic")
	}
	if r1 == Rehash(b, a) {
		t.Fatalf("rehash should not be commutative")
	}
}

func TestZeroIdentity(t *testing.T) {
	var z Hash
	if !z.IsZero() {
		t.Fatalf("zero value should report IsZero")
	}
	if New([]byte{}) == z {
		t.Fatalf("hash of empty input should not equal the zero identity")
	}
}

func TestFromBytesRoundTrip(t *testing.T) {
	h := New([]byte("samizdat"))
	h2, err := FromBytes(h.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h != h2 {
		t.Fatalf("round trip mismatch")
	}
	if _, err := FromBytes([]byte{1, 2, 3}); err != ErrLength {
		t.Fatalf("expected ErrLength, got %v", err)
	}
}

func TestFromHexRoundTrip(t *testing.T) {
	h := New([]byte("hex-roundtrip"))
	s := h.String()
	h2, err := FromHex(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h != h2 {
		t.Fatalf("hex round trip mismatch")
	}
}

func TestBitOrderingMSBFirst(t *testing.T) {
	var h Hash
	h[0] = 0b1000_0000
	if !h.Bit(0) {
		t.Fatalf("bit 0 should be the MSB of byte 0")
	}
	for i := 1; i < 8; i++ {
		if h.Bit(i) {
			t.Fatalf("bit %d should be zero", i)
		}
	}
}

func TestMerkleTreeSingleLeaf(t *testing.T) {
	leaf := New([]byte("chunk"))
	if MerkleTree([]Hash{leaf}) != leaf {
		t.Fatalf("single-leaf tree should equal the leaf itself")
	}
}

func TestMerkleTreeEmpty(t *testing.T) {
	if MerkleTree(nil) != (Hash{}) {
		t.Fatalf("empty tree should be the zero hash")
	}
}

func TestRandomProducesDistinctValues(t *testing.T) {
	a, err := Random()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Random()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == b {
		t.Fatalf("two random hashes collided, extremely unlikely")
	}
	if a.IsZero() || b.IsZero() {
		t.Fatalf("random hash should not be the zero identity")
	}
}

func TestMerkleTreeOddLeafCount(t *testing.T) {
	leaves := []Hash{New([]byte("a")), New([]byte("b")), New([]byte("c"))}
	root1 := MerkleTree(leaves)
	root2 := MerkleTree(leaves)
	if root1 != root2 {
		t.Fatalf("merkle root must be deterministic")
	}
	other := MerkleTree([]Hash{leaves[0], leaves[1], leaves[2], leaves[2]})
	if root1 != other {
		t.Fatalf("dangling leaf duplication convention violated")
	}
}
