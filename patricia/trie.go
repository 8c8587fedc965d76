// Package patricia implements the collection trie of spec §4.3: a radix-2
// (binary) trie over the 224 bits of a key, with path compression, whose
// root hash is defined so that it equals the root of the fully expanded
// (uncompressed) binary tree — compressed edges never change the hash,
// only the storage shape and the size of an inclusion proof.
//
// Bit order (spec §9's "Open Question", resolved here): bit i of a key is
// hash.Hash.Bit(i) — MSB-first within each byte, bytes in natural order.
// Side "Left" corresponds to a 1 bit, "Right" to a 0 bit, matching the
// original implementation's primary convention in common/patricia_map.rs
// (the alternate, inconsistent merkle_map.rs convention is not used).
package patricia

import "samizdat/hash"

// side is which child edge a bit selects. true = Left (bit value 1),
// false = Right (bit value 0).
type side = bool

const left side = true
const right side = false

// edge is a compressed path segment: the bits strictly between the parent
// branch decision and the child node, plus the child itself.
type edge struct {
	segment []side
	next    *node
}

// node is either an internal branch point (left/right set, value nil) or a
// leaf (value set, left/right nil).
type node struct {
	value *hash.Hash
	left  *edge
	right *edge
}

func (n *node) childEdge(s side) *edge {
	if s == left {
		return n.left
	}
	return n.right
}

func (n *node) setEdge(s side, e *edge) {
	if s == left {
		n.left = e
	} else {
		n.right = e
	}
}

// hashOf computes a node's hash: the value itself for a leaf, or
// rehash(leftEdgeHash, rightEdgeHash) for a branch point, where a missing
// edge contributes the zero hash.
func hashOf(n *node) hash.Hash {
	if n == nil {
		return hash.Hash{}
	}
	if n.value != nil {
		return *n.value
	}
	return hash.Rehash(hashOfEdge(n.left), hashOfEdge(n.right))
}

// hashOfEdge folds a compressed edge's skipped bits into its child's hash,
// reconstructing the hash each of those virtual single-child nodes would
// have had, deepest bit first.
func hashOfEdge(e *edge) hash.Hash {
	if e == nil {
		return hash.Hash{}
	}
	cur := hashOf(e.next)
	for i := len(e.segment) - 1; i >= 0; i-- {
		if e.segment[i] == left {
			cur = hash.Rehash(cur, hash.Hash{})
		} else {
			cur = hash.Rehash(hash.Hash{}, cur)
		}
	}
	return cur
}

// Trie is a Patricia trie mapping 224-bit keys (in practice hash.Hash(name))
// to hash.Hash values (object hashes).
type Trie struct {
	root *node
}

// New returns an empty trie.
func New() *Trie {
	return &Trie{root: &node{}}
}

func keyBits(k hash.Hash) []side {
	bits := make([]side, hash.Bits)
	for i := range bits {
		bits[i] = k.Bit(i)
	}
	return bits
}

// Put inserts or overwrites key -> value.
func (t *Trie) Put(key, value hash.Hash) {
	insert(t.root, keyBits(key), value)
}

func insert(n *node, bits []side, value hash.Hash) {
	s := bits[0]
	rest := bits[1:]
	e := n.childEdge(s)
	if e == nil {
		v := value
		n.setEdge(s, &edge{segment: append([]side(nil), rest...), next: &node{value: &v}})
		return
	}

	common := 0
	for common < len(e.segment) && common < len(rest) && e.segment[common] == rest[common] {
		common++
	}

	if common == len(e.segment) && common == len(rest) {
		v := value
		e.next.value = &v
		return
	}

	// Fixed-length keys guarantee common < len(e.segment) here (see
	// package doc): split the edge at the point of divergence.
	existingSide := e.segment[common]
	newSide := rest[common]

	mid := &node{}
	mid.setEdge(existingSide, &edge{segment: append([]side(nil), e.segment[common+1:]...), next: e.next})
	v := value
	mid.setEdge(newSide, &edge{segment: append([]side(nil), rest[common+1:]...), next: &node{value: &v}})

	e.segment = e.segment[:common]
	e.next = mid
}

// Get looks up key, returning the stored value and whether it was found.
func (t *Trie) Get(key hash.Hash) (hash.Hash, bool) {
	bits := keyBits(key)
	n := t.root
	for len(bits) > 0 {
		s := bits[0]
		rest := bits[1:]
		e := n.childEdge(s)
		if e == nil {
			return hash.Hash{}, false
		}
		if len(rest) < len(e.segment) {
			return hash.Hash{}, false
		}
		for i, sb := range e.segment {
			if rest[i] != sb {
				return hash.Hash{}, false
			}
		}
		bits = rest[len(e.segment):]
		n = e.next
	}
	if n.value == nil {
		return hash.Hash{}, false
	}
	return *n.value, true
}

// Root returns the trie's root hash — the collection hash.
func (t *Trie) Root() hash.Hash {
	return hashOf(t.root)
}

// ProofStep is one sibling contribution at a real branch point.
type ProofStep struct {
	Depth   int // bit index (0 = root-most) at which this branch occurs
	Sibling hash.Hash
}

// Proof is an inclusion proof for a key: the claimed value plus the sparse
// set of non-zero sibling hashes along its root-to-leaf path (all other
// bit levels have an implicit zero sibling — see package doc).
type Proof struct {
	Value hash.Hash
	Steps []ProofStep
}

// Prove builds an inclusion proof for key, or (Proof{}, false) if key is
// absent.
func (t *Trie) Prove(key hash.Hash) (Proof, bool) {
	bits := keyBits(key)
	n := t.root
	depth := 0
	var steps []ProofStep
	for len(bits) > 0 {
		s := bits[0]
		rest := bits[1:]
		e := n.childEdge(s)
		if e == nil {
			return Proof{}, false
		}
		var otherEdge *edge
		if s == left {
			otherEdge = n.right
		} else {
			otherEdge = n.left
		}
		sib := hashOfEdge(otherEdge)
		if sib != (hash.Hash{}) {
			steps = append(steps, ProofStep{Depth: depth, Sibling: sib})
		}
		if len(rest) < len(e.segment) {
			return Proof{}, false
		}
		for i, sb := range e.segment {
			if rest[i] != sb {
				return Proof{}, false
			}
		}
		depth += 1 + len(e.segment)
		bits = rest[len(e.segment):]
		n = e.next
	}
	if n.value == nil {
		return Proof{}, false
	}
	return Proof{Value: *n.value, Steps: steps}, true
}

// Verify reconstructs the root hash implied by proof for key and checks it
// against root. It returns false if the proof does not reconstruct root.
func Verify(key hash.Hash, proof Proof, root hash.Hash) bool {
	sibling := make(map[int]hash.Hash, len(proof.Steps))
	for _, st := range proof.Steps {
		sibling[st.Depth] = st.Sibling
	}
	cur := proof.Value
	for i := hash.Bits - 1; i >= 0; i-- {
		sib := sibling[i] // zero value if absent, which is the correct default
		if key.Bit(i) {
			cur = hash.Rehash(cur, sib)
		} else {
			cur = hash.Rehash(sib, cur)
		}
	}
	return cur == root
}
