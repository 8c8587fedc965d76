// Package hash implements Samizdat's content-hash primitive: a 28-byte
// SHA3-224 digest with a combinator (rehash) used to build Merkle and
// Patricia trees.
package hash

import (
	"crypto/rand"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/sha3"
)

// Size is the byte length of a Hash (SHA3-224 output).
const Size = 28

// Hash is a 28-byte content-addressing digest. The zero value is the
// identity element used by Merkle and Patricia trees for absent children.
type Hash [Size]byte

// ErrLength is returned when decoding a byte slice of the wrong length.
var ErrLength = errors.New("hash: wrong length")

// New hashes x with SHA3-224: H(x).
func New(x []byte) Hash {
	return Hash(sha3.Sum224(x))
}

// Random returns a cryptographically random Hash, used where a value needs
// the type's size and encoding but no relationship to any content (nonces,
// generated tokens).
func Random() (Hash, error) {
	var h Hash
	if _, err := rand.Read(h[:]); err != nil {
		return Hash{}, err
	}
	return h, nil
}

// Rehash computes H(a‖b), the combinator used by Merkle trees and the
// Patricia trie to fold a node's children into its own hash.
func Rehash(a, b Hash) Hash {
	buf := make([]byte, 0, 2*Size)
	buf = append(buf, a[:]...)
	buf = append(buf, b[:]...)
	return New(buf)
}

// IsZero reports whether h is the all-zero identity element.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Bytes returns the hash as a byte slice.
func (h Hash) Bytes() []byte {
	return h[:]
}

// String renders the hash as lowercase hex.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// FromBytes validates and converts a byte slice into a Hash.
func FromBytes(b []byte) (Hash, error) {
	var h Hash
	if len(b) != Size {
		return h, ErrLength
	}
	copy(h[:], b)
	return h, nil
}

// FromHex parses a hex-encoded hash.
func FromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, err
	}
	return FromBytes(b)
}

// Bit returns side i of h (bit i%8 of byte i/8, counting from the most
// significant bit), MSB-first within each byte,
// bytes taken in natural order. This is the single bit-ordering convention
// used by every tree in this module (see the Patricia trie package).
func (h Hash) Bit(i int) bool {
	byteIdx := i / 8
	bitIdx := 7 - (i % 8)
	return (h[byteIdx]>>uint(bitIdx))&1 == 1
}

// Bits is the total number of addressable bits in a Hash.
const Bits = Size * 8

// MerkleTree computes the root hash of a binary Merkle tree over leaves,
// folding pairs with Rehash and padding a dangling last leaf by repeating
// it once (so the tree size need not be a power of two).
func MerkleTree(leaves []Hash) Hash {
	if len(leaves) == 0 {
		return Hash{}
	}
	level := make([]Hash, len(leaves))
	copy(level, leaves)
	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, Rehash(level[i], level[i+1]))
			} else {
				next = append(next, Rehash(level[i], level[i]))
			}
		}
		level = next
	}
	return level[0]
}
