// Package cryptoutil collects Samizdat's signature and symmetric-cipher
// primitives: ed25519 series signing and the per-transfer AEAD used by the
// file-transfer protocol.
package cryptoutil

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"

	"github.com/hdevalence/ed25519consensus"
)

// ErrInvalidSignature names a series item's signature that does not verify
// against its claimed public key. Verify itself reports that case as false
// rather than returning this error.
var ErrInvalidSignature = errors.New("cryptoutil: invalid signature")

// PublicKeySize and SignatureSize mirror the ed25519 constants, re-exported
// so callers need not import crypto/ed25519 directly.
const (
	PublicKeySize  = ed25519.PublicKeySize
	PrivateKeySize = ed25519.PrivateKeySize
	SignatureSize  = ed25519.SignatureSize
)

// KeyPair is a series owner's signing key.
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// GenerateKeyPair creates a fresh ed25519 key pair for a new series.
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Public: pub, Private: priv}, nil
}

// Sign signs content under the series owner's private key.
func (kp KeyPair) Sign(content []byte) []byte {
	return ed25519.Sign(kp.Private, content)
}

// Verify checks a signature against a public key using the consensus-safe
// verifier, which applies the ZIP-215 validation rules (cofactored check,
// explicit acceptance criteria) so every verifier reaches the same verdict
// on the same signature, which matters once signatures cross an untrusted
// network of mutually distrustful peers.
func Verify(public ed25519.PublicKey, content, signature []byte) bool {
	if len(public) != ed25519.PublicKeySize || len(signature) != ed25519.SignatureSize {
		return false
	}
	return ed25519consensus.Verify(public, content, signature)
}
