package cryptoutil

import (
	"bytes"
	"testing"

	"samizdat/hash"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	content := []byte("collection-hash-and-timestamp")
	sig := kp.Sign(content)
	if !Verify(kp.Public, content, sig) {
		t.Fatalf("signature should verify")
	}
	if Verify(kp.Public, []byte("tampered"), sig) {
		t.Fatalf("signature should not verify over different content")
	}
}

func TestTransferCipherRoundTrip(t *testing.T) {
	h := hash.New([]byte("object-content"))
	nonce, err := RandomNonce()
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	enc, err := NewTransferCipher(h, nonce)
	if err != nil {
		t.Fatalf("new cipher: %v", err)
	}
	msg := []byte("hello, peer")
	ct := enc.Seal(msg, nil)

	dec, err := NewTransferCipher(h, nonce)
	if err != nil {
		t.Fatalf("new cipher (decrypt side): %v", err)
	}
	pt, err := dec.Open(ct, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if !bytes.Equal(pt, msg) {
		t.Fatalf("round trip mismatch: got %q want %q", pt, msg)
	}
}

func TestTransferCipherWrongKeyFails(t *testing.T) {
	h1 := hash.New([]byte("a"))
	h2 := hash.New([]byte("b"))
	nonce, _ := RandomNonce()
	enc, _ := NewTransferCipher(h1, nonce)
	ct := enc.Seal([]byte("secret"), nil)
	dec, _ := NewTransferCipher(h2, nonce)
	if _, err := dec.Open(ct, nil); err == nil {
		t.Fatalf("expected decryption failure with wrong key")
	}
}

func TestBootstrapCipherIsDeterministic(t *testing.T) {
	h := hash.New([]byte("obj"))
	c1, err := BootstrapCipher(h)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	c2, err := BootstrapCipher(h)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	ct := c1.Seal([]byte("nonce-message"), nil)
	pt, err := c2.Open(ct, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(pt) != "nonce-message" {
		t.Fatalf("mismatch")
	}
}
