package filetransfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/brotli"

	"samizdat/content"
	"samizdat/cryptoutil"
	"samizdat/hash"
)

var (
	ErrOversized     = errors.New("filetransfer: content size exceeds configured maximum")
	ErrRootMismatch  = errors.New("filetransfer: rebuilt merkle root does not match requested hash")
	ErrItemMismatch  = errors.New("filetransfer: item does not prove the requested object")
	ErrChannelClosed = errors.New("filetransfer: channel closed before transfer completed")
)

// Channel is the minimal duplex framed-message primitive a transfer runs
// over; transport.Multiplexer's per-channel Send/Recv satisfy it.
type Channel interface {
	Send(ctx context.Context, payload []byte) error
	Recv(ctx context.Context) ([]byte, bool)
}

func recvOrClosed(ctx context.Context, ch Channel) ([]byte, error) {
	payload, ok := ch.Recv(ctx)
	if !ok {
		return nil, ErrChannelClosed
	}
	return payload, nil
}

// SendObject runs the sender half of a plain object transfer (spec §4.6):
// bootstrap nonce, object header, then one encrypted+compressed message per
// chunk.
func SendObject(ctx context.Context, ch Channel, store *content.Store, objHash hash.Hash) error {
	nonce, err := cryptoutil.RandomNonce()
	if err != nil {
		return err
	}
	if err := sendBootstrapNonce(ctx, ch, objHash, nonce); err != nil {
		return err
	}
	cipher, err := cryptoutil.NewTransferCipher(objHash, nonce)
	if err != nil {
		return err
	}

	meta, err := store.Metadata(objHash)
	if err != nil {
		return err
	}
	header := ObjectMessage{Hash: objHash, Metadata: meta}
	if err := sendEncrypted(ctx, ch, cipher, header.Marshal()); err != nil {
		return err
	}
	return sendChunks(ctx, ch, cipher, store, meta)
}

// ReceiveObject runs the receiver half of a plain object transfer,
// validating the header and rebuilding the object into store.
func ReceiveObject(ctx context.Context, ch Channel, store *content.Store, wantHash hash.Hash, maxContentSize int64) error {
	nonce, err := recvBootstrapNonce(ctx, ch, wantHash)
	if err != nil {
		return err
	}
	cipher, err := cryptoutil.NewTransferCipher(wantHash, nonce)
	if err != nil {
		return err
	}

	headerBytes, err := recvEncrypted(ctx, ch, cipher)
	if err != nil {
		return err
	}
	header, err := UnmarshalObjectMessage(headerBytes)
	if err != nil {
		return err
	}
	if header.Metadata.ContentSize > maxContentSize {
		return ErrOversized
	}
	if hash.MerkleTree(header.Metadata.ChunkHashes) != wantHash {
		return ErrRootMismatch
	}
	return receiveChunks(ctx, ch, cipher, store, header.Metadata, wantHash)
}

// SendItem runs the sender half of an item-wrapped transfer: the item
// header precedes the object header, and the sender waits for a
// Proceed/Cancel decision before streaming chunk data.
func SendItem(ctx context.Context, ch Channel, store *content.Store, item content.Item) error {
	nonce, err := cryptoutil.RandomNonce()
	if err != nil {
		return err
	}
	if err := sendBootstrapNonce(ctx, ch, item.ObjectHash, nonce); err != nil {
		return err
	}
	cipher, err := cryptoutil.NewTransferCipher(item.ObjectHash, nonce)
	if err != nil {
		return err
	}

	meta, err := store.Metadata(item.ObjectHash)
	if err != nil {
		return err
	}
	msg := ItemMessage{Item: item, ObjectHeader: ObjectMessage{Hash: item.ObjectHash, Metadata: meta}}
	if err := sendEncrypted(ctx, ch, cipher, msg.Marshal()); err != nil {
		return err
	}

	decisionBytes, err := recvEncrypted(ctx, ch, cipher)
	if err != nil {
		return err
	}
	decision, err := UnmarshalProceedMessage(decisionBytes)
	if err != nil {
		return err
	}
	if decision.Decision == Cancel {
		return nil
	}
	return sendChunks(ctx, ch, cipher, store, meta)
}

// ReceiveItem runs the receiver half of an item-wrapped transfer. If the
// object is already present locally, it replies Cancel and returns without
// reading chunk data.
func ReceiveItem(ctx context.Context, ch Channel, store *content.Store, wantHash hash.Hash, maxContentSize int64) (content.Item, error) {
	nonce, err := recvBootstrapNonce(ctx, ch, wantHash)
	if err != nil {
		return content.Item{}, err
	}
	cipher, err := cryptoutil.NewTransferCipher(wantHash, nonce)
	if err != nil {
		return content.Item{}, err
	}

	msgBytes, err := recvEncrypted(ctx, ch, cipher)
	if err != nil {
		return content.Item{}, err
	}
	msg, err := UnmarshalItemMessage(msgBytes)
	if err != nil {
		return content.Item{}, err
	}
	if msg.Item.ObjectHash != wantHash || !msg.Item.Valid() {
		return content.Item{}, ErrItemMismatch
	}

	if _, err := store.Metadata(wantHash); err == nil {
		if err := sendEncrypted(ctx, ch, cipher, ProceedMessage{Decision: Cancel}.Marshal()); err != nil {
			return content.Item{}, err
		}
		return msg.Item, nil
	}

	if err := sendEncrypted(ctx, ch, cipher, ProceedMessage{Decision: Proceed}.Marshal()); err != nil {
		return content.Item{}, err
	}
	if msg.ObjectHeader.Metadata.ContentSize > maxContentSize {
		return content.Item{}, ErrOversized
	}
	if hash.MerkleTree(msg.ObjectHeader.Metadata.ChunkHashes) != wantHash {
		return content.Item{}, ErrRootMismatch
	}
	if err := receiveChunks(ctx, ch, cipher, store, msg.ObjectHeader.Metadata, wantHash); err != nil {
		return content.Item{}, err
	}
	return msg.Item, nil
}

func sendBootstrapNonce(ctx context.Context, ch Channel, contentHash hash.Hash, nonceValue [hash.Size]byte) error {
	bootstrap, err := cryptoutil.BootstrapCipher(contentHash)
	if err != nil {
		return err
	}
	var nonceHash hash.Hash
	copy(nonceHash[:], nonceValue[:])
	msg := NonceMessage{Nonce: nonceHash}
	return sendEncrypted(ctx, ch, bootstrap, msg.Marshal())
}

func recvBootstrapNonce(ctx context.Context, ch Channel, contentHash hash.Hash) ([hash.Size]byte, error) {
	bootstrap, err := cryptoutil.BootstrapCipher(contentHash)
	if err != nil {
		return [hash.Size]byte{}, err
	}
	raw, err := recvEncrypted(ctx, ch, bootstrap)
	if err != nil {
		return [hash.Size]byte{}, err
	}
	msg, err := UnmarshalNonceMessage(raw)
	if err != nil {
		return [hash.Size]byte{}, err
	}
	var nonce [hash.Size]byte
	copy(nonce[:], msg.Nonce.Bytes())
	return nonce, nil
}

func sendEncrypted(ctx context.Context, ch Channel, cipher *cryptoutil.TransferCipher, plaintext []byte) error {
	return ch.Send(ctx, cipher.Seal(plaintext, nil))
}

func recvEncrypted(ctx context.Context, ch Channel, cipher *cryptoutil.TransferCipher) ([]byte, error) {
	raw, err := recvOrClosed(ctx, ch)
	if err != nil {
		return nil, err
	}
	return cipher.Open(raw, nil)
}

func sendChunks(ctx context.Context, ch Channel, cipher *cryptoutil.TransferCipher, store *content.Store, meta content.Metadata) error {
	for _, chunkHash := range meta.ChunkHashes {
		raw, err := store.Chunk(chunkHash)
		if err != nil {
			return err
		}
		compressed, err := brotliCompress(raw)
		if err != nil {
			return err
		}
		if err := sendEncrypted(ctx, ch, cipher, compressed); err != nil {
			return err
		}
	}
	return nil
}

func receiveChunks(ctx context.Context, ch Channel, cipher *cryptoutil.TransferCipher, store *content.Store, meta content.Metadata, wantHash hash.Hash) error {
	var assembled bytes.Buffer
	for range meta.ChunkHashes {
		compressed, err := recvEncrypted(ctx, ch, cipher)
		if err != nil {
			return err
		}
		raw, err := brotliDecompress(compressed)
		if err != nil {
			return err
		}
		assembled.Write(raw)
	}

	built, err := store.Build(meta.ContentType, meta.ContentSize, meta.Nonce, &assembled)
	if err != nil {
		return err
	}
	if built != wantHash {
		return ErrRootMismatch
	}
	return nil
}

func brotliCompress(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func brotliDecompress(b []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(b))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("filetransfer: brotli decompress: %w", err)
	}
	return out, nil
}
