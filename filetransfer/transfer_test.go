package filetransfer

import (
	"bytes"
	"context"
	"testing"
	"time"

	"samizdat/content"
	"samizdat/hash"
	"samizdat/kv"
)

// newPipePair returns two in-memory Channel ends backed by buffered Go
// channels, used to exercise the transfer state machine without a real
// transport.
func newPipePair() (Channel, Channel) {
	ab := make(chan []byte, 16)
	ba := make(chan []byte, 16)
	return pipeEnd{send: ab, recv: ba}, pipeEnd{send: ba, recv: ab}
}

type pipeEnd struct {
	send chan []byte
	recv chan []byte
}

func (p pipeEnd) Send(ctx context.Context, payload []byte) error {
	cp := append([]byte(nil), payload...)
	select {
	case p.send <- cp:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p pipeEnd) Recv(ctx context.Context) ([]byte, bool) {
	select {
	case v, ok := <-p.recv:
		return v, ok
	case <-ctx.Done():
		return nil, false
	}
}

func newObjectStore(t *testing.T) *content.Store {
	t.Helper()
	db, err := kv.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return content.NewStore(db)
}

func TestObjectTransferRoundTrip(t *testing.T) {
	senderStore := newObjectStore(t)
	receiverStore := newObjectStore(t)

	data := bytes.Repeat([]byte("payload"), 50000)
	objHash, err := senderStore.Build("application/octet-stream", int64(len(data)), hash.Hash{}, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	senderCh, receiverCh := newPipePair()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- SendObject(ctx, senderCh, senderStore, objHash) }()

	if err := ReceiveObject(ctx, receiverCh, receiverStore, objHash, int64(len(data)+1)); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("send: %v", err)
	}

	chunks, err := receiverStore.Iter(objHash)
	if err != nil {
		t.Fatalf("iter: %v", err)
	}
	var rebuilt []byte
	for _, c := range chunks {
		rebuilt = append(rebuilt, c...)
	}
	if !bytes.Equal(rebuilt, data) {
		t.Fatalf("rebuilt content mismatch")
	}
}

func TestObjectTransferRejectsOversized(t *testing.T) {
	senderStore := newObjectStore(t)
	receiverStore := newObjectStore(t)

	data := bytes.Repeat([]byte("a"), 1000)
	objHash, err := senderStore.Build("text/plain", int64(len(data)), hash.Hash{}, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	senderCh, receiverCh := newPipePair()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go SendObject(ctx, senderCh, senderStore, objHash)

	if err := ReceiveObject(ctx, receiverCh, receiverStore, objHash, 10); err != ErrOversized {
		t.Fatalf("got %v want ErrOversized", err)
	}
}

func TestItemTransferCancelWhenAlreadyPresent(t *testing.T) {
	senderStore := newObjectStore(t)
	receiverStore := newObjectStore(t)

	data := []byte("hello world")
	objHash, err := senderStore.Build("text/plain", int64(len(data)), hash.Hash{}, bytes.NewReader(data))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := receiverStore.Build("text/plain", int64(len(data)), hash.Hash{}, bytes.NewReader(data)); err != nil {
		t.Fatalf("pre-seed receiver: %v", err)
	}

	coll := content.BuildCollection(map[string]hash.Hash{"file.txt": objHash})
	item, ok := coll.Locate("file.txt")
	if !ok {
		t.Fatalf("expected to locate item")
	}

	senderCh, receiverCh := newPipePair()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- SendItem(ctx, senderCh, senderStore, item) }()

	got, err := ReceiveItem(ctx, receiverCh, receiverStore, objHash, 1<<20)
	if err != nil {
		t.Fatalf("receive item: %v", err)
	}
	if got.Name != "file.txt" {
		t.Fatalf("got item %+v", got)
	}
	if err := <-errCh; err != nil {
		t.Fatalf("send item: %v", err)
	}
}
