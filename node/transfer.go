package node

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"samizdat/content"
	"samizdat/filetransfer"
	"samizdat/hash"
	"samizdat/metrics"
	"samizdat/riddle"
	"samizdat/transport"
)

// MultiplexedTransferStarter implements TransferStarter by resolving the
// message riddle a resolve call carried back to the client's ChannelAddr,
// hole-punching to it, and streaming the object or item over a fresh
// multiplexer channel (spec §4.6, §4.9: "spawn a task that opens the
// channel and streams the content").
type MultiplexedTransferStarter struct {
	log         *logrus.Logger
	manager     *transport.Manager
	store       *content.Store
	metrics     *metrics.Node
	pushTimeout time.Duration
}

func NewMultiplexedTransferStarter(log *logrus.Logger, manager *transport.Manager, store *content.Store, m *metrics.Node, pushTimeout time.Duration) *MultiplexedTransferStarter {
	return &MultiplexedTransferStarter{log: log, manager: manager, store: store, metrics: m, pushTimeout: pushTimeout}
}

func (t *MultiplexedTransferStarter) StartObjectPush(objHash hash.Hash, addrMaskedRiddle any) {
	mr, ok := addrMaskedRiddle.(riddle.MessageRiddle)
	if !ok {
		t.log.Warn("transfer: resolve call did not carry a message riddle")
		return
	}
	go t.push(objHash, mr, func(ctx context.Context, ch filetransfer.Channel) error {
		return filetransfer.SendObject(ctx, ch, t.store, objHash)
	})
}

func (t *MultiplexedTransferStarter) StartItemPush(item content.Item, addrMaskedRiddle any) {
	mr, ok := addrMaskedRiddle.(riddle.MessageRiddle)
	if !ok {
		t.log.Warn("transfer: resolve call did not carry a message riddle")
		return
	}
	go t.push(item.ObjectHash, mr, func(ctx context.Context, ch filetransfer.Channel) error {
		return filetransfer.SendItem(ctx, ch, t.store, item)
	})
}

func (t *MultiplexedTransferStarter) push(objHash hash.Hash, mr riddle.MessageRiddle, send func(context.Context, filetransfer.Channel) error) {
	if t.metrics != nil {
		t.metrics.ObservePush()
	}
	addr, ok := mr.Resolve(objHash)
	if !ok {
		t.log.Warn("transfer: message riddle did not resolve against its own content hash")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.pushTimeout)
	defer cancel()

	conn, err := t.manager.Connect(ctx, addr.UDPAddr(), transport.KeepOutgoing)
	if err != nil {
		t.log.WithError(err).Warn("transfer: failed to reach requesting peer")
		return
	}
	ch := transport.MultiplexerChannel{Mux: transport.NewMultiplexer(conn), ID: addr.ChannelID}
	if err := send(ctx, ch); err != nil {
		t.log.WithError(err).Warn("transfer: push failed")
	}
}
