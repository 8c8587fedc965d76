package transport

import "context"

// MultiplexerChannel adapts one Multiplexer channel id to the duplex
// Send/Recv primitive filetransfer.Channel expects, without this package
// importing filetransfer.
type MultiplexerChannel struct {
	Mux *Multiplexer
	ID  uint32
}

func (c MultiplexerChannel) Send(ctx context.Context, payload []byte) error {
	return c.Mux.Send(ctx, c.ID, payload)
}

func (c MultiplexerChannel) Recv(ctx context.Context) ([]byte, bool) {
	return c.Mux.Recv(ctx, c.ID)
}
