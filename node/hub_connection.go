package node

import "context"

// Conn is the minimal RPC transport a node's hub connection manages — an
// opaque connection handle callers dial and later tear down.
type Conn any

// HubConnection maintains a node's direct (node->hub) and reverse
// (hub->node) RPC transports over a single endpoint, each independently
// reconnecting (spec §4.10).
type HubConnection struct {
	Direct  *Reconnect[Conn]
	Reverse *Reconnect[Conn]
}

// NewHubConnection starts both reconnect loops against the given dialers.
func NewHubConnection(ctx context.Context, dialDirect, dialReverse func(context.Context) (Conn, error)) *HubConnection {
	return &HubConnection{
		Direct:  NewReconnect(ctx, dialDirect),
		Reverse: NewReconnect(ctx, dialReverse),
	}
}

// Close tears down both transports.
func (h *HubConnection) Close() {
	h.Direct.Close()
	h.Reverse.Close()
}
