package hub

import (
	"context"
	"fmt"

	"github.com/quic-go/quic-go"

	"samizdat/rpc"
)

// RPCResolver implements Resolver by calling back into a node over the
// reverse RPC connection it dialed in on (spec §4.7/§4.9): the hub opens a
// fresh bidirectional stream per call and frames it with the same
// Method-tagged envelope the direct RPC surface uses.
type RPCResolver struct {
	room *Room
}

func NewRPCResolver(room *Room) *RPCResolver {
	return &RPCResolver{room: room}
}

func (r *RPCResolver) call(ctx context.Context, peerID string, method rpc.Method, payload []byte) ([]byte, error) {
	conn, ok := r.room.Reverse(peerID).(*quic.Conn)
	if !ok || conn == nil {
		return nil, fmt.Errorf("hub: no reverse connection for peer %s", peerID)
	}
	stream, err := conn.OpenStreamSync(ctx)
	if err != nil {
		return nil, fmt.Errorf("hub: open reverse stream to %s: %w", peerID, err)
	}
	defer stream.Close()

	if err := rpc.WriteEnvelope(stream, method, payload); err != nil {
		return nil, err
	}
	_, respPayload, err := rpc.ReadEnvelope(stream)
	if err != nil {
		return nil, err
	}
	return respPayload, nil
}

func (r *RPCResolver) Resolve(ctx context.Context, peerID string, res rpc.Resolution) (rpc.ResolutionStatus, error) {
	payload, err := r.call(ctx, peerID, rpc.MethodResolve, res.Marshal())
	if err != nil {
		return rpc.NotFound, err
	}
	return rpc.UnmarshalResolutionStatus(payload)
}

func (r *RPCResolver) ResolveLatest(ctx context.Context, peerID string, req rpc.LatestRequest) (rpc.OptionalEditionResponse, error) {
	payload, err := r.call(ctx, peerID, rpc.MethodResolveLatest, req.Marshal())
	if err != nil {
		return rpc.OptionalEditionResponse{}, err
	}
	return rpc.UnmarshalOptionalEditionResponse(payload)
}

func (r *RPCResolver) AnnounceEdition(ctx context.Context, peerID string, ann rpc.EditionAnnouncement) error {
	_, err := r.call(ctx, peerID, rpc.MethodAnnounceEdition, ann.Marshal())
	return err
}
