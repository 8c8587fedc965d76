package node

import (
	"context"
	"crypto/ed25519"

	"github.com/quic-go/quic-go"
	"github.com/sirupsen/logrus"

	"samizdat/metrics"
	"samizdat/rpc"
)

// SeriesKeys is the subset of content.Series a Server needs to answer
// resolve_latest: the set of locally known series public keys.
type SeriesKeys interface {
	PublicKeys() ([]ed25519.PublicKey, error)
}

// SubscriptionLister is the subset of SubscriptionManager a Server needs to
// answer announce_edition.
type SubscriptionLister interface {
	List() ([]Subscription, error)
}

// Server is a node's reverse RPC surface (spec §4.9): once a node has
// reconnected to a hub, the hub dials back over that same connection and
// drives resolve/resolve_latest/announce_edition as an RPC client, exactly
// mirroring how the hub's own direct listener is served.
type Server struct {
	log        *logrus.Logger
	handlers   *Handlers
	finder     ObjectFinder
	seriesKeys SeriesKeys
	subs       SubscriptionLister
	metrics    *metrics.Node
}

func NewServer(log *logrus.Logger, handlers *Handlers, finder ObjectFinder, series SeriesKeys, subs SubscriptionLister, m *metrics.Node) *Server {
	return &Server{log: log, handlers: handlers, finder: finder, seriesKeys: series, subs: subs, metrics: m}
}

// ServeConn runs the accept loop for one hub connection until it closes or
// ctx is done.
func (s *Server) ServeConn(ctx context.Context, conn *quic.Conn) {
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			return
		}
		go s.handleStream(ctx, stream)
	}
}

func (s *Server) handleStream(ctx context.Context, stream *quic.Stream) {
	defer stream.Close()

	method, payload, err := rpc.ReadEnvelope(stream)
	if err != nil {
		return
	}
	switch method {
	case rpc.MethodResolve:
		res, err := rpc.UnmarshalResolution(payload)
		if err != nil {
			return
		}
		status := s.handlers.Resolve(ctx, res, s.finder)
		if s.metrics != nil {
			s.metrics.ObserveResolve(status == rpc.Found)
		}
		rpc.WriteEnvelope(stream, rpc.MethodResolve, status.Marshal())
	case rpc.MethodResolveLatest:
		req, err := rpc.UnmarshalLatestRequest(payload)
		if err != nil {
			return
		}
		keys, err := s.seriesKeys.PublicKeys()
		if err != nil {
			s.log.WithError(err).Warn("node: resolve_latest: list series keys")
			rpc.WriteEnvelope(stream, rpc.MethodResolveLatest, rpc.OptionalEditionResponse{}.Marshal())
			return
		}
		resp, ok := s.handlers.ResolveLatest(ctx, req, keys)
		rpc.WriteEnvelope(stream, rpc.MethodResolveLatest, rpc.OptionalEditionResponse{Response: resp, Present: ok}.Marshal())
	case rpc.MethodAnnounceEdition:
		ann, err := rpc.UnmarshalEditionAnnouncement(payload)
		if err != nil {
			return
		}
		subs, err := s.subs.List()
		if err != nil {
			s.log.WithError(err).Warn("node: announce_edition: list subscriptions")
			return
		}
		s.handlers.AnnounceEdition(ctx, ann, subs)
	default:
		s.log.WithField("method", method).Warn("node: reverse rpc: unknown method")
	}
}
