package hub

import (
	"context"
	"net"

	"github.com/quic-go/quic-go"
	"github.com/sirupsen/logrus"

	"samizdat/metrics"
	"samizdat/rpc"
)

// Server is the hub's inbound RPC surface (spec §4.7, §4.9): a direct
// listener serving query/get_edition/announce_edition to any dialing node,
// and a reverse listener that accepts node-initiated connections the hub
// then drives as an RPC client against, via RPCResolver — the
// direct_port/reverse_port split of the original hub main loop.
type Server struct {
	log        *logrus.Logger
	dispatcher *Dispatcher
	registry   *Registry
	room       *Room
	blacklist  *Blacklist
	metrics    *metrics.Hub

	maxQueriesPerNode   int64
	maxQueryRatePerNode float64
}

// Listener is the subset of transport.Manager a Server accepts connections
// from; narrowed to ease testing without a live QUIC endpoint.
type Listener interface {
	Accept(ctx context.Context) (*quic.Conn, error)
}

func NewServer(log *logrus.Logger, dispatcher *Dispatcher, registry *Registry, room *Room, blacklist *Blacklist, m *metrics.Hub, maxQueriesPerNode int64, maxQueryRatePerNode float64) *Server {
	return &Server{
		log:                 log,
		dispatcher:          dispatcher,
		registry:            registry,
		room:                room,
		blacklist:           blacklist,
		metrics:             m,
		maxQueriesPerNode:   maxQueriesPerNode,
		maxQueryRatePerNode: maxQueryRatePerNode,
	}
}

// Serve runs both accept loops until ctx is done or either fails.
func (s *Server) Serve(ctx context.Context, direct, reverse Listener) error {
	errCh := make(chan error, 2)
	go func() { errCh <- s.serveDirect(ctx, direct) }()
	go func() { errCh <- s.serveReverse(ctx, reverse) }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) serveDirect(ctx context.Context, direct Listener) error {
	for {
		conn, err := direct.Accept(ctx)
		if err != nil {
			return err
		}
		addr, ok := conn.RemoteAddr().(*net.UDPAddr)
		if !ok {
			go conn.CloseWithError(0, "unsupported remote address")
			continue
		}
		if s.blacklist.Blocked(addr.IP) {
			go conn.CloseWithError(0, "blacklisted")
			continue
		}
		nodeID := addr.String()
		s.room.SetDirect(nodeID, addr, conn)
		go s.serveDirectConn(ctx, conn, addr)
	}
}

func (s *Server) serveDirectConn(ctx context.Context, conn *quic.Conn, addr *net.UDPAddr) {
	admission := NewAdmission(s.maxQueriesPerNode, s.maxQueryRatePerNode)
	for {
		stream, err := conn.AcceptStream(ctx)
		if err != nil {
			return
		}
		go s.handleDirectStream(ctx, stream, admission, addr)
	}
}

func (s *Server) handleDirectStream(ctx context.Context, stream *quic.Stream, admission *Admission, addr *net.UDPAddr) {
	defer stream.Close()

	release, err := admission.Acquire(ctx)
	if err != nil {
		return
	}
	defer release()

	method, payload, err := rpc.ReadEnvelope(stream)
	if err != nil {
		return
	}
	switch method {
	case rpc.MethodQuery:
		q, err := rpc.UnmarshalQuery(payload)
		if err != nil {
			return
		}
		resp := s.dispatcher.Dispatch(ctx, q, addr)
		if s.metrics != nil {
			s.metrics.ObserveQuery(len(resp.Candidates) > 0)
		}
		rpc.WriteEnvelope(stream, rpc.MethodQuery, resp.Marshal())
	case rpc.MethodGetEdition:
		req, err := rpc.UnmarshalEditionRequest(payload)
		if err != nil {
			return
		}
		resp := s.dispatcher.DispatchEdition(ctx, req)
		rpc.WriteEnvelope(stream, rpc.MethodGetEdition, resp.Marshal())
	case rpc.MethodAnnounceEdition:
		ann, err := rpc.UnmarshalEditionAnnouncement(payload)
		if err != nil {
			return
		}
		s.dispatcher.Broadcast(ctx, ann)
	default:
		s.log.WithField("method", method).Warn("hub: direct rpc: unknown method")
	}
}

func (s *Server) serveReverse(ctx context.Context, reverse Listener) error {
	for {
		conn, err := reverse.Accept(ctx)
		if err != nil {
			return err
		}
		addr, ok := conn.RemoteAddr().(*net.UDPAddr)
		if !ok {
			go conn.CloseWithError(0, "unsupported remote address")
			continue
		}
		if s.blacklist.Blocked(addr.IP) {
			go conn.CloseWithError(0, "blacklisted")
			continue
		}
		nodeID := addr.String()
		s.room.SetReverse(nodeID, conn)
		s.registry.Ensure(nodeID)
		if s.metrics != nil {
			s.metrics.SetPeers(s.registry.Len())
		}
		s.log.WithField("node", nodeID).Info("hub: node reverse connection established")
		go func() {
			<-conn.Context().Done()
			s.room.Drop(nodeID)
			s.registry.Remove(nodeID)
			if s.metrics != nil {
				s.metrics.SetPeers(s.registry.Len())
			}
		}()
	}
}
