package transport

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"math/big"
	"net"
	"sync"
	"time"

	"github.com/quic-go/quic-go"
	"github.com/sirupsen/logrus"
)

// DropMode resolves which side of a simultaneous connect/accept race keeps
// its half of the race once both an outgoing and an incoming connection to
// the same peer succeed (spec §4.5).
type DropMode int

const (
	// KeepIncoming is used by the initiator of a hole-punch attempt: it
	// keeps the connection the peer dialed back to it.
	KeepIncoming DropMode = iota
	// KeepOutgoing is used by the responder: it keeps the connection it
	// dialed itself.
	KeepOutgoing
)

// sweepInterval is how often closed connections are evicted from the
// connection table (spec §4.5: "periodic sweep (10 s)").
const sweepInterval = 10 * time.Second

// handshakeTimeout bounds one hole-punch attempt.
const handshakeTimeout = 10 * time.Second

// Manager owns a single QUIC endpoint and keeps at most one live
// Connection per remote peer address.
type Manager struct {
	log *logrus.Logger

	transport *quic.Transport
	tlsConf   *tls.Config
	quicConf  *quic.Config

	mu    sync.RWMutex
	conns map[string]*quic.Conn

	matcher  *matcher
	incoming chan *quic.Conn

	stop chan struct{}
}

// incomingBacklog bounds the queue of connections accepted but not yet
// claimed by a Connect waiter or an Accept caller.
const incomingBacklog = 16

// NewManager binds a QUIC endpoint to an ephemeral UDP port and starts its
// accept loop and periodic connection sweep.
func NewManager(log *logrus.Logger) (*Manager, error) {
	return NewManagerOnPort(log, 0)
}

// NewManagerOnPort binds a QUIC endpoint to a specific UDP port (0 for an
// ephemeral one) and starts its accept loop and periodic connection sweep.
// A hub or node RPC server needs a stable, advertised port, unlike the
// content-transfer managers spec §4.5 hole-punches over.
func NewManagerOnPort(log *logrus.Logger, port int) (*Manager, error) {
	udpConn, err := net.ListenUDP("udp", &net.UDPAddr{Port: port})
	if err != nil {
		return nil, fmt.Errorf("transport: listen udp: %w", err)
	}
	tr := &quic.Transport{Conn: udpConn}
	tlsConf, err := selfSignedTLSConfig()
	if err != nil {
		return nil, err
	}
	quicConf := &quic.Config{}

	ln, err := tr.Listen(tlsConf, quicConf)
	if err != nil {
		return nil, fmt.Errorf("transport: listen: %w", err)
	}

	m := &Manager{
		log:       log,
		transport: tr,
		tlsConf:   tlsConf,
		quicConf:  quicConf,
		conns:     make(map[string]*quic.Conn),
		matcher:   newMatcher(nil),
		incoming:  make(chan *quic.Conn, incomingBacklog),
		stop:      make(chan struct{}),
	}
	go m.acceptLoop(ln)
	go m.sweepLoop()
	return m, nil
}

// LocalAddr returns the endpoint's bound UDP address.
func (m *Manager) LocalAddr() net.Addr {
	return m.transport.Conn.LocalAddr()
}

func (m *Manager) acceptLoop(ln *quic.Listener) {
	for {
		conn, err := ln.Accept(context.Background())
		if err != nil {
			select {
			case <-m.stop:
				return
			default:
				m.log.WithError(err).Warn("transport: accept failed")
				continue
			}
		}
		remote := conn.RemoteAddr()
		if m.matcher.deliver(remote, conn) {
			continue
		}
		// An incoming connection with no matching outstanding Connect
		// call is unsolicited under the hole-punch model: it is either
		// a fresh RPC client dialing in (queued for Accept) or, if
		// nobody is calling Accept on this Manager, backlog overflow
		// that gets dropped rather than adopted blind.
		select {
		case m.incoming <- conn:
		default:
			go conn.CloseWithError(0, "unsolicited")
		}
	}
}

// Accept returns the next incoming connection that did not match an
// outstanding Connect call — the accept path for a hub or node RPC server,
// as opposed to Connect's hole-punched peer-to-peer transport.
func (m *Manager) Accept(ctx context.Context) (*quic.Conn, error) {
	select {
	case conn := <-m.incoming:
		return conn, nil
	case <-m.stop:
		return nil, fmt.Errorf("transport: manager closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Manager) sweepLoop() {
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			m.matcher.sweep()
			m.sweepClosedConnections()
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) sweepClosedConnections() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for addr, conn := range m.conns {
		select {
		case <-conn.Context().Done():
			delete(m.conns, addr)
		default:
		}
	}
}

// Connect returns the live connection to peer, establishing one via
// simultaneous hole punching if none exists. mode decides which half of a
// simultaneous connect/accept race is kept.
func (m *Manager) Connect(ctx context.Context, peer *net.UDPAddr, mode DropMode) (*quic.Conn, error) {
	key := peer.String()

	m.mu.RLock()
	if c, ok := m.conns[key]; ok {
		m.mu.RUnlock()
		return c, nil
	}
	m.mu.RUnlock()

	hctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	waitCh := m.matcher.register(peer)

	type outgoingResult struct {
		conn *quic.Conn
		err  error
	}
	outCh := make(chan outgoingResult, 1)
	go func() {
		c, err := m.transport.Dial(hctx, peer, m.tlsConf, m.quicConf)
		outCh <- outgoingResult{conn: c, err: err}
	}()

	var outgoing *quic.Conn
	var incoming *quic.Conn

	select {
	case res := <-outCh:
		if res.err == nil {
			outgoing = res.conn
		}
	case v := <-waitCh:
		incoming, _ = v.(*quic.Conn)
	case <-hctx.Done():
		m.matcher.unregister(peer)
		return nil, fmt.Errorf("transport: hole punch to %s timed out", key)
	}

	// Give the other half a short remaining window to also arrive.
	remaining := handshakeTimeout
	if deadline, ok := hctx.Deadline(); ok {
		remaining = time.Until(deadline)
	}
	if outgoing == nil {
		select {
		case res := <-outCh:
			if res.err == nil {
				outgoing = res.conn
			}
		case <-time.After(remaining):
		}
	}
	if incoming == nil {
		select {
		case v := <-waitCh:
			incoming, _ = v.(*quic.Conn)
		case <-time.After(0):
		}
	}
	m.matcher.unregister(peer)

	chosen, err := resolveConnection(outgoing, incoming, mode)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.conns[key] = chosen
	m.mu.Unlock()
	return chosen, nil
}

// resolveConnection applies DropMode to a race where either, both, or
// neither half of a hole-punch attempt succeeded.
func resolveConnection(outgoing, incoming *quic.Conn, mode DropMode) (*quic.Conn, error) {
	switch {
	case outgoing != nil && incoming != nil:
		if mode == KeepIncoming {
			go outgoing.CloseWithError(0, "hole-punch: keeping incoming half")
			return incoming, nil
		}
		go incoming.CloseWithError(0, "hole-punch: keeping outgoing half")
		return outgoing, nil
	case outgoing != nil:
		return outgoing, nil
	case incoming != nil:
		return incoming, nil
	default:
		return nil, fmt.Errorf("transport: hole punch failed on both halves")
	}
}

// Close shuts down the endpoint.
func (m *Manager) Close() error {
	close(m.stop)
	return m.transport.Close()
}

// selfSignedTLSConfig builds a throwaway self-signed certificate: spec §6
// requires no ALPN and skips peer-cert verification, since authentication
// happens end to end via content hashes and signatures, not transport
// identity.
func selfSignedTLSConfig() (*tls.Config, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber: serial,
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(10 * 365 * 24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	if err != nil {
		return nil, err
	}
	cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: priv}
	return &tls.Config{
		Certificates:       []tls.Certificate{cert},
		InsecureSkipVerify: true,
		NextProtos:         []string{"samizdat"},
	}, nil
}
