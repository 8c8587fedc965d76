// Package chanaddr defines the channel address: the (peer socket address,
// channel id) pair that identifies one logical stream group inside a
// multiplexed QUIC connection (spec §3, "Channel address").
package chanaddr

import (
	"fmt"
	"net"

	"samizdat/wire"
)

// Addr identifies a channel: a peer's UDP socket address plus a 32-bit
// channel id scoped to the connection to that peer.
type Addr struct {
	IP        net.IP
	Port      int
	ChannelID uint32
}

// New builds an Addr from a UDP address and channel id.
func New(udp *net.UDPAddr, channelID uint32) Addr {
	return Addr{IP: udp.IP, Port: udp.Port, ChannelID: channelID}
}

// UDPAddr returns the peer socket address as a *net.UDPAddr.
func (a Addr) UDPAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: a.IP, Port: a.Port}
}

// String renders the address as "ip:port#channel".
func (a Addr) String() string {
	return fmt.Sprintf("%s#%d", a.UDPAddr().String(), a.ChannelID)
}

// Marshal serializes the address: the IP as a length-prefixed byte string
// (4 or 16 bytes), then the port, then the channel id.
func (a Addr) Marshal() []byte {
	e := wire.NewEncoder()
	e.WriteBytes(a.IP)
	e.WriteUint32(uint32(a.Port))
	e.WriteUint32(a.ChannelID)
	return e.Bytes()
}

// Unmarshal parses an address previously produced by Marshal. It returns an
// error on any malformed or truncated input; callers in the riddle package
// use this as the validation step for a resolved MessageRiddle.
func Unmarshal(b []byte) (Addr, error) {
	d := wire.NewDecoder(b)
	ip, err := d.ReadBytes()
	if err != nil {
		return Addr{}, err
	}
	port, err := d.ReadUint32()
	if err != nil {
		return Addr{}, err
	}
	channelID, err := d.ReadUint32()
	if err != nil {
		return Addr{}, err
	}
	if d.Remaining() != 0 {
		return Addr{}, fmt.Errorf("chanaddr: %d trailing bytes", d.Remaining())
	}
	return Addr{IP: net.IP(ip), Port: int(port), ChannelID: channelID}, nil
}
