package transport

import (
	"fmt"
	"net"
	"time"

	"github.com/huin/goupnp/dcps/internetgateway1"
	natpmp "github.com/jackpal/go-nat-pmp"
)

// portMappingTTL is the lease length requested for a NAT-PMP/UPnP mapping;
// Refresh should be called well within it.
const portMappingTTL = 3600

// NATManager maps the endpoint's local UDP port through a NAT gateway via
// NAT-PMP, falling back to UPnP IGDv1, so peers behind symmetric or
// restricted-cone NATs remain reachable at a stable external port.
type NATManager struct {
	pmp        *natpmp.Client
	upnp       *internetgateway1.WANIPConnection1
	externalIP net.IP
	mappedPort int
}

// NewNATManager probes for a NAT-PMP responder at gatewayIP, falling back
// to any UPnP IGDv1 WANIPConnection service discovered on the LAN.
//
// Unlike the reference NAT helper this is adapted from, gateway discovery
// is not automatic: no gateway-discovery library is wired into go.mod, so
// callers supply gatewayIP (typically read from the host's default route).
func NewNATManager(gatewayIP net.IP) (*NATManager, error) {
	m := &NATManager{}

	if gatewayIP != nil {
		client := natpmp.NewClient(gatewayIP)
		if res, err := client.GetExternalAddress(); err == nil {
			m.pmp = client
			m.externalIP = net.IPv4(
				res.ExternalIPAddress[0], res.ExternalIPAddress[1],
				res.ExternalIPAddress[2], res.ExternalIPAddress[3],
			)
		}
	}

	if m.externalIP == nil {
		if clients, _, err := internetgateway1.NewWANIPConnection1Clients(); err == nil && len(clients) > 0 {
			m.upnp = clients[0]
			if ipStr, err := m.upnp.GetExternalIPAddress(); err == nil {
				m.externalIP = net.ParseIP(ipStr)
			}
		}
	}

	if m.externalIP == nil {
		return nil, fmt.Errorf("transport: no NAT-PMP or UPnP gateway found")
	}
	return m, nil
}

// ExternalIP returns the gateway's reported public address.
func (m *NATManager) ExternalIP() net.IP { return m.externalIP }

// Map requests a UDP port mapping for the node's QUIC endpoint.
func (m *NATManager) Map(udpPort int) error {
	if m.pmp != nil {
		if _, err := m.pmp.AddPortMapping("udp", udpPort, udpPort, portMappingTTL); err == nil {
			m.mappedPort = udpPort
			return nil
		}
	}
	if m.upnp != nil {
		if err := m.upnp.AddPortMapping("", uint16(udpPort), "UDP", uint16(udpPort), m.externalIP.String(), true, "samizdat", portMappingTTL); err == nil {
			m.mappedPort = udpPort
			return nil
		}
	}
	return fmt.Errorf("transport: NAT port mapping failed")
}

// Refresh re-requests the current mapping before its lease expires. Callers
// should invoke this roughly every portMappingTTL/2.
func (m *NATManager) Refresh() error {
	if m.mappedPort == 0 {
		return nil
	}
	return m.Map(m.mappedPort)
}

// Unmap removes the previously requested mapping.
func (m *NATManager) Unmap() error {
	if m.mappedPort == 0 {
		return nil
	}
	if m.pmp != nil {
		if _, err := m.pmp.AddPortMapping("udp", m.mappedPort, m.mappedPort, 0); err != nil {
			return err
		}
		m.mappedPort = 0
		return nil
	}
	if m.upnp != nil {
		if err := m.upnp.DeletePortMapping("", uint16(m.mappedPort), "UDP"); err != nil {
			return err
		}
		m.mappedPort = 0
	}
	return nil
}

// RefreshInterval is how often a held mapping's lease should be renewed.
func RefreshInterval() time.Duration { return portMappingTTL / 2 * time.Second }
