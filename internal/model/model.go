package model

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/gopacket/layers"
)

// ProtocolKind identifies which protocol model produced or consumes a flow.
type ProtocolKind uint8

const (
	TCP ProtocolKind = iota
	UDP
	ICMP
)

// String returns the tag used for the protocol in model files.
func (k ProtocolKind) String() string {
	switch k {
	case TCP:
		return "TCP"
	case UDP:
		return "UDP"
	case ICMP:
		return "ICMP"
	default:
		return fmt.Sprintf("ProtocolKind(%d)", uint8(k))
	}
}

// IPProtocol returns the IP protocol number carried in the IPv4 header.
func (k ProtocolKind) IPProtocol() layers.IPProtocol {
	switch k {
	case TCP:
		return layers.IPProtocolTCP
	case UDP:
		return layers.IPProtocolUDP
	case ICMP:
		return layers.IPProtocolICMPv4
	default:
		return layers.IPProtocolIPv4
	}
}

// ParseProtocolKind parses a protocol tag ("TCP", "udp", ...).
func ParseProtocolKind(s string) (ProtocolKind, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TCP":
		return TCP, nil
	case "UDP":
		return UDP, nil
	case "ICMP":
		return ICMP, nil
	default:
		return 0, fmt.Errorf("unknown protocol %q", s)
	}
}

// AllProtocols lists every supported protocol kind.
var AllProtocols = []ProtocolKind{TCP, UDP, ICMP}

// FlowData describes one bidirectional flow. It is read-only once built.
type FlowData struct {
	SrcIP                 net.IP
	DstIP                 net.IP
	SrcPort               uint16
	DstPort               uint16
	RecordedTTLClient     uint8
	RecordedTTLServer     uint8
	InitialTTLClient      uint8
	InitialTTLServer      uint8
	FwdPacketsCount       uint32
	BwdPacketsCount       uint32
	FwdTotalPayloadLength uint32
	BwdTotalPayloadLength uint32
	Timestamp             time.Time
	TotalDuration         time.Duration
}

// Flow pairs a FlowData with the protocol model it belongs to.
type Flow struct {
	Protocol ProtocolKind
	Data     FlowData
}

// Key renders the flow endpoints, e.g. "192.168.1.8:34200->192.168.1.14:8080/TCP".
func (f Flow) Key() string {
	return fmt.Sprintf("%s:%d->%s:%d/%s", f.Data.SrcIP, f.Data.SrcPort, f.Data.DstIP, f.Data.DstPort, f.Protocol)
}
