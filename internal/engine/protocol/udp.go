package protocol

import (
	"fmt"
	"math/rand/v2"
	"time"

	"Go2NetSynth/internal/engine/automaton"
	"Go2NetSynth/internal/model"

	"github.com/google/gopacket/layers"
)

const udpHeaderLen = 8

// MaxUDPPayload is the largest payload the 16-bit UDP length field can describe.
const MaxUDPPayload = 0xffff - udpHeaderLen

// UDPSymbol is the label of a UDP automaton edge.
type UDPSymbol struct {
	Dir     model.PacketDirection
	Payload model.PayloadType
}

func (s UDPSymbol) PayloadType() model.PayloadType { return s.Payload }
func (s UDPSymbol) Direction() model.PacketDirection { return s.Dir }

// ParseUDPSymbol parses symbols of the form DIR_PAYLOAD, e.g. ">_Random".
func ParseUDPSymbol(edge automaton.JSONEdge) (UDPSymbol, error) {
	parts, err := splitSymbol(edge.Symbol, 2)
	if err != nil {
		return UDPSymbol{}, err
	}
	dir, err := model.ParseDirection(parts[0])
	if err != nil {
		return UDPSymbol{}, err
	}
	pt, err := parsePayloadType(parts[1], edge.Payloads)
	if err != nil {
		return UDPSymbol{}, err
	}
	if n := pt.MaxSize(); n > MaxUDPPayload {
		return UDPSymbol{}, fmt.Errorf("%w: %d byte payload does not fit a datagram", errPayload, n)
	}
	return UDPSymbol{Dir: dir, Payload: pt}, nil
}

// UDPPacketInfo describes one synthesized datagram. Index counts datagrams
// sent in the same direction within the flow, starting at 0.
type UDPPacketInfo struct {
	Header
	Index uint32
}

// Clone returns an independent copy of the record.
func (p *UDPPacketInfo) Clone() *UDPPacketInfo {
	c := *p
	return &c
}

// ApplyTo copies ports and length onto a gopacket UDP layer.
func (p *UDPPacketInfo) ApplyTo(l *layers.UDP, flow model.FlowData) {
	src, dst := endpoints(p.Dir, flow)
	l.SrcPort = layers.UDPPort(src)
	l.DstPort = layers.UDPPort(dst)
	l.Length = uint16(udpHeaderLen + p.PayloadSize())
}

// NewUDPHeaderBuilder returns a builder holding the per-direction counters of one run.
func NewUDPHeaderBuilder(rng *rand.Rand) automaton.HeaderBuilder[UDPSymbol, *UDPPacketInfo] {
	var count [2]uint32
	return func(sym UDPSymbol, ts time.Time) *UDPPacketInfo {
		info := &UDPPacketInfo{
			Header: Header{Dir: sym.Dir, TS: ts, Payload: realize(rng, sym.Payload)},
			Index:  count[sym.Dir],
		}
		count[sym.Dir]++
		return info
	}
}
