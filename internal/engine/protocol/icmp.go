package protocol

import (
	"fmt"
	"math/rand/v2"
	"time"

	"Go2NetSynth/internal/engine/automaton"
	"Go2NetSynth/internal/model"

	"github.com/google/gopacket/layers"
)

var (
	echoRequest = layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)
	echoReply   = layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoReply, 0)
)

// ICMPSymbol is the label of an ICMP automaton edge. ICMP models carry no payload.
type ICMPSymbol struct {
	Dir model.PacketDirection
}

func (s ICMPSymbol) PayloadType() model.PayloadType {
	return model.PayloadType{Kind: model.PayloadEmpty}
}
func (s ICMPSymbol) Direction() model.PacketDirection { return s.Dir }

// ParseICMPSymbol parses symbols made of a single direction, ">" or "<".
func ParseICMPSymbol(edge automaton.JSONEdge) (ICMPSymbol, error) {
	dir, err := model.ParseDirection(edge.Symbol)
	if err != nil {
		return ICMPSymbol{}, err
	}
	if edge.Payloads.Type != automaton.PayloadsNone {
		return ICMPSymbol{}, fmt.Errorf("%w: ICMP edge with %q payloads", errPayload, edge.Payloads.Type)
	}
	return ICMPSymbol{Dir: dir}, nil
}

// ICMPPacketInfo describes one echo request (forward) or echo reply (backward).
type ICMPPacketInfo struct {
	Header
	TypeCode layers.ICMPv4TypeCode
	Id       uint16
	Seq      uint16
}

// Clone returns an independent copy of the record.
func (p *ICMPPacketInfo) Clone() *ICMPPacketInfo {
	c := *p
	return &c
}

// ApplyTo copies the type, identifier and sequence number onto a gopacket ICMPv4 layer.
func (p *ICMPPacketInfo) ApplyTo(l *layers.ICMPv4) {
	l.TypeCode = p.TypeCode
	l.Id = p.Id
	l.Seq = p.Seq
}

// NewICMPHeaderBuilder returns a builder for one echo session. The
// identifier is drawn from rng; requests increment the sequence number and
// replies echo the latest request.
func NewICMPHeaderBuilder(rng *rand.Rand) automaton.HeaderBuilder[ICMPSymbol, *ICMPPacketInfo] {
	id := uint16(rng.Uint32())
	var seq uint16
	return func(sym ICMPSymbol, ts time.Time) *ICMPPacketInfo {
		info := &ICMPPacketInfo{
			Header: Header{Dir: sym.Dir, TS: ts, Payload: model.Payload{Kind: model.PayloadEmpty}},
			Id:     id,
		}
		if sym.Dir == model.Forward {
			seq++
			info.TypeCode = echoRequest
		} else {
			info.TypeCode = echoReply
		}
		info.Seq = seq
		return info
	}
}
