package protocol

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"Go2NetSynth/internal/engine/automaton"
	"Go2NetSynth/internal/model"

	"github.com/google/gopacket/layers"
)

// TCPFlags mirrors the flag bits of a layers.TCP header.
type TCPFlags struct {
	FIN, SYN, RST, PSH, ACK, URG, ECE, CWR, NS bool
}

// ParseTCPFlags parses the learner's flag notation, e.g. "S", "SA", "PA", "FA".
func ParseTCPFlags(s string) (TCPFlags, error) {
	var f TCPFlags
	if s == "" {
		return f, fmt.Errorf("empty TCP flag set")
	}
	seen := make(map[rune]bool, len(s))
	for _, c := range s {
		if seen[c] {
			return f, fmt.Errorf("repeated TCP flag %q in %q", c, s)
		}
		seen[c] = true
		switch c {
		case 'F':
			f.FIN = true
		case 'S':
			f.SYN = true
		case 'R':
			f.RST = true
		case 'P':
			f.PSH = true
		case 'A':
			f.ACK = true
		case 'U':
			f.URG = true
		case 'E':
			f.ECE = true
		case 'C':
			f.CWR = true
		case 'N':
			f.NS = true
		default:
			return f, fmt.Errorf("unknown TCP flag %q in %q", c, s)
		}
	}
	if f.SYN && f.FIN {
		return f, fmt.Errorf("TCP flags %q combine SYN and FIN", s)
	}
	if f.SYN && f.RST {
		return f, fmt.Errorf("TCP flags %q combine SYN and RST", s)
	}
	return f, nil
}

// String renders the flags in the learner's notation.
func (f TCPFlags) String() string {
	var b strings.Builder
	for _, x := range []struct {
		set bool
		c   byte
	}{{f.FIN, 'F'}, {f.SYN, 'S'}, {f.RST, 'R'}, {f.PSH, 'P'}, {f.ACK, 'A'}, {f.URG, 'U'}, {f.ECE, 'E'}, {f.CWR, 'C'}, {f.NS, 'N'}} {
		if x.set {
			b.WriteByte(x.c)
		}
	}
	return b.String()
}

// TCPSymbol is the label of a TCP automaton edge.
type TCPSymbol struct {
	Flags   TCPFlags
	Dir     model.PacketDirection
	Payload model.PayloadType
}

func (s TCPSymbol) PayloadType() model.PayloadType { return s.Payload }
func (s TCPSymbol) Direction() model.PacketDirection { return s.Dir }

// ParseTCPSymbol parses symbols of the form FLAGS_DIR_PAYLOAD, e.g. "SA_<_Empty".
func ParseTCPSymbol(edge automaton.JSONEdge) (TCPSymbol, error) {
	parts, err := splitSymbol(edge.Symbol, 3)
	if err != nil {
		return TCPSymbol{}, err
	}
	flags, err := ParseTCPFlags(parts[0])
	if err != nil {
		return TCPSymbol{}, err
	}
	dir, err := model.ParseDirection(parts[1])
	if err != nil {
		return TCPSymbol{}, err
	}
	pt, err := parsePayloadType(parts[2], edge.Payloads)
	if err != nil {
		return TCPSymbol{}, err
	}
	return TCPSymbol{Flags: flags, Dir: dir, Payload: pt}, nil
}

// TCPPacketInfo describes one synthesized TCP segment.
type TCPPacketInfo struct {
	Header
	Flags TCPFlags
	Seq   uint32
	Ack   uint32
}

// Clone returns an independent copy of the record.
func (p *TCPPacketInfo) Clone() *TCPPacketInfo {
	c := *p
	return &c
}

// ApplyTo copies ports, sequence numbers and flags onto a gopacket TCP layer.
func (p *TCPPacketInfo) ApplyTo(l *layers.TCP, flow model.FlowData) {
	src, dst := endpoints(p.Dir, flow)
	l.SrcPort = layers.TCPPort(src)
	l.DstPort = layers.TCPPort(dst)
	l.Seq = p.Seq
	l.Ack = p.Ack
	l.FIN, l.SYN, l.RST, l.PSH = p.Flags.FIN, p.Flags.SYN, p.Flags.RST, p.Flags.PSH
	l.ACK, l.URG, l.ECE, l.CWR, l.NS = p.Flags.ACK, p.Flags.URG, p.Flags.ECE, p.Flags.CWR, p.Flags.NS
}

// NewTCPHeaderBuilder returns a builder holding the sequence state of one
// run. Both initial sequence numbers are drawn from rng immediately.
func NewTCPHeaderBuilder(rng *rand.Rand) automaton.HeaderBuilder[TCPSymbol, *TCPPacketInfo] {
	// next[d] is the next sequence number of the side sending in direction d.
	next := [2]uint32{rng.Uint32(), rng.Uint32()}
	return func(sym TCPSymbol, ts time.Time) *TCPPacketInfo {
		payload := realize(rng, sym.Payload)
		d := sym.Dir
		info := &TCPPacketInfo{
			Header: Header{Dir: d, TS: ts, Payload: payload},
			Flags:  sym.Flags,
			Seq:    next[d],
		}
		if sym.Flags.ACK {
			info.Ack = next[1-d]
		}
		adv := uint32(payload.Size())
		if sym.Flags.SYN {
			adv++
		}
		if sym.Flags.FIN {
			adv++
		}
		next[d] += adv
		return info
	}
}
