package protocol

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"Go2NetSynth/internal/engine/automaton"
	"Go2NetSynth/internal/model"
)

// Time units of the inter-arrival dimension written by the learner.
const (
	TCPTimeUnit  = time.Millisecond
	UDPTimeUnit  = time.Microsecond
	ICMPTimeUnit = time.Microsecond
)

var errPayload = errors.New("invalid payload description")

// Header holds the fields shared by every packet-info record.
type Header struct {
	Noise   model.NoiseType
	Dir     model.PacketDirection
	TS      time.Time
	Payload model.Payload
}

func (h *Header) NoiseType() model.NoiseType { return h.Noise }
func (h *Header) Direction() model.PacketDirection { return h.Dir }
func (h *Header) Timestamp() time.Time { return h.TS }
func (h *Header) PayloadSize() int { return h.Payload.Size() }
func (h *Header) SetNoise(n model.NoiseType) { h.Noise = n }
func (h *Header) SetTimestamp(ts time.Time) { h.TS = ts }
func (h *Header) SetDirection(d model.PacketDirection) { h.Dir = d }

// splitSymbol splits an edge symbol into exactly n underscore-separated fields.
func splitSymbol(symbol string, n int) ([]string, error) {
	parts := strings.Split(symbol, "_")
	if len(parts) != n {
		return nil, fmt.Errorf("symbol %q: expected %d fields, got %d", symbol, n, len(parts))
	}
	return parts, nil
}

// parsePayloadType checks that the payload variant named in the symbol agrees
// with the edge's payload description and converts it.
func parsePayloadType(variant string, p automaton.JSONPayloads) (model.PayloadType, error) {
	switch variant {
	case "Empty":
		if p.Type != automaton.PayloadsNone {
			return model.PayloadType{}, fmt.Errorf("%w: Empty symbol with %q payloads", errPayload, p.Type)
		}
		return model.PayloadType{Kind: model.PayloadEmpty}, nil
	case "Replay":
		if p.Type != automaton.PayloadsHexCodes {
			return model.PayloadType{}, fmt.Errorf("%w: Replay symbol with %q payloads", errPayload, p.Type)
		}
		if len(p.Payloads) == 0 {
			return model.PayloadType{}, fmt.Errorf("%w: no hex codes", errPayload)
		}
		blobs := make([][]byte, len(p.Payloads))
		for i, h := range p.Payloads {
			b, err := hex.DecodeString(h)
			if err != nil {
				return model.PayloadType{}, fmt.Errorf("%w: hex code %d: %v", errPayload, i, err)
			}
			blobs[i] = b
		}
		return model.PayloadType{Kind: model.PayloadReplay, Blobs: blobs}, nil
	case "Text":
		if p.Type != automaton.PayloadsText {
			return model.PayloadType{}, fmt.Errorf("%w: Text symbol with %q payloads", errPayload, p.Type)
		}
		if len(p.Payloads) == 0 {
			return model.PayloadType{}, fmt.Errorf("%w: no text choices", errPayload)
		}
		return model.PayloadType{Kind: model.PayloadText, Texts: append([]string(nil), p.Payloads...)}, nil
	case "Random":
		if p.Type != automaton.PayloadsLengths {
			return model.PayloadType{}, fmt.Errorf("%w: Random symbol with %q payloads", errPayload, p.Type)
		}
		if len(p.Lengths) == 0 {
			return model.PayloadType{}, fmt.Errorf("%w: no lengths", errPayload)
		}
		for _, l := range p.Lengths {
			if l < 0 {
				return model.PayloadType{}, fmt.Errorf("%w: negative length %d", errPayload, l)
			}
		}
		return model.PayloadType{Kind: model.PayloadRandom, Lengths: append([]int(nil), p.Lengths...)}, nil
	default:
		return model.PayloadType{}, fmt.Errorf("%w: unknown payload variant %q", errPayload, variant)
	}
}

// realize picks the concrete payload of one packet.
func realize(rng *rand.Rand, pt model.PayloadType) model.Payload {
	switch pt.Kind {
	case model.PayloadText:
		return model.Payload{Kind: model.PayloadReplay, Bytes: []byte(pt.Texts[rng.IntN(len(pt.Texts))])}
	case model.PayloadReplay:
		return model.Payload{Kind: model.PayloadReplay, Bytes: pt.Blobs[rng.IntN(len(pt.Blobs))]}
	case model.PayloadRandom:
		return model.Payload{Kind: model.PayloadRandom, Len: pt.Lengths[rng.IntN(len(pt.Lengths))]}
	default:
		return model.Payload{Kind: model.PayloadEmpty}
	}
}

// endpoints orders the flow's addresses for a packet going in direction d.
func endpoints(d model.PacketDirection, flow model.FlowData) (srcPort, dstPort uint16) {
	if d == model.Forward {
		return flow.SrcPort, flow.DstPort
	}
	return flow.DstPort, flow.SrcPort
}
