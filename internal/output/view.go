package output

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"Go2NetSynth/internal/engine/protocol"
	"Go2NetSynth/internal/model"

	"google.golang.org/protobuf/types/known/structpb"
)

// FlowView is the serialized form of a flow descriptor.
type FlowView struct {
	Protocol              string `json:"protocol"`
	SrcIP                 string `json:"src_ip"`
	DstIP                 string `json:"dst_ip"`
	SrcPort               uint16 `json:"src_port"`
	DstPort               uint16 `json:"dst_port"`
	RecordedTTLClient     uint8  `json:"recorded_ttl_client"`
	RecordedTTLServer     uint8  `json:"recorded_ttl_server"`
	InitialTTLClient      uint8  `json:"initial_ttl_client"`
	InitialTTLServer      uint8  `json:"initial_ttl_server"`
	FwdPacketsCount       uint32 `json:"fwd_packets_count"`
	BwdPacketsCount       uint32 `json:"bwd_packets_count"`
	FwdTotalPayloadLength uint32 `json:"fwd_total_payload_length"`
	BwdTotalPayloadLength uint32 `json:"bwd_total_payload_length"`
	Timestamp             string `json:"timestamp"`
	TotalDurationMicros   int64  `json:"total_duration_us"`
}

// PacketView is the serialized form of one packet-info record.
type PacketView struct {
	Timestamp   string `json:"ts"`
	Direction   string `json:"direction"`
	Noise       string `json:"noise"`
	PayloadKind string `json:"payload_kind"`
	PayloadSize int    `json:"payload_size"`
	Payload     string `json:"payload,omitempty"`

	Flags string `json:"flags,omitempty"`
	Seq   uint32 `json:"seq,omitempty"`
	Ack   uint32 `json:"ack,omitempty"`

	Index *uint32 `json:"index,omitempty"`

	ICMPType string  `json:"icmp_type,omitempty"`
	ICMPID   *uint16 `json:"icmp_id,omitempty"`
	ICMPSeq  *uint16 `json:"icmp_seq,omitempty"`
}

// RecordView is the serialized form of a generated flow.
type RecordView struct {
	ID      string       `json:"id"`
	Flow    FlowView     `json:"flow"`
	Packets []PacketView `json:"packets"`
}

// NewFlowView renders a flow.
func NewFlowView(f model.Flow) FlowView {
	d := f.Data
	return FlowView{
		Protocol:              f.Protocol.String(),
		SrcIP:                 d.SrcIP.String(),
		DstIP:                 d.DstIP.String(),
		SrcPort:               d.SrcPort,
		DstPort:               d.DstPort,
		RecordedTTLClient:     d.RecordedTTLClient,
		RecordedTTLServer:     d.RecordedTTLServer,
		InitialTTLClient:      d.InitialTTLClient,
		InitialTTLServer:      d.InitialTTLServer,
		FwdPacketsCount:       d.FwdPacketsCount,
		BwdPacketsCount:       d.BwdPacketsCount,
		FwdTotalPayloadLength: d.FwdTotalPayloadLength,
		BwdTotalPayloadLength: d.BwdTotalPayloadLength,
		Timestamp:             d.Timestamp.UTC().Format(time.RFC3339Nano),
		TotalDurationMicros:   d.TotalDuration.Microseconds(),
	}
}

// NewPacketView renders one packet-info record of any supported protocol.
func NewPacketView(p model.Protocol) PacketView {
	v := PacketView{
		Timestamp:   p.Timestamp().UTC().Format(time.RFC3339Nano),
		Direction:   p.Direction().String(),
		Noise:       p.NoiseType().String(),
		PayloadSize: p.PayloadSize(),
	}
	var h *protocol.Header
	switch pkt := p.(type) {
	case *protocol.TCPPacketInfo:
		h = &pkt.Header
		v.Flags = pkt.Flags.String()
		v.Seq = pkt.Seq
		v.Ack = pkt.Ack
	case *protocol.UDPPacketInfo:
		h = &pkt.Header
		idx := pkt.Index
		v.Index = &idx
	case *protocol.ICMPPacketInfo:
		h = &pkt.Header
		id, seq := pkt.Id, pkt.Seq
		v.ICMPType = pkt.TypeCode.String()
		v.ICMPID = &id
		v.ICMPSeq = &seq
	}
	if h != nil {
		v.PayloadKind = h.Payload.Kind.String()
		if h.Payload.Kind == model.PayloadReplay {
			v.Payload = hex.EncodeToString(h.Payload.Bytes)
		}
	}
	return v
}

// NewRecordView renders a generated flow.
func NewRecordView(rec *model.Record) RecordView {
	v := RecordView{
		ID:      rec.ID.String(),
		Flow:    NewFlowView(rec.Flow),
		Packets: make([]PacketView, len(rec.Packets)),
	}
	for i, p := range rec.Packets {
		v.Packets[i] = NewPacketView(p)
	}
	return v
}

// ToStruct converts a record into the protobuf message published on the bus
// and served by the API.
func ToStruct(rec *model.Record) (*structpb.Struct, error) {
	data, err := json.Marshal(NewRecordView(rec))
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build record message: %w", err)
	}
	return s, nil
}
