package output

import (
	"bufio"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"Go2NetSynth/internal/engine/protocol"
	"Go2NetSynth/internal/model"

	"github.com/google/gopacket/layers"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ts = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func sampleRecord() *model.Record {
	flow := model.Flow{
		Protocol: model.TCP,
		Data: model.FlowData{
			SrcIP:                 net.IPv4(192, 168, 1, 8).To4(),
			DstIP:                 net.IPv4(192, 168, 1, 14).To4(),
			SrcPort:               34200,
			DstPort:               8080,
			FwdPacketsCount:       1,
			BwdPacketsCount:       1,
			FwdTotalPayloadLength: 5,
			BwdTotalPayloadLength: 0,
			Timestamp:             ts,
			TotalDuration:         1500 * time.Microsecond,
		},
	}
	return &model.Record{
		ID:   uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		Flow: flow,
		Packets: []model.Protocol{
			&protocol.TCPPacketInfo{
				Header: protocol.Header{Dir: model.Forward, TS: ts, Payload: model.Payload{Kind: model.PayloadReplay, Bytes: []byte("hello")}},
				Flags:  protocol.TCPFlags{PSH: true, ACK: true},
				Seq:    100,
				Ack:    200,
			},
			&protocol.TCPPacketInfo{
				Header: protocol.Header{Dir: model.Backward, TS: ts.Add(1500 * time.Microsecond), Noise: model.NoiseReemitted},
				Flags:  protocol.TCPFlags{ACK: true},
				Seq:    200,
				Ack:    105,
			},
		},
	}
}

func TestNewRecordView(t *testing.T) {
	v := NewRecordView(sampleRecord())
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", v.ID)
	assert.Equal(t, "TCP", v.Flow.Protocol)
	assert.Equal(t, "192.168.1.8", v.Flow.SrcIP)
	assert.Equal(t, int64(1500), v.Flow.TotalDurationMicros)
	require.Len(t, v.Packets, 2)
	assert.Equal(t, "PA", v.Packets[0].Flags)
	assert.Equal(t, "68656c6c6f", v.Packets[0].Payload)
	assert.Equal(t, "forward", v.Packets[0].Direction)
	assert.Equal(t, v.Packets[1].Noise, model.NoiseReemitted.String())
	assert.Empty(t, v.Packets[1].Payload)
}

func TestNewPacketView_UDPAndICMP(t *testing.T) {
	u := NewPacketView(&protocol.UDPPacketInfo{Header: protocol.Header{Payload: model.Payload{Kind: model.PayloadRandom, Len: 40}}, Index: 3})
	require.NotNil(t, u.Index)
	assert.Equal(t, uint32(3), *u.Index)
	assert.Equal(t, 40, u.PayloadSize)
	assert.Empty(t, u.Payload)

	i := NewPacketView(&protocol.ICMPPacketInfo{
		TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0),
		Id:       7,
		Seq:      2,
	})
	require.NotNil(t, i.ICMPSeq)
	assert.Equal(t, uint16(2), *i.ICMPSeq)
	assert.Equal(t, uint16(7), *i.ICMPID)
	assert.NotEmpty(t, i.ICMPType)
}

func TestToStruct(t *testing.T) {
	s, err := ToStruct(sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", s.Fields["id"].GetStringValue())
	flow := s.Fields["flow"].GetStructValue()
	require.NotNil(t, flow)
	assert.Equal(t, float64(8080), flow.Fields["dst_port"].GetNumberValue())
	assert.Len(t, s.Fields["packets"].GetListValue().GetValues(), 2)
}

func TestTextWriter(t *testing.T) {
	// 1. Write two records
	dir := filepath.Join(t.TempDir(), "text")
	w, err := NewTextWriter(dir)
	require.NoError(t, err)
	require.NoError(t, w.Write(sampleRecord()))
	require.NoError(t, w.Write(sampleRecord()))
	require.NoError(t, w.Close())

	// 2. Read them back line by line
	file, err := os.Open(w.Path())
	require.NoError(t, err)
	defer file.Close()
	scanner := bufio.NewScanner(file)
	lines := 0
	for scanner.Scan() {
		var v RecordView
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &v))
		assert.Equal(t, uint32(1), v.Flow.FwdPacketsCount)
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, 2, lines)
}

func TestGobWriter(t *testing.T) {
	// 1. Write
	w, err := NewGobWriter(t.TempDir())
	require.NoError(t, err)
	rec := sampleRecord()
	require.NoError(t, w.Write(rec))
	require.NoError(t, w.Close())

	// 2. Verify summary content
	summaryBytes, err := os.ReadFile(filepath.Join(w.Dir(), "summary.json"))
	require.NoError(t, err)
	var summary SummaryData
	require.NoError(t, json.Unmarshal(summaryBytes, &summary))
	assert.Equal(t, 1, summary.TotalFlows)
	assert.Equal(t, 2, summary.TotalPackets)
	assert.Equal(t, uint64(5), summary.TotalBytes)
	assert.Equal(t, map[string]int{"TCP": 1}, summary.Protocols)

	// 3. Decode the data file
	records, err := ReadGob(filepath.Join(w.Dir(), "flows.dat"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	got := records[0]
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Flow.Data.DstPort, got.Flow.Data.DstPort)
	assert.True(t, rec.Flow.Data.Timestamp.Equal(got.Flow.Data.Timestamp))
	require.Len(t, got.Packets, 2)
	first, ok := got.Packets[0].(*protocol.TCPPacketInfo)
	require.True(t, ok)
	assert.Equal(t, uint32(100), first.Seq)
	assert.Equal(t, []byte("hello"), first.Payload.Bytes)
	assert.Equal(t, model.NoiseReemitted, got.Packets[1].NoiseType())
}
