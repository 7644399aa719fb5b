package generator

import (
	"math/rand/v2"
	"net"
	"testing"
	"time"

	"Go2NetSynth/internal/engine/automaton"
	"Go2NetSynth/internal/engine/library"
	"Go2NetSynth/internal/engine/protocol"
	"Go2NetSynth/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func loadLibrary(t *testing.T) *library.Library {
	t.Helper()
	lib := library.New(nil)
	_, failures := lib.ImportDir("../../../testdata/models")
	require.Empty(t, failures)
	return lib
}

func TestGenerateTCP_ReconstructsFlow(t *testing.T) {
	gen := New(loadLibrary(t), 42, Options{})
	ir, err := gen.GenerateTCP(nil, start)
	require.NoError(t, err)
	require.NotEmpty(t, ir.Packets)
	assert.NotEqual(t, uuid.Nil, ir.ID)

	var fwd, bwd, fwdLen, bwdLen uint32
	for _, p := range ir.Packets {
		if p.Direction() == model.Forward {
			fwd++
			fwdLen += uint32(p.PayloadSize())
		} else {
			bwd++
			bwdLen += uint32(p.PayloadSize())
		}
	}
	d := ir.Flow.Data
	assert.Equal(t, model.TCP, ir.Flow.Protocol)
	assert.Equal(t, fwd, d.FwdPacketsCount)
	assert.Equal(t, bwd, d.BwdPacketsCount)
	assert.Equal(t, fwdLen, d.FwdTotalPayloadLength)
	assert.Equal(t, bwdLen, d.BwdTotalPayloadLength)
	assert.Equal(t, start, d.Timestamp)
	assert.Equal(t, ir.Packets[len(ir.Packets)-1].Timestamp().Sub(start), d.TotalDuration)
	assert.Equal(t, "192.168.1.8:34200->192.168.1.14:8080/TCP", ir.Flow.Key())
	assert.Equal(t, uint8(23), d.RecordedTTLClient)
	assert.Equal(t, uint8(68), d.RecordedTTLServer)
	assert.Equal(t, uint8(255), d.InitialTTLClient)
	assert.Equal(t, uint8(255), d.InitialTTLServer)
}

func TestGenerate_Deterministic(t *testing.T) {
	lib := loadLibrary(t)
	a := New(lib, 7, Options{Noise: true})
	b := New(lib, 7, Options{Noise: true})
	for i := 0; i < 10; i++ {
		for _, kind := range model.AllProtocols {
			ra, err := a.Generate(kind, nil, start)
			require.NoError(t, err)
			rb, err := b.Generate(kind, nil, start)
			require.NoError(t, err)
			assert.Equal(t, ra, rb)
		}
	}
}

func TestGenerate_ExplicitFlow(t *testing.T) {
	gen := New(loadLibrary(t), 1, Options{ConstrainToFlow: true})
	flow := &model.FlowData{
		SrcIP:           net.IPv4(10, 1, 1, 1),
		DstIP:           net.IPv4(10, 1, 1, 2),
		SrcPort:         51000,
		DstPort:         80,
		FwdPacketsCount: 5,
		BwdPacketsCount: 3,
		Timestamp:       start.Add(time.Hour),
	}

	ir, err := gen.GenerateTCP(flow, start)
	require.NoError(t, err)
	assert.Equal(t, *flow, ir.Flow.Data)
	assert.Equal(t, flow.Timestamp, ir.Packets[0].Timestamp())
	require.Len(t, ir.Packets, 8)

	flow.FwdPacketsCount = 6
	_, err = gen.GenerateTCP(flow, start)
	assert.ErrorIs(t, err, automaton.ErrEmptyProduct)

	// Counts beyond the step limit are rejected before any product is built.
	huge := *flow
	huge.FwdPacketsCount, huge.BwdPacketsCount = 10000, 10000
	_, err = gen.GenerateTCP(&huge, start)
	assert.ErrorIs(t, err, automaton.ErrStepLimit)

	// Without the constraint the descriptor is only attached.
	loose := New(loadLibrary(t), 1, Options{})
	ir, err = loose.GenerateTCP(flow, start)
	require.NoError(t, err)
	assert.Equal(t, uint32(6), ir.Flow.Data.FwdPacketsCount)
	assert.Len(t, ir.Packets, 8)
}

func TestGenerate_UDPAndICMP(t *testing.T) {
	gen := New(loadLibrary(t), 3, Options{})

	udp, err := gen.GenerateUDP(nil, start)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(udp.Packets), 2)
	assert.Equal(t, model.Forward, udp.Packets[0].Direction())
	assert.Equal(t, model.UDP, udp.Flow.Protocol)

	icmp, err := gen.GenerateICMP(nil, start)
	require.NoError(t, err)
	require.Zero(t, len(icmp.Packets)%2)
	for i, p := range icmp.Packets {
		assert.Equal(t, uint16(i/2+1), p.Seq)
	}
}

func TestGenerate_NoAutomaton(t *testing.T) {
	gen := New(library.New(nil), 1, Options{})
	_, err := gen.Generate(model.UDP, nil, start)
	assert.ErrorIs(t, err, library.ErrNoAutomaton)
}

func TestGenerate_UnknownProtocolPanics(t *testing.T) {
	gen := New(loadLibrary(t), 1, Options{})
	assert.Panics(t, func() {
		_, _ = gen.Generate(model.ProtocolKind(9), nil, start)
	})
}

func TestGenerate_NoiseKeepsCountsConsistent(t *testing.T) {
	gen := New(loadLibrary(t), 99, Options{Noise: true})
	noisy := 0
	for i := 0; i < 300; i++ {
		rec, err := gen.Generate(model.UDP, nil, start)
		require.NoError(t, err)
		var fwd, bwd uint32
		for _, p := range rec.Packets {
			if p.NoiseType() != model.NoiseNone {
				noisy++
			}
			if p.NoiseType() == model.NoiseDeleted {
				continue
			}
			if p.Direction() == model.Forward {
				fwd++
			} else {
				bwd++
			}
		}
		assert.Equal(t, fwd, rec.Flow.Data.FwdPacketsCount)
		assert.Equal(t, bwd, rec.Flow.Data.BwdPacketsCount)
	}
	assert.Positive(t, noisy)
}

func TestSubStream(t *testing.T) {
	a := SubStream(5, 0).Uint64()
	b := SubStream(5, 0).Uint64()
	c := SubStream(5, 1).Uint64()
	shared := rand.New(rand.NewPCG(5, 0)).Uint64()
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEqual(t, a, shared)
}

func TestGenerateWith_UsesCallerStream(t *testing.T) {
	gen := New(loadLibrary(t), 1, Options{})
	ra, err := gen.GenerateWith(SubStream(10, 4), model.TCP, nil, start)
	require.NoError(t, err)
	rb, err := gen.GenerateWith(SubStream(10, 4), model.TCP, nil, start)
	require.NoError(t, err)
	assert.Equal(t, ra, rb)
	_, ok := ra.Packets[0].(*protocol.TCPPacketInfo)
	assert.True(t, ok)
}
