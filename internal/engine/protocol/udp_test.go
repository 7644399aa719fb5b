package protocol

import (
	"math/rand/v2"
	"strings"
	"testing"

	"Go2NetSynth/internal/engine/automaton"
	"Go2NetSynth/internal/model"

	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUDPSymbol(t *testing.T) {
	sym, err := ParseUDPSymbol(automaton.JSONEdge{
		Symbol:   ">_Random",
		Payloads: automaton.JSONPayloads{Type: automaton.PayloadsLengths, Lengths: []int{12, 40}},
	})
	require.NoError(t, err)
	assert.Equal(t, model.Forward, sym.Direction())
	assert.Equal(t, []int{12, 40}, sym.PayloadType().Lengths)

	_, err = ParseUDPSymbol(automaton.JSONEdge{Symbol: "S_>_Empty", Payloads: automaton.JSONPayloads{Type: automaton.PayloadsNone}})
	assert.Error(t, err)
	_, err = ParseUDPSymbol(automaton.JSONEdge{Symbol: "<_Empty", Payloads: automaton.JSONPayloads{Type: automaton.PayloadsLengths, Lengths: []int{1}}})
	assert.Error(t, err)
}

func TestParseUDPSymbol_PayloadMustFitDatagram(t *testing.T) {
	random := func(n int) automaton.JSONEdge {
		return automaton.JSONEdge{
			Symbol:   "<_Random",
			Payloads: automaton.JSONPayloads{Type: automaton.PayloadsLengths, Lengths: []int{10, n}},
		}
	}
	sym, err := ParseUDPSymbol(random(MaxUDPPayload))
	require.NoError(t, err)
	var l layers.UDP
	build := NewUDPHeaderBuilder(rand.New(rand.NewPCG(1, 1)))
	build(UDPSymbol{Dir: sym.Dir, Payload: model.PayloadType{Kind: model.PayloadRandom, Lengths: []int{MaxUDPPayload}}}, t0).ApplyTo(&l, model.FlowData{})
	assert.Equal(t, uint16(0xffff), l.Length)

	_, err = ParseUDPSymbol(random(MaxUDPPayload + 1))
	assert.ErrorIs(t, err, errPayload)

	_, err = ParseUDPSymbol(automaton.JSONEdge{
		Symbol:   ">_Text",
		Payloads: automaton.JSONPayloads{Type: automaton.PayloadsText, Payloads: []string{strings.Repeat("x", 70000)}},
	})
	assert.ErrorIs(t, err, errPayload)
}

func TestUDPHeaderBuilder(t *testing.T) {
	build := NewUDPHeaderBuilder(rand.New(rand.NewPCG(1, 1)))
	lengths := model.PayloadType{Kind: model.PayloadRandom, Lengths: []int{64}}

	q1 := build(UDPSymbol{Dir: model.Forward, Payload: lengths}, t0)
	r1 := build(UDPSymbol{Dir: model.Backward, Payload: lengths}, t0)
	q2 := build(UDPSymbol{Dir: model.Forward, Payload: lengths}, t0)

	assert.Equal(t, uint32(0), q1.Index)
	assert.Equal(t, uint32(0), r1.Index)
	assert.Equal(t, uint32(1), q2.Index)
	assert.Equal(t, 64, q2.PayloadSize())

	var l layers.UDP
	r1.ApplyTo(&l, model.FlowData{SrcPort: 5353, DstPort: 53})
	assert.Equal(t, layers.UDPPort(53), l.SrcPort)
	assert.Equal(t, layers.UDPPort(5353), l.DstPort)
	assert.Equal(t, uint16(8+64), l.Length)
}
