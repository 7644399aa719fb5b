package protocol

import (
	"math/rand/v2"
	"testing"

	"Go2NetSynth/internal/engine/automaton"
	"Go2NetSynth/internal/model"

	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseICMPSymbol(t *testing.T) {
	sym, err := ParseICMPSymbol(automaton.JSONEdge{Symbol: "<", Payloads: automaton.JSONPayloads{Type: automaton.PayloadsNone}})
	require.NoError(t, err)
	assert.Equal(t, model.Backward, sym.Direction())
	assert.Equal(t, model.PayloadEmpty, sym.PayloadType().Kind)

	_, err = ParseICMPSymbol(automaton.JSONEdge{Symbol: ">", Payloads: automaton.JSONPayloads{Type: automaton.PayloadsLengths, Lengths: []int{56}}})
	assert.Error(t, err)
	_, err = ParseICMPSymbol(automaton.JSONEdge{Symbol: ">_Empty", Payloads: automaton.JSONPayloads{Type: automaton.PayloadsNone}})
	assert.Error(t, err)
}

func TestICMPHeaderBuilder_EchoSession(t *testing.T) {
	build := NewICMPHeaderBuilder(rand.New(rand.NewPCG(8, 8)))

	req1 := build(ICMPSymbol{Dir: model.Forward}, t0)
	rep1 := build(ICMPSymbol{Dir: model.Backward}, t0)
	req2 := build(ICMPSymbol{Dir: model.Forward}, t0)
	rep2 := build(ICMPSymbol{Dir: model.Backward}, t0)

	assert.Equal(t, uint8(layers.ICMPv4TypeEchoRequest), req1.TypeCode.Type())
	assert.Equal(t, uint8(layers.ICMPv4TypeEchoReply), rep1.TypeCode.Type())
	assert.Equal(t, req1.Id, rep2.Id)
	assert.Equal(t, uint16(1), req1.Seq)
	assert.Equal(t, uint16(1), rep1.Seq)
	assert.Equal(t, uint16(2), req2.Seq)
	assert.Equal(t, uint16(2), rep2.Seq)
	assert.Zero(t, rep2.PayloadSize())

	var l layers.ICMPv4
	req2.ApplyTo(&l)
	assert.Equal(t, req2.TypeCode, l.TypeCode)
	assert.Equal(t, req2.Id, l.Id)
	assert.Equal(t, uint16(2), l.Seq)
}
