package library

import (
	"testing"

	"Go2NetSynth/internal/engine/automaton"
	"Go2NetSynth/internal/engine/protocol"
	"Go2NetSynth/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortSelector(t *testing.T) {
	candidates := []automaton.Metadata{
		{SelectDstPorts: []uint16{443}},
		{IgnoreDstPorts: []uint16{22}},
		{SelectDstPorts: []uint16{80, 8080}},
	}
	sel := PortSelector{}
	assert.Equal(t, 0, sel.Select(candidates, nil))
	assert.Equal(t, 2, sel.Select(candidates, &model.FlowData{DstPort: 8080}))
	assert.Equal(t, 0, sel.Select(candidates, &model.FlowData{DstPort: 443}))
	assert.Equal(t, 1, sel.Select(candidates, &model.FlowData{DstPort: 25}))
	assert.Equal(t, 0, sel.Select(candidates, &model.FlowData{DstPort: 22}))
}

func TestNewSelector(t *testing.T) {
	for _, name := range []string{"", "first"} {
		sel, err := NewSelector(name)
		require.NoError(t, err)
		assert.IsType(t, FirstSelector{}, sel)
	}
	sel, err := NewSelector("port")
	require.NoError(t, err)
	assert.IsType(t, PortSelector{}, sel)

	_, err = NewSelector("random")
	assert.Error(t, err)
}

func TestSelect_Empty(t *testing.T) {
	_, err := Select[protocol.TCPSymbol](nil, FirstSelector{}, nil)
	assert.ErrorIs(t, err, ErrNoAutomaton)
}
