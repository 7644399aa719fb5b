package automaton_test

import (
	"os"
	"path/filepath"
	"testing"

	"Go2NetSynth/internal/engine/automaton"
	"Go2NetSynth/internal/engine/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readModel(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "..", "..", "testdata", "models", name))
	require.NoError(t, err)
	return data
}

func TestDecode(t *testing.T) {
	def, err := automaton.Decode(readModel(t, "tcp_http.json"))
	require.NoError(t, err)
	assert.Equal(t, "TCP", def.Protocol)
	assert.Equal(t, 64, def.MaxSteps)
	assert.Len(t, def.Edges, 9)
	require.NotNil(t, def.Metadata)
	assert.Equal(t, []uint16{80, 8080}, def.Metadata.SelectDstPorts)
}

func TestDecode_Malformed(t *testing.T) {
	for name, data := range map[string]string{
		"truncated":      `{"protocol": "TCP", "initial_state": 0, "edges": [`,
		"missing edges":  `{"protocol": "TCP", "initial_state": 0}`,
		"negative state": `{"protocol": "TCP", "initial_state": -1, "edges": []}`,
		"bad payloads":   `{"protocol": "TCP", "initial_state": 0, "edges": [{"src": 0, "dst": 1, "p": 1, "symbol": "S_>_Empty", "mu": [0], "cov": [[0]], "payloads": {"type": "Binary"}}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := automaton.Decode([]byte(data))
			assert.ErrorIs(t, err, automaton.ErrMalformed)
		})
	}
}

func TestExport_RoundTrip(t *testing.T) {
	def, err := automaton.Decode(readModel(t, "tcp_http.json"))
	require.NoError(t, err)
	a := importTCP(t, def)

	data, err := automaton.Encode(a.Export())
	require.NoError(t, err)
	again, err := automaton.Decode(data)
	require.NoError(t, err)
	b := importTCP(t, again)

	assert.Equal(t, a.States(), b.States())
	assert.Equal(t, a.MaxSteps, b.MaxSteps)
	assert.InDelta(t, a.Noise.None, b.Noise.None, 1e-12)
	assert.InDelta(t, a.Noise.Deletion, b.Noise.Deletion, 1e-12)
	assert.InDelta(t, a.Noise.Transposition, b.Noise.Transposition, 1e-12)
	assert.Equal(t, a.Metadata, b.Metadata)
	ea, eb := a.Edges(), b.Edges()
	require.Len(t, eb, len(ea))
	for i := range ea {
		assert.Equal(t, ea[i].From, eb[i].From)
		assert.Equal(t, ea[i].To, eb[i].To)
		assert.Equal(t, ea[i].Weight, eb[i].Weight)
		assert.Equal(t, ea[i].Symbol, eb[i].Symbol)
		assert.Equal(t, ea[i].Timing, eb[i].Timing)
	}
}

func TestImport_UDPAndICMPModels(t *testing.T) {
	def, err := automaton.Decode(readModel(t, "udp_dns.json"))
	require.NoError(t, err)
	u, err := automaton.Import(def, protocol.ParseUDPSymbol, protocol.UDPTimeUnit)
	require.NoError(t, err)
	assert.True(t, u.Noise.Enabled())

	def, err = automaton.Decode(readModel(t, "icmp_ping.json"))
	require.NoError(t, err)
	i, err := automaton.Import(def, protocol.ParseICMPSymbol, protocol.ICMPTimeUnit)
	require.NoError(t, err)
	assert.Len(t, i.States(), 6)
}
