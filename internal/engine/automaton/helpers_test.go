package automaton_test

import (
	"testing"

	"Go2NetSynth/internal/engine/automaton"
	"Go2NetSynth/internal/engine/protocol"

	"github.com/stretchr/testify/require"
)

// edge builds a payload-less edge with a fixed inter-arrival time.
func edge(src, dst int, p float64, symbol string, mu float64) automaton.JSONEdge {
	return automaton.JSONEdge{
		Src:      src,
		Dst:      dst,
		P:        p,
		Symbol:   symbol,
		Mu:       []float64{mu},
		Cov:      [][]float64{{0}},
		Payloads: automaton.JSONPayloads{Type: automaton.PayloadsNone},
	}
}

func tcpDef(edges ...automaton.JSONEdge) *automaton.JSONAutomaton {
	return &automaton.JSONAutomaton{Protocol: "TCP", InitialState: 0, MaxSteps: 100, Edges: edges}
}

func importTCP(t *testing.T, def *automaton.JSONAutomaton) *automaton.TimedAutomaton[protocol.TCPSymbol] {
	t.Helper()
	a, err := automaton.Import(def, protocol.ParseTCPSymbol, protocol.TCPTimeUnit)
	require.NoError(t, err)
	return a
}

// handshake is SYN, SYN-ACK after 1ms, ACK after another 0.5ms.
func handshake() *automaton.JSONAutomaton {
	return tcpDef(
		edge(0, 1, 1, "S_>_Empty", 0),
		edge(1, 2, 1, "SA_<_Empty", 1.0),
		edge(2, 3, 1, "A_>_Empty", 0.5),
	)
}
