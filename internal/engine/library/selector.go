package library

import (
	"errors"
	"fmt"
	"slices"

	"Go2NetSynth/internal/engine/automaton"
	"Go2NetSynth/internal/model"
)

// ErrNoAutomaton is returned when the library has no automaton for a protocol.
var ErrNoAutomaton = errors.New("no automaton available")

// Selector chooses which automaton samples a flow. flow is nil when the
// caller only supplied a start time.
type Selector interface {
	Select(candidates []automaton.Metadata, flow *model.FlowData) int
}

// FirstSelector always picks the first loaded automaton.
type FirstSelector struct{}

func (FirstSelector) Select([]automaton.Metadata, *model.FlowData) int { return 0 }

// PortSelector uses the destination ports recorded by the learner: an
// automaton learned on the flow's port wins, then one whose ignore list
// does not exclude the port and that was not learned on a port subset,
// then the first automaton.
type PortSelector struct{}

func (PortSelector) Select(candidates []automaton.Metadata, flow *model.FlowData) int {
	if flow == nil {
		return 0
	}
	port := flow.DstPort
	for i, md := range candidates {
		if slices.Contains(md.SelectDstPorts, port) {
			return i
		}
	}
	for i, md := range candidates {
		if len(md.SelectDstPorts) == 0 && !slices.Contains(md.IgnoreDstPorts, port) {
			return i
		}
	}
	return 0
}

// NewSelector returns the selector registered under name ("first" or "port").
func NewSelector(name string) (Selector, error) {
	switch name {
	case "", "first":
		return FirstSelector{}, nil
	case "port":
		return PortSelector{}, nil
	default:
		return nil, fmt.Errorf("unknown automaton selection policy '%s'", name)
	}
}

// Select picks an automaton of list for flow.
func Select[S automaton.Symbol](list []*automaton.TimedAutomaton[S], sel Selector, flow *model.FlowData) (*automaton.TimedAutomaton[S], error) {
	if len(list) == 0 {
		return nil, ErrNoAutomaton
	}
	mds := make([]automaton.Metadata, len(list))
	for i, a := range list {
		mds[i] = a.Metadata
	}
	i := sel.Select(mds, flow)
	if i < 0 || i >= len(list) {
		return nil, fmt.Errorf("selector returned index %d for %d automata", i, len(list))
	}
	return list[i], nil
}
