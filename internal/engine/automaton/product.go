package automaton

import (
	"errors"
	"fmt"

	"Go2NetSynth/internal/model"
)

// ErrEmptyProduct is returned when no run of the automaton satisfies the constraint.
var ErrEmptyProduct = errors.New("product automaton accepts no run")

// ErrProductTooLarge is returned when the product would exceed MaxProductStates.
var ErrProductTooLarge = errors.New("product automaton too large")

// MaxProductStates bounds the number of state pairs Intersect explores.
const MaxProductStates = 1 << 20

// Constraint is an untimed automaton over symbols, given implicitly by its
// transition function so that only the states a product run visits are
// ever built. A run of the product ends when the timed automaton reaches a
// terminal state while the constraint is in an accepting state.
type Constraint[S Symbol] struct {
	Initial int
	// Step returns the successor of state on symbol, or false if the symbol
	// is not admitted there.
	Step func(state int, symbol S) (int, bool)
	// Accepting reports whether a run may end in state.
	Accepting func(state int) bool
	// MinLength is the fewest symbols of any accepted run.
	MinLength int
}

// PacketCountConstraint accepts exactly fwd forward and bwd backward packets
// in any interleaving. States are numbered in the order they are first
// reached, so the constraint is not safe for concurrent use.
func PacketCountConstraint[S Symbol](fwd, bwd int) *Constraint[S] {
	type counts struct{ fwd, bwd int }
	ids := map[counts]int{{}: 0}
	states := []counts{{}}
	idOf := func(n counts) int {
		if id, ok := ids[n]; ok {
			return id
		}
		id := len(states)
		ids[n] = id
		states = append(states, n)
		return id
	}
	return &Constraint[S]{
		Initial: 0,
		Step: func(state int, s S) (int, bool) {
			n := states[state]
			switch s.Direction() {
			case model.Forward:
				if n.fwd >= fwd {
					return 0, false
				}
				n.fwd++
			case model.Backward:
				if n.bwd >= bwd {
					return 0, false
				}
				n.bwd++
			default:
				return 0, false
			}
			return idOf(n), true
		},
		Accepting: func(state int) bool {
			n := states[state]
			return n.fwd == fwd && n.bwd == bwd
		},
		MinLength: fwd + bwd,
	}
}

type pair struct{ a, c int }

// Intersect builds the product of a timed automaton and a constraint. Product
// states are pairs of states; an edge exists only where both sides have a
// compatible edge. States that cannot reach an accepting pair are pruned so
// every sampled run of the product satisfies the constraint. Weights and
// timing come from the timed automaton. A constraint whose shortest run is
// longer than MaxSteps fails with ErrStepLimit before anything is built.
func Intersect[S Symbol](a *TimedAutomaton[S], c *Constraint[S]) (*TimedAutomaton[S], error) {
	if c.MinLength > a.MaxSteps {
		return nil, fmt.Errorf("%w: constraint needs at least %d steps, limit is %d", ErrStepLimit, c.MinLength, a.MaxSteps)
	}

	ids := map[pair]int{}
	var order []pair
	idOf := func(p pair) int {
		if id, ok := ids[p]; ok {
			return id
		}
		id := len(order)
		ids[p] = id
		order = append(order, p)
		return id
	}

	// 1. Forward exploration from the initial pair.
	type productEdge struct {
		from, to int
		edge     int // index into a.edges
	}
	var edges []productEdge
	idOf(pair{a.Initial, c.Initial})
	for k := 0; k < len(order); k++ {
		if len(order) > MaxProductStates {
			return nil, fmt.Errorf("%w: more than %d state pairs", ErrProductTooLarge, MaxProductStates)
		}
		p := order[k]
		for _, i := range a.out[p.a] {
			ae := &a.edges[i]
			if ae.Weight <= 0 {
				continue
			}
			next, ok := c.Step(p.c, ae.Symbol)
			if !ok {
				continue
			}
			to := idOf(pair{ae.To, next})
			edges = append(edges, productEdge{from: k, to: to, edge: i})
		}
	}

	// 2. Backward reachability from accepting pairs.
	in := make(map[int][]int)
	for _, e := range edges {
		in[e.to] = append(in[e.to], e.from)
	}
	alive := make(map[int]bool)
	var queue []int
	for id, p := range order {
		if a.IsTerminal(p.a) && c.Accepting(p.c) {
			alive[id] = true
			queue = append(queue, id)
		}
	}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, from := range in[s] {
			if !alive[from] {
				alive[from] = true
				queue = append(queue, from)
			}
		}
	}
	if !alive[0] {
		return nil, ErrEmptyProduct
	}

	// 3. Keep only edges between live pairs.
	kept := make([]Edge[S], 0, len(edges))
	for _, e := range edges {
		if !alive[e.from] || !alive[e.to] {
			continue
		}
		pe := a.edges[e.edge]
		pe.From, pe.To = e.from, e.to
		kept = append(kept, pe)
	}

	product, err := assemble(0, kept)
	if err != nil {
		return nil, fmt.Errorf("invalid product automaton: %w", err)
	}
	product.Protocol = a.Protocol
	product.MaxSteps = a.MaxSteps
	product.Noise = a.Noise
	product.Metadata = a.Metadata
	return product, nil
}
