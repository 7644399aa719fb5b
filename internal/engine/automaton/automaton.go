package automaton

import (
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"Go2NetSynth/internal/model"
)

// DefaultMaxSteps bounds random walks of models that do not declare max_steps.
const DefaultMaxSteps = 10000

var (
	ErrInvalidSymbol    = errors.New("invalid edge symbol")
	ErrInvalidWeight    = errors.New("invalid edge weight")
	ErrZeroWeight       = errors.New("outgoing weights sum to zero")
	ErrUnreachableState = errors.New("state unreachable from initial state")
	ErrInvalidNoise     = errors.New("invalid noise model")
	ErrStepLimit        = errors.New("sampling exceeded the step limit")
)

// Symbol is the typed label carried by an edge.
type Symbol interface {
	PayloadType() model.PayloadType
	Direction() model.PacketDirection
}

// ParseFunc converts a protocol-neutral edge into a typed symbol.
type ParseFunc[S Symbol] func(edge JSONEdge) (S, error)

// HeaderBuilder turns a sampled symbol and its absolute timestamp into a
// packet-info record. Implementations keep the per-run protocol state.
type HeaderBuilder[S Symbol, P any] func(symbol S, ts time.Time) P

// Edge is one weighted, timed transition.
type Edge[S Symbol] struct {
	From   int
	To     int
	Symbol S
	Weight float64
	Timing Timing
	// Raw keeps the symbol text and payload description for Export.
	Raw JSONEdge
}

// NoiseModel is the normalized probability of each noise class.
type NoiseModel struct {
	None          float64
	Deletion      float64
	Reemission    float64
	Transposition float64
	Addition      float64
}

// Enabled reports whether any noise class other than None has mass.
func (n NoiseModel) Enabled() bool {
	return n.Deletion+n.Reemission+n.Transposition+n.Addition > 0
}

// Draw picks a noise class. One uniform variate is consumed.
func (n NoiseModel) Draw(rng *rand.Rand) model.NoiseType {
	r := rng.Float64()
	for _, c := range []struct {
		p float64
		t model.NoiseType
	}{
		{n.Deletion, model.NoiseDeleted},
		{n.Reemission, model.NoiseReemitted},
		{n.Transposition, model.NoiseTransposed},
		{n.Addition, model.NoiseAdded},
	} {
		if r < c.p {
			return c.t
		}
		r -= c.p
	}
	return model.NoiseNone
}

// Metadata records how an automaton was learned; used for selection.
type Metadata struct {
	SelectDstPorts []uint16
	IgnoreDstPorts []uint16
	InputFile      string
	CreationTime   string
}

// TimedAutomaton is a probabilistic state machine whose edges carry a typed
// symbol, a weight and a timing model. It is immutable after construction
// and safe for concurrent sampling with independent RNGs.
type TimedAutomaton[S Symbol] struct {
	Protocol  string
	Initial   int
	Accepting *int
	MaxSteps  int
	Noise     NoiseModel
	Metadata  Metadata

	states []int
	edges  []Edge[S]
	out    map[int][]int
	totals map[int]float64
}

// Import builds an automaton from a decoded model file.
func Import[S Symbol](def *JSONAutomaton, parse ParseFunc[S], unit time.Duration) (*TimedAutomaton[S], error) {
	edges := make([]Edge[S], 0, len(def.Edges))
	for i, je := range def.Edges {
		if je.Src < 0 || je.Dst < 0 {
			return nil, fmt.Errorf("edge %d: negative state index", i)
		}
		if je.P < 0 || math.IsNaN(je.P) || math.IsInf(je.P, 0) {
			return nil, fmt.Errorf("edge %d (%d->%d): %w: %v", i, je.Src, je.Dst, ErrInvalidWeight, je.P)
		}
		sym, err := parse(je)
		if err != nil {
			return nil, fmt.Errorf("edge %d (%d->%d): %w: %w", i, je.Src, je.Dst, ErrInvalidSymbol, err)
		}
		timing, err := NewTiming(je.Mu, je.Cov, unit)
		if err != nil {
			return nil, fmt.Errorf("edge %d (%d->%d): %w", i, je.Src, je.Dst, err)
		}
		edges = append(edges, Edge[S]{From: je.Src, To: je.Dst, Symbol: sym, Weight: je.P, Timing: timing, Raw: je})
	}

	noise, err := importNoise(def.Noise)
	if err != nil {
		return nil, err
	}

	maxSteps := def.MaxSteps
	if maxSteps <= 0 {
		log.Printf("Warning: %s automaton declares no max_steps, using default bound %d", def.Protocol, DefaultMaxSteps)
		maxSteps = DefaultMaxSteps
	}

	a, err := assemble(def.InitialState, edges)
	if err != nil {
		return nil, err
	}
	a.Protocol = def.Protocol
	a.Accepting = def.AcceptingState
	a.MaxSteps = maxSteps
	a.Noise = noise
	if md := def.Metadata; md != nil {
		a.Metadata = Metadata{
			SelectDstPorts: slices.Clone(md.SelectDstPorts),
			IgnoreDstPorts: slices.Clone(md.IgnoreDstPorts),
			InputFile:      md.InputFile,
			CreationTime:   md.CreationTime,
		}
	}
	return a, nil
}

func importNoise(n *JSONNoise) (NoiseModel, error) {
	if n == nil {
		return NoiseModel{None: 1}, nil
	}
	vals := []float64{n.None, n.Deletion, n.Reemission, n.Transposition, n.Addition}
	sum := 0.0
	for _, v := range vals {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return NoiseModel{}, fmt.Errorf("%w: probability %v", ErrInvalidNoise, v)
		}
		sum += v
	}
	if sum == 0 {
		return NoiseModel{}, fmt.Errorf("%w: all probabilities are zero", ErrInvalidNoise)
	}
	return NoiseModel{
		None:          n.None / sum,
		Deletion:      n.Deletion / sum,
		Reemission:    n.Reemission / sum,
		Transposition: n.Transposition / sum,
		Addition:      n.Addition / sum,
	}, nil
}

// assemble indexes the edges and checks the structural invariants: every
// state with outgoing edges has a positive total weight and every state
// is reachable from the initial one through edges of positive weight.
func assemble[S Symbol](initial int, edges []Edge[S]) (*TimedAutomaton[S], error) {
	a := &TimedAutomaton[S]{
		Initial: initial,
		edges:   edges,
		out:     make(map[int][]int),
		totals:  make(map[int]float64),
	}

	seen := map[int]bool{initial: true}
	a.states = append(a.states, initial)
	addState := func(s int) {
		if !seen[s] {
			seen[s] = true
			a.states = append(a.states, s)
		}
	}
	for i, e := range edges {
		addState(e.From)
		addState(e.To)
		a.out[e.From] = append(a.out[e.From], i)
		a.totals[e.From] += e.Weight
	}
	slices.Sort(a.states)

	for s, idx := range a.out {
		if len(idx) > 0 && a.totals[s] <= 0 {
			return nil, fmt.Errorf("state %d: %w", s, ErrZeroWeight)
		}
	}

	reached := map[int]bool{initial: true}
	queue := []int{initial}
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for _, i := range a.out[s] {
			if edges[i].Weight <= 0 {
				continue
			}
			if t := edges[i].To; !reached[t] {
				reached[t] = true
				queue = append(queue, t)
			}
		}
	}
	for _, s := range a.states {
		if !reached[s] {
			return nil, fmt.Errorf("state %d: %w", s, ErrUnreachableState)
		}
	}
	return a, nil
}

// States returns the sorted state identifiers.
func (a *TimedAutomaton[S]) States() []int {
	return slices.Clone(a.states)
}

// Edges returns all edges in import order.
func (a *TimedAutomaton[S]) Edges() []Edge[S] {
	return slices.Clone(a.edges)
}

// Outgoing returns the edges leaving state s.
func (a *TimedAutomaton[S]) Outgoing(s int) []Edge[S] {
	idx := a.out[s]
	out := make([]Edge[S], len(idx))
	for i, j := range idx {
		out[i] = a.edges[j]
	}
	return out
}

// IsTerminal reports whether s has no outgoing edges.
func (a *TimedAutomaton[S]) IsTerminal(s int) bool {
	return len(a.out[s]) == 0
}

// pick performs the weighted choice among the outgoing edges of s.
func (a *TimedAutomaton[S]) pick(rng *rand.Rand, s int) *Edge[S] {
	idx := a.out[s]
	r := rng.Float64() * a.totals[s]
	last := idx[0]
	for _, i := range idx {
		w := a.edges[i].Weight
		if w <= 0 {
			continue
		}
		last = i
		if r < w {
			return &a.edges[i]
		}
		r -= w
	}
	// Floating point leftovers land on the last positive edge.
	return &a.edges[last]
}

// Sample performs one random walk from the initial state and returns the
// packet-info records built along the way. The walk ends on a state with no
// outgoing edges. ErrStepLimit is returned if the walk is longer than
// MaxSteps; the caller may retry with another seed or automaton.
func Sample[S Symbol, P any](a *TimedAutomaton[S], rng *rand.Rand, start time.Time, build HeaderBuilder[S, P]) ([]P, error) {
	var out []P
	now := start
	state := a.Initial
	for step := 0; ; step++ {
		if a.IsTerminal(state) {
			return out, nil
		}
		if step >= a.MaxSteps {
			return nil, fmt.Errorf("%w (%d steps)", ErrStepLimit, a.MaxSteps)
		}
		e := a.pick(rng, state)
		now = now.Add(e.Timing.Delay(rng))
		out = append(out, build(e.Symbol, now))
		state = e.To
	}
}

// Export re-serializes the automaton into the model file format.
func (a *TimedAutomaton[S]) Export() *JSONAutomaton {
	def := &JSONAutomaton{
		Protocol:       a.Protocol,
		InitialState:   a.Initial,
		AcceptingState: a.Accepting,
		MaxSteps:       a.MaxSteps,
		Edges:          make([]JSONEdge, len(a.edges)),
		Noise: &JSONNoise{
			None:          a.Noise.None,
			Deletion:      a.Noise.Deletion,
			Reemission:    a.Noise.Reemission,
			Transposition: a.Noise.Transposition,
			Addition:      a.Noise.Addition,
		},
		Metadata: &JSONMetadata{
			SelectDstPorts: slices.Clone(a.Metadata.SelectDstPorts),
			IgnoreDstPorts: slices.Clone(a.Metadata.IgnoreDstPorts),
			InputFile:      a.Metadata.InputFile,
			CreationTime:   a.Metadata.CreationTime,
		},
	}
	for i, e := range a.edges {
		je := e.Raw
		je.Src = e.From
		je.Dst = e.To
		je.P = e.Weight
		je.Mu = clone(e.Timing.Mu)
		je.Cov = cloneMatrix(e.Timing.Cov)
		def.Edges[i] = je
	}
	return def
}
