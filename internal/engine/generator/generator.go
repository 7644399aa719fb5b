package generator

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"Go2NetSynth/internal/engine/automaton"
	"Go2NetSynth/internal/engine/library"
	"Go2NetSynth/internal/engine/protocol"
	"Go2NetSynth/internal/metrics"
	"Go2NetSynth/internal/model"

	"github.com/google/uuid"
)

// Options tunes how the generator picks and post-processes runs.
type Options struct {
	// Selector picks the automaton of a protocol; FirstSelector when nil.
	Selector library.Selector
	// ConstrainToFlow intersects the automaton with the packet counts of an
	// explicit flow descriptor before sampling.
	ConstrainToFlow bool
	// Noise applies the automaton's noise model to sampled runs.
	Noise bool
	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// Generator is the sampling orchestrator. It owns one RNG that is mutated
// sequentially, so calls on the shared stream are serialized. The
// GenerateWith variants take a caller-owned RNG and may run concurrently.
type Generator struct {
	mu   sync.Mutex
	lib  *library.Library
	rng  *rand.Rand
	seed uint64
	opts Options
}

// New creates a generator over lib whose shared stream is seeded with seed.
func New(lib *library.Library, seed uint64, opts Options) *Generator {
	if opts.Selector == nil {
		opts.Selector = library.FirstSelector{}
	}
	return &Generator{
		lib:  lib,
		rng:  rand.New(rand.NewPCG(seed, 0)),
		seed: seed,
		opts: opts,
	}
}

// Seed returns the seed the generator was created with.
func (g *Generator) Seed() uint64 {
	return g.seed
}

// SubStream derives the independent RNG of flow index from a global seed.
// Stream 0 is the generator's shared stream, so flows use index+1.
func SubStream(seed, index uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, index+1))
}

// packet is satisfied by the pointer packet-info types of the protocol package.
type packet[P any] interface {
	model.Protocol
	SetNoise(model.NoiseType)
	SetTimestamp(time.Time)
	Clone() P
}

// GenerateTCP samples a TCP run. If flow is nil the run starts at start and
// the flow descriptor is reconstructed from the sampled packets.
func (g *Generator) GenerateTCP(flow *model.FlowData, start time.Time) (*model.PacketsIR[*protocol.TCPPacketInfo], error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return generate(g, g.rng, model.TCP, g.lib.TCP(), protocol.NewTCPHeaderBuilder, flow, start)
}

// GenerateUDP samples a UDP run; see GenerateTCP.
func (g *Generator) GenerateUDP(flow *model.FlowData, start time.Time) (*model.PacketsIR[*protocol.UDPPacketInfo], error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return generate(g, g.rng, model.UDP, g.lib.UDP(), protocol.NewUDPHeaderBuilder, flow, start)
}

// GenerateICMP samples an ICMP run; see GenerateTCP.
func (g *Generator) GenerateICMP(flow *model.FlowData, start time.Time) (*model.PacketsIR[*protocol.ICMPPacketInfo], error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return generate(g, g.rng, model.ICMP, g.lib.ICMP(), protocol.NewICMPHeaderBuilder, flow, start)
}

// Generate samples a run of any protocol on the shared stream and returns
// it protocol-erased. An unknown kind is a programming error and panics.
func (g *Generator) Generate(kind model.ProtocolKind, flow *model.FlowData, start time.Time) (*model.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.GenerateWith(g.rng, kind, flow, start)
}

// GenerateWith is Generate on a caller-owned RNG.
func (g *Generator) GenerateWith(rng *rand.Rand, kind model.ProtocolKind, flow *model.FlowData, start time.Time) (*model.Record, error) {
	switch kind {
	case model.TCP:
		ir, err := generate(g, rng, kind, g.lib.TCP(), protocol.NewTCPHeaderBuilder, flow, start)
		if err != nil {
			return nil, err
		}
		return model.Erase(ir), nil
	case model.UDP:
		ir, err := generate(g, rng, kind, g.lib.UDP(), protocol.NewUDPHeaderBuilder, flow, start)
		if err != nil {
			return nil, err
		}
		return model.Erase(ir), nil
	case model.ICMP:
		ir, err := generate(g, rng, kind, g.lib.ICMP(), protocol.NewICMPHeaderBuilder, flow, start)
		if err != nil {
			return nil, err
		}
		return model.Erase(ir), nil
	default:
		panic(fmt.Sprintf("generator: unsupported protocol %v", kind))
	}
}

func generate[S automaton.Symbol, P packet[P]](
	g *Generator,
	rng *rand.Rand,
	kind model.ProtocolKind,
	automata []*automaton.TimedAutomaton[S],
	newBuilder func(*rand.Rand) automaton.HeaderBuilder[S, P],
	flow *model.FlowData,
	start time.Time,
) (*model.PacketsIR[P], error) {
	// 1. Select the automaton
	a, err := library.Select(automata, g.opts.Selector, flow)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", kind, err)
	}

	// 2. Narrow it to runs matching the flow descriptor
	if flow != nil {
		start = flow.Timestamp
		if g.opts.ConstrainToFlow {
			c := automaton.PacketCountConstraint[S](int(flow.FwdPacketsCount), int(flow.BwdPacketsCount))
			a, err = automaton.Intersect(a, c)
			if err != nil {
				g.opts.Metrics.SamplingFailed(kind.String())
				return nil, fmt.Errorf("%s: cannot match %d/%d packets: %w", kind, flow.FwdPacketsCount, flow.BwdPacketsCount, err)
			}
		}
	}

	// 3. Sample
	packets, err := automaton.Sample(a, rng, start, newBuilder(rng))
	if err != nil {
		g.opts.Metrics.SamplingFailed(kind.String())
		return nil, fmt.Errorf("%s: %w", kind, err)
	}
	if g.opts.Noise && a.Noise.Enabled() {
		packets = ApplyNoise(rng, packets, a.Noise)
	}

	// 4. Package with the flow
	var f model.Flow
	if flow != nil {
		f = model.Flow{Protocol: kind, Data: *flow}
	} else {
		f = Reconstruct(kind, packets, start)
	}
	id, err := uuid.NewRandomFromReader(rngReader{rng})
	if err != nil {
		return nil, fmt.Errorf("failed to derive flow id: %w", err)
	}
	g.opts.Metrics.FlowGenerated(kind.String(), len(packets))
	return &model.PacketsIR[P]{ID: id, Packets: packets, Flow: f}, nil
}

// rngReader feeds uuid generation from the run's RNG so IDs are reproducible.
type rngReader struct {
	rng *rand.Rand
}

func (r rngReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = byte(r.rng.Uint32())
	}
	return len(p), nil
}
