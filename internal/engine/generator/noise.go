package generator

import (
	"math/rand/v2"

	"Go2NetSynth/internal/engine/automaton"
	"Go2NetSynth/internal/model"
)

// ApplyNoise draws a noise class for each clean record and rewrites the run
// accordingly. Deleted records stay in place and are only marked; reemitted
// and added records are followed by a marked copy; a transposed record
// swaps places with its successor while the timestamps keep their order.
func ApplyNoise[P packet[P]](rng *rand.Rand, packets []P, nm automaton.NoiseModel) []P {
	out := make([]P, 0, len(packets))
	for i := 0; i < len(packets); i++ {
		p := packets[i]
		switch nm.Draw(rng) {
		case model.NoiseDeleted:
			p.SetNoise(model.NoiseDeleted)
			out = append(out, p)
		case model.NoiseReemitted:
			dup := p.Clone()
			dup.SetNoise(model.NoiseReemitted)
			out = append(out, p, dup)
		case model.NoiseAdded:
			extra := p.Clone()
			extra.SetNoise(model.NoiseAdded)
			out = append(out, p, extra)
		case model.NoiseTransposed:
			if i+1 >= len(packets) {
				out = append(out, p)
				continue
			}
			q := packets[i+1]
			tp, tq := p.Timestamp(), q.Timestamp()
			q.SetTimestamp(tp)
			p.SetTimestamp(tq)
			p.SetNoise(model.NoiseTransposed)
			q.SetNoise(model.NoiseTransposed)
			out = append(out, q, p)
			i++
		default:
			out = append(out, p)
		}
	}
	return out
}
