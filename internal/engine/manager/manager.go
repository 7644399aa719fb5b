package manager

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"Go2NetSynth/internal/engine/generator"
	"Go2NetSynth/internal/engine/library"
	"Go2NetSynth/internal/factory"
	"Go2NetSynth/internal/metrics"
	"Go2NetSynth/internal/model"
)

// Job describes one batch run.
type Job struct {
	Protocol model.ProtocolKind
	Count    int
	Start    time.Time
	// Interval separates the start times of consecutive flows.
	Interval time.Duration
}

// Stats summarizes a finished batch run.
type Stats struct {
	Generated int
	Failed    int
	Packets   int
	Elapsed   time.Duration
}

// result carries one generated flow from a worker to the collector.
type result struct {
	index  int
	record *model.Record
	err    error
}

// Manager runs a worker pool that generates flows and fans them out to
// writers. Flow i always uses the sub-stream i of the generator seed, so
// the output is the same for any number of workers.
type Manager struct {
	gen     *generator.Generator
	writers []factory.NamedWriter
	metrics *metrics.Metrics

	numWorkers        int
	sizeOfResultQueue int
}

// New creates a manager. m may be nil.
func New(gen *generator.Generator, writers []factory.NamedWriter, numWorkers, sizeOfResultQueue int, m *metrics.Metrics) *Manager {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if sizeOfResultQueue <= 0 {
		sizeOfResultQueue = numWorkers
	}
	return &Manager{
		gen:               gen,
		writers:           writers,
		metrics:           m,
		numWorkers:        numWorkers,
		sizeOfResultQueue: sizeOfResultQueue,
	}
}

// Run generates job.Count flows and writes them, in index order, to every
// writer. A flow whose sampling fails is logged and skipped; an empty
// library aborts the run. Cancelling ctx stops the run after the flows
// already in flight.
func (m *Manager) Run(ctx context.Context, job Job) (Stats, error) {
	began := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan int)
	results := make(chan result, m.sizeOfResultQueue)

	// 1. Start the workers
	var workerWg sync.WaitGroup
	workerWg.Add(m.numWorkers)
	for i := 0; i < m.numWorkers; i++ {
		go m.worker(ctx, job, jobs, results, &workerWg)
	}
	log.Printf("Manager started with %d workers for %d %s flows.", m.numWorkers, job.Count, job.Protocol)

	// 2. Feed flow indices
	go func() {
		defer close(jobs)
		for i := 0; i < job.Count; i++ {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		workerWg.Wait()
		close(results)
	}()

	// 3. Collect in order and fan out to writers
	var stats Stats
	var fatal error
	pending := make(map[int]result)
	next := 0
	for r := range results {
		pending[r.index] = r
		for {
			r, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++
			if fatal != nil {
				continue
			}
			if r.err != nil {
				if errors.Is(r.err, library.ErrNoAutomaton) {
					fatal = r.err
					cancel()
					continue
				}
				log.Printf("Could not generate flow %d: %v", r.index, r.err)
				stats.Failed++
				continue
			}
			stats.Generated++
			stats.Packets += len(r.record.Packets)
			m.write(r.record)
		}
	}

	stats.Elapsed = time.Since(began)
	if fatal != nil {
		return stats, fatal
	}
	if err := ctx.Err(); err != nil && stats.Generated+stats.Failed < job.Count {
		return stats, fmt.Errorf("run interrupted after %d flows: %w", stats.Generated+stats.Failed, err)
	}
	log.Printf("Generated %d flows (%d packets, %d failed) in %s.", stats.Generated, stats.Packets, stats.Failed, stats.Elapsed)
	return stats, nil
}

func (m *Manager) worker(ctx context.Context, job Job, jobs <-chan int, results chan<- result, wg *sync.WaitGroup) {
	defer wg.Done()
	seed := m.gen.Seed()
	for i := range jobs {
		rng := generator.SubStream(seed, uint64(i))
		start := job.Start.Add(time.Duration(i) * job.Interval)
		rec, err := m.gen.GenerateWith(rng, job.Protocol, nil, start)
		select {
		case results <- result{index: i, record: rec, err: err}:
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) write(rec *model.Record) {
	for _, w := range m.writers {
		if err := w.Writer.Write(rec); err != nil {
			log.Printf("Error writing flow %s to %s writer: %v", rec.ID, w.Type, err)
			m.metrics.WriteFailed(w.Type)
		}
	}
}
