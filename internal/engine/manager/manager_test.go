package manager

import (
	"context"
	"sync"
	"testing"
	"time"

	"Go2NetSynth/internal/engine/generator"
	"Go2NetSynth/internal/engine/library"
	"Go2NetSynth/internal/factory"
	"Go2NetSynth/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memWriter keeps every record it receives.
type memWriter struct {
	mu      sync.Mutex
	records []*model.Record
	closed  bool
}

func (w *memWriter) Write(rec *model.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.records = append(w.records, rec)
	return nil
}

func (w *memWriter) Close() error {
	w.closed = true
	return nil
}

var start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func newGenerator(t *testing.T) *generator.Generator {
	t.Helper()
	lib := library.New(nil)
	_, failures := lib.ImportDir("../../../testdata/models")
	require.Empty(t, failures)
	return generator.New(lib, 1234, generator.Options{Noise: true})
}

func run(t *testing.T, workers int, job Job) []*model.Record {
	t.Helper()
	w := &memWriter{}
	mgr := New(newGenerator(t), []factory.NamedWriter{{Type: "mem", Writer: w}}, workers, 4, nil)
	stats, err := mgr.Run(context.Background(), job)
	require.NoError(t, err)
	assert.Equal(t, job.Count, stats.Generated)
	assert.Zero(t, stats.Failed)
	return w.records
}

func TestRun_SameOutputForAnyWorkerCount(t *testing.T) {
	job := Job{Protocol: model.TCP, Count: 50, Start: start, Interval: time.Second}
	single := run(t, 1, job)
	many := run(t, 8, job)
	require.Len(t, single, 50)
	assert.Equal(t, single, many)

	for i, rec := range single {
		assert.Equal(t, start.Add(time.Duration(i)*time.Second), rec.Flow.Data.Timestamp)
	}
}

func TestRun_MatchesSubStreams(t *testing.T) {
	records := run(t, 3, Job{Protocol: model.ICMP, Count: 5, Start: start})
	gen := newGenerator(t)
	for i, rec := range records {
		want, err := gen.GenerateWith(generator.SubStream(gen.Seed(), uint64(i)), model.ICMP, nil, start)
		require.NoError(t, err)
		assert.Equal(t, want, rec)
	}
}

func TestRun_NoAutomaton(t *testing.T) {
	gen := generator.New(library.New(nil), 1, generator.Options{})
	mgr := New(gen, nil, 2, 0, nil)
	_, err := mgr.Run(context.Background(), Job{Protocol: model.UDP, Count: 10, Start: start})
	assert.ErrorIs(t, err, library.ErrNoAutomaton)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w := &memWriter{}
	mgr := New(newGenerator(t), []factory.NamedWriter{{Type: "mem", Writer: w}}, 2, 1, nil)
	stats, err := mgr.Run(ctx, Job{Protocol: model.TCP, Count: 100000, Start: start})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, stats.Generated, 100000)
}

func TestRun_ZeroFlows(t *testing.T) {
	records := run(t, 4, Job{Protocol: model.UDP, Count: 0, Start: start})
	assert.Empty(t, records)
}
