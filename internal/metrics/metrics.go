package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "ns_synth"

// Metrics groups the collectors of the synthesizer. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	modelsImported *prometheus.CounterVec
	automata       *prometheus.GaugeVec
	flowsGenerated *prometheus.CounterVec
	packetsSampled *prometheus.CounterVec
	samplingErrors *prometheus.CounterVec
	packetsPerFlow *prometheus.HistogramVec
	writerErrors   *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go
// runtime collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		modelsImported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_files_total",
			Help:      "Model files attempted, by outcome.",
		}, []string{"outcome"}),
		automata: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "automata_loaded",
			Help:      "Automata loaded per protocol.",
		}, []string{"protocol"}),
		flowsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flows_generated_total",
			Help:      "Flows generated per protocol.",
		}, []string{"protocol"}),
		packetsSampled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_generated_total",
			Help:      "Packet-info records generated per protocol.",
		}, []string{"protocol"}),
		samplingErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sampling_errors_total",
			Help:      "Failed sampling attempts per protocol.",
		}, []string{"protocol"}),
		packetsPerFlow: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "packets_per_flow",
			Help:      "Number of packet-info records per generated flow.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"protocol"}),
		writerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writer_errors_total",
			Help:      "Failed writes per writer type.",
		}, []string{"writer"}),
	}
	m.registry.MustRegister(
		m.modelsImported,
		m.automata,
		m.flowsGenerated,
		m.packetsSampled,
		m.samplingErrors,
		m.packetsPerFlow,
		m.writerErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry to expose, e.g. through promhttp.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ModelImported(ok bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if ok {
		outcome = "loaded"
	}
	m.modelsImported.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetAutomata(counts map[string]int) {
	if m == nil {
		return
	}
	for proto, n := range counts {
		m.automata.WithLabelValues(proto).Set(float64(n))
	}
}

func (m *Metrics) FlowGenerated(proto string, packets int) {
	if m == nil {
		return
	}
	m.flowsGenerated.WithLabelValues(proto).Inc()
	m.packetsSampled.WithLabelValues(proto).Add(float64(packets))
	m.packetsPerFlow.WithLabelValues(proto).Observe(float64(packets))
}

func (m *Metrics) SamplingFailed(proto string) {
	if m == nil {
		return
	}
	m.samplingErrors.WithLabelValues(proto).Inc()
}

func (m *Metrics) WriteFailed(writer string) {
	if m == nil {
		return
	}
	m.writerErrors.WithLabelValues(writer).Inc()
}
