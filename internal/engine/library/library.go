package library

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"Go2NetSynth/internal/engine/automaton"
	"Go2NetSynth/internal/engine/protocol"
	"Go2NetSynth/internal/metrics"
	"Go2NetSynth/internal/model"
)

// ModelExtension is the file extension recognized by ImportDir.
const ModelExtension = ".json"

// ErrorKind classifies why a model file could not be imported.
type ErrorKind int

const (
	KindIO ErrorKind = iota
	KindSyntax
	KindUnknownProtocol
	KindInvalidSymbol
	KindInvalidAutomaton
)

func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindSyntax:
		return "syntax"
	case KindUnknownProtocol:
		return "unknown protocol"
	case KindInvalidSymbol:
		return "invalid symbol"
	case KindInvalidAutomaton:
		return "invalid automaton"
	default:
		return "unknown"
	}
}

// ImportError reports the failure to import one model file.
type ImportError struct {
	Path string
	Kind ErrorKind
	Err  error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("cannot import %s (%s): %v", e.Path, e.Kind, e.Err)
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// Library holds the imported automata of every protocol. It is filled once
// at startup and only read afterwards; reads may happen concurrently.
type Library struct {
	mu   sync.RWMutex
	tcp  []*automaton.TimedAutomaton[protocol.TCPSymbol]
	udp  []*automaton.TimedAutomaton[protocol.UDPSymbol]
	icmp []*automaton.TimedAutomaton[protocol.ICMPSymbol]

	metrics *metrics.Metrics
}

// New creates an empty library. m may be nil.
func New(m *metrics.Metrics) *Library {
	return &Library{metrics: m}
}

// Import reads one model file and adds the automaton it defines.
func (l *Library) Import(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ImportError{Path: path, Kind: KindIO, Err: err}
	}
	return l.ImportBytes(path, data)
}

// ImportBytes adds the automaton defined by data; name is used in errors.
func (l *Library) ImportBytes(name string, data []byte) error {
	def, err := automaton.Decode(data)
	if err != nil {
		return &ImportError{Path: name, Kind: KindSyntax, Err: err}
	}

	kind, err := model.ParseProtocolKind(def.Protocol)
	if err != nil {
		return &ImportError{Path: name, Kind: KindUnknownProtocol, Err: err}
	}

	switch kind {
	case model.TCP:
		a, err := automaton.Import(def, protocol.ParseTCPSymbol, protocol.TCPTimeUnit)
		if err != nil {
			return classify(name, err)
		}
		l.mu.Lock()
		l.tcp = append(l.tcp, a)
		l.mu.Unlock()
	case model.UDP:
		a, err := automaton.Import(def, protocol.ParseUDPSymbol, protocol.UDPTimeUnit)
		if err != nil {
			return classify(name, err)
		}
		l.mu.Lock()
		l.udp = append(l.udp, a)
		l.mu.Unlock()
	case model.ICMP:
		a, err := automaton.Import(def, protocol.ParseICMPSymbol, protocol.ICMPTimeUnit)
		if err != nil {
			return classify(name, err)
		}
		l.mu.Lock()
		l.icmp = append(l.icmp, a)
		l.mu.Unlock()
	}
	return nil
}

func classify(name string, err error) *ImportError {
	if errors.Is(err, automaton.ErrInvalidSymbol) {
		return &ImportError{Path: name, Kind: KindInvalidSymbol, Err: err}
	}
	return &ImportError{Path: name, Kind: KindInvalidAutomaton, Err: err}
}

// ImportDir imports every model file of dir (non-recursive). A failing file
// is logged and skipped. It returns the number of automata loaded and the
// per-file failures.
func (l *Library) ImportDir(dir string) (int, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, []error{&ImportError{Path: dir, Kind: KindIO, Err: err}}
	}

	// os.ReadDir sorts by name, so the load order is stable.
	loaded := 0
	var failures []error
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ModelExtension) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := l.Import(path); err != nil {
			log.Printf("Could not load automaton %s: %v", entry.Name(), err)
			l.metrics.ModelImported(false)
			failures = append(failures, err)
			continue
		}
		log.Printf("Automaton %s is loaded", entry.Name())
		l.metrics.ModelImported(true)
		loaded++
	}
	log.Printf("%d automata have been loaded", loaded)
	l.metrics.SetAutomata(l.Counts())
	return loaded, failures
}

// Count returns the number of automata loaded for kind.
func (l *Library) Count(kind model.ProtocolKind) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	switch kind {
	case model.TCP:
		return len(l.tcp)
	case model.UDP:
		return len(l.udp)
	case model.ICMP:
		return len(l.icmp)
	default:
		return 0
	}
}

// Counts returns the number of automata per protocol tag.
func (l *Library) Counts() map[string]int {
	counts := make(map[string]int, len(model.AllProtocols))
	for _, k := range model.AllProtocols {
		counts[k.String()] = l.Count(k)
	}
	return counts
}

// Protocols lists the protocols that have at least one automaton.
func (l *Library) Protocols() []model.ProtocolKind {
	var out []model.ProtocolKind
	for _, k := range model.AllProtocols {
		if l.Count(k) > 0 {
			out = append(out, k)
		}
	}
	return out
}

func (l *Library) TCP() []*automaton.TimedAutomaton[protocol.TCPSymbol] {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*automaton.TimedAutomaton[protocol.TCPSymbol](nil), l.tcp...)
}

func (l *Library) UDP() []*automaton.TimedAutomaton[protocol.UDPSymbol] {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*automaton.TimedAutomaton[protocol.UDPSymbol](nil), l.udp...)
}

func (l *Library) ICMP() []*automaton.TimedAutomaton[protocol.ICMPSymbol] {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*automaton.TimedAutomaton[protocol.ICMPSymbol](nil), l.icmp...)
}

// Info describes one loaded automaton.
type Info struct {
	Protocol     string   `json:"protocol"`
	Index        int      `json:"index"`
	States       int      `json:"states"`
	Edges        int      `json:"edges"`
	Noisy        bool     `json:"noisy"`
	SelectPorts  []uint16 `json:"select_dst_ports,omitempty"`
	IgnorePorts  []uint16 `json:"ignore_dst_ports,omitempty"`
	InputFile    string   `json:"input_file,omitempty"`
	CreationTime string   `json:"creation_time,omitempty"`
}

func describe[S automaton.Symbol](kind model.ProtocolKind, list []*automaton.TimedAutomaton[S]) []Info {
	infos := make([]Info, len(list))
	for i, a := range list {
		infos[i] = Info{
			Protocol:     kind.String(),
			Index:        i,
			States:       len(a.States()),
			Edges:        len(a.Edges()),
			Noisy:        a.Noise.Enabled(),
			SelectPorts:  a.Metadata.SelectDstPorts,
			IgnorePorts:  a.Metadata.IgnoreDstPorts,
			InputFile:    a.Metadata.InputFile,
			CreationTime: a.Metadata.CreationTime,
		}
	}
	return infos
}

// Infos describes every loaded automaton, grouped by protocol.
func (l *Library) Infos() []Info {
	var infos []Info
	infos = append(infos, describe(model.TCP, l.TCP())...)
	infos = append(infos, describe(model.UDP, l.UDP())...)
	infos = append(infos, describe(model.ICMP, l.ICMP())...)
	return infos
}

func export[S automaton.Symbol](list []*automaton.TimedAutomaton[S], index int) (*automaton.JSONAutomaton, error) {
	if index < 0 || index >= len(list) {
		return nil, fmt.Errorf("automaton %d: %w", index, ErrNoAutomaton)
	}
	return list[index].Export(), nil
}

// Export returns the model document of the index-th automaton of kind.
func (l *Library) Export(kind model.ProtocolKind, index int) (*automaton.JSONAutomaton, error) {
	switch kind {
	case model.TCP:
		return export(l.TCP(), index)
	case model.UDP:
		return export(l.UDP(), index)
	case model.ICMP:
		return export(l.ICMP(), index)
	default:
		return nil, fmt.Errorf("protocol %v: %w", kind, ErrNoAutomaton)
	}
}
