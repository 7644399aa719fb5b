package output

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"Go2NetSynth/internal/engine/protocol"
	"Go2NetSynth/internal/model"
)

func init() {
	// Register the concrete packet types carried by Record.Packets.
	gob.Register(&protocol.TCPPacketInfo{})
	gob.Register(&protocol.UDPPacketInfo{})
	gob.Register(&protocol.ICMPPacketInfo{})
}

// SummaryData describes the content of a gob run directory.
type SummaryData struct {
	TotalFlows   int            `json:"total_flows"`
	TotalPackets int            `json:"total_packets"`
	TotalBytes   uint64         `json:"total_bytes"`
	Protocols    map[string]int `json:"protocols"`
	Timestamp    string         `json:"timestamp"`
}

// GobWriter streams records in gob format into <root>/<time>/flows.dat and
// writes a summary.json next to it on Close.
type GobWriter struct {
	mu      sync.Mutex
	dir     string
	file    *os.File
	enc     *gob.Encoder
	summary SummaryData
}

// NewGobWriter creates the timestamped run directory and the data file.
func NewGobWriter(rootPath string) (*GobWriter, error) {
	dir := filepath.Join(rootPath, time.Now().Format("2006-01-02_15-04-05.000000"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run directory: %w", err)
	}
	path := filepath.Join(dir, "flows.dat")
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create data file '%s': %w", path, err)
	}
	return &GobWriter{
		dir:     dir,
		file:    file,
		enc:     gob.NewEncoder(file),
		summary: SummaryData{Protocols: make(map[string]int)},
	}, nil
}

// Dir returns the run directory.
func (w *GobWriter) Dir() string {
	return w.dir
}

func (w *GobWriter) Write(rec *model.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode flow %s to gob: %w", rec.ID, err)
	}
	w.summary.TotalFlows++
	w.summary.TotalPackets += len(rec.Packets)
	for _, p := range rec.Packets {
		w.summary.TotalBytes += uint64(p.PayloadSize())
	}
	w.summary.Protocols[rec.Flow.Protocol.String()]++
	return nil
}

func (w *GobWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("failed to close data file: %w", err)
	}

	w.summary.Timestamp = time.Now().UTC().Format(time.RFC3339)
	summaryFile, err := os.Create(filepath.Join(w.dir, "summary.json"))
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer summaryFile.Close()

	jsonEncoder := json.NewEncoder(summaryFile)
	jsonEncoder.SetIndent("", "  ")
	if err := jsonEncoder.Encode(w.summary); err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}
	return nil
}

// ReadGob decodes every record of a flows.dat file.
func ReadGob(path string) ([]*model.Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	dec := gob.NewDecoder(file)
	var records []*model.Record
	for {
		var rec model.Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return records, nil
			}
			return records, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		records = append(records, &rec)
	}
}
