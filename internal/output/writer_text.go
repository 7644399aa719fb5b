package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"Go2NetSynth/internal/model"
)

// TextWriter appends generated flows to a JSON-lines file.
type TextWriter struct {
	mu    sync.Mutex
	path  string
	file  *os.File
	buf   *bufio.Writer
	enc   *json.Encoder
	total int
}

// NewTextWriter creates rootPath if needed and opens a timestamped
// flows_<time>.jsonl file inside it.
func NewTextWriter(rootPath string) (*TextWriter, error) {
	if err := os.MkdirAll(rootPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	name := fmt.Sprintf("flows_%s.jsonl", time.Now().Format("2006-01-02_15-04-05.000000"))
	path := filepath.Join(rootPath, name)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file '%s': %w", path, err)
	}
	buf := bufio.NewWriter(file)
	return &TextWriter{path: path, file: file, buf: buf, enc: json.NewEncoder(buf)}, nil
}

// Path returns the file the writer appends to.
func (w *TextWriter) Path() string {
	return w.path
}

func (w *TextWriter) Write(rec *model.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(NewRecordView(rec)); err != nil {
		return fmt.Errorf("failed to write flow %s: %w", rec.ID, err)
	}
	w.total++
	return nil
}

func (w *TextWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.buf.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("failed to flush %s: %w", w.path, err)
	}
	log.Printf("Successfully wrote %d flows to %s", w.total, w.path)
	return w.file.Close()
}
