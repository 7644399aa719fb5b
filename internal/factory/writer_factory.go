package factory

import (
	"fmt"
	"log"
	"sort"

	"Go2NetSynth/internal/config"
	"Go2NetSynth/internal/model"
)

// NamedWriter pairs a writer with the type it was created from.
type NamedWriter struct {
	Type   string
	Writer model.Writer
}

// WriterFactory creates a writer from its config definition.
type WriterFactory func(def config.WriterDef) (model.Writer, error)

// registry holds the mapping of writer types to their factory functions.
var registry = make(map[string]WriterFactory)

// RegisterWriter registers a new writer type with its factory function.
func RegisterWriter(name string, factory WriterFactory) {
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("writer type '%s' already registered", name))
	}
	registry[name] = factory
}

// Types lists the registered writer types.
func Types() []string {
	types := make([]string, 0, len(registry))
	for name := range registry {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}

// Create builds the enabled writers of cfg. An unknown type is a config
// error; a writer that fails to connect is logged and skipped.
func Create(cfg *config.Config) ([]NamedWriter, error) {
	var writers []NamedWriter
	for _, def := range cfg.Writers {
		if !def.Enabled {
			continue
		}
		factory, ok := registry[def.Type]
		if !ok {
			return nil, fmt.Errorf("unknown writer type: '%s'", def.Type)
		}
		w, err := factory(def)
		if err != nil {
			log.Printf("Warning: failed to create %s writer, skipping: %v", def.Type, err)
			continue
		}
		log.Printf("Created %s writer", def.Type)
		writers = append(writers, NamedWriter{Type: def.Type, Writer: w})
	}
	return writers, nil
}

// CloseAll closes every writer, logging failures.
func CloseAll(writers []NamedWriter) {
	for _, w := range writers {
		if err := w.Writer.Close(); err != nil {
			log.Printf("Error closing %s writer: %v", w.Type, err)
		}
	}
}
