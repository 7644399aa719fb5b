package model

import "github.com/google/uuid"

// Record is the protocol-erased view of a PacketsIR consumed by writers.
type Record struct {
	ID      uuid.UUID
	Flow    Flow
	Packets []Protocol
}

// Erase converts a typed PacketsIR into a Record.
func Erase[T Protocol](ir *PacketsIR[T]) *Record {
	packets := make([]Protocol, len(ir.Packets))
	for i, p := range ir.Packets {
		packets[i] = p
	}
	return &Record{ID: ir.ID, Flow: ir.Flow, Packets: packets}
}

// Writer defines a generic interface for persisting or forwarding generated flows.
type Writer interface {
	// Write takes one generated flow and persists or publishes it.
	Write(record *Record) error

	// Close flushes and releases the underlying resources.
	Close() error
}
