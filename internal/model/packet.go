package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PacketDirection tells whether a packet goes from client to server or back.
type PacketDirection uint8

const (
	Forward  PacketDirection = iota // client to server
	Backward                        // server to client
)

func (d PacketDirection) String() string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}

// ParseDirection parses the arrow notation used in model symbols.
func ParseDirection(s string) (PacketDirection, error) {
	switch s {
	case ">":
		return Forward, nil
	case "<":
		return Backward, nil
	default:
		return 0, fmt.Errorf("invalid direction %q", s)
	}
}

// Arrow returns the model-file notation of the direction.
func (d PacketDirection) Arrow() string {
	if d == Forward {
		return ">"
	}
	return "<"
}

// NoiseType classifies how a packet deviates from the clean sampled sequence.
type NoiseType uint8

const (
	NoiseNone NoiseType = iota
	NoiseDeleted
	NoiseReemitted
	NoiseTransposed
	NoiseAdded
)

func (n NoiseType) String() string {
	switch n {
	case NoiseNone:
		return "none"
	case NoiseDeleted:
		return "deleted"
	case NoiseReemitted:
		return "reemitted"
	case NoiseTransposed:
		return "transposed"
	case NoiseAdded:
		return "added"
	default:
		return "unknown"
	}
}

// PayloadKind enumerates both the model-time and instance-time payload variants.
type PayloadKind uint8

const (
	PayloadEmpty PayloadKind = iota
	PayloadText
	PayloadReplay
	PayloadRandom
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadEmpty:
		return "Empty"
	case PayloadText:
		return "Text"
	case PayloadReplay:
		return "Replay"
	case PayloadRandom:
		return "Random"
	default:
		return "Unknown"
	}
}

// PayloadType describes how an edge generates payloads.
type PayloadType struct {
	Kind    PayloadKind
	Texts   []string
	Blobs   [][]byte
	Lengths []int
}

// MaxSize returns the largest payload, in bytes, the edge can produce.
func (t PayloadType) MaxSize() int {
	largest := 0
	switch t.Kind {
	case PayloadText:
		for _, s := range t.Texts {
			largest = max(largest, len(s))
		}
	case PayloadReplay:
		for _, b := range t.Blobs {
			largest = max(largest, len(b))
		}
	case PayloadRandom:
		for _, n := range t.Lengths {
			largest = max(largest, n)
		}
	}
	return largest
}

// Payload is the concrete payload chosen for one packet.
type Payload struct {
	Kind  PayloadKind
	Bytes []byte
	Len   int
}

// Size returns the payload length in bytes.
func (p Payload) Size() int {
	switch p.Kind {
	case PayloadReplay:
		return len(p.Bytes)
	case PayloadRandom:
		return p.Len
	default:
		return 0
	}
}

// Protocol is implemented by every protocol-specific packet-info record.
type Protocol interface {
	NoiseType() NoiseType
	Direction() PacketDirection
	Timestamp() time.Time
	PayloadSize() int
}

// PacketsIR is the intermediate representation handed to the encoding stage.
type PacketsIR[T Protocol] struct {
	ID      uuid.UUID
	Packets []T
	Flow    Flow
}
