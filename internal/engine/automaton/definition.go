package automaton

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// ErrMalformed is returned when a model file is not valid JSON or violates the model schema.
var ErrMalformed = errors.New("malformed automaton definition")

// JSONAutomaton is the on-disk representation of one learned automaton.
type JSONAutomaton struct {
	Protocol       string        `json:"protocol"`
	InitialState   int           `json:"initial_state"`
	AcceptingState *int          `json:"accepting_state,omitempty"`
	MaxSteps       int           `json:"max_steps,omitempty"`
	Edges          []JSONEdge    `json:"edges"`
	Noise          *JSONNoise    `json:"noise,omitempty"`
	Metadata       *JSONMetadata `json:"metadata,omitempty"`
}

// JSONEdge is one transition of a model file. The symbol string and the
// payload description are protocol specific.
type JSONEdge struct {
	Src      int          `json:"src"`
	Dst      int          `json:"dst"`
	P        float64      `json:"p"`
	Symbol   string       `json:"symbol"`
	Mu       []float64    `json:"mu"`
	Cov      [][]float64  `json:"cov"`
	Payloads JSONPayloads `json:"payloads"`
}

// Payload description types written by the learner.
const (
	PayloadsNone     = "NoPayload"
	PayloadsHexCodes = "HexCodes"
	PayloadsText     = "Text"
	PayloadsLengths  = "Lengths"
)

// JSONPayloads describes how an edge generates its payloads.
type JSONPayloads struct {
	Type     string   `json:"type"`
	Payloads []string `json:"payloads,omitempty"`
	Lengths  []int    `json:"lengths,omitempty"`
}

// JSONNoise holds the learned probability of each noise class.
type JSONNoise struct {
	None          float64 `json:"none"`
	Deletion      float64 `json:"deletion"`
	Reemission    float64 `json:"reemission"`
	Transposition float64 `json:"transposition"`
	Addition      float64 `json:"addition"`
}

// JSONMetadata records how the automaton was learned.
type JSONMetadata struct {
	SelectDstPorts []uint16 `json:"select_dst_ports"`
	IgnoreDstPorts []uint16 `json:"ignore_dst_ports"`
	InputFile      string   `json:"input_file,omitempty"`
	CreationTime   string   `json:"creation_time,omitempty"`
}

const modelSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["protocol", "initial_state", "edges"],
  "properties": {
    "protocol": {"type": "string"},
    "initial_state": {"type": "integer", "minimum": 0},
    "accepting_state": {"type": "integer", "minimum": 0},
    "max_steps": {"type": "integer", "minimum": 1},
    "edges": {"type": "array", "items": {"$ref": "#/definitions/edge"}},
    "noise": {
      "type": "object",
      "properties": {
        "none": {"type": "number", "minimum": 0},
        "deletion": {"type": "number", "minimum": 0},
        "reemission": {"type": "number", "minimum": 0},
        "transposition": {"type": "number", "minimum": 0},
        "addition": {"type": "number", "minimum": 0}
      },
      "additionalProperties": false
    },
    "metadata": {
      "type": "object",
      "properties": {
        "select_dst_ports": {"type": ["array", "null"], "items": {"type": "integer", "minimum": 0, "maximum": 65535}},
        "ignore_dst_ports": {"type": ["array", "null"], "items": {"type": "integer", "minimum": 0, "maximum": 65535}}
      }
    }
  },
  "definitions": {
    "edge": {
      "type": "object",
      "required": ["src", "dst", "p", "symbol", "mu", "cov", "payloads"],
      "properties": {
        "src": {"type": "integer", "minimum": 0},
        "dst": {"type": "integer", "minimum": 0},
        "p": {"type": "number", "minimum": 0},
        "symbol": {"type": "string", "minLength": 1},
        "mu": {"type": "array", "minItems": 1, "items": {"type": "number"}},
        "cov": {"type": "array", "items": {"type": "array", "items": {"type": "number"}}},
        "payloads": {
          "type": "object",
          "required": ["type"],
          "properties": {
            "type": {"enum": ["NoPayload", "HexCodes", "Text", "Lengths"]},
            "payloads": {"type": "array", "items": {"type": "string"}},
            "lengths": {"type": "array", "items": {"type": "integer", "minimum": 0}}
          }
        }
      }
    }
  }
}`

var loadSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(modelSchema))
})

// Decode validates raw model bytes against the model schema and decodes them.
func Decode(data []byte) (*JSONAutomaton, error) {
	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to compile model schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		// Not even parseable as JSON.
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrMalformed, strings.Join(msgs, "; "))
	}

	var def JSONAutomaton
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &def, nil
}

// Encode serializes a definition the way the learner writes it.
func Encode(def *JSONAutomaton) ([]byte, error) {
	return json.MarshalIndent(def, "", "    ")
}
