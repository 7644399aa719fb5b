package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"Go2NetSynth/internal/engine/automaton"
	"Go2NetSynth/internal/engine/generator"
	"Go2NetSynth/internal/engine/library"
	"Go2NetSynth/internal/model"
	"Go2NetSynth/internal/output"

	"github.com/gorilla/mux"
	"google.golang.org/protobuf/encoding/protojson"
)

// FlowRequest is an explicit flow descriptor supplied by a client.
type FlowRequest struct {
	SrcIP                 string `json:"src_ip"`
	DstIP                 string `json:"dst_ip"`
	SrcPort               uint16 `json:"src_port"`
	DstPort               uint16 `json:"dst_port"`
	RecordedTTLClient     uint8  `json:"recorded_ttl_client"`
	RecordedTTLServer     uint8  `json:"recorded_ttl_server"`
	InitialTTLClient      uint8  `json:"initial_ttl_client"`
	InitialTTLServer      uint8  `json:"initial_ttl_server"`
	FwdPacketsCount       uint32 `json:"fwd_packets_count"`
	BwdPacketsCount       uint32 `json:"bwd_packets_count"`
	FwdTotalPayloadLength uint32 `json:"fwd_total_payload_length"`
	BwdTotalPayloadLength uint32 `json:"bwd_total_payload_length"`
	Timestamp             string `json:"timestamp"`
	TotalDurationMicros   int64  `json:"total_duration_us"`
}

// GenerateRequest is the body of POST /api/v1/generate.
type GenerateRequest struct {
	Protocol string       `json:"protocol"`
	Start    string       `json:"start,omitempty"`
	Flow     *FlowRequest `json:"flow,omitempty"`
	Seed     *uint64      `json:"seed,omitempty"`
}

// FlowData converts the request into a flow descriptor.
func (f *FlowRequest) FlowData() (*model.FlowData, error) {
	src, dst := net.ParseIP(f.SrcIP), net.ParseIP(f.DstIP)
	if src == nil || dst == nil {
		return nil, fmt.Errorf("invalid flow endpoints %q -> %q", f.SrcIP, f.DstIP)
	}
	ts, err := time.Parse(time.RFC3339Nano, f.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("invalid flow timestamp: %w", err)
	}
	return &model.FlowData{
		SrcIP:                 src,
		DstIP:                 dst,
		SrcPort:               f.SrcPort,
		DstPort:               f.DstPort,
		RecordedTTLClient:     f.RecordedTTLClient,
		RecordedTTLServer:     f.RecordedTTLServer,
		InitialTTLClient:      f.InitialTTLClient,
		InitialTTLServer:      f.InitialTTLServer,
		FwdPacketsCount:       f.FwdPacketsCount,
		BwdPacketsCount:       f.BwdPacketsCount,
		FwdTotalPayloadLength: f.FwdTotalPayloadLength,
		BwdTotalPayloadLength: f.BwdTotalPayloadLength,
		Timestamp:             ts,
		TotalDuration:         time.Duration(f.TotalDurationMicros) * time.Microsecond,
	}, nil
}

// generateHandler samples one flow and returns it as JSON.
func (h *Handler) generateHandler(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read request body: %v", err), http.StatusBadRequest)
		return
	}
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, fmt.Sprintf("failed to decode request: %v", err), http.StatusBadRequest)
		return
	}

	kind, err := model.ParseProtocolKind(req.Protocol)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	start := time.Now()
	if req.Start != "" {
		if start, err = time.Parse(time.RFC3339Nano, req.Start); err != nil {
			http.Error(w, fmt.Sprintf("invalid start time: %v", err), http.StatusBadRequest)
			return
		}
	}
	var flow *model.FlowData
	if req.Flow != nil {
		if flow, err = req.Flow.FlowData(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	var rec *model.Record
	if req.Seed != nil {
		rec, err = h.gen.GenerateWith(generator.SubStream(*req.Seed, 0), kind, flow, start)
	} else {
		rec, err = h.gen.Generate(kind, flow, start)
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to generate flow: %v", err), statusOf(err))
		return
	}
	h.writeRecord(w, rec)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, library.ErrNoAutomaton):
		return http.StatusNotFound
	case errors.Is(err, automaton.ErrEmptyProduct),
		errors.Is(err, automaton.ErrProductTooLarge),
		errors.Is(err, automaton.ErrStepLimit):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeRecord(w http.ResponseWriter, rec *model.Record) {
	msg, err := output.ToStruct(rec)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to encode flow: %v", err), http.StatusInternalServerError)
		return
	}
	jsonBytes, err := protojson.Marshal(msg)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(jsonBytes)
}

// listAutomataHandler describes the loaded automata.
func (h *Handler) listAutomataHandler(w http.ResponseWriter, r *http.Request) {
	resp := struct {
		Counts   map[string]int `json:"counts"`
		Automata []library.Info `json:"automata"`
	}{
		Counts:   h.lib.Counts(),
		Automata: h.lib.Infos(),
	}
	writeJSON(w, resp)
}

// exportAutomatonHandler returns one automaton in the model file format.
func (h *Handler) exportAutomatonHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	kind, err := model.ParseProtocolKind(vars["protocol"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid index: %v", err), http.StatusBadRequest)
		return
	}
	def, err := h.lib.Export(kind, index)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	data, err := automaton.Encode(def)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to encode automaton: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// summaryHandler aggregates the flows stored in ClickHouse. The optional
// since and until parameters are RFC 3339 times.
func (h *Handler) summaryHandler(w http.ResponseWriter, r *http.Request) {
	if h.querier == nil {
		http.Error(w, "no ClickHouse writer is configured", http.StatusServiceUnavailable)
		return
	}
	var since, until time.Time
	var err error
	if s := r.URL.Query().Get("since"); s != "" {
		if since, err = time.Parse(time.RFC3339, s); err != nil {
			http.Error(w, fmt.Sprintf("invalid since: %v", err), http.StatusBadRequest)
			return
		}
	}
	if s := r.URL.Query().Get("until"); s != "" {
		if until, err = time.Parse(time.RFC3339, s); err != nil {
			http.Error(w, fmt.Sprintf("invalid until: %v", err), http.StatusBadRequest)
			return
		}
	}
	summaries, err := h.querier.Summarize(r.Context(), since, until)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to query flows: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, summaries)
}

func writeJSON(w http.ResponseWriter, v any) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to marshal response: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(jsonBytes)
}
