package api

import (
	"net/http"

	"Go2NetSynth/internal/engine/generator"
	"Go2NetSynth/internal/engine/library"
	"Go2NetSynth/internal/metrics"
	"Go2NetSynth/internal/query"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler holds the dependencies of the HTTP API.
type Handler struct {
	gen       *generator.Generator
	lib       *library.Library
	metrics   *metrics.Metrics
	querier   query.Querier
	maxStream int
	upgrader  websocket.Upgrader
}

// NewHandler creates the API handler. querier and m may be nil; without a
// querier the flow summary route answers 503.
func NewHandler(gen *generator.Generator, lib *library.Library, querier query.Querier, m *metrics.Metrics, maxStream int) *Handler {
	return &Handler{
		gen:       gen,
		lib:       lib,
		metrics:   m,
		querier:   querier,
		maxStream: maxStream,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Router returns the routes of the API.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/generate", h.generateHandler).Methods("POST")
	r.HandleFunc("/api/v1/automata", h.listAutomataHandler).Methods("GET")
	r.HandleFunc("/api/v1/automata/{protocol}/{index:[0-9]+}", h.exportAutomatonHandler).Methods("GET")
	r.HandleFunc("/api/v1/stream", h.streamHandler).Methods("GET")
	r.HandleFunc("/api/v1/flows/summary", h.summaryHandler).Methods("GET")
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}).Methods("GET")
	if h.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.metrics.Registry(), promhttp.HandlerOpts{EnableOpenMetrics: true}))
	}
	return r
}
