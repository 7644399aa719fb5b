package api

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"Go2NetSynth/internal/engine/generator"
	"Go2NetSynth/internal/model"
	"Go2NetSynth/internal/output"

	"github.com/gorilla/websocket"
	"google.golang.org/protobuf/encoding/protojson"
)

// streamHandler upgrades to a websocket and sends count generated flows,
// one JSON text message each, followed by a normal close. Flow i starts at
// start + i*interval (start defaults to now, interval to zero). With a seed
// the stream equals a batch run of the same seed, start and interval.
func (h *Handler) streamHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	kind, err := model.ParseProtocolKind(q.Get("protocol"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	count := 1
	if s := q.Get("count"); s != "" {
		if count, err = strconv.Atoi(s); err != nil || count <= 0 {
			http.Error(w, fmt.Sprintf("invalid count %q", s), http.StatusBadRequest)
			return
		}
	}
	if count > h.maxStream {
		http.Error(w, fmt.Sprintf("count exceeds the limit of %d", h.maxStream), http.StatusBadRequest)
		return
	}
	var seed *uint64
	if s := q.Get("seed"); s != "" {
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid seed %q", s), http.StatusBadRequest)
			return
		}
		seed = &v
	}
	start := time.Now()
	if s := q.Get("start"); s != "" {
		if start, err = time.Parse(time.RFC3339, s); err != nil {
			http.Error(w, fmt.Sprintf("invalid start: %v", err), http.StatusBadRequest)
			return
		}
	}
	var interval time.Duration
	if s := q.Get("interval"); s != "" {
		if interval, err = time.ParseDuration(s); err != nil || interval < 0 {
			http.Error(w, fmt.Sprintf("invalid interval %q", s), http.StatusBadRequest)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for i := 0; i < count; i++ {
		if r.Context().Err() != nil {
			return
		}
		at := start.Add(time.Duration(i) * interval)
		var rec *model.Record
		if seed != nil {
			rec, err = h.gen.GenerateWith(generator.SubStream(*seed, uint64(i)), kind, nil, at)
		} else {
			rec, err = h.gen.Generate(kind, nil, at)
		}
		if err != nil {
			msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error())
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return
		}
		msg, err := output.ToStruct(rec)
		if err != nil {
			log.Printf("Failed to encode flow %s: %v", rec.ID, err)
			return
		}
		data, err := protojson.Marshal(msg)
		if err != nil {
			log.Printf("Failed to marshal flow %s: %v", rec.ID, err)
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("Stream client went away: %v", err)
			return
		}
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
