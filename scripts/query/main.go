package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"Go2NetSynth/internal/config"
	"Go2NetSynth/internal/query"
)

type generateRequest struct {
	Protocol string  `json:"protocol"`
	Start    string  `json:"start,omitempty"`
	Seed     *uint64 `json:"seed,omitempty"`
}

func main() {
	mode := flag.String("mode", "generate", "Query mode: 'generate' or 'summary' via the HTTP API, 'direct' to query ClickHouse directly.")
	apiAddr := flag.String("api", "http://localhost:8080", "Base URL of ns-synth-api.")
	protocol := flag.String("protocol", "TCP", "Protocol to generate (generate mode).")
	seed := flag.Int64("seed", -1, "Seed of the generated flow; a negative value uses the server's shared stream.")
	configPath := flag.String("config", "configs/config.yaml", "Config file holding the ClickHouse writer (direct mode).")
	since := flag.String("since", time.Now().UTC().Add(-24*time.Hour).Format(time.RFC3339), "Start of the summary window (RFC3339).")
	until := flag.String("until", time.Now().UTC().Format(time.RFC3339), "End of the summary window (RFC3339).")
	flag.Parse()

	log.Printf("Running in '%s' mode.", *mode)

	switch *mode {
	case "generate":
		req := generateRequest{Protocol: *protocol}
		if *seed >= 0 {
			s := uint64(*seed)
			req.Seed = &s
		}
		body, err := json.Marshal(req)
		if err != nil {
			log.Fatalf("Error marshalling request body: %v", err)
		}
		printResponse(http.Post(*apiAddr+"/api/v1/generate", "application/json", bytes.NewReader(body)))
	case "summary":
		q := url.Values{"since": {*since}, "until": {*until}}
		printResponse(http.Get(*apiAddr + "/api/v1/flows/summary?" + q.Encode()))
	case "direct":
		directSummary(*configPath, *since, *until)
	default:
		log.Fatalf("Invalid mode: %s. Use 'generate', 'summary' or 'direct'.", *mode)
	}
}

func printResponse(resp *http.Response, err error) {
	if err != nil {
		log.Fatalf("Error sending request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Error reading response body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("API returned non-200 status code: %d\nResponse: %s", resp.StatusCode, string(body))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		log.Printf("Could not prettify JSON, printing raw response:")
		fmt.Println(string(body))
		return
	}
	fmt.Println(pretty.String())
}

func directSummary(configPath, sinceStr, untilStr string) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	var chCfg *config.ClickHouseConfig
	for _, w := range cfg.Writers {
		if w.Type == "clickhouse" {
			chCfg = &w.ClickHouse
			break
		}
	}
	if chCfg == nil {
		log.Fatalf("No clickhouse writer in %s", configPath)
	}

	since, err := time.Parse(time.RFC3339, sinceStr)
	if err != nil {
		log.Fatalf("Invalid since time: %v", err)
	}
	until, err := time.Parse(time.RFC3339, untilStr)
	if err != nil {
		log.Fatalf("Invalid until time: %v", err)
	}

	q, err := query.NewClickHouseQuerier(*chCfg)
	if err != nil {
		log.Fatalf("Error connecting to ClickHouse: %v", err)
	}
	defer q.Close()

	summaries, err := q.Summarize(context.Background(), since, until)
	if err != nil {
		log.Fatalf("Error executing query: %v", err)
	}
	if len(summaries) == 0 {
		log.Println("No data found for the specified window.")
		return
	}
	for _, s := range summaries {
		fmt.Printf("Protocol: %s\n", s.Protocol)
		fmt.Printf("  Flows: %d\n", s.Flows)
		fmt.Printf("  FwdPackets: %d  BwdPackets: %d\n", s.FwdPackets, s.BwdPackets)
		fmt.Printf("  PayloadBytes: %d\n", s.PayloadBytes)
		fmt.Printf("  NoisyRecords: %d\n", s.NoisyRecords)
		fmt.Println("---------------------")
	}
}
