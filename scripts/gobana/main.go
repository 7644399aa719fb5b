package main

import (
	"fmt"
	"log"
	"os"

	"Go2NetSynth/internal/output"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: go run ./scripts/gobana <flows.dat>")
		os.Exit(1)
	}

	records, err := output.ReadGob(os.Args[1])
	if err != nil {
		log.Fatalf("Failed to decode gob data: %v", err)
	}

	fmt.Printf("Decoded %d flows:\n", len(records))
	for _, rec := range records {
		view := output.NewRecordView(rec)
		f := view.Flow
		fmt.Printf("%s %s %s:%d -> %s:%d fwd=%d bwd=%d records=%d\n",
			view.ID, f.Protocol, f.SrcIP, f.SrcPort, f.DstIP, f.DstPort,
			f.FwdPacketsCount, f.BwdPacketsCount, len(view.Packets))
		for _, p := range view.Packets {
			fmt.Printf("  %s %-8s %-10s %-8s %d\n", p.Timestamp, p.Direction, p.Noise, p.PayloadKind, p.PayloadSize)
		}
	}
}
