package output

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"Go2NetSynth/internal/config"
	"Go2NetSynth/internal/model"
	"Go2NetSynth/internal/query"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const createSyntheticFlowsTableStatement = `
CREATE TABLE IF NOT EXISTS synthetic_flows (
    Timestamp       DateTime64(6),
    ID              String,
    Protocol        String,
    SrcIP           String,
    DstIP           String,
    SrcPort         UInt16,
    DstPort         UInt16,
    FwdPackets      UInt32,
    BwdPackets      UInt32,
    FwdBytes        UInt32,
    BwdBytes        UInt32,
    DurationMicros  Int64,
    Records         UInt32,
    NoisyRecords    UInt32
) ENGINE = MergeTree()
PARTITION BY toYYYYMM(Timestamp)
ORDER BY (Protocol, Timestamp);
`

// clickHouseBatchSize is the number of flows buffered before a batch insert.
const clickHouseBatchSize = 1000

// ClickHouseWriter stores one row per generated flow in ClickHouse.
type ClickHouseWriter struct {
	mu      sync.Mutex
	conn    driver.Conn
	pending []*model.Record
	total   int
}

// NewClickHouseWriter connects and makes sure the synthetic_flows table exists.
func NewClickHouseWriter(cfg config.ClickHouseConfig) (*ClickHouseWriter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	conn, err := query.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}

	if err := conn.Exec(ctx, createSyntheticFlowsTableStatement); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create synthetic_flows table: %w", err)
	}
	log.Println("Successfully connected to ClickHouse and ensured synthetic_flows table exists.")

	return &ClickHouseWriter{conn: conn}, nil
}

func (w *ClickHouseWriter) Write(rec *model.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, rec)
	if len(w.pending) < clickHouseBatchSize {
		return nil
	}
	return w.flush()
}

func (w *ClickHouseWriter) flush() error {
	if len(w.pending) == 0 {
		return nil
	}
	batch, err := w.conn.PrepareBatch(context.Background(), "INSERT INTO synthetic_flows")
	if err != nil {
		return fmt.Errorf("failed to prepare batch: %w", err)
	}

	for _, rec := range w.pending {
		d := rec.Flow.Data
		noisy := 0
		for _, p := range rec.Packets {
			if p.NoiseType() != model.NoiseNone {
				noisy++
			}
		}
		err = batch.Append(
			d.Timestamp,
			rec.ID.String(),
			rec.Flow.Protocol.String(),
			d.SrcIP.String(),
			d.DstIP.String(),
			d.SrcPort,
			d.DstPort,
			d.FwdPacketsCount,
			d.BwdPacketsCount,
			d.FwdTotalPayloadLength,
			d.BwdTotalPayloadLength,
			d.TotalDuration.Microseconds(),
			uint32(len(rec.Packets)),
			uint32(noisy),
		)
		if err != nil {
			return fmt.Errorf("failed to append flow to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}
	w.total += len(w.pending)
	log.Printf("Wrote %d flows to ClickHouse", len(w.pending))
	w.pending = w.pending[:0]
	return nil
}

func (w *ClickHouseWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.flush()
	if cerr := w.conn.Close(); err == nil && cerr != nil {
		err = cerr
	}
	return err
}
