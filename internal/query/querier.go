package query

import (
	"context"
	"fmt"
	"strings"
	"time"

	"Go2NetSynth/internal/config"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ProtocolSummary aggregates the stored synthetic flows of one protocol.
type ProtocolSummary struct {
	Protocol     string `json:"protocol"`
	Flows        uint64 `json:"flows"`
	FwdPackets   uint64 `json:"fwd_packets"`
	BwdPackets   uint64 `json:"bwd_packets"`
	PayloadBytes uint64 `json:"payload_bytes"`
	NoisyRecords uint64 `json:"noisy_records"`
}

// Querier defines the interface for querying stored synthetic flows.
type Querier interface {
	Summarize(ctx context.Context, since, until time.Time) ([]ProtocolSummary, error)
	Close() error
}

// clickhouseQuerier implements the Querier interface for ClickHouse.
type clickhouseQuerier struct {
	conn driver.Conn
}

// NewClickHouseQuerier creates a new querier for ClickHouse.
func NewClickHouseQuerier(cfg config.ClickHouseConfig) (Querier, error) {
	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	conn, err := Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to clickhouse: %w", err)
	}
	return &clickhouseQuerier{conn: conn}, nil
}

// dialTimeout bounds both the TCP dial and the initial ping.
const dialTimeout = 5 * time.Second

// Connect opens a connection to the configured ClickHouse server and pings
// it. It is shared with the ClickHouse writer so both sides agree on the
// connection settings.
func Connect(ctx context.Context, cfg config.ClickHouseConfig) (driver.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		DialTimeout: dialTimeout,
		Compression: &clickhouse.Compression{Method: clickhouse.CompressionLZ4},
	})
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return conn, nil
}

// BuildSummaryQuery returns the aggregation statement and its arguments. A
// zero bound is left open.
func BuildSummaryQuery(since, until time.Time) (string, []any) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`
		SELECT
			Protocol,
			count() AS Flows,
			sum(FwdPackets) AS FwdPackets,
			sum(BwdPackets) AS BwdPackets,
			sum(FwdBytes + BwdBytes) AS PayloadBytes,
			sum(NoisyRecords) AS NoisyRecords
		FROM synthetic_flows
	`)

	var whereClauses []string
	var args []any
	if !since.IsZero() {
		whereClauses = append(whereClauses, "Timestamp >= ?")
		args = append(args, since)
	}
	if !until.IsZero() {
		whereClauses = append(whereClauses, "Timestamp <= ?")
		args = append(args, until)
	}
	if len(whereClauses) > 0 {
		queryBuilder.WriteString(" WHERE " + strings.Join(whereClauses, " AND "))
	}
	queryBuilder.WriteString(" GROUP BY Protocol ORDER BY Protocol")
	return queryBuilder.String(), args
}

// Summarize aggregates the stored flows per protocol.
func (q *clickhouseQuerier) Summarize(ctx context.Context, since, until time.Time) ([]ProtocolSummary, error) {
	stmt, args := BuildSummaryQuery(since, until)
	rows, err := q.conn.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute summary query: %w", err)
	}
	defer rows.Close()

	var summaries []ProtocolSummary
	for rows.Next() {
		var s ProtocolSummary
		if err := rows.Scan(&s.Protocol, &s.Flows, &s.FwdPackets, &s.BwdPackets, &s.PayloadBytes, &s.NoisyRecords); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func (q *clickhouseQuerier) Close() error {
	return q.conn.Close()
}
