package experiment

import (
	"context"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/jackc/pgx/v5/pgxpool"
)

// clickhouseLog is the durable outcome sink backed by ClickHouse, grounded
// on the teacher's internal/agentd/clickhouse_schema.go DSN-parsing and
// table-bootstrap pattern and internal/agentd/metrics_clickhouse.go's
// append-only event table shape. A column store fits the write-heavy,
// aggregate-read access pattern of experiment outcomes.
type clickhouseLog struct {
	conn  clickhouse.Conn
	table string
}

// NewClickHouseLog opens a ClickHouse connection from dsn, ensures the
// outcomes table exists, and returns a durableLog backed by it.
func NewClickHouseLog(ctx context.Context, dsn, database, table string) (*clickhouseLog, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("experiment: clickhouse dsn must not be empty")
	}
	if database == "" {
		database = "castingai"
	}
	if table == "" {
		table = "experiment_outcomes"
	}

	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("experiment: parse clickhouse dsn: %w", err)
	}
	if opts.Auth.Database == "" {
		opts.Auth.Database = database
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("experiment: open clickhouse connection: %w", err)
	}

	if err := conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database)); err != nil {
		return nil, fmt.Errorf("experiment: create database: %w", err)
	}
	if err := ensureOutcomesTable(ctx, conn, database, table); err != nil {
		return nil, err
	}

	return &clickhouseLog{conn: conn, table: fmt.Sprintf("%s.%s", database, table)}, nil
}

func ensureOutcomesTable(ctx context.Context, conn clickhouse.Conn, database, table string) error {
	sql := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s.%s (
	Timestamp DateTime64(3),
	ExperimentName LowCardinality(String),
	UserID String,
	Variant LowCardinality(String),
	ResponseTimeMs Float64,
	Accurate Bool
) ENGINE = MergeTree()
ORDER BY (ExperimentName, Variant, Timestamp)
TTL Timestamp + INTERVAL 90 DAY
SETTINGS index_granularity = 8192
`, database, table)
	if err := conn.Exec(ctx, sql); err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("experiment: create outcomes table: %w", err)
		}
	}
	return nil
}

func (c *clickhouseLog) Append(ctx context.Context, o Outcome) error {
	return c.conn.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (Timestamp, ExperimentName, UserID, Variant, ResponseTimeMs, Accurate)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.table), o.RecordedAt, o.ExperimentName, o.UserID, o.Variant, float64(o.ResponseTime.Microseconds())/1000.0, o.Accurate)
}

func (c *clickhouseLog) Close() error {
	return c.conn.Close()
}

// postgresLog is a durable outcome sink backed by a Postgres pool, grounded
// on internal/memory/episodic.Store's pgxpool.Pool usage and raw-SQL insert
// style. It writes to an experiment_outcomes table, which storage.Open does
// not create; cmd/castingai-server does not construct this sink.
type postgresLog struct {
	pool *pgxpool.Pool
}

// NewPostgresLog wraps an already-bootstrapped pool. The caller owns the
// pool's lifecycle; Close on this log is a no-op since the pool is shared
// with other stores (STM/episodic).
func NewPostgresLog(pool *pgxpool.Pool) *postgresLog {
	return &postgresLog{pool: pool}
}

func (p *postgresLog) Append(ctx context.Context, o Outcome) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO experiment_outcomes (experiment_name, user_id, variant, response_time_ms, accurate, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, o.ExperimentName, o.UserID, o.Variant, float64(o.ResponseTime.Microseconds())/1000.0, o.Accurate, o.RecordedAt)
	return err
}

func (p *postgresLog) Close() error {
	return nil
}
