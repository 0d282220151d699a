// Package storage owns the single pgxpool.Pool shared by every LTM
// sub-store (episodic, semantic graph, procedural), grounded on the
// teacher's internal/persistence/databases/pool.go + postgres_graph.go /
// postgres_vector.go table-bootstrap pattern: plain SQL,
// CREATE TABLE IF NOT EXISTS, $N placeholders, pgx.Rows scanning.
package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Open creates the shared connection pool and bootstraps every LTM table.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open ltm pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping ltm pool: %w", err)
	}
	if err := bootstrap(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap ltm schema: %w", err)
	}
	return pool, nil
}

func bootstrap(ctx context.Context, pool *pgxpool.Pool) error {
	// pgvector best-effort, mirrors postgres_vector.go's extension bootstrap.
	_, _ = pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`)

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS episodic_memories (
			id TEXT PRIMARY KEY,
			event JSONB NOT NULL,
			importance DOUBLE PRECISION NOT NULL,
			valence DOUBLE PRECISION NOT NULL,
			reinforcement_count INT NOT NULL DEFAULT 0,
			context_richness DOUBLE PRECISION NOT NULL DEFAULT 0,
			context_embedding vector(1536),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_reinforced_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS semantic_nodes (
			id TEXT PRIMARY KEY,
			labels TEXT[] NOT NULL DEFAULT '{}',
			props JSONB NOT NULL DEFAULT '{}'::jsonb
		)`,
		`CREATE TABLE IF NOT EXISTS semantic_edges (
			id BIGSERIAL PRIMARY KEY,
			source TEXT NOT NULL,
			rel TEXT NOT NULL,
			target TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			evidence_count INT NOT NULL DEFAULT 1,
			UNIQUE(source, rel, target)
		)`,
		`CREATE INDEX IF NOT EXISTS semantic_edges_src_rel ON semantic_edges(source, rel)`,
		`CREATE INDEX IF NOT EXISTS semantic_edges_dst_rel ON semantic_edges(target, rel)`,
		`CREATE TABLE IF NOT EXISTS procedural_sequences (
			id BIGSERIAL PRIMARY KEY,
			user_id TEXT NOT NULL,
			steps TEXT[] NOT NULL,
			durations_ms BIGINT[] NOT NULL,
			success BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS procedural_sequences_user ON procedural_sequences(user_id)`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
