// Package episodic implements the Episodic sub-store of Long-Term Memory
// (C9a): store/reinforce/similar/prune over a modified-Ebbinghaus retention
// model, persisted through the shared pgxpool.Pool bootstrapped by
// internal/memory/storage, grounded on the teacher's
// internal/persistence/databases/postgres_vector.go raw-SQL/pgvector
// pattern. The retention formula itself is new code: it has no teacher
// analogue and is implemented exactly as spec §4.9 specifies.
package episodic

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// reviewScheduleDays is the recommended-reconsolidation interval table
// (§4.9), indexed by reinforcement count (capped at the last entry).
var reviewScheduleDays = []int{1, 3, 7, 21, 60, 180}

// Memory is one stored episodic record.
type Memory struct {
	ID                 string
	Event              map[string]any
	Importance         float64
	Valence            float64
	ReinforcementCount int
	ContextRichness    float64
	ContextEmbedding   []float32
	CreatedAt          time.Time
	LastReinforcedAt   time.Time
}

// Store persists episodic memories.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

// StoreEvent inserts a new episodic record (§4.9 "store").
func (s *Store) StoreEvent(ctx context.Context, id string, event map[string]any, importance, valence, contextRichness float64, contextEmbedding []float32) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO episodic_memories (id, event, importance, valence, reinforcement_count, context_richness, context_embedding, created_at, last_reinforced_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6, now(), now())
		ON CONFLICT (id) DO UPDATE SET event = EXCLUDED.event, importance = EXCLUDED.importance, valence = EXCLUDED.valence
	`, id, eventJSON, importance, valence, contextRichness, toVectorLiteral(contextEmbedding))
	return err
}

// Reinforce increments reinforcement_count and last_reinforced_at for each
// id (§4.9 "reinforce").
func (s *Store) Reinforce(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE episodic_memories SET reinforcement_count = reinforcement_count + 1, last_reinforced_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}

// Similar returns the k nearest episodic memories to contextVector by
// cosine distance (§4.9 "similar"). Requires the pgvector extension.
func (s *Store) Similar(ctx context.Context, contextVector []float32, k int) ([]Memory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event, importance, valence, reinforcement_count, context_richness, created_at, last_reinforced_at
		FROM episodic_memories
		ORDER BY context_embedding <=> $1::vector
		LIMIT $2
	`, toVectorLiteral(contextVector), k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Memory
	for rows.Next() {
		var m Memory
		var eventJSON []byte
		if err := rows.Scan(&m.ID, &eventJSON, &m.Importance, &m.Valence, &m.ReinforcementCount, &m.ContextRichness, &m.CreatedAt, &m.LastReinforcedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(eventJSON, &m.Event)
		out = append(out, m)
	}
	return out, rows.Err()
}

// RecentImportant returns every memory with importance > minImportance,
// used by the consolidation engine's semantic-extraction sweep (§4.10 step 2).
func (s *Store) RecentImportant(ctx context.Context, minImportance float64) ([]Memory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event, importance, valence, reinforcement_count, context_richness, created_at, last_reinforced_at
		FROM episodic_memories
		WHERE importance > $1
	`, minImportance)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMemories(rows)
}

// ScanAll returns every stored memory including its context embedding, used
// by the consolidation engine's compression sweep (§4.10 step 5). The vector
// column is cast to text in SQL and parsed here rather than scanned directly,
// since this module (like the teacher's postgres_vector.go) never registers
// a pgvector Go type with the driver.
func (s *Store) ScanAll(ctx context.Context) ([]Memory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, event, importance, valence, reinforcement_count, context_richness, created_at, last_reinforced_at, context_embedding::text
		FROM episodic_memories
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Memory
	for rows.Next() {
		var m Memory
		var eventJSON []byte
		var vecText *string
		if err := rows.Scan(&m.ID, &eventJSON, &m.Importance, &m.Valence, &m.ReinforcementCount, &m.ContextRichness, &m.CreatedAt, &m.LastReinforcedAt, &vecText); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(eventJSON, &m.Event)
		if vecText != nil {
			m.ContextEmbedding = parseVectorLiteral(*vecText)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// parseVectorLiteral parses a pgvector text representation ("[0.1,0.2,...]")
// back into a float32 slice, the inverse of toVectorLiteral.
func parseVectorLiteral(s string) []float32 {
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			continue
		}
		out = append(out, float32(f))
	}
	return out
}

func scanMemories(rows pgx.Rows) ([]Memory, error) {
	var out []Memory
	for rows.Next() {
		var m Memory
		var eventJSON []byte
		if err := rows.Scan(&m.ID, &eventJSON, &m.Importance, &m.Valence, &m.ReinforcementCount, &m.ContextRichness, &m.CreatedAt, &m.LastReinforcedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(eventJSON, &m.Event)
		out = append(out, m)
	}
	return out, rows.Err()
}

// MergeCluster annotates keepID's event with the ids it absorbs and deletes
// the absorbed memories, per §4.10 step 5 ("replace each cluster with the
// highest-importance representative, annotated with merged ids").
func (s *Store) MergeCluster(ctx context.Context, keepID string, mergedIDs []string) error {
	if len(mergedIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE episodic_memories
		SET event = jsonb_set(event, '{merged_ids}', COALESCE(event->'merged_ids', '[]'::jsonb) || to_jsonb($2::text[]))
		WHERE id = $1
	`, keepID, mergedIDs)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `DELETE FROM episodic_memories WHERE id = ANY($1)`, mergedIDs)
	return err
}

// Prune deletes every memory whose current retention is below
// retentionCutoff or whose importance is below importanceCutoff
// (§4.9, §4.10 step 4).
func (s *Store) Prune(ctx context.Context, retentionCutoff, importanceCutoff float64, now time.Time) (int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, importance, valence, reinforcement_count, context_richness, created_at
		FROM episodic_memories
	`)
	if err != nil {
		return 0, err
	}
	var toDelete []string
	for rows.Next() {
		var id string
		var importance, valence, richness float64
		var reinforcement int
		var createdAt time.Time
		if err := rows.Scan(&id, &importance, &valence, &reinforcement, &richness, &createdAt); err != nil {
			rows.Close()
			return 0, err
		}
		hours := now.Sub(createdAt).Hours()
		r := Retention(1.0, hours, reinforcement, importance, valence, richness)
		if r < retentionCutoff || importance < importanceCutoff {
			toDelete = append(toDelete, id)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(toDelete) == 0 {
		return 0, nil
	}
	_, err = s.pool.Exec(ctx, `DELETE FROM episodic_memories WHERE id = ANY($1)`, toDelete)
	if err != nil {
		return 0, err
	}
	return len(toDelete), nil
}

// Retention implements the modified-Ebbinghaus formula from §4.9:
//
//	retention(t_hours) = initial_strength * exp(-k * t_hours / stability)
//
// with k = 0.5 and stability as specified, then applies the bounded
// multipliers (primacy, well-rehearsed, strong-emotion, high-importance,
// rich-context) and clamps to [0, 1].
func Retention(initialStrength, tHours float64, reinforcementCount int, importance, valence, contextRichness float64) float64 {
	const k = 0.5
	r := float64(reinforcementCount)
	stability := 1 + 0.5*r*(1+0.3*importance)*(1+0.4*math.Abs(valence-0.5))*(1+0.15*contextRichness)

	base := initialStrength * math.Exp(-k*tHours/stability)

	if reinforcementCount == 0 {
		base *= 1.1 // primacy boost
	}
	if r > 5 {
		extra := r - 5
		if extra > 10 {
			extra = 10
		}
		base *= 1 + 0.05*extra // well-rehearsed boost
	}
	if math.Abs(valence-0.5) > 0.3 {
		base *= 1.15 // strong-emotion boost
	}
	if importance > 0.8 {
		base *= 1.2 // high-importance boost
	}
	if contextRichness > 0.7 {
		base *= 1.1 // rich-context boost
	}

	return clamp01(base)
}

// NextReviewDays returns the recommended reconsolidation interval given the
// memory's reinforcement count, per the §4.9 review schedule.
func NextReviewDays(reinforcementCount int) int {
	idx := reinforcementCount
	if idx >= len(reviewScheduleDays) {
		idx = len(reviewScheduleDays) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return reviewScheduleDays[idx]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func toVectorLiteral(v []float32) string {
	if len(v) == 0 {
		return ""
	}
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = formatFloat(f)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'f', -1, 32)
}
