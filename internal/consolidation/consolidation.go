// Package consolidation implements the Consolidation Engine (C10): a
// ticker-driven background scheduler running the five STM->LTM maintenance
// tasks of spec §4.10 on every tick, grounded on the teacher's
// internal/playground/worker/worker.go periodic-task shape and, for the
// concurrent fan-out within a tick, the same golang.org/x/sync/errgroup
// usage the orchestrator (C11) uses for per-request fan-out.
package consolidation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"castingai/internal/config"
	"castingai/internal/embedding"
	"castingai/internal/memory/episodic"
	"castingai/internal/memory/procedural"
	"castingai/internal/memory/semanticgraph"
	"castingai/internal/memory/stm"
	"castingai/internal/nlp"
)

// Suggestion is an automation suggestion surfaced by procedural mining
// (§4.10 step 3: frequency >= 3 and success_rate >= 0.7).
type Suggestion struct {
	UserID      string
	Steps       []string
	Frequency   int
	SuccessRate float64
}

// Engine runs the consolidation tick.
type Engine struct {
	cfg        config.MemoryConfig
	stm        *stm.Store
	episodic   *episodic.Store
	semantic   *semanticgraph.Store
	procedural *procedural.Store
	analyzer   *nlp.Analyzer
	embedder   embedding.Provider

	running     atomic.Bool
	skippedTick atomic.Int64

	mu          sync.Mutex
	suggestions []Suggestion
}

// New builds an Engine. analyzer may be nil, in which case semantic
// extraction (step 2) is skipped for that tick.
func New(cfg config.MemoryConfig, stmStore *stm.Store, episodicStore *episodic.Store, semanticStore *semanticgraph.Store, proceduralStore *procedural.Store, analyzer *nlp.Analyzer, embedder embedding.Provider) *Engine {
	if cfg.ConsolidationTick <= 0 {
		cfg.ConsolidationTick = 30 * time.Minute
	}
	if cfg.ConsolidationThreshold <= 0 {
		cfg.ConsolidationThreshold = 0.6
	}
	if cfg.PruneRetention <= 0 {
		cfg.PruneRetention = 0.1
	}
	if cfg.CompressionSimilarity <= 0 {
		cfg.CompressionSimilarity = 0.85
	}
	if cfg.CompressionMinCluster <= 0 {
		cfg.CompressionMinCluster = 4
	}
	return &Engine{
		cfg:        cfg,
		stm:        stmStore,
		episodic:   episodicStore,
		semantic:   semanticStore,
		procedural: proceduralStore,
		analyzer:   analyzer,
		embedder:   embedder,
	}
}

// Run blocks on a ticker at cfg.ConsolidationTick until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.ConsolidationTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

// Tick runs one consolidation pass. If the previous tick is still running,
// this tick is skipped and a counter incremented (§4.10 back-pressure rule).
// Exported so C11 can trigger an immediate consolidation when STM hits
// capacity (spec §4.11 step 6).
func (e *Engine) Tick(ctx context.Context) {
	if !e.running.CompareAndSwap(false, true) {
		e.skippedTick.Add(1)
		log.Ctx(ctx).Warn().Msg("consolidation: tick skipped, previous tick still running")
		return
	}
	defer e.running.Store(false)

	// Plain errgroup (no WithContext): the five tasks may interleave freely
	// and a failure in one must not cancel the others (§4.10 ordering
	// guarantees talk about linearizability per-task, not a shared
	// all-or-nothing outcome).
	var g errgroup.Group
	g.Go(func() error { return e.promoteSTM(ctx) })
	g.Go(func() error { return e.extractSemantics(ctx) })
	g.Go(func() error { return e.minePatterns(ctx) })
	g.Go(func() error { return e.prune(ctx) })
	g.Go(func() error { return e.compress(ctx) })
	if err := g.Wait(); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("consolidation: tick completed with task errors")
	}
}

// SkippedTicks reports how many ticks were dropped due to back-pressure.
func (e *Engine) SkippedTicks() int64 {
	return e.skippedTick.Load()
}

// Suggestions returns the automation suggestions accumulated so far.
func (e *Engine) Suggestions() []Suggestion {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Suggestion, len(e.suggestions))
	copy(out, e.suggestions)
	return out
}

// promoteSTM is step 1: promote every turn at or above theta_cons from each
// active session into episodic memory.
func (e *Engine) promoteSTM(ctx context.Context) error {
	if e.stm == nil || e.episodic == nil {
		return nil
	}
	for _, sessionID := range e.stm.ActiveSessionIDs() {
		promoted := e.stm.Consolidate(sessionID, e.cfg.ConsolidationThreshold)
		for _, turn := range promoted {
			valence := 0.5
			richness := 0.3
			if e.analyzer != nil {
				if result, err := e.analyzer.Analyze(ctx, turn.Content, nil); err == nil {
					valence = (result.Sentiment + 1) / 2
					richness = clamp01(float64(len(result.Entities)) / 5.0)
				}
			}
			var contextVector []float32
			if e.embedder != nil {
				if vecs, err := e.embedder.Embed(ctx, []string{turn.Content}); err == nil && len(vecs) == 1 {
					contextVector = vecs[0].Vector
				}
			}
			event := map[string]any{
				"session_id": sessionID,
				"role":       string(turn.Role),
				"content":    turn.Content,
				"timestamp":  turn.Timestamp,
			}
			if err := e.episodic.StoreEvent(ctx, uuid.NewString(), event, turn.Importance, valence, richness, contextVector); err != nil {
				return err
			}
		}
	}
	return nil
}

// extractSemantics is step 2: entities/relationships from high-importance
// episodic memories get upserted into the semantic graph.
func (e *Engine) extractSemantics(ctx context.Context) error {
	if e.analyzer == nil || e.semantic == nil || e.episodic == nil {
		return nil
	}
	memories, err := e.episodic.RecentImportant(ctx, 0.7)
	if err != nil {
		return err
	}
	for _, mem := range memories {
		content, _ := mem.Event["content"].(string)
		if content == "" {
			continue
		}
		result, err := e.analyzer.Analyze(ctx, content, nil)
		if err != nil {
			continue
		}
		ownerNode := "memory:" + mem.ID
		if err := e.semantic.UpsertNode(ctx, ownerNode, []string{"episodic_memory"}, map[string]any{"importance": mem.Importance}); err != nil {
			return err
		}
		for _, ent := range result.Entities {
			entityNode := ent.Type + ":" + ent.Value
			if err := e.semantic.UpsertNode(ctx, entityNode, []string{ent.Type}, map[string]any{"value": ent.Value}); err != nil {
				return err
			}
			if err := e.semantic.UpsertEdge(ctx, ownerNode, "MENTIONS", entityNode); err != nil {
				return err
			}
		}
	}
	return nil
}

// minePatterns is step 3: mine per-user procedural patterns and surface
// automation suggestions when frequency >= 3 and success_rate >= 0.7.
func (e *Engine) minePatterns(ctx context.Context) error {
	if e.procedural == nil {
		return nil
	}
	userIDs, err := e.procedural.DistinctUserIDs(ctx)
	if err != nil {
		return err
	}
	var fresh []Suggestion
	for _, userID := range userIDs {
		patterns, err := e.procedural.MinePatterns(ctx, userID, 3, 5)
		if err != nil {
			return err
		}
		if len(patterns) == 0 {
			continue
		}
		successRate, err := e.procedural.SuccessRate(ctx, userID)
		if err != nil {
			return err
		}
		if successRate < 0.7 {
			continue
		}
		for _, p := range patterns {
			fresh = append(fresh, Suggestion{UserID: userID, Steps: p.Steps, Frequency: p.Frequency, SuccessRate: successRate})
		}
	}
	e.mu.Lock()
	e.suggestions = append(e.suggestions, fresh...)
	e.mu.Unlock()
	return nil
}

// prune is step 4: delete episodic memories below the retention or
// importance cutoffs.
func (e *Engine) prune(ctx context.Context) error {
	if e.episodic == nil {
		return nil
	}
	_, err := e.episodic.Prune(ctx, e.cfg.PruneRetention, e.cfg.PruneImportance, time.Now())
	return err
}

// compress is step 5: cluster episodic memories by cosine similarity and
// collapse clusters larger than CompressionMinCluster-1 into their
// highest-importance representative.
func (e *Engine) compress(ctx context.Context) error {
	if e.episodic == nil {
		return nil
	}
	memories, err := e.episodic.ScanAll(ctx)
	if err != nil {
		return err
	}
	clusters := clusterByCosine(memories, e.cfg.CompressionSimilarity)
	for _, cluster := range clusters {
		if len(cluster) <= e.cfg.CompressionMinCluster-1 {
			continue
		}
		keep := cluster[0]
		for _, idx := range cluster[1:] {
			if memories[idx].Importance > memories[keep].Importance {
				keep = idx
			}
		}
		var merged []string
		for _, idx := range cluster {
			if idx != keep {
				merged = append(merged, memories[idx].ID)
			}
		}
		if err := e.episodic.MergeCluster(ctx, memories[keep].ID, merged); err != nil {
			return err
		}
	}
	return nil
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
