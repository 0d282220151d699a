// Package indexmanager implements the Index Manager (C6): a background
// drain loop that keeps the vector index in sync with profile mutations,
// plus the periodic archival/optimization/reindexing/backup maintenance
// tasks of spec §4.6. Grounded on the teacher's internal/orchestrator/kafka.go
// consumer-loop/dead-letter shape and sefii.go's batching style.
package indexmanager

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"castingai/internal/config"
	"castingai/internal/domain"
	"castingai/internal/embedding"
	"castingai/internal/vectorindex"
	"castingai/internal/workerpool"
)

const batchSize = 50
const reindexBatchSize = 100
const archivalInactiveDays = 365
const dedupeCosineThreshold = 0.999

// ProfileSource is the external profile collaborator the manager re-embeds
// from on upsert/reindex.
type ProfileSource interface {
	Get(ctx context.Context, id string) (domain.TalentProfile, bool, error)
	ScanAll(ctx context.Context) ([]domain.TalentProfile, error)
	MarkArchived(ctx context.Context, id string) error
}

// Manager drains queued updates in batches and runs maintenance on its own
// cadences (spec §4.6).
type Manager struct {
	cfg      config.IndexManagerConfig
	q        queue
	index    vectorindex.Index
	embedder embedding.Provider
	profiles ProfileSource
	workers  *workerpool.Pool

	deadLetters []UpdateMessage
}

// UseWorkerPool wires a bounded pool that Reindex uses to re-embed batches
// concurrently instead of one at a time; nil (the default) keeps Reindex
// sequential.
func (m *Manager) UseWorkerPool(pool *workerpool.Pool) {
	m.workers = pool
}

// New builds a Manager, selecting the queue transport the way
// SPEC_FULL.md §4.6b specifies: Kafka when the backend is "kafka" and
// brokers are configured, an in-process buffered channel otherwise.
func New(cfg config.IndexManagerConfig, index vectorindex.Index, embedder embedding.Provider, profiles ProfileSource) *Manager {
	var q queue
	if cfg.Backend == "kafka" && len(cfg.KafkaBrokers) > 0 {
		q = newKafkaQueue(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
	} else {
		q = newMemoryQueue(1000)
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 5
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if cfg.MaintenanceTick <= 0 {
		cfg.MaintenanceTick = 24 * time.Hour
	}
	return &Manager{cfg: cfg, q: q, index: index, embedder: embedder, profiles: profiles}
}

// QueueUpdate enqueues a mutation; high-priority updates force an immediate
// drain of the current batch (spec §4.6).
func (m *Manager) QueueUpdate(ctx context.Context, msg UpdateMessage) error {
	if err := m.q.Enqueue(ctx, msg); err != nil {
		return err
	}
	if msg.Priority == PriorityHigh {
		return m.drainBatch(ctx)
	}
	return nil
}

// Run starts the background drain loop (every T_idx) and the maintenance
// scheduler; blocks until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	interval := m.cfg.MaintenanceTick
	drainTick := time.NewTicker(60 * time.Second)
	defer drainTick.Stop()
	maintTick := time.NewTicker(interval)
	defer maintTick.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = m.q.Close()
			return
		case <-drainTick.C:
			if err := m.drainBatch(ctx); err != nil {
				log.Ctx(ctx).Warn().Err(err).Msg("indexmanager: batch drain failed")
			}
		case <-maintTick.C:
			m.runMaintenance(ctx)
		}
	}
}

// drainBatch pulls up to batchSize messages and applies each, re-enqueuing
// failures with exponential backoff and dead-lettering after MaxRetries
// (spec §4.6 failure semantics).
func (m *Manager) drainBatch(ctx context.Context) error {
	for i := 0; i < batchSize; i++ {
		drainCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		msg, commit, err := m.q.Dequeue(drainCtx)
		cancel()
		if err != nil {
			if i == 0 {
				return nil // empty queue, nothing to drain
			}
			break
		}

		if applyErr := m.apply(ctx, msg); applyErr != nil {
			m.retry(ctx, msg, applyErr)
		}
		_ = commit(ctx)
	}
	return nil
}

func (m *Manager) retry(ctx context.Context, msg UpdateMessage, cause error) {
	msg.Attempt++
	if msg.Attempt > m.cfg.MaxRetries {
		if err := m.q.DeadLetter(ctx, msg, cause); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("talent_id", msg.TalentID).Msg("indexmanager: dead-letter publish failed")
		}
		m.deadLetters = append(m.deadLetters, msg)
		return
	}
	backoff := backoffFor(msg.Attempt)
	go func() {
		time.Sleep(backoff)
		if err := m.q.Enqueue(ctx, msg); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("talent_id", msg.TalentID).Msg("indexmanager: requeue after backoff failed")
		}
	}()
}

// backoffFor computes the capped exponential delay (1,2,4,8,16s) from
// spec §4.6.
func backoffFor(attempt int) time.Duration {
	secs := 1 << uint(attempt-1)
	if secs > 16 {
		secs = 16
	}
	return time.Duration(secs) * time.Second
}

func (m *Manager) apply(ctx context.Context, msg UpdateMessage) error {
	switch msg.Op {
	case OpDelete:
		return m.index.Delete(ctx, []string{msg.TalentID})
	default:
		profile, ok, err := m.profiles.Get(ctx, msg.TalentID)
		if err != nil {
			return err
		}
		if !ok {
			return m.index.Delete(ctx, []string{msg.TalentID})
		}
		vecs, err := m.embedder.Embed(ctx, []string{profile.SearchableText()})
		if err != nil {
			return err
		}
		return m.index.Upsert(ctx, []vectorindex.Record{{
			ID:       profile.ID,
			Vector:   vecs[0].Vector,
			Metadata: profile.VectorMetadata(),
		}})
	}
}

// runMaintenance executes the periodic maintenance tasks of spec §4.6:
// archival, optimization and backup. Reindexing is not part of this cycle;
// it runs only when Reindex is called. Each task is independent and logs its
// own failures rather than aborting the others.
func (m *Manager) runMaintenance(ctx context.Context) {
	if err := m.archive(ctx); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("indexmanager: archival failed")
	}
	if err := m.optimize(ctx); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("indexmanager: optimization failed")
	}
	if err := m.backup(ctx); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("indexmanager: backup failed")
	}
}

// archive moves profiles inactive for >= 365 days (no UpdatedAt bump) to an
// archived status and removes them from the live index.
func (m *Manager) archive(ctx context.Context) error {
	profiles, err := m.profiles.ScanAll(ctx)
	if err != nil {
		return err
	}
	cutoff := time.Now().AddDate(0, 0, -archivalInactiveDays)
	for _, p := range profiles {
		if p.Status == domain.TalentActive && p.UpdatedAt.Before(cutoff) {
			if err := m.profiles.MarkArchived(ctx, p.ID); err != nil {
				return err
			}
			if err := m.index.Delete(ctx, []string{p.ID}); err != nil {
				return err
			}
		}
	}
	return nil
}

// optimize deduplicates vectors with cosine >= dedupeCosineThreshold and
// matching metadata (spec §4.6 "optimization"), keeping the first id seen.
func (m *Manager) optimize(ctx context.Context) error {
	profiles, err := m.profiles.ScanAll(ctx)
	if err != nil {
		return err
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].ID < profiles[j].ID })

	texts := make([]string, len(profiles))
	for i, p := range profiles {
		texts[i] = p.SearchableText()
	}
	if len(texts) == 0 {
		return nil
	}
	vecs, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return err
	}

	seen := make([]bool, len(profiles))
	var toDelete []string
	for i := range profiles {
		if seen[i] {
			continue
		}
		for j := i + 1; j < len(profiles); j++ {
			if seen[j] {
				continue
			}
			if dedupeMetadataEqual(profiles[i].VectorMetadata(), profiles[j].VectorMetadata()) &&
				vectorindex.Cosine(vecs[i].Vector, vecs[j].Vector) >= dedupeCosineThreshold {
				seen[j] = true
				toDelete = append(toDelete, profiles[j].ID)
			}
		}
	}
	if len(toDelete) == 0 {
		return nil
	}
	return m.index.Delete(ctx, toDelete)
}

// dedupeMetadataEqual compares metadata ignoring talent_id, since dedup's
// purpose is finding distinct ids describing the same underlying talent.
func dedupeMetadataEqual(a, b map[string]string) bool {
	for k, v := range a {
		if k == "talent_id" {
			continue
		}
		if b[k] != v {
			return false
		}
	}
	for k := range b {
		if k == "talent_id" {
			continue
		}
		if _, ok := a[k]; !ok {
			return false
		}
	}
	return true
}

// Reindex re-embeds the full profile set in batches of reindexBatchSize and
// upserts into a freshly built replacement index (spec §4.6 "reindexing").
// The old index remains readable throughout since Upsert only adds/updates.
func (m *Manager) Reindex(ctx context.Context) error {
	profiles, err := m.profiles.ScanAll(ctx)
	if err != nil {
		return err
	}

	reindexBatch := func(batchCtx context.Context, batch []domain.TalentProfile) error {
		texts := make([]string, len(batch))
		for i, p := range batch {
			texts[i] = p.SearchableText()
		}
		vecs, err := m.embedder.Embed(batchCtx, texts)
		if err != nil {
			return err
		}
		records := make([]vectorindex.Record, len(batch))
		for i, p := range batch {
			records[i] = vectorindex.Record{ID: p.ID, Vector: vecs[i].Vector, Metadata: p.VectorMetadata()}
		}
		return m.index.Upsert(batchCtx, records)
	}

	if m.workers == nil {
		for start := 0; start < len(profiles); start += reindexBatchSize {
			end := start + reindexBatchSize
			if end > len(profiles) {
				end = len(profiles)
			}
			if err := reindexBatch(ctx, profiles[start:end]); err != nil {
				return err
			}
		}
		return nil
	}

	// With a worker pool wired, re-embedding of each batch (the CPU/IO-heavy
	// step) runs concurrently; the vector index itself still serializes
	// Upsert calls one batch at a time since most backends take a lock there.
	var wg sync.WaitGroup
	errs := make(chan error, (len(profiles)/reindexBatchSize)+1)
	for start := 0; start < len(profiles); start += reindexBatchSize {
		end := start + reindexBatchSize
		if end > len(profiles) {
			end = len(profiles)
		}
		batch := profiles[start:end]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.workers.Submit(ctx, func(jobCtx context.Context) error {
				return reindexBatch(jobCtx, batch)
			}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// backupSnapshot is the serialized shape written by backup (spec §4.6:
// "serialise vector ids + metadata... vectors themselves are re-derivable").
type backupSnapshot struct {
	TakenAt  time.Time     `json:"taken_at"`
	Profiles []backupEntry `json:"profiles"`
}

type backupEntry struct {
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

func (m *Manager) backup(ctx context.Context) error {
	if m.cfg.BackupDir == "" {
		return nil
	}
	profiles, err := m.profiles.ScanAll(ctx)
	if err != nil {
		return err
	}
	snapshot := backupSnapshot{TakenAt: time.Now()}
	for _, p := range profiles {
		snapshot.Profiles = append(snapshot.Profiles, backupEntry{ID: p.ID, Metadata: p.VectorMetadata()})
	}
	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(m.cfg.BackupDir, 0o755); err != nil {
		return err
	}
	name := filepath.Join(m.cfg.BackupDir, snapshot.TakenAt.Format("20060102-150405")+".json")
	return os.WriteFile(name, payload, 0o644)
}

// DeadLetterCount reports items that exhausted retries, surfaced via
// metrics per spec §4.6 failure semantics.
func (m *Manager) DeadLetterCount() int {
	return len(m.deadLetters)
}

// Stats summarizes the manager's operational state for the
// `GET /search/index/stats` endpoint (§6).
type Stats struct {
	DeadLetters int
	QueueDepth  int
}

func (m *Manager) Stats() Stats {
	return Stats{DeadLetters: len(m.deadLetters), QueueDepth: m.q.Depth()}
}
