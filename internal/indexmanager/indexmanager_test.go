package indexmanager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"castingai/internal/config"
	"castingai/internal/domain"
	"castingai/internal/embedding"
	"castingai/internal/vectorindex"
	"castingai/internal/vectorindex/flat"
	"castingai/internal/workerpool"
)

type fakeProfiles struct {
	byID map[string]domain.TalentProfile
}

func (f *fakeProfiles) Get(ctx context.Context, id string) (domain.TalentProfile, bool, error) {
	p, ok := f.byID[id]
	return p, ok, nil
}

func (f *fakeProfiles) ScanAll(ctx context.Context) ([]domain.TalentProfile, error) {
	out := make([]domain.TalentProfile, 0, len(f.byID))
	for _, p := range f.byID {
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeProfiles) MarkArchived(ctx context.Context, id string) error {
	p := f.byID[id]
	p.Status = domain.TalentArchived
	f.byID[id] = p
	return nil
}

func TestQueueUpdateUpsertsIntoIndexOnHighPriorityDrain(t *testing.T) {
	idx := flat.New()
	profiles := &fakeProfiles{byID: map[string]domain.TalentProfile{
		"t1": {ID: "t1", Name: "Jordan Lee", Bio: "stunt performer", Status: domain.TalentActive},
	}}
	embedder := embedding.NewLocal(16)
	mgr := New(config.IndexManagerConfig{Backend: "memory"}, idx, embedder, profiles)

	err := mgr.QueueUpdate(context.Background(), UpdateMessage{TalentID: "t1", Op: OpUpsert, Priority: PriorityHigh})
	require.NoError(t, err)

	count, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestBackoffForCapsAtSixteenSeconds(t *testing.T) {
	assert.Equal(t, 1.0, backoffFor(1).Seconds())
	assert.Equal(t, 2.0, backoffFor(2).Seconds())
	assert.Equal(t, 16.0, backoffFor(5).Seconds())
	assert.Equal(t, 16.0, backoffFor(9).Seconds())
}

func TestOptimizeDeduplicatesNearIdenticalVectors(t *testing.T) {
	idx := flat.New()
	profiles := &fakeProfiles{byID: map[string]domain.TalentProfile{
		"t1": {ID: "t1", Name: "Same Text", Status: domain.TalentActive},
		"t2": {ID: "t2", Name: "Same Text", Status: domain.TalentActive},
	}}
	embedder := embedding.NewLocal(16)
	mgr := New(config.IndexManagerConfig{Backend: "memory"}, idx, embedder, profiles)

	vecs, err := embedder.Embed(context.Background(), []string{
		profiles.byID["t1"].SearchableText(),
		profiles.byID["t2"].SearchableText(),
	})
	require.NoError(t, err)
	require.NoError(t, idx.Upsert(context.Background(), []vectorindex.Record{
		{ID: "t1", Vector: vecs[0].Vector, Metadata: profiles.byID["t1"].VectorMetadata()},
	}))
	require.NoError(t, idx.Upsert(context.Background(), []vectorindex.Record{
		{ID: "t2", Vector: vecs[1].Vector, Metadata: profiles.byID["t2"].VectorMetadata()},
	}))

	err = mgr.optimize(context.Background())
	require.NoError(t, err)

	count, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestStatsReportsDeadLettersAndQueueDepth(t *testing.T) {
	idx := flat.New()
	profiles := &fakeProfiles{byID: map[string]domain.TalentProfile{}}
	embedder := embedding.NewLocal(16)
	mgr := New(config.IndexManagerConfig{Backend: "memory", MaxRetries: 1}, idx, embedder, profiles)

	err := mgr.QueueUpdate(context.Background(), UpdateMessage{TalentID: "ghost", Op: OpUpsert})
	require.NoError(t, err)
	assert.Equal(t, 1, mgr.Stats().QueueDepth)

	mgr.retry(context.Background(), UpdateMessage{TalentID: "ghost", Op: OpUpsert, Attempt: 1}, assert.AnError)
	stats := mgr.Stats()
	assert.Equal(t, 1, stats.DeadLetters)
}

func TestReindexWithWorkerPoolMatchesSequentialResult(t *testing.T) {
	profiles := &fakeProfiles{byID: map[string]domain.TalentProfile{
		"t1": {ID: "t1", Name: "Jordan Lee", Bio: "stunt performer", Status: domain.TalentActive},
		"t2": {ID: "t2", Name: "Alex Rivera", Bio: "voice actor", Status: domain.TalentActive},
		"t3": {ID: "t3", Name: "Sam Patel", Bio: "dancer", Status: domain.TalentActive},
	}}
	embedder := embedding.NewLocal(16)
	idx := flat.New()
	mgr := New(config.IndexManagerConfig{Backend: "memory"}, idx, embedder, profiles)

	pool := workerpool.New(2)
	defer pool.Close()
	mgr.UseWorkerPool(pool)

	require.NoError(t, mgr.Reindex(context.Background()))

	count, err := idx.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}
