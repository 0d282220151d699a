// Package procedural implements the Procedural Memory sub-store of
// Long-Term Memory (C9c): record/mine_patterns/best_path over sequences of
// named steps, persisted through the shared pgxpool.Pool bootstrapped by
// internal/memory/storage. Grounded on the same raw-SQL pattern as the
// teacher's internal/persistence/databases store files; the pattern-mining
// and path-search algorithms are new code implemented exactly to §4.9's
// PrefixSpan/A* description since the teacher has no analogue.
package procedural

import (
	"container/heap"
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Sequence is one recorded procedure: an ordered list of step names with a
// per-step duration and an overall success flag.
type Sequence struct {
	UserID      string
	Steps       []string
	DurationsMs []int64
	Success     bool
	CreatedAt   time.Time
}

// Store persists procedural sequences and mines/searches over them.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Record appends a new observed sequence (§4.9 "record").
func (s *Store) Record(ctx context.Context, seq Sequence) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO procedural_sequences(user_id, steps, durations_ms, success)
		VALUES ($1, $2, $3, $4)
	`, seq.UserID, seq.Steps, seq.DurationsMs, seq.Success)
	return err
}

func (s *Store) sequencesFor(ctx context.Context, userID string) ([]Sequence, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, steps, durations_ms, success, created_at
		FROM procedural_sequences WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sequence
	for rows.Next() {
		var seq Sequence
		if err := rows.Scan(&seq.UserID, &seq.Steps, &seq.DurationsMs, &seq.Success, &seq.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, seq)
	}
	return out, rows.Err()
}

// DistinctUserIDs returns every user id with at least one recorded sequence,
// used by the consolidation engine to drive its per-user mining sweep
// (§4.10 step 3).
func (s *Store) DistinctUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT DISTINCT user_id FROM procedural_sequences`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// SuccessRate returns the fraction of userID's recorded sequences that
// finished successfully, used alongside MinePatterns' frequency to gate
// automation suggestions (§4.10 step 3).
func (s *Store) SuccessRate(ctx context.Context, userID string) (float64, error) {
	sequences, err := s.sequencesFor(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(sequences) == 0 {
		return 0, nil
	}
	successes := 0
	for _, seq := range sequences {
		if seq.Success {
			successes++
		}
	}
	return float64(successes) / float64(len(sequences)), nil
}

// Pattern is a frequent contiguous-or-subsequence of steps and its support.
type Pattern struct {
	Steps     []string
	Frequency int
}

// MinePatterns enumerates every subsequence of length up to maxLength that
// appears in at least minFrequency of the user's recorded sequences
// (§4.9 "mine_patterns"), using a straightforward PrefixSpan-style
// projected-database expansion: at each depth, extend every frequent prefix
// by one step drawn from the items that follow it in some sequence, and
// keep growing while support stays at or above minFrequency.
func (s *Store) MinePatterns(ctx context.Context, userID string, minFrequency, maxLength int) ([]Pattern, error) {
	sequences, err := s.sequencesFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	if maxLength <= 0 {
		maxLength = 5
	}

	stepSeqs := make([][]string, len(sequences))
	for i, seq := range sequences {
		stepSeqs[i] = seq.Steps
	}

	var patterns []Pattern
	frontier := [][]string{{}}
	for depth := 0; depth < maxLength; depth++ {
		var next [][]string
		seen := make(map[string]bool)
		for _, prefix := range frontier {
			candidates := extensionCandidates(stepSeqs, prefix)
			for _, next1 := range candidates {
				candidate := append(append([]string{}, prefix...), next1)
				key := joinSteps(candidate)
				if seen[key] {
					continue
				}
				seen[key] = true
				freq := supportCount(stepSeqs, candidate)
				if freq >= minFrequency {
					if len(candidate) > 0 {
						patterns = append(patterns, Pattern{Steps: candidate, Frequency: freq})
					}
					next = append(next, candidate)
				}
			}
		}
		if len(next) == 0 {
			break
		}
		frontier = next
	}
	return patterns, nil
}

// extensionCandidates returns the distinct steps that occur anywhere after
// prefix as a subsequence within some sequence.
func extensionCandidates(sequences [][]string, prefix []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, seq := range sequences {
		pos := subsequenceEnd(seq, prefix)
		if pos < 0 {
			continue
		}
		for _, step := range seq[pos:] {
			if !seen[step] {
				seen[step] = true
				out = append(out, step)
			}
		}
	}
	return out
}

// subsequenceEnd returns the index immediately after the earliest occurrence
// of prefix as a subsequence in seq, or -1 if prefix does not occur.
func subsequenceEnd(seq, prefix []string) int {
	if len(prefix) == 0 {
		return 0
	}
	idx := 0
	for _, target := range prefix {
		found := false
		for ; idx < len(seq); idx++ {
			if seq[idx] == target {
				found = true
				idx++
				break
			}
		}
		if !found {
			return -1
		}
	}
	return idx
}

func supportCount(sequences [][]string, pattern []string) int {
	count := 0
	for _, seq := range sequences {
		if subsequenceEnd(seq, pattern) >= 0 {
			count++
		}
	}
	return count
}

func joinSteps(steps []string) string {
	out := ""
	for i, s := range steps {
		if i > 0 {
			out += "\x1f"
		}
		out += s
	}
	return out
}

// transition is one observed edge in the empirical step graph, aggregated
// across every recorded sequence for a user.
type transition struct {
	count   int
	totalMs int64
}

// buildGraph derives mean-duration-weighted transitions between
// consecutive steps across every sequence for userID.
func (s *Store) buildGraph(ctx context.Context, userID string) (map[string]map[string]*transition, error) {
	sequences, err := s.sequencesFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	graph := make(map[string]map[string]*transition)
	for _, seq := range sequences {
		for i := 0; i+1 < len(seq.Steps); i++ {
			from, to := seq.Steps[i], seq.Steps[i+1]
			if graph[from] == nil {
				graph[from] = make(map[string]*transition)
			}
			t := graph[from][to]
			if t == nil {
				t = &transition{}
				graph[from][to] = t
			}
			t.count++
			if i+1 < len(seq.DurationsMs) {
				t.totalMs += seq.DurationsMs[i+1]
			}
		}
	}
	return graph, nil
}

func (t *transition) meanCost() float64 {
	if t.count == 0 {
		return 1
	}
	return float64(t.totalMs) / float64(t.count)
}

// pathNode is an entry in the A* open set.
type pathNode struct {
	state string
	gCost float64
	fCost float64
	path  []string
	index int
}

type openSet []*pathNode

func (o openSet) Len() int           { return len(o) }
func (o openSet) Less(i, j int) bool { return o[i].fCost < o[j].fCost }
func (o openSet) Swap(i, j int)      { o[i], o[j] = o[j], o[i]; o[i].index, o[j].index = i, j }
func (o *openSet) Push(x any)        { n := x.(*pathNode); n.index = len(*o); *o = append(*o, n) }
func (o *openSet) Pop() any {
	old := *o
	n := len(old)
	item := old[n-1]
	*o = old[:n-1]
	return item
}

// BestPath searches the empirical transition graph for the lowest
// mean-duration-cost route from stateFrom to stateTo using A*, with an
// admissible heuristic of zero (no stage-ordering information is available
// to under-estimate remaining cost beyond "at least zero"), so the search
// degrades gracefully to Dijkstra when no better heuristic applies
// (§4.9 "best_path").
func (s *Store) BestPath(ctx context.Context, userID, stateFrom, stateTo string) ([]string, float64, error) {
	graph, err := s.buildGraph(ctx, userID)
	if err != nil {
		return nil, 0, err
	}
	path, cost := searchGraph(graph, stateFrom, stateTo)
	return path, cost, nil
}

// searchGraph runs the A* search itself, isolated from persistence so it can
// be exercised directly against a hand-built transition graph in tests.
func searchGraph(graph map[string]map[string]*transition, stateFrom, stateTo string) ([]string, float64) {
	open := &openSet{}
	heap.Init(open)
	heap.Push(open, &pathNode{state: stateFrom, gCost: 0, fCost: 0, path: []string{stateFrom}})

	best := make(map[string]float64)
	best[stateFrom] = 0

	for open.Len() > 0 {
		current := heap.Pop(open).(*pathNode)
		if current.state == stateTo {
			return current.path, current.gCost
		}
		if g, ok := best[current.state]; ok && current.gCost > g {
			continue
		}
		for next, t := range graph[current.state] {
			cost := current.gCost + t.meanCost()
			if g, ok := best[next]; !ok || cost < g {
				best[next] = cost
				path := append(append([]string{}, current.path...), next)
				heap.Push(open, &pathNode{state: next, gCost: cost, fCost: cost, path: path})
			}
		}
	}
	return nil, 0
}
