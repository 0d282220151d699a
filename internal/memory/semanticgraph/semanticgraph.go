// Package semanticgraph implements the Semantic Graph sub-store of
// Long-Term Memory (C9b), adapted directly from the teacher's
// internal/persistence/databases/postgres_graph.go (nodes/edges tables,
// plain SQL upserts, Neighbors query) and extended with the
// confidence-update, pagerank, and community-detection operations §4.9
// requires that the teacher's graph store doesn't have.
package semanticgraph

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Node is a semantic graph vertex.
type Node struct {
	ID     string
	Labels []string
	Props  map[string]any
}

// FeedbackSign is positive or negative feedback on an edge (§4.9).
type FeedbackSign int

const (
	Positive FeedbackSign = 1
	Negative FeedbackSign = -1
)

// Store persists the semantic graph.
type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) UpsertNode(ctx context.Context, id string, labels []string, props map[string]any) error {
	if props == nil {
		props = map[string]any{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO semantic_nodes(id, labels, props) VALUES($1,$2,$3)
		ON CONFLICT (id) DO UPDATE SET labels = EXCLUDED.labels, props = EXCLUDED.props
	`, id, labels, props)
	return err
}

// UpsertEdge inserts an edge at the default confidence (0.5) if absent.
func (s *Store) UpsertEdge(ctx context.Context, source, rel, target string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO semantic_edges(source, rel, target, confidence, evidence_count)
		VALUES($1,$2,$3,0.5,1)
		ON CONFLICT (source, rel, target) DO NOTHING
	`, source, rel, target)
	return err
}

// UpdateConfidence applies the feedback-driven confidence update from §4.9:
// c' = min(1, c*1.1) on positive feedback, max(0.1, c*0.9) on negative,
// and increments evidence_count on every call.
func (s *Store) UpdateConfidence(ctx context.Context, source, rel, target string, feedback FeedbackSign) error {
	var expr string
	if feedback == Positive {
		expr = `LEAST(1, confidence * 1.1)`
	} else {
		expr = `GREATEST(0.1, confidence * 0.9)`
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE semantic_edges
		SET confidence = `+expr+`, evidence_count = evidence_count + 1
		WHERE source = $1 AND rel = $2 AND target = $3
	`, source, rel, target)
	return err
}

func (s *Store) Neighbors(ctx context.Context, id string, rel string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT target FROM semantic_edges WHERE source=$1 AND rel=$2 ORDER BY target`, id, rel)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, err
		}
		out = append(out, target)
	}
	return out, rows.Err()
}

func (s *Store) GetNode(ctx context.Context, id string) (Node, bool) {
	row := s.pool.QueryRow(ctx, `SELECT labels, props FROM semantic_nodes WHERE id=$1`, id)
	var labels []string
	var props map[string]any
	if err := row.Scan(&labels, &props); err != nil {
		return Node{}, false
	}
	return Node{ID: id, Labels: labels, Props: props}, true
}

type edge struct {
	source, target string
	confidence      float64
}

func (s *Store) loadEdges(ctx context.Context) ([]edge, error) {
	rows, err := s.pool.Query(ctx, `SELECT source, target, confidence FROM semantic_edges`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var edges []edge
	for rows.Next() {
		var e edge
		if err := rows.Scan(&e.source, &e.target, &e.confidence); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// PageRank computes confidence-weighted PageRank over the graph with the
// given damping factor (0.85 when <= 0), run for exactly maxIter iterations
// (20 when <= 0); there is no early stop on convergence.
func (s *Store) PageRank(ctx context.Context, damping float64, maxIter int) (map[string]float64, error) {
	edges, err := s.loadEdges(ctx)
	if err != nil {
		return nil, err
	}
	return pageRank(edges, damping, maxIter), nil
}

// pageRank is the pure computation behind PageRank, isolated from
// persistence so it can be exercised directly against hand-built edge sets.
func pageRank(edges []edge, damping float64, maxIter int) map[string]float64 {
	if damping <= 0 {
		damping = 0.85
	}
	if maxIter <= 0 {
		maxIter = 20
	}

	nodes := make(map[string]struct{})
	outWeight := make(map[string]float64)
	for _, e := range edges {
		nodes[e.source] = struct{}{}
		nodes[e.target] = struct{}{}
		outWeight[e.source] += e.confidence
	}
	n := len(nodes)
	if n == 0 {
		return map[string]float64{}
	}

	rank := make(map[string]float64, n)
	for id := range nodes {
		rank[id] = 1.0 / float64(n)
	}

	for iter := 0; iter < maxIter; iter++ {
		next := make(map[string]float64, n)
		for id := range nodes {
			next[id] = (1 - damping) / float64(n)
		}
		for _, e := range edges {
			if outWeight[e.source] == 0 {
				continue
			}
			share := rank[e.source] * (e.confidence / outWeight[e.source])
			next[e.target] += damping * share
		}
		rank = next
	}
	return rank
}

// CommunityDetect runs a label-propagation pass: every node adopts the most
// common label among its neighbors, iterated until stable or maxIter,
// returning cluster id -> member ids. A simple, dependency-free stand-in
// for full Louvain/Leiden, adequate for advisory clustering over the
// comparatively small semantic graph this service maintains.
func (s *Store) CommunityDetect(ctx context.Context, maxIter int) (map[string][]string, error) {
	edges, err := s.loadEdges(ctx)
	if err != nil {
		return nil, err
	}
	return communityDetect(edges, maxIter), nil
}

// communityDetect is the pure label-propagation pass behind CommunityDetect.
func communityDetect(edges []edge, maxIter int) map[string][]string {
	if maxIter <= 0 {
		maxIter = 10
	}

	adjacency := make(map[string][]string)
	nodes := make(map[string]struct{})
	for _, e := range edges {
		adjacency[e.source] = append(adjacency[e.source], e.target)
		adjacency[e.target] = append(adjacency[e.target], e.source)
		nodes[e.source] = struct{}{}
		nodes[e.target] = struct{}{}
	}

	label := make(map[string]string, len(nodes))
	for id := range nodes {
		label[id] = id
	}

	ordered := make([]string, 0, len(nodes))
	for id := range nodes {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for _, id := range ordered {
			counts := make(map[string]int)
			for _, neighbor := range adjacency[id] {
				counts[label[neighbor]]++
			}
			best, bestCount := label[id], -1
			var candidates []string
			for l, c := range counts {
				candidates = append(candidates, l)
				_ = c
			}
			sort.Strings(candidates)
			for _, l := range candidates {
				if counts[l] > bestCount {
					best, bestCount = l, counts[l]
				}
			}
			if best != label[id] {
				label[id] = best
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	clusters := make(map[string][]string)
	for _, id := range ordered {
		l := label[id]
		clusters[l] = append(clusters[l], id)
	}
	return clusters
}
