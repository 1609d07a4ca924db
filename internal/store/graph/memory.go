package graph

import (
	"context"
	"sort"
	"sync"

	"ptolemies/internal/model"
)

type edgeKey struct {
	src, kind string
}

// memoryStore is the default in-memory GraphDB backend, supporting
// typed-edge traversal, shortest path, and cycle detection.
type memoryStore struct {
	mu    sync.RWMutex
	nodes map[string]Node
	// out[src][kind] -> set of (dst -> Edge), for forward traversal.
	out map[edgeKey]map[string]Edge
}

func NewMemory() Store {
	return &memoryStore{
		nodes: make(map[string]Node),
		out:   make(map[edgeKey]map[string]Edge),
	}
}

func (m *memoryStore) UpsertNode(_ context.Context, n Node) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]any, len(n.Props))
	for k, v := range n.Props {
		cp[k] = v
	}
	m.nodes[n.ID] = Node{ID: n.ID, Labels: append([]string{}, n.Labels...), Props: cp}
	return nil
}

// UpsertEdge merges into any existing edge between the same (source,
// kind, target) rather than overwriting it: Strength takes the max of
// the two (an edge only gets more confident, never less) and
// EvidenceCount accumulates by sum (per §4.5, repeated co-occurrence is
// additional evidence for the same relationship).
func (m *memoryStore) UpsertEdge(_ context.Context, e Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := edgeKey{src: e.Source, kind: e.Kind}
	if m.out[key] == nil {
		m.out[key] = make(map[string]Edge)
	}
	if existing, ok := m.out[key][e.Target]; ok {
		if existing.Strength > e.Strength {
			e.Strength = existing.Strength
		}
		e.EvidenceCount += existing.EvidenceCount
	}
	m.out[key][e.Target] = e
	return nil
}

func (m *memoryStore) GetNode(_ context.Context, id string) (Node, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.nodes[id]
	return n, ok, nil
}

func (m *memoryStore) Neighbors(_ context.Context, id, kind string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.neighborsLocked(id, []string{kind})
	sort.Strings(out)
	return out, nil
}

// neighborsLocked returns all targets reachable from id via any of kinds
// (all kinds if empty). Caller must hold m.mu.
func (m *memoryStore) neighborsLocked(id string, kinds []string) []string {
	var out []string
	if len(kinds) == 0 || (len(kinds) == 1 && kinds[0] == "") {
		for key, dsts := range m.out {
			if key.src != id {
				continue
			}
			for dst := range dsts {
				out = append(out, dst)
			}
		}
		return out
	}
	for _, kind := range kinds {
		dsts, ok := m.out[edgeKey{src: id, kind: kind}]
		if !ok {
			continue
		}
		for dst := range dsts {
			out = append(out, dst)
		}
	}
	return out
}

func (m *memoryStore) Traverse(_ context.Context, start string, kinds []string, maxDepth int) ([]PathHop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if maxDepth < 0 {
		maxDepth = 0
	}

	visited := map[string]bool{start: true}
	hops := []PathHop{{NodeID: start}}
	frontier := []string{start}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for _, kind := range kindsOrAll(kinds) {
				dsts, ok := m.out[edgeKey{src: id, kind: kind}]
				if !ok {
					continue
				}
				targets := make([]string, 0, len(dsts))
				for dst := range dsts {
					targets = append(targets, dst)
				}
				sort.Strings(targets)
				for _, dst := range targets {
					if visited[dst] {
						continue
					}
					visited[dst] = true
					hops = append(hops, PathHop{NodeID: dst, Kind: kind})
					next = append(next, dst)
				}
			}
		}
		frontier = next
	}
	return hops, nil
}

func (m *memoryStore) ShortestPath(_ context.Context, from, to string, kinds []string, maxDepth int) ([]PathHop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if from == to {
		return []PathHop{{NodeID: from}}, nil
	}

	type queued struct {
		id   string
		path []PathHop
	}
	visited := map[string]bool{from: true}
	queue := []queued{{id: from, path: []PathHop{{NodeID: from}}}}

	for depth := 0; depth < maxDepth && len(queue) > 0; depth++ {
		var nextQueue []queued
		for _, q := range queue {
			for _, kind := range kindsOrAll(kinds) {
				dsts, ok := m.out[edgeKey{src: q.id, kind: kind}]
				if !ok {
					continue
				}
				targets := make([]string, 0, len(dsts))
				for dst := range dsts {
					targets = append(targets, dst)
				}
				sort.Strings(targets)
				for _, dst := range targets {
					if visited[dst] {
						continue
					}
					visited[dst] = true
					path := append(append([]PathHop{}, q.path...), PathHop{NodeID: dst, Kind: kind})
					if dst == to {
						return path, nil
					}
					nextQueue = append(nextQueue, queued{id: dst, path: path})
				}
			}
		}
		queue = nextQueue
	}
	return nil, model.NewError(model.ErrNoPath, "no path found within max depth", nil)
}

// WouldCreateCycle checks reachability of src starting from dst over
// DEPENDS_ON edges scoped to frameworkID: if dst can already reach src,
// adding src->dst would close a cycle (§4.5's per-framework acyclicity
// invariant, per the Open Question resolution to scope cycle checks
// per-framework rather than globally).
func (m *memoryStore) WouldCreateCycle(_ context.Context, frameworkID, src, dst string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if src == dst {
		return true, nil
	}
	visited := map[string]bool{dst: true}
	frontier := []string{dst}
	const dependsOn = "DEPENDS_ON"

	for len(frontier) > 0 {
		var next []string
		for _, id := range frontier {
			edges, ok := m.out[edgeKey{src: id, kind: dependsOn}]
			if !ok {
				continue
			}
			for target, e := range edges {
				if e.FrameworkID != frameworkID {
					continue
				}
				if target == src {
					return true, nil
				}
				if !visited[target] {
					visited[target] = true
					next = append(next, target)
				}
			}
		}
		frontier = next
	}
	return false, nil
}

// DeleteNode removes id's node and every edge naming it as source or
// target. Outgoing edges are dropped by deleting every kind-bucket keyed
// to id; incoming edges require a scan, since out is indexed by source
// only.
func (m *memoryStore) DeleteNode(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.nodes, id)
	for key := range m.out {
		if key.src == id {
			delete(m.out, key)
		}
	}
	for key, dsts := range m.out {
		if _, ok := dsts[id]; ok {
			delete(dsts, id)
			if len(dsts) == 0 {
				delete(m.out, key)
			}
		}
	}
	return nil
}

func (m *memoryStore) Close() error { return nil }

func kindsOrAll(kinds []string) []string {
	if len(kinds) > 0 {
		return kinds
	}
	return []string{
		"DOCUMENTS", "DEPENDS_ON", "INTEGRATES_WITH", "RELATED_TO", "CONTAINS_CONCEPT", "APPEARS_IN",
	}
}
