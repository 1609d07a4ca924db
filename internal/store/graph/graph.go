// Package graph implements C4: the typed-node/typed-edge graph store,
// bounded-depth traversal, shortest path, and a per-framework DEPENDS_ON
// cycle check (WouldCreateCycle). UpsertEdge does not call that check and
// does not reject an edge that closes a DEPENDS_ON cycle.
package graph

import "context"

// Node is a graph vertex: a Source, Document, Chunk, Concept, or
// Framework identified by ID, carrying free-form properties.
type Node struct {
	ID     string
	Labels []string
	Props  map[string]any
}

// Edge is a typed, directed relationship between two node IDs.
type Edge struct {
	Source        string
	Kind          string
	Target        string
	Strength      float64
	EvidenceCount int
	FrameworkID   string
}

// PathHop is one step of a traversal or shortest-path result.
type PathHop struct {
	NodeID string
	Kind   string // relationship kind traversed to reach this hop; empty for the start node
}

// Store is the pluggable backend contract for C4.
type Store interface {
	UpsertNode(ctx context.Context, node Node) error
	UpsertEdge(ctx context.Context, edge Edge) error
	GetNode(ctx context.Context, id string) (Node, bool, error)
	Neighbors(ctx context.Context, id, kind string) ([]string, error)

	// Traverse performs a bounded-depth breadth-first walk from start,
	// following only the given relationship kinds (all kinds if empty),
	// and returns every reached node's hop record.
	Traverse(ctx context.Context, start string, kinds []string, maxDepth int) ([]PathHop, error)

	// ShortestPath returns the shortest hop sequence from -> to following
	// only the given relationship kinds (all kinds if empty), or
	// ErrNoPath if unreachable within maxDepth.
	ShortestPath(ctx context.Context, from, to string, kinds []string, maxDepth int) ([]PathHop, error)

	// WouldCreateCycle reports whether adding a DEPENDS_ON edge from src to
	// dst, scoped to frameworkID, would create a cycle in the subgraph of
	// existing DEPENDS_ON edges for that framework (§4.5's invariant).
	WouldCreateCycle(ctx context.Context, frameworkID, src, dst string) (bool, error)

	// DeleteNode removes the node with the given id along with every edge
	// that names it as either source or target. Deleting a node that
	// doesn't exist is a no-op, not an error.
	DeleteNode(ctx context.Context, id string) error

	Close() error
}
