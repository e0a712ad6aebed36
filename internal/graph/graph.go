package graph

import (
	"sort"
	"sync"

	dgraph "github.com/dominikbraun/graph"
)

// Graph is an in-memory directed labeled multigraph over symbol ids.
// It is protected by a readers-writer lock: traversal queries
// (Neighbors, ShortestDistance, InDegree) take the read lock; AddEdge /
// AddEdges take the write lock once per call, and CPU-heavy work (parsing,
// embedding) never happens while the lock is held.
type Graph struct {
	mu sync.RWMutex

	// edges is the canonical, deduplicated edge set keyed on
	// (source, target, kind) per the spec.md invariant.
	edges map[edgeKey]*Edge

	// outAdj / inAdj index edges for O(1) neighbor expansion without
	// rebuilding the underlying dominikbraun/graph on every query.
	outAdj map[int64][]*Edge
	inAdj  map[int64][]*Edge

	// dg is used for connectivity queries that benefit from a real graph
	// algorithm library: shortest path and strongly-connected components
	// (for cycle detection restricted to Extends/Implements).
	dg dgraph.Graph[int64, int64]

	// defaultMaxDepth bounds ShortestDistance and Neighbors when the
	// caller passes <= 0, mirroring config graph_max_depth (default 2).
	defaultMaxDepth int

	poisoned bool
}

func identity(id int64) int64 { return id }

// New creates an empty dependency graph. defaultMaxDepth should be set
// from config's graph_max_depth (spec.md §6); 0 falls back to 2.
func New(defaultMaxDepth int) *Graph {
	if defaultMaxDepth <= 0 {
		defaultMaxDepth = 2
	}
	return &Graph{
		edges:           make(map[edgeKey]*Edge),
		outAdj:          make(map[int64][]*Edge),
		inAdj:           make(map[int64][]*Edge),
		dg:              dgraph.New(identity, dgraph.Directed()),
		defaultMaxDepth: defaultMaxDepth,
	}
}

// AddEdge inserts a single typed edge, idempotent on (source, target,
// kind): re-adding the same triple updates the weight in place rather
// than creating a duplicate.
func (g *Graph) AddEdge(source, target int64, kind EdgeKind, weight float64) error {
	return g.AddEdges([]Edge{{Source: source, Target: target, Kind: kind, Weight: weight}})
}

// AddEdges performs a batched insert under a single write-lock
// acquisition, per spec.md §4.6 and §5's "batched into a single writer
// acquisition" rule.
func (g *Graph) AddEdges(edges []Edge) error {
	if g.poisoned {
		return ErrLockPoisoned
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			g.poisoned = true
			panic(r)
		}
	}()

	for _, e := range edges {
		g.addEdgeLocked(e)
	}
	return nil
}

func (g *Graph) addEdgeLocked(e Edge) {
	k := e.key()
	if existing, ok := g.edges[k]; ok {
		existing.Weight = e.Weight
		return
	}

	ne := &Edge{Source: e.Source, Target: e.Target, Kind: e.Kind, Weight: e.Weight}
	g.edges[k] = ne
	g.outAdj[e.Source] = append(g.outAdj[e.Source], ne)
	g.inAdj[e.Target] = append(g.inAdj[e.Target], ne)

	// Best-effort vertex/edge registration on the connectivity graph:
	// duplicate vertices and self-loops are expected and ignored.
	_ = g.dg.AddVertex(e.Source)
	_ = g.dg.AddVertex(e.Target)
	_ = g.dg.AddEdge(e.Source, e.Target)
}

// InDegree returns the number of distinct incoming edges to node, used
// as the global-importance prior in retrieval's graph boosting step.
func (g *Graph) InDegree(node int64) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.inAdj[node])
}

// EdgeCount returns the total number of distinct (source, target, kind)
// edges currently stored.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// NodeCount returns the number of distinct symbol ids that appear in at
// least one edge.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	seen := make(map[int64]struct{}, len(g.outAdj)+len(g.inAdj))
	for n := range g.outAdj {
		seen[n] = struct{}{}
	}
	for n := range g.inAdj {
		seen[n] = struct{}{}
	}
	return len(seen)
}

// Neighbors runs a breadth-first, deduplicated traversal from node up to
// maxDepth hops in the requested direction. A maxDepth <= 0 uses the
// graph's configured default.
func (g *Graph) Neighbors(node int64, direction Direction, maxDepth int) []Neighbor {
	if maxDepth <= 0 {
		maxDepth = g.defaultMaxDepth
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := map[int64]int{node: 0}
	type frontierItem struct {
		id   int64
		kind EdgeKind
	}
	frontier := []frontierItem{{id: node}}
	var results []Neighbor

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []frontierItem
		for _, item := range frontier {
			for _, e := range g.edgesForDirection(item.id, direction) {
				to := e.Target
				if direction == DirectionUpstream {
					to = e.Source
				}
				if _, seen := visited[to]; seen {
					continue
				}
				visited[to] = depth
				results = append(results, Neighbor{SymbolID: to, Distance: depth, Kind: e.Kind})
				next = append(next, frontierItem{id: to, kind: e.Kind})
			}
		}
		frontier = next
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].SymbolID < results[j].SymbolID
	})
	return results
}

func (g *Graph) edgesForDirection(node int64, direction Direction) []*Edge {
	switch direction {
	case DirectionDownstream:
		return g.outAdj[node]
	case DirectionUpstream:
		return g.inAdj[node]
	default:
		combined := make([]*Edge, 0, len(g.outAdj[node])+len(g.inAdj[node]))
		combined = append(combined, g.outAdj[node]...)
		combined = append(combined, g.inAdj[node]...)
		return combined
	}
}

// ShortestDistance returns the hop count of the shortest path between a
// and b in either direction, capped at maxDepth (<=0 uses the graph's
// default). Per the Open Question resolved in DESIGN.md, CoChanges edges
// participate in traversal/distance but are excluded from the retrieval
// engine's proximity *boost* — that exclusion lives in the retrieval
// package, not here.
func (g *Graph) ShortestDistance(a, b int64, maxDepth int) (int, bool) {
	if a == b {
		return 0, true
	}
	if maxDepth <= 0 {
		maxDepth = g.defaultMaxDepth
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := map[int64]bool{a: true}
	frontier := []int64{a}
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []int64
		for _, id := range frontier {
			for _, e := range g.edgesForDirection(id, DirectionBoth) {
				to := e.Target
				if to == id {
					to = e.Source
				}
				if visited[to] {
					continue
				}
				if to == b {
					return depth, true
				}
				visited[to] = true
				next = append(next, to)
			}
		}
		frontier = next
	}
	return 0, false
}

// DetectCycles reports whether the Extends/Implements subgraph contains
// any cycle, per spec.md's acyclicity invariant (Calls/Import/CoChanges
// may legally cycle and are excluded from this check).
func (g *Graph) DetectCycles() bool {
	return len(g.CycleNodes()) > 0
}

// CycleNodes returns the strongly-connected components (size > 1, or a
// single self-looping node) of the Extends/Implements subgraph.
func (g *Graph) CycleNodes() [][]int64 {
	g.mu.RLock()
	edges := make([]*Edge, 0, len(g.edges))
	for _, e := range g.edges {
		if e.Kind == EdgeExtends || e.Kind == EdgeImplements {
			edges = append(edges, e)
		}
	}
	g.mu.RUnlock()

	sub := dgraph.New(identity, dgraph.Directed())
	for _, e := range edges {
		_ = sub.AddVertex(e.Source)
		_ = sub.AddVertex(e.Target)
	}
	for _, e := range edges {
		if e.Source == e.Target {
			continue // self-loop handled below
		}
		_ = sub.AddEdge(e.Source, e.Target)
	}

	sccs, err := dgraph.StronglyConnectedComponents(sub)
	if err != nil {
		return nil
	}

	var cycles [][]int64
	for _, scc := range sccs {
		if len(scc) > 1 {
			cycles = append(cycles, append([]int64(nil), scc...))
		}
	}
	for _, e := range edges {
		if e.Source == e.Target {
			cycles = append(cycles, []int64{e.Source})
		}
	}
	return cycles
}

// Drain exports every edge currently held, for persistence to graph.bin
// or replay into a freshly constructed Graph.
func (g *Graph) Drain() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, *e)
	}
	return out
}
