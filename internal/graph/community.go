package graph

import "sort"

// DefaultModularityThreshold resolves spec.md's Open Question (b): the
// minimum per-community modularity contribution required for a detected
// cluster to be emitted by DetectCommunities. See DESIGN.md.
const DefaultModularityThreshold = 0.3

// communityDetector runs one-level greedy agglomeration (a Louvain-style
// local-move pass) over the undirected, weighted projection of the
// dependency graph. It intentionally stops after local-move convergence
// rather than the full multi-level Louvain recursion: a single pass is
// sufficient for the symbol-count scale this engine targets (single
// repositories, not cross-org graphs) and keeps the algorithm easy to
// reason about and to test deterministically.
type communityDetector struct {
	threshold float64
}

// DetectCommunities partitions a subset of the graph's nodes into
// Communities via modularity-maximization greedy agglomeration, keeping
// only communities whose own contribution to overall modularity is at
// least the configured threshold (DefaultModularityThreshold if unset).
func (g *Graph) DetectCommunities(threshold float64) []Community {
	if threshold <= 0 {
		threshold = DefaultModularityThreshold
	}

	g.mu.RLock()
	adj, degree, totalWeight := g.undirectedProjectionLocked()
	g.mu.RUnlock()

	if totalWeight == 0 {
		return nil
	}

	comm := (&communityDetector{threshold: threshold}).run(adj, degree, totalWeight)
	return comm
}

// undirectedProjectionLocked merges outgoing and incoming edges into a
// symmetric weighted adjacency map. Must be called with g.mu held.
func (g *Graph) undirectedProjectionLocked() (map[int64]map[int64]float64, map[int64]float64, float64) {
	adj := make(map[int64]map[int64]float64)
	degree := make(map[int64]float64)
	var totalWeight float64

	addUndirected := func(a, b int64, w float64) {
		if w <= 0 {
			w = 1
		}
		if adj[a] == nil {
			adj[a] = make(map[int64]float64)
		}
		if adj[b] == nil {
			adj[b] = make(map[int64]float64)
		}
		adj[a][b] += w
		adj[b][a] += w
		degree[a] += w
		degree[b] += w
		totalWeight += w
	}

	for _, e := range g.edges {
		if e.Source == e.Target {
			continue
		}
		addUndirected(e.Source, e.Target, e.Weight)
	}

	return adj, degree, totalWeight
}

func (d *communityDetector) run(adj map[int64]map[int64]float64, degree map[int64]float64, totalWeight float64) []Community {
	nodes := make([]int64, 0, len(degree))
	for n := range degree {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i] < nodes[j] })

	membership := make(map[int64]int64, len(nodes))
	for _, n := range nodes {
		membership[n] = n // each node starts in its own community
	}

	m2 := 2 * totalWeight // 2m, the normalization constant used throughout

	communityDegree := func(c int64) float64 {
		var total float64
		for n, comm := range membership {
			if comm == c {
				total += degree[n]
			}
		}
		return total
	}

	improved := true
	for pass := 0; improved && pass < 20; pass++ {
		improved = false
		for _, n := range nodes {
			currentComm := membership[n]
			weightToComm := make(map[int64]float64)
			for neighbor, w := range adj[n] {
				weightToComm[membership[neighbor]] += w
			}

			// removing n from its current community
			bestComm := currentComm
			bestGain := 0.0

			// degree sum of current community excluding n
			curCommDegree := communityDegree(currentComm) - degree[n]
			baseLoss := weightToComm[currentComm] - curCommDegree*degree[n]/m2

			for comm, wTo := range weightToComm {
				if comm == currentComm {
					continue
				}
				commDeg := communityDegree(comm)
				gain := (wTo - commDeg*degree[n]/m2) - baseLoss
				if gain > bestGain+1e-12 {
					bestGain = gain
					bestComm = comm
				}
			}

			if bestComm != currentComm {
				membership[n] = bestComm
				improved = true
			}
		}
	}

	return d.materialize(membership, adj, degree, m2)
}

func (d *communityDetector) materialize(membership map[int64]int64, adj map[int64]map[int64]float64, degree map[int64]float64, m2 float64) []Community {
	groups := make(map[int64][]int64)
	for node, comm := range membership {
		groups[comm] = append(groups[comm], node)
	}

	var out []Community
	nextID := 0
	keys := make([]int64, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	for _, k := range keys {
		members := groups[k]
		if len(members) < 2 {
			continue // singleton clusters are not useful communities
		}
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })

		var internalWeight, degreeSum float64
		memberSet := make(map[int64]struct{}, len(members))
		for _, n := range members {
			memberSet[n] = struct{}{}
			degreeSum += degree[n]
		}
		for _, n := range members {
			for neighbor, w := range adj[n] {
				if _, ok := memberSet[neighbor]; ok {
					internalWeight += w
				}
			}
		}
		internalWeight /= 2 // counted from both endpoints

		modularity := internalWeight/(m2/2) - (degreeSum/m2)*(degreeSum/m2)
		if modularity < d.threshold {
			continue
		}

		out = append(out, Community{
			ID:         nextID,
			Modularity: modularity,
			Members:    members,
		})
		nextID++
	}
	return out
}
