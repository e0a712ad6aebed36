package search

import (
	"math"
	"sort"

	"github.com/omnicontext/omnicontext-core/internal/graph"
	"github.com/omnicontext/omnicontext-core/internal/store"
)

// structuralFloor and structuralCeilingGain implement the boost formula
// "0.4 + 0.6 * structural_weight": every result keeps at least 40% of its
// fused score, and a symbol that is both globally important and close to
// one of the query's anchor symbols can earn up to 1.0x (no penalty).
const (
	structuralFloor       = 0.4
	structuralCeilingGain = 0.6

	// graphBoostMaxDepth bounds the proximity search; deeper hops contribute
	// negligibly once 1/(1+depth) decays past this.
	graphBoostMaxDepth = 4
)

// ApplyGraphBoost multiplies each result's score by a structural-boost
// factor derived from the dependency graph: symbols many other symbols
// depend on (global importance), and symbols structurally close to the
// query's anchor symbols (local proximity), rank higher than equally
// keyword/semantic-relevant but structurally peripheral code.
//
// anchorSymbolIDs typically comes from SymbolicIndex.Recall's hits for the
// same query: "the symbols the query named directly". Per the resolved
// temporal-coupling question, CoChanges edges count toward traversal
// elsewhere in internal/graph but are excluded here — co-committed files
// are not necessarily structurally related, so they shouldn't anchor a
// proximity boost.
func ApplyGraphBoost(results []*SearchResult, g *graph.Graph, anchorSymbolIDs []int64) []*SearchResult {
	if g == nil || len(results) == 0 {
		return results
	}

	maxInDegree := 1
	for _, r := range results {
		if r.Chunk == nil {
			continue
		}
		for _, sym := range r.Chunk.Symbols {
			if d := g.InDegree(sym.ID); d > maxInDegree {
				maxInDegree = d
			}
		}
	}

	for _, r := range results {
		weight := structuralWeight(r, g, anchorSymbolIDs, maxInDegree)
		boost := structuralFloor + structuralCeilingGain*weight
		r.GraphBoost = boost
		r.Score *= boost
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	return results
}

// structuralWeight combines global importance (in-degree, log-scaled
// against the batch maximum) and local proximity (nearest non-CoChanges
// hop to any anchor symbol) into a single 0-1 score.
func structuralWeight(r *SearchResult, g *graph.Graph, anchorSymbolIDs []int64, maxInDegree int) float64 {
	if r.Chunk == nil || len(r.Chunk.Symbols) == 0 {
		return 0
	}

	var globalImportance float64
	for _, sym := range r.Chunk.Symbols {
		d := g.InDegree(sym.ID)
		v := math.Log1p(float64(d)) / math.Log1p(float64(maxInDegree))
		if v > globalImportance {
			globalImportance = v
		}
	}

	localProximity := nearestNonCoChangeProximity(r.Chunk.Symbols, g, anchorSymbolIDs)

	weight := 0.5*globalImportance + 0.5*localProximity
	if weight > 1 {
		weight = 1
	}
	return weight
}

// nearestNonCoChangeProximity returns 1/(1+hops) to the closest anchor
// symbol reachable from any of the chunk's symbols over a path whose final
// hop is not a CoChanges edge, or 0 if none of the chunk's symbols are
// within graphBoostMaxDepth of any anchor. Neighbor.Kind only records the
// last hop of a BFS path, so this is an approximation of "non-CoChanges
// reachability" rather than an exact all-edges-excluding-CoChanges
// traversal; it is sufficient to keep co-committed-but-unrelated files
// from anchoring the proximity boost.
func nearestNonCoChangeProximity(symbols []*store.Symbol, g *graph.Graph, anchorSymbolIDs []int64) float64 {
	if len(anchorSymbolIDs) == 0 {
		return 0
	}
	anchors := make(map[int64]struct{}, len(anchorSymbolIDs))
	for _, id := range anchorSymbolIDs {
		anchors[id] = struct{}{}
	}

	best := -1
	for _, sym := range symbols {
		if _, isAnchor := anchors[sym.ID]; isAnchor {
			return 1.0 // the result itself defines an anchor symbol
		}
		for _, n := range g.Neighbors(sym.ID, graph.DirectionBoth, graphBoostMaxDepth) {
			if n.Kind == graph.EdgeCoChanges {
				continue
			}
			if _, isAnchor := anchors[n.SymbolID]; !isAnchor {
				continue
			}
			if best == -1 || n.Distance < best {
				best = n.Distance
			}
		}
	}
	if best == -1 {
		return 0
	}
	return 1.0 / float64(1+best)
}
