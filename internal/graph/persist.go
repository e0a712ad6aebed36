package graph

import (
	"bufio"
	"encoding/gob"
	"os"
)

// snapshot is the on-disk representation written to graph.bin. The
// dependency graph is always recomputable from the metadata store's
// dep_edges table (spec.md §6), so the snapshot exists purely to avoid
// replaying every edge on every daemon start.
type snapshot struct {
	DefaultMaxDepth int
	Edges           []Edge
}

// Save writes the graph's edge set to path as a gob-encoded snapshot.
func (g *Graph) Save(path string) error {
	g.mu.RLock()
	snap := snapshot{DefaultMaxDepth: g.defaultMaxDepth, Edges: g.Drain()}
	g.mu.RUnlock()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := gob.NewEncoder(w).Encode(snap); err != nil {
		return err
	}
	return w.Flush()
}

// Load reconstructs a Graph from a snapshot previously written by Save.
// A missing file is not an error: callers fall back to draining edges
// from the metadata store instead (spec.md §4.7 Engine::new).
func Load(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(0), nil
		}
		return nil, err
	}
	defer f.Close()

	var snap snapshot
	if err := gob.NewDecoder(bufio.NewReader(f)).Decode(&snap); err != nil {
		return nil, err
	}

	g := New(snap.DefaultMaxDepth)
	if err := g.AddEdges(snap.Edges); err != nil {
		return nil, err
	}
	return g, nil
}
