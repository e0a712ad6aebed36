package engine

import (
	"context"
	"hash/fnv"
	"strings"
	"time"

	"github.com/omnicontext/omnicontext-core/internal/chunk"
	coreerrors "github.com/omnicontext/omnicontext-core/internal/errors"
	"github.com/omnicontext/omnicontext-core/internal/graph"
	"github.com/omnicontext/omnicontext-core/internal/parser"
	"github.com/omnicontext/omnicontext-core/internal/store"
)

// packagePathOf turns a file's relative path into the "package path"
// BuildFQN expects: directory components joined by the language's own
// separator, extension stripped. This is a simplification of full
// package-path resolution (no go.mod/module-root awareness, no nested
// class containers) — see DESIGN.md — but it's enough for the symbolic
// recall signal, which only needs FQNs that are unique per file and that
// end in the bare symbol name.
func packagePathOf(relPath string) string {
	dir := strings.TrimSuffix(relPath, pathExt(relPath))
	dir = strings.ReplaceAll(dir, "/", ".")
	return strings.Trim(dir, ".")
}

func pathExt(p string) string {
	if i := strings.LastIndex(p, "."); i >= 0 {
		return p[i:]
	}
	return ""
}

// symbolID derives a stable numeric id from a symbol's FQN so dependency
// graph edges survive process restarts without needing a persisted
// counter: the same FQN always hashes to the same id, matching
// store.Symbol.ID's "stable numeric id" contract.
func symbolID(fqn string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(fqn))
	v := h.Sum64()
	return int64(v &^ (1 << 63)) // keep it a positive int64
}

// convertChunks turns chunker output into store.Chunk, assigning each
// symbol a stable ID and FQN the way internal/index/runner.go's
// convertChunkToStore does for plain metadata, generalized to also
// populate the fields the dependency graph and symbolic recall need.
func convertChunks(chunks []*chunk.Chunk, fileID, relPath, language string) []*store.Chunk {
	pkgPath := packagePathOf(relPath)

	out := make([]*store.Chunk, len(chunks))
	now := time.Now()
	for i, c := range chunks {
		var symbols []*store.Symbol
		for _, s := range c.Symbols {
			fqn := parser.BuildFQN(language, pkgPath, nil, s.Name)
			symbols = append(symbols, &store.Symbol{
				ID:         symbolID(fqn),
				Name:       s.Name,
				FQN:        fqn,
				Type:       store.SymbolType(s.Type),
				FileID:     fileID,
				StartLine:  s.StartLine,
				EndLine:    s.EndLine,
				Signature:  s.Signature,
				DocComment: s.DocComment,
			})
		}
		out[i] = &store.Chunk{
			ID:          c.ID,
			FileID:      fileID,
			FilePath:    relPath,
			Content:     c.Content,
			RawContent:  c.RawContent,
			Context:     c.Context,
			ContentType: store.ContentType(c.ContentType),
			Language:    c.Language,
			StartLine:   c.StartLine,
			EndLine:     c.EndLine,
			Symbols:     symbols,
			Metadata:    c.Metadata,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}
	return out
}

// registerSymbols records a freshly-indexed file's symbols in the engine's
// in-memory id/path caches. The dependency graph itself only ever sees
// edges (internal/graph has no reverse id→symbol lookup), so GetSymbol,
// GetDependencies, and GetFileSummary resolve through this cache instead.
// It is rebuilt in full by Index and kept current incrementally by
// ProcessFile; after a restart with no reindex it is empty until the next
// Index call repopulates it (documented limitation, see DESIGN.md).
func (e *Engine) registerSymbols(relPath string, chunks []*store.Chunk) {
	var ids []int64
	e.mu.Lock()
	for _, c := range chunks {
		for _, sym := range c.Symbols {
			e.symbolByID[sym.ID] = sym
			ids = append(ids, sym.ID)
		}
	}
	e.pathSymbolIDs[relPath] = ids
	e.mu.Unlock()
}

// GetSymbol resolves a fully-qualified name to the symbol definition,
// searching the metadata store's symbol table for the bare name and
// filtering for an exact FQN match (SearchSymbols does substring/LIKE
// matching, so multiple candidates can share a bare name across files).
func (e *Engine) GetSymbol(ctx context.Context, fqn string) (*store.Symbol, error) {
	_, name := parser.SplitFQN(detectLanguageFromFQN(fqn), fqn)
	if name == "" {
		name = fqn
	}
	candidates, err := e.cfg.Metadata.SearchSymbols(ctx, name, 50)
	if err != nil {
		return nil, err
	}
	for _, sym := range candidates {
		if sym.FQN == fqn {
			return sym, nil
		}
	}
	return nil, coreerrors.New(coreerrors.ErrCodeInvalidQuery, "symbol not found: "+fqn, nil)
}

// detectLanguageFromFQN guesses the separator convention to split on: "::"
// implies Go, anything else falls back to the dotted convention shared by
// the rest of BuildFQN's supported languages.
func detectLanguageFromFQN(fqn string) string {
	if strings.Contains(fqn, "::") {
		return "go"
	}
	return "python"
}

// BatchGetSymbols resolves multiple FQNs in one call, omitting any that
// don't resolve rather than failing the whole batch.
func (e *Engine) BatchGetSymbols(ctx context.Context, fqns []string) (map[string]*store.Symbol, error) {
	out := make(map[string]*store.Symbol, len(fqns))
	for _, fqn := range fqns {
		sym, err := e.GetSymbol(ctx, fqn)
		if err != nil {
			continue
		}
		out[fqn] = sym
	}
	return out, nil
}

// FileSummary is GetFileSummary's result: enough about a file to decide
// whether to pull its full content into a context window.
type FileSummary struct {
	Path       string
	Language   string
	ChunkCount int
	LineCount  int
	Symbols    []*store.Symbol
}

// GetFileSummary looks up a file's chunk/symbol inventory without
// returning full chunk content.
func (e *Engine) GetFileSummary(ctx context.Context, relPath string) (*FileSummary, error) {
	file, err := e.cfg.Metadata.GetFileByPath(ctx, e.cfg.ProjectID, relPath)
	if err != nil {
		return nil, err
	}
	chunks, err := e.cfg.Metadata.GetChunksByFile(ctx, file.ID)
	if err != nil {
		return nil, err
	}

	summary := &FileSummary{Path: relPath, Language: file.Language, ChunkCount: len(chunks)}
	for _, c := range chunks {
		if c.EndLine > summary.LineCount {
			summary.LineCount = c.EndLine
		}
		summary.Symbols = append(summary.Symbols, c.Symbols...)
	}
	return summary, nil
}

// DependencyResult is one entry of GetDependencies' neighbor list: the
// resolved symbol (when the in-memory cache has seen it since the last
// Index) alongside the graph's own distance/edge-kind bookkeeping.
type DependencyResult struct {
	Symbol   *store.Symbol // nil if not in the in-memory cache (see registerSymbols)
	SymbolID int64
	Distance int
	Kind     graph.EdgeKind
}

// GetDependencies resolves fqn to a symbol and walks the dependency graph
// from it, returning neighbors up to maxDepth hops away in direction dir.
func (e *Engine) GetDependencies(ctx context.Context, fqn string, dir graph.Direction, maxDepth int) ([]DependencyResult, error) {
	sym, err := e.GetSymbol(ctx, fqn)
	if err != nil {
		return nil, err
	}
	if maxDepth <= 0 {
		maxDepth = e.cfg.Graph.MaxDepth
	}

	neighbors := e.graph.Neighbors(sym.ID, dir, maxDepth)

	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]DependencyResult, len(neighbors))
	for i, n := range neighbors {
		out[i] = DependencyResult{
			Symbol:   e.symbolByID[n.SymbolID],
			SymbolID: n.SymbolID,
			Distance: n.Distance,
			Kind:     n.Kind,
		}
	}
	return out, nil
}

// buildTemporalEdges shells out to git (via internal/graph.BuildTemporalEdges)
// to compute co-change edges over the files indexed so far and merges them
// into the engine's dependency graph. It is called once per Index run
// (spec.md §4.7's BuildTemporalEdges(limitCommits)) rather than per file,
// since co-change ratios are only meaningful across the whole tree.
func (e *Engine) buildTemporalEdges(ctx context.Context) error {
	e.mu.RLock()
	pathToIDs := make(map[string][]int64, len(e.pathSymbolIDs))
	for p, ids := range e.pathSymbolIDs {
		pathToIDs[p] = ids
	}
	e.mu.RUnlock()

	if len(pathToIDs) == 0 {
		return nil
	}

	limit := e.cfg.Graph.CoChangeHistoryLimit
	if limit <= 0 {
		limit = 500
	}
	threshold := e.cfg.Graph.CoChangeThreshold
	if threshold <= 0 {
		threshold = 0.3
	}

	edges, err := graph.BuildTemporalEdges(ctx, e.cfg.RootPath, limit, pathToIDs, threshold)
	if err != nil {
		return err
	}
	if len(edges) == 0 {
		return nil
	}
	return e.graph.AddEdges(edges)
}
