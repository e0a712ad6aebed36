package search

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/omnicontext/omnicontext-core/internal/store"
)

// identifierTokenPattern extracts identifier-shaped substrings (including
// camelCase/snake_case/PascalCase runs) out of a free-form query, the same
// shapes PatternClassifier treats as lexical signals.
var identifierTokenPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]{2,}`)

// SymbolicIndex answers "which chunks define a symbol matching this name"
// queries against the metadata store's symbol table. It is the symbolic
// recall signal in the hybrid retrieval pipeline: keyword (BM25) and
// semantic (vector) search both operate on chunk content, but a query that
// names a symbol directly ("WidgetRender", "store.Symbol") should also
// surface the chunk that defines it even when the surrounding prose
// doesn't repeat the name verbatim.
type SymbolicIndex struct {
	metadata store.MetadataStore
}

// NewSymbolicIndex builds a SymbolicIndex over metadata's symbol table.
func NewSymbolicIndex(metadata store.MetadataStore) *SymbolicIndex {
	return &SymbolicIndex{metadata: metadata}
}

// Recall extracts identifier-shaped tokens from query, looks each up via
// MetadataStore.SearchSymbols, and returns the chunks that define a
// matching symbol, ranked by how many distinct tokens resolved into that
// chunk (a chunk matching two query identifiers outranks one matching
// one).
func (s *SymbolicIndex) Recall(ctx context.Context, query string, limit int) ([]*SymbolicResult, error) {
	if s == nil || s.metadata == nil {
		return nil, nil
	}

	tokens := extractIdentifierTokens(query)
	if len(tokens) == 0 {
		return nil, nil
	}

	hits := make(map[string]*SymbolicResult)
	for _, token := range tokens {
		symbols, err := s.metadata.SearchSymbols(ctx, token, limit*4)
		if err != nil {
			continue // graceful degradation: symbolic recall is an enhancement, not a dependency
		}

		seenFiles := make(map[string][]*store.Symbol)
		for _, sym := range symbols {
			seenFiles[sym.FileID] = append(seenFiles[sym.FileID], sym)
		}

		for fileID, syms := range seenFiles {
			chunks, err := s.metadata.GetChunksByFile(ctx, fileID)
			if err != nil {
				continue
			}
			for _, sym := range syms {
				chunk := chunkContainingLine(chunks, sym.StartLine)
				if chunk == nil {
					continue
				}
				r, ok := hits[chunk.ID]
				if !ok {
					r = &SymbolicResult{ChunkID: chunk.ID}
					hits[chunk.ID] = r
				}
				r.Score += matchWeight(token, sym)
				r.SymbolIDs = append(r.SymbolIDs, sym.ID)
			}
		}
	}

	if len(hits) == 0 {
		return nil, nil
	}

	results := make([]*SymbolicResult, 0, len(hits))
	for _, r := range hits {
		results = append(results, r)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkID < results[j].ChunkID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// matchWeight scores a token/symbol match higher when the token is an
// exact (case-insensitive) match on the symbol name or the tail of its FQN,
// versus a substring match surfaced only because SearchSymbols does a LIKE
// lookup.
func matchWeight(token string, sym *store.Symbol) float64 {
	lowerToken := strings.ToLower(token)
	if strings.EqualFold(sym.Name, token) {
		return 1.0
	}
	if strings.HasSuffix(strings.ToLower(sym.FQN), lowerToken) {
		return 0.8
	}
	return 0.4
}

func chunkContainingLine(chunks []*store.Chunk, line int) *store.Chunk {
	for _, c := range chunks {
		if line >= c.StartLine && line <= c.EndLine {
			return c
		}
	}
	return nil
}

func extractIdentifierTokens(query string) []string {
	matches := identifierTokenPattern.FindAllString(query, -1)
	seen := make(map[string]struct{}, len(matches))
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		key := strings.ToLower(m)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		tokens = append(tokens, m)
	}
	return tokens
}
