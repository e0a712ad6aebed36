// Package parser builds structural information — symbols, imports, and
// cross-references — on top of internal/chunk's tree-sitter wrapper. It is
// the source of the facts internal/graph turns into typed dependency edges
// and internal/store indexes as FQN-addressable symbols.
package parser

import (
	"github.com/omnicontext/omnicontext-core/internal/chunk"
	"github.com/omnicontext/omnicontext-core/internal/graph"
)

// Import is a single import/require/include statement found in a file.
type Import struct {
	Path  string // raw import path/module as written in source
	Alias string // local alias, empty if none
	Line  int    // 1-indexed
}

// Reference is a directed relation discovered between a symbol defined in
// this file and another symbol named elsewhere, not yet resolved to a
// concrete FQN. internal/graph's ImportResolver (via engine wiring) turns
// these into graph.Edge values once the target FQN is known.
type Reference struct {
	FromFQN string
	ToName  string // unresolved name as it appears at the call/reference site
	Kind    graph.EdgeKind
	Line    int
}

// FileStructure is everything Analyzer.ExtractStructure recovers from a
// single source file.
type FileStructure struct {
	Path        string
	Language    string
	PackageName string // package/module/namespace declared by the file, if any
	Imports     []Import
	Symbols     []*chunk.Symbol
	SymbolFQNs  map[*chunk.Symbol]string // FQN for each entry in Symbols, built via BuildFQN
	References  []Reference
}

// Analyzer extracts structural information from a parsed source file.
type Analyzer interface {
	ExtractStructure(file *chunk.FileInput) (*FileStructure, error)
}
