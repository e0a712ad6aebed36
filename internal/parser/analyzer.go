package parser

import (
	"context"

	"github.com/omnicontext/omnicontext-core/internal/chunk"
)

// TreeSitterAnalyzer implements Analyzer on top of internal/chunk's
// tree-sitter Parser and SymbolExtractor, adding the structural facts the
// chunker doesn't need but internal/graph does: package/module identity,
// import statements, and Calls/Extends/Implements references.
type TreeSitterAnalyzer struct {
	parser    *chunk.Parser
	extractor *chunk.SymbolExtractor
	registry  *chunk.LanguageRegistry
}

// NewAnalyzer builds an Analyzer sharing the default language registry
// with the chunking pipeline, so both stages agree on node-type
// classification for every supported language.
func NewAnalyzer() *TreeSitterAnalyzer {
	return &TreeSitterAnalyzer{
		parser:    chunk.NewParser(),
		extractor: chunk.NewSymbolExtractor(),
		registry:  chunk.DefaultRegistry(),
	}
}

// Close releases the underlying tree-sitter parser.
func (a *TreeSitterAnalyzer) Close() {
	a.parser.Close()
}

// ExtractStructure parses file and recovers its package identity, import
// statements, declared symbols, and the references those symbols make to
// other (possibly unresolved) names.
func (a *TreeSitterAnalyzer) ExtractStructure(file *chunk.FileInput) (*FileStructure, error) {
	tree, err := a.parser.Parse(context.Background(), file.Content, file.Language)
	if err != nil {
		return nil, err
	}

	symbols := a.extractor.Extract(tree, file.Content)
	symbolNodes := a.matchSymbolNodes(tree, file.Content, symbols)
	packageName := a.extractPackageName(tree, file.Content, file.Language)

	fqnOf := func(sym *chunk.Symbol) string {
		container := receiverOrContainer(symbolNodes[sym], file.Content, file.Language)
		var containers []string
		if container != "" {
			containers = []string{container}
		}
		return BuildFQN(file.Language, packageName, containers, sym.Name)
	}

	fqns := make(map[*chunk.Symbol]string, len(symbols))
	for _, sym := range symbols {
		fqns[sym] = fqnOf(sym)
	}

	return &FileStructure{
		Path:        file.Path,
		Language:    file.Language,
		PackageName: packageName,
		Imports:     extractImports(tree, file.Content, file.Language),
		Symbols:     symbols,
		SymbolFQNs:  fqns,
		References:  extractReferences(tree, file.Content, file.Language, symbolNodes, fqnOf),
	}, nil
}

// matchSymbolNodes re-walks the tree to recover, for each extracted
// Symbol, the AST node it came from. chunk.Symbol carries only line
// numbers, so nodes are matched by starting line — adequate because the
// chunker's extraction walk visits symbol-defining nodes in source order
// with one node per declaration.
func (a *TreeSitterAnalyzer) matchSymbolNodes(tree *chunk.Tree, source []byte, symbols []*chunk.Symbol) map[*chunk.Symbol]*chunk.Node {
	byLine := make(map[int]*chunk.Node)
	tree.Root.Walk(func(n *chunk.Node) bool {
		line := int(n.StartPoint.Row) + 1
		if _, exists := byLine[line]; !exists {
			byLine[line] = n
		}
		return true
	})

	out := make(map[*chunk.Symbol]*chunk.Node, len(symbols))
	for _, sym := range symbols {
		if n, ok := byLine[sym.StartLine]; ok {
			out[sym] = n
		}
	}
	return out
}

func (a *TreeSitterAnalyzer) extractPackageName(tree *chunk.Tree, source []byte, language string) string {
	switch language {
	case "go":
		if clause := tree.Root.FindChildByType("package_clause"); clause != nil {
			if id := clause.FindChildByType("package_identifier"); id != nil {
				return id.GetContent(source)
			}
		}
	case "python", "typescript", "tsx", "javascript", "jsx":
		// These ecosystems derive the module/namespace qualifier from the
		// file path, not from in-source syntax; callers supply it via the
		// file's project-relative path when building FQNs at the engine
		// layer (see internal/engine).
		return ""
	}
	return ""
}

// receiverOrContainer returns the Go method receiver's type name so method
// FQNs look like "pkg::Type::Method" rather than colliding with
// package-level functions of the same name. Other languages don't track
// container nesting at this layer.
func receiverOrContainer(node *chunk.Node, source []byte, language string) string {
	if node == nil || language != "go" || node.Type != "method_declaration" {
		return ""
	}
	params := node.FindChildByType("parameter_list")
	if params == nil {
		return ""
	}
	for _, param := range params.FindChildrenByType("parameter_declaration") {
		for _, t := range param.FindAllByType("type_identifier") {
			return t.GetContent(source)
		}
		for _, t := range param.FindAllByType("pointer_type") {
			if id := t.FindChildByType("type_identifier"); id != nil {
				return id.GetContent(source)
			}
		}
	}
	return ""
}
