package parser

import (
	"github.com/omnicontext/omnicontext-core/internal/chunk"
	"github.com/omnicontext/omnicontext-core/internal/graph"
)

// extractReferences walks each extracted symbol's own subtree looking for
// call expressions (Calls edges) and, separately, walks type declarations
// looking for inheritance/interface-satisfaction syntax (Extends /
// Implements edges). Every reference is attributed to the FQN of the
// enclosing symbol that contains it.
func extractReferences(tree *chunk.Tree, source []byte, language string, symbolNodes map[*chunk.Symbol]*chunk.Node, fqnOf func(*chunk.Symbol) string) []Reference {
	var refs []Reference

	for sym, node := range symbolNodes {
		fromFQN := fqnOf(sym)
		if fromFQN == "" || node == nil {
			continue
		}
		refs = append(refs, extractCalls(node, source, language, fromFQN)...)
		refs = append(refs, extractTypeRelations(node, source, language, fromFQN)...)
	}

	return refs
}

func extractCalls(node *chunk.Node, source []byte, language string, fromFQN string) []Reference {
	var refs []Reference
	callNodeType := callExpressionType(language)
	if callNodeType == "" {
		return nil
	}

	for _, call := range node.FindAllByType(callNodeType) {
		name := calleeName(call, source, language)
		if name == "" {
			continue
		}
		refs = append(refs, Reference{
			FromFQN: fromFQN,
			ToName:  name,
			Kind:    graph.EdgeCalls,
			Line:    int(call.StartPoint.Row) + 1,
		})
	}
	return refs
}

func callExpressionType(language string) string {
	switch language {
	case "go":
		return "call_expression"
	case "typescript", "tsx", "javascript", "jsx":
		return "call_expression"
	case "python":
		return "call"
	default:
		return ""
	}
}

func calleeName(call *chunk.Node, source []byte, language string) string {
	if len(call.Children) == 0 {
		return ""
	}
	callee := call.Children[0]

	switch callee.Type {
	case "identifier":
		return callee.GetContent(source)
	case "selector_expression", "attribute", "member_expression":
		// pkg.Func / obj.method / self.method: take the trailing field name,
		// since that's the name the symbol table indexes calls by.
		if len(callee.Children) > 0 {
			last := callee.Children[len(callee.Children)-1]
			return last.GetContent(source)
		}
	}
	return ""
}

// extractTypeRelations finds Go struct embedding, and class
// extends/implements clauses in Python/TS/JS, rooted at a type-defining
// node.
func extractTypeRelations(node *chunk.Node, source []byte, language string, fromFQN string) []Reference {
	switch language {
	case "go":
		return extractGoEmbedding(node, source, fromFQN)
	case "typescript", "tsx", "javascript", "jsx":
		return extractJSHeritage(node, source, fromFQN)
	case "python":
		return extractPythonBases(node, source, fromFQN)
	default:
		return nil
	}
}

func extractGoEmbedding(node *chunk.Node, source []byte, fromFQN string) []Reference {
	var refs []Reference
	for _, spec := range node.FindAllByType("type_spec") {
		structType := spec.FindChildByType("struct_type")
		if structType == nil {
			continue
		}
		fieldList := structType.FindChildByType("field_declaration_list")
		if fieldList == nil {
			continue
		}
		for _, field := range fieldList.FindChildrenByType("field_declaration") {
			// An embedded field has a type_identifier with no preceding
			// field_identifier name — it IS the name.
			names := field.FindChildrenByType("field_identifier")
			types := field.FindChildrenByType("type_identifier")
			if len(names) == 0 && len(types) == 1 {
				refs = append(refs, Reference{
					FromFQN: fromFQN,
					ToName:  types[0].GetContent(source),
					Kind:    graph.EdgeExtends,
					Line:    int(field.StartPoint.Row) + 1,
				})
			}
		}
	}
	return refs
}

func extractJSHeritage(node *chunk.Node, source []byte, fromFQN string) []Reference {
	var refs []Reference
	for _, clause := range node.FindAllByType("class_heritage") {
		for _, id := range clause.FindAllByType("identifier") {
			refs = append(refs, Reference{
				FromFQN: fromFQN,
				ToName:  id.GetContent(source),
				Kind:    graph.EdgeExtends,
				Line:    int(clause.StartPoint.Row) + 1,
			})
		}
	}
	for _, clause := range node.FindAllByType("implements_clause") {
		for _, id := range clause.FindAllByType("type_identifier") {
			refs = append(refs, Reference{
				FromFQN: fromFQN,
				ToName:  id.GetContent(source),
				Kind:    graph.EdgeImplements,
				Line:    int(clause.StartPoint.Row) + 1,
			})
		}
	}
	return refs
}

func extractPythonBases(node *chunk.Node, source []byte, fromFQN string) []Reference {
	var refs []Reference
	for _, class := range node.FindAllByType("class_definition") {
		argList := class.FindChildByType("argument_list")
		if argList == nil {
			continue
		}
		for _, id := range argList.FindChildrenByType("identifier") {
			refs = append(refs, Reference{
				FromFQN: fromFQN,
				ToName:  id.GetContent(source),
				Kind:    graph.EdgeExtends,
				Line:    int(class.StartPoint.Row) + 1,
			})
		}
	}
	return refs
}
