package parser

import (
	"strings"

	"github.com/omnicontext/omnicontext-core/internal/chunk"
)

// extractImports walks the parsed tree for language-specific import/require
// statements. It intentionally does not try to resolve them to files —
// that is ImportResolver's job, run later once the whole project's symbol
// table is known.
func extractImports(tree *chunk.Tree, source []byte, language string) []Import {
	switch language {
	case "go":
		return extractGoImports(tree, source)
	case "typescript", "tsx", "javascript", "jsx":
		return extractJSImports(tree, source)
	case "python":
		return extractPythonImports(tree, source)
	default:
		return nil
	}
}

func extractGoImports(tree *chunk.Tree, source []byte) []Import {
	var imports []Import
	for _, spec := range tree.Root.FindAllByType("import_spec") {
		var path, alias string
		for _, child := range spec.Children {
			switch child.Type {
			case "interpreted_string_literal":
				path = strings.Trim(child.GetContent(source), `"`)
			case "package_identifier", "dot", "blank_identifier":
				alias = child.GetContent(source)
			}
		}
		if path == "" {
			continue
		}
		imports = append(imports, Import{
			Path:  path,
			Alias: alias,
			Line:  int(spec.StartPoint.Row) + 1,
		})
	}
	return imports
}

func extractJSImports(tree *chunk.Tree, source []byte) []Import {
	var imports []Import
	for _, stmt := range tree.Root.FindAllByType("import_statement") {
		var path string
		for _, child := range stmt.Children {
			if child.Type == "string" {
				path = strings.Trim(child.GetContent(source), `"'`)
			}
		}
		if path == "" {
			continue
		}
		var alias string
		if defaultImport := stmt.FindChildByType("import_clause"); defaultImport != nil {
			for _, c := range defaultImport.Children {
				if c.Type == "identifier" {
					alias = c.GetContent(source)
					break
				}
			}
		}
		imports = append(imports, Import{
			Path:  path,
			Alias: alias,
			Line:  int(stmt.StartPoint.Row) + 1,
		})
	}

	// require("...") calls, common in CommonJS modules.
	for _, call := range tree.Root.FindAllByType("call_expression") {
		fn := call.FindChildByType("identifier")
		if fn == nil || fn.GetContent(source) != "require" {
			continue
		}
		args := call.FindChildByType("arguments")
		if args == nil {
			continue
		}
		for _, arg := range args.Children {
			if arg.Type == "string" {
				imports = append(imports, Import{
					Path: strings.Trim(arg.GetContent(source), `"'`),
					Line: int(call.StartPoint.Row) + 1,
				})
			}
		}
	}
	return imports
}

func extractPythonImports(tree *chunk.Tree, source []byte) []Import {
	var imports []Import
	for _, stmt := range tree.Root.FindAllByType("import_statement") {
		for _, name := range stmt.FindAllByType("dotted_name") {
			imports = append(imports, Import{
				Path: name.GetContent(source),
				Line: int(stmt.StartPoint.Row) + 1,
			})
		}
	}
	for _, stmt := range tree.Root.FindAllByType("import_from_statement") {
		modules := stmt.FindAllByType("dotted_name")
		if len(modules) == 0 {
			continue
		}
		imports = append(imports, Import{
			Path: modules[0].GetContent(source),
			Line: int(stmt.StartPoint.Row) + 1,
		})
	}
	return imports
}
