package parser

import "strings"

// separatorFor returns the FQN join separator this language's ecosystem
// tooling already uses for qualified names: "::" for the systems-style
// languages (Go's package-qualified selectors), "." for the scripting
// languages (Python's dotted module.Class.method, JS/TS's namespace.Class).
func separatorFor(language string) string {
	switch language {
	case "go":
		return "::"
	default:
		return "."
	}
}

// BuildFQN joins a package/module path and a chain of container names
// (enclosing class/struct names, for nested/method symbols) into a fully
// qualified name using the language's native separator. Empty components
// are skipped so BuildFQN("go", "pkg", "", "Name") == "pkg::Name".
func BuildFQN(language, packagePath string, containers []string, name string) string {
	sep := separatorFor(language)

	parts := make([]string, 0, len(containers)+2)
	if packagePath != "" {
		parts = append(parts, packagePath)
	}
	for _, c := range containers {
		if c != "" {
			parts = append(parts, c)
		}
	}
	if name != "" {
		parts = append(parts, name)
	}
	return strings.Join(parts, sep)
}

// SplitFQN reverses BuildFQN for a given language, returning the leading
// qualifier (package/container path) and the trailing bare name.
func SplitFQN(language, fqn string) (qualifier, name string) {
	sep := separatorFor(language)
	idx := strings.LastIndex(fqn, sep)
	if idx < 0 {
		return "", fqn
	}
	return fqn[:idx], fqn[idx+len(sep):]
}
