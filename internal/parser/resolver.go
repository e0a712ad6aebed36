package parser

import "strings"

// ImportResolver maps the unresolved names Reference and Import carry onto
// concrete symbol FQNs, using three strategies in order of confidence —
// exact match first, then suffix match, then bare-name match preferring
// the shortest candidate (the symbol table's least-nested definition,
// which is the most likely target when multiple packages define a symbol
// of the same bare name).
type ImportResolver struct {
	// byFQN indexes every known symbol FQN to itself, for O(1) exact
	// lookup.
	byFQN map[string]struct{}

	// byBareName indexes every known symbol's bare (unqualified) trailing
	// name to the list of FQNs that end in it.
	byBareName map[string][]string
}

// NewImportResolver builds a resolver over the full set of symbol FQNs
// known at the time it is constructed. Callers rebuild it after each
// indexing pass that adds or removes symbols.
func NewImportResolver(language string, fqns []string) *ImportResolver {
	r := &ImportResolver{
		byFQN:      make(map[string]struct{}, len(fqns)),
		byBareName: make(map[string][]string),
	}
	for _, fqn := range fqns {
		r.byFQN[fqn] = struct{}{}
		_, bare := SplitFQN(language, fqn)
		r.byBareName[bare] = append(r.byBareName[bare], fqn)
	}
	return r
}

// Resolve attempts to map an unresolved reference name to a known FQN.
// ok is false when no candidate could be found, meaning the reference
// points outside the indexed project (an external library call, for
// instance) — spec.md treats this as an unresolved-import Recoverable
// condition, not an error.
func (r *ImportResolver) Resolve(name string) (fqn string, ok bool) {
	if name == "" {
		return "", false
	}

	// Strategy 1: exact FQN match — the reference already names a fully
	// qualified symbol (e.g. a selector expression resolved upstream).
	if _, exists := r.byFQN[name]; exists {
		return name, true
	}

	// Strategy 2: suffix match — name is a qualified suffix of some FQN,
	// e.g. "pkg::Helper" matching "repo::internal::pkg::Helper".
	var suffixMatches []string
	for candidate := range r.byFQN {
		if strings.HasSuffix(candidate, name) {
			suffixMatches = append(suffixMatches, candidate)
		}
	}
	if len(suffixMatches) == 1 {
		return suffixMatches[0], true
	}

	// Strategy 3: bare-name match, preferring the shortest (least nested)
	// FQN when multiple symbols share a bare name.
	if candidates, exists := r.byBareName[name]; exists && len(candidates) > 0 {
		best := candidates[0]
		for _, c := range candidates[1:] {
			if len(c) < len(best) {
				best = c
			}
		}
		return best, true
	}

	if len(suffixMatches) > 1 {
		best := suffixMatches[0]
		for _, c := range suffixMatches[1:] {
			if len(c) < len(best) {
				best = c
			}
		}
		return best, true
	}

	return "", false
}
