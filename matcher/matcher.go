// Package matcher implements ancestor-scope selector matching, shared by
// injection selection and theme rule resolution.
//
// A selector is a comma-separated list of alternatives; each alternative is
// a space-separated chain of scope segments read outermost to innermost. A
// segment matches a scope when it equals the scope or is a dot-prefix of it:
// "a.b" matches "a.b" and "a.b.c" but not "a.bc" or "a".
package matcher

import "strings"

// Priority orders injection selectors relative to a rule's own patterns.
type Priority int

const (
	PriorityHigh   Priority = iota // "L:" prefix, tried before normal patterns
	PriorityNormal                 // no prefix, tried before normal patterns
	PriorityLow                    // "R:" prefix, tried after normal patterns
)

// Selector is a compiled scope selector.
type Selector struct {
	Priority Priority
	chains   [][]string
}

// Parse compiles a selector string. An empty selector matches nothing.
func Parse(s string) Selector {
	sel := Selector{Priority: PriorityNormal}
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "L:"):
		sel.Priority = PriorityHigh
		s = s[2:]
	case strings.HasPrefix(s, "R:"):
		sel.Priority = PriorityLow
		s = s[2:]
	}
	for _, alt := range strings.Split(s, ",") {
		chain := strings.Fields(alt)
		if len(chain) > 0 {
			sel.chains = append(sel.chains, chain)
		}
	}
	return sel
}

// Matches reports whether any alternative chain matches the scope path.
func (s Selector) Matches(path []string) bool {
	for _, chain := range s.chains {
		if MatchesChain(chain, path) {
			return true
		}
	}
	return false
}

// ScopePrefix reports whether prefix equals scope or is a dot-separated
// ancestor of it.
func ScopePrefix(prefix, scope string) bool {
	if !strings.HasPrefix(scope, prefix) {
		return false
	}
	return len(scope) == len(prefix) || scope[len(prefix)] == '.'
}

// MatchesChain reports whether chain appears, outermost to innermost, as a
// possibly non-contiguous subsequence of path with each segment matching
// its path entry.
func MatchesChain(chain, path []string) bool {
	i := 0
	for _, scope := range path {
		if i == len(chain) {
			break
		}
		if ScopePrefix(chain[i], scope) {
			i++
		}
	}
	return i == len(chain)
}

// MatchesAt is MatchesChain with the innermost segment anchored to the last
// path entry: used when resolving the contribution of a newly entered scope.
func MatchesAt(chain, path []string) bool {
	if len(chain) == 0 || len(path) == 0 {
		return false
	}
	leaf := chain[len(chain)-1]
	if !ScopePrefix(leaf, path[len(path)-1]) {
		return false
	}
	return MatchesChain(chain[:len(chain)-1], path[:len(path)-1])
}
