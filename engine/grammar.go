package engine

import (
	"sort"
	"sync/atomic"

	"github.com/dhamidi/tmtok/grammar"
	"github.com/dhamidi/tmtok/matcher"
	"github.com/dhamidi/tmtok/theme"
)

// RawLookup resolves scope names to raw grammars during compilation.
// Returning nil is tolerated: the include compiles to a never-matching stub
// and the scope is reported as an unresolved dependency.
type RawLookup interface {
	RawGrammar(scopeName string) *grammar.Raw
}

// RawLookupFunc adapts a function to the RawLookup interface.
type RawLookupFunc func(scopeName string) *grammar.Raw

func (f RawLookupFunc) RawGrammar(scopeName string) *grammar.Raw { return f(scopeName) }

// Options configures a grammar compilation.
type Options struct {
	// Lookup resolves external includes. May be nil.
	Lookup RawLookup

	// InjectionScopes names grammars whose rules inject into this one,
	// ordered by registration.
	InjectionScopes []string

	// LanguageID is encoded into token metadata for this grammar's spans.
	LanguageID uint32

	// EmbeddedLanguages overrides the language id wherever the keyed scope
	// encloses the token.
	EmbeddedLanguages map[string]uint32

	// TokenTypes forces the metadata token type wherever the keyed selector
	// matches, taking precedence over scope-inferred classification.
	TokenTypes map[string]theme.TokenType
}

type injection struct {
	selector matcher.Selector
	ruleID   RuleID
	entries  []candidateEntry
}

type tokenTypeOverride struct {
	chain []string
	typ   theme.TokenType
}

type embeddedLanguage struct {
	scope string
	id    uint32
}

// Grammar is a compiled grammar: an id-indexed rule arena plus injection,
// language and token-type tables. Immutable after Compile except for the
// active theme, which may be swapped and by contract invalidates metadata
// computed under the previous theme.
type Grammar struct {
	scopeName  string
	rules      []Rule
	topLevel   RuleID
	topEntries []candidateEntry
	injections []injection

	languageID uint32
	embedded   []embeddedLanguage
	tokenTypes []tokenTypeOverride

	dependencies []string

	theme atomic.Pointer[theme.Theme]
}

// ScopeName returns the grammar's root scope.
func (g *Grammar) ScopeName() string { return g.scopeName }

// Dependencies returns the distinct external scope names the grammar
// references, resolved or not, sorted.
func (g *Grammar) Dependencies() []string {
	out := make([]string, len(g.dependencies))
	copy(out, g.dependencies)
	return out
}

// Rule returns the rule for id, or nil for out-of-range ids.
func (g *Grammar) Rule(id RuleID) Rule {
	if id < 0 || int(id) >= len(g.rules) {
		return nil
	}
	return g.rules[id]
}

// SetTheme replaces the theme consulted when scopes are pushed. Stacks stay
// valid across a replacement; metadata computed earlier is stale.
func (g *Grammar) SetTheme(t *theme.Theme) { g.theme.Store(t) }

// Theme returns the active theme, or nil.
func (g *Grammar) Theme() *theme.Theme { return g.theme.Load() }

// flatten expands rule references into matchable candidates, descending
// through include-only rules. visited guards include cycles.
func (g *Grammar) flatten(ids []RuleID, visited map[RuleID]bool, out []candidateEntry) []candidateEntry {
	for _, id := range ids {
		switch r := g.Rule(id).(type) {
		case *MatchRule:
			out = append(out, candidateEntry{pattern: r.match, ruleID: id})
		case *BeginEndRule:
			out = append(out, candidateEntry{pattern: r.begin, ruleID: id})
		case *BeginWhileRule:
			out = append(out, candidateEntry{pattern: r.begin, ruleID: id})
		case *IncludeOnlyRule:
			if visited[id] {
				continue
			}
			visited[id] = true
			out = g.flatten(r.patterns, visited, out)
		}
	}
	return out
}

// computeEntries precomputes the candidate list of every container rule.
// Runs once at the end of compilation; afterwards the grammar is read-only.
func (g *Grammar) computeEntries() {
	for _, r := range g.rules {
		switch r := r.(type) {
		case *IncludeOnlyRule:
			r.entries = g.flatten(r.patterns, map[RuleID]bool{r.ruleID: true}, nil)
		case *BeginEndRule:
			r.entries = g.flatten(r.patterns, map[RuleID]bool{}, nil)
		case *BeginWhileRule:
			r.entries = g.flatten(r.patterns, map[RuleID]bool{}, nil)
		}
	}
	if top, ok := g.Rule(g.topLevel).(*IncludeOnlyRule); ok {
		g.topEntries = top.entries
	}
	for i := range g.injections {
		g.injections[i].entries = g.flatten([]RuleID{g.injections[i].ruleID}, map[RuleID]bool{}, nil)
	}
	sort.Slice(g.embedded, func(i, j int) bool {
		return len(g.embedded[i].scope) > len(g.embedded[j].scope)
	})
}

// injectionsFor returns the candidate entries of injections whose selector
// matches path, split into the set tried before normal patterns (high and
// default priority) and the set tried after (low priority).
func (g *Grammar) injectionsFor(path []string) (before, after []candidateEntry) {
	for _, inj := range g.injections {
		if !inj.selector.Matches(path) {
			continue
		}
		if inj.selector.Priority == matcher.PriorityLow {
			after = append(after, inj.entries...)
		} else {
			before = append(before, inj.entries...)
		}
	}
	return before, after
}

// languageFor returns the language id active for scope: the id of the
// longest embedded-language key enclosing scope, or 0 to keep the current.
func (g *Grammar) languageFor(scope string) uint32 {
	for _, e := range g.embedded {
		if matcher.ScopePrefix(e.scope, scope) {
			return e.id
		}
	}
	return 0
}

// tokenTypeFor classifies the innermost entry of path: an override from the
// token-type table wins, otherwise the type is inferred from well-known
// scope segments. Returns -1 to keep the current type.
func (g *Grammar) tokenTypeFor(path []string) int {
	for _, o := range g.tokenTypes {
		if matcher.MatchesAt(o.chain, path) {
			return int(o.typ)
		}
	}
	scope := path[len(path)-1]
	for len(scope) > 0 {
		seg := scope
		rest := ""
		for i := 0; i < len(scope); i++ {
			if scope[i] == '.' {
				seg, rest = scope[:i], scope[i+1:]
				break
			}
		}
		switch seg {
		case "comment":
			return int(theme.TokenTypeComment)
		case "string":
			return int(theme.TokenTypeString)
		case "regex", "regexp":
			return int(theme.TokenTypeRegEx)
		}
		scope = rest
	}
	return -1
}
