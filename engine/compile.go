package engine

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/dhamidi/tmtok/grammar"
	"github.com/dhamidi/tmtok/matcher"
	"github.com/dhamidi/tmtok/scanner"
)

// Compile turns a raw grammar into an executable Grammar. Each distinct
// pattern definition compiles to exactly one rule with a stable id; cyclic
// repository references resolve through a placeholder id allocated before
// the rule body is populated. External includes resolve through
// opts.Lookup; scopes the lookup cannot serve compile to never-matching
// stubs and are still reported by Dependencies. A pattern whose regex fails
// to parse degrades to a never-matching rule rather than failing the
// grammar.
func Compile(raw *grammar.Raw, opts Options) (*Grammar, error) {
	if raw == nil {
		return nil, errors.New("compile: nil grammar")
	}
	g := &Grammar{
		scopeName:  raw.ScopeName,
		languageID: opts.LanguageID,
	}
	for scope, id := range opts.EmbeddedLanguages {
		g.embedded = append(g.embedded, embeddedLanguage{scope: scope, id: id})
	}
	for sel, typ := range opts.TokenTypes {
		for _, chain := range selectorChains(sel) {
			g.tokenTypes = append(g.tokenTypes, tokenTypeOverride{chain: chain, typ: typ})
		}
	}
	sort.Slice(g.tokenTypes, func(i, j int) bool {
		return len(g.tokenTypes[i].chain) > len(g.tokenTypes[j].chain)
	})

	c := &compiler{
		g:      g,
		lookup: opts.Lookup,
		base:   raw,
		cache:  map[*grammar.RawRule]RuleID{},
		tops:   map[*grammar.Raw]RuleID{},
		deps:   map[string]bool{},
	}
	g.topLevel = c.compileTop(raw)
	c.compileInjections(raw, opts.InjectionScopes)

	for dep := range c.deps {
		g.dependencies = append(g.dependencies, dep)
	}
	sort.Strings(g.dependencies)

	g.computeEntries()
	return g, nil
}

// Dependencies walks a raw grammar and reports the distinct external scope
// names it includes, directly or through its own injections, without
// compiling anything. injectionScopes are added as-is: an injecting grammar
// is a dependency of the grammar it injects into.
func Dependencies(raw *grammar.Raw, injectionScopes []string) []string {
	deps := map[string]bool{}
	var walkRule func(r *grammar.RawRule)
	walkRules := func(rules []*grammar.RawRule) {
		for _, r := range rules {
			walkRule(r)
		}
	}
	seen := map[*grammar.RawRule]bool{}
	walkRule = func(r *grammar.RawRule) {
		if r == nil || seen[r] {
			return
		}
		seen[r] = true
		if kind, scope, _ := grammar.ParseInclude(r.Include); r.Include != "" && kind == grammar.IncludeScope && scope != raw.ScopeName {
			deps[scope] = true
		}
		walkRules(r.Patterns)
		for _, sub := range r.Repository {
			walkRule(sub)
		}
		for _, caps := range []map[string]*grammar.RawRule{r.Captures, r.BeginCaptures, r.EndCaptures, r.WhileCaptures} {
			for _, sub := range caps {
				walkRule(sub)
			}
		}
	}
	walkRules(raw.Patterns)
	for _, sub := range raw.Repository {
		walkRule(sub)
	}
	for _, sub := range raw.Injections {
		walkRule(sub)
	}
	for _, scope := range injectionScopes {
		if scope != raw.ScopeName {
			deps[scope] = true
		}
	}
	out := make([]string, 0, len(deps))
	for dep := range deps {
		out = append(out, dep)
	}
	sort.Strings(out)
	return out
}

type compiler struct {
	g      *Grammar
	lookup RawLookup
	base   *grammar.Raw // $base target: the grammar Compile was called for

	cache map[*grammar.RawRule]RuleID
	tops  map[*grammar.Raw]RuleID
	deps  map[string]bool
}

// repoContext carries the repository scope and the grammar a rule belongs
// to, so $self inside a foreign grammar resolves to that grammar's own top.
type repoContext struct {
	self *grammar.Raw
	repo map[string]*grammar.RawRule
}

func (c *compiler) newRule(build func(id RuleID) Rule) RuleID {
	id := RuleID(len(c.g.rules))
	c.g.rules = append(c.g.rules, nil)
	c.g.rules[id] = build(id)
	return id
}

// stub allocates a rule that never matches anything.
func (c *compiler) stub() RuleID {
	return c.newRule(func(id RuleID) Rule {
		return &IncludeOnlyRule{baseRule: baseRule{ruleID: id}}
	})
}

// compileTop compiles a grammar document's top-level pattern list.
func (c *compiler) compileTop(raw *grammar.Raw) RuleID {
	if id, ok := c.tops[raw]; ok {
		return id
	}
	id := RuleID(len(c.g.rules))
	c.g.rules = append(c.g.rules, nil)
	c.tops[raw] = id

	ctx := repoContext{self: raw, repo: raw.Repository}
	patterns := c.compilePatterns(raw.Patterns, ctx)
	c.g.rules[id] = &IncludeOnlyRule{
		baseRule: baseRule{ruleID: id},
		patterns: patterns,
	}
	return id
}

func (c *compiler) compileInjections(raw *grammar.Raw, injectionScopes []string) {
	selectors := make([]string, 0, len(raw.Injections))
	for sel := range raw.Injections {
		selectors = append(selectors, sel)
	}
	sort.Strings(selectors)
	ctx := repoContext{self: raw, repo: raw.Repository}
	for _, sel := range selectors {
		id := c.compileRule(raw.Injections[sel], ctx)
		c.g.injections = append(c.g.injections, injection{
			selector: matcher.Parse(sel),
			ruleID:   id,
		})
	}
	for _, scope := range injectionScopes {
		if scope == raw.ScopeName {
			continue
		}
		c.deps[scope] = true
		foreign := c.rawGrammar(scope)
		if foreign == nil {
			continue
		}
		id := c.compileTop(foreign)
		c.g.injections = append(c.g.injections, injection{
			selector: matcher.Parse(foreign.InjectionSelector),
			ruleID:   id,
		})
	}
}

func (c *compiler) rawGrammar(scope string) *grammar.Raw {
	if c.lookup == nil {
		return nil
	}
	return c.lookup.RawGrammar(scope)
}

func (c *compiler) compilePatterns(rules []*grammar.RawRule, ctx repoContext) []RuleID {
	out := make([]RuleID, 0, len(rules))
	for _, r := range rules {
		if r == nil {
			continue
		}
		out = append(out, c.compileRule(r, ctx))
	}
	return out
}

// compileRule compiles one raw rule, caching by node identity so repeated
// references, including self references through the repository, resolve to
// the same stable id. The id enters the cache before the body is built.
func (c *compiler) compileRule(raw *grammar.RawRule, ctx repoContext) RuleID {
	if id, ok := c.cache[raw]; ok {
		return id
	}
	if bool(raw.Disabled) {
		id := c.stub()
		c.cache[raw] = id
		return id
	}
	if raw.Include != "" {
		id := c.compileInclude(raw, ctx)
		c.cache[raw] = id
		return id
	}

	// Allocate the placeholder first: rules reached again while this body
	// compiles (cyclic repositories) resolve to this id.
	id := RuleID(len(c.g.rules))
	c.g.rules = append(c.g.rules, &IncludeOnlyRule{baseRule: baseRule{ruleID: id}})
	c.cache[raw] = id

	sub := ctx
	if len(raw.Repository) > 0 {
		sub = repoContext{self: ctx.self, repo: mergeRepos(ctx.repo, raw.Repository)}
	}

	switch {
	case raw.Match != "":
		match := scanner.NewPattern(raw.Match)
		c.g.rules[id] = &MatchRule{
			baseRule: baseRule{ruleID: id, name: raw.Name},
			match:    match,
			captures: c.compileCaptures(raw.Captures, match, sub),
		}

	case raw.Begin != "" && raw.While != "":
		begin := scanner.NewPattern(raw.Begin)
		while := scanner.NewPattern(raw.While)
		beginCaps := raw.BeginCaptures
		whileCaps := raw.WhileCaptures
		if len(raw.Captures) > 0 {
			beginCaps, whileCaps = raw.Captures, raw.Captures
		}
		c.g.rules[id] = &BeginWhileRule{
			baseRule:         baseRule{ruleID: id, name: raw.Name},
			contentName:      raw.ContentName,
			begin:            begin,
			beginCaptures:    c.compileCaptures(beginCaps, begin, sub),
			while:            while,
			whileHasBackRefs: while.HasBackReferences(),
			whileCaptures:    c.compileCaptures(whileCaps, while, sub),
			patterns:         c.compilePatterns(raw.Patterns, sub),
		}

	case raw.Begin != "":
		begin := scanner.NewPattern(raw.Begin)
		endSource := raw.End
		if endSource == "" {
			// A begin without end stays open; the frame pops only when an
			// enclosing rule ends.
			endSource = `￿`
		}
		end := scanner.NewPattern(endSource)
		beginCaps := raw.BeginCaptures
		endCaps := raw.EndCaptures
		if len(raw.Captures) > 0 {
			beginCaps, endCaps = raw.Captures, raw.Captures
		}
		c.g.rules[id] = &BeginEndRule{
			baseRule:            baseRule{ruleID: id, name: raw.Name},
			contentName:         raw.ContentName,
			begin:               begin,
			beginCaptures:       c.compileCaptures(beginCaps, begin, sub),
			end:                 end,
			endHasBackRefs:      end.HasBackReferences(),
			endCaptures:         c.compileCaptures(endCaps, end, sub),
			applyEndPatternLast: bool(raw.ApplyEndPatternLast),
			patterns:            c.compilePatterns(raw.Patterns, sub),
		}

	default:
		c.g.rules[id] = &IncludeOnlyRule{
			baseRule: baseRule{ruleID: id, name: raw.Name},
			patterns: c.compilePatterns(raw.Patterns, sub),
		}
	}
	return id
}

// compileInclude resolves an include target: own repository, $self/$base,
// or an external grammar through the lookup.
func (c *compiler) compileInclude(raw *grammar.RawRule, ctx repoContext) RuleID {
	kind, scope, key := grammar.ParseInclude(raw.Include)
	switch kind {
	case grammar.IncludeBase:
		return c.compileTop(c.base)
	case grammar.IncludeSelf:
		return c.compileTop(ctx.self)
	case grammar.IncludeLocal:
		target, ok := ctx.repo[key]
		if !ok {
			return c.stub()
		}
		return c.compileRule(target, ctx)
	default: // grammar.IncludeScope
		if scope == ctx.self.ScopeName {
			// source.self#key is a long-hand local include.
			if key == "" {
				return c.compileTop(ctx.self)
			}
			if target, ok := ctx.self.Repository[key]; ok {
				return c.compileRule(target, repoContext{self: ctx.self, repo: ctx.self.Repository})
			}
			return c.stub()
		}
		c.deps[scope] = true
		foreign := c.rawGrammar(scope)
		if foreign == nil {
			return c.stub()
		}
		fctx := repoContext{self: foreign, repo: foreign.Repository}
		if key == "" {
			return c.compileTop(foreign)
		}
		target, ok := foreign.Repository[key]
		if !ok {
			return c.stub()
		}
		return c.compileRule(target, fctx)
	}
}

// compileCaptures converts a capture map keyed by group number or group
// name into a slice indexed by group number.
func (c *compiler) compileCaptures(caps map[string]*grammar.RawRule, pattern *scanner.Pattern, ctx repoContext) []*CaptureRule {
	if len(caps) == 0 {
		return nil
	}
	numbered := make(map[int]*grammar.RawRule, len(caps))
	maxIndex := 0
	for key, sub := range caps {
		n, err := strconv.Atoi(key)
		if err != nil {
			n = pattern.GroupIndex(key)
			if n < 0 {
				continue
			}
		}
		numbered[n] = sub
		if n > maxIndex {
			maxIndex = n
		}
	}
	out := make([]*CaptureRule, maxIndex+1)
	for n, sub := range numbered {
		retokenize := NoRule
		if len(sub.Patterns) > 0 {
			retokenize = c.compileRule(sub, ctx)
		}
		out[n] = &CaptureRule{
			baseRule:       baseRule{ruleID: NoRule, name: captureName(sub)},
			retokenizeWith: retokenize,
		}
	}
	return out
}

func captureName(r *grammar.RawRule) string {
	if r.Name != "" {
		return r.Name
	}
	return r.ContentName
}

func mergeRepos(outer, inner map[string]*grammar.RawRule) map[string]*grammar.RawRule {
	merged := make(map[string]*grammar.RawRule, len(outer)+len(inner))
	for k, v := range outer {
		merged[k] = v
	}
	for k, v := range inner {
		merged[k] = v
	}
	return merged
}

func selectorChains(sel string) [][]string {
	var out [][]string
	for _, alt := range strings.Split(sel, ",") {
		if chain := strings.Fields(alt); len(chain) > 0 {
			out = append(out, chain)
		}
	}
	return out
}
