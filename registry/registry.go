// Package registry orchestrates asynchronous grammar loading: it fetches
// definitions from a Source, resolves transitive cross-grammar dependencies
// with at most one in-flight resolution per scope, compiles grammars and
// manages the active theme.
package registry

import (
	"context"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/dhamidi/tmtok/engine"
	"github.com/dhamidi/tmtok/grammar"
	"github.com/dhamidi/tmtok/theme"
)

// Definition is a source response: either literal content in the given
// format or an already parsed raw grammar.
type Definition struct {
	Format  grammar.Format
	Content []byte
	Raw     *grammar.Raw // when set, Format and Content are ignored
}

// Source supplies grammar definitions. requestedBy names the scope whose
// load triggered the request, or is empty for top-level loads.
type Source interface {
	GrammarDefinition(ctx context.Context, scopeName, requestedBy string) (*Definition, error)
}

// InjectionSource is an optional Source extension naming the grammars that
// inject into a scope.
type InjectionSource interface {
	Injections(scopeName string) []string
}

// Config carries per-grammar tokenization settings.
type Config struct {
	LanguageID        uint32
	EmbeddedLanguages map[string]uint32
	TokenTypes        map[string]theme.TokenType
}

// Registry is the public entry point. A scope moves through NotRequested,
// Requesting (definition fetch in flight), Compiling (dependencies
// resolving) and Ready; failures leave it uncached so the next request
// retries from the start. All maps have the registry as their single
// writer.
type Registry struct {
	source Source
	log    commonlog.Logger

	mu       sync.Mutex
	raws     map[string]*grammar.Raw    // fetched and parsed definitions
	fetches  map[string]*pendingFetch   // in-flight definition fetches
	grammars map[string]*engine.Grammar // Ready grammars
	loads    map[string]*pendingLoad    // in-flight top-level loads
	configs  map[string]Config
	theme    *theme.Theme
}

type pendingFetch struct {
	done chan struct{}
	raw  *grammar.Raw
	err  error
}

type pendingLoad struct {
	done    chan struct{}
	grammar *engine.Grammar
	err     error
}

// New creates a registry over source.
func New(source Source) *Registry {
	return &Registry{
		source:   source,
		log:      commonlog.GetLogger("tmtok.registry"),
		raws:     map[string]*grammar.Raw{},
		fetches:  map[string]*pendingFetch{},
		grammars: map[string]*engine.Grammar{},
		loads:    map[string]*pendingLoad{},
		configs:  map[string]Config{},
	}
}

// SetTheme replaces the active theme. The new theme starts a fresh color
// table; metadata computed under the previous theme is stale by contract,
// while rule stacks remain valid.
func (r *Registry) SetTheme(rules []theme.RawRule) {
	t := theme.New(rules)
	r.mu.Lock()
	r.theme = t
	grammars := make([]*engine.Grammar, 0, len(r.grammars))
	for _, g := range r.grammars {
		grammars = append(grammars, g)
	}
	r.mu.Unlock()
	for _, g := range grammars {
		g.SetTheme(t)
	}
}

// ColorMap returns the active theme's interned colors, index-aligned with
// metadata color fields. Index 0 is the reserved empty entry.
func (r *Registry) ColorMap() []string {
	r.mu.Lock()
	t := r.theme
	r.mu.Unlock()
	if t == nil {
		return []string{""}
	}
	return t.ColorMap()
}

// GrammarForScopeName returns an already loaded grammar, or nil.
func (r *Registry) GrammarForScopeName(scopeName string) *engine.Grammar {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.grammars[scopeName]
}

// LoadGrammarWithConfig registers per-grammar settings, then loads.
func (r *Registry) LoadGrammarWithConfig(ctx context.Context, scopeName string, cfg Config) (*engine.Grammar, error) {
	r.mu.Lock()
	r.configs[scopeName] = cfg
	r.mu.Unlock()
	return r.LoadGrammar(ctx, scopeName)
}

// LoadGrammar resolves scopeName and all its transitive dependencies, then
// compiles and caches the grammar. Concurrent calls for the same scope
// share one resolution; a failed load leaves the scope uncached. A load
// runs to completion or failure once started; a waiting caller may abandon
// it through ctx, which does not cancel the load itself.
func (r *Registry) LoadGrammar(ctx context.Context, scopeName string) (*engine.Grammar, error) {
	r.mu.Lock()
	if g, ok := r.grammars[scopeName]; ok {
		r.mu.Unlock()
		return g, nil
	}
	if p, ok := r.loads[scopeName]; ok {
		r.mu.Unlock()
		select {
		case <-p.done:
			return p.grammar, p.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	p := &pendingLoad{done: make(chan struct{})}
	r.loads[scopeName] = p
	r.mu.Unlock()

	g, err := r.load(ctx, scopeName)

	r.mu.Lock()
	if err == nil {
		r.grammars[scopeName] = g
	} else {
		// Retry from NotRequested next time.
		delete(r.raws, scopeName)
	}
	delete(r.loads, scopeName)
	r.mu.Unlock()

	p.grammar, p.err = g, err
	close(p.done)
	if err != nil {
		r.log.Errorf("load %s failed: %v", scopeName, err)
	}
	return g, err
}

func (r *Registry) load(ctx context.Context, scopeName string) (*engine.Grammar, error) {
	r.log.Debugf("loading %s", scopeName)
	l := &loader{reg: r, ctx: ctx, visited: map[string]bool{scopeName: true}}
	if err := l.resolve(scopeName, "", nil); err != nil {
		return nil, err
	}

	r.mu.Lock()
	raw := r.raws[scopeName]
	cfg := r.configs[scopeName]
	t := r.theme
	r.mu.Unlock()

	g, err := engine.Compile(raw, engine.Options{
		Lookup:            engine.RawLookupFunc(r.rawGrammar),
		InjectionScopes:   r.injectionsFor(scopeName),
		LanguageID:        cfg.LanguageID,
		EmbeddedLanguages: cfg.EmbeddedLanguages,
		TokenTypes:        cfg.TokenTypes,
	})
	if err != nil {
		return nil, &MalformedDefinitionError{ScopeName: scopeName, Err: err}
	}
	g.SetTheme(t)
	r.log.Debugf("loaded %s (%d dependencies)", scopeName, len(g.Dependencies()))
	return g, nil
}

func (r *Registry) rawGrammar(scopeName string) *grammar.Raw {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.raws[scopeName]
}

func (r *Registry) injectionsFor(scopeName string) []string {
	if is, ok := r.source.(InjectionSource); ok {
		return is.Injections(scopeName)
	}
	return nil
}

// loader resolves one top-level load's dependency graph depth-first.
// Independent dependencies resolve concurrently; visited guards cycles
// within the load, while the registry's fetch table deduplicates definition
// requests across loads.
type loader struct {
	reg *Registry
	ctx context.Context

	mu      sync.Mutex
	visited map[string]bool
}

func (l *loader) resolve(scopeName, requestedBy string, chain []string) error {
	raw, err := l.reg.fetchDefinition(l.ctx, scopeName, requestedBy)
	if err != nil {
		if len(chain) == 0 {
			return err
		}
		return &DependencyError{ScopeName: scopeName, Chain: chain, Err: err}
	}

	deps := engine.Dependencies(raw, l.reg.injectionsFor(scopeName))
	subChain := append(append([]string{}, chain...), scopeName)

	var wg sync.WaitGroup
	errs := make([]error, len(deps))
	for i, dep := range deps {
		l.mu.Lock()
		if l.visited[dep] {
			l.mu.Unlock()
			continue
		}
		l.visited[dep] = true
		l.mu.Unlock()

		wg.Add(1)
		go func(i int, dep string) {
			defer wg.Done()
			errs[i] = l.resolve(dep, scopeName, subChain)
		}(i, dep)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// fetchDefinition fetches and parses one definition, deduplicating
// concurrent requests for the same scope: at most one source call is in
// flight per scope, and every waiter observes its result. Failures are not
// cached.
func (r *Registry) fetchDefinition(ctx context.Context, scopeName, requestedBy string) (*grammar.Raw, error) {
	r.mu.Lock()
	if raw, ok := r.raws[scopeName]; ok {
		r.mu.Unlock()
		return raw, nil
	}
	if p, ok := r.fetches[scopeName]; ok {
		r.mu.Unlock()
		<-p.done
		return p.raw, p.err
	}
	p := &pendingFetch{done: make(chan struct{})}
	r.fetches[scopeName] = p
	r.mu.Unlock()

	raw, err := r.fetchAndParse(ctx, scopeName, requestedBy)

	r.mu.Lock()
	if err == nil {
		r.raws[scopeName] = raw
	}
	delete(r.fetches, scopeName)
	r.mu.Unlock()

	p.raw, p.err = raw, err
	close(p.done)
	return raw, err
}

func (r *Registry) fetchAndParse(ctx context.Context, scopeName, requestedBy string) (*grammar.Raw, error) {
	def, err := r.source.GrammarDefinition(ctx, scopeName, requestedBy)
	if err != nil || def == nil {
		return nil, &DefinitionUnavailableError{ScopeName: scopeName, Err: err}
	}
	if def.Raw != nil {
		return def.Raw, nil
	}
	format := def.Format
	if format == "" {
		format = grammar.SniffFormat(def.Content)
	}
	raw, err := grammar.Parse(format, def.Content)
	if err != nil {
		return nil, &MalformedDefinitionError{ScopeName: scopeName, Err: err}
	}
	return raw, nil
}

// TokenizeLine tokenizes against an already loaded grammar. prev must be
// nil or a stack that the same grammar's tokenize calls produced.
func (r *Registry) TokenizeLine(scopeName, line string, prev *engine.StackElement) (engine.LineResult, error) {
	g := r.GrammarForScopeName(scopeName)
	if g == nil {
		return engine.LineResult{}, ErrNotLoaded
	}
	if !g.Owns(prev) {
		return engine.LineResult{}, ErrInvalidStackElement
	}
	return g.TokenizeLine(line, prev), nil
}

// TokenizeLineWithMetadata is TokenizeLine's packed-metadata variant.
func (r *Registry) TokenizeLineWithMetadata(scopeName, line string, prev *engine.StackElement) ([]uint32, *engine.StackElement, error) {
	g := r.GrammarForScopeName(scopeName)
	if g == nil {
		return nil, nil, ErrNotLoaded
	}
	if !g.Owns(prev) {
		return nil, nil, ErrInvalidStackElement
	}
	data, stack := g.TokenizeLineWithMetadata(line, prev)
	return data, stack, nil
}
