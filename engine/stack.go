package engine

import (
	"strings"

	"github.com/dhamidi/tmtok/scanner"
	"github.com/dhamidi/tmtok/theme"
)

// ScopePath is one node of a persistent scope-name path, outermost scope at
// the root. Nodes are immutable and shared between stack frames; each node
// carries the packed metadata resolved when the scope was entered.
type ScopePath struct {
	parent   *ScopePath
	scope    string
	metadata theme.Metadata
}

// List returns the path outermost first.
func (p *ScopePath) List() []string {
	n := 0
	for q := p; q != nil; q = q.parent {
		n++
	}
	out := make([]string, n)
	for q := p; q != nil; q = q.parent {
		n--
		out[n] = q.scope
	}
	return out
}

// Metadata returns the packed metadata resolved for this path.
func (p *ScopePath) Metadata() theme.Metadata {
	if p == nil {
		return 0
	}
	return p.metadata
}

// Equal compares two paths structurally by scope names.
func (p *ScopePath) Equal(o *ScopePath) bool {
	for p != nil && o != nil {
		if p == o {
			return true
		}
		if p.scope != o.scope {
			return false
		}
		p, o = p.parent, o.parent
	}
	return p == nil && o == nil
}

// baseMetadata is the metadata below any scope: the grammar's language id
// plus the theme defaults.
func (g *Grammar) baseMetadata() theme.Metadata {
	defaults := theme.StyleAttributes{FontStyle: theme.FontStyleNotSet}
	if t := g.Theme(); t != nil {
		defaults = t.Defaults()
	}
	style := defaults.FontStyle
	if style == theme.FontStyleNotSet {
		style = theme.FontStyleNone
	}
	return theme.Encode(g.languageID, theme.TokenTypeOther, style, defaults.Foreground, defaults.Background)
}

// pushScope extends parent with scopeNames (space separated, possibly
// several) and resolves the metadata contribution of each entered scope.
func (g *Grammar) pushScope(parent *ScopePath, scopeNames string) *ScopePath {
	if scopeNames == "" {
		return parent
	}
	node := parent
	for _, scope := range strings.Fields(scopeNames) {
		md := g.baseMetadata()
		if node != nil {
			md = node.metadata
		}
		path := append(node.List(), scope)
		lang := g.languageFor(scope)
		ttype := g.tokenTypeFor(path)
		style := theme.StyleAttributes{FontStyle: theme.FontStyleNotSet}
		if t := g.Theme(); t != nil {
			style = t.Match(path)
		}
		md = md.Overwrite(lang, ttype, style.FontStyle, style.Foreground, style.Background)
		node = &ScopePath{parent: node, scope: scope, metadata: md}
	}
	return node
}

// StackElement is one frame of the persistent rule stack. Frames are
// immutable; Push allocates a new head sharing the tail, so stacks from
// earlier tokenize calls remain valid and cheap to compare.
type StackElement struct {
	parent *StackElement
	depth  int

	// grammar marks the producing grammar on the root sentinel; Owns checks
	// it before a stack is resumed.
	grammar *Grammar

	ruleID    RuleID
	enterPos  int
	anchorPos int

	// endResolved replaces the rule's static end or while pattern when it
	// contains back references, resolved against this frame's begin match.
	endResolved *scanner.Pattern

	nameScopes    *ScopePath
	contentScopes *ScopePath
}

// Push enters a rule, sharing the receiver as parent.
func (s *StackElement) Push(ruleID RuleID, enterPos, anchorPos int, endResolved *scanner.Pattern, name, content *ScopePath) *StackElement {
	return &StackElement{
		parent:        s,
		depth:         s.depth + 1,
		ruleID:        ruleID,
		enterPos:      enterPos,
		anchorPos:     anchorPos,
		endResolved:   endResolved,
		nameScopes:    name,
		contentScopes: content,
	}
}

// Pop returns the parent frame.
func (s *StackElement) Pop() *StackElement { return s.parent }

// Depth is the number of frames above the root sentinel.
func (s *StackElement) Depth() int { return s.depth }

// RuleID returns the frame's rule.
func (s *StackElement) RuleID() RuleID { return s.ruleID }

// ScopePath returns the frame's content scope path, outermost first.
func (s *StackElement) ScopePath() []string { return s.contentScopes.List() }

// withContentScopes replaces the frame's content scopes.
func (s *StackElement) withContentScopes(content *ScopePath) *StackElement {
	clone := *s
	clone.contentScopes = content
	return &clone
}

// reset clears per-line positions before scanning a new line.
func (s *StackElement) reset() *StackElement {
	if s == nil || (s.enterPos == -1 && s.anchorPos == -1) {
		return s
	}
	clone := *s
	clone.enterPos = -1
	clone.anchorPos = -1
	clone.parent = s.parent.reset()
	return &clone
}

// Equal compares two stacks structurally: same depth, and per frame the
// same rule, resolved end source and scope paths. Two independently
// produced stacks over identical input compare equal, which callers use for
// cheap unchanged-state detection during incremental re-tokenization.
func (s *StackElement) Equal(o *StackElement) bool {
	for s != nil && o != nil {
		if s == o {
			return true
		}
		if s.depth != o.depth || s.ruleID != o.ruleID {
			return false
		}
		if endSource(s.endResolved) != endSource(o.endResolved) {
			return false
		}
		if !s.nameScopes.Equal(o.nameScopes) || !s.contentScopes.Equal(o.contentScopes) {
			return false
		}
		s, o = s.parent, o.parent
	}
	return s == nil && o == nil
}

func endSource(p *scanner.Pattern) string {
	if p == nil {
		return ""
	}
	return p.Source()
}

// Owns reports whether stack was produced by this grammar. A nil stack
// belongs to every grammar.
func (g *Grammar) Owns(stack *StackElement) bool {
	if stack == nil {
		return true
	}
	for stack.parent != nil {
		stack = stack.parent
	}
	return stack.grammar == g
}

// initialStack builds the root sentinel frame for a first tokenize call:
// the top-level rule with the grammar's scope name as the only path entry.
func (g *Grammar) initialStack() *StackElement {
	root := g.pushScope(nil, g.scopeName)
	return &StackElement{
		parent:        nil,
		depth:         0,
		grammar:       g,
		ruleID:        g.topLevel,
		enterPos:      -1,
		anchorPos:     -1,
		nameScopes:    root,
		contentScopes: root,
	}
}
