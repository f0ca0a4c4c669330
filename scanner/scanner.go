// Package scanner is the regex matching capability behind the tokenizer:
// ordered Oniguruma-style candidate patterns plus a start offset go in, the
// best (earliest-starting, declaration-order tie-broken) match comes out.
//
// Patterns are evaluated by dlclark/regexp2, whose .NET-style syntax covers
// the constructs TextMate grammars rely on: lookaround, \A, and \G anchored
// to the search start position. All offsets are rune offsets into the line.
package scanner

import (
	"strings"
	"sync"

	"github.com/dlclark/regexp2"
)

// Capture is a matched group span. Start and End are -1 for groups that did
// not participate in the match.
type Capture struct {
	Start int
	End   int
}

// Match reports the best candidate match found by a List.
type Match struct {
	// PatternIndex is the index of the winning pattern within the List.
	PatternIndex int
	Start        int
	End          int
	// Captures holds group spans by group number; index 0 is the whole match.
	Captures []Capture
}

// Pattern is one compiled candidate. A source that fails to compile
// degrades to a pattern that never matches instead of failing the grammar.
type Pattern struct {
	source string
	hasA   bool
	hasG   bool

	mu       sync.Mutex
	variants [4]*regexp2.Regexp
	compiled [4]bool
}

// NewPattern prepares source for matching. Compilation is lazy and cached
// per anchor variant, since \A and \G are rewritten depending on position.
func NewPattern(source string) *Pattern {
	p := &Pattern{source: source}
	p.hasA, p.hasG = scanAnchors(source)
	return p
}

// Source returns the original pattern text.
func (p *Pattern) Source() string { return p.source }

// HasBackReferences reports whether source contains \1..\9 back references,
// which tokenization resolves against begin captures before matching.
func (p *Pattern) HasBackReferences() bool {
	for i := 0; i+1 < len(p.source); i++ {
		if p.source[i] == '\\' {
			c := p.source[i+1]
			if c >= '1' && c <= '9' {
				return true
			}
			i++
		}
	}
	return false
}

// GroupIndex resolves a named capture group to its group number, or -1.
func (p *Pattern) GroupIndex(name string) int {
	re := p.variant(true, true)
	if re == nil {
		return -1
	}
	return re.GroupNumberFromName(name)
}

func (p *Pattern) variant(allowA, allowG bool) *regexp2.Regexp {
	idx := 0
	if p.hasA || p.hasG {
		if allowA {
			idx |= 1
		}
		if allowG {
			idx |= 2
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.compiled[idx] {
		p.compiled[idx] = true
		src := substituteAnchors(p.source, allowA, allowG)
		re, err := regexp2.Compile(src, regexp2.None)
		if err == nil {
			p.variants[idx] = re
		}
		// A broken pattern stays nil and never matches.
	}
	return p.variants[idx]
}

func (p *Pattern) findFrom(line []rune, pos int, allowA, allowG bool) *Match {
	re := p.variant(allowA, allowG)
	if re == nil {
		return nil
	}
	m, err := re.FindRunesMatchStartingAt(line, pos)
	if err != nil || m == nil {
		return nil
	}
	groups := m.Groups()
	captures := make([]Capture, len(groups))
	for i, g := range groups {
		if len(g.Captures) == 0 {
			captures[i] = Capture{Start: -1, End: -1}
			continue
		}
		captures[i] = Capture{Start: g.Index, End: g.Index + g.Length}
	}
	return &Match{
		Start:    m.Index,
		End:      m.Index + m.Length,
		Captures: captures,
	}
}

// scanAnchors reports whether source contains unescaped \A or \G.
func scanAnchors(source string) (hasA, hasG bool) {
	for i := 0; i+1 < len(source); i++ {
		if source[i] != '\\' {
			continue
		}
		switch source[i+1] {
		case 'A':
			hasA = true
		case 'G':
			hasG = true
		}
		i++
	}
	return hasA, hasG
}

// substituteAnchors rewrites disallowed \A and \G into a codepoint that
// never occurs in text, so the alternative containing the anchor fails
// instead of the whole pattern.
func substituteAnchors(source string, allowA, allowG bool) string {
	const never = `￿`
	var b strings.Builder
	changed := false
	for i := 0; i < len(source); i++ {
		c := source[i]
		if c == '\\' && i+1 < len(source) {
			next := source[i+1]
			if (next == 'A' && !allowA) || (next == 'G' && !allowG) {
				b.WriteString(never)
				changed = true
				i++
				continue
			}
			b.WriteByte(c)
			b.WriteByte(next)
			i++
			continue
		}
		b.WriteByte(c)
	}
	if !changed {
		return source
	}
	return b.String()
}

// ResolveBackReferences substitutes \1..\9 in source with the text captured
// on line, escaped so it matches literally. Used for end and while patterns
// that refer back to their begin captures.
func ResolveBackReferences(source string, line []rune, captures []Capture) string {
	var b strings.Builder
	for i := 0; i < len(source); i++ {
		c := source[i]
		if c == '\\' && i+1 < len(source) {
			next := source[i+1]
			if next >= '0' && next <= '9' {
				n := int(next - '0')
				i++
				if n < len(captures) && captures[n].Start >= 0 {
					b.WriteString(regexp2.Escape(string(line[captures[n].Start:captures[n].End])))
				}
				continue
			}
			b.WriteByte(c)
			b.WriteByte(next)
			i++
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// List is an ordered set of candidate patterns queried together.
type List []*Pattern

// NewList builds a candidate list from pattern sources.
func NewList(sources ...string) List {
	l := make(List, len(sources))
	for i, src := range sources {
		l[i] = NewPattern(src)
	}
	return l
}

// FindNextMatch returns the earliest-starting match at or after pos, ties
// broken by declaration order, or nil if no candidate matches. allowA and
// allowG gate the \A and \G anchors for the current position.
func (l List) FindNextMatch(line []rune, pos int, allowA, allowG bool) *Match {
	var best *Match
	for i, p := range l {
		m := p.findFrom(line, pos, allowA, allowG)
		if m == nil {
			continue
		}
		if best == nil || m.Start < best.Start {
			m.PatternIndex = i
			best = m
			if best.Start == pos {
				break
			}
		}
	}
	return best
}
