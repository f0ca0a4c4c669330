package engine

import (
	"github.com/dhamidi/tmtok/scanner"
)

// Token is one scoped range of a tokenized line. Indices are rune offsets;
// Scopes lists the scope path outermost first.
type Token struct {
	StartIndex int      `json:"startIndex"`
	EndIndex   int      `json:"endIndex"`
	Scopes     []string `json:"scopes"`
}

// LineResult carries the tokens of one line and the rule stack to resume
// from on the next line.
type LineResult struct {
	Tokens []Token
	Stack  *StackElement
}

// TokenizeLine tokenizes one line. prev is the stack returned for the
// previous line, or nil at the start of a document; it must come from this
// grammar, which Owns reports. The line is scanned with a trailing newline
// appended; emitted tokens are clipped to the caller's line length.
func (g *Grammar) TokenizeLine(line string, prev *StackElement) LineResult {
	lt, stack := g.tokenizeInternal(line, prev, false)
	if len(lt.tokens) == 0 {
		lt.tokens = append(lt.tokens, Token{StartIndex: 0, EndIndex: lt.lineLength, Scopes: stack.ScopePath()})
	}
	return LineResult{Tokens: lt.tokens, Stack: stack}
}

// TokenizeLineWithMetadata is TokenizeLine's packed variant: it returns a
// flat sequence of (startIndex, metadata) pairs, adjacent ranges with equal
// metadata merged, plus the resulting stack.
func (g *Grammar) TokenizeLineWithMetadata(line string, prev *StackElement) ([]uint32, *StackElement) {
	lt, stack := g.tokenizeInternal(line, prev, true)
	if len(lt.data) == 0 {
		lt.data = append(lt.data, 0, uint32(stack.contentScopes.Metadata()))
	}
	return lt.data, stack
}

func (g *Grammar) tokenizeInternal(line string, prev *StackElement, binary bool) (*lineTokens, *StackElement) {
	isFirstLine := prev == nil
	if prev == nil {
		prev = g.initialStack()
	} else {
		prev = prev.reset()
	}
	runes := []rune(line + "\n")
	lt := &lineTokens{binary: binary, lineLength: len(runes) - 1}
	stack := g.tokenizeString(runes, 0, isFirstLine, prev, lt, true, len(runes))
	return lt, stack
}

// lineTokens accumulates tokens for one line, either as scope lists or as
// packed metadata pairs. Ranges are emitted contiguously from the last
// produced index, clipped to the visible line length.
type lineTokens struct {
	binary     bool
	lineLength int
	lastIndex  int
	tokens     []Token
	data       []uint32
}

func (lt *lineTokens) produce(path *ScopePath, endIndex int) {
	if endIndex > lt.lineLength {
		endIndex = lt.lineLength
	}
	if endIndex <= lt.lastIndex {
		return
	}
	if lt.binary {
		md := uint32(path.Metadata())
		if n := len(lt.data); n > 0 && lt.data[n-1] == md {
			lt.lastIndex = endIndex
			return
		}
		lt.data = append(lt.data, uint32(lt.lastIndex), md)
	} else {
		lt.tokens = append(lt.tokens, Token{
			StartIndex: lt.lastIndex,
			EndIndex:   endIndex,
			Scopes:     path.List(),
		})
	}
	lt.lastIndex = endIndex
}

type candidateRef struct {
	ruleID RuleID
	isEnd  bool
}

// candidates assembles the patterns to try at the current position: the
// active rule's nested patterns plus its end pattern, bracketed by the
// injections whose selector matches the current scope path. High and
// default priority injections are tried before the rule's own patterns, low
// priority ones after. The end pattern goes first unless the rule asks for
// it to be applied last.
func (g *Grammar) candidates(stack *StackElement, path []string) (scanner.List, []candidateRef) {
	var base []candidateEntry
	var endPat *scanner.Pattern
	endLast := false
	switch r := g.Rule(stack.ruleID).(type) {
	case *BeginEndRule:
		base = r.entries
		endPat = r.end
		if stack.endResolved != nil {
			endPat = stack.endResolved
		}
		endLast = r.applyEndPatternLast
	case *BeginWhileRule:
		// The while condition is checked at line start, not during the scan.
		base = r.entries
	case *IncludeOnlyRule:
		base = r.entries
	default:
		base = g.topEntries
	}
	before, after := g.injectionsFor(path)

	pats := make(scanner.List, 0, len(before)+len(base)+len(after)+1)
	refs := make([]candidateRef, 0, len(before)+len(base)+len(after)+1)
	add := func(es []candidateEntry) {
		for _, e := range es {
			pats = append(pats, e.pattern)
			refs = append(refs, candidateRef{ruleID: e.ruleID})
		}
	}
	addEnd := func() {
		pats = append(pats, endPat)
		refs = append(refs, candidateRef{ruleID: stack.ruleID, isEnd: true})
	}
	add(before)
	if endPat != nil && !endLast {
		addEnd()
	}
	add(base)
	if endPat != nil && endLast {
		addEnd()
	}
	add(after)
	return pats, refs
}

// tokenizeString scans fullLine[pos:limit], emitting tokens and mutating
// the stack per match. checkWhile runs the begin-while validation that
// happens once per line; capture retokenization recurses here with
// checkWhile off and limit set to the capture end.
func (g *Grammar) tokenizeString(fullLine []rune, pos int, isFirstLine bool, stack *StackElement, lt *lineTokens, checkWhile bool, limit int) *StackElement {
	line := fullLine[:limit]
	anchorPos := -1
	if checkWhile {
		stack, pos, anchorPos, isFirstLine = g.checkWhileConditions(line, isFirstLine, pos, stack, lt)
	}

	for pos < limit {
		prevPos := pos
		prevStack := stack

		pats, refs := g.candidates(stack, stack.contentScopes.List())
		m := pats.FindNextMatch(line, pos, isFirstLine && pos == 0, anchorPos == pos)
		if m == nil {
			// No rule matches: the rest of the line belongs to the
			// current content scope.
			lt.produce(stack.contentScopes, limit)
			break
		}

		ref := refs[m.PatternIndex]
		if ref.isEnd {
			rule := g.Rule(stack.ruleID).(*BeginEndRule)
			lt.produce(stack.contentScopes, m.Start)
			g.handleCaptures(line, isFirstLine, stack.nameScopes, rule.endCaptures, m, lt)
			lt.produce(stack.nameScopes, m.End)
			popped := stack
			stack = stack.Pop()
			anchorPos = popped.anchorPos
			pos = m.End
			if m.Start == m.End && pos == prevPos {
				// Zero-length end match without progress: force-advance so
				// the line always terminates.
				pos = prevPos + 1
			}
			continue
		}

		rule := g.Rule(ref.ruleID)
		lt.produce(stack.contentScopes, m.Start)

		switch r := rule.(type) {
		case *BeginEndRule:
			name := g.pushScope(stack.contentScopes, r.Name(line, m.Captures))
			var endResolved *scanner.Pattern
			if r.endHasBackRefs {
				endResolved = scanner.NewPattern(scanner.ResolveBackReferences(r.end.Source(), line, m.Captures))
			}
			stack = stack.Push(r.ruleID, prevPos, anchorPos, endResolved, name, name)
			g.handleCaptures(line, isFirstLine, name, r.beginCaptures, m, lt)
			lt.produce(name, m.End)
			anchorPos = m.End
			if r.contentName != "" {
				stack = stack.withContentScopes(g.pushScope(name, r.ContentName(line, m.Captures)))
			}

		case *BeginWhileRule:
			name := g.pushScope(stack.contentScopes, r.Name(line, m.Captures))
			var whileResolved *scanner.Pattern
			if r.whileHasBackRefs {
				whileResolved = scanner.NewPattern(scanner.ResolveBackReferences(r.while.Source(), line, m.Captures))
			}
			stack = stack.Push(r.ruleID, prevPos, anchorPos, whileResolved, name, name)
			g.handleCaptures(line, isFirstLine, name, r.beginCaptures, m, lt)
			lt.produce(name, m.End)
			anchorPos = m.End
			if r.contentName != "" {
				stack = stack.withContentScopes(g.pushScope(name, r.ContentName(line, m.Captures)))
			}

		case *MatchRule:
			scopes := g.pushScope(stack.contentScopes, r.Name(line, m.Captures))
			g.handleCaptures(line, isFirstLine, scopes, r.captures, m, lt)
			lt.produce(scopes, m.End)
		}

		pos = m.End
		if pos != prevPos {
			continue
		}
		if stack == prevStack {
			// A zero-length match with no stack change cannot make
			// progress; skip one character.
			pos = prevPos + 1
			continue
		}
		if stack.depth > prevStack.depth && hasFrame(prevStack, stack.ruleID, stack.enterPos) {
			// The grammar pushed a rule that is already on the stack at this
			// position without advancing. Rules that push each other with
			// zero-width begins would cycle forever, so give up on the line.
			stack = stack.Pop()
			lt.produce(stack.contentScopes, limit)
			break
		}
	}
	return stack
}

// hasFrame reports whether any frame of the stack entered ruleID at
// enterPos. Frames carried over from earlier lines have enterPos cleared
// and never match.
func hasFrame(stack *StackElement, ruleID RuleID, enterPos int) bool {
	for node := stack; node != nil; node = node.parent {
		if node.ruleID == ruleID && node.enterPos == enterPos {
			return true
		}
	}
	return false
}

// checkWhileConditions validates the while condition of every BeginWhile
// frame, outermost first, before a line is scanned. A failing condition
// pops its frame and everything above it; a succeeding one emits its
// capture tokens and advances the scan position past the match.
func (g *Grammar) checkWhileConditions(line []rune, isFirstLine bool, pos int, stack *StackElement, lt *lineTokens) (*StackElement, int, int, bool) {
	anchorPos := -1
	type whileFrame struct {
		rule  *BeginWhileRule
		frame *StackElement
	}
	var frames []whileFrame
	for node := stack; node != nil && node.depth > 0; node = node.parent {
		if r, ok := g.Rule(node.ruleID).(*BeginWhileRule); ok {
			frames = append(frames, whileFrame{rule: r, frame: node})
		}
	}
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		pat := f.rule.while
		if f.frame.endResolved != nil {
			pat = f.frame.endResolved
		}
		m := scanner.List{pat}.FindNextMatch(line, pos, isFirstLine && pos == 0, f.frame.anchorPos == pos)
		if m == nil {
			stack = f.frame.Pop()
			break
		}
		lt.produce(f.frame.contentScopes, m.Start)
		g.handleCaptures(line, isFirstLine, f.frame.contentScopes, f.rule.whileCaptures, m, lt)
		lt.produce(f.frame.contentScopes, m.End)
		anchorPos = m.End
		if m.End > pos {
			pos = m.End
			isFirstLine = false
		}
	}
	return stack, pos, anchorPos, isFirstLine
}

// handleCaptures emits tokens for a match's capture groups. Named captures
// become nested scope tokens over their span; a capture carrying its own
// sub-patterns re-tokenizes the captured text with them. Nesting follows
// group containment, so inner groups extend the scope of the group that
// contains them.
func (g *Grammar) handleCaptures(line []rune, isFirstLine bool, base *ScopePath, captures []*CaptureRule, m *scanner.Match, lt *lineTokens) {
	if len(captures) == 0 {
		return
	}
	count := len(captures)
	if len(m.Captures) < count {
		count = len(m.Captures)
	}

	type localFrame struct {
		scopes *ScopePath
		endPos int
	}
	var local []localFrame
	maxEnd := m.Captures[0].End

	for i := 0; i < count; i++ {
		capRule := captures[i]
		if capRule == nil {
			continue
		}
		ci := m.Captures[i]
		if ci.Start < 0 || ci.Start == ci.End {
			continue
		}
		if ci.Start > maxEnd {
			break
		}
		for len(local) > 0 && local[len(local)-1].endPos <= ci.Start {
			top := local[len(local)-1]
			lt.produce(top.scopes, top.endPos)
			local = local[:len(local)-1]
		}
		if len(local) > 0 {
			lt.produce(local[len(local)-1].scopes, ci.Start)
		} else {
			lt.produce(base, ci.Start)
		}

		if capRule.retokenizeWith != NoRule {
			enclosing := base
			if len(local) > 0 {
				enclosing = local[len(local)-1].scopes
			}
			scopes := g.pushScope(enclosing, capRule.Name(line, m.Captures))
			capStack := &StackElement{
				ruleID:        capRule.retokenizeWith,
				enterPos:      ci.Start,
				anchorPos:     -1,
				nameScopes:    scopes,
				contentScopes: scopes,
			}
			g.tokenizeString(line, ci.Start, isFirstLine && ci.Start == 0, capStack, lt, false, ci.End)
			continue
		}

		if name := capRule.Name(line, m.Captures); name != "" {
			b := base
			if len(local) > 0 {
				b = local[len(local)-1].scopes
			}
			local = append(local, localFrame{scopes: g.pushScope(b, name), endPos: ci.End})
		}
	}
	for len(local) > 0 {
		top := local[len(local)-1]
		lt.produce(top.scopes, top.endPos)
		local = local[:len(local)-1]
	}
}
