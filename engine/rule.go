// Package engine compiles raw TextMate grammars into an executable rule
// graph and tokenizes lines against it. Compilation is eager: once Compile
// returns, the Grammar is immutable and safe for concurrent tokenization.
package engine

import (
	"strings"

	"github.com/dhamidi/tmtok/scanner"
)

// RuleID identifies a compiled rule within its Grammar's arena. IDs are
// stable and increasing in allocation order, which lets stacks reference
// rules across tokenize calls and lets cyclic repository entries resolve to
// a placeholder id before their body exists.
type RuleID int

// NoRule marks an absent rule reference.
const NoRule RuleID = -1

// Rule is one compiled rule variant: Match, BeginEnd, BeginWhile or
// IncludeOnly. CaptureRule covers capture-group sub-rules.
type Rule interface {
	ID() RuleID

	// Name resolves the rule's scope name against the given captures;
	// names may reference captured text as $1 or ${1:/downcase}.
	Name(line []rune, captures []scanner.Capture) string
}

type baseRule struct {
	ruleID RuleID
	name   string
}

func (r *baseRule) ID() RuleID { return r.ruleID }

func (r *baseRule) Name(line []rune, captures []scanner.Capture) string {
	return SubstituteCaptures(r.name, line, captures)
}

// candidateEntry is one pattern the tokenizer may try at the current
// position, bound to the rule that owns it.
type candidateEntry struct {
	pattern *scanner.Pattern
	ruleID  RuleID
}

// MatchRule matches a single pattern and emits capture tokens.
type MatchRule struct {
	baseRule
	match    *scanner.Pattern
	captures []*CaptureRule
}

// IncludeOnlyRule groups patterns without matching anything itself. The
// grammar's top level and resolved include targets compile to this variant;
// an empty one never matches, which is how unresolved external includes and
// disabled rules degrade.
type IncludeOnlyRule struct {
	baseRule
	patterns []RuleID
	entries  []candidateEntry // flattened, computed after compilation
}

// BeginEndRule spans from a begin match to an end match, scoping everything
// in between. The end pattern may back-reference begin captures, in which
// case each stack frame carries its own resolved end pattern.
type BeginEndRule struct {
	baseRule
	contentName string

	begin         *scanner.Pattern
	beginCaptures []*CaptureRule

	end            *scanner.Pattern
	endHasBackRefs bool
	endCaptures    []*CaptureRule

	applyEndPatternLast bool

	patterns []RuleID
	entries  []candidateEntry
}

// BeginWhileRule spans from a begin match for as long as the while pattern
// keeps matching at the start of each following line.
type BeginWhileRule struct {
	baseRule
	contentName string

	begin         *scanner.Pattern
	beginCaptures []*CaptureRule

	while            *scanner.Pattern
	whileHasBackRefs bool
	whileCaptures    []*CaptureRule

	patterns []RuleID
	entries  []candidateEntry
}

// CaptureRule attaches a scope, and optionally sub-patterns, to a capture
// group. When retokenizeWith is set the captured span is tokenized again
// with that rule's patterns.
type CaptureRule struct {
	baseRule
	retokenizeWith RuleID
}

// ContentName resolves the rule's content scope against begin captures.
func (r *BeginEndRule) ContentName(line []rune, captures []scanner.Capture) string {
	return SubstituteCaptures(r.contentName, line, captures)
}

// ContentName resolves the rule's content scope against begin captures.
func (r *BeginWhileRule) ContentName(line []rune, captures []scanner.Capture) string {
	return SubstituteCaptures(r.contentName, line, captures)
}

// SubstituteCaptures replaces $1..$99 and ${1:/downcase}/${1:/upcase}
// references in name with the corresponding captured text.
func SubstituteCaptures(name string, line []rune, captures []scanner.Capture) string {
	if name == "" || !strings.ContainsRune(name, '$') {
		return name
	}
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c != '$' || i+1 >= len(name) {
			b.WriteByte(c)
			continue
		}
		rest := name[i+1:]
		if rest[0] == '{' {
			if end := strings.IndexByte(rest, '}'); end > 0 {
				b.WriteString(expandCaptureRef(rest[1:end], line, captures))
				i += end + 1
				continue
			}
		}
		j := 0
		for j < len(rest) && rest[j] >= '0' && rest[j] <= '9' {
			j++
		}
		if j > 0 {
			b.WriteString(expandCaptureRef(rest[:j], line, captures))
			i += j
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// expandCaptureRef expands "1", "1:/downcase" or "1:/upcase".
func expandCaptureRef(ref string, line []rune, captures []scanner.Capture) string {
	num := ref
	op := ""
	if idx := strings.IndexByte(ref, ':'); idx >= 0 {
		num, op = ref[:idx], ref[idx+1:]
	}
	n := 0
	for _, c := range num {
		if c < '0' || c > '9' {
			return ""
		}
		n = n*10 + int(c-'0')
	}
	if n >= len(captures) || captures[n].Start < 0 {
		return ""
	}
	text := string(line[captures[n].Start:captures[n].End])
	switch op {
	case "/downcase":
		return strings.ToLower(text)
	case "/upcase":
		return strings.ToUpper(text)
	}
	return text
}
