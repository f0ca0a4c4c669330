package scanner

import (
	"testing"
)

func TestFindNextMatchEarliestWins(t *testing.T) {
	list := NewList(`bc`, `ab`)
	m := list.FindNextMatch([]rune("abc"), 0, true, false)
	if m == nil {
		t.Fatal("FindNextMatch returned nil")
	}
	if m.PatternIndex != 1 {
		t.Errorf("PatternIndex = %d, want 1", m.PatternIndex)
	}
	if m.Start != 0 || m.End != 2 {
		t.Errorf("span = [%d,%d), want [0,2)", m.Start, m.End)
	}
}

func TestFindNextMatchTieBrokenByOrder(t *testing.T) {
	list := NewList(`a+`, `ab`)
	m := list.FindNextMatch([]rune("ab"), 0, true, false)
	if m == nil {
		t.Fatal("FindNextMatch returned nil")
	}
	if m.PatternIndex != 0 {
		t.Errorf("PatternIndex = %d, want 0", m.PatternIndex)
	}
}

func TestFindNextMatchFromPosition(t *testing.T) {
	list := NewList(`a`)
	m := list.FindNextMatch([]rune("abca"), 1, false, false)
	if m == nil {
		t.Fatal("FindNextMatch returned nil")
	}
	if m.Start != 3 {
		t.Errorf("Start = %d, want 3", m.Start)
	}
}

func TestFindNextMatchNoMatch(t *testing.T) {
	list := NewList(`x`)
	if m := list.FindNextMatch([]rune("abc"), 0, true, false); m != nil {
		t.Errorf("FindNextMatch = %+v, want nil", m)
	}
}

func TestAnchorVariants(t *testing.T) {
	tests := []struct {
		name   string
		source string
		input  string
		pos    int
		allowA bool
		allowG bool
		want   bool
	}{
		{"A allowed at start", `\Aabc`, "abc", 0, true, false, true},
		{"A disallowed", `\Aabc`, "abc", 0, false, false, false},
		{"G allowed at pos", `\Gbc`, "abc", 1, false, true, true},
		{"G disallowed", `\Gbc`, "abc", 1, false, false, false},
		{"alternative survives substitution", `\Gx|bc`, "abc", 1, false, false, true},
		{"escaped backslash is not an anchor", `\\A`, `\A`, 0, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPattern(tt.source)
			m := p.findFrom([]rune(tt.input), tt.pos, tt.allowA, tt.allowG)
			if got := m != nil; got != tt.want {
				t.Errorf("match = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBrokenPatternNeverMatches(t *testing.T) {
	list := NewList(`(unclosed`)
	if m := list.FindNextMatch([]rune("(unclosed"), 0, true, false); m != nil {
		t.Errorf("broken pattern matched: %+v", m)
	}
}

func TestCapturesIncludeUnmatchedGroups(t *testing.T) {
	p := NewPattern(`(a)(x)?(b)`)
	m := p.findFrom([]rune("ab"), 0, true, false)
	if m == nil {
		t.Fatal("no match")
	}
	if len(m.Captures) != 4 {
		t.Fatalf("len(Captures) = %d, want 4", len(m.Captures))
	}
	if m.Captures[1].Start != 0 || m.Captures[1].End != 1 {
		t.Errorf("group 1 = %+v, want [0,1)", m.Captures[1])
	}
	if m.Captures[2].Start != -1 || m.Captures[2].End != -1 {
		t.Errorf("group 2 = %+v, want unmatched", m.Captures[2])
	}
	if m.Captures[3].Start != 1 || m.Captures[3].End != 2 {
		t.Errorf("group 3 = %+v, want [1,2)", m.Captures[3])
	}
}

func TestRuneOffsets(t *testing.T) {
	p := NewPattern(`b+`)
	m := p.findFrom([]rune("日本語bb"), 0, true, false)
	if m == nil {
		t.Fatal("no match")
	}
	if m.Start != 3 || m.End != 5 {
		t.Errorf("span = [%d,%d), want [3,5)", m.Start, m.End)
	}
}

func TestHasBackReferences(t *testing.T) {
	tests := []struct {
		source string
		want   bool
	}{
		{`\1`, true},
		{`abc\9def`, true},
		{`\\1`, false},
		{`\0`, false},
		{`plain`, false},
	}

	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			if got := NewPattern(tt.source).HasBackReferences(); got != tt.want {
				t.Errorf("HasBackReferences(%q) = %v, want %v", tt.source, got, tt.want)
			}
		})
	}
}

func TestResolveBackReferences(t *testing.T) {
	line := []rune("<div>")
	captures := []Capture{{0, 5}, {1, 4}}
	got := ResolveBackReferences(`</\1>`, line, captures)
	if got != `</div>` {
		t.Errorf("ResolveBackReferences = %q, want %q", got, `</div>`)
	}
}

func TestResolveBackReferencesEscapesMetacharacters(t *testing.T) {
	line := []rune("a+b")
	captures := []Capture{{0, 3}, {0, 3}}
	resolved := ResolveBackReferences(`\1`, line, captures)
	p := NewPattern(resolved)
	if m := p.findFrom([]rune("a+b"), 0, true, false); m == nil {
		t.Error("resolved pattern should match the captured text literally")
	}
	if m := p.findFrom([]rune("aab"), 0, true, false); m != nil {
		t.Errorf("resolved pattern matched %q, want literal match only", "aab")
	}
}

func TestGroupIndex(t *testing.T) {
	p := NewPattern(`(?<first>a)(?<second>b)`)
	if got := p.GroupIndex("second"); got != 2 {
		t.Errorf("GroupIndex(second) = %d, want 2", got)
	}
	if got := p.GroupIndex("missing"); got >= 0 {
		t.Errorf("GroupIndex(missing) = %d, want negative", got)
	}
}
