package matcher

import (
	"testing"
)

func TestParsePriority(t *testing.T) {
	tests := []struct {
		input string
		want  Priority
	}{
		{"L:comment", PriorityHigh},
		{"R:comment", PriorityLow},
		{"comment", PriorityNormal},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Parse(tt.input).Priority; got != tt.want {
				t.Errorf("Priority = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScopePrefix(t *testing.T) {
	tests := []struct {
		prefix string
		scope  string
		want   bool
	}{
		{"a.b", "a.b", true},
		{"a.b", "a.b.c", true},
		{"a.b", "a.bc", false},
		{"a.b", "a", false},
		{"a", "a.b", true},
		{"source.js", "source.json", false},
	}

	for _, tt := range tests {
		t.Run(tt.prefix+" vs "+tt.scope, func(t *testing.T) {
			if got := ScopePrefix(tt.prefix, tt.scope); got != tt.want {
				t.Errorf("ScopePrefix(%q, %q) = %v, want %v", tt.prefix, tt.scope, got, tt.want)
			}
		})
	}
}

func TestSelectorMatches(t *testing.T) {
	tests := []struct {
		selector string
		path     []string
		want     bool
	}{
		{"string", []string{"source.js", "string.quoted"}, true},
		{"source string", []string{"source.js", "string.quoted"}, true},
		{"source keyword string", []string{"source.js", "string.quoted"}, false},
		{"source.python", []string{"source.js", "string.quoted"}, false},
		{"comment, string", []string{"source.js", "string.quoted"}, true},
		{"source meta string", []string{"source.js", "meta.brace", "other", "string.quoted"}, true},
		{"", []string{"source.js"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			if got := Parse(tt.selector).Matches(tt.path); got != tt.want {
				t.Errorf("Matches(%v) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestMatchesAtAnchorsLeaf(t *testing.T) {
	path := []string{"source.js", "string.quoted", "punctuation.definition"}
	if MatchesAt([]string{"string"}, path) {
		t.Error("leaf-anchored match should reject a non-leaf segment")
	}
	if !MatchesAt([]string{"punctuation"}, path) {
		t.Error("leaf segment should match the innermost scope")
	}
	if !MatchesAt([]string{"string", "punctuation"}, path) {
		t.Error("chain with anchored leaf should match")
	}
	if MatchesAt([]string{"punctuation", "string"}, path) {
		t.Error("out of order chain should not match")
	}
}
