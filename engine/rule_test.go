package engine

import (
	"testing"

	"github.com/dhamidi/tmtok/scanner"
)

func TestSubstituteCaptures(t *testing.T) {
	line := []rune("Hello WORLD")
	captures := []scanner.Capture{
		{Start: 0, End: 11},
		{Start: 0, End: 5},
		{Start: 6, End: 11},
		{Start: -1, End: -1},
	}

	tests := []struct {
		name string
		want string
	}{
		{"plain.scope", "plain.scope"},
		{"entity.$1", "entity.Hello"},
		{"entity.${1:/downcase}", "entity.hello"},
		{"entity.${2:/downcase}", "entity.world"},
		{"entity.${1:/upcase}", "entity.HELLO"},
		{"a.$1.b.$2", "a.Hello.b.WORLD"},
		{"unmatched.$3", "unmatched."},
		{"out.of.range.$9", "out.of.range."},
		{"trailing.dollar.$", "trailing.dollar.$"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SubstituteCaptures(tt.name, line, captures); got != tt.want {
				t.Errorf("SubstituteCaptures(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}
