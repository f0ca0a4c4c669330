// Package theme resolves scope paths into packed token metadata through
// specificity-ranked selector matching and an interned color table.
package theme

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dhamidi/tmtok/matcher"
)

// RawRule is one entry of a theme definition, in the order the theme
// declares them. Scope accepts a single selector, a comma-separated
// selector list, or an array of selectors; an empty scope sets defaults.
type RawRule struct {
	Name     string    `json:"name,omitempty"`
	Scope    ScopeList `json:"scope,omitempty"`
	Settings Settings  `json:"settings"`
}

// Settings carries the style payload of a theme rule.
type Settings struct {
	FontStyle  string `json:"fontStyle,omitempty"`
	Foreground string `json:"foreground,omitempty"`
	Background string `json:"background,omitempty"`
}

// ScopeList decodes either a string or an array of strings.
type ScopeList []string

func (s *ScopeList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*s = []string{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// StyleAttributes is the contribution of matched theme rules for one scope.
type StyleAttributes struct {
	FontStyle  FontStyle // FontStyleNotSet when no rule set a style
	Foreground int       // color index, 0 when unset
	Background int
}

type compiledRule struct {
	chain      []string // outermost..innermost; innermost anchors the match
	index      int      // declaration order, later wins among equal specificity
	fontStyle  FontStyle
	foreground int
	background int
}

// Theme is a compiled theme. Immutable after New; replacing the active
// theme means building a new Theme, which starts a fresh color table and by
// contract invalidates previously computed metadata.
type Theme struct {
	rules    []compiledRule // ascending specificity
	defaults StyleAttributes
	colors   []string
	colorIdx map[string]int
}

// New compiles raw rules into a theme. Selector lists and comma-separated
// selectors expand into one compiled rule each; rules keep their relative
// declaration order so later equal-specificity entries override earlier
// ones.
func New(raw []RawRule) *Theme {
	t := &Theme{
		colors:   []string{""}, // index 0 reserved: unset
		colorIdx: map[string]int{},
	}
	t.defaults = StyleAttributes{FontStyle: FontStyleNotSet}
	index := 0
	for _, r := range raw {
		style := parseFontStyle(r.Settings.FontStyle)
		fg := t.intern(r.Settings.Foreground)
		bg := t.intern(r.Settings.Background)
		if len(r.Scope) == 0 {
			if style != FontStyleNotSet {
				t.defaults.FontStyle = style
			}
			if fg != 0 {
				t.defaults.Foreground = fg
			}
			if bg != 0 {
				t.defaults.Background = bg
			}
			continue
		}
		for _, sel := range r.Scope {
			for _, alt := range strings.Split(sel, ",") {
				chain := strings.Fields(alt)
				if len(chain) == 0 {
					continue
				}
				t.rules = append(t.rules, compiledRule{
					chain:      chain,
					index:      index,
					fontStyle:  style,
					foreground: fg,
					background: bg,
				})
				index++
			}
		}
	}
	sort.SliceStable(t.rules, func(i, j int) bool {
		a, b := t.rules[i], t.rules[j]
		if len(a.chain) != len(b.chain) {
			return len(a.chain) < len(b.chain)
		}
		al := strings.Count(a.chain[len(a.chain)-1], ".")
		bl := strings.Count(b.chain[len(b.chain)-1], ".")
		if al != bl {
			return al < bl
		}
		return a.index < b.index
	})
	return t
}

// Defaults returns the base style from scope-less theme entries.
func (t *Theme) Defaults() StyleAttributes { return t.defaults }

// Match resolves the style contribution of the innermost entry of path.
// Matching rules apply in ascending specificity, so the most specific rule
// decides each field; fields no rule sets stay unset.
func (t *Theme) Match(path []string) StyleAttributes {
	out := StyleAttributes{FontStyle: FontStyleNotSet}
	for _, r := range t.rules {
		if !matcher.MatchesAt(r.chain, path) {
			continue
		}
		if r.fontStyle != FontStyleNotSet {
			out.FontStyle = r.fontStyle
		}
		if r.foreground != 0 {
			out.Foreground = r.foreground
		}
		if r.background != 0 {
			out.Background = r.background
		}
	}
	return out
}

// ColorMap returns the interned colors, index-aligned with metadata color
// fields. Index 0 is the reserved empty entry.
func (t *Theme) ColorMap() []string {
	out := make([]string, len(t.colors))
	copy(out, t.colors)
	return out
}

func (t *Theme) intern(color string) int {
	if color == "" {
		return 0
	}
	// Dedup is case-insensitive; the table keeps the spelling the theme
	// declared first.
	key := strings.ToUpper(color)
	if idx, ok := t.colorIdx[key]; ok {
		return idx
	}
	idx := len(t.colors)
	t.colors = append(t.colors, color)
	t.colorIdx[key] = idx
	return idx
}

func parseFontStyle(s string) FontStyle {
	if s == "" {
		return FontStyleNotSet
	}
	style := FontStyleNone
	for _, word := range strings.Fields(s) {
		switch word {
		case "italic":
			style |= FontStyleItalic
		case "bold":
			style |= FontStyleBold
		case "underline":
			style |= FontStyleUnderline
		case "none":
			style = FontStyleNone
		}
	}
	return style
}

// LoadJSON decodes theme rules from either a bare rule array or an editor
// theme document carrying a "tokenColors" array.
func LoadJSON(content []byte) ([]RawRule, error) {
	var rules []RawRule
	if err := json.Unmarshal(content, &rules); err == nil {
		return rules, nil
	}
	var doc struct {
		TokenColors []RawRule `json:"tokenColors"`
	}
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("parse theme: %w", err)
	}
	return doc.TokenColors, nil
}
