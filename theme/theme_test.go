package theme

import (
	"testing"
)

func TestMetadataRoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		languageID uint32
		tokenType  TokenType
		fontStyle  FontStyle
		foreground int
		background int
	}{
		{"zero", 0, TokenTypeOther, FontStyleNone, 0, 0},
		{"typical", 3, TokenTypeComment, FontStyleItalic, 7, 1},
		{"all styles", 255, TokenTypeRegEx, FontStyleItalic | FontStyleBold | FontStyleUnderline, 511, 511},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Encode(tt.languageID, tt.tokenType, tt.fontStyle, tt.foreground, tt.background)
			if got := m.LanguageID(); got != tt.languageID {
				t.Errorf("LanguageID = %d, want %d", got, tt.languageID)
			}
			if got := m.TokenType(); got != tt.tokenType {
				t.Errorf("TokenType = %d, want %d", got, tt.tokenType)
			}
			if got := m.FontStyle(); got != tt.fontStyle {
				t.Errorf("FontStyle = %v, want %v", got, tt.fontStyle)
			}
			if got := m.Foreground(); got != tt.foreground {
				t.Errorf("Foreground = %d, want %d", got, tt.foreground)
			}
			if got := m.Background(); got != tt.background {
				t.Errorf("Background = %d, want %d", got, tt.background)
			}
		})
	}
}

func TestMetadataOverwriteKeepsUnsetFields(t *testing.T) {
	m := Encode(2, TokenTypeString, FontStyleBold, 5, 6)
	out := m.Overwrite(0, -1, FontStyleNotSet, 0, 0)
	if out != m {
		t.Errorf("all-unset overwrite changed metadata: %x != %x", out, m)
	}

	out = m.Overwrite(9, int(TokenTypeComment), FontStyleItalic, 7, 0)
	if got := out.LanguageID(); got != 9 {
		t.Errorf("LanguageID = %d, want 9", got)
	}
	if got := out.TokenType(); got != TokenTypeComment {
		t.Errorf("TokenType = %d, want comment", got)
	}
	if got := out.FontStyle(); got != FontStyleItalic {
		t.Errorf("FontStyle = %v, want italic", got)
	}
	if got := out.Foreground(); got != 7 {
		t.Errorf("Foreground = %d, want 7", got)
	}
	if got := out.Background(); got != 6 {
		t.Errorf("Background = %d, want kept 6", got)
	}
}

func TestThemeSpecificity(t *testing.T) {
	theme := New([]RawRule{
		{Settings: Settings{Foreground: "#000000"}},
		{Scope: ScopeList{"keyword"}, Settings: Settings{Foreground: "#ff0000"}},
		{Scope: ScopeList{"keyword.a"}, Settings: Settings{Foreground: "#00ff00"}},
		{Scope: ScopeList{"source keyword"}, Settings: Settings{FontStyle: "bold"}},
	})

	attrs := theme.Match([]string{"source.test", "keyword.a"})
	colors := theme.ColorMap()

	if got := colors[attrs.Foreground]; got != "#00ff00" {
		t.Errorf("foreground = %q, want #00ff00", got)
	}
	if attrs.FontStyle != FontStyleBold {
		t.Errorf("FontStyle = %v, want bold", attrs.FontStyle)
	}
}

func TestThemeDeclarationOrderBreaksTies(t *testing.T) {
	theme := New([]RawRule{
		{Scope: ScopeList{"keyword.a"}, Settings: Settings{Foreground: "#111111"}},
		{Scope: ScopeList{"keyword.a"}, Settings: Settings{Foreground: "#222222"}},
	})
	attrs := theme.Match([]string{"source.test", "keyword.a"})
	if got := theme.ColorMap()[attrs.Foreground]; got != "#222222" {
		t.Errorf("foreground = %q, want later rule #222222", got)
	}
}

func TestThemeChainRequiresAncestors(t *testing.T) {
	theme := New([]RawRule{
		{Scope: ScopeList{"meta.function keyword"}, Settings: Settings{Foreground: "#aaaaaa"}},
	})
	attrs := theme.Match([]string{"source.test", "keyword.a"})
	if attrs.Foreground != 0 {
		t.Errorf("Foreground = %d, want unset without the meta.function ancestor", attrs.Foreground)
	}
	attrs = theme.Match([]string{"source.test", "meta.function.call", "keyword.a"})
	if attrs.Foreground == 0 {
		t.Error("Foreground unset, want match through the meta.function ancestor")
	}
}

func TestThemeLeafAnchoring(t *testing.T) {
	theme := New([]RawRule{
		{Scope: ScopeList{"string"}, Settings: Settings{Foreground: "#aaaaaa"}},
	})
	attrs := theme.Match([]string{"source.test", "string.quoted", "punctuation.definition"})
	if attrs.Foreground != 0 {
		t.Errorf("Foreground = %d, want unset: selector must match the innermost scope", attrs.Foreground)
	}
}

func TestColorInterning(t *testing.T) {
	theme := New([]RawRule{
		{Scope: ScopeList{"a"}, Settings: Settings{Foreground: "#ff0000"}},
		{Scope: ScopeList{"b"}, Settings: Settings{Foreground: "#FF0000"}},
		{Scope: ScopeList{"c"}, Settings: Settings{Foreground: "#0000ff"}},
	})
	colors := theme.ColorMap()
	if len(colors) != 3 {
		t.Fatalf("len(ColorMap) = %d, want 3 (reserved + two distinct)", len(colors))
	}
	if colors[0] != "" {
		t.Errorf("colors[0] = %q, want reserved empty entry", colors[0])
	}
	a := theme.Match([]string{"a"})
	b := theme.Match([]string{"b"})
	if a.Foreground != b.Foreground {
		t.Errorf("case-insensitive duplicates interned separately: %d != %d", a.Foreground, b.Foreground)
	}
	if got := colors[a.Foreground]; got != "#ff0000" {
		t.Errorf("colors[%d] = %q, want first declared spelling #ff0000", a.Foreground, got)
	}
}

func TestThemeDefaults(t *testing.T) {
	theme := New([]RawRule{
		{Settings: Settings{Foreground: "#eeeeee", Background: "#111111", FontStyle: "italic"}},
	})
	d := theme.Defaults()
	colors := theme.ColorMap()
	if colors[d.Foreground] != "#eeeeee" {
		t.Errorf("default foreground = %q, want #eeeeee", colors[d.Foreground])
	}
	if colors[d.Background] != "#111111" {
		t.Errorf("default background = %q, want #111111", colors[d.Background])
	}
	if d.FontStyle != FontStyleItalic {
		t.Errorf("default FontStyle = %v, want italic", d.FontStyle)
	}
}

func TestLoadJSON(t *testing.T) {
	bare := `[{"scope": "keyword", "settings": {"foreground": "#ff0000"}}]`
	doc := `{"name": "Test", "tokenColors": [{"scope": ["a", "b"], "settings": {"fontStyle": "bold"}}]}`

	rules, err := LoadJSON([]byte(bare))
	if err != nil {
		t.Fatalf("LoadJSON bare: %v", err)
	}
	if len(rules) != 1 || rules[0].Scope[0] != "keyword" {
		t.Errorf("bare rules = %+v", rules)
	}

	rules, err = LoadJSON([]byte(doc))
	if err != nil {
		t.Fatalf("LoadJSON tokenColors: %v", err)
	}
	if len(rules) != 1 || len(rules[0].Scope) != 2 {
		t.Errorf("tokenColors rules = %+v", rules)
	}
}

func TestParseFontStyle(t *testing.T) {
	tests := []struct {
		input string
		want  FontStyle
	}{
		{"", FontStyleNotSet},
		{"italic", FontStyleItalic},
		{"bold underline", FontStyleBold | FontStyleUnderline},
		{"none", FontStyleNone},
	}

	for _, tt := range tests {
		if got := parseFontStyle(tt.input); got != tt.want {
			t.Errorf("parseFontStyle(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
