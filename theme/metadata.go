package theme

// Metadata is the packed per-token word consumed by renderers:
//
//	languageID  8 bits  (0..7)
//	tokenType   3 bits  (8..10)
//	fontStyle   3 bits  (11..13)
//	foreground  9 bits  (14..22), index into the theme color map
//	background  9 bits  (23..31), index into the theme color map
//
// Index 0 always means "unset".
type Metadata uint32

// TokenType is the coarse classification carried in the metadata word.
type TokenType uint32

const (
	TokenTypeOther TokenType = iota
	TokenTypeComment
	TokenTypeString
	TokenTypeRegEx
)

// FontStyle is a bit set of style flags.
type FontStyle int

const (
	FontStyleNone      FontStyle = 0
	FontStyleItalic    FontStyle = 1
	FontStyleBold      FontStyle = 2
	FontStyleUnderline FontStyle = 4

	// FontStyleNotSet marks an absent style in override arguments.
	FontStyleNotSet FontStyle = -1
)

const (
	languageIDOffset = 0
	tokenTypeOffset  = 8
	fontStyleOffset  = 11
	foregroundOffset = 14
	backgroundOffset = 23

	languageIDMask = 0b11111111
	tokenTypeMask  = 0b111
	fontStyleMask  = 0b111
	colorMask      = 0b111111111
)

func (m Metadata) LanguageID() uint32 { return uint32(m>>languageIDOffset) & languageIDMask }

func (m Metadata) TokenType() TokenType { return TokenType(m>>tokenTypeOffset) & tokenTypeMask }

func (m Metadata) FontStyle() FontStyle { return FontStyle(m>>fontStyleOffset) & fontStyleMask }

func (m Metadata) Foreground() int { return int(m>>foregroundOffset) & colorMask }

func (m Metadata) Background() int { return int(m>>backgroundOffset) & colorMask }

// Encode packs the fields into a metadata word. Out-of-range values are
// truncated to their field width.
func Encode(languageID uint32, tokenType TokenType, fontStyle FontStyle, foreground, background int) Metadata {
	return Metadata(languageID&languageIDMask)<<languageIDOffset |
		Metadata(uint32(tokenType)&tokenTypeMask)<<tokenTypeOffset |
		Metadata(uint32(fontStyle)&fontStyleMask)<<fontStyleOffset |
		Metadata(uint32(foreground)&colorMask)<<foregroundOffset |
		Metadata(uint32(background)&colorMask)<<backgroundOffset
}

// Overwrite returns m with the set fields of the arguments applied.
// languageID, foreground and background treat 0 as "keep"; tokenType and
// fontStyle treat -1 as "keep".
func (m Metadata) Overwrite(languageID uint32, tokenType int, fontStyle FontStyle, foreground, background int) Metadata {
	lang := m.LanguageID()
	typ := m.TokenType()
	style := m.FontStyle()
	fg := m.Foreground()
	bg := m.Background()

	if languageID != 0 {
		lang = languageID
	}
	if tokenType >= 0 {
		typ = TokenType(tokenType)
	}
	if fontStyle != FontStyleNotSet {
		style = fontStyle
	}
	if foreground != 0 {
		fg = foreground
	}
	if background != 0 {
		bg = background
	}
	return Encode(lang, typ, style, fg, bg)
}

// String spells out the style flags, mostly for tests and debug output.
func (s FontStyle) String() string {
	if s == FontStyleNotSet {
		return "<not set>"
	}
	if s == FontStyleNone {
		return "none"
	}
	out := ""
	if s&FontStyleItalic != 0 {
		out += "italic "
	}
	if s&FontStyleBold != 0 {
		out += "bold "
	}
	if s&FontStyleUnderline != 0 {
		out += "underline "
	}
	if out == "" {
		return "none"
	}
	return out[:len(out)-1]
}
