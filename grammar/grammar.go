// Package grammar defines the raw TextMate grammar model: the shape shared
// by the JSON and PLIST grammar formats before rule compilation.
package grammar

import (
	"encoding/json"
	"fmt"
)

// Raw is a parsed grammar document. Field names mirror the TextMate
// grammar format; both the JSON and the PLIST parser produce this shape.
type Raw struct {
	ScopeName  string              `json:"scopeName" plist:"scopeName"`
	FileTypes  []string            `json:"fileTypes,omitempty" plist:"fileTypes"`
	FirstLine  string              `json:"firstLineMatch,omitempty" plist:"firstLineMatch"`
	Patterns   []*RawRule          `json:"patterns,omitempty" plist:"patterns"`
	Repository map[string]*RawRule `json:"repository,omitempty" plist:"repository"`

	// Injections maps a scope selector to a rule injected wherever the
	// selector matches the current scope path.
	Injections map[string]*RawRule `json:"injections,omitempty" plist:"injections"`

	// InjectionSelector is set on grammars that inject themselves into
	// other grammars, registered through the injection provider.
	InjectionSelector string `json:"injectionSelector,omitempty" plist:"injectionSelector"`
}

// RawRule is one pattern definition. Exactly one of Include, Match,
// Begin/End, Begin/While, or a bare Patterns list is expected; malformed
// combinations are tolerated and resolved by the compiler.
type RawRule struct {
	Name        string `json:"name,omitempty" plist:"name"`
	ContentName string `json:"contentName,omitempty" plist:"contentName"`

	Include string `json:"include,omitempty" plist:"include"`

	Match string `json:"match,omitempty" plist:"match"`
	Begin string `json:"begin,omitempty" plist:"begin"`
	End   string `json:"end,omitempty" plist:"end"`
	While string `json:"while,omitempty" plist:"while"`

	// Capture maps are keyed by group number ("1", "2", ...) or group name.
	Captures      map[string]*RawRule `json:"captures,omitempty" plist:"captures"`
	BeginCaptures map[string]*RawRule `json:"beginCaptures,omitempty" plist:"beginCaptures"`
	EndCaptures   map[string]*RawRule `json:"endCaptures,omitempty" plist:"endCaptures"`
	WhileCaptures map[string]*RawRule `json:"whileCaptures,omitempty" plist:"whileCaptures"`

	Patterns   []*RawRule          `json:"patterns,omitempty" plist:"patterns"`
	Repository map[string]*RawRule `json:"repository,omitempty" plist:"repository"`

	ApplyEndPatternLast Flag `json:"applyEndPatternLast,omitempty" plist:"applyEndPatternLast"`
	Disabled            Flag `json:"disabled,omitempty" plist:"disabled"`
}

// Flag is a boolean that grammars in the wild encode as true/false or 0/1.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = Flag(b)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*f = n != 0
		return nil
	}
	return fmt.Errorf("flag: cannot decode %s", string(data))
}

func (f Flag) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(f))
}

// IncludeKind classifies an include target.
type IncludeKind int

const (
	IncludeBase  IncludeKind = iota // $base
	IncludeSelf                     // $self
	IncludeLocal                    // #name in own repository
	IncludeScope                    // source.other or source.other#name
)

// ParseInclude splits an include string into its kind, the external scope
// name (for IncludeScope) and the repository key (for IncludeLocal and
// scoped includes of the form "scope#key").
func ParseInclude(s string) (kind IncludeKind, scope, key string) {
	switch s {
	case "$base":
		return IncludeBase, "", ""
	case "$self", "":
		return IncludeSelf, "", ""
	}
	if s[0] == '#' {
		return IncludeLocal, "", s[1:]
	}
	for i := 0; i < len(s); i++ {
		if s[i] == '#' {
			return IncludeScope, s[:i], s[i+1:]
		}
	}
	return IncludeScope, s, ""
}
