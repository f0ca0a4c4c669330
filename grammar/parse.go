package grammar

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"howett.net/plist"
)

// Format tags the on-disk encoding of a grammar definition.
type Format string

const (
	FormatJSON  Format = "json"
	FormatPLIST Format = "plist"
)

var ErrMalformed = errors.New("malformed grammar definition")

// Parse decodes content in the given format into the raw grammar model.
// A missing scopeName is a malformed definition: every grammar is addressed
// by its scope name.
func Parse(format Format, content []byte) (*Raw, error) {
	var raw Raw
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(content, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	case FormatPLIST:
		if _, err := plist.Unmarshal(content, &raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown format %q", ErrMalformed, format)
	}
	if raw.ScopeName == "" {
		return nil, fmt.Errorf("%w: missing scopeName", ErrMalformed)
	}
	return &raw, nil
}

// SniffFormat guesses the format from the document's first non-blank byte:
// plist documents open with '<' or a bplist magic, JSON with '{'.
func SniffFormat(content []byte) Format {
	trimmed := bytes.TrimLeft(content, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return FormatJSON
	}
	return FormatPLIST
}

// UnmarshalPlist accepts the boolean, integer and string spellings of a
// flag found in plist grammars.
func (f *Flag) UnmarshalPlist(unmarshal func(interface{}) error) error {
	var b bool
	if err := unmarshal(&b); err == nil {
		*f = Flag(b)
		return nil
	}
	var n int64
	if err := unmarshal(&n); err == nil {
		*f = n != 0
		return nil
	}
	var s string
	if err := unmarshal(&s); err == nil {
		*f = s == "1" || s == "true"
		return nil
	}
	return errors.New("flag: unsupported plist value")
}
