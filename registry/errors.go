package registry

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotLoaded is returned when a grammar is used before LoadGrammar
// resolved it.
var ErrNotLoaded = errors.New("grammar not loaded")

// ErrInvalidStackElement is returned when a tokenize call resumes from a
// rule stack that a different grammar produced.
var ErrInvalidStackElement = errors.New("rule stack belongs to a different grammar")

// DefinitionUnavailableError reports that the source returned nothing, or
// failed, for a scope.
type DefinitionUnavailableError struct {
	ScopeName string
	Err       error
}

func (e *DefinitionUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("no grammar definition for %s", e.ScopeName)
	}
	return fmt.Sprintf("no grammar definition for %s: %v", e.ScopeName, e.Err)
}

func (e *DefinitionUnavailableError) Unwrap() error { return e.Err }

// MalformedDefinitionError reports a definition that could not be parsed
// into the raw grammar model.
type MalformedDefinitionError struct {
	ScopeName string
	Err       error
}

func (e *MalformedDefinitionError) Error() string {
	return fmt.Sprintf("malformed grammar definition for %s: %v", e.ScopeName, e.Err)
}

func (e *MalformedDefinitionError) Unwrap() error { return e.Err }

// DependencyError reports a transitive scope that failed to load, carrying
// the chain of requesting scopes from the top-level load down to the
// failure.
type DependencyError struct {
	ScopeName string   // the scope that failed
	Chain     []string // requesting scopes, outermost first
	Err       error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("loading %s (via %s): %v", e.ScopeName, strings.Join(e.Chain, " -> "), e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }
