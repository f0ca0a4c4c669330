package registry

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dhamidi/tmtok/grammar"
	"github.com/dhamidi/tmtok/matcher"
)

// DirectorySource serves grammar definitions from a directory of
// tmLanguage files. The directory is scanned once, lazily; definitions are
// handed out pre-parsed so a grammar file is read exactly once.
type DirectorySource struct {
	dir string

	once sync.Once
	raws map[string]*grammar.Raw
	err  error
}

// NewDirectorySource creates a source over dir. Files ending in .json,
// .tmLanguage or .plist are considered; files that fail to parse are
// skipped so one broken grammar does not poison the directory.
func NewDirectorySource(dir string) *DirectorySource {
	return &DirectorySource{dir: dir, raws: map[string]*grammar.Raw{}}
}

func (s *DirectorySource) scan() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.err = err
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".json"),
			strings.HasSuffix(name, ".tmLanguage"),
			strings.HasSuffix(name, ".plist"):
		default:
			continue
		}
		content, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		raw, err := grammar.Parse(grammar.SniffFormat(content), content)
		if err != nil {
			continue
		}
		s.raws[raw.ScopeName] = raw
	}
}

// Scopes lists the scope names the directory provides.
func (s *DirectorySource) Scopes() ([]string, error) {
	s.once.Do(s.scan)
	if s.err != nil {
		return nil, s.err
	}
	out := make([]string, 0, len(s.raws))
	for scope := range s.raws {
		out = append(out, scope)
	}
	return out, nil
}

// FileTypes maps declared file type extensions (without the leading dot)
// to the scope name of the grammar claiming them. When two grammars claim
// the same extension the winner is unspecified.
func (s *DirectorySource) FileTypes() map[string]string {
	s.once.Do(s.scan)
	out := map[string]string{}
	for scope, raw := range s.raws {
		for _, ft := range raw.FileTypes {
			out[strings.TrimPrefix(ft, ".")] = scope
		}
	}
	return out
}

// GrammarDefinition implements Source.
func (s *DirectorySource) GrammarDefinition(_ context.Context, scopeName, _ string) (*Definition, error) {
	s.once.Do(s.scan)
	if s.err != nil {
		return nil, s.err
	}
	raw, ok := s.raws[scopeName]
	if !ok {
		return nil, nil
	}
	return &Definition{Raw: raw}, nil
}

// Injections implements InjectionSource: grammars declaring an injection
// selector that matches scopeName inject into it.
func (s *DirectorySource) Injections(scopeName string) []string {
	s.once.Do(s.scan)
	var out []string
	for scope, raw := range s.raws {
		if raw.InjectionSelector == "" || scope == scopeName {
			continue
		}
		if matcher.Parse(raw.InjectionSelector).Matches([]string{scopeName}) {
			out = append(out, scope)
		}
	}
	return out
}
