package registry

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeGrammarDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestDirectorySourceScopes(t *testing.T) {
	dir := writeGrammarDir(t, map[string]string{
		"a.tmLanguage.json": `{"scopeName": "source.a", "fileTypes": ["aa"], "patterns": []}`,
		"b.tmLanguage.json": `{"scopeName": "source.b", "fileTypes": [".bb"], "patterns": []}`,
		"broken.json":       `{"scopeName": `,
		"notes.txt":         `ignored`,
	})
	source := NewDirectorySource(dir)

	scopes, err := source.Scopes()
	if err != nil {
		t.Fatalf("Scopes: %v", err)
	}
	sort.Strings(scopes)
	if len(scopes) != 2 || scopes[0] != "source.a" || scopes[1] != "source.b" {
		t.Errorf("Scopes = %v, want [source.a source.b]", scopes)
	}

	types := source.FileTypes()
	if types["aa"] != "source.a" {
		t.Errorf("FileTypes[aa] = %q, want source.a", types["aa"])
	}
	if types["bb"] != "source.b" {
		t.Errorf("FileTypes[bb] = %q, want source.b (leading dot stripped)", types["bb"])
	}
}

func TestDirectorySourceGrammarDefinition(t *testing.T) {
	dir := writeGrammarDir(t, map[string]string{
		"a.tmLanguage.json": `{"scopeName": "source.a", "patterns": [{"match": "a+", "name": "keyword.a"}]}`,
	})
	source := NewDirectorySource(dir)

	def, err := source.GrammarDefinition(context.Background(), "source.a", "")
	if err != nil {
		t.Fatalf("GrammarDefinition: %v", err)
	}
	if def == nil || def.Raw == nil || def.Raw.ScopeName != "source.a" {
		t.Fatalf("definition = %+v, want parsed raw grammar", def)
	}

	def, err = source.GrammarDefinition(context.Background(), "source.unknown", "")
	if err != nil {
		t.Fatalf("GrammarDefinition(unknown): %v", err)
	}
	if def != nil {
		t.Errorf("definition for unknown scope = %+v, want nil", def)
	}
}

func TestDirectorySourceMissingDirectory(t *testing.T) {
	source := NewDirectorySource(filepath.Join(t.TempDir(), "nope"))
	if _, err := source.Scopes(); err == nil {
		t.Error("Scopes on a missing directory = nil error, want error")
	}
}

func TestDirectorySourceInjections(t *testing.T) {
	dir := writeGrammarDir(t, map[string]string{
		"a.tmLanguage.json": `{"scopeName": "source.a", "patterns": []}`,
		"inj.tmLanguage.json": `{
			"scopeName": "source.inj",
			"injectionSelector": "L:source.a",
			"patterns": [{"match": "x", "name": "injected.x"}]
		}`,
	})
	source := NewDirectorySource(dir)

	got := source.Injections("source.a")
	if len(got) != 1 || got[0] != "source.inj" {
		t.Errorf("Injections(source.a) = %v, want [source.inj]", got)
	}
	if got := source.Injections("source.inj"); len(got) != 0 {
		t.Errorf("Injections(source.inj) = %v, want none", got)
	}
}

func TestDirectorySourceEndToEnd(t *testing.T) {
	dir := writeGrammarDir(t, map[string]string{
		"a.tmLanguage.json": `{"scopeName": "source.a", "patterns": [{"match": "b+", "name": "text.b"}]}`,
		"inj.tmLanguage.json": `{
			"scopeName": "source.inj",
			"injectionSelector": "L:source.a",
			"patterns": [{"match": "x+", "name": "injected.x"}]
		}`,
	})
	reg := New(NewDirectorySource(dir))

	if _, err := reg.LoadGrammar(context.Background(), "source.a"); err != nil {
		t.Fatalf("LoadGrammar: %v", err)
	}
	result, err := reg.TokenizeLine("source.a", "xb", nil)
	if err != nil {
		t.Fatalf("TokenizeLine: %v", err)
	}
	if len(result.Tokens) != 2 {
		t.Fatalf("len(Tokens) = %d, want 2", len(result.Tokens))
	}
	if leaf := result.Tokens[0].Scopes[len(result.Tokens[0].Scopes)-1]; leaf != "injected.x" {
		t.Errorf("first leaf = %q, want injected.x from the directory injection", leaf)
	}
}
